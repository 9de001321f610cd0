package tensor

import "sync"

// pools keeps byte pools per buffer size, so released buffers of the
// same footprint are reused by next allocations.
var pools = struct {
	sync.Mutex
	m map[int]*sync.Pool
}{
	m: map[int]*sync.Pool{},
}

func pool(size int) *sync.Pool {
	pools.Lock()
	defer pools.Unlock()
	if p, ok := pools.m[size]; ok {
		return p
	}
	p := &sync.Pool{
		New: func() any {
			b := make([]byte, size)
			return &b
		},
	}
	pools.m[size] = p
	return p
}

// getBytes returns zeroed byte slice of provided size.
func getBytes(size int) []byte {
	bp := pool(size).Get().(*[]byte)
	b := *bp
	clear(b)
	return b
}

func putBytes(b []byte) {
	if len(b) == 0 {
		return
	}
	pool(len(b)).Put(&b)
}
