package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/dudk/tensorpipe"
	"github.com/dudk/tensorpipe/graph"
	"github.com/dudk/tensorpipe/log"
	"github.com/dudk/tensorpipe/tensor"
)

type runCommand struct {
	file    string
	config  string
	num     int
	dump    bool
	timeout time.Duration
}

func (cmd *runCommand) Name() string {
	return "run"
}

func (cmd *runCommand) Help() string {
	return "Push zero sets into every source and count deliveries"
}

func (cmd *runCommand) Register(fs *pflag.FlagSet) {
	fs.StringVarP(&cmd.file, "file", "f", "", "topology description (required)")
	fs.StringVar(&cmd.config, "config", "", "pipeline config")
	fs.IntVarP(&cmd.num, "num", "n", 15, "number of sets pushed into every source")
	fs.BoolVar(&cmd.dump, "dump", false, "dump every delivered set")
	fs.DurationVar(&cmd.timeout, "timeout", 10*time.Second, "time to wait for deliveries")
}

func (cmd *runCommand) Run(w io.Writer, _ []string) error {
	if cmd.file == "" {
		return errors.New("missing --file required flag")
	}
	g, err := buildFile(cmd.file)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd.config)
	if err != nil {
		return err
	}
	p, err := tensorpipe.New(g,
		tensorpipe.WithConfig(cfg),
		tensorpipe.WithLogger(log.GetLogger()),
	)
	if err != nil {
		return err
	}
	defer p.Close()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		counts = make(map[string]int)
		sizes  = make(map[string]int)
	)
	for _, sink := range g.Sinks() {
		err := p.SetSinkCallback(sink, func(s *tensor.Set, _ tensor.SetSpec) {
			defer wg.Done()
			defer s.Release()
			mu.Lock()
			defer mu.Unlock()
			counts[sink]++
			sizes[sink] += s.Size()
			if cmd.dump {
				fmt.Fprintf(w, "%s: %v\n", sink, s)
				spew.Fdump(w, s)
			}
		})
		if err != nil {
			return err
		}
	}
	failed := make(chan struct{})
	var once sync.Once
	p.SetStateCallback(func(s tensorpipe.State) {
		if s == tensorpipe.Unknown {
			once.Do(func() { close(failed) })
		}
	})

	if err := p.Start(); err != nil {
		return err
	}
	for _, source := range g.Sources() {
		wg.Add(cmd.num * len(reach(g, source)))
	}
	for i := 0; i < cmd.num; i++ {
		for _, source := range g.Sources() {
			s, err := tensor.Allocate(g.OutSpec(source))
			if err != nil {
				return err
			}
			if err := p.InputData(source, s); err != nil {
				return err
			}
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-failed:
		return p.Err()
	case <-time.After(cmd.timeout):
		return fmt.Errorf("deliveries didn't complete in %v", cmd.timeout)
	}

	sinks := g.Sinks()
	sort.Strings(sinks)
	mu.Lock()
	defer mu.Unlock()
	for _, sink := range sinks {
		fmt.Fprintf(w, "%s: %d sets (%s)\n", sink, counts[sink], humanize.IBytes(uint64(sizes[sink])))
	}
	stats := p.Stats()
	fmt.Fprintf(w, "admitted: %d delivered: %d dropped: %d\n", stats.Admitted, stats.Delivered, stats.Dropped)
	return nil
}

func loadConfig(path string) (tensorpipe.Config, error) {
	if path == "" {
		return tensorpipe.DefaultConfig(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return tensorpipe.Config{}, err
	}
	defer f.Close()
	return tensorpipe.LoadConfig(f)
}

// reach returns sinks that receive a set entering the node with initial
// states of valves and selectors.
func reach(g *graph.Graph, node string) []string {
	n, _ := g.Node(node)
	switch n.Kind {
	case graph.Sink:
		return []string{node}
	case graph.Valve:
		if !n.Open {
			return nil
		}
	case graph.Selector:
		for _, e := range g.Out(node) {
			if e.Pad == n.Active {
				return reach(g, e.To)
			}
		}
		return nil
	}
	var sinks []string
	for _, e := range g.Out(node) {
		sinks = append(sinks, reach(g, e.To)...)
	}
	return sinks
}
