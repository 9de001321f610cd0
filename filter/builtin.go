package filter

import (
	"fmt"

	"github.com/dudk/tensorpipe/tensor"
)

// Passthrough returns filter that hands over input set as is.
func Passthrough(name string) Filter {
	return Func{FilterName: name}
}

// Convert returns filter that converts every tensor to the provided type.
// Values of integer types are truncated.
func Convert(name string, to tensor.Type) Filter {
	return Func{
		FilterName: name,
		OutputSpecFunc: func(in tensor.SetSpec) (tensor.SetSpec, error) {
			if !to.Valid() {
				return nil, fmt.Errorf("%w: convert to %v", tensor.ErrInvalidShape, to)
			}
			out := in.Clone()
			for i := range out {
				out[i].Type = to
			}
			return out, nil
		},
		InvokeFunc: func(in *tensor.Set, inSpec, outSpec tensor.SetSpec) (*tensor.Set, error) {
			out, err := tensor.Allocate(outSpec)
			if err != nil {
				return nil, err
			}
			for i := range inSpec {
				src, dst := in.Buffer(i), out.Buffer(i)
				for j := 0; j < inSpec[i].Elements(); j++ {
					dst.SetValue(to, j, src.Value(inSpec[i].Type, j))
				}
			}
			return out, nil
		},
	}
}

// AddConstant returns filter that adds v to every element. Output spec is
// the same as input.
func AddConstant(name string, v float64) Filter {
	return Func{
		FilterName: name,
		InvokeFunc: func(in *tensor.Set, inSpec, outSpec tensor.SetSpec) (*tensor.Set, error) {
			out, err := tensor.Allocate(outSpec)
			if err != nil {
				return nil, err
			}
			for i := range inSpec {
				t := inSpec[i].Type
				src, dst := in.Buffer(i), out.Buffer(i)
				for j := 0; j < inSpec[i].Elements(); j++ {
					dst.SetValue(t, j, src.Value(t, j)+v)
				}
			}
			return out, nil
		},
	}
}
