package nn

import (
	"github.com/born-ml/customgrad/internal/tensor"
	"github.com/gomlx/exceptions"
)

// Sequential feeds the output of each module into the next.
//
//	model := nn.NewSequential[B](
//	    nn.NewFlatten[B](),
//	    nn.NewCheckpoint[B](nn.NewSequential[B](nn.NewLinear(784, 128, rng, backend), nn.NewReLU[B]())),
//	    nn.NewLinear(128, 10, rng, backend),
//	)
type Sequential[B tensor.Backend] struct {
	modules []Module[B]
}

// NewSequential creates a Sequential over modules.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return &Sequential[B]{modules: modules}
}

// Forward runs every module in order.
func (s *Sequential[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	for _, m := range s.modules {
		input = m.Forward(input)
	}
	return input
}

// Parameters concatenates the parameters of every module in order.
func (s *Sequential[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, m := range s.modules {
		params = append(params, m.Parameters()...)
	}
	return params
}

// Add appends m.
func (s *Sequential[B]) Add(m Module[B]) {
	s.modules = append(s.modules, m)
}

// Len returns the number of direct children.
func (s *Sequential[B]) Len() int {
	return len(s.modules)
}

// Module returns the i-th direct child.
func (s *Sequential[B]) Module(i int) Module[B] {
	if i < 0 || i >= len(s.modules) {
		exceptions.Panicf("Sequential.Module: index %d out of range [0, %d)", i, len(s.modules))
	}
	return s.modules[i]
}

// Walk calls visit for every module below s, depth first, descending into
// nested Sequential containers and into the module wrapped by a Checkpoint.
// Returning false from visit stops the descent below that module.
func (s *Sequential[B]) Walk(visit func(m Module[B]) bool) {
	for _, m := range s.modules {
		if !visit(m) {
			continue
		}
		switch inner := m.(type) {
		case *Sequential[B]:
			inner.Walk(visit)
		case *Checkpoint[B]:
			if seq, ok := inner.Module().(*Sequential[B]); ok {
				seq.Walk(visit)
			} else {
				visit(inner.Module())
			}
		}
	}
}
