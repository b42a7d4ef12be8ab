package autodiff

import "github.com/born-ml/customgrad/internal/tensor"

// Grad is the gradient produced by Backward for one argument slot: either a
// tensor shaped like the argument or the explicit "no gradient" marker.
type Grad struct {
	t *tensor.RawTensor
}

// GradOf wraps a gradient tensor. A nil tensor yields NoGrad.
func GradOf(t *tensor.RawTensor) Grad {
	return Grad{t: t}
}

// NoGrad is the marker for slots that do not receive a gradient.
func NoGrad() Grad {
	return Grad{}
}

// IsNone reports whether this slot carries no gradient.
func (g Grad) IsNone() bool {
	return g.t == nil
}

// Tensor returns the gradient tensor, or nil for NoGrad.
func (g Grad) Tensor() *tensor.RawTensor {
	return g.t
}

// String describes the slot for diagnostics.
func (g Grad) String() string {
	if g.IsNone() {
		return "NoGrad"
	}
	return "Grad" + g.t.Shape().String()
}
