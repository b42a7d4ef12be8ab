package autodiff

import "github.com/born-ml/customgrad/internal/tensor"

// Arg is one positional argument of a custom Function: either a tensor or a
// scalar constant. Constants, integer tensors and tensors marked with NoGrad
// never receive gradients.
type Arg struct {
	tensor   *tensor.RawTensor
	constant float64
	isConst  bool
	noGrad   bool
}

// TensorArg wraps a tensor argument. Float tensors are differentiable unless
// marked with NoGrad.
func TensorArg(t *tensor.RawTensor) Arg {
	if t == nil {
		violation(ErrInvalidArgument, "TensorArg: nil tensor")
	}
	return Arg{tensor: t}
}

// TrackedArg wraps t as a tensor argument that is differentiable only when
// t.RequiresGrad() holds: t is a gradient leaf (a parameter) or was computed
// from one on the recording tape. Input batches and labels become NoGrad.
func TrackedArg(t *tensor.RawTensor) Arg {
	a := TensorArg(t)
	if !t.RequiresGrad() {
		a.noGrad = true
	}
	return a
}

// ConstArg wraps a non-differentiable scalar constant.
func ConstArg(v float64) Arg {
	return Arg{constant: v, isConst: true}
}

// NoGrad returns a copy of the argument marked as not requiring a gradient.
func (a Arg) NoGrad() Arg {
	a.noGrad = true
	return a
}

// IsTensor reports whether the argument holds a tensor.
func (a Arg) IsTensor() bool {
	return !a.isConst
}

// Tensor returns the tensor value. Panics for constants.
func (a Arg) Tensor() *tensor.RawTensor {
	if a.isConst {
		violation(ErrInvalidArgument, "argument is a constant, not a tensor")
	}
	return a.tensor
}

// Value returns the constant value. Panics for tensors.
func (a Arg) Value() float64 {
	if !a.isConst {
		violation(ErrInvalidArgument, "argument is a tensor, not a constant")
	}
	return a.constant
}

// RequiresGrad reports whether a gradient must be computed for this argument.
func (a Arg) RequiresGrad() bool {
	return !a.isConst && !a.noGrad && a.tensor.DType().IsFloat()
}
