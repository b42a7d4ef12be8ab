package autodiff

import (
	"github.com/born-ml/customgrad/internal/tensor"
	"k8s.io/klog/v2"
)

// Function is a user-defined differentiable operation: a forward computation
// paired with its gradient rule.
//
// Forward receives a fresh Context and the positional arguments, computes the
// output (recording is suspended, so primitives used here are not traced) and
// stores in the context whatever Backward needs.
//
// Backward receives the same Context and the gradient of the loss with respect
// to the output, and returns exactly one Grad per forward argument, in the
// same order. Slots for constants, integer tensors or tensors that need no
// gradient return NoGrad().
//
// Example:
//
//	type square struct{}
//
//	func (square) Name() string { return "square" }
//
//	func (square) Forward(ctx *autodiff.Context, args ...autodiff.Arg) *tensor.RawTensor {
//		x := args[0].Tensor()
//		ctx.SaveForBackward(x)
//		return ctx.Backend().Mul(x, x)
//	}
//
//	func (square) Backward(ctx *autodiff.Context, grad *tensor.RawTensor) []autodiff.Grad {
//		x := ctx.SavedTensor(0)
//		b := ctx.Backend()
//		return []autodiff.Grad{autodiff.GradOf(b.Mul(grad, b.MulScalar(x, 2)))}
//	}
type Function interface {
	// Name identifies the function in the registry and in error messages.
	Name() string

	// Forward computes the output from args.
	Forward(ctx *Context, args ...Arg) *tensor.RawTensor

	// Backward computes one gradient slot per forward argument.
	Backward(ctx *Context, grad *tensor.RawTensor) []Grad
}

// ForwardFunc is the forward half of a Function built with Define.
type ForwardFunc func(ctx *Context, args ...Arg) *tensor.RawTensor

// BackwardFunc is the backward half of a Function built with Define.
type BackwardFunc func(ctx *Context, grad *tensor.RawTensor) []Grad

// funcPair adapts two plain functions to the Function interface.
type funcPair struct {
	name     string
	forward  ForwardFunc
	backward BackwardFunc
}

// Define builds a Function from a forward and a backward closure.
func Define(name string, forward ForwardFunc, backward BackwardFunc) Function {
	if name == "" || forward == nil || backward == nil {
		violation(ErrInvalidArgument, "Define: name, forward and backward are required")
	}
	return &funcPair{name: name, forward: forward, backward: backward}
}

func (f *funcPair) Name() string { return f.name }

func (f *funcPair) Forward(ctx *Context, args ...Arg) *tensor.RawTensor {
	return f.forward(ctx, args...)
}

func (f *funcPair) Backward(ctx *Context, grad *tensor.RawTensor) []Grad {
	return f.backward(ctx, grad)
}

// Forward runs fn's forward pass on backend without recording anything and
// returns the output together with the context Backward needs.
//
// Use it to drive a Function by hand, e.g. with CallBackward in tests or when
// verifying gradients numerically. Apply is the recorded equivalent.
func Forward(backend tensor.Backend, fn Function, args ...Arg) (*tensor.RawTensor, *Context) {
	if fn == nil {
		violation(ErrInvalidArgument, "Forward: nil function")
	}
	for i, a := range args {
		if a.IsTensor() && a.tensor == nil {
			violation(ErrInvalidArgument, "%s: argument %d is a zero Arg", fn.Name(), i)
		}
	}

	if tape := tapeOf(backend); tape != nil {
		defer tape.Pause()()
	}

	ctx := newContext(fn.Name(), backend, args)
	out := fn.Forward(ctx, args...)
	if out == nil {
		violation(ErrInvalidArgument, "%s: forward returned nil", fn.Name())
	}
	for i, a := range args {
		if a.IsTensor() && a.tensor == out {
			violation(ErrInvalidArgument, "%s: forward output aliases argument %d, return a copy", fn.Name(), i)
		}
	}
	ctx.outputShape = out.Shape().Clone()
	return out, ctx
}

// Apply runs fn on args and, when backend is recording and any argument
// requires a gradient, records the invocation on the tape so that a later
// backward pass calls fn.Backward with the same Context.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	y := autodiff.Apply(backend, functions.MySub(),
//		autodiff.TensorArg(a), autodiff.TensorArg(b), autodiff.ConstArg(2))
func Apply(backend tensor.Backend, fn Function, args ...Arg) *tensor.RawTensor {
	out, ctx := Forward(backend, fn, args...)

	tape := tapeOf(backend)
	if tape == nil || !tape.IsRecording() || !anyRequiresGrad(args) {
		return out
	}
	out.SetRequiresGrad(true)
	tape.Record(newFunctionOp(fn, ctx, out))
	return out
}

// CallBackward invokes fn.Backward and enforces the gradient contract:
//   - the upstream gradient has the forward output's shape
//   - exactly one slot per forward argument is returned
//   - constant slots carry no gradient
//   - every gradient tensor matches its argument's shape and dtype
//
// Violations panic with an error wrapping ErrContractViolation. Gradients
// for tensors that do not require one are replaced by NoGrad. The context
// is consumed: its saved state is released and it cannot be used again.
func CallBackward(fn Function, ctx *Context, grad *tensor.RawTensor) []Grad {
	name := fn.Name()
	if ctx.consumed {
		violation(ErrContextConsumed, "%s: backward called twice for the same forward", name)
	}
	defer ctx.release()

	if grad == nil {
		violation(ErrInvalidArgument, "%s: nil upstream gradient", name)
	}
	if !grad.Shape().Equal(ctx.outputShape) {
		violation(ErrGradientShape, "%s: upstream gradient shape %v, output shape %v",
			name, grad.Shape(), ctx.outputShape)
	}

	grads := fn.Backward(ctx, grad)
	if len(grads) != ctx.NumInputs() {
		violation(ErrGradientCount, "%s: backward returned %d gradients for %d arguments",
			name, len(grads), ctx.NumInputs())
	}

	for i, g := range grads {
		if g.IsNone() {
			continue
		}
		arg := ctx.args[i]
		if !arg.IsTensor() {
			violation(ErrUnexpectedGradient, "%s: slot %d is a constant", name, i)
		}
		want := arg.tensor
		if !g.t.Shape().Equal(want.Shape()) {
			violation(ErrGradientShape, "%s: slot %d gradient shape %v, argument shape %v",
				name, i, g.t.Shape(), want.Shape())
		}
		if g.t.DType() != want.DType() {
			violation(ErrGradientShape, "%s: slot %d gradient dtype %s, argument dtype %s",
				name, i, g.t.DType(), want.DType())
		}
		if !arg.RequiresGrad() {
			klog.V(2).Infof("%s: discarding gradient for slot %d (no gradient required)", name, i)
			grads[i] = NoGrad()
		}
	}
	return grads
}

func anyRequiresGrad(args []Arg) bool {
	for _, a := range args {
		if a.RequiresGrad() {
			return true
		}
	}
	return false
}

// FunctionOp is the tape record of one Apply call.
type FunctionOp struct {
	fn     Function
	ctx    *Context
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

func newFunctionOp(fn Function, ctx *Context, output *tensor.RawTensor) *FunctionOp {
	inputs := make([]*tensor.RawTensor, len(ctx.args))
	for i, a := range ctx.args {
		if a.RequiresGrad() {
			inputs[i] = a.tensor
		}
	}
	return &FunctionOp{fn: fn, ctx: ctx, inputs: inputs, output: output}
}

// Backward runs the function's validated backward. Entries are nil for slots
// without a gradient.
func (op *FunctionOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	grads := CallBackward(op.fn, op.ctx, outputGrad)
	out := make([]*tensor.RawTensor, len(grads))
	for i, g := range grads {
		out[i] = g.Tensor()
	}
	return out
}

// Inputs returns the argument tensors that require a gradient; other slots
// are nil.
func (op *FunctionOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the forward result.
func (op *FunctionOp) Output() *tensor.RawTensor {
	return op.output
}

// Function returns the recorded function.
func (op *FunctionOp) Function() Function {
	return op.fn
}

// Context returns the invocation context.
func (op *FunctionOp) Context() *Context {
	return op.ctx
}
