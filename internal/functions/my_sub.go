package functions

import (
	"github.com/born-ml/customgrad/internal/autodiff"
	"github.com/born-ml/customgrad/internal/autodiff/ops"
	"github.com/born-ml/customgrad/internal/tensor"
)

type mySub struct{}

// MySub returns the function y = a - alpha·b for tensors a, b (broadcast
// against each other) and a scalar constant alpha.
//
// Gradients: dy/da = 1, dy/db = -alpha, and no gradient for alpha.
func MySub() autodiff.Function { return mySub{} }

func (mySub) Name() string { return "my_sub" }

func (mySub) Forward(ctx *autodiff.Context, args ...autodiff.Arg) *tensor.RawTensor {
	checkArity("my_sub", args, 3)
	b := ctx.Backend()
	alpha := args[2].Value()
	ctx.SetConstant("alpha", alpha)
	return b.Sub(args[0].Tensor(), b.MulScalar(args[1].Tensor(), alpha))
}

func (mySub) Backward(ctx *autodiff.Context, grad *tensor.RawTensor) []autodiff.Grad {
	b := ctx.Backend()
	alpha := ctx.Constant("alpha")
	return []autodiff.Grad{
		gradIf(ctx, 0, func() *tensor.RawTensor {
			return ops.ReduceBroadcast(grad, ctx.InputShape(0), b)
		}),
		gradIf(ctx, 1, func() *tensor.RawTensor {
			return ops.ReduceBroadcast(b.MulScalar(grad, -alpha), ctx.InputShape(1), b)
		}),
		autodiff.NoGrad(),
	}
}

// ApplyMySub computes a - alpha·b through the autodiff runtime.
func ApplyMySub[T tensor.Float, B tensor.Backend](a, b *tensor.Tensor[T, B], alpha float64) *tensor.Tensor[T, B] {
	out := autodiff.Apply(a.Backend(), mySub{},
		autodiff.TrackedArg(a.Raw()), autodiff.TrackedArg(b.Raw()), autodiff.ConstArg(alpha))
	return tensor.New[T](out, a.Backend())
}
