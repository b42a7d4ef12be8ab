package functions

import (
	"github.com/born-ml/customgrad/internal/autodiff"
	"github.com/born-ml/customgrad/internal/tensor"
)

type matrixSum struct{}

// MatrixSum returns the function y = Σx, reducing every element of x to a
// scalar. Its gradient is the upstream scalar broadcast to x's shape, so
// d(Σx)/dx is all ones.
func MatrixSum() autodiff.Function { return matrixSum{} }

func (matrixSum) Name() string { return "matrix_sum" }

func (matrixSum) Forward(ctx *autodiff.Context, args ...autodiff.Arg) *tensor.RawTensor {
	checkArity("matrix_sum", args, 1)
	return ctx.Backend().Sum(args[0].Tensor())
}

func (matrixSum) Backward(ctx *autodiff.Context, grad *tensor.RawTensor) []autodiff.Grad {
	shape := ctx.InputShape(0)
	return []autodiff.Grad{
		gradIf(ctx, 0, func() *tensor.RawTensor { return ctx.Backend().Expand(grad, shape) }),
	}
}

// ApplyMatrixSum computes Σx through the autodiff runtime.
func ApplyMatrixSum[T tensor.Float, B tensor.Backend](x *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	return tensor.New[T](autodiff.Apply(x.Backend(), matrixSum{}, autodiff.TrackedArg(x.Raw())), x.Backend())
}
