package functions

import (
	"math"

	"github.com/born-ml/customgrad/internal/autodiff"
	"github.com/born-ml/customgrad/internal/tensor"
)

type expFn struct{}

// Exp returns y = eˣ. Forward saves its output, since dy/dx = y.
func Exp() autodiff.Function { return expFn{} }

func (expFn) Name() string { return "exp" }

func (expFn) Forward(ctx *autodiff.Context, args ...autodiff.Arg) *tensor.RawTensor {
	checkArity("exp", args, 1)
	y := ctx.Backend().Exp(args[0].Tensor())
	ctx.SaveForBackward(y)
	return y
}

func (expFn) Backward(ctx *autodiff.Context, grad *tensor.RawTensor) []autodiff.Grad {
	y := ctx.SavedTensor(0)
	return []autodiff.Grad{
		gradIf(ctx, 0, func() *tensor.RawTensor { return ctx.Backend().Mul(grad, y) }),
	}
}

type log1pExp struct{}

// Log1pExp returns the softplus y = log(1 + eˣ), evaluated as
// max(x, 0) + log1p(e^-|x|) so it neither overflows for large x nor loses
// precision for very negative x. dy/dx = sigmoid(x).
func Log1pExp() autodiff.Function { return log1pExp{} }

func (log1pExp) Name() string { return "log1pexp" }

func (log1pExp) Forward(ctx *autodiff.Context, args ...autodiff.Arg) *tensor.RawTensor {
	checkArity("log1pexp", args, 1)
	x := args[0].Tensor()
	ctx.SaveForBackward(x)
	return mapValues(x, func(v float64) float64 {
		return max(v, 0) + math.Log1p(math.Exp(-math.Abs(v)))
	})
}

func (log1pExp) Backward(ctx *autodiff.Context, grad *tensor.RawTensor) []autodiff.Grad {
	x := ctx.SavedTensor(0)
	return []autodiff.Grad{
		gradIf(ctx, 0, func() *tensor.RawTensor {
			return zipValues(grad, x, func(g, v float64) float64 { return g * sigmoid(v) })
		}),
	}
}

func sigmoid(v float64) float64 {
	if v >= 0 {
		return 1 / (1 + math.Exp(-v))
	}
	e := math.Exp(v)
	return e / (1 + e)
}

type legendreP3 struct{}

// LegendreP3 returns the Legendre polynomial of degree three,
// P₃(x) = ½(5x³ - 3x), with P₃'(x) = 1.5(5x² - 1).
func LegendreP3() autodiff.Function { return legendreP3{} }

func (legendreP3) Name() string { return "legendre_p3" }

func (legendreP3) Forward(ctx *autodiff.Context, args ...autodiff.Arg) *tensor.RawTensor {
	checkArity("legendre_p3", args, 1)
	b := ctx.Backend()
	x := args[0].Tensor()
	ctx.SaveForBackward(x)
	x3 := b.Mul(b.Mul(x, x), x)
	return b.MulScalar(b.Sub(b.MulScalar(x3, 5), b.MulScalar(x, 3)), 0.5)
}

func (legendreP3) Backward(ctx *autodiff.Context, grad *tensor.RawTensor) []autodiff.Grad {
	b := ctx.Backend()
	x := ctx.SavedTensor(0)
	return []autodiff.Grad{
		gradIf(ctx, 0, func() *tensor.RawTensor {
			d := b.MulScalar(b.AddScalar(b.MulScalar(b.Mul(x, x), 5), -1), 1.5)
			return b.Mul(grad, d)
		}),
	}
}

type clampReLU struct{}

// ClampReLU returns y = max(x, 0). Forward saves x, and backward passes the
// upstream gradient only where x > 0.
func ClampReLU() autodiff.Function { return clampReLU{} }

func (clampReLU) Name() string { return "clamp_relu" }

func (clampReLU) Forward(ctx *autodiff.Context, args ...autodiff.Arg) *tensor.RawTensor {
	checkArity("clamp_relu", args, 1)
	x := args[0].Tensor()
	ctx.SaveForBackward(x)
	return ctx.Backend().ReLU(x)
}

func (clampReLU) Backward(ctx *autodiff.Context, grad *tensor.RawTensor) []autodiff.Grad {
	x := ctx.SavedTensor(0)
	return []autodiff.Grad{
		gradIf(ctx, 0, func() *tensor.RawTensor {
			return zipValues(grad, x, func(g, v float64) float64 {
				if v > 0 {
					return g
				}
				return 0
			})
		}),
	}
}
