// Package functions provides the custom differentiable functions shipped with
// customgrad. Each one is an autodiff.Function with a hand-written backward
// and is registered in autodiff.DefaultRegistry when the package is loaded.
//
// Registered names:
//   - matrix_sum: Σx
//   - my_sub: a - alpha·b
//   - cross_entropy: -Σ y_true·log(clip(y_pred))/N, computed outside the tape
//   - softmax_cross_entropy: mean negative log-likelihood of int32 labels
//   - exp, log1pexp, legendre_p3, clamp_relu: elementwise examples
package functions

import (
	"github.com/born-ml/customgrad/internal/autodiff"
	"github.com/born-ml/customgrad/internal/tensor"
	"github.com/gomlx/exceptions"
	"github.com/janpfeifer/must"
)

func init() {
	for _, fn := range All() {
		autodiff.MustRegister(fn)
	}
}

// All returns every function in this package.
func All() []autodiff.Function {
	return []autodiff.Function{
		MatrixSum(),
		MySub(),
		CrossEntropy(),
		SoftmaxCrossEntropy(),
		Exp(),
		Log1pExp(),
		LegendreP3(),
		ClampReLU(),
	}
}

// mapValues applies f to every element of x outside the backend. The result
// has x's shape and dtype.
func mapValues(x *tensor.RawTensor, f func(float64) float64) *tensor.RawTensor {
	values := x.ToFloat64()
	for i, v := range values {
		values[i] = f(v)
	}
	return must.M1(tensor.RawFromFloat64(values, x.Shape(), x.DType(), x.Device()))
}

// zipValues combines a and b (same shape) element by element. The result
// has a's dtype.
func zipValues(a, b *tensor.RawTensor, f func(x, y float64) float64) *tensor.RawTensor {
	av, bv := a.ToFloat64(), b.ToFloat64()
	for i := range av {
		av[i] = f(av[i], bv[i])
	}
	return must.M1(tensor.RawFromFloat64(av, a.Shape(), a.DType(), a.Device()))
}

// gradIf returns GradOf(compute()) when slot i needs a gradient, else NoGrad.
func gradIf(ctx *autodiff.Context, i int, compute func() *tensor.RawTensor) autodiff.Grad {
	if !ctx.NeedsInputGrad(i) {
		return autodiff.NoGrad()
	}
	return autodiff.GradOf(compute())
}

// checkArity panics when a function receives the wrong number of arguments.
func checkArity(name string, args []autodiff.Arg, want int) {
	if len(args) != want {
		exceptions.Panicf("%s: expected %d arguments, got %d", name, want, len(args))
	}
}
