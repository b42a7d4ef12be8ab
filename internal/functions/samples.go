package functions

import (
	"math"
	"math/rand"

	"github.com/born-ml/customgrad/internal/autodiff"
	"github.com/born-ml/customgrad/internal/tensor"
	"github.com/janpfeifer/must"
)

// Sample pairs a function with a generator of random float64 arguments drawn
// from the function's valid domain, for numerical gradient checks.
type Sample struct {
	Function autodiff.Function
	Args     func(rng *rand.Rand) []autodiff.Arg
}

// Samples returns one Sample per function in this package.
func Samples() []Sample {
	return []Sample{
		{MatrixSum(), func(rng *rand.Rand) []autodiff.Arg {
			return []autodiff.Arg{autodiff.TensorArg(randn(rng, 3, 4))}
		}},
		{MySub(), func(rng *rand.Rand) []autodiff.Arg {
			return []autodiff.Arg{
				autodiff.TensorArg(randn(rng, 3, 4)),
				autodiff.TensorArg(randn(rng, 4)),
				autodiff.ConstArg(0.5 + 1.5*rng.Float64()),
			}
		}},
		{CrossEntropy(), func(rng *rand.Rand) []autodiff.Arg {
			return []autodiff.Arg{
				autodiff.TensorArg(oneHot(rng, 4, 3)).NoGrad(),
				autodiff.TensorArg(uniform(rng, 0.05, 0.95, 4, 3)),
			}
		}},
		{SoftmaxCrossEntropy(), func(rng *rand.Rand) []autodiff.Arg {
			labels := make([]float64, 4)
			for i := range labels {
				labels[i] = float64(rng.Intn(5))
			}
			return []autodiff.Arg{
				autodiff.TensorArg(randn(rng, 4, 5)),
				autodiff.TensorArg(must.M1(tensor.RawFromFloat64(labels, tensor.Shape{4}, tensor.Int32, tensor.CPU))),
			}
		}},
		{Exp(), func(rng *rand.Rand) []autodiff.Arg {
			return []autodiff.Arg{autodiff.TensorArg(randn(rng, 5))}
		}},
		{Log1pExp(), func(rng *rand.Rand) []autodiff.Arg {
			return []autodiff.Arg{autodiff.TensorArg(uniform(rng, -20, 20, 6))}
		}},
		{LegendreP3(), func(rng *rand.Rand) []autodiff.Arg {
			return []autodiff.Arg{autodiff.TensorArg(uniform(rng, -1, 1, 6))}
		}},
		{ClampReLU(), func(rng *rand.Rand) []autodiff.Arg {
			// Keep away from the kink at zero.
			x := randn(rng, 2, 3)
			return []autodiff.Arg{autodiff.TensorArg(mapValues(x, func(v float64) float64 {
				return math.Copysign(0.1+math.Abs(v), v)
			}))}
		}},
	}
}

func randn(rng *rand.Rand, shape ...int) *tensor.RawTensor {
	values := make([]float64, tensor.Shape(shape).NumElements())
	for i := range values {
		values[i] = rng.NormFloat64()
	}
	return must.M1(tensor.RawFromFloat64(values, shape, tensor.Float64, tensor.CPU))
}

func uniform(rng *rand.Rand, low, high float64, shape ...int) *tensor.RawTensor {
	values := make([]float64, tensor.Shape(shape).NumElements())
	for i := range values {
		values[i] = low + (high-low)*rng.Float64()
	}
	return must.M1(tensor.RawFromFloat64(values, shape, tensor.Float64, tensor.CPU))
}

// oneHot returns n random one-hot rows of width c.
func oneHot(rng *rand.Rand, n, c int) *tensor.RawTensor {
	values := make([]float64, n*c)
	for i := range n {
		values[i*c+rng.Intn(c)] = 1
	}
	return must.M1(tensor.RawFromFloat64(values, tensor.Shape{n, c}, tensor.Float64, tensor.CPU))
}
