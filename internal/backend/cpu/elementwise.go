package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/customgrad/internal/parallel"
	"github.com/born-ml/customgrad/internal/tensor"
)

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", a, b, add[float32], add[float64])
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("sub", a, b, sub[float32], sub[float64])
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", a, b, mul[float32], mul[float64])
}

// Div performs element-wise division with broadcasting.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("div", a, b, div[float32], div[float64])
}

// MulScalar multiplies every element by scalar.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	return cpu.unary("mulscalar", x,
		func(v float32) float32 { return v * float32(scalar) },
		func(v float64) float64 { return v * scalar })
}

// AddScalar adds scalar to every element.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, scalar float64) *tensor.RawTensor {
	return cpu.unary("addscalar", x,
		func(v float32) float32 { return v + float32(scalar) },
		func(v float64) float64 { return v + scalar })
}

// Exp computes e^x element-wise.
func (cpu *CPUBackend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("exp", x, exp[float32], exp[float64])
}

// Log computes the natural logarithm element-wise.
// Non-positive inputs produce -Inf or NaN; callers clip first.
func (cpu *CPUBackend) Log(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("log", x, log[float32], log[float64])
}

// ReLU computes max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("relu", x, relu[float32], relu[float64])
}

func add[T tensor.Float](x, y T) T { return x + y }
func sub[T tensor.Float](x, y T) T { return x - y }
func mul[T tensor.Float](x, y T) T { return x * y }
func div[T tensor.Float](x, y T) T { return x / y }

func exp[T tensor.Float](x T) T { return T(math.Exp(float64(x))) }
func log[T tensor.Float](x T) T { return T(math.Log(float64(x))) }

func relu[T tensor.Float](x T) T {
	if x > 0 {
		return x
	}
	return 0
}

// binary dispatches a broadcasting binary kernel on dtype.
func (cpu *CPUBackend) binary(
	op string,
	a, b *tensor.RawTensor,
	f32 func(x, y float32) float32,
	f64 func(x, y float64) float64,
) *tensor.RawTensor {
	dtype := requireFloat(op, a, b)
	outShape, _, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}
	result := cpu.newResult(op, outShape, dtype)

	switch dtype {
	case tensor.Float32:
		binaryKernel(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), a.Shape(), b.Shape(), outShape, f32, cpu.par)
	case tensor.Float64:
		binaryKernel(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), a.Shape(), b.Shape(), outShape, f64, cpu.par)
	}
	return result
}

// binaryKernel computes out[i] = f(a[ia], b[ib]) where ia/ib follow broadcast strides.
func binaryKernel[T tensor.Float](
	out, a, b []T,
	aShape, bShape, outShape tensor.Shape,
	f func(x, y T) T,
	cfg parallel.Config,
) {
	if aShape.Equal(bShape) {
		parallel.ForRange(len(out), func(start, end int) {
			for i := start; i < end; i++ {
				out[i] = f(a[i], b[i])
			}
		}, cfg)
		return
	}

	outStrides := outShape.ComputeStrides()
	aStrides := aShape.BroadcastStrides(outShape)
	bStrides := bShape.BroadcastStrides(outShape)
	parallel.ForRange(len(out), func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = f(a[sourceIndex(i, outStrides, aStrides)], b[sourceIndex(i, outStrides, bStrides)])
		}
	}, cfg)
}

// sourceIndex maps a flat output index to a flat index in a (possibly broadcast) input.
func sourceIndex(outIdx int, outStrides, inStrides []int) int {
	flat := 0
	for d, s := range outStrides {
		coord := outIdx / s
		outIdx %= s
		flat += coord * inStrides[d]
	}
	return flat
}

// unary dispatches an element-wise kernel on dtype.
func (cpu *CPUBackend) unary(
	op string,
	x *tensor.RawTensor,
	f32 func(float32) float32,
	f64 func(float64) float64,
) *tensor.RawTensor {
	dtype := requireFloat(op, x)
	result := cpu.newResult(op, x.Shape(), dtype)

	switch dtype {
	case tensor.Float32:
		unaryKernel(result.AsFloat32(), x.AsFloat32(), f32, cpu.par)
	case tensor.Float64:
		unaryKernel(result.AsFloat64(), x.AsFloat64(), f64, cpu.par)
	}
	return result
}

func unaryKernel[T tensor.Float](out, x []T, f func(T) T, cfg parallel.Config) {
	parallel.ForRange(len(out), func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = f(x[i])
		}
	}, cfg)
}
