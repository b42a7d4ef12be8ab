package cpu

import (
	"math"

	"github.com/born-ml/customgrad/internal/parallel"
	"github.com/born-ml/customgrad/internal/tensor"
)

// Sum reduces all elements to a scalar (shape []).
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	dtype := requireFloat("sum", x)
	result := cpu.newResult("sum", tensor.Shape{}, dtype)
	switch dtype {
	case tensor.Float32:
		result.AsFloat32()[0] = sumAll(x.AsFloat32())
	case tensor.Float64:
		result.AsFloat64()[0] = sumAll(x.AsFloat64())
	}
	return result
}

func sumAll[T tensor.Float](data []T) T {
	var s T
	for _, v := range data {
		s += v
	}
	return s
}

// SumDim sums tensor elements along dim (negative dims count from the end).
// With keepDim the reduced dimension stays with size 1.
//
// Example:
//
//	x := ... // shape [2, 3, 4]
//	backend.SumDim(x, -1, true)  // shape [2, 3, 1]
//	backend.SumDim(x, -1, false) // shape [2, 3]
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	dtype := requireFloat("sumdim", x)
	shape := x.Shape()
	dim = normalizeDim("sumdim", dim, len(shape))

	outer, size, inner := splitAt(shape, dim)
	result := cpu.newResult("sumdim", reducedShape(shape, dim, keepDim), dtype)

	switch dtype {
	case tensor.Float32:
		sumDimKernel(result.AsFloat32(), x.AsFloat32(), outer, size, inner)
	case tensor.Float64:
		sumDimKernel(result.AsFloat64(), x.AsFloat64(), outer, size, inner)
	}
	return result
}

func sumDimKernel[T tensor.Float](out, x []T, outer, size, inner int) {
	for o := 0; o < outer; o++ {
		base := o * size * inner
		for in := 0; in < inner; in++ {
			var s T
			for k := 0; k < size; k++ {
				s += x[base+k*inner+in]
			}
			out[o*inner+in] = s
		}
	}
}

// Softmax computes exp(x - max) / Σ exp(x - max) along dim.
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	dtype := requireFloat("softmax", x)
	shape := x.Shape()
	dim = normalizeDim("softmax", dim, len(shape))
	outer, size, inner := splitAt(shape, dim)
	result := cpu.newResult("softmax", shape, dtype)

	switch dtype {
	case tensor.Float32:
		softmaxKernel(result.AsFloat32(), x.AsFloat32(), outer, size, inner, cpu.par)
	case tensor.Float64:
		softmaxKernel(result.AsFloat64(), x.AsFloat64(), outer, size, inner, cpu.par)
	}
	return result
}

func softmaxKernel[T tensor.Float](out, x []T, outer, size, inner int, cfg parallel.Config) {
	parallel.For(outer*inner, func(row int) {
		o, in := row/inner, row%inner
		base := o*size*inner + in

		maxVal := math.Inf(-1)
		for k := 0; k < size; k++ {
			maxVal = math.Max(maxVal, float64(x[base+k*inner]))
		}
		var total float64
		for k := 0; k < size; k++ {
			e := math.Exp(float64(x[base+k*inner]) - maxVal)
			out[base+k*inner] = T(e)
			total += e
		}
		for k := 0; k < size; k++ {
			out[base+k*inner] = T(float64(out[base+k*inner]) / total)
		}
	}, cfg)
}

// Argmax returns int32 indices of the maximum along dim; dim is removed.
func (cpu *CPUBackend) Argmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	dtype := requireFloat("argmax", x)
	shape := x.Shape()
	dim = normalizeDim("argmax", dim, len(shape))
	outer, size, inner := splitAt(shape, dim)
	result := cpu.newResult("argmax", reducedShape(shape, dim, false), tensor.Int32)

	switch dtype {
	case tensor.Float32:
		argmaxKernel(result.AsInt32(), x.AsFloat32(), outer, size, inner)
	case tensor.Float64:
		argmaxKernel(result.AsInt32(), x.AsFloat64(), outer, size, inner)
	}
	return result
}

func argmaxKernel[T tensor.Float](out []int32, x []T, outer, size, inner int) {
	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			base := o*size*inner + in
			best := 0
			for k := 1; k < size; k++ {
				if x[base+k*inner] > x[base+best*inner] {
					best = k
				}
			}
			out[o*inner+in] = int32(best) //nolint:gosec // bounded by dimension size
		}
	}
}

// splitAt views shape as [outer, shape[dim], inner].
func splitAt(shape tensor.Shape, dim int) (outer, size, inner int) {
	outer, inner = 1, 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	for i := dim + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	return outer, shape[dim], inner
}

// reducedShape drops dim, or sets it to 1 when keepDim is true.
func reducedShape(shape tensor.Shape, dim int, keepDim bool) tensor.Shape {
	if keepDim {
		out := shape.Clone()
		out[dim] = 1
		return out
	}
	out := make(tensor.Shape, 0, len(shape)-1)
	for i, d := range shape {
		if i != dim {
			out = append(out, d)
		}
	}
	return out
}
