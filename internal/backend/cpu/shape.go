package cpu

import (
	"fmt"

	"github.com/born-ml/customgrad/internal/tensor"
)

// Reshape returns a copy of t with a new shape holding the same number of elements.
// A single -1 dimension is inferred.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	shape := inferShape(newShape, t.NumElements())
	result, err := t.WithShape(shape)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return result
}

// inferShape replaces a single -1 entry with the size implied by numElements.
func inferShape(shape tensor.Shape, numElements int) tensor.Shape {
	out := shape.Clone()
	unknown := -1
	known := 1
	for i, d := range out {
		if d == -1 {
			if unknown >= 0 {
				panic("reshape: only one dimension can be -1")
			}
			unknown = i
			continue
		}
		known *= d
	}
	if unknown >= 0 && known > 0 {
		out[unknown] = numElements / known
	}
	return out
}

// Transpose permutes dimensions. With no axes, all dimensions are reversed.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)
	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	} else {
		axes = append([]int(nil), axes...)
	}
	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: got %d axes for %dD tensor", len(axes), ndim))
	}

	seen := make([]bool, ndim)
	outShape := make(tensor.Shape, ndim)
	for i, ax := range axes {
		ax = normalizeDim("transpose", ax, ndim)
		if seen[ax] {
			panic(fmt.Sprintf("transpose: repeated axis %d in %v", ax, axes))
		}
		seen[ax] = true
		axes[i] = ax
		outShape[i] = shape[ax]
	}

	result := cpu.newResult("transpose", outShape, t.DType())
	inStrides := t.Strides()
	permStrides := make([]int, ndim)
	for i, ax := range axes {
		permStrides[i] = inStrides[ax]
	}
	outStrides := outShape.ComputeStrides()

	switch t.DType() {
	case tensor.Float32:
		gather(result.AsFloat32(), t.AsFloat32(), outStrides, permStrides)
	case tensor.Float64:
		gather(result.AsFloat64(), t.AsFloat64(), outStrides, permStrides)
	case tensor.Int32:
		gather(result.AsInt32(), t.AsInt32(), outStrides, permStrides)
	}
	return result
}

// Expand broadcasts x to shape, materialising the repeated values.
func (cpu *CPUBackend) Expand(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	outShape, _, err := tensor.BroadcastShapes(x.Shape(), shape)
	if err != nil || !outShape.Equal(shape) {
		panic(fmt.Sprintf("expand: cannot broadcast %v to %v", x.Shape(), shape))
	}

	result := cpu.newResult("expand", shape, x.DType())
	outStrides := shape.ComputeStrides()
	inStrides := x.Shape().BroadcastStrides(shape)

	switch x.DType() {
	case tensor.Float32:
		gather(result.AsFloat32(), x.AsFloat32(), outStrides, inStrides)
	case tensor.Float64:
		gather(result.AsFloat64(), x.AsFloat64(), outStrides, inStrides)
	case tensor.Int32:
		gather(result.AsInt32(), x.AsInt32(), outStrides, inStrides)
	}
	return result
}

// gather copies src into out, reading src through inStrides for each output coordinate.
func gather[T tensor.DType](out, src []T, outStrides, inStrides []int) {
	for i := range out {
		out[i] = src[sourceIndex(i, outStrides, inStrides)]
	}
}
