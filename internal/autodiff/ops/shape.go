package ops

import "github.com/born-ml/customgrad/internal/tensor"

// ReshapeOp records a reshape so gradients reach the original tensor.
//
// Backward: grad_x = reshape(grad, x.shape).
type ReshapeOp struct{ node }

// NewReshapeOp creates a new ReshapeOp.
func NewReshapeOp(x, output *tensor.RawTensor) *ReshapeOp {
	return &ReshapeOp{newNode(output, x)}
}

// Backward reshapes the gradient back to the input shape.
func (op *ReshapeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Reshape(outputGrad, op.inputs[0].Shape())}
}

// TransposeOp records an axis permutation.
//
// Backward: grad_x = transpose(grad, inverse(axes)).
type TransposeOp struct {
	node
	axes []int
}

// NewTransposeOp creates a new TransposeOp. Empty axes means full reversal.
func NewTransposeOp(x, output *tensor.RawTensor, axes []int) *TransposeOp {
	perm := append([]int(nil), axes...)
	if len(perm) == 0 {
		n := len(x.Shape())
		perm = make([]int, n)
		for i := range perm {
			perm[i] = n - 1 - i
		}
	}
	for i, a := range perm {
		if a < 0 {
			perm[i] = a + len(perm)
		}
	}
	return &TransposeOp{node: newNode(output, x), axes: perm}
}

// Backward applies the inverse permutation to the gradient.
func (op *TransposeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Transpose(outputGrad, inversePermutation(op.axes)...)}
}

// ExpandOp records a broadcast to a larger shape.
//
// Backward: grad_x = sum of grad over the broadcast dimensions.
type ExpandOp struct{ node }

// NewExpandOp creates a new ExpandOp.
func NewExpandOp(x, output *tensor.RawTensor) *ExpandOp {
	return &ExpandOp{newNode(output, x)}
}

// Backward reduces the gradient back to the input shape.
func (op *ExpandOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{ReduceBroadcast(outputGrad, op.inputs[0].Shape(), backend)}
}

// SumOp represents output = Σx (scalar).
//
// Backward: every element of x receives the scalar upstream gradient.
type SumOp struct{ node }

// NewSumOp creates a new SumOp.
func NewSumOp(x, output *tensor.RawTensor) *SumOp {
	return &SumOp{newNode(output, x)}
}

// Backward broadcasts the scalar gradient to the input shape.
func (op *SumOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Expand(outputGrad, op.inputs[0].Shape())}
}

// SumDimOp represents output = sum(x, dim, keepDim).
//
// Backward: grad_x = broadcast(grad, x.shape), re-inserting dim when it was dropped.
type SumDimOp struct {
	node
	dim     int
	keepDim bool
}

// NewSumDimOp creates a new SumDimOp.
func NewSumDimOp(x, output *tensor.RawTensor, dim int, keepDim bool) *SumDimOp {
	if dim < 0 {
		dim += len(x.Shape())
	}
	return &SumDimOp{node: newNode(output, x), dim: dim, keepDim: keepDim}
}

// Backward broadcasts the gradient back over the reduced dimension.
func (op *SumDimOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inShape := op.inputs[0].Shape()
	grad := outputGrad
	if !op.keepDim {
		kept := inShape.Clone()
		kept[op.dim] = 1
		grad = backend.Reshape(grad, kept)
	}
	return []*tensor.RawTensor{backend.Expand(grad, inShape)}
}
