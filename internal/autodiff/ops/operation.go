// Package ops defines the Operation interface recorded on the gradient tape
// and the backward rules of the built-in primitives.
//
// Each operation keeps references to the tensors its backward needs and
// computes input gradients from the output gradient:
//   - AddOp, SubOp: gradient passes through (negated for b in Sub)
//   - MulOp, DivOp: product and quotient rules
//   - MatMulOp: d(A@B)/dA = grad@B^T, d(A@B)/dB = A^T@grad
//   - ReLUOp, ExpOp, LogOp, SoftmaxOp: element-wise and row-wise derivatives
//   - SumOp, SumDimOp, ExpandOp, ReshapeOp, TransposeOp: shape bookkeeping
//
// Broadcast inputs get gradients reduced back to their own shape.
package ops

import "github.com/born-ml/customgrad/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// Returns one entry per element of Inputs(); a nil entry means no
	// gradient flows to that input.
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors for this operation.
	// Entries may be nil for arguments that are not tensors.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}

// node stores the inputs and output shared by every built-in operation.
type node struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

func newNode(output *tensor.RawTensor, inputs ...*tensor.RawTensor) node {
	return node{inputs: inputs, output: output}
}

// Inputs returns the input tensors.
func (n *node) Inputs() []*tensor.RawTensor {
	return n.inputs
}

// Output returns the output tensor.
func (n *node) Output() *tensor.RawTensor {
	return n.output
}
