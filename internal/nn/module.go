// Package nn implements the neural network modules used to train classifiers
// with customgrad.
//
// This package provides:
//   - Module interface: Base interface for all NN components
//   - Parameter: Trainable parameters with gradient tracking
//   - Linear, ReLU, Flatten: layers
//   - Sequential: Container for stacking layers
//   - Checkpoint: gradient checkpointing wrapper built on autodiff.Function
//   - CrossEntropyLoss, Accuracy: classification objective and metric
//
// Modules run on any tensor.Backend; wrap the backend with autodiff.New to
// train them.
package nn

import (
	"github.com/born-ml/customgrad/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Modules can be composed to build complex architectures:
//
//	model := nn.NewSequential[B](
//	    nn.NewLinear(784, 128, rng, backend),
//	    nn.NewReLU[B](),
//	    nn.NewLinear(128, 10, rng, backend),
//	)
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module, or nil
	// for modules without any (e.g. activations).
	Parameters() []*Parameter[B]
}
