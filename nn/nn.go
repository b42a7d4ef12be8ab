// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the layers used to build classifiers on top of custom
// differentiable functions.
//
// Checkpoint wraps any Module so that its activations are recomputed in
// backward instead of kept on the tape; the loss is the custom
// softmax cross-entropy function.
//
// Example:
//
//	rng := rand.New(rand.NewSource(1))
//	model := nn.NewSequential[B](
//	    nn.NewCheckpoint[B](nn.NewSequential[B](nn.NewLinear(784, 128, rng, backend), nn.NewReLU[B]())),
//	    nn.NewLinear(128, 10, rng, backend),
//	)
//	loss := nn.NewCrossEntropyLoss[B]().Forward(model.Forward(x), labels)
package nn

import (
	"math/rand"

	"github.com/born-ml/customgrad/internal/nn"
	"github.com/born-ml/customgrad/internal/tensor"
)

// Module is the interface implemented by every layer.
type Module[B tensor.Backend] = nn.Module[B]

// Parameter is a trainable float32 tensor.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// NewParameter creates a parameter and marks its tensor as requiring grad.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// AssignGrads stores each parameter's gradient from a Backward result.
func AssignGrads[B tensor.Backend](params []*Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) {
	nn.AssignGrads(params, grads)
}

// CountParameters returns the total number of scalar parameters.
func CountParameters[B tensor.Backend](params []*Parameter[B]) int {
	return nn.CountParameters(params)
}

// Linear is a fully connected layer y = xWᵀ + b.
type Linear[B tensor.Backend] = nn.Linear[B]

// NewLinear creates a linear layer with Kaiming-uniform weights drawn from
// rng and zero bias.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, rng *rand.Rand, backend B) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, rng, backend)
}

// ReLU applies max(0, x).
type ReLU[B tensor.Backend] = nn.ReLU[B]

// NewReLU creates a ReLU layer.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return nn.NewReLU[B]()
}

// Flatten reshapes [N, ...] inputs to [N, features].
type Flatten[B tensor.Backend] = nn.Flatten[B]

// NewFlatten creates a Flatten layer.
func NewFlatten[B tensor.Backend]() *Flatten[B] {
	return nn.NewFlatten[B]()
}

// Sequential chains modules.
type Sequential[B tensor.Backend] = nn.Sequential[B]

// NewSequential creates a Sequential from modules.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential(modules...)
}

// Checkpoint recomputes the wrapped module's activations during backward.
type Checkpoint[B tensor.Backend] = nn.Checkpoint[B]

// NewCheckpoint wraps module with gradient checkpointing.
func NewCheckpoint[B tensor.Backend](module Module[B]) *Checkpoint[B] {
	return nn.NewCheckpoint(module)
}

// CrossEntropyLoss is the mean softmax cross-entropy of logits against int32
// labels.
type CrossEntropyLoss[B tensor.Backend] = nn.CrossEntropyLoss[B]

// NewCrossEntropyLoss creates the loss.
func NewCrossEntropyLoss[B tensor.Backend]() *CrossEntropyLoss[B] {
	return nn.NewCrossEntropyLoss[B]()
}

// Accuracy returns the fraction of rows whose arg-max logit equals the label.
func Accuracy[B tensor.Backend](logits *tensor.Tensor[float32, B], labels *tensor.Tensor[int32, B]) float32 {
	return nn.Accuracy(logits, labels)
}
