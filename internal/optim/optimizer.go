// Package optim implements optimization algorithms for training neural networks.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation
//   - New: construction by name, as used by the CLI and training config
//
// Updates are written straight into parameter storage, so Step must run
// with the tape stopped.
//
// Example usage:
//
//	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 0.001})
//
//	backend.Tape().Clear()
//	backend.Tape().StartRecording()
//	loss := criterion.Forward(model.Forward(input), labels)
//	grads := autodiff.Backward(loss, backend)
//	backend.Tape().StopRecording()
//
//	optimizer.Step(grads)
package optim

import (
	"strings"

	"github.com/born-ml/customgrad/internal/nn"
	"github.com/born-ml/customgrad/internal/tensor"
	"github.com/pkg/errors"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies gradient updates to all parameters, reading each
	// parameter's gradient from the map returned by autodiff.Backward.
	// Parameters without a gradient are left untouched.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32

	// SetLR changes the learning rate.
	SetLR(lr float32)
}

// ErrUnknownOptimizer is returned by New for unsupported names.
var ErrUnknownOptimizer = errors.New("unknown optimizer")

// Names lists the optimizers accepted by New.
var Names = []string{"sgd", "adam"}

// New creates the optimizer called name ("sgd" or "adam", case-insensitive)
// with learning rate lr and default settings otherwise. SGD gets momentum 0.9.
func New[B tensor.Backend](name string, params []*nn.Parameter[B], lr float32) (Optimizer, error) {
	switch strings.ToLower(name) {
	case "sgd":
		return NewSGD(params, SGDConfig{LR: lr, Momentum: 0.9}), nil
	case "adam":
		return NewAdam(params, AdamConfig{LR: lr}), nil
	default:
		return nil, errors.Wrapf(ErrUnknownOptimizer, "%q (want one of %s)", name, strings.Join(Names, ", "))
	}
}

// gradientOf returns the float32 gradient of param, or nil when param did
// not take part in the computation.
func gradientOf[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) []float32 {
	g, ok := grads[param.Tensor().Raw()]
	if !ok || g == nil {
		return nil
	}
	return g.AsFloat32()
}

func zeroGrads[B tensor.Backend](params []*nn.Parameter[B]) {
	for _, p := range params {
		p.ZeroGrad()
	}
}
