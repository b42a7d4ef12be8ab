// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides optimizers that apply gradients from
// autodiff.Backward to nn parameters.
//
// Example:
//
//	opt := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 1e-3})
//	grads := autodiff.Backward(loss, backend)
//	opt.Step(grads)
package optim

import (
	"github.com/born-ml/customgrad/internal/nn"
	"github.com/born-ml/customgrad/internal/optim"
	"github.com/born-ml/customgrad/internal/tensor"
)

// Optimizer updates parameters in place from a gradient map.
type Optimizer = optim.Optimizer

// Names lists the optimizers New understands.
var Names = optim.Names

// ErrUnknownOptimizer is returned by New for unsupported names.
var ErrUnknownOptimizer = optim.ErrUnknownOptimizer

// New creates an optimizer by name ("sgd" or "adam") with defaults for
// everything except the learning rate.
func New[B tensor.Backend](name string, params []*nn.Parameter[B], lr float32) (Optimizer, error) {
	return optim.New(name, params, lr)
}

// SGD is stochastic gradient descent with optional momentum.
type SGD[B tensor.Backend] = optim.SGD[B]

// SGDConfig configures SGD.
type SGDConfig = optim.SGDConfig

// NewSGD creates an SGD optimizer.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig) *SGD[B] {
	return optim.NewSGD(params, config)
}

// Adam is the Adam optimizer with bias correction.
type Adam[B tensor.Backend] = optim.Adam[B]

// AdamConfig configures Adam.
type AdamConfig = optim.AdamConfig

// NewAdam creates an Adam optimizer.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig) *Adam[B] {
	return optim.NewAdam(params, config)
}
