// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package autodiff

import (
	"github.com/born-ml/customgrad/internal/autodiff"
	"github.com/born-ml/customgrad/internal/tensor"
)

// Function is a differentiable operation with a user-supplied backward.
//
// Forward receives one Arg per input and returns a freshly allocated output.
// Backward receives the gradient of the loss with respect to that output and
// returns exactly one Grad per input: NoGrad() for constants and for inputs
// whose NeedsInputGrad is false, otherwise a gradient shaped like the input.
type Function = autodiff.Function

// ForwardFunc is the forward half of a Function built with Define.
type ForwardFunc = autodiff.ForwardFunc

// BackwardFunc is the backward half of a Function built with Define.
type BackwardFunc = autodiff.BackwardFunc

// Context carries state from Forward to Backward for one invocation. It is
// consumed by the first Backward call.
type Context = autodiff.Context

// Arg is one input of a Function: a tensor or a float constant.
type Arg = autodiff.Arg

// Grad is one Backward result: a gradient tensor or no gradient.
type Grad = autodiff.Grad

// FunctionOp is the tape record of one Apply call.
type FunctionOp = autodiff.FunctionOp

// Registry maps function names to Functions.
type Registry = autodiff.Registry

// Contract violations are raised with panic and wrap ErrContractViolation.
var (
	ErrContractViolation  = autodiff.ErrContractViolation
	ErrMissingSavedState  = autodiff.ErrMissingSavedState
	ErrGradientCount      = autodiff.ErrGradientCount
	ErrGradientShape      = autodiff.ErrGradientShape
	ErrUnexpectedGradient = autodiff.ErrUnexpectedGradient
	ErrContextConsumed    = autodiff.ErrContextConsumed
	ErrInvalidArgument    = autodiff.ErrInvalidArgument
)

// Registry errors.
var (
	ErrUnknownFunction   = autodiff.ErrUnknownFunction
	ErrDuplicateFunction = autodiff.ErrDuplicateFunction
)

// Define builds a Function from a forward and a backward closure.
func Define(name string, forward ForwardFunc, backward BackwardFunc) Function {
	return autodiff.Define(name, forward, backward)
}

// TensorArg passes t to a Function.
func TensorArg(t *tensor.RawTensor) Arg {
	return autodiff.TensorArg(t)
}

// TrackedArg passes t to a Function, differentiable only when
// t.RequiresGrad() holds.
func TrackedArg(t *tensor.RawTensor) Arg {
	return autodiff.TrackedArg(t)
}

// ConstArg passes a float constant to a Function. Constants never receive
// gradients.
func ConstArg(v float64) Arg {
	return autodiff.ConstArg(v)
}

// GradOf returns a Grad holding t.
func GradOf(t *tensor.RawTensor) Grad {
	return autodiff.GradOf(t)
}

// NoGrad marks a Backward result slot as carrying no gradient.
func NoGrad() Grad {
	return autodiff.NoGrad()
}

// Apply runs fn on backend and records it on the tape when gradients are
// needed.
func Apply(backend tensor.Backend, fn Function, args ...Arg) *tensor.RawTensor {
	return autodiff.Apply(backend, fn, args...)
}

// Forward runs fn without recording and returns the output with its Context,
// for driving Backward by hand via CallBackward.
func Forward(backend tensor.Backend, fn Function, args ...Arg) (*tensor.RawTensor, *Context) {
	return autodiff.Forward(backend, fn, args...)
}

// CallBackward runs fn.Backward for ctx and validates the result.
func CallBackward(fn Function, ctx *Context, grad *tensor.RawTensor) []Grad {
	return autodiff.CallBackward(fn, ctx, grad)
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return autodiff.NewRegistry()
}

// Register adds fn to the default registry.
func Register(fn Function) error {
	return autodiff.Register(fn)
}

// MustRegister is Register that panics on error.
func MustRegister(fn Function) {
	autodiff.MustRegister(fn)
}

// Lookup finds a function in the default registry.
func Lookup(name string) (Function, error) {
	return autodiff.Lookup(name)
}

// ApplyByName looks name up in the default registry and applies it.
func ApplyByName(backend tensor.Backend, name string, args ...Arg) (*tensor.RawTensor, error) {
	return autodiff.ApplyByName(backend, name, args...)
}
