// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides reverse-mode automatic differentiation and
// user-defined differentiable functions.
//
// A Function pairs a forward computation with a hand-written backward.
// Apply runs it on any backend; when the backend is an autodiff Backend that
// is recording, the call lands on the gradient tape like a built-in op and
// Backward routes gradients through the Function's Backward.
//
// Example:
//
//	square := autodiff.Define("square",
//	    func(ctx *autodiff.Context, args ...autodiff.Arg) *tensor.RawTensor {
//	        x := args[0].Tensor()
//	        ctx.SaveForBackward(x)
//	        return ctx.Backend().Mul(x, x)
//	    },
//	    func(ctx *autodiff.Context, grad *tensor.RawTensor) []autodiff.Grad {
//	        x := ctx.SavedTensor(0)
//	        b := ctx.Backend()
//	        return []autodiff.Grad{autodiff.GradOf(b.Mul(grad, b.MulScalar(x, 2)))}
//	    })
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	x, _ := tensor.FromSlice([]float64{1, 2, 3}, tensor.Shape{3}, backend)
//	y := tensor.New[float64](autodiff.Apply(backend, square, autodiff.TensorArg(x.Raw())), backend)
//	grads := autodiff.Backward(y.Sum(), backend)
//	fmt.Println(grads[x.Raw()].AsFloat64()) // [2 4 6]
package autodiff

import (
	"github.com/born-ml/customgrad/internal/autodiff"
	"github.com/born-ml/customgrad/internal/tensor"
)

// Backend is the autodiff-enabled backend.
type Backend[B tensor.Backend] = autodiff.AutodiffBackend[B]

// New creates a new autodiff backend wrapping the given backend.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
func New[B tensor.Backend](backend B) *Backend[B] {
	return autodiff.New(backend)
}

// GradientTape records operations for automatic differentiation.
type GradientTape = autodiff.GradientTape

// NewGradientTape creates a new gradient tape.
func NewGradientTape() *GradientTape {
	return autodiff.NewGradientTape()
}

// BackwardCapable is implemented by backends that own a gradient tape.
type BackwardCapable = autodiff.BackwardCapable

// TapeOwner is a BackwardCapable backend whose tape can be swapped.
type TapeOwner = autodiff.TapeOwner

// Backward computes gradients of t, seeding the output gradient with ones.
// The result maps every reached raw tensor to its gradient.
func Backward[T tensor.DType, B BackwardCapable](t *tensor.Tensor[T, B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	return autodiff.Backward(t, backend)
}

// BackwardRaw is Backward for an untyped output.
func BackwardRaw(output *tensor.RawTensor, backend BackwardCapable) map[*tensor.RawTensor]*tensor.RawTensor {
	return autodiff.BackwardRaw(output, backend)
}
