// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package autodiff_test

import (
	"testing"

	"github.com/born-ml/customgrad/autodiff"
	"github.com/born-ml/customgrad/backend/cpu"
	"github.com/born-ml/customgrad/tensor"
	"github.com/gomlx/exceptions"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var square = autodiff.Define("public_square",
	func(ctx *autodiff.Context, args ...autodiff.Arg) *tensor.RawTensor {
		x := args[0].Tensor()
		ctx.SaveForBackward(x)
		return ctx.Backend().Mul(x, x)
	},
	func(ctx *autodiff.Context, grad *tensor.RawTensor) []autodiff.Grad {
		x := ctx.SavedTensor(0)
		b := ctx.Backend()
		return []autodiff.Grad{autodiff.GradOf(b.Mul(grad, b.MulScalar(x, 2)))}
	})

func TestApplyAndBackward(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x := must.M1(tensor.FromSlice([]float64{1, 2, 3}, tensor.Shape{3}, backend))
	y := tensor.New[float64](autodiff.Apply(backend, square, autodiff.TensorArg(x.Raw())), backend)
	assert.Equal(t, []float64{1, 4, 9}, y.Data())

	grads := autodiff.Backward(y.Sum(), backend)
	require.NotNil(t, grads[x.Raw()])
	assert.Equal(t, []float64{2, 4, 6}, grads[x.Raw()].AsFloat64())
}

func TestForwardAndCallBackward(t *testing.T) {
	backend := cpu.New()
	x := must.M1(tensor.RawFromFloat64([]float64{-1, 0.5}, tensor.Shape{2}, tensor.Float64, tensor.CPU))
	out, ctx := autodiff.Forward(backend, square, autodiff.TensorArg(x))
	assert.Equal(t, []float64{1, 0.25}, out.AsFloat64())

	upstream := must.M1(tensor.RawFromFloat64([]float64{1, 1}, tensor.Shape{2}, tensor.Float64, tensor.CPU))
	grads := autodiff.CallBackward(square, ctx, upstream)
	require.Len(t, grads, 1)
	assert.Equal(t, []float64{-2, 1}, grads[0].Tensor().AsFloat64())

	err := exceptions.TryCatch[error](func() { autodiff.CallBackward(square, ctx, upstream) })
	require.Error(t, err)
	assert.True(t, errors.Is(err, autodiff.ErrContextConsumed))
	assert.True(t, errors.Is(err, autodiff.ErrContractViolation))
}

func TestConstantSlotRejectsGradient(t *testing.T) {
	scaleBad := autodiff.Define("public_scale_bad",
		func(ctx *autodiff.Context, args ...autodiff.Arg) *tensor.RawTensor {
			return ctx.Backend().MulScalar(args[0].Tensor(), args[1].Value())
		},
		func(_ *autodiff.Context, grad *tensor.RawTensor) []autodiff.Grad {
			return []autodiff.Grad{autodiff.GradOf(grad), autodiff.GradOf(grad)}
		})

	backend := cpu.New()
	x := must.M1(tensor.RawFromFloat64([]float64{1, 2}, tensor.Shape{2}, tensor.Float64, tensor.CPU))
	_, ctx := autodiff.Forward(backend, scaleBad, autodiff.TensorArg(x), autodiff.ConstArg(3))
	err := exceptions.TryCatch[error](func() { autodiff.CallBackward(scaleBad, ctx, x.Clone()) })
	assert.True(t, errors.Is(err, autodiff.ErrUnexpectedGradient))
}

func TestRegistry(t *testing.T) {
	if _, err := autodiff.Lookup("public_square"); err != nil {
		require.NoError(t, autodiff.Register(square))
	}
	assert.True(t, errors.Is(autodiff.Register(square), autodiff.ErrDuplicateFunction))

	fn := must.M1(autodiff.Lookup("public_square"))
	assert.Equal(t, "public_square", fn.Name())

	backend := cpu.New()
	x := must.M1(tensor.RawFromFloat64([]float64{3}, tensor.Shape{1}, tensor.Float64, tensor.CPU))
	out := must.M1(autodiff.ApplyByName(backend, "public_square", autodiff.TensorArg(x)))
	assert.Equal(t, []float64{9}, out.AsFloat64())

	_, err := autodiff.ApplyByName(backend, "missing", autodiff.TensorArg(x))
	assert.True(t, errors.Is(err, autodiff.ErrUnknownFunction))

	r := autodiff.NewRegistry()
	r.MustRegister(square)
	assert.Equal(t, []string{"public_square"}, r.Names())
}
