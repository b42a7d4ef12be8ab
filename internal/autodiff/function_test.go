package autodiff_test

import (
	"testing"

	"github.com/born-ml/customgrad/internal/autodiff"
	"github.com/born-ml/customgrad/internal/tensor"
	"github.com/gomlx/exceptions"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// square computes x² and saves x for backward.
var square = autodiff.Define("square",
	func(ctx *autodiff.Context, args ...autodiff.Arg) *tensor.RawTensor {
		x := args[0].Tensor()
		ctx.SaveForBackward(x)
		return ctx.Backend().Mul(x, x)
	},
	func(ctx *autodiff.Context, grad *tensor.RawTensor) []autodiff.Grad {
		b := ctx.Backend()
		x := ctx.SavedTensor(0)
		return []autodiff.Grad{autodiff.GradOf(b.Mul(grad, b.MulScalar(x, 2)))}
	})

// scale computes x * k for a constant k.
var scale = autodiff.Define("scale",
	func(ctx *autodiff.Context, args ...autodiff.Arg) *tensor.RawTensor {
		k := args[1].Value()
		ctx.SetConstant("k", k)
		return ctx.Backend().MulScalar(args[0].Tensor(), k)
	},
	func(ctx *autodiff.Context, grad *tensor.RawTensor) []autodiff.Grad {
		return []autodiff.Grad{
			autodiff.GradOf(ctx.Backend().MulScalar(grad, ctx.Constant("k"))),
			autodiff.NoGrad(),
		}
	})

func catch(fn func()) error {
	return exceptions.TryCatch[error](fn)
}

// brokenBackward returns a function whose backward is replaced by bw.
func brokenBackward(bw autodiff.BackwardFunc) autodiff.Function {
	return autodiff.Define("broken",
		func(ctx *autodiff.Context, args ...autodiff.Arg) *tensor.RawTensor {
			return args[0].Tensor().Clone()
		}, bw)
}

func TestApply_RecordsSingleOperation(t *testing.T) {
	backend := newBackend()
	backend.Tape().StartRecording()

	x := raw64([]float64{1, 2, 3}, 3)
	y := autodiff.Apply(backend, square, autodiff.TensorArg(x))

	assert.Equal(t, []float64{1, 4, 9}, y.AsFloat64())
	assert.Equal(t, 1, backend.Tape().NumOps(), "primitives inside forward must not be recorded")
	assert.True(t, backend.Tape().IsRecording(), "recording state restored after forward")
}

func TestApply_NotRecordedWithoutGradients(t *testing.T) {
	backend := newBackend()
	x := raw64([]float64{1, 2}, 2)

	autodiff.Apply(backend, square, autodiff.TensorArg(x))
	assert.Equal(t, 0, backend.Tape().NumOps(), "tape not recording")

	backend.Tape().StartRecording()
	autodiff.Apply(backend, square, autodiff.TensorArg(x).NoGrad())
	assert.Equal(t, 0, backend.Tape().NumOps(), "no argument requires a gradient")
}

func TestApply_BackwardThroughTape(t *testing.T) {
	backend := newBackend()
	backend.Tape().StartRecording()

	// loss = sum(scale(square(x), 3)) → dloss/dx = 6x
	x := raw64([]float64{1, -2, 0.5}, 3)
	y := autodiff.Apply(backend, square, autodiff.TensorArg(x))
	z := autodiff.Apply(backend, scale, autodiff.TensorArg(y), autodiff.ConstArg(3))
	loss := backend.Sum(z)

	grads := autodiff.BackwardRaw(loss, backend)
	require.NotNil(t, grads[x])
	assert.InDeltaSlice(t, []float64{6, -12, 3}, grads[x].AsFloat64(), 1e-12)
}

func TestApply_GradientAccumulatesAcrossUses(t *testing.T) {
	backend := newBackend()
	backend.Tape().StartRecording()

	x := raw64([]float64{2, 3}, 2)
	a := autodiff.Apply(backend, square, autodiff.TensorArg(x))
	b := autodiff.Apply(backend, square, autodiff.TensorArg(x))
	loss := backend.Sum(backend.Add(a, b))

	grads := autodiff.BackwardRaw(loss, backend)
	assert.InDeltaSlice(t, []float64{8, 12}, grads[x].AsFloat64(), 1e-12)
}

func TestApply_IntegerTensorIsNotDifferentiable(t *testing.T) {
	labels := must.M1(tensor.RawFromFloat64([]float64{1, 0}, tensor.Shape{2}, tensor.Int32, tensor.CPU))
	arg := autodiff.TensorArg(labels)
	assert.True(t, arg.IsTensor())
	assert.False(t, arg.RequiresGrad())

	c := autodiff.ConstArg(1.5)
	assert.False(t, c.IsTensor())
	assert.False(t, c.RequiresGrad())
	assert.Equal(t, 1.5, c.Value())
}

func TestForward_OutputAliasingInputPanics(t *testing.T) {
	identity := autodiff.Define("identity",
		func(_ *autodiff.Context, args ...autodiff.Arg) *tensor.RawTensor { return args[0].Tensor() },
		func(_ *autodiff.Context, grad *tensor.RawTensor) []autodiff.Grad {
			return []autodiff.Grad{autodiff.GradOf(grad)}
		})
	err := catch(func() {
		autodiff.Forward(newBackend(), identity, autodiff.TensorArg(raw64([]float64{1}, 1)))
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, autodiff.ErrInvalidArgument))
}

func TestCallBackward_Contract(t *testing.T) {
	x := raw64([]float64{1, 2}, 2)
	upstream := raw64([]float64{1, 1}, 2)

	tests := []struct {
		name    string
		fn      autodiff.Function
		args    []autodiff.Arg
		wantErr error
	}{
		{
			name: "missing saved tensor",
			fn: brokenBackward(func(ctx *autodiff.Context, _ *tensor.RawTensor) []autodiff.Grad {
				return []autodiff.Grad{autodiff.GradOf(ctx.SavedTensor(0))}
			}),
			args:    []autodiff.Arg{autodiff.TensorArg(x)},
			wantErr: autodiff.ErrMissingSavedState,
		},
		{
			name: "missing constant",
			fn: brokenBackward(func(ctx *autodiff.Context, g *tensor.RawTensor) []autodiff.Grad {
				return []autodiff.Grad{autodiff.GradOf(ctx.Backend().MulScalar(g, ctx.Constant("alpha")))}
			}),
			args:    []autodiff.Arg{autodiff.TensorArg(x)},
			wantErr: autodiff.ErrMissingSavedState,
		},
		{
			name: "too few gradients",
			fn: brokenBackward(func(_ *autodiff.Context, g *tensor.RawTensor) []autodiff.Grad {
				return []autodiff.Grad{autodiff.GradOf(g)}
			}),
			args:    []autodiff.Arg{autodiff.TensorArg(x), autodiff.ConstArg(2)},
			wantErr: autodiff.ErrGradientCount,
		},
		{
			name: "too many gradients",
			fn: brokenBackward(func(_ *autodiff.Context, g *tensor.RawTensor) []autodiff.Grad {
				return []autodiff.Grad{autodiff.GradOf(g), autodiff.NoGrad()}
			}),
			args:    []autodiff.Arg{autodiff.TensorArg(x)},
			wantErr: autodiff.ErrGradientCount,
		},
		{
			name: "wrong gradient shape",
			fn: brokenBackward(func(_ *autodiff.Context, _ *tensor.RawTensor) []autodiff.Grad {
				return []autodiff.Grad{autodiff.GradOf(raw64([]float64{1, 2, 3}, 3))}
			}),
			args:    []autodiff.Arg{autodiff.TensorArg(x)},
			wantErr: autodiff.ErrGradientShape,
		},
		{
			name: "gradient for constant",
			fn: brokenBackward(func(_ *autodiff.Context, g *tensor.RawTensor) []autodiff.Grad {
				return []autodiff.Grad{autodiff.GradOf(g), autodiff.GradOf(g)}
			}),
			args:    []autodiff.Arg{autodiff.TensorArg(x), autodiff.ConstArg(2)},
			wantErr: autodiff.ErrUnexpectedGradient,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ctx := autodiff.Forward(newBackend(), tt.fn, tt.args...)
			err := catch(func() { autodiff.CallBackward(tt.fn, ctx, upstream) })
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.True(t, errors.Is(err, autodiff.ErrContractViolation))
		})
	}
}

func TestCallBackward_UpstreamShapeChecked(t *testing.T) {
	x := raw64([]float64{1, 2}, 2)
	_, ctx := autodiff.Forward(newBackend(), square, autodiff.TensorArg(x))
	err := catch(func() { autodiff.CallBackward(square, ctx, raw64([]float64{1}, 1)) })
	assert.True(t, errors.Is(err, autodiff.ErrGradientShape))
}

func TestCallBackward_ContextConsumedOnce(t *testing.T) {
	x := raw64([]float64{3}, 1)
	g := raw64([]float64{1}, 1)
	_, ctx := autodiff.Forward(newBackend(), square, autodiff.TensorArg(x))

	grads := autodiff.CallBackward(square, ctx, g)
	require.Len(t, grads, 1)
	assert.Equal(t, []float64{6}, grads[0].Tensor().AsFloat64())
	assert.Zero(t, ctx.SavedBytes(), "saved state released after backward")

	err := catch(func() { autodiff.CallBackward(square, ctx, g) })
	assert.True(t, errors.Is(err, autodiff.ErrContextConsumed))
}

func TestCallBackward_DropsGradientForNoGradTensor(t *testing.T) {
	passthrough := autodiff.Define("passthrough2",
		func(ctx *autodiff.Context, args ...autodiff.Arg) *tensor.RawTensor {
			return ctx.Backend().Add(args[0].Tensor(), args[1].Tensor())
		},
		func(_ *autodiff.Context, g *tensor.RawTensor) []autodiff.Grad {
			return []autodiff.Grad{autodiff.GradOf(g), autodiff.GradOf(g)}
		})
	a := raw64([]float64{1, 2}, 2)
	b := raw64([]float64{3, 4}, 2)
	_, ctx := autodiff.Forward(newBackend(), passthrough, autodiff.TensorArg(a), autodiff.TensorArg(b).NoGrad())

	assert.True(t, ctx.NeedsInputGrad(0))
	assert.False(t, ctx.NeedsInputGrad(1))

	grads := autodiff.CallBackward(passthrough, ctx, raw64([]float64{1, 1}, 2))
	require.Len(t, grads, 2)
	assert.False(t, grads[0].IsNone())
	assert.True(t, grads[1].IsNone())
}

func TestContext_SaveForBackwardOnlyOnce(t *testing.T) {
	twice := autodiff.Define("twice",
		func(ctx *autodiff.Context, args ...autodiff.Arg) *tensor.RawTensor {
			ctx.SaveForBackward(args[0].Tensor())
			ctx.SaveForBackward(args[0].Tensor())
			return args[0].Tensor().Clone()
		},
		func(_ *autodiff.Context, g *tensor.RawTensor) []autodiff.Grad {
			return []autodiff.Grad{autodiff.GradOf(g)}
		})
	err := catch(func() { autodiff.Forward(newBackend(), twice, autodiff.TensorArg(raw64([]float64{1}, 1))) })
	assert.True(t, errors.Is(err, autodiff.ErrInvalidArgument))
}

func TestContext_Accessors(t *testing.T) {
	x := raw64([]float64{1, 2, 3, 4}, 2, 2)
	_, ctx := autodiff.Forward(newBackend(), scale, autodiff.TensorArg(x), autodiff.ConstArg(0.5))

	assert.Equal(t, "scale", ctx.Name())
	assert.Equal(t, 2, ctx.NumInputs())
	assert.Equal(t, tensor.Shape{2, 2}, ctx.InputShape(0))
	assert.Nil(t, ctx.InputShape(1))
	assert.Equal(t, 0.5, ctx.Constant("k"))
	assert.Panics(t, func() { ctx.NeedsInputGrad(2) })
}

func TestGrad(t *testing.T) {
	assert.True(t, autodiff.NoGrad().IsNone())
	assert.True(t, autodiff.GradOf(nil).IsNone())
	assert.Equal(t, "NoGrad", autodiff.NoGrad().String())

	g := autodiff.GradOf(raw64([]float64{1, 2}, 2))
	assert.False(t, g.IsNone())
	assert.Equal(t, "Grad[2]", g.String())
}
