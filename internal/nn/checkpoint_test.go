package nn_test

import (
	"math/rand"
	"testing"

	"github.com/born-ml/customgrad/internal/autodiff"
	"github.com/born-ml/customgrad/internal/backend/cpu"
	"github.com/born-ml/customgrad/internal/nn"
	"github.com/born-ml/customgrad/internal/tensor"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildBlock(seed int64, backend Backend) *nn.Sequential[Backend] {
	rng := rand.New(rand.NewSource(seed))
	return nn.NewSequential[Backend](
		nn.NewLinear(3, 5, rng, backend),
		nn.NewReLU[Backend](),
		nn.NewLinear(5, 4, rng, backend),
		nn.NewReLU[Backend](),
	)
}

// lossAndGrads runs block followed by a linear head and returns the loss and
// the gradients of every parameter plus the input.
func lossAndGrads(t *testing.T, block nn.Module[Backend], backend Backend) (float32, [][]float32, int) {
	t.Helper()
	rng := rand.New(rand.NewSource(11))
	head := nn.NewLinear(4, 2, rng, backend)
	x := tensor.RandnWith[float32](tensor.Shape{6, 3}, rng, backend).RequireGrad()
	labels := must.M1(tensor.FromSlice([]int32{0, 1, 1, 0, 1, 0}, tensor.Shape{6}, backend))

	tape := backend.Tape()
	tape.Clear()
	tape.StartRecording()
	loss := nn.NewCrossEntropyLoss[Backend]().Forward(head.Forward(block.Forward(x)), labels)
	numOps := tape.NumOps()
	grads := autodiff.Backward(loss, backend)
	tape.StopRecording()

	var out [][]float32
	for _, p := range append(block.Parameters(), head.Parameters()...) {
		g := grads[p.Tensor().Raw()]
		require.NotNil(t, g, p.Name())
		out = append(out, g.AsFloat32())
	}
	require.NotNil(t, grads[x.Raw()])
	out = append(out, grads[x.Raw()].AsFloat32())
	return loss.Item(), out, numOps
}

func TestCheckpoint_MatchesPlainGradients(t *testing.T) {
	plainBackend := newBackend()
	plainLoss, plainGrads, plainOps := lossAndGrads(t, buildBlock(3, plainBackend), plainBackend)

	ckptBackend := newBackend()
	ckpt := nn.NewCheckpoint[Backend](buildBlock(3, ckptBackend))
	ckptLoss, ckptGrads, ckptOps := lossAndGrads(t, ckpt, ckptBackend)

	assert.InDelta(t, plainLoss, ckptLoss, 1e-6)
	require.Len(t, ckptGrads, len(plainGrads))
	for i := range plainGrads {
		assert.InDeltaSlice(t, plainGrads[i], ckptGrads[i], 1e-5, "gradient %d", i)
	}

	// The block's internal ops are replaced by a single tape entry.
	assert.Less(t, ckptOps, plainOps)
	assert.Positive(t, ckpt.SavedActivations())
}

func TestCheckpoint_NotRecordingRunsModuleDirectly(t *testing.T) {
	backend := newBackend()
	block := buildBlock(1, backend)
	ckpt := nn.NewCheckpoint[Backend](block)
	x := tensor.Ones[float32](tensor.Shape{2, 3}, backend)

	assert.Equal(t, block.Forward(x).Data(), ckpt.Forward(x).Data())
	assert.Equal(t, 0, backend.Tape().NumOps())
	assert.Len(t, ckpt.Parameters(), 4)
	assert.Same(t, nn.Module[Backend](block), ckpt.Module())
}

func TestCheckpoint_PlainBackend(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(1))
	ckpt := nn.NewCheckpoint[*cpu.CPUBackend](nn.NewLinear(2, 2, rng, backend))
	y := ckpt.Forward(tensor.Ones[float32](tensor.Shape{1, 2}, backend))
	assert.Equal(t, tensor.Shape{1, 2}, y.Shape())
}

func TestCheckpoint_PassThroughModule(t *testing.T) {
	backend := newBackend()
	backend.Tape().StartRecording()
	x := must.M1(tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)).RequireGrad()

	y := nn.NewCheckpoint[Backend](nn.NewFlatten[Backend]()).Forward(x)
	assert.NotSame(t, x.Raw(), y.Raw())

	grads := autodiff.Backward(y.Sum(), backend)
	assert.Equal(t, []float32{1, 1, 1, 1}, grads[x.Raw()].AsFloat32())
}

func TestCheckpoint_DataInputGetsNoGradient(t *testing.T) {
	backend := newBackend()
	rng := rand.New(rand.NewSource(2))
	ckpt := nn.NewCheckpoint[Backend](buildBlock(4, backend))
	head := nn.NewLinear(4, 2, rng, backend)
	x := tensor.RandnWith[float32](tensor.Shape{5, 3}, rng, backend)
	labels := must.M1(tensor.FromSlice([]int32{0, 1, 1, 0, 1}, tensor.Shape{5}, backend))
	require.False(t, x.RequiresGrad())

	tape := backend.Tape()
	tape.StartRecording()
	hidden := ckpt.Forward(x)
	assert.True(t, hidden.RequiresGrad())
	loss := nn.NewCrossEntropyLoss[Backend]().Forward(head.Forward(hidden), labels)
	grads := autodiff.Backward(loss, backend)
	tape.StopRecording()

	assert.Nil(t, grads[x.Raw()])
	for _, p := range append(ckpt.Parameters(), head.Parameters()...) {
		assert.NotNil(t, grads[p.Tensor().Raw()], p.Name())
	}
}
