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

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func newBackend() Backend {
	return autodiff.New(cpu.New())
}

func TestParameter(t *testing.T) {
	backend := newBackend()
	data := must.M1(tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3}, backend))
	param := nn.NewParameter("test_param", data)

	assert.Equal(t, "test_param", param.Name())
	assert.Same(t, data, param.Tensor())
	assert.True(t, data.RequiresGrad())
	assert.Nil(t, param.Grad())

	grad := must.M1(tensor.FromSlice([]float32{0.1, 0.2, 0.3}, tensor.Shape{3}, backend))
	param.SetGrad(grad)
	assert.Same(t, grad, param.Grad())

	param.ZeroGrad()
	assert.Nil(t, param.Grad())
}

func TestLinear_Forward(t *testing.T) {
	backend := newBackend()
	layer := nn.NewLinear(3, 2, rand.New(rand.NewSource(1)), backend)
	copy(layer.Weight().Tensor().Data(), []float32{1, 0, -1, 0.5, 0.5, 0.5})
	copy(layer.Bias().Tensor().Data(), []float32{0.1, -0.1})

	x := must.M1(tensor.FromSlice([]float32{1, 2, 3, -1, 0, 1}, tensor.Shape{2, 3}, backend))
	y := layer.Forward(x)

	assert.Equal(t, tensor.Shape{2, 2}, y.Shape())
	assert.InDeltaSlice(t, []float32{-1.9, 2.9, -1.9, -0.1}, y.Data(), 1e-6)
	assert.Equal(t, 3, layer.InFeatures())
	assert.Equal(t, 2, layer.OutFeatures())
	assert.Len(t, layer.Parameters(), 2)
	assert.Equal(t, 8, nn.CountParameters(layer.Parameters()))
}

func TestLinear_SeededInitIsReproducible(t *testing.T) {
	a := nn.NewLinear(4, 3, rand.New(rand.NewSource(9)), cpu.New())
	b := nn.NewLinear(4, 3, rand.New(rand.NewSource(9)), cpu.New())
	assert.Equal(t, a.Weight().Tensor().Data(), b.Weight().Tensor().Data())

	bound := float32(1.2248) // sqrt(6/4)
	for _, w := range a.Weight().Tensor().Data() {
		assert.LessOrEqual(t, w, bound)
		assert.GreaterOrEqual(t, w, -bound)
	}

	before := append([]float32(nil), a.Weight().Tensor().Data()...)
	a.ResetXavier(rand.New(rand.NewSource(3)))
	assert.NotEqual(t, before, a.Weight().Tensor().Data())
}

func TestLinear_PanicsOnWrongInput(t *testing.T) {
	backend := newBackend()
	layer := nn.NewLinear(3, 2, rand.New(rand.NewSource(1)), backend)
	assert.Panics(t, func() { layer.Forward(tensor.Zeros[float32](tensor.Shape{2, 4}, backend)) })
	assert.Panics(t, func() { layer.Forward(tensor.Zeros[float32](tensor.Shape{3}, backend)) })
}

func TestReLUAndFlatten(t *testing.T) {
	backend := newBackend()
	x := must.M1(tensor.FromSlice([]float32{-1, 2, -3, 4, 5, -6, 7, 8}, tensor.Shape{2, 2, 2}, backend))

	flat := nn.NewFlatten[Backend]().Forward(x)
	assert.Equal(t, tensor.Shape{2, 4}, flat.Shape())

	y := nn.NewReLU[Backend]().Forward(flat)
	assert.Equal(t, []float32{0, 2, 0, 4, 5, 0, 7, 8}, y.Data())
	assert.Nil(t, nn.NewReLU[Backend]().Parameters())
}

func TestSequential(t *testing.T) {
	backend := newBackend()
	rng := rand.New(rand.NewSource(1))
	model := nn.NewSequential[Backend](
		nn.NewLinear(4, 8, rng, backend),
		nn.NewReLU[Backend](),
	)
	model.Add(nn.NewLinear(8, 3, rng, backend))

	assert.Equal(t, 3, model.Len())
	assert.Len(t, model.Parameters(), 4)
	assert.Panics(t, func() { model.Module(3) })

	y := model.Forward(tensor.Ones[float32](tensor.Shape{5, 4}, backend))
	assert.Equal(t, tensor.Shape{5, 3}, y.Shape())
}

func TestSequentialWalk(t *testing.T) {
	backend := newBackend()
	rng := rand.New(rand.NewSource(1))
	inner := nn.NewSequential[Backend](nn.NewLinear(4, 4, rng, backend), nn.NewReLU[Backend]())
	model := nn.NewSequential[Backend](
		nn.NewFlatten[Backend](),
		nn.NewCheckpoint[Backend](inner),
		nn.NewLinear(4, 2, rng, backend),
	)

	var linears, checkpoints int
	model.Walk(func(m nn.Module[Backend]) bool {
		switch m.(type) {
		case *nn.Linear[Backend]:
			linears++
		case *nn.Checkpoint[Backend]:
			checkpoints++
		}
		return true
	})
	assert.Equal(t, 2, linears)
	assert.Equal(t, 1, checkpoints)

	var visited int
	model.Walk(func(nn.Module[Backend]) bool {
		visited++
		return false
	})
	assert.Equal(t, 3, visited)
}

func TestCrossEntropyLossAndAccuracy(t *testing.T) {
	backend := newBackend()
	logits := must.M1(tensor.FromSlice([]float32{3, 1, 0, 0, 0.5, 2}, tensor.Shape{2, 3}, backend))
	labels := must.M1(tensor.FromSlice([]int32{0, 1}, tensor.Shape{2}, backend))

	loss := nn.NewCrossEntropyLoss[Backend]().Forward(logits, labels)
	assert.Greater(t, loss.Item(), float32(0))
	assert.Equal(t, float32(0.5), nn.Accuracy(logits, labels))
}

func TestTraining_GradientsReachParameters(t *testing.T) {
	backend := newBackend()
	rng := rand.New(rand.NewSource(5))
	model := nn.NewSequential[Backend](
		nn.NewLinear(2, 4, rng, backend),
		nn.NewReLU[Backend](),
		nn.NewLinear(4, 2, rng, backend),
	)
	x := tensor.RandnWith[float32](tensor.Shape{6, 2}, rng, backend)
	labels := must.M1(tensor.FromSlice([]int32{0, 1, 0, 1, 1, 0}, tensor.Shape{6}, backend))

	backend.Tape().StartRecording()
	loss := nn.NewCrossEntropyLoss[Backend]().Forward(model.Forward(x), labels)
	grads := autodiff.Backward(loss, backend)
	nn.AssignGrads(model.Parameters(), grads)

	for _, p := range model.Parameters() {
		require.NotNil(t, p.Grad(), p.Name())
		assert.Equal(t, p.Tensor().Shape(), p.Grad().Shape(), p.Name())
	}
}
