package cpu

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/customgrad/internal/parallel"
	"github.com/born-ml/customgrad/internal/tensor"
)

// raw64 builds a float64 RawTensor for tests.
func raw64(t *testing.T, shape tensor.Shape, values ...float64) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.RawFromFloat64(values, shape, tensor.Float64, tensor.CPU)
	require.NoError(t, err)
	return r
}

func TestCPUBackend_New(t *testing.T) {
	backend := New()
	require.NotNil(t, backend)
	assert.Equal(t, "CPU", backend.Name())
	assert.Equal(t, tensor.CPU, backend.Device())
}

func TestCPUBackend_Binary(t *testing.T) {
	backend := New()
	a := raw64(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)
	b := raw64(t, tensor.Shape{2, 3}, 10, 11, 12, 13, 14, 15)

	assert.Equal(t, []float64{11, 13, 15, 17, 19, 21}, backend.Add(a, b).AsFloat64())
	assert.Equal(t, []float64{-9, -9, -9, -9, -9, -9}, backend.Sub(a, b).AsFloat64())
	assert.Equal(t, []float64{10, 22, 36, 52, 70, 90}, backend.Mul(a, b).AsFloat64())
	assert.InDeltaSlice(t, []float64{0.1, 2.0 / 11, 0.25, 4.0 / 13, 5.0 / 14, 0.4}, backend.Div(a, b).AsFloat64(), 1e-12)

	// Inputs are never modified.
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, a.AsFloat64())
}

func TestCPUBackend_Broadcast(t *testing.T) {
	backend := New()
	col := raw64(t, tensor.Shape{2, 1}, 1, 2)
	row := raw64(t, tensor.Shape{3}, 10, 20, 30)

	out := backend.Add(col, row)
	assert.Equal(t, tensor.Shape{2, 3}, out.Shape())
	assert.Equal(t, []float64{11, 21, 31, 12, 22, 32}, out.AsFloat64())

	scalar := raw64(t, tensor.Shape{}, 2)
	assert.Equal(t, []float64{20, 40, 60}, backend.Mul(row, scalar).AsFloat64())

	assert.Panics(t, func() {
		backend.Add(raw64(t, tensor.Shape{2}, 1, 2), row)
	})
}

func TestCPUBackend_DTypeChecks(t *testing.T) {
	backend := New()
	a := raw64(t, tensor.Shape{2}, 1, 2)
	b, err := tensor.RawFromFloat64([]float64{1, 2}, tensor.Shape{2}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	assert.Panics(t, func() { backend.Add(a, b) })

	labels := tensor.MustNewRaw(tensor.Shape{2}, tensor.Int32, tensor.CPU)
	assert.Panics(t, func() { backend.Exp(labels) })
}

func TestCPUBackend_Float32(t *testing.T) {
	backend := New()
	a, err := tensor.RawFromFloat64([]float64{-1, 0, 2}, tensor.Shape{3}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)

	assert.Equal(t, []float32{0, 0, 2}, backend.ReLU(a).AsFloat32())
	assert.Equal(t, []float32{-3, 0, 6}, backend.MulScalar(a, 3).AsFloat32())
	assert.Equal(t, []float32{0, 1, 3}, backend.AddScalar(a, 1).AsFloat32())
}

func TestCPUBackend_ExpLog(t *testing.T) {
	backend := New()
	x := raw64(t, tensor.Shape{3}, 0, 1, 2)

	assert.InDeltaSlice(t, []float64{1, math.E, math.E * math.E}, backend.Exp(x).AsFloat64(), 1e-12)
	assert.InDeltaSlice(t, []float64{0, 1, 2}, backend.Log(backend.Exp(x)).AsFloat64(), 1e-12)
}

func TestCPUBackend_MatMul(t *testing.T) {
	for _, cfg := range []parallel.Config{parallel.Sequential(), {Enabled: true, NumWorkers: 4, MinChunkSize: 1}} {
		backend := NewWithConfig(cfg)
		a := raw64(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)
		b := raw64(t, tensor.Shape{3, 2}, 7, 8, 9, 10, 11, 12)

		out := backend.MatMul(a, b)
		assert.Equal(t, tensor.Shape{2, 2}, out.Shape())
		assert.Equal(t, []float64{58, 64, 139, 154}, out.AsFloat64())
	}

	backend := New()
	assert.Panics(t, func() {
		backend.MatMul(raw64(t, tensor.Shape{2, 2}, 1, 2, 3, 4), raw64(t, tensor.Shape{3, 1}, 1, 2, 3))
	})
}

func TestCPUBackend_ReshapeTranspose(t *testing.T) {
	backend := New()
	x := raw64(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)

	r := backend.Reshape(x, tensor.Shape{3, -1})
	assert.Equal(t, tensor.Shape{3, 2}, r.Shape())
	assert.Equal(t, x.AsFloat64(), r.AsFloat64())

	tr := backend.Transpose(x)
	assert.Equal(t, tensor.Shape{3, 2}, tr.Shape())
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, tr.AsFloat64())

	axes := []int{1, 0}
	backend.Transpose(x, axes...)
	assert.Equal(t, []int{1, 0}, axes, "axes argument must not be modified")

	x3 := raw64(t, tensor.Shape{2, 1, 3}, 1, 2, 3, 4, 5, 6)
	p := backend.Transpose(x3, 2, 0, 1)
	assert.Equal(t, tensor.Shape{3, 2, 1}, p.Shape())
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, p.AsFloat64())

	assert.Panics(t, func() { backend.Reshape(x, tensor.Shape{4, 2}) })
}

func TestCPUBackend_Expand(t *testing.T) {
	backend := New()
	x := raw64(t, tensor.Shape{2, 1}, 1, 2)

	out := backend.Expand(x, tensor.Shape{2, 3})
	assert.Equal(t, []float64{1, 1, 1, 2, 2, 2}, out.AsFloat64())

	s := backend.Expand(raw64(t, tensor.Shape{}, 5), tensor.Shape{2, 2})
	assert.Equal(t, []float64{5, 5, 5, 5}, s.AsFloat64())

	assert.Panics(t, func() { backend.Expand(x, tensor.Shape{3, 3}) })
}

func TestCPUBackend_Reductions(t *testing.T) {
	backend := New()
	x := raw64(t, tensor.Shape{2, 3}, 1, 2, 3, 4, 5, 6)

	sum := backend.Sum(x)
	assert.Empty(t, sum.Shape())
	assert.Equal(t, 21.0, sum.AsFloat64()[0])

	rows := backend.SumDim(x, 1, false)
	assert.Equal(t, tensor.Shape{2}, rows.Shape())
	assert.Equal(t, []float64{6, 15}, rows.AsFloat64())

	cols := backend.SumDim(x, 0, true)
	assert.Equal(t, tensor.Shape{1, 3}, cols.Shape())
	assert.Equal(t, []float64{5, 7, 9}, cols.AsFloat64())

	last := backend.SumDim(x, -1, true)
	assert.Equal(t, tensor.Shape{2, 1}, last.Shape())

	assert.Panics(t, func() { backend.SumDim(x, 2, false) })
}

func TestCPUBackend_SoftmaxArgmax(t *testing.T) {
	backend := New()
	x := raw64(t, tensor.Shape{2, 3}, 1, 2, 3, 1000, 1000, 1000)

	sm := backend.Softmax(x, -1).AsFloat64()
	e1, e2, e3 := math.Exp(-2), math.Exp(-1), 1.0
	total := e1 + e2 + e3
	assert.InDeltaSlice(t, []float64{e1 / total, e2 / total, e3 / total, 1.0 / 3, 1.0 / 3, 1.0 / 3}, sm, 1e-12)

	arg := backend.Argmax(raw64(t, tensor.Shape{2, 3}, 0, 5, 1, 9, 2, 3), 1)
	assert.Equal(t, tensor.Int32, arg.DType())
	assert.Equal(t, []int32{1, 0}, arg.AsInt32())
}
