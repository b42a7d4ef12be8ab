package data_test

import (
	"bytes"
	"encoding/binary"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/customgrad/internal/backend/cpu"
	"github.com/born-ml/customgrad/internal/data"
	"github.com/born-ml/customgrad/internal/tensor"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeIDX(t *testing.T, path string, header []uint32, payload []byte) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, header))
	buf.Write(payload)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func TestLoadIDX(t *testing.T) {
	dir := t.TempDir()
	images := filepath.Join(dir, "images")
	labels := filepath.Join(dir, "labels")
	// Three 2x2 images.
	writeIDX(t, images, []uint32{0x803, 3, 2, 2}, []byte{
		0, 255, 0, 255,
		51, 102, 153, 204,
		255, 255, 255, 255,
	})
	writeIDX(t, labels, []uint32{0x801, 3}, []byte{1, 0, 2})

	ds, err := data.LoadIDX(images, labels, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, 4, ds.Dim())
	assert.Equal(t, 3, ds.NumClasses)
	assert.Equal(t, []int32{1, 0, 2}, ds.Labels)
	assert.InDeltaSlice(t, []float32{0.2, 0.4, 0.6, 0.8}, ds.Images[1], 1e-6)
	require.NoError(t, ds.Validate())

	limited, err := data.LoadIDX(images, labels, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, limited.Len())
}

func TestLoadIDX_Errors(t *testing.T) {
	dir := t.TempDir()
	images := filepath.Join(dir, "images")
	labels := filepath.Join(dir, "labels")
	writeIDX(t, images, []uint32{0x801, 1, 1, 1}, []byte{0})
	writeIDX(t, labels, []uint32{0x801, 1}, []byte{0})

	_, err := data.LoadIDX(images, labels, 0)
	assert.True(t, errors.Is(err, data.ErrInvalidIDX))

	_, err = data.LoadIDX(filepath.Join(dir, "missing"), labels, 0)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	writeIDX(t, images, []uint32{0x803, 2, 1, 1}, []byte{0}) // truncated
	_, err = data.LoadIDX(images, labels, 0)
	assert.Error(t, err)
}

func TestLoadMNIST_FileNames(t *testing.T) {
	dir := t.TempDir()
	writeIDX(t, filepath.Join(dir, "t10k-images-idx3-ubyte"), []uint32{0x803, 1, 1, 2}, []byte{0, 255})
	writeIDX(t, filepath.Join(dir, "t10k-labels-idx1-ubyte"), []uint32{0x801, 1}, []byte{7})

	ds, err := data.LoadMNIST(dir, false, 0)
	require.NoError(t, err)
	assert.Equal(t, 10, ds.NumClasses)
	assert.Equal(t, []int32{7}, ds.Labels)

	_, err = data.LoadMNIST(dir, true, 0)
	assert.Error(t, err)
}

func TestSynthetic(t *testing.T) {
	a := data.Synthetic(3, 10, 4, 1)
	b := data.Synthetic(3, 10, 4, 1)
	assert.Equal(t, a, b)
	assert.Equal(t, 30, a.Len())
	assert.Equal(t, 4, a.Dim())
	require.NoError(t, a.Validate())

	train, eval := a.Split(24)
	assert.Equal(t, 24, train.Len())
	assert.Equal(t, 6, eval.Len())
}

func TestSyntheticClassesAreSeparable(t *testing.T) {
	ds := data.Synthetic(3, 80, 4, 7)
	means := make([][]float64, ds.NumClasses)
	counts := make([]int, ds.NumClasses)
	for i, x := range ds.Images {
		c := ds.Labels[i]
		if means[c] == nil {
			means[c] = make([]float64, len(x))
		}
		for j, v := range x {
			means[c][j] += float64(v)
		}
		counts[c]++
	}
	for c := range means {
		for j := range means[c] {
			means[c][j] /= float64(counts[c])
		}
	}

	var correct int
	for i, x := range ds.Images {
		best, bestDist := -1, math.Inf(1)
		for c, m := range means {
			var d float64
			for j, v := range x {
				d += (float64(v) - m[j]) * (float64(v) - m[j])
			}
			if d < bestDist {
				best, bestDist = c, d
			}
		}
		if int32(best) == ds.Labels[i] {
			correct++
		}
	}
	assert.GreaterOrEqual(t, float64(correct)/float64(ds.Len()), 0.95)
}

func TestBatches(t *testing.T) {
	ds := data.Synthetic(2, 5, 3, 2)
	it := data.Batches(ds, 4, rand.New(rand.NewSource(1)))
	assert.Equal(t, 3, it.NumBatches())

	seen := map[int32]int{}
	sizes := []int{}
	for b, ok := it.Next(); ok; b, ok = it.Next() {
		sizes = append(sizes, b.Size)
		assert.Len(t, b.Images, b.Size*3)
		for _, l := range b.Labels {
			seen[l]++
		}
	}
	assert.Equal(t, []int{4, 4, 2}, sizes)
	assert.Equal(t, map[int32]int{0: 5, 1: 5}, seen)

	ordered := data.Batches(ds, 0, nil)
	b, ok := ordered.Next()
	require.True(t, ok)
	assert.Equal(t, ds.Labels, b.Labels)
	_, ok = ordered.Next()
	assert.False(t, ok)
}

func TestTensors(t *testing.T) {
	ds := data.Synthetic(2, 2, 3, 3)
	b, _ := data.Batches(ds, 4, nil).Next()
	images, labels := data.Tensors(b, cpu.New())
	assert.Equal(t, tensor.Shape{4, 3}, images.Shape())
	assert.Equal(t, tensor.Shape{4}, labels.Shape())
	assert.Equal(t, b.Labels, labels.Data())
}

func TestValidate(t *testing.T) {
	ds := &data.Dataset{Images: [][]float32{{1}}, Labels: []int32{3}, Width: 1, Height: 1, NumClasses: 2}
	assert.Error(t, ds.Validate())
	ds.Labels = nil
	assert.Error(t, ds.Validate())
}
