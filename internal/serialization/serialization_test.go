package serialization_test

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/born-ml/customgrad/internal/serialization"
	"github.com/born-ml/customgrad/internal/tensor"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raw32(values []float32, shape ...int) *tensor.RawTensor {
	t := tensor.MustNewRaw(tensor.Shape(shape), tensor.Float32, tensor.CPU)
	copy(t.AsFloat32(), values)
	return t
}

func sampleTensors() []serialization.Named {
	labels := tensor.MustNewRaw(tensor.Shape{3}, tensor.Int32, tensor.CPU)
	copy(labels.AsInt32(), []int32{2, 0, 1})
	scale := tensor.MustNewRaw(tensor.Shape{}, tensor.Float64, tensor.CPU)
	scale.Fill(0.5)
	return []serialization.Named{
		{Name: "1.weight", Tensor: raw32([]float32{1, 2, 3, 4, 5, 6}, 2, 3)},
		{Name: "1.bias", Tensor: raw32([]float32{-1, 1}, 2)},
		{Name: "labels", Tensor: labels},
		{Name: "scale", Tensor: scale},
	}
}

func encode(t *testing.T, header serialization.Header) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, serialization.Write(&buf, sampleTensors(), header))
	return buf.Bytes()
}

func TestWriteRead(t *testing.T) {
	header := serialization.Header{
		Metadata: map[string]string{"model": "mlp"},
		Training: &serialization.TrainingMeta{Epochs: 3, Steps: 30, Optimizer: "adam", EvalAccuracy: 0.9},
	}
	encoded := encode(t, header)

	f := must.M1(serialization.Read(bytes.NewReader(encoded)))
	assert.Equal(t, serialization.FormatVersion, f.Header.FormatVersion)
	assert.Equal(t, serialization.FlagHasMetadata|serialization.FlagHasTraining, f.Flags)
	assert.Equal(t, []string{"1.weight", "1.bias", "labels", "scale"}, f.Names())
	assert.Equal(t, "mlp", f.Header.Metadata["model"])
	require.NotNil(t, f.Header.Training)
	assert.Equal(t, 30, f.Header.Training.Steps)
	assert.False(t, f.Header.CreatedAt.IsZero())
	assert.Equal(t, int64(6*4+2*4+3*4+8), f.DataSize())

	for _, want := range sampleTensors() {
		got, ok := f.Tensor(want.Name)
		require.True(t, ok, want.Name)
		assert.Equal(t, want.Tensor.Shape(), got.Shape())
		assert.Equal(t, want.Tensor.DType(), got.DType())
		assert.Equal(t, want.Tensor.Bytes(), got.Bytes())
	}
	_, ok := f.Tensor("missing")
	assert.False(t, ok)
}

func TestDataIsAligned(t *testing.T) {
	encoded := encode(t, serialization.Header{})
	headerSize := binary.LittleEndian.Uint64(encoded[0x10:])
	dataSize := binary.LittleEndian.Uint64(encoded[0x18:])
	assert.Zero(t, (uint64(len(encoded))-dataSize)%serialization.Alignment)
	assert.GreaterOrEqual(t, uint64(len(encoded))-dataSize, serialization.FixedHeaderSize+headerSize)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.cgrd")
	require.NoError(t, serialization.Save(path, sampleTensors(), serialization.Header{}))
	f := must.M1(serialization.Load(path))
	assert.Len(t, f.Names(), 4)

	_, err := serialization.Load(filepath.Join(t.TempDir(), "missing.cgrd"))
	assert.Error(t, err)
}

func TestReadRejectsCorruptFiles(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func([]byte) []byte
		want    error
	}{
		{"magic", func(b []byte) []byte { b[0] = 'X'; return b }, serialization.ErrInvalidMagic},
		{"version", func(b []byte) []byte { binary.LittleEndian.PutUint32(b[4:], 9); return b }, serialization.ErrUnsupportedVersion},
		{"header size", func(b []byte) []byte {
			binary.LittleEndian.PutUint64(b[0x10:], serialization.MaxHeaderSize+1)
			return b
		}, serialization.ErrHeaderTooLarge},
		{"data", func(b []byte) []byte { b[len(b)-1] ^= 0xFF; return b }, serialization.ErrChecksumMismatch},
		{"checksum", func(b []byte) []byte { b[0x20] ^= 0xFF; return b }, serialization.ErrChecksumMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := tt.corrupt(encode(t, serialization.Header{}))
			_, err := serialization.Read(bytes.NewReader(encoded))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	t.Run("truncated", func(t *testing.T) {
		encoded := encode(t, serialization.Header{})
		_, err := serialization.Read(bytes.NewReader(encoded[:len(encoded)-4]))
		assert.ErrorContains(t, err, "truncated")
	})
}

func TestWriteRejectsInvalidEntries(t *testing.T) {
	a := raw32([]float32{1}, 1)
	tests := []struct {
		name    string
		tensors []serialization.Named
	}{
		{"empty name", []serialization.Named{{Name: "", Tensor: a}}},
		{"duplicate", []serialization.Named{{Name: "w", Tensor: a}, {Name: "w", Tensor: a}}},
		{"nil tensor", []serialization.Named{{Name: "w"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := serialization.Write(&bytes.Buffer{}, tt.tensors, serialization.Header{})
			require.Error(t, err)
			assert.ErrorIs(t, err, serialization.ErrInvalidTensor)
		})
	}
}
