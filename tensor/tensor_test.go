// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"math/rand"
	"testing"

	"github.com/born-ml/customgrad/backend/cpu"
	"github.com/born-ml/customgrad/tensor"
	"github.com/pkg/errors"
)

// TestBackendInterface verifies that the CPU backend implements tensor.Backend.
func TestBackendInterface(_ *testing.T) {
	var _ tensor.Backend = cpu.New()
}

func TestRawTensorAPI(t *testing.T) {
	raw, err := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}
	if !raw.Shape().Equal(tensor.Shape{2, 3}) {
		t.Errorf("Shape() = %v, want [2 3]", raw.Shape())
	}
	if raw.DType() != tensor.Float32 {
		t.Errorf("DType() = %v, want float32", raw.DType())
	}
	if raw.Device() != tensor.CPU {
		t.Errorf("Device() = %v, want CPU", raw.Device())
	}
	if raw.ByteSize() != 6*4 {
		t.Errorf("ByteSize() = %d, want 24", raw.ByteSize())
	}

	raw.Fill(2)
	clone := raw.Clone()
	clone.AsFloat32()[0] = 7
	if raw.AsFloat32()[0] != 2 {
		t.Errorf("Clone shares storage: original[0] = %v", raw.AsFloat32()[0])
	}

	if _, err := tensor.NewRaw(tensor.Shape{2, 0}, tensor.Float32, tensor.CPU); err == nil {
		t.Error("NewRaw accepted a zero dimension")
	}
}

func TestRawFromFloat64(t *testing.T) {
	raw, err := tensor.RawFromFloat64([]float64{1.5, -2}, tensor.Shape{2}, tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatalf("RawFromFloat64 failed: %v", err)
	}
	got := raw.AsFloat32()
	if got[0] != 1.5 || got[1] != -2 {
		t.Errorf("AsFloat32() = %v, want [1.5 -2]", got)
	}
}

func TestCreation(t *testing.T) {
	backend := cpu.New()

	zeros := tensor.Zeros[float32](tensor.Shape{2, 2}, backend)
	ones := tensor.Ones[float32](tensor.Shape{2, 2}, backend)
	full := tensor.Full[float64](tensor.Shape{3}, 2.5, backend)

	if s := zeros.Add(ones).Sum().Item(); s != 4 {
		t.Errorf("sum(zeros + ones) = %v, want 4", s)
	}
	for i, v := range full.Data() {
		if v != 2.5 {
			t.Errorf("Full[%d] = %v, want 2.5", i, v)
		}
	}

	a := tensor.RandnWith[float64](tensor.Shape{4}, rand.New(rand.NewSource(3)), backend)
	b := tensor.RandnWith[float64](tensor.Shape{4}, rand.New(rand.NewSource(3)), backend)
	for i := range a.Data() {
		if a.Data()[i] != b.Data()[i] {
			t.Fatalf("RandnWith not reproducible at %d: %v != %v", i, a.Data()[i], b.Data()[i])
		}
	}

	u := tensor.RandWith[float32](tensor.Shape{100}, -1, 1, rand.New(rand.NewSource(5)), backend)
	for _, v := range u.Data() {
		if v < -1 || v > 1 {
			t.Fatalf("RandWith value %v outside [-1, 1]", v)
		}
	}
}

func TestFromSliceShapeMismatch(t *testing.T) {
	_, err := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{2, 2}, cpu.New())
	if !errors.Is(err, tensor.ErrShapeMismatch) {
		t.Errorf("FromSlice(3 values, [2 2]) error = %v, want ErrShapeMismatch", err)
	}
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		a, b    tensor.Shape
		want    tensor.Shape
		wantErr bool
	}{
		{tensor.Shape{3, 1}, tensor.Shape{3, 4}, tensor.Shape{3, 4}, false},
		{tensor.Shape{4}, tensor.Shape{2, 4}, tensor.Shape{2, 4}, false},
		{tensor.Shape{}, tensor.Shape{2, 3}, tensor.Shape{2, 3}, false},
		{tensor.Shape{3}, tensor.Shape{4}, nil, true},
	}
	for _, tt := range tests {
		got, _, err := tensor.BroadcastShapes(tt.a, tt.b)
		if tt.wantErr {
			if err == nil {
				t.Errorf("BroadcastShapes(%v, %v) succeeded, want error", tt.a, tt.b)
			}
			continue
		}
		if err != nil || !got.Equal(tt.want) {
			t.Errorf("BroadcastShapes(%v, %v) = %v, %v; want %v", tt.a, tt.b, got, err, tt.want)
		}
	}
}
