// Package cpu implements the pure Go CPU backend.
package cpu

import (
	"fmt"

	"github.com/born-ml/customgrad/internal/parallel"
	"github.com/born-ml/customgrad/internal/tensor"
)

// CPUBackend implements tensor.Backend on the CPU for float32 and float64.
// Kernels split their outer loops through the parallel package; every call
// still returns a fully computed result.
type CPUBackend struct {
	device tensor.Device
	par    parallel.Config
}

// New creates a new CPU backend with the default parallel configuration.
func New() *CPUBackend {
	return NewWithConfig(parallel.DefaultConfig())
}

// NewWithConfig creates a CPU backend using the given parallel configuration.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		par:    cfg,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// newResult allocates an output tensor or panics; shapes reaching here were validated.
func (cpu *CPUBackend) newResult(op string, shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	result, err := tensor.NewRaw(shape, dtype, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}
	return result
}

// requireFloat panics unless every tensor has the same float dtype.
func requireFloat(op string, ts ...*tensor.RawTensor) tensor.DataType {
	dtype := ts[0].DType()
	if !dtype.IsFloat() {
		panic(fmt.Sprintf("%s: unsupported dtype %s (only float32/float64 supported)", op, dtype))
	}
	for _, t := range ts[1:] {
		if t.DType() != dtype {
			panic(fmt.Sprintf("%s: dtype mismatch %s vs %s", op, dtype, t.DType()))
		}
	}
	return dtype
}

// normalizeDim resolves negative dimensions and validates the range.
func normalizeDim(op string, dim, ndim int) int {
	if dim < 0 {
		dim += ndim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("%s: dimension %d out of range for %dD tensor", op, dim, ndim))
	}
	return dim
}
