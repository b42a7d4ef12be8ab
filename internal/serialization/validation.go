package serialization

import (
	"fmt"
	"slices"
	"sort"

	"github.com/born-ml/customgrad/internal/tensor"
)

// validateTensors checks names, dtypes and shapes of every entry and that
// entries tile [0, dataSize) without overlap.
func validateTensors(metas []TensorMeta, dataSize int64) error {
	if len(metas) > MaxTensorCount {
		return &ValidationError{Details: fmt.Sprintf("%d tensors, max %d", len(metas), MaxTensorCount)}
	}

	seen := make(map[string]bool, len(metas))
	for _, m := range metas {
		switch {
		case m.Name == "":
			return &ValidationError{Details: "empty tensor name"}
		case len(m.Name) > MaxTensorNameLen:
			return &ValidationError{Tensor: m.Name[:32] + "...", Details: "name too long"}
		case seen[m.Name]:
			return &ValidationError{Tensor: m.Name, Details: "duplicate name"}
		}
		seen[m.Name] = true

		dt, ok := dtypeFromString(m.DType)
		if !ok {
			return &ValidationError{Tensor: m.Name, Details: fmt.Sprintf("unknown dtype %q", m.DType)}
		}
		shape := tensor.Shape(m.Shape)
		if err := shape.Validate(); err != nil {
			return &ValidationError{Tensor: m.Name, Details: err.Error()}
		}
		if want := int64(shape.NumElements() * dt.Size()); m.Size != want {
			return &ValidationError{Tensor: m.Name, Details: fmt.Sprintf("size %d, shape %v needs %d", m.Size, shape, want)}
		}
	}

	sorted := slices.Clone(metas)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })
	var next int64
	for _, m := range sorted {
		switch {
		case m.Offset < 0:
			return &ValidationError{Tensor: m.Name, Details: fmt.Sprintf("negative offset %d", m.Offset)}
		case m.Offset < next:
			return &ValidationError{Tensor: m.Name, Details: fmt.Sprintf("offset %d overlaps previous tensor ending at %d", m.Offset, next)}
		case m.Offset+m.Size > dataSize:
			return &ValidationError{Tensor: m.Name, Details: fmt.Sprintf("extends to %d past data size %d", m.Offset+m.Size, dataSize)}
		}
		next = m.Offset + m.Size
	}
	return nil
}
