// Package serialization stores named parameter tensors in a checksummed
// binary file.
//
// File layout:
//
//	[0x00] magic "CGRD"
//	[0x04] format version (uint32 LE)
//	[0x08] flags (uint32 LE)
//	[0x0C] reserved
//	[0x10] header size (uint64 LE)
//	[0x18] data size (uint64 LE)
//	[0x20] SHA-256 of the data section
//	[0x40] JSON header
//	       zero padding to a 64-byte boundary
//	       tensor data, in header order
package serialization

import (
	"time"

	"github.com/born-ml/customgrad/internal/tensor"
)

// Format constants.
const (
	MagicBytes      = "CGRD"
	FormatVersion   = 1
	FixedHeaderSize = 64
	Alignment       = 64
	checksumOffset  = 0x20
)

// Flags stored in the fixed header.
const (
	FlagHasMetadata uint32 = 1 << 0
	FlagHasTraining uint32 = 1 << 1
)

// Header is the JSON header of a parameter file.
type Header struct {
	FormatVersion int               `json:"format_version"`
	CreatedAt     time.Time         `json:"created_at"`
	Tensors       []TensorMeta      `json:"tensors"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Training      *TrainingMeta     `json:"training,omitempty"`
}

// TrainingMeta describes the run that produced the parameters.
type TrainingMeta struct {
	Run          string  `json:"run,omitempty"`
	Epochs       int     `json:"epochs"`
	Steps        int     `json:"steps"`
	Optimizer    string  `json:"optimizer"`
	EvalLoss     float64 `json:"eval_loss"`
	EvalAccuracy float64 `json:"eval_accuracy"`
}

// TensorMeta locates one tensor in the data section.
type TensorMeta struct {
	Name   string `json:"name"`
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"`
	Size   int64  `json:"size"`
}

// Named pairs a tensor with the name it is stored under.
type Named struct {
	Name   string
	Tensor *tensor.RawTensor
}

func dtypeFromString(s string) (tensor.DataType, bool) {
	for _, dt := range []tensor.DataType{tensor.Float32, tensor.Float64, tensor.Int32} {
		if dt.String() == s {
			return dt, true
		}
	}
	return 0, false
}

func padding(pos int64) int64 {
	return (Alignment - pos%Alignment) % Alignment
}
