package serialization

import (
	"fmt"

	"github.com/pkg/errors"
)

// Errors returned while reading or validating a file.
var (
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrHeaderTooLarge     = errors.New("header exceeds maximum size")
	ErrChecksumMismatch   = errors.New("checksum mismatch: file may be corrupted")
	ErrInvalidTensor      = errors.New("invalid tensor entry")
)

// Validation limits.
const (
	MaxHeaderSize    = 16 << 20
	MaxTensorCount   = 100_000
	MaxTensorNameLen = 1024
)

// ValidationError describes a malformed tensor entry.
type ValidationError struct {
	Tensor  string
	Details string
}

func (e *ValidationError) Error() string {
	if e.Tensor == "" {
		return fmt.Sprintf("%v: %s", ErrInvalidTensor, e.Details)
	}
	return fmt.Sprintf("%v %q: %s", ErrInvalidTensor, e.Tensor, e.Details)
}

// Unwrap makes errors.Is(err, ErrInvalidTensor) hold.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidTensor
}
