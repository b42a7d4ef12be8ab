package serialization

import (
	"bufio"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
)

// Write encodes tensors, in order, with header into w. The Tensors and
// FormatVersion fields of header are filled in by Write.
func Write(w io.Writer, tensors []Named, header Header) error {
	header.FormatVersion = FormatVersion
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now().UTC()
	}
	header.Tensors = make([]TensorMeta, 0, len(tensors))

	var offset int64
	sum := sha256.New()
	for _, t := range tensors {
		if t.Tensor == nil {
			return &ValidationError{Tensor: t.Name, Details: "nil tensor"}
		}
		size := int64(t.Tensor.ByteSize())
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   t.Name,
			DType:  t.Tensor.DType().String(),
			Shape:  t.Tensor.Shape().Clone(),
			Offset: offset,
			Size:   size,
		})
		sum.Write(t.Tensor.Bytes())
		offset += size
	}
	if err := validateTensors(header.Tensors, offset); err != nil {
		return err
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return errors.Wrap(err, "marshaling header")
	}
	if len(headerJSON) > MaxHeaderSize {
		return errors.Wrapf(ErrHeaderTooLarge, "%d bytes", len(headerJSON))
	}

	var flags uint32
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if header.Training != nil {
		flags |= FlagHasTraining
	}

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed, MagicBytes)
	binary.LittleEndian.PutUint32(fixed[0x04:], FormatVersion)
	binary.LittleEndian.PutUint32(fixed[0x08:], flags)
	binary.LittleEndian.PutUint64(fixed[0x10:], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[0x18:], uint64(offset))
	copy(fixed[checksumOffset:], sum.Sum(nil))

	bw := bufio.NewWriter(w)
	pad := make([]byte, padding(int64(FixedHeaderSize+len(headerJSON))))
	for _, chunk := range [][]byte{fixed, headerJSON, pad} {
		if _, err := bw.Write(chunk); err != nil {
			return errors.Wrap(err, "writing header")
		}
	}
	for _, t := range tensors {
		if _, err := bw.Write(t.Tensor.Bytes()); err != nil {
			return errors.Wrapf(err, "writing tensor %q", t.Name)
		}
	}
	return errors.Wrap(bw.Flush(), "flushing")
}

// Save writes tensors to path, replacing any existing file.
func Save(path string, tensors []Named, header Header) (err error) {
	f, err := os.Create(path) //nolint:gosec // path is chosen by the caller
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrapf(cerr, "closing %s", path)
		}
	}()
	return errors.WithMessage(Write(f, tensors, header), path)
}
