package serialization

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"io"
	"os"

	"github.com/born-ml/customgrad/internal/tensor"
	"github.com/pkg/errors"
)

// File is a decoded parameter file.
type File struct {
	Header  Header
	Flags   uint32
	tensors map[string]*tensor.RawTensor
}

// Names returns the tensor names in file order.
func (f *File) Names() []string {
	names := make([]string, len(f.Header.Tensors))
	for i, m := range f.Header.Tensors {
		names[i] = m.Name
	}
	return names
}

// Tensor returns the tensor stored under name.
func (f *File) Tensor(name string) (*tensor.RawTensor, bool) {
	t, ok := f.tensors[name]
	return t, ok
}

// DataSize returns the total size of the tensor data in bytes.
func (f *File) DataSize() int64 {
	var n int64
	for _, m := range f.Header.Tensors {
		n += m.Size
	}
	return n
}

// Read decodes a parameter file from r, verifying its checksum and layout.
func Read(r io.Reader) (*File, error) {
	br := bufio.NewReader(r)
	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(br, fixed); err != nil {
		return nil, errors.Wrap(err, "reading fixed header")
	}
	if string(fixed[:4]) != MagicBytes {
		return nil, errors.Wrapf(ErrInvalidMagic, "got %q", fixed[:4])
	}
	if v := binary.LittleEndian.Uint32(fixed[0x04:]); v != FormatVersion {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "got %d, want %d", v, FormatVersion)
	}
	flags := binary.LittleEndian.Uint32(fixed[0x08:])
	headerSize := binary.LittleEndian.Uint64(fixed[0x10:])
	dataSize := binary.LittleEndian.Uint64(fixed[0x18:])
	if headerSize > MaxHeaderSize {
		return nil, errors.Wrapf(ErrHeaderTooLarge, "%d bytes", headerSize)
	}

	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(br, headerJSON); err != nil {
		return nil, errors.Wrap(err, "reading header")
	}
	f := &File{Flags: flags}
	if err := json.Unmarshal(headerJSON, &f.Header); err != nil {
		return nil, errors.Wrap(err, "parsing header")
	}
	//nolint:gosec // headerSize is bounded by MaxHeaderSize
	if _, err := br.Discard(int(padding(int64(FixedHeaderSize + headerSize)))); err != nil {
		return nil, errors.Wrap(err, "skipping padding")
	}
	if err := validateTensors(f.Header.Tensors, int64(dataSize)); err != nil { //nolint:gosec // checked against entries
		return nil, err
	}

	var data bytes.Buffer
	n, err := io.Copy(&data, io.LimitReader(br, int64(dataSize))) //nolint:gosec // bounded by the reader
	if err != nil {
		return nil, errors.Wrap(err, "reading tensor data")
	}
	if uint64(n) != dataSize {
		return nil, errors.Errorf("truncated tensor data: got %d of %d bytes", n, dataSize)
	}
	if sha256.Sum256(data.Bytes()) != [32]byte(fixed[checksumOffset:checksumOffset+32]) {
		return nil, ErrChecksumMismatch
	}

	f.tensors = make(map[string]*tensor.RawTensor, len(f.Header.Tensors))
	raw := data.Bytes()
	for _, m := range f.Header.Tensors {
		dt, _ := dtypeFromString(m.DType)
		t, err := tensor.NewRaw(tensor.Shape(m.Shape), dt, tensor.CPU)
		if err != nil {
			return nil, errors.Wrapf(err, "tensor %q", m.Name)
		}
		copy(t.Bytes(), raw[m.Offset:m.Offset+m.Size])
		f.tensors[m.Name] = t
	}
	return f, nil
}

// Load reads the parameter file at path.
func Load(path string) (*File, error) {
	fh, err := os.Open(path) //nolint:gosec // path is chosen by the caller
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer fh.Close()
	f, err := Read(fh)
	return f, errors.WithMessage(err, path)
}
