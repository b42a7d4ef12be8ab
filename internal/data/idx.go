package data

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
)

// IDX magic numbers (unsigned byte data, 3D and 1D).
const (
	idxImagesMagic = 0x00000803
	idxLabelsMagic = 0x00000801
)

// ErrInvalidIDX is wrapped by every IDX format error.
var ErrInvalidIDX = errors.New("invalid IDX file")

// readIDXImages reads an IDX image file:
//
//	magic number: 0x00000803 (2051)
//	number of images, rows, cols: 4 bytes each, big endian
//	pixel data: unsigned bytes (0-255), row-major
//
// At most limit images are read when limit > 0.
func readIDXImages(r io.Reader, limit int) (images [][]byte, rows, cols int, err error) {
	var header [4]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, 0, 0, errors.Wrap(err, "reading image header")
	}
	if header[0] != idxImagesMagic {
		return nil, 0, 0, errors.Wrapf(ErrInvalidIDX, "image magic %#x, want %#x", header[0], idxImagesMagic)
	}
	n, rows, cols := int(header[1]), int(header[2]), int(header[3])
	if limit > 0 && n > limit {
		n = limit
	}

	images = make([][]byte, n)
	for i := range images {
		images[i] = make([]byte, rows*cols)
		if _, err := io.ReadFull(r, images[i]); err != nil {
			return nil, 0, 0, errors.Wrapf(err, "reading image %d", i)
		}
	}
	return images, rows, cols, nil
}

// readIDXLabels reads an IDX label file:
//
//	magic number: 0x00000801 (2049)
//	number of labels: 4 bytes, big endian
//	label data: unsigned bytes
func readIDXLabels(r io.Reader, limit int) ([]byte, error) {
	var header [2]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, errors.Wrap(err, "reading label header")
	}
	if header[0] != idxLabelsMagic {
		return nil, errors.Wrapf(ErrInvalidIDX, "label magic %#x, want %#x", header[0], idxLabelsMagic)
	}
	n := int(header[1])
	if limit > 0 && n > limit {
		n = limit
	}
	labels := make([]byte, n)
	if _, err := io.ReadFull(r, labels); err != nil {
		return nil, errors.Wrap(err, "reading labels")
	}
	return labels, nil
}

func openBuffered(path string) (*os.File, *bufio.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "opening %s", path)
	}
	return f, bufio.NewReader(f), nil
}
