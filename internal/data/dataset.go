// Package data loads classification datasets and iterates over them in
// shuffled mini-batches.
//
// Two sources are supported: MNIST-style IDX files already on disk
// (LoadIDX, LoadMNIST) and synthetic Gaussian blobs (Synthetic) for tests
// and offline runs. Downloading datasets is left to the user.
package data

import (
	"math"
	"math/rand"
	"path/filepath"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Dataset holds flattened float32 examples with integer class labels.
type Dataset struct {
	Images     [][]float32 // [num_samples][Width*Height], values in [0, 1] for IDX data
	Labels     []int32     // [num_samples]
	Width      int
	Height     int
	NumClasses int
}

// Len returns the number of examples.
func (d *Dataset) Len() int {
	return len(d.Labels)
}

// Dim returns the number of features per example.
func (d *Dataset) Dim() int {
	return d.Width * d.Height
}

// Validate checks that images and labels line up.
func (d *Dataset) Validate() error {
	if len(d.Images) != len(d.Labels) {
		return errors.Errorf("dataset has %d images but %d labels", len(d.Images), len(d.Labels))
	}
	for i, img := range d.Images {
		if len(img) != d.Dim() {
			return errors.Errorf("image %d has %d values, want %d", i, len(img), d.Dim())
		}
	}
	for i, l := range d.Labels {
		if l < 0 || int(l) >= d.NumClasses {
			return errors.Errorf("label %d of example %d outside [0, %d)", l, i, d.NumClasses)
		}
	}
	return nil
}

// Split returns the first n examples and the rest as two datasets sharing
// the underlying storage.
func (d *Dataset) Split(n int) (*Dataset, *Dataset) {
	n = min(max(n, 0), d.Len())
	head, tail := *d, *d
	head.Images, head.Labels = d.Images[:n], d.Labels[:n]
	tail.Images, tail.Labels = d.Images[n:], d.Labels[n:]
	return &head, &tail
}

// LoadIDX reads an image file and a label file in IDX format, normalizing
// pixels to [0, 1]. At most limit examples are loaded when limit > 0.
func LoadIDX(imagesPath, labelsPath string, limit int) (*Dataset, error) {
	imgFile, imgReader, err := openBuffered(imagesPath)
	if err != nil {
		return nil, err
	}
	defer imgFile.Close()
	raw, rows, cols, err := readIDXImages(imgReader, limit)
	if err != nil {
		return nil, errors.WithMessage(err, imagesPath)
	}

	lblFile, lblReader, err := openBuffered(labelsPath)
	if err != nil {
		return nil, err
	}
	defer lblFile.Close()
	labels, err := readIDXLabels(lblReader, limit)
	if err != nil {
		return nil, errors.WithMessage(err, labelsPath)
	}

	if len(raw) != len(labels) {
		return nil, errors.Wrapf(ErrInvalidIDX, "%d images but %d labels", len(raw), len(labels))
	}

	ds := &Dataset{
		Images: make([][]float32, len(raw)),
		Labels: make([]int32, len(labels)),
		Width:  cols,
		Height: rows,
	}
	for i, img := range raw {
		pixels := make([]float32, len(img))
		for j, p := range img {
			pixels[j] = float32(p) / 255
		}
		ds.Images[i] = pixels
		ds.Labels[i] = int32(labels[i])
		ds.NumClasses = max(ds.NumClasses, int(labels[i])+1)
	}
	klog.V(1).Infof("loaded %d examples (%dx%d) from %s", ds.Len(), cols, rows, imagesPath)
	return ds, nil
}

// LoadMNIST loads the MNIST training or test split from dir, which must hold
// the uncompressed files train-images-idx3-ubyte, train-labels-idx1-ubyte,
// t10k-images-idx3-ubyte and t10k-labels-idx1-ubyte.
func LoadMNIST(dir string, train bool, limit int) (*Dataset, error) {
	prefix := "t10k"
	if train {
		prefix = "train"
	}
	ds, err := LoadIDX(
		filepath.Join(dir, prefix+"-images-idx3-ubyte"),
		filepath.Join(dir, prefix+"-labels-idx1-ubyte"),
		limit,
	)
	if err != nil {
		return nil, err
	}
	ds.NumClasses = 10
	return ds, nil
}

// SyntheticRadius is the distance of every Synthetic class center from the
// origin.
const SyntheticRadius = 5

// Synthetic generates numClasses Gaussian blobs of perClass examples each in
// dim dimensions. Points have unit variance around their class center.
// Centers lie on the coordinate axes (+axis, then -axis) at SyntheticRadius,
// so for numClasses <= 2·dim any two centers are at least 5·√2 apart and
// the classes are separable in practice. Further classes get random
// directions. Examples are interleaved by class; the result is deterministic
// for a seed.
func Synthetic(numClasses, perClass, dim int, seed int64) *Dataset {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // synthetic data only
	centers := make([][]float64, numClasses)
	for c := range centers {
		center := make([]float64, dim)
		if c < 2*dim {
			center[c%dim] = SyntheticRadius
			if c >= dim {
				center[c%dim] = -SyntheticRadius
			}
			centers[c] = center
			continue
		}
		var norm float64
		for j := range center {
			center[j] = rng.NormFloat64()
			norm += center[j] * center[j]
		}
		scale := SyntheticRadius / max(1e-9, math.Sqrt(norm))
		for j := range center {
			center[j] *= scale
		}
		centers[c] = center
	}

	ds := &Dataset{Width: dim, Height: 1, NumClasses: numClasses}
	for range perClass {
		for c, center := range centers {
			x := make([]float32, dim)
			for j := range x {
				x[j] = float32(center[j] + rng.NormFloat64())
			}
			ds.Images = append(ds.Images, x)
			ds.Labels = append(ds.Labels, int32(c))
		}
	}
	return ds
}
