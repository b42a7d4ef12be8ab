package data

import (
	"math/rand"

	"github.com/born-ml/customgrad/internal/tensor"
	"github.com/janpfeifer/must"
)

// Batch is a contiguous block of examples.
type Batch struct {
	Images []float32 // [Size*dim], row-major
	Labels []int32   // [Size]
	Size   int
	Dim    int
}

// Tensors converts the batch into an image tensor [Size, Dim] and a label
// tensor [Size] on backend.
func Tensors[B tensor.Backend](b *Batch, backend B) (*tensor.Tensor[float32, B], *tensor.Tensor[int32, B]) {
	images := must.M1(tensor.FromSlice(b.Images, tensor.Shape{b.Size, b.Dim}, backend))
	labels := must.M1(tensor.FromSlice(b.Labels, tensor.Shape{b.Size}, backend))
	return images, labels
}

// Iterator yields the batches of one pass over a dataset.
type Iterator struct {
	ds        *Dataset
	order     []int
	batchSize int
	pos       int
}

// Batches returns an iterator over ds in batches of batchSize. When rng is
// not nil the examples are shuffled first; otherwise they keep their order.
// The last batch may be smaller than batchSize.
func Batches(ds *Dataset, batchSize int, rng *rand.Rand) *Iterator {
	if batchSize <= 0 {
		batchSize = ds.Len()
	}
	order := make([]int, ds.Len())
	for i := range order {
		order[i] = i
	}
	if rng != nil {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	return &Iterator{ds: ds, order: order, batchSize: batchSize}
}

// NumBatches returns the total number of batches in the pass.
func (it *Iterator) NumBatches() int {
	return (len(it.order) + it.batchSize - 1) / it.batchSize
}

// Next returns the next batch, or false when the pass is complete.
func (it *Iterator) Next() (*Batch, bool) {
	if it.pos >= len(it.order) {
		return nil, false
	}
	end := min(it.pos+it.batchSize, len(it.order))
	dim := it.ds.Dim()
	b := &Batch{
		Images: make([]float32, 0, (end-it.pos)*dim),
		Labels: make([]int32, 0, end-it.pos),
		Size:   end - it.pos,
		Dim:    dim,
	}
	for _, idx := range it.order[it.pos:end] {
		b.Images = append(b.Images, it.ds.Images[idx]...)
		b.Labels = append(b.Labels, it.ds.Labels[idx])
	}
	it.pos = end
	return b, true
}
