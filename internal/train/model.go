package train

import (
	"math/rand"

	"github.com/born-ml/customgrad/internal/nn"
	"github.com/born-ml/customgrad/internal/tensor"
)

// NewClassifier builds an MLP inputDim -> Hidden... -> numClasses with ReLU
// between layers. With cfg.Checkpointing every Linear+ReLU block is wrapped
// in nn.Checkpoint. Initialization is seeded by cfg.Seed.
func NewClassifier[B tensor.Backend](cfg Config, inputDim, numClasses int, backend B) *nn.Sequential[B] {
	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // weight init only
	model := nn.NewSequential[B](nn.NewFlatten[B]())

	in := inputDim
	for _, width := range cfg.Hidden {
		block := nn.NewSequential[B](nn.NewLinear(in, width, rng, backend), nn.NewReLU[B]())
		if cfg.Checkpointing {
			model.Add(nn.NewCheckpoint[B](block))
		} else {
			model.Add(block)
		}
		in = width
	}

	head := nn.NewLinear(in, numClasses, rng, backend)
	head.ResetXavier(rng)
	model.Add(head)
	return model
}

// CheckpointSavings returns the activation bytes the checkpointed blocks of
// model have recomputed in backward instead of keeping since forward.
// Checkpoints nested inside a checkpoint are not counted twice.
func CheckpointSavings[B tensor.Backend](model *nn.Sequential[B]) uint64 {
	var total uint64
	model.Walk(func(m nn.Module[B]) bool {
		c, ok := m.(*nn.Checkpoint[B])
		if ok {
			total += c.SavedActivations()
		}
		return !ok
	})
	return total
}
