// Package train fits classifiers built from nn modules with the custom
// softmax cross-entropy function and reports loss and accuracy.
package train

import (
	"io"
	"slices"
	"strings"

	"github.com/born-ml/customgrad/internal/optim"
	"github.com/pkg/errors"
)

// Config holds the hyperparameters of a training run.
type Config struct {
	Epochs        int     // Passes over the training set (default: 5)
	BatchSize     int     // Examples per step (default: 64)
	LearningRate  float32 // Optimizer learning rate (default: 0.001)
	Optimizer     string  // "sgd" or "adam" (default: "adam")
	Hidden        []int   // Hidden layer widths (default: [128])
	Checkpointing bool    // Wrap hidden blocks in nn.Checkpoint
	Seed          int64   // Seed for weight init and shuffling
	LogEvery      int     // Steps between loss reports (default: 50)

	// Progress, when set, receives a progress bar per epoch.
	Progress io.Writer
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Epochs:       5,
		BatchSize:    64,
		LearningRate: 0.001,
		Optimizer:    "adam",
		Hidden:       []int{128},
		Seed:         1,
		LogEvery:     50,
	}
}

// ErrInvalidConfig is wrapped by every Validate error.
var ErrInvalidConfig = errors.New("invalid training config")

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.Epochs <= 0:
		return errors.Wrapf(ErrInvalidConfig, "epochs must be positive, got %d", c.Epochs)
	case c.BatchSize <= 0:
		return errors.Wrapf(ErrInvalidConfig, "batch size must be positive, got %d", c.BatchSize)
	case c.LearningRate <= 0:
		return errors.Wrapf(ErrInvalidConfig, "learning rate must be positive, got %g", c.LearningRate)
	case c.LogEvery < 0:
		return errors.Wrapf(ErrInvalidConfig, "log interval must not be negative, got %d", c.LogEvery)
	case !slices.Contains(optim.Names, strings.ToLower(c.Optimizer)):
		return errors.Wrapf(ErrInvalidConfig, "optimizer %q (want one of %s)", c.Optimizer, strings.Join(optim.Names, ", "))
	}
	for i, h := range c.Hidden {
		if h <= 0 {
			return errors.Wrapf(ErrInvalidConfig, "hidden layer %d has width %d", i, h)
		}
	}
	return nil
}

// Params returns the configuration as tracker parameters.
func (c Config) Params() map[string]any {
	return map[string]any{
		"epochs":        c.Epochs,
		"batch_size":    c.BatchSize,
		"learning_rate": c.LearningRate,
		"optimizer":     c.Optimizer,
		"hidden":        c.Hidden,
		"checkpointing": c.Checkpointing,
		"seed":          c.Seed,
	}
}
