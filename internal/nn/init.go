package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/customgrad/internal/tensor"
)

// KaimingUniform initializes a weight for a ReLU layer with values drawn
// from U(-sqrt(6/fan_in), sqrt(6/fan_in)) using rng.
func KaimingUniform[B tensor.Backend](fanIn int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	bound := math.Sqrt(6.0 / float64(fanIn))
	return tensor.RandWith[float32](shape, -bound, bound, rng, backend)
}

// Xavier (Glorot) initialization: U(-sqrt(6/(fan_in+fan_out)), sqrt(6/(fan_in+fan_out))).
// Used for the output layer, which is not followed by a ReLU.
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	return tensor.RandWith[float32](shape, -bound, bound, rng, backend)
}
