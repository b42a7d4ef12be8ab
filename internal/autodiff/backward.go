package autodiff

import (
	"fmt"

	"github.com/born-ml/customgrad/internal/tensor"
)

// BackwardCapable is implemented by backends that own a gradient tape.
// AutodiffBackend implements this interface.
type BackwardCapable interface {
	tensor.Backend
	// GetTape returns the gradient tape for backward computation.
	GetTape() *GradientTape
}

// TapeOwner is a BackwardCapable backend whose tape can be replaced
// temporarily, e.g. to recompute a checkpointed segment.
type TapeOwner interface {
	BackwardCapable
	SwapTape(t *GradientTape) *GradientTape
}

// Backward computes gradients of t using the backend's tape, seeding the
// output gradient with ones shaped like t.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	x := tensor.Ones[float32](tensor.Shape{2}, backend)
//	y := x.Mul(x) // y = x²
//	gradients := autodiff.Backward(y, backend)
//	grad := gradients[x.Raw()] // 2x
func Backward[T tensor.DType, B BackwardCapable](t *tensor.Tensor[T, B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	return BackwardRaw(t.Raw(), backend)
}

// BackwardRaw is Backward for an untyped output tensor.
func BackwardRaw(output *tensor.RawTensor, backend BackwardCapable) map[*tensor.RawTensor]*tensor.RawTensor {
	tape := backend.GetTape()
	if tape.NumOps() == 0 {
		panic("backward: no operations recorded (did you forget to call Tape().StartRecording()?)")
	}
	if !output.DType().IsFloat() {
		panic(fmt.Sprintf("backward: unsupported dtype %s (only float32/float64 supported)", output.DType()))
	}

	outputGrad := tensor.MustNewRaw(output.Shape(), output.DType(), backend.Device())
	outputGrad.Fill(1)
	return tape.Backward(output, outputGrad, backend)
}

// tapeOf returns the tape owned by backend, or nil for plain backends.
func tapeOf(backend tensor.Backend) *GradientTape {
	if bc, ok := backend.(BackwardCapable); ok {
		return bc.GetTape()
	}
	return nil
}
