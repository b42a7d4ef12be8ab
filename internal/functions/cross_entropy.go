package functions

import (
	"math"

	"github.com/born-ml/customgrad/internal/autodiff"
	"github.com/born-ml/customgrad/internal/tensor"
	"github.com/gomlx/exceptions"
	"github.com/janpfeifer/must"
)

// ClipEpsilon bounds predicted probabilities to [ClipEpsilon, 1-ClipEpsilon]
// before taking their logarithm.
const ClipEpsilon = 1e-7

type crossEntropy struct{}

// CrossEntropy returns the loss
//
//	loss(y_true, y_pred) = -Σ y_true·log(clip(y_pred, ε, 1-ε)) / N
//
// where N is the size of the first (batch) dimension and ε is ClipEpsilon.
//
// The forward pass is computed with plain float64 loops, outside the tensor
// backend, so nothing in it can be differentiated automatically. Backward
// supplies the analytic derivative instead:
//
//	dloss/dy_pred = -y_true / (y_pred·N)
//
// with y_pred clipped the same way to keep it finite. y_true is a fixed label
// tensor and never receives a gradient.
func CrossEntropy() autodiff.Function { return crossEntropy{} }

func (crossEntropy) Name() string { return "cross_entropy" }

func (crossEntropy) Forward(ctx *autodiff.Context, args ...autodiff.Arg) *tensor.RawTensor {
	checkArity("cross_entropy", args, 2)
	yTrue, yPred := args[0].Tensor(), args[1].Tensor()
	if !yTrue.Shape().Equal(yPred.Shape()) {
		exceptions.Panicf("cross_entropy: y_true shape %v does not match y_pred shape %v",
			yTrue.Shape(), yPred.Shape())
	}
	ctx.SaveForBackward(yTrue, yPred)

	n := batchSize(yPred.Shape())
	ctx.SetConstant("n", n)

	t, p := yTrue.ToFloat64(), yPred.ToFloat64()
	var total float64
	for i := range p {
		total -= t[i] * math.Log(clip(p[i]))
	}
	return must.M1(tensor.RawFromFloat64([]float64{total / n}, tensor.Shape{}, yPred.DType(), yPred.Device()))
}

func (crossEntropy) Backward(ctx *autodiff.Context, grad *tensor.RawTensor) []autodiff.Grad {
	yTrue, yPred := ctx.SavedTensor(0), ctx.SavedTensor(1)
	n := ctx.Constant("n")
	g := grad.ToFloat64()[0]
	return []autodiff.Grad{
		autodiff.NoGrad(),
		gradIf(ctx, 1, func() *tensor.RawTensor {
			return zipValues(yPred, yTrue, func(p, t float64) float64 {
				return -g * t / (clip(p) * n)
			})
		}),
	}
}

// ApplyCrossEntropy computes the clipped cross-entropy of predictions yPred
// against fixed targets yTrue through the autodiff runtime.
func ApplyCrossEntropy[T tensor.Float, B tensor.Backend](yTrue, yPred *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	out := autodiff.Apply(yPred.Backend(), crossEntropy{},
		autodiff.TensorArg(yTrue.Raw()).NoGrad(), autodiff.TrackedArg(yPred.Raw()))
	return tensor.New[T](out, yPred.Backend())
}

func clip(p float64) float64 {
	return min(max(p, ClipEpsilon), 1-ClipEpsilon)
}

// batchSize is the size of the first dimension, or 1 for scalars.
func batchSize(shape tensor.Shape) float64 {
	if len(shape) == 0 {
		return 1
	}
	return float64(shape[0])
}
