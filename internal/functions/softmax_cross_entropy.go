package functions

import (
	"math"

	"github.com/born-ml/customgrad/internal/autodiff"
	"github.com/born-ml/customgrad/internal/tensor"
	"github.com/gomlx/exceptions"
	"github.com/janpfeifer/must"
)

type softmaxCrossEntropy struct{}

// SoftmaxCrossEntropy returns the mean negative log-likelihood of integer
// class labels under softmax(logits):
//
//	loss = -1/N Σ_i log softmax(logits_i)[labels_i]
//
// logits has shape [N, C] and labels is an int32 tensor of shape [N].
// The log-sum-exp is shifted by the row maximum for stability. Forward saves
// the probabilities, so backward is
//
//	dloss/dlogits = (softmax(logits) - onehot(labels)) / N
func SoftmaxCrossEntropy() autodiff.Function { return softmaxCrossEntropy{} }

func (softmaxCrossEntropy) Name() string { return "softmax_cross_entropy" }

func (softmaxCrossEntropy) Forward(ctx *autodiff.Context, args ...autodiff.Arg) *tensor.RawTensor {
	checkArity("softmax_cross_entropy", args, 2)
	logits, labels := args[0].Tensor(), args[1].Tensor()
	shape := logits.Shape()
	if len(shape) != 2 {
		exceptions.Panicf("softmax_cross_entropy: logits must be [N, C], got %v", shape)
	}
	if labels.DType() != tensor.Int32 || !labels.Shape().Equal(tensor.Shape{shape[0]}) {
		exceptions.Panicf("softmax_cross_entropy: labels must be int32 [%d], got %s%v",
			shape[0], labels.DType(), labels.Shape())
	}
	n, c := shape[0], shape[1]

	x := logits.ToFloat64()
	y := labels.AsInt32()
	probs := make([]float64, len(x))
	var total float64
	for i := range n {
		row := x[i*c : (i+1)*c]
		label := int(y[i])
		if label < 0 || label >= c {
			exceptions.Panicf("softmax_cross_entropy: label %d out of range [0, %d)", label, c)
		}
		maxV := math.Inf(-1)
		for _, v := range row {
			maxV = max(maxV, v)
		}
		var sum float64
		for j, v := range row {
			e := math.Exp(v - maxV)
			probs[i*c+j] = e
			sum += e
		}
		for j := range row {
			probs[i*c+j] /= sum
		}
		total -= row[label] - maxV - math.Log(sum)
	}

	p := must.M1(tensor.RawFromFloat64(probs, shape, logits.DType(), logits.Device()))
	ctx.SaveForBackward(p, labels)
	return must.M1(tensor.RawFromFloat64([]float64{total / float64(n)}, tensor.Shape{}, logits.DType(), logits.Device()))
}

func (softmaxCrossEntropy) Backward(ctx *autodiff.Context, grad *tensor.RawTensor) []autodiff.Grad {
	probs, labels := ctx.SavedTensor(0), ctx.SavedTensor(1)
	return []autodiff.Grad{
		gradIf(ctx, 0, func() *tensor.RawTensor {
			shape := probs.Shape()
			n, c := shape[0], shape[1]
			scale := grad.ToFloat64()[0] / float64(n)
			g := probs.ToFloat64()
			for i, label := range labels.AsInt32() {
				g[i*c+int(label)]--
			}
			for i := range g {
				g[i] *= scale
			}
			return must.M1(tensor.RawFromFloat64(g, shape, probs.DType(), probs.Device()))
		}),
		autodiff.NoGrad(),
	}
}

// ApplySoftmaxCrossEntropy computes the mean softmax cross-entropy of logits
// against int32 labels through the autodiff runtime.
func ApplySoftmaxCrossEntropy[T tensor.Float, B tensor.Backend](logits *tensor.Tensor[T, B], labels *tensor.Tensor[int32, B]) *tensor.Tensor[T, B] {
	out := autodiff.Apply(logits.Backend(), softmaxCrossEntropy{},
		autodiff.TrackedArg(logits.Raw()), autodiff.TensorArg(labels.Raw()).NoGrad())
	return tensor.New[T](out, logits.Backend())
}
