package nn

import (
	"fmt"

	"github.com/born-ml/customgrad/internal/functions"
	"github.com/born-ml/customgrad/internal/tensor"
)

// CrossEntropyLoss computes the mean cross-entropy of raw logits against
// integer class labels.
//
// The loss is the softmax_cross_entropy custom function, so on an autodiff
// backend it is recorded as one tape entry whose backward is
//
//	∂L/∂logits = (Softmax(logits) - y_one_hot) / N
//
// Usage:
//
//	criterion := nn.NewCrossEntropyLoss[B]()
//	logits := model.Forward(input)             // [batch_size, num_classes]
//	loss := criterion.Forward(logits, labels)  // labels: int32 [batch_size]
type CrossEntropyLoss[B tensor.Backend] struct{}

// NewCrossEntropyLoss creates a new cross-entropy loss function.
func NewCrossEntropyLoss[B tensor.Backend]() *CrossEntropyLoss[B] {
	return &CrossEntropyLoss[B]{}
}

// Forward returns the scalar mean loss over the batch.
func (c *CrossEntropyLoss[B]) Forward(
	logits *tensor.Tensor[float32, B],
	labels *tensor.Tensor[int32, B],
) *tensor.Tensor[float32, B] {
	return functions.ApplySoftmaxCrossEntropy(logits, labels)
}

// Accuracy returns the fraction of rows whose arg-max logit equals the label.
func Accuracy[B tensor.Backend](
	logits *tensor.Tensor[float32, B],
	labels *tensor.Tensor[int32, B],
) float32 {
	shape := logits.Shape()
	if len(shape) != 2 || labels.NumElements() != shape[0] {
		panic(fmt.Sprintf("Accuracy: logits %v do not match labels %v", shape, labels.Shape()))
	}
	predicted := logits.Argmax(1).Data()
	correct := 0
	for i, label := range labels.Data() {
		if predicted[i] == label {
			correct++
		}
	}
	return float32(correct) / float32(shape[0])
}
