package train

import (
	"fmt"

	"github.com/born-ml/customgrad/internal/nn"
	"github.com/born-ml/customgrad/internal/serialization"
	"github.com/born-ml/customgrad/internal/tensor"
	"github.com/pkg/errors"
)

// parameterNames prefixes each parameter name with its position so that
// names are unique across layers, e.g. "0.weight", "1.bias".
func parameterNames[B tensor.Backend](params []*nn.Parameter[B]) []string {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = fmt.Sprintf("%d.%s", i, p.Name())
	}
	return names
}

// SaveModel writes the parameters of model to path. training may be nil.
func SaveModel[B tensor.Backend](path string, model nn.Module[B], training *serialization.TrainingMeta) error {
	params := model.Parameters()
	names := parameterNames(params)
	tensors := make([]serialization.Named, len(params))
	for i, p := range params {
		tensors[i] = serialization.Named{Name: names[i], Tensor: p.Tensor().Raw()}
	}
	header := serialization.Header{
		Metadata: map[string]string{"parameters": fmt.Sprint(nn.CountParameters(params))},
		Training: training,
	}
	return serialization.Save(path, tensors, header)
}

// LoadModel copies the parameters stored at path into model, which must have
// the same architecture as the saved one.
func LoadModel[B tensor.Backend](path string, model nn.Module[B]) (*serialization.File, error) {
	f, err := serialization.Load(path)
	if err != nil {
		return nil, err
	}
	params := model.Parameters()
	if got := len(f.Header.Tensors); got != len(params) {
		return nil, errors.Errorf("%s holds %d tensors, model has %d parameters", path, got, len(params))
	}
	for i, name := range parameterNames(params) {
		src, ok := f.Tensor(name)
		if !ok {
			return nil, errors.Errorf("%s: missing parameter %q", path, name)
		}
		dst := params[i].Tensor().Raw()
		if !src.Shape().Equal(dst.Shape()) || src.DType() != dst.DType() {
			return nil, errors.Errorf("%s: parameter %q is %s%v, model expects %s%v",
				path, name, src.DType(), src.Shape(), dst.DType(), dst.Shape())
		}
		copy(dst.Bytes(), src.Bytes())
	}
	return f, nil
}

// TrainingMeta summarizes result for storage next to the parameters.
func TrainingMeta(cfg Config, result *Result, run string) *serialization.TrainingMeta {
	final := result.Final()
	return &serialization.TrainingMeta{
		Run:          run,
		Epochs:       len(result.Epochs),
		Steps:        result.Steps,
		Optimizer:    cfg.Optimizer,
		EvalLoss:     final.Loss,
		EvalAccuracy: final.Accuracy,
	}
}
