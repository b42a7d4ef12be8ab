package train

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/born-ml/customgrad/internal/autodiff"
	"github.com/born-ml/customgrad/internal/data"
	"github.com/born-ml/customgrad/internal/nn"
	"github.com/born-ml/customgrad/internal/optim"
	"github.com/born-ml/customgrad/internal/tracking"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

// Metrics summarizes a model on a dataset.
type Metrics struct {
	Loss     float64
	Accuracy float64
}

// EpochResult is the outcome of one training epoch.
type EpochResult struct {
	Epoch     int
	TrainLoss float64 // Mean of the step losses
	Eval      Metrics
	Duration  time.Duration
}

// Result is the outcome of Fit.
type Result struct {
	Epochs []EpochResult
	Steps  int
}

// Final returns the evaluation metrics after the last epoch.
func (r *Result) Final() Metrics {
	if len(r.Epochs) == 0 {
		return Metrics{}
	}
	return r.Epochs[len(r.Epochs)-1].Eval
}

// Trainer fits a model with an optimizer on an autodiff backend.
type Trainer[B autodiff.TapeOwner] struct {
	cfg       Config
	backend   B
	model     nn.Module[B]
	optimizer optim.Optimizer
	criterion *nn.CrossEntropyLoss[B]
	tracker   tracking.Tracker
	step      int
}

// NewTrainer creates a trainer for model. A nil tracker logs through klog.
func NewTrainer[B autodiff.TapeOwner](cfg Config, model nn.Module[B], backend B, tracker tracking.Tracker) (*Trainer[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opt, err := optim.New(cfg.Optimizer, model.Parameters(), cfg.LearningRate)
	if err != nil {
		return nil, err
	}
	if tracker == nil {
		tracker = tracking.NewKlogTracker("train", 1)
	}
	return &Trainer[B]{
		cfg:       cfg,
		backend:   backend,
		model:     model,
		optimizer: opt,
		criterion: nn.NewCrossEntropyLoss[B](),
		tracker:   tracker,
	}, nil
}

// Fit trains for cfg.Epochs passes over trainSet, evaluating on evalSet after
// each epoch. It stops between steps when ctx is cancelled and returns the
// epochs completed so far together with ctx's error.
func (t *Trainer[B]) Fit(ctx context.Context, trainSet, evalSet *data.Dataset) (*Result, error) {
	if err := checkDataset("train", trainSet); err != nil {
		return nil, err
	}
	if err := checkDataset("eval", evalSet); err != nil {
		return nil, err
	}

	params := t.cfg.Params()
	params["parameters"] = nn.CountParameters(t.model.Parameters())
	params["train_examples"] = trainSet.Len()
	t.tracker.LogParams(params)
	klog.Infof("training %s parameters on %s examples (%s)",
		humanize.Comma(int64(nn.CountParameters(t.model.Parameters()))),
		humanize.Comma(int64(trainSet.Len())), t.backend.Name())

	rng := rand.New(rand.NewSource(t.cfg.Seed)) //nolint:gosec // shuffling only
	result := &Result{}
	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		start := time.Now()
		trainLoss, err := t.runEpoch(ctx, epoch, trainSet, rng)
		result.Steps = t.step
		if err != nil {
			return result, err
		}

		eval := t.Evaluate(evalSet)
		er := EpochResult{Epoch: epoch, TrainLoss: trainLoss, Eval: eval, Duration: time.Since(start)}
		result.Epochs = append(result.Epochs, er)

		t.tracker.LogMetric("epoch/train_loss", epoch, trainLoss)
		t.tracker.LogMetric("epoch/eval_loss", epoch, eval.Loss)
		t.tracker.LogMetric("epoch/eval_accuracy", epoch, eval.Accuracy)
		klog.Infof("epoch %d/%d: train loss %.4f, eval loss %.4f, eval accuracy %.2f%% (%s)",
			epoch, t.cfg.Epochs, trainLoss, eval.Loss, 100*eval.Accuracy, er.Duration.Round(time.Millisecond))
	}
	return result, nil
}

func checkDataset(name string, ds *data.Dataset) error {
	if ds == nil || ds.Len() == 0 {
		return errors.Errorf("%s dataset is empty", name)
	}
	return errors.WithMessagef(ds.Validate(), "%s dataset", name)
}

func (t *Trainer[B]) runEpoch(ctx context.Context, epoch int, ds *data.Dataset, rng *rand.Rand) (float64, error) {
	it := data.Batches(ds, t.cfg.BatchSize, rng)
	var bar *progressbar.ProgressBar
	if t.cfg.Progress != nil {
		bar = progressbar.NewOptions(it.NumBatches(),
			progressbar.OptionSetDescription(fmt.Sprintf("epoch %d/%d", epoch, t.cfg.Epochs)),
			progressbar.OptionSetWriter(t.cfg.Progress),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("steps"),
			progressbar.OptionSetTheme(progressbar.ThemeASCII),
		)
		defer func() { _ = bar.Finish() }()
	}

	var total float64
	var steps int
	for batch, ok := it.Next(); ok; batch, ok = it.Next() {
		if err := ctx.Err(); err != nil {
			return 0, errors.Wrapf(err, "epoch %d interrupted after %d steps", epoch, steps)
		}
		loss := t.trainStep(batch)
		total += loss
		steps++
		t.step++

		if t.cfg.LogEvery > 0 && t.step%t.cfg.LogEvery == 0 {
			t.tracker.LogMetric("train/loss", t.step, loss)
		}
		klog.V(2).Infof("step %d: loss %.5f", t.step, loss)
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	return total / float64(steps), nil
}

// trainStep runs forward, backward and one optimizer update on batch.
func (t *Trainer[B]) trainStep(batch *data.Batch) float64 {
	tape := t.backend.GetTape()
	tape.Clear()
	tape.StartRecording()

	images, labels := data.Tensors(batch, t.backend)
	loss := t.criterion.Forward(t.model.Forward(images), labels)
	grads := autodiff.Backward(loss, t.backend)

	tape.StopRecording()
	tape.Clear()
	t.optimizer.Step(grads)
	return float64(loss.Item())
}

// Evaluate returns the mean loss and accuracy of the model on ds, computed
// without recording gradients.
func (t *Trainer[B]) Evaluate(ds *data.Dataset) Metrics {
	tape := t.backend.GetTape()
	defer tape.Pause()()

	var loss, correct float64
	it := data.Batches(ds, t.cfg.BatchSize, nil)
	for batch, ok := it.Next(); ok; batch, ok = it.Next() {
		images, labels := data.Tensors(batch, t.backend)
		logits := t.model.Forward(images)
		n := float64(batch.Size)
		loss += float64(t.criterion.Forward(logits, labels).Item()) * n
		correct += float64(nn.Accuracy(logits, labels)) * n
	}
	total := float64(ds.Len())
	return Metrics{Loss: loss / total, Accuracy: correct / total}
}

// Model returns the trained model.
func (t *Trainer[B]) Model() nn.Module[B] {
	return t.model
}

// Steps returns the number of optimizer steps taken.
func (t *Trainer[B]) Steps() int {
	return t.step
}
