// Package main provides the customgrad CLI: it verifies the registered
// differentiable functions with finite differences and trains a small
// classifier through them.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/born-ml/customgrad/internal/autodiff"
	"github.com/born-ml/customgrad/internal/backend/cpu"
	"github.com/born-ml/customgrad/internal/data"
	"github.com/born-ml/customgrad/internal/gradcheck"
	"github.com/born-ml/customgrad/internal/serialization"
	"github.com/born-ml/customgrad/internal/tracking"
	"github.com/born-ml/customgrad/internal/train"
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const version = "v0.1.0"

var (
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Padding(0, 1).Bold(true)
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "version":
		fmt.Printf("customgrad %s\n", version)
	case "gradcheck":
		err = runGradcheck(args)
	case "train":
		err = runTrain(args)
	case "inspect":
		err = runInspect(args)
	case "help", "-h", "-help", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}
	klog.Flush()
	if err != nil {
		fmt.Fprintf(os.Stderr, "customgrad: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("customgrad - custom differentiable functions for Go")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version     Show version")
	fmt.Println("  gradcheck   Compare analytic and numeric gradients of every registered function")
	fmt.Println("  train       Train an MLP classifier on IDX files or synthetic data")
	fmt.Println("  inspect     List the tensors of a saved parameter file")
	fmt.Println("")
	fmt.Println("Run 'customgrad <command> -h' for the command's flags.")
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	klog.InitFlags(fs)
	return fs
}

func newTable(headers ...string) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.RoundedBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == lgtable.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

func runGradcheck(args []string) error {
	opts := gradcheck.DefaultOptions()
	fs := newFlagSet("gradcheck")
	fs.Float64Var(&opts.Epsilon, "eps", opts.Epsilon, "finite-difference step")
	fs.Float64Var(&opts.AbsTol, "tol", opts.AbsTol, "absolute tolerance")
	fs.Float64Var(&opts.RelTol, "rtol", opts.RelTol, "relative tolerance")
	fs.Int64Var(&opts.Seed, "seed", 1, "seed for sampled inputs")
	if err := fs.Parse(args); err != nil {
		return err
	}

	results := gradcheck.CheckAll(opts)
	table := newTable("Function", "Status", "Detail")
	for _, r := range results {
		status, detail := "ok", ""
		if r.Err != nil {
			status, detail = "FAIL", r.Err.Error()
		}
		table.Row(r.Name, status, detail)
	}
	fmt.Println(table.String())

	if gradcheck.Failed(results) {
		return errors.New("gradient check failed")
	}
	return nil
}

func runTrain(args []string) error {
	cfg := train.DefaultConfig()
	fs := newFlagSet("train")
	dir := fs.String("data", "", "directory with MNIST IDX files; synthetic blobs when empty")
	limit := fs.Int("limit", 0, "maximum examples per split (0 for all)")
	hidden := fs.String("hidden", "128", "comma-separated hidden layer widths")
	progress := fs.Bool("progress", true, "show a progress bar per epoch")
	save := fs.String("save", "", "write the trained parameters to this file")
	fs.IntVar(&cfg.Epochs, "epochs", cfg.Epochs, "training epochs")
	fs.IntVar(&cfg.BatchSize, "batch", cfg.BatchSize, "batch size")
	lr := fs.Float64("lr", float64(cfg.LearningRate), "learning rate")
	fs.StringVar(&cfg.Optimizer, "optimizer", cfg.Optimizer, "optimizer: sgd or adam")
	fs.BoolVar(&cfg.Checkpointing, "checkpoint", false, "recompute hidden activations in backward")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "seed for initialization and shuffling")
	fs.IntVar(&cfg.LogEvery, "log_every", cfg.LogEvery, "steps between loss reports")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.LearningRate = float32(*lr)
	widths, err := parseWidths(*hidden)
	if err != nil {
		return err
	}
	cfg.Hidden = widths
	if *progress {
		cfg.Progress = os.Stderr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	trainSet, evalSet, err := loadData(*dir, *limit, cfg.Seed)
	if err != nil {
		return err
	}

	backend := autodiff.New(cpu.New())
	model := train.NewClassifier(cfg, trainSet.Dim(), trainSet.NumClasses, backend)
	memory := tracking.NewMemoryTracker()
	run := tracking.NewRunID()
	tracker := tracking.Multi(tracking.NewKlogTracker(run, 1), memory)
	trainer, err := train.NewTrainer(cfg, model, backend, tracker)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	klog.Infof("%s: %s train / %s eval examples, %d classes",
		run, humanize.Comma(int64(trainSet.Len())), humanize.Comma(int64(evalSet.Len())), trainSet.NumClasses)
	result, fitErr := trainer.Fit(ctx, trainSet, evalSet)
	if result == nil {
		return fitErr
	}

	table := newTable("Epoch", "Train loss", "Eval loss", "Eval accuracy", "Time")
	for _, e := range result.Epochs {
		table.Row(strconv.Itoa(e.Epoch),
			fmt.Sprintf("%.4f", e.TrainLoss),
			fmt.Sprintf("%.4f", e.Eval.Loss),
			fmt.Sprintf("%.2f%%", 100*e.Eval.Accuracy),
			e.Duration.Round(time.Millisecond).String())
	}
	fmt.Println(table.String())
	if cfg.Checkpointing {
		fmt.Printf("checkpointing recomputed %s of activations in backward\n",
			humanize.Bytes(train.CheckpointSavings(model)))
	}
	if err := tracker.Finish(); err != nil {
		klog.Warningf("%s: %v", run, err)
	}
	if fitErr != nil {
		return fitErr
	}
	if *save != "" {
		if err := train.SaveModel(*save, model, train.TrainingMeta(cfg, result, run)); err != nil {
			return err
		}
		klog.Infof("%s: saved parameters to %s", run, *save)
	}
	return nil
}

func runInspect(args []string) error {
	fs := newFlagSet("inspect")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: customgrad inspect FILE")
	}
	f, err := serialization.Load(fs.Arg(0))
	if err != nil {
		return err
	}

	fmt.Printf("%s: format v%d, created %s, %s of tensor data\n",
		fs.Arg(0), f.Header.FormatVersion, humanize.Time(f.Header.CreatedAt), humanize.Bytes(uint64(f.DataSize())))
	if tm := f.Header.Training; tm != nil {
		fmt.Printf("trained by %s: %d epochs, %s steps with %s, eval accuracy %.2f%%\n",
			tm.Run, tm.Epochs, humanize.Comma(int64(tm.Steps)), tm.Optimizer, 100*tm.EvalAccuracy)
	}
	table := newTable("Tensor", "DType", "Shape", "Size")
	for _, m := range f.Header.Tensors {
		table.Row(m.Name, m.DType, fmt.Sprint(m.Shape), humanize.Bytes(uint64(m.Size)))
	}
	fmt.Println(table.String())
	return nil
}

func parseWidths(s string) ([]int, error) {
	var widths []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		w, err := strconv.Atoi(part)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid hidden width %q", part)
		}
		widths = append(widths, w)
	}
	return widths, nil
}

func loadData(dir string, limit int, seed int64) (trainSet, evalSet *data.Dataset, err error) {
	if dir == "" {
		perClass := 200
		if limit > 0 {
			perClass = max(1, limit/10)
		}
		ds := data.Synthetic(10, perClass, 64, seed)
		trainSet, evalSet = ds.Split(ds.Len() * 4 / 5)
		klog.Infof("no -data directory given, using synthetic Gaussian blobs")
		return trainSet, evalSet, nil
	}
	if trainSet, err = data.LoadMNIST(dir, true, limit); err != nil {
		return nil, nil, err
	}
	if evalSet, err = data.LoadMNIST(dir, false, limit); err != nil {
		return nil, nil, err
	}
	return trainSet, evalSet, nil
}
