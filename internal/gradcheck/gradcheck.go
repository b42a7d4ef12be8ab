// Package gradcheck verifies the analytic gradients of custom functions
// against central finite differences.
//
// For a function f with output y and a random upstream gradient u, the
// analytic gradient of the scalar <u, f(x)> with respect to every element of
// every differentiable argument is compared against
//
//	(<u, f(x + ε·e_j)> - <u, f(x - ε·e_j)>) / 2ε
//
// Checks run on float64 copies of the arguments on the CPU backend.
package gradcheck

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/born-ml/customgrad/internal/autodiff"
	"github.com/born-ml/customgrad/internal/backend/cpu"
	"github.com/born-ml/customgrad/internal/functions"
	"github.com/born-ml/customgrad/internal/tensor"
	"github.com/gomlx/exceptions"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrGradientMismatch is wrapped by every MismatchError.
var ErrGradientMismatch = errors.New("analytic gradient does not match finite differences")

// Options controls the finite-difference comparison.
type Options struct {
	Epsilon float64 // Perturbation size (default: 1e-6)
	AbsTol  float64 // Absolute tolerance (default: 1e-4)
	RelTol  float64 // Tolerance relative to the numeric estimate (default: 1e-4)
	Seed    int64   // Seed for the upstream gradient and sampled inputs
}

// DefaultOptions returns the default tolerances.
func DefaultOptions() Options {
	return Options{
		Epsilon: 1e-6,
		AbsTol:  1e-4,
		RelTol:  1e-4,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Epsilon == 0 {
		o.Epsilon = d.Epsilon
	}
	if o.AbsTol == 0 {
		o.AbsTol = d.AbsTol
	}
	if o.RelTol == 0 {
		o.RelTol = d.RelTol
	}
	return o
}

// MismatchError reports the first element whose gradient is out of tolerance.
type MismatchError struct {
	Function string
	Slot     int // Argument position
	Index    int // Flat element index within the argument
	Analytic float64
	Numeric  float64
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: argument %d element %d: analytic %.6g, numeric %.6g (diff %.3g)",
		e.Function, e.Slot, e.Index, e.Analytic, e.Numeric, math.Abs(e.Analytic-e.Numeric))
}

// Unwrap returns ErrGradientMismatch.
func (e *MismatchError) Unwrap() error {
	return ErrGradientMismatch
}

// Check compares fn's backward against finite differences at args.
//
// It returns a *MismatchError for the first out-of-tolerance element, or a
// wrapped autodiff contract violation if fn breaks the gradient contract
// (wrong count or shape, unsaved state, gradient for a constant).
func Check(fn autodiff.Function, args []autodiff.Arg, opts Options) (err error) {
	opts = opts.withDefaults()
	backend := cpu.New()
	args = toFloat64(args)
	rng := rand.New(rand.NewSource(opts.Seed)) //nolint:gosec // statistical randomness only

	var (
		upstream *tensor.RawTensor
		grads    []autodiff.Grad
	)
	if caught := exceptions.TryCatch[error](func() {
		out, ctx := autodiff.Forward(backend, fn, args...)
		upstream = randomLike(out, rng)
		grads = autodiff.CallBackward(fn, ctx, upstream)
	}); caught != nil {
		return errors.WithMessagef(caught, "gradcheck %s", fn.Name())
	}

	u := upstream.ToFloat64()
	objective := func(perturbed []autodiff.Arg) float64 {
		out, _ := autodiff.Forward(backend, fn, perturbed...)
		var dot float64
		for i, v := range out.ToFloat64() {
			dot += u[i] * v
		}
		return dot
	}

	if caught := exceptions.TryCatch[error](func() {
		err = compare(fn.Name(), args, grads, objective, opts)
	}); caught != nil {
		return errors.WithMessagef(caught, "gradcheck %s", fn.Name())
	}
	return err
}

func compare(name string, args []autodiff.Arg, grads []autodiff.Grad,
	objective func([]autodiff.Arg) float64, opts Options,
) error {
	for slot, arg := range args {
		if !arg.RequiresGrad() {
			if !grads[slot].IsNone() {
				return errors.Wrapf(autodiff.ErrUnexpectedGradient, "%s: slot %d", name, slot)
			}
			continue
		}

		var analytic []float64
		if g := grads[slot].Tensor(); g != nil {
			analytic = g.ToFloat64()
		} else {
			analytic = make([]float64, arg.Tensor().NumElements())
		}

		x := arg.Tensor()
		for j := range analytic {
			numeric := centralDifference(args, slot, j, x, objective, opts.Epsilon)
			if math.Abs(analytic[j]-numeric) > opts.AbsTol+opts.RelTol*math.Abs(numeric) {
				return &MismatchError{Function: name, Slot: slot, Index: j, Analytic: analytic[j], Numeric: numeric}
			}
		}
		klog.V(2).Infof("gradcheck %s: slot %d ok (%d elements)", name, slot, len(analytic))
	}
	return nil
}

func centralDifference(args []autodiff.Arg, slot, j int, x *tensor.RawTensor,
	objective func([]autodiff.Arg) float64, eps float64,
) float64 {
	perturbed := append([]autodiff.Arg(nil), args...)
	eval := func(delta float64) float64 {
		p := x.Clone()
		p.AsFloat64()[j] += delta
		perturbed[slot] = autodiff.TensorArg(p)
		return objective(perturbed)
	}
	return (eval(eps) - eval(-eps)) / (2 * eps)
}

// toFloat64 returns args with every float tensor converted to float64,
// preserving constants, integer tensors and NoGrad marks.
func toFloat64(args []autodiff.Arg) []autodiff.Arg {
	out := make([]autodiff.Arg, len(args))
	for i, a := range args {
		if !a.IsTensor() || !a.Tensor().DType().IsFloat() {
			out[i] = a
			continue
		}
		t := a.Tensor()
		t64 := must.M1(tensor.RawFromFloat64(t.ToFloat64(), t.Shape(), tensor.Float64, tensor.CPU))
		out[i] = autodiff.TensorArg(t64)
		if !a.RequiresGrad() {
			out[i] = out[i].NoGrad()
		}
	}
	return out
}

func randomLike(t *tensor.RawTensor, rng *rand.Rand) *tensor.RawTensor {
	values := make([]float64, t.NumElements())
	for i := range values {
		values[i] = rng.NormFloat64()
	}
	return must.M1(tensor.RawFromFloat64(values, t.Shape(), tensor.Float64, tensor.CPU))
}

// Result is the outcome of checking one registered function.
type Result struct {
	Name string
	Err  error
}

// CheckAll runs Check on every sample in functions.Samples.
func CheckAll(opts Options) []Result {
	rng := rand.New(rand.NewSource(opts.Seed)) //nolint:gosec // statistical randomness only
	samples := functions.Samples()
	results := make([]Result, 0, len(samples))
	for _, s := range samples {
		name := s.Function.Name()
		err := Check(s.Function, s.Args(rng), opts)
		if err != nil {
			klog.Warningf("gradcheck %s: %v", name, err)
		} else {
			klog.V(1).Infof("gradcheck %s: ok", name)
		}
		results = append(results, Result{Name: name, Err: err})
	}
	return results
}

// Failed reports whether any result carries an error.
func Failed(results []Result) bool {
	for _, r := range results {
		if r.Err != nil {
			return true
		}
	}
	return false
}
