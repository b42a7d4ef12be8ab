package nn

import (
	"github.com/born-ml/customgrad/internal/autodiff"
	"github.com/born-ml/customgrad/internal/tensor"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"
)

// Checkpoint wraps a module with gradient checkpointing: activations inside
// the module are not kept between forward and backward.
//
// The forward pass runs the wrapped module with recording suspended and
// stores only its input. The backward pass runs the module again under a
// private tape, back-propagates the upstream gradient through that tape and
// returns gradients for the input and for every parameter of the module.
// This trades one extra forward computation for the memory of the
// intermediate activations.
//
// Checkpoint is implemented as an autodiff.Function, so training through it
// requires an autodiff backend (one that implements autodiff.TapeOwner).
// On any other backend, or when the tape is not recording, Forward simply
// calls the wrapped module.
//
// Example:
//
//	block := nn.NewCheckpoint[B](nn.NewSequential[B](
//	    nn.NewLinear(512, 512, rng, backend),
//	    nn.NewReLU[B](),
//	))
type Checkpoint[B tensor.Backend] struct {
	module  Module[B]
	name    string
	avoided uint64 // activation bytes recomputed instead of stored
}

// NewCheckpoint wraps module with gradient checkpointing.
func NewCheckpoint[B tensor.Backend](module Module[B]) *Checkpoint[B] {
	return &Checkpoint[B]{module: module, name: "checkpoint"}
}

// Forward runs the wrapped module. When gradients are being recorded the
// whole module appears on the tape as a single custom function.
func (c *Checkpoint[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := input.Backend()
	owner, ok := any(backend).(autodiff.TapeOwner)
	if !ok || !owner.GetTape().IsRecording() {
		return c.module.Forward(input)
	}

	params := c.module.Parameters()
	args := make([]autodiff.Arg, 0, 1+len(params))
	args = append(args, autodiff.TrackedArg(input.Raw()))
	for _, p := range params {
		args = append(args, autodiff.TensorArg(p.Tensor().Raw()))
	}
	out := autodiff.Apply(backend, &checkpointFunction[B]{c: c, backend: backend}, args...)
	return tensor.New[float32](out, backend)
}

// Parameters returns the wrapped module's parameters.
func (c *Checkpoint[B]) Parameters() []*Parameter[B] {
	return c.module.Parameters()
}

// Module returns the wrapped module.
func (c *Checkpoint[B]) Module() Module[B] {
	return c.module
}

// SavedActivations returns the total size in bytes of the activations that
// were recomputed during backward instead of being held since forward.
func (c *Checkpoint[B]) SavedActivations() uint64 {
	return c.avoided
}

// checkpointFunction is the autodiff.Function recorded for one Forward call.
// Argument 0 is the module input; the rest are the module parameters in
// Parameters() order.
type checkpointFunction[B tensor.Backend] struct {
	c       *Checkpoint[B]
	backend B
}

func (f *checkpointFunction[B]) Name() string { return f.c.name }

func (f *checkpointFunction[B]) Forward(ctx *autodiff.Context, args ...autodiff.Arg) *tensor.RawTensor {
	x := args[0].Tensor()
	ctx.SaveForBackward(x)
	out := f.c.module.Forward(tensor.New[float32](x, f.backend)).Raw()
	if out == x {
		// The module passed its input through unchanged.
		out = x.Clone()
	}
	return out
}

func (f *checkpointFunction[B]) Backward(ctx *autodiff.Context, grad *tensor.RawTensor) []autodiff.Grad {
	x := ctx.SavedTensor(0)
	owner, ok := any(f.backend).(autodiff.TapeOwner)
	if !ok {
		exceptions.Panicf("%s: backend %s cannot record a recomputation tape", f.c.name, f.backend.Name())
	}

	tape := autodiff.NewGradientTape()
	prev := owner.SwapTape(tape)
	defer owner.SwapTape(prev)

	tape.StartRecording()
	out := f.c.module.Forward(tensor.New[float32](x, f.backend)).Raw()
	tape.StopRecording()

	var recomputed uint64
	for _, op := range tape.Operations() {
		recomputed += uint64(op.Output().ByteSize())
	}
	f.c.avoided += recomputed
	klog.V(2).Infof("%s: recomputed %d ops (%s of activations)",
		f.c.name, tape.NumOps(), humanize.Bytes(recomputed))

	grads := tape.Backward(out, grad, owner)

	params := f.c.module.Parameters()
	result := make([]autodiff.Grad, 0, 1+len(params))
	result = append(result, gradSlot(ctx, 0, grads[x]))
	for i, p := range params {
		result = append(result, gradSlot(ctx, i+1, grads[p.Tensor().Raw()]))
	}
	return result
}

func gradSlot(ctx *autodiff.Context, i int, g *tensor.RawTensor) autodiff.Grad {
	if g == nil || !ctx.NeedsInputGrad(i) {
		return autodiff.NoGrad()
	}
	return autodiff.GradOf(g)
}
