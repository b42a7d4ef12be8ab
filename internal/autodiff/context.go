package autodiff

import (
	"github.com/born-ml/customgrad/internal/tensor"
)

// Context is the per-invocation record threaded from a Function's Forward to
// its single matching Backward.
//
// Forward stores exactly what Backward needs: tensors via SaveForBackward and
// scalars via SetConstant. Backward reads them back; reading anything that was
// not stored panics with ErrMissingSavedState. After Backward the saved state
// is dropped and the context cannot be used again.
//
// A Context is owned by one forward/backward pair and is never shared, so it
// carries no locking.
type Context struct {
	name        string
	backend     tensor.Backend
	args        []Arg
	outputShape tensor.Shape

	saved     []*tensor.RawTensor
	didSave   bool
	constants map[string]float64
	consumed  bool
}

func newContext(name string, backend tensor.Backend, args []Arg) *Context {
	return &Context{
		name:    name,
		backend: backend,
		args:    args,
	}
}

// Name returns the name of the Function that created this context.
func (c *Context) Name() string {
	return c.name
}

// Backend returns the backend the function runs on. Primitive calls made
// through it inside Forward are not recorded.
func (c *Context) Backend() tensor.Backend {
	return c.backend
}

// NumInputs returns the number of forward arguments, which is also the number
// of gradients Backward must return.
func (c *Context) NumInputs() int {
	return len(c.args)
}

// NeedsInputGrad reports whether argument i requires a gradient.
func (c *Context) NeedsInputGrad(i int) bool {
	if i < 0 || i >= len(c.args) {
		violation(ErrInvalidArgument, "%s: input %d out of range [0, %d)", c.name, i, len(c.args))
	}
	return c.args[i].RequiresGrad()
}

// InputShape returns the shape of tensor argument i (nil for constants).
func (c *Context) InputShape(i int) tensor.Shape {
	if i < 0 || i >= len(c.args) {
		violation(ErrInvalidArgument, "%s: input %d out of range [0, %d)", c.name, i, len(c.args))
	}
	if !c.args[i].IsTensor() {
		return nil
	}
	return c.args[i].tensor.Shape()
}

// SaveForBackward stores the tensors Backward will need. It may be called
// at most once per forward.
func (c *Context) SaveForBackward(tensors ...*tensor.RawTensor) {
	if c.didSave {
		violation(ErrInvalidArgument, "%s: SaveForBackward called twice", c.name)
	}
	c.saved = tensors
	c.didSave = true
}

// SavedTensors returns the tensors stored by SaveForBackward.
func (c *Context) SavedTensors() []*tensor.RawTensor {
	c.checkLive()
	if !c.didSave {
		violation(ErrMissingSavedState, "%s: backward read saved tensors but forward saved none", c.name)
	}
	return c.saved
}

// SavedTensor returns the i-th saved tensor.
func (c *Context) SavedTensor(i int) *tensor.RawTensor {
	saved := c.SavedTensors()
	if i < 0 || i >= len(saved) {
		violation(ErrMissingSavedState, "%s: saved tensor %d requested, forward saved %d", c.name, i, len(saved))
	}
	return saved[i]
}

// SetConstant stores a non-tensor value for Backward.
func (c *Context) SetConstant(name string, v float64) {
	if c.constants == nil {
		c.constants = make(map[string]float64)
	}
	c.constants[name] = v
}

// Constant returns a value stored by SetConstant.
func (c *Context) Constant(name string) float64 {
	c.checkLive()
	v, ok := c.constants[name]
	if !ok {
		violation(ErrMissingSavedState, "%s: constant %q was not saved in forward", c.name, name)
	}
	return v
}

// SavedBytes returns the memory held by saved tensors.
func (c *Context) SavedBytes() int {
	total := 0
	for _, t := range c.saved {
		if t != nil {
			total += t.ByteSize()
		}
	}
	return total
}

// checkLive panics when the context was already consumed by a backward.
func (c *Context) checkLive() {
	if c.consumed {
		violation(ErrContextConsumed, "%s: saved state read after backward", c.name)
	}
}

// release drops the saved state once backward has run.
func (c *Context) release() {
	c.consumed = true
	c.saved = nil
	c.constants = nil
}
