package autodiff

import (
	"sort"
	"sync"

	"github.com/born-ml/customgrad/internal/tensor"
	"github.com/pkg/errors"
)

// Registry maps function names to Functions. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Function
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Function)}
}

// DefaultRegistry holds the functions registered with Register.
var DefaultRegistry = NewRegistry()

// Register adds fn under its name. Registering a name twice is an error.
func (r *Registry) Register(fn Function) error {
	if fn == nil {
		return errors.Wrap(ErrInvalidArgument, "register: nil function")
	}
	name := fn.Name()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.funcs[name]; ok {
		return errors.Wrapf(ErrDuplicateFunction, "%q", name)
	}
	r.funcs[name] = fn
	return nil
}

// MustRegister is Register that panics on error, for use in init functions.
func (r *Registry) MustRegister(fn Function) {
	if err := r.Register(fn); err != nil {
		panic(err)
	}
}

// Lookup returns the function registered under name.
func (r *Registry) Lookup(name string) (Function, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownFunction, "%q", name)
	}
	return fn, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Register adds fn to DefaultRegistry.
func Register(fn Function) error {
	return DefaultRegistry.Register(fn)
}

// MustRegister adds fn to DefaultRegistry and panics on error.
func MustRegister(fn Function) {
	DefaultRegistry.MustRegister(fn)
}

// Lookup finds a function in DefaultRegistry.
func Lookup(name string) (Function, error) {
	return DefaultRegistry.Lookup(name)
}

// ApplyByName looks up name in DefaultRegistry and applies it.
func ApplyByName(backend tensor.Backend, name string, args ...Arg) (*tensor.RawTensor, error) {
	fn, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return Apply(backend, fn, args...), nil
}
