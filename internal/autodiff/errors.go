package autodiff

import "github.com/pkg/errors"

// ErrContractViolation is the root of every custom-function programmer error.
// These are raised with panic: they signal a bug in a Function, not a
// condition to retry.
var ErrContractViolation = errors.New("custom function contract violation")

// Contract violations raised while running a Function.
var (
	ErrMissingSavedState  = errors.Wrap(ErrContractViolation, "missing saved state")
	ErrGradientCount      = errors.Wrap(ErrContractViolation, "gradient count mismatch")
	ErrGradientShape      = errors.Wrap(ErrContractViolation, "gradient shape mismatch")
	ErrUnexpectedGradient = errors.Wrap(ErrContractViolation, "gradient returned for a constant argument")
	ErrContextConsumed    = errors.Wrap(ErrContractViolation, "context already consumed by backward")
	ErrInvalidArgument    = errors.Wrap(ErrContractViolation, "invalid argument")
)

// Registry errors, returned rather than raised.
var (
	ErrUnknownFunction   = errors.New("unknown custom function")
	ErrDuplicateFunction = errors.New("custom function already registered")
)

// violation panics with err wrapped by a formatted message.
func violation(err error, format string, args ...any) {
	panic(errors.Wrapf(err, format, args...))
}
