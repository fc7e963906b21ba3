// Package errors provides centralized error definitions and error handling
// utilities for the spinwheel codebase. It defines the three error classes
// the coordination layer distinguishes: fatal configuration errors detected
// at setup, protocol-misuse errors from incorrect window usage, and solve
// errors propagated from the wrapped optimizer.
//
// # Usage
//
// Creating errors:
//
//	// Configuration error, detected at role construction
//	err := errors.NewConfigError("slam spoke", errors.ErrMultistageUnsupported)
//
//	// Protocol misuse, non-recoverable integration error
//	err := errors.NewProtocolError("publish", errors.ErrWindowNotAllocated)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrWindowLengthMismatch) { ... }
//
//	var cfgErr *errors.ConfigError
//	if errors.As(err, &cfgErr) { ... }
//
// There is deliberately no retryable classification: nothing in this layer
// retries. A solve error terminates the entire run.
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Window protocol sentinel errors
var (
	// ErrWindowNotAllocated indicates a publish or poll against a window
	// that was never allocated, or was already freed.
	ErrWindowNotAllocated = New("window not allocated")
	// ErrWindowAlreadyAllocated indicates a second allocation by the same owner.
	ErrWindowAlreadyAllocated = New("window already allocated")
	// ErrWindowLengthMismatch indicates the writer and a reader disagree on
	// the buffer length. Detected once, at wiring time.
	ErrWindowLengthMismatch = New("window length mismatch")
	// ErrUnknownPeer indicates a reader asked for a window whose owner is not
	// a member of the group.
	ErrUnknownPeer = New("unknown window owner")
)

// Configuration sentinel errors
var (
	// ErrMissingOption indicates a required option key is absent.
	ErrMissingOption = New("required option missing")
	// ErrMultistageUnsupported indicates a multistage model was given to a
	// two-stage-only spoke.
	ErrMultistageUnsupported = New("only two-stage models are supported")
	// ErrBundlingUnsupported indicates scenario bundling was configured for a
	// spoke that disallows it.
	ErrBundlingUnsupported = New("scenario bundling is not supported")
	// ErrEvalUnsupported indicates the wrapped optimizer does not provide the
	// evaluation entrypoint a spoke requires.
	ErrEvalUnsupported = New("optimizer does not support scenario evaluation")
	// ErrProbabilityMass indicates the scenario probabilities do not sum to
	// one within tolerance.
	ErrProbabilityMass = New("scenario probabilities do not sum to 1")
	// ErrNoRhoSetter indicates neither a rho setter nor a default rho value
	// was supplied.
	ErrNoRhoSetter = New("no rho setter so a default rho must be specified")
	// ErrNotCylinderZero indicates a post-spin accessor was called from a
	// rank other than cylinder zero's hub.
	ErrNotCylinderZero = New("only cylinder zero's hub holds the solution")
)

// -----------------------------------------------------------------------------
// Typed Errors
// -----------------------------------------------------------------------------

// ConfigError represents a fatal static configuration error, rejected at
// setup before any loop executes.
type ConfigError struct {
	// Role identifies the role being constructed (e.g., "hub", "slam spoke").
	Role string
	// Err is the underlying error.
	Err error
}

// NewConfigError creates a ConfigError for the given role.
func NewConfigError(role string, err error) *ConfigError {
	return &ConfigError{Role: role, Err: err}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %v", e.Role, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ProtocolError represents misuse of the window protocol. These are
// programmer errors, not runtime conditions, and are never recovered from.
type ProtocolError struct {
	// Op is the operation that was misused (e.g., "publish", "poll", "allocate").
	Op string
	// Window names the window involved, if known.
	Window string
	// Err is the underlying sentinel.
	Err error
}

// NewProtocolError creates a ProtocolError for the given operation.
func NewProtocolError(op string, err error) *ProtocolError {
	return &ProtocolError{Op: op, Err: err}
}

func (e *ProtocolError) Error() string {
	if e.Window != "" {
		return fmt.Sprintf("protocol: %s %s: %v", e.Op, e.Window, e.Err)
	}
	return fmt.Sprintf("protocol: %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// WithWindow attaches a window name for context.
func (e *ProtocolError) WithWindow(name string) *ProtocolError {
	e.Window = name
	return e
}

// SolveError wraps a failure from the wrapped optimizer's step or
// evaluation. It is fatal to the whole run: the star topology has no
// partial-failure isolation.
type SolveError struct {
	// Iteration is the hub or spoke iteration during which the solve failed.
	Iteration int
	// Err is the optimizer's error.
	Err error
}

// NewSolveError creates a SolveError at the given iteration.
func NewSolveError(iteration int, err error) *SolveError {
	return &SolveError{Iteration: iteration, Err: err}
}

func (e *SolveError) Error() string {
	return fmt.Sprintf("solve failed at iteration %d: %v", e.Iteration, e.Err)
}

func (e *SolveError) Unwrap() error { return e.Err }

// MissingOptionError identifies the absent key for required-option failures.
type MissingOptionError struct {
	Key string
}

// NewMissingOptionError creates a MissingOptionError for the given key.
func NewMissingOptionError(key string) *MissingOptionError {
	return &MissingOptionError{Key: key}
}

func (e *MissingOptionError) Error() string {
	return fmt.Sprintf("required option %q missing", e.Key)
}

func (e *MissingOptionError) Unwrap() error { return ErrMissingOption }
