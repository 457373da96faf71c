// Package faults defines the error taxonomy shared across the
// orchestration core. Callers branch with errors.Is / errors.As.
package faults

import (
	"errors"
	"fmt"
)

// ErrNotFound marks a lookup miss (profile, thread mapping, token, artifact).
var ErrNotFound = errors.New("not found")

// ErrExpired marks a dashboard token that exists but is past its expiry.
// Deliberately distinct from ErrNotFound.
var ErrExpired = errors.New("expired")

// TransientFailure wraps a network/provider error from a collaborator
// (transcription, vision, assistant). These are reported to the user as
// "try again" and never retried silently.
type TransientFailure struct {
	Collaborator string
	Err          error
}

func (t *TransientFailure) Error() string {
	return fmt.Sprintf("transient failure from %s: %v", t.Collaborator, t.Err)
}

func (t *TransientFailure) Unwrap() error { return t.Err }

// Transient wraps err as a TransientFailure attributed to a collaborator.
func Transient(collaborator string, err error) error {
	return &TransientFailure{Collaborator: collaborator, Err: err}
}

// IsTransient reports whether err is (or wraps) a TransientFailure.
func IsTransient(err error) bool {
	var t *TransientFailure
	return errors.As(err, &t)
}

// InvariantViolation indicates state that should be impossible under the
// store's concurrency guarantees (e.g. two live pending confirmations for
// one phone number). Fatal for the request; never masked.
type InvariantViolation struct {
	Detail string
}

func (v *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation: %s", v.Detail)
}

// Invariant builds an InvariantViolation with a formatted detail message.
func Invariant(format string, args ...interface{}) error {
	return &InvariantViolation{Detail: fmt.Sprintf(format, args...)}
}

// IsInvariant reports whether err is (or wraps) an InvariantViolation.
func IsInvariant(err error) bool {
	var v *InvariantViolation
	return errors.As(err, &v)
}
