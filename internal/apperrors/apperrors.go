// Package apperrors defines the error taxonomy shared by the Leadr core.
// Handlers map these to HTTP statuses; services decide which ones propagate.
package apperrors

import (
	"errors"
	"fmt"
)

// ValidationError means the caller sent malformed input. Always recoverable,
// never leaves partial state behind.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NewValidation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError means a referenced user/leaderboard/achievement does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ConflictError means a duplicate grant (or similar unique violation) was
// detected at the storage layer. The achievement engine absorbs these; only
// the manual admin award surfaces one.
type ConflictError struct {
	Resource string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists", e.Resource)
}

func NewConflict(resource string) *ConflictError {
	return &ConflictError{Resource: resource}
}

// ComputeError means a leaderboard recompute failed (corrupt settings,
// unreadable metrics). The previous ranking stays untouched.
type ComputeError struct {
	LeaderboardID string
	Err           error
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("recompute failed for leaderboard %s: %v", e.LeaderboardID, e.Err)
}

func (e *ComputeError) Unwrap() error { return e.Err }

func NewCompute(leaderboardID string, err error) *ComputeError {
	return &ComputeError{LeaderboardID: leaderboardID, Err: err}
}

// DependencyError means an outbound collaborator (push provider, relay) was
// unavailable. Logged and suppressed, never propagated to the write caller.
type DependencyError struct {
	Dependency string
	Err        error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("dependency %s unavailable: %v", e.Dependency, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

func IsCompute(err error) bool {
	var ce *ComputeError
	return errors.As(err, &ce)
}
