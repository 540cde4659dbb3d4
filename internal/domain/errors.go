// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict (optimistic locking).
// Callers may retry the operation against a fresh read.
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrValidation indicates malformed or out-of-range input. Nothing was changed.
var ErrValidation = errors.New("validation failed")

// ErrForbidden indicates the caller lacks the authority for the operation.
var ErrForbidden = errors.New("forbidden")

// Governance errors.
var (
	ErrIneligibleVoter     = errors.New("voter is not eligible")
	ErrDuplicateVote       = errors.New("voter has already voted on this proposal")
	ErrOutOfWindow         = errors.New("vote is outside the voting window")
	ErrInvalidTransition   = errors.New("invalid state transition")
	ErrInsufficientStake   = errors.New("insufficient stake")
	ErrAnalysisUnavailable = errors.New("analysis unavailable")
	ErrExecutionFailed     = errors.New("execution failed")
)
