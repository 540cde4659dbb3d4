// Package workflow defines the port for the external execution workflow engine.
package workflow

import "context"

// Request asks the engine to run a proposal's execution plan.
type Request struct {
	ProposalID    string `json:"proposal_id"`
	ExecutionPlan string `json:"execution_plan"`
	Attempt       int    `json:"attempt"`
}

// Ack is the engine's acknowledgement that a run was accepted.
type Ack struct {
	RunID string `json:"run_id"`
}

// Status values reported by the engine once a run finishes.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// StatusReport is delivered asynchronously when a run completes or fails.
type StatusReport struct {
	ProposalID string `json:"proposal_id"`
	RunID      string `json:"run_id"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

// Engine dispatches execution plans. Dispatch returns once the engine has
// acknowledged the run; completion is reported separately.
type Engine interface {
	Dispatch(ctx context.Context, req Request) (*Ack, error)
}
