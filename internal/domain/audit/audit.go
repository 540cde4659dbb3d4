// Package audit defines the append-only audit trail of proposal lifecycle events.
package audit

import (
	"time"

	"github.com/Strob0t/GovForge/internal/domain/proposal"
)

// Kind classifies an audit entry.
type Kind string

const (
	// KindTransition records exactly one status change.
	KindTransition Kind = "transition"
	// KindNote records advisory information, e.g. unavailable analysis.
	KindNote Kind = "note"
	// KindExecution records execution workflow outcomes.
	KindExecution Kind = "execution"
)

// Well-known actors for system-initiated entries.
const (
	ActorSweeper  = "system:sweeper"
	ActorAnalysis = "system:analysis"
	ActorExecutor = "system:executor"
)

// Entry is an immutable audit record.
type Entry struct {
	ID         string            `json:"id"`
	ProposalID string            `json:"proposal_id"`
	Kind       Kind              `json:"kind"`
	Actor      string            `json:"actor"`
	FromStatus proposal.Status   `json:"from_status,omitempty"`
	ToStatus   proposal.Status   `json:"to_status,omitempty"`
	Reasoning  string            `json:"reasoning,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Messages used for notes and execution entries.
const (
	NoteAnalysisUnavailable = "analysis unavailable"
	NoteAnalysisAttached    = "analysis attached"
	MsgExecutionDispatched  = "execution dispatched"
	MsgExecutionCompleted   = "execution completed"
	MsgExecutionFailed      = "execution failed"
	MsgExecutionReclaimed   = "execution claim expired, dispatching again"
)
