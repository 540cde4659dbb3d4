package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for WebSocket messages.
const (
	EventProposalCreated    = "proposal.created"
	EventProposalTransition = "proposal.transition"
	EventVoteCast           = "vote.cast"
	EventAnalysisAttached   = "proposal.analysis"
	EventExecution          = "proposal.execution"
)

// ProposalEvent is broadcast when a proposal is created or changes status.
type ProposalEvent struct {
	ProposalID string `json:"proposal_id"`
	Type       string `json:"type"`
	From       string `json:"from,omitempty"`
	Status     string `json:"status"`
	Actor      string `json:"actor,omitempty"`
}

// VoteEvent is broadcast for every counted vote with the running tally.
type VoteEvent struct {
	ProposalID   string  `json:"proposal_id"`
	VoterID      string  `json:"voter_id"`
	Choice       string  `json:"choice"`
	Power        float64 `json:"power"`
	ForPower     float64 `json:"for_power"`
	AgainstPower float64 `json:"against_power"`
	AbstainPower float64 `json:"abstain_power"`
}

// AnalysisEvent is broadcast when analysis is attached or found unavailable.
type AnalysisEvent struct {
	ProposalID string `json:"proposal_id"`
	Available  bool   `json:"available"`
}

// ExecutionEvent is broadcast when the execution state of a proposal changes.
type ExecutionEvent struct {
	ProposalID string `json:"proposal_id"`
	State      string `json:"state"`
	Attempts   int    `json:"attempts"`
	RunID      string `json:"run_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// proposalScoped is implemented by events that belong to one proposal.
type proposalScoped interface {
	proposal() string
}

func (e ProposalEvent) proposal() string  { return e.ProposalID }
func (e VoteEvent) proposal() string      { return e.ProposalID }
func (e AnalysisEvent) proposal() string  { return e.ProposalID }
func (e ExecutionEvent) proposal() string { return e.ProposalID }

// BroadcastEvent marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	var proposalID string
	if p, ok := payload.(proposalScoped); ok {
		proposalID = p.proposal()
	}
	h.Broadcast(ctx, proposalID, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
