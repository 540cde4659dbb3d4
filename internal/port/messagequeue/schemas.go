package messagequeue

import "time"

// ProposalTransitionPayload is the schema for governance.proposal.transition messages.
type ProposalTransitionPayload struct {
	ProposalID string    `json:"proposal_id"`
	Type       string    `json:"type"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Actor      string    `json:"actor"`
	Reasoning  string    `json:"reasoning,omitempty"`
	At         time.Time `json:"at"`
}

// VoteCastPayload is the schema for governance.vote.cast messages.
type VoteCastPayload struct {
	ProposalID string  `json:"proposal_id"`
	VoterID    string  `json:"voter_id"`
	Choice     string  `json:"choice"`
	Power      float64 `json:"power"`
}

// ExecutionRequestPayload is the schema for governance.execution.request messages.
type ExecutionRequestPayload struct {
	ProposalID    string `json:"proposal_id"`
	RunID         string `json:"run_id"`
	ExecutionPlan string `json:"execution_plan"`
	Attempt       int    `json:"attempt"`
}

// ExecutionStatusPayload is the schema for governance.execution.status messages.
type ExecutionStatusPayload struct {
	ProposalID string `json:"proposal_id"`
	RunID      string `json:"run_id"`
	Status     string `json:"status"`
	Error      string `json:"error"`
}
