// Package proposal defines the governance Proposal entity and its lifecycle graph.
package proposal

import (
	"time"

	"github.com/Strob0t/GovForge/internal/domain/cognitive"
	"github.com/Strob0t/GovForge/internal/domain/vote"
)

// Type classifies a proposal and selects its voting rules.
type Type string

const (
	TypeStrategic   Type = "strategic"
	TypeOperational Type = "operational"
	TypeFinancial   Type = "financial"
	TypeGovernance  Type = "governance"
	TypeTechnical   Type = "technical"
	TypeEmergency   Type = "emergency"
)

// Types lists every proposal type.
var Types = []Type{TypeStrategic, TypeOperational, TypeFinancial, TypeGovernance, TypeTechnical, TypeEmergency}

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	for _, v := range Types {
		if v == t {
			return true
		}
	}
	return false
}

// AlwaysGated reports whether proposals of this type require human approval
// regardless of configuration.
func (t Type) AlwaysGated() bool {
	return t == TypeStrategic || t == TypeGovernance || t == TypeFinancial
}

// Rules is the voting configuration snapshotted onto a proposal at creation.
type Rules struct {
	vote.Thresholds
	VotingPeriod          time.Duration    `json:"voting_period"`
	ReviewPeriod          time.Duration    `json:"review_period"`
	RequiresHumanApproval bool             `json:"requires_human_approval"`
	Eligibility           vote.Eligibility `json:"eligibility"`
	Weights               vote.Weights     `json:"weights"`
	ProposerMinStake      int64            `json:"proposer_min_stake"`
}

// HumanDecision records the outcome of the human approval gate.
type HumanDecision struct {
	Approver  string    `json:"approver"`
	Approved  bool      `json:"approved"`
	Rationale string    `json:"rationale"`
	DecidedAt time.Time `json:"decided_at"`
}

// ExecutionState tracks the external workflow run for an executed proposal.
type ExecutionState string

const (
	ExecutionNone       ExecutionState = ""
	ExecutionPending    ExecutionState = "pending"
	ExecutionDispatched ExecutionState = "dispatched"
	ExecutionCompleted  ExecutionState = "completed"
	ExecutionFailed     ExecutionState = "failed"
)

// Execution is the execution bookkeeping attached to a proposal. Failed is a
// flag only: a failed execution never reverses the governance outcome.
// ClaimedAt and Claims track who holds the dispatch while RunID is empty.
type Execution struct {
	State     ExecutionState `json:"state,omitempty"`
	Attempts  int            `json:"attempts,omitempty"`
	LastError string         `json:"last_error,omitempty"`
	Failed    bool           `json:"failed"`
	RunID     string         `json:"run_id,omitempty"`
	ClaimedAt *time.Time     `json:"claimed_at,omitempty"`
	Claims    int            `json:"claims,omitempty"`
}

// Terminal reports whether the engine has finished with the execution.
func (e *Execution) Terminal() bool {
	return e.State == ExecutionCompleted || e.State == ExecutionFailed
}

// ClaimExpired reports whether a dispatch claim without a run id is older
// than lease at now. A claim with no timestamp counts as expired.
func (e *Execution) ClaimExpired(now time.Time, lease time.Duration) bool {
	if e.State != ExecutionDispatched || e.RunID != "" {
		return false
	}
	return e.ClaimedAt == nil || !now.Before(e.ClaimedAt.Add(lease))
}

// Proposal is a governance proposal. Status is only changed through Transition.
type Proposal struct {
	ID               string             `json:"id"`
	Title            string             `json:"title"`
	Description      string             `json:"description"`
	ExecutionPlan    string             `json:"execution_plan,omitempty"`
	Type             Type               `json:"type"`
	Status           Status             `json:"status"`
	ProposerID       string             `json:"proposer_id"`
	Rules            Rules              `json:"rules"`
	EligiblePower    float64            `json:"eligible_power"`
	Tally            vote.Counts        `json:"tally"`
	Outcome          *vote.Result       `json:"outcome,omitempty"`
	CognitiveSummary *cognitive.Summary `json:"cognitive_summary"`
	HumanDecision    *HumanDecision     `json:"human_decision,omitempty"`
	Execution        Execution          `json:"execution"`
	SubmittedAt      *time.Time         `json:"submitted_at,omitempty"`
	VotingStartsAt   *time.Time         `json:"voting_starts_at,omitempty"`
	VotingEndsAt     *time.Time         `json:"voting_ends_at,omitempty"`
	ClosedAt         *time.Time         `json:"closed_at,omitempty"`
	Version          int                `json:"version"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// CreateRequest holds the fields needed to create a new proposal.
type CreateRequest struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	ExecutionPlan string `json:"execution_plan"`
	Type          Type   `json:"type"`
}

// InWindow reports whether t falls inside [VotingStartsAt, VotingEndsAt).
func (p *Proposal) InWindow(t time.Time) bool {
	if p.VotingStartsAt == nil || p.VotingEndsAt == nil {
		return false
	}
	return !t.Before(*p.VotingStartsAt) && t.Before(*p.VotingEndsAt)
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (p *Proposal) Clone() *Proposal {
	c := *p
	if p.Outcome != nil {
		o := *p.Outcome
		c.Outcome = &o
	}
	if p.CognitiveSummary != nil {
		c.CognitiveSummary = p.CognitiveSummary.Clone()
	}
	if p.HumanDecision != nil {
		h := *p.HumanDecision
		c.HumanDecision = &h
	}
	c.Rules.Eligibility.Blacklist = append([]string(nil), p.Rules.Eligibility.Blacklist...)
	c.SubmittedAt = cloneTime(p.SubmittedAt)
	c.VotingStartsAt = cloneTime(p.VotingStartsAt)
	c.VotingEndsAt = cloneTime(p.VotingEndsAt)
	c.ClosedAt = cloneTime(p.ClosedAt)
	c.Execution.ClaimedAt = cloneTime(p.Execution.ClaimedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
