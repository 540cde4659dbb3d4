// Package vote defines votes, voters, voting power and the tally engine.
package vote

import (
	"fmt"
	"time"

	"github.com/Strob0t/GovForge/internal/domain"
)

// Choice is a voter's position on a proposal.
type Choice string

const (
	ChoiceFor     Choice = "for"
	ChoiceAgainst Choice = "against"
	ChoiceAbstain Choice = "abstain"
)

// Valid reports whether c is a known choice.
func (c Choice) Valid() bool {
	switch c {
	case ChoiceFor, ChoiceAgainst, ChoiceAbstain:
		return true
	}
	return false
}

// Vote is a single immutable ballot. The pair (ProposalID, VoterID) is unique.
type Vote struct {
	ID         string    `json:"id"`
	ProposalID string    `json:"proposal_id"`
	VoterID    string    `json:"voter_id"`
	Choice     Choice    `json:"choice"`
	Power      float64   `json:"power"`
	CastAt     time.Time `json:"cast_at"`
}

// CastRequest holds the fields a caller supplies when casting a vote.
// The voter identity comes from the authenticated principal.
type CastRequest struct {
	Choice Choice `json:"choice"`
}

// Validate checks that the request carries a known choice.
func (r *CastRequest) Validate() error {
	if r.Choice == "" {
		return fmt.Errorf("choice is required: %w", domain.ErrValidation)
	}
	if !r.Choice.Valid() {
		return fmt.Errorf("invalid choice %q: %w", r.Choice, domain.ErrValidation)
	}
	return nil
}

// Voter is a registry entry supplying the stake and reputation that voting
// power and eligibility are derived from.
type Voter struct {
	ID         string    `json:"id"`
	Stake      int64     `json:"stake"`
	Reputation float64   `json:"reputation"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Validate checks stake and reputation ranges.
func (v *Voter) Validate() error {
	if v.ID == "" {
		return fmt.Errorf("voter id is required: %w", domain.ErrValidation)
	}
	if v.Stake < 0 {
		return fmt.Errorf("stake must be non-negative: %w", domain.ErrValidation)
	}
	if v.Reputation < 0 || v.Reputation > MaxReputation {
		return fmt.Errorf("reputation must be within [0, %d]: %w", MaxReputation, domain.ErrValidation)
	}
	return nil
}
