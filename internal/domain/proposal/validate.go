package proposal

import (
	"fmt"

	"github.com/Strob0t/GovForge/internal/domain"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 20000
	maxPlanLength        = 20000
)

// Validate checks that a CreateRequest has all required fields.
func (r *CreateRequest) Validate() error {
	if r.Title == "" {
		return fmt.Errorf("title is required: %w", domain.ErrValidation)
	}
	if len(r.Title) > maxTitleLength {
		return fmt.Errorf("title exceeds %d characters: %w", maxTitleLength, domain.ErrValidation)
	}
	if len(r.Description) > maxDescriptionLength {
		return fmt.Errorf("description exceeds %d characters: %w", maxDescriptionLength, domain.ErrValidation)
	}
	if len(r.ExecutionPlan) > maxPlanLength {
		return fmt.Errorf("execution_plan exceeds %d characters: %w", maxPlanLength, domain.ErrValidation)
	}
	if r.Type == "" {
		return fmt.Errorf("type is required: %w", domain.ErrValidation)
	}
	if !r.Type.Valid() {
		return fmt.Errorf("invalid type %q: %w", r.Type, domain.ErrValidation)
	}
	return nil
}

// Validate checks thresholds, periods and power weights of a rules snapshot.
func (r *Rules) Validate() error {
	if r.QuorumPct < 0 || r.QuorumPct > 100 {
		return fmt.Errorf("quorum_pct must be within [0, 100]: %w", domain.ErrValidation)
	}
	if r.ApprovalPct < 0 || r.ApprovalPct > 100 {
		return fmt.Errorf("approval_pct must be within [0, 100]: %w", domain.ErrValidation)
	}
	if r.VotingPeriod <= 0 {
		return fmt.Errorf("voting_period must be positive: %w", domain.ErrValidation)
	}
	if r.ReviewPeriod < 0 {
		return fmt.Errorf("review_period must be non-negative: %w", domain.ErrValidation)
	}
	if r.ProposerMinStake < 0 {
		return fmt.Errorf("proposer_min_stake must be non-negative: %w", domain.ErrValidation)
	}
	return r.Weights.Validate()
}
