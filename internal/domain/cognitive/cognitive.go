// Package cognitive defines the advisory analysis attached to proposals.
package cognitive

import (
	"fmt"
	"time"

	"github.com/Strob0t/GovForge/internal/domain"
)

// Request is sent to the analysis service.
type Request struct {
	ProposalID    string `json:"proposal_id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	ExecutionPlan string `json:"execution_plan"`
}

// Summary is the analysis result. It informs reviewers and never decides an outcome.
type Summary struct {
	AlignmentScore float64   `json:"alignment_score"`
	Confidence     float64   `json:"confidence"`
	Insights       []string  `json:"insights"`
	Risks          []string  `json:"risks"`
	Workstreams    []string  `json:"workstreams"`
	AnalyzedAt     time.Time `json:"analyzed_at"`
}

// Validate checks that scores are within [0, 1].
func (s *Summary) Validate() error {
	if s.AlignmentScore < 0 || s.AlignmentScore > 1 {
		return fmt.Errorf("alignment_score %v outside [0, 1]: %w", s.AlignmentScore, domain.ErrValidation)
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0, 1]: %w", s.Confidence, domain.ErrValidation)
	}
	return nil
}

// Clone returns a deep copy.
func (s *Summary) Clone() *Summary {
	c := *s
	c.Insights = append([]string(nil), s.Insights...)
	c.Risks = append([]string(nil), s.Risks...)
	c.Workstreams = append([]string(nil), s.Workstreams...)
	return &c
}
