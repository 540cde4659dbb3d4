package vote

import (
	"fmt"
	"slices"

	"github.com/Strob0t/GovForge/internal/domain"
)

// Eligibility gates who may vote on a proposal.
type Eligibility struct {
	MinStake      int64    `json:"min_stake" yaml:"min_stake"`
	MinReputation float64  `json:"min_reputation" yaml:"min_reputation"`
	Blacklist     []string `json:"blacklist,omitempty" yaml:"blacklist"`
}

// Check returns nil if v may vote, or an error wrapping domain.ErrIneligibleVoter.
func (e Eligibility) Check(v *Voter) error {
	if v == nil {
		return fmt.Errorf("voter not registered: %w", domain.ErrIneligibleVoter)
	}
	if slices.Contains(e.Blacklist, v.ID) {
		return fmt.Errorf("voter %s is blacklisted: %w", v.ID, domain.ErrIneligibleVoter)
	}
	if v.Stake < e.MinStake {
		return fmt.Errorf("voter %s stake %d below minimum %d: %w", v.ID, v.Stake, e.MinStake, domain.ErrIneligibleVoter)
	}
	if v.Reputation < e.MinReputation {
		return fmt.Errorf("voter %s reputation %v below minimum %v: %w", v.ID, v.Reputation, e.MinReputation, domain.ErrIneligibleVoter)
	}
	return nil
}

// EligiblePower sums the voting power of every eligible voter. Voters whose
// power cannot be computed are skipped.
func EligiblePower(calc *Calculator, e Eligibility, voters []Voter) float64 {
	var total float64
	for i := range voters {
		if e.Check(&voters[i]) != nil {
			continue
		}
		p, err := calc.VoterPower(&voters[i])
		if err != nil {
			continue
		}
		total += p
	}
	return total
}
