package vote

import (
	"fmt"
	"math"

	"github.com/Strob0t/GovForge/internal/domain"
)

// MaxReputation is the upper bound of the reputation scale.
const MaxReputation = 100

// Weights splits voting power between stake and reputation. The two
// percentages must sum to 100.
type Weights struct {
	StakePct      int     `json:"stake_weight_pct" yaml:"stake_weight_pct"`
	ReputationPct int     `json:"reputation_weight_pct" yaml:"reputation_weight_pct"`
	MaxPower      float64 `json:"max_power" yaml:"max_power"`
}

// Validate enforces the weight-sum and cap invariants.
func (w Weights) Validate() error {
	if w.StakePct < 0 || w.ReputationPct < 0 {
		return fmt.Errorf("weights must be non-negative: %w", domain.ErrValidation)
	}
	if w.StakePct+w.ReputationPct != 100 {
		return fmt.Errorf("stake_weight_pct + reputation_weight_pct must equal 100, got %d: %w",
			w.StakePct+w.ReputationPct, domain.ErrValidation)
	}
	if w.MaxPower <= 0 || math.IsInf(w.MaxPower, 0) || math.IsNaN(w.MaxPower) {
		return fmt.Errorf("max_power must be a positive finite number: %w", domain.ErrValidation)
	}
	return nil
}

// Calculator derives voting power from stake and reputation.
type Calculator struct {
	w Weights
}

// NewCalculator returns a Calculator for the given weights.
func NewCalculator(w Weights) (*Calculator, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{w: w}, nil
}

// Weights returns the weights the calculator was built with.
func (c *Calculator) Weights() Weights { return c.w }

// Power returns min(cap, stake*stakePct/100 + reputation*reputationPct/100).
// Inputs are rejected rather than clamped; only the output is capped.
func (c *Calculator) Power(stake int64, reputation float64) (float64, error) {
	if stake < 0 {
		return 0, fmt.Errorf("stake %d is negative: %w", stake, domain.ErrValidation)
	}
	if math.IsNaN(reputation) || reputation < 0 || reputation > MaxReputation {
		return 0, fmt.Errorf("reputation %v outside [0, %d]: %w", reputation, MaxReputation, domain.ErrValidation)
	}
	p := float64(stake)*float64(c.w.StakePct)/100 + reputation*float64(c.w.ReputationPct)/100
	return math.Min(c.w.MaxPower, p), nil
}

// VoterPower is a convenience wrapper over Power for a registry entry.
func (c *Calculator) VoterPower(v *Voter) (float64, error) {
	return c.Power(v.Stake, v.Reputation)
}
