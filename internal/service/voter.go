package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/Strob0t/GovForge/internal/domain/vote"
	"github.com/Strob0t/GovForge/internal/port/database"
)

// PowerPreview is a voter's current voting power and default eligibility.
type PowerPreview struct {
	VoterID  string  `json:"voter_id"`
	Power    float64 `json:"power"`
	Eligible bool    `json:"eligible"`
	Reason   string  `json:"reason,omitempty"`
}

// VoterService manages the registry that voting power is derived from.
type VoterService struct {
	store       database.Store
	calc        *vote.Calculator
	eligibility vote.Eligibility
	now         func() time.Time
}

// NewVoterService creates a VoterService.
func NewVoterService(store database.Store, calc *vote.Calculator, eligibility vote.Eligibility) *VoterService {
	return &VoterService{store: store, calc: calc, eligibility: eligibility, now: time.Now}
}

// Upsert creates or replaces a registry entry. Power is computed at vote
// time, so changes never affect votes already cast.
func (s *VoterService) Upsert(ctx context.Context, v *vote.Voter) error {
	if err := v.Validate(); err != nil {
		return err
	}
	v.UpdatedAt = s.now().UTC()
	if err := s.store.UpsertVoter(ctx, v); err != nil {
		return err
	}
	slog.InfoContext(ctx, "voter updated", "voter_id", v.ID, "stake", v.Stake, "reputation", v.Reputation)
	return nil
}

// Get returns a registry entry.
func (s *VoterService) Get(ctx context.Context, id string) (*vote.Voter, error) {
	return s.store.GetVoter(ctx, id)
}

// Power previews the voting power of a registered voter under the default
// eligibility rules.
func (s *VoterService) Power(ctx context.Context, id string) (*PowerPreview, error) {
	v, err := s.store.GetVoter(ctx, id)
	if err != nil {
		return nil, err
	}
	power, err := s.calc.VoterPower(v)
	if err != nil {
		return nil, err
	}
	pp := &PowerPreview{VoterID: v.ID, Power: power, Eligible: true}
	if err := s.eligibility.Check(v); err != nil {
		pp.Eligible = false
		pp.Reason = err.Error()
	}
	return pp, nil
}
