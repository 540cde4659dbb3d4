package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Strob0t/GovForge/internal/domain"
	"github.com/Strob0t/GovForge/internal/domain/proposal"
)

// SweepResult counts the work done by one sweep.
type SweepResult struct {
	Opened    int
	Closed    int
	Triggered int
}

// Sweeper opens and closes voting windows on schedule and re-triggers
// executions left pending or whose dispatch claim expired. Running it concurrently or repeatedly is safe:
// every candidate is re-checked under its lock.
type Sweeper struct {
	gov      *GovernanceService
	exec     *ExecutionService
	interval time.Duration
	now      func() time.Time
}

// NewSweeper creates a Sweeper. exec may be nil.
func NewSweeper(gov *GovernanceService, exec *ExecutionService, interval time.Duration) *Sweeper {
	return &Sweeper{gov: gov, exec: exec, interval: interval, now: time.Now}
}

// SetClock overrides the time source used to select candidates.
func (s *Sweeper) SetClock(now func() time.Time) { s.now = now }

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	slog.Info("sweeper started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("sweeper stopped")
			return nil
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				slog.ErrorContext(ctx, "sweep failed", "error", err)
			}
		}
	}
}

// Sweep runs one pass. Errors on individual proposals are logged and do not
// stop the pass; only listing failures are returned.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	now := s.now()

	submitted, err := s.gov.List(ctx, proposal.StatusSubmitted)
	if err != nil {
		return res, err
	}
	for i := range submitted {
		p := &submitted[i]
		if p.SubmittedAt == nil || now.Before(p.SubmittedAt.Add(p.Rules.ReviewPeriod)) {
			continue
		}
		if _, err := s.gov.OpenVoting(ctx, p.ID); err != nil {
			logSweepError(ctx, "open voting", p.ID, err)
			continue
		}
		res.Opened++
	}

	voting, err := s.gov.List(ctx, proposal.StatusVoting)
	if err != nil {
		return res, err
	}
	for i := range voting {
		p := &voting[i]
		if p.VotingEndsAt == nil || now.Before(*p.VotingEndsAt) {
			continue
		}
		if _, err := s.gov.CloseVoting(ctx, p.ID); err != nil {
			logSweepError(ctx, "close voting", p.ID, err)
			continue
		}
		res.Closed++
	}

	if s.exec != nil {
		executed, err := s.gov.List(ctx, proposal.StatusExecuted)
		if err != nil {
			return res, err
		}
		for i := range executed {
			if s.exec.NeedsDispatch(&executed[i], now) {
				s.exec.Trigger(ctx, executed[i].ID)
				res.Triggered++
			}
		}
	}

	if res.Opened+res.Closed+res.Triggered > 0 {
		slog.InfoContext(ctx, "sweep complete", "opened", res.Opened, "closed", res.Closed, "triggered", res.Triggered)
	}
	return res, nil
}

// logSweepError logs err unless it only means another sweep got there first.
func logSweepError(ctx context.Context, op, id string, err error) {
	if errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrConflict) {
		slog.DebugContext(ctx, "sweep skipped", "op", op, "proposal_id", id, "error", err)
		return
	}
	slog.ErrorContext(ctx, "sweep step failed", "op", op, "proposal_id", id, "error", err)
}
