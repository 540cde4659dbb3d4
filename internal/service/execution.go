package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/Strob0t/GovForge/internal/adapter/otel"
	"github.com/Strob0t/GovForge/internal/domain"
	"github.com/Strob0t/GovForge/internal/domain/audit"
	"github.com/Strob0t/GovForge/internal/domain/proposal"
	"github.com/Strob0t/GovForge/internal/logger"
	"github.com/Strob0t/GovForge/internal/port/broadcast"
	"github.com/Strob0t/GovForge/internal/port/cache"
	"github.com/Strob0t/GovForge/internal/port/database"
	"github.com/Strob0t/GovForge/internal/port/locker"
	"github.com/Strob0t/GovForge/internal/port/workflow"
)

// ExecutionConfig controls dispatch retries and dispatch claims.
type ExecutionConfig struct {
	MaxAttempts    int
	BaseBackoff    time.Duration
	MaxBackoff     time.Duration
	AttemptTimeout time.Duration
	LockTimeout    time.Duration

	// ClaimLease is how long a dispatch claim without a run id is trusted
	// before another Run may take it over.
	ClaimLease time.Duration
}

const defaultClaimLease = 5 * time.Minute

// maxClaims is how many expired claims an execution survives before it is
// flagged failed.
const maxClaims = 3

// ExecutionService hands executed proposals to the workflow engine exactly
// once and records the engine's reports. A failed execution sets a flag on
// the proposal; the governance outcome stands.
type ExecutionService struct {
	store  database.Store
	guard  guard
	engine workflow.Engine
	cfg    ExecutionConfig
	notify notifier
	now    func() time.Time
	wg     sync.WaitGroup
}

// NewExecutionService creates an ExecutionService.
func NewExecutionService(store database.Store, lk locker.Locker, engine workflow.Engine, cfg ExecutionConfig) *ExecutionService {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.ClaimLease <= 0 {
		cfg.ClaimLease = defaultClaimLease
	}
	return &ExecutionService{
		store:  store,
		guard:  guard{locker: lk, timeout: cfg.LockTimeout},
		engine: engine,
		cfg:    cfg,
		now:    time.Now,
	}
}

// SetBroadcaster enables live execution events.
func (s *ExecutionService) SetBroadcaster(b broadcast.Broadcaster) { s.notify.hub = b }

// SetMetrics enables execution metrics.
func (s *ExecutionService) SetMetrics(m *otel.Metrics) { s.notify.metrics = m }

// SetViewCache sets the proposal view cache invalidated on execution changes.
func (s *ExecutionService) SetViewCache(c cache.Cache) { s.notify.views = c }

// SetAlerts sets the operator alert sink.
func (s *ExecutionService) SetAlerts(a *NotificationService) { s.notify.alerts = a }

// SetClock overrides the time source.
func (s *ExecutionService) SetClock(now func() time.Time) { s.now = now }

// Trigger dispatches the proposal in the background.
func (s *ExecutionService) Trigger(ctx context.Context, id string) {
	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Run(bg, id); err != nil {
			slog.ErrorContext(bg, "execution trigger failed", "proposal_id", id, "error", err)
		}
	}()
}

// Wait blocks until all triggered dispatches have finished.
func (s *ExecutionService) Wait() { s.wg.Wait() }

// NeedsDispatch reports whether Run would claim p at now: its execution is
// pending, or its dispatch claim expired without a run id.
func (s *ExecutionService) NeedsDispatch(p *proposal.Proposal, now time.Time) bool {
	if p.Status != proposal.StatusExecuted {
		return false
	}
	return p.Execution.State == proposal.ExecutionPending || p.Execution.ClaimExpired(now, s.cfg.ClaimLease)
}

// Run dispatches an executed proposal whose execution is pending or whose
// dispatch claim has expired. It is a no-op for any other proposal, so
// repeated calls dispatch at most once per claim.
func (s *ExecutionService) Run(ctx context.Context, id string) error {
	ctx = logger.WithProposalID(ctx, id)

	claimed, abandoned, err := s.claim(ctx, id)
	if err != nil {
		return err
	}
	if abandoned != nil {
		s.notify.metrics.ExecutionFailed(ctx)
		slog.ErrorContext(ctx, "execution abandoned", "claims", abandoned.Execution.Claims, "error", abandoned.Execution.LastError)
		s.notify.executionChanged(ctx, abandoned)
		return nil
	}
	if claimed == nil {
		return nil
	}

	attempts := 0
	op := func() (*workflow.Ack, error) {
		attempts++
		a, err := s.dispatch(ctx, claimed, attempts)
		if err == nil {
			return a, nil
		}
		slog.WarnContext(ctx, "execution dispatch failed", "attempt", attempts, "error", err)
		if errors.Is(err, domain.ErrValidation) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	ack, dispatchErr := backoff.Retry(ctx, op,
		backoff.WithBackOff(s.backOff()),
		backoff.WithMaxTries(uint(s.cfg.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
	)
	return s.recordDispatch(ctx, id, ack, attempts, dispatchErr)
}

func (s *ExecutionService) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.BaseBackoff
	b.MaxInterval = s.cfg.MaxBackoff
	b.Multiplier = 2
	return b
}

// claim marks the execution dispatched under the proposal lock. An expired
// claim is taken over with an audit entry, unless it already expired
// maxClaims times; then the execution is flagged failed and returned as
// abandoned.
func (s *ExecutionService) claim(ctx context.Context, id string) (claimed, abandoned *proposal.Proposal, err error) {
	err = s.guard.do(ctx, id, func() error {
		p, err := s.store.GetProposal(ctx, id)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if !s.NeedsDispatch(p, now) {
			return nil
		}
		next := p.Clone()
		next.UpdatedAt = now

		var entries []audit.Entry
		if p.Execution.State == proposal.ExecutionDispatched {
			entry := audit.Entry{
				ProposalID: id,
				Kind:       audit.KindExecution,
				Actor:      audit.ActorExecutor,
				Metadata:   map[string]string{"claims": fmt.Sprint(p.Execution.Claims)},
				CreatedAt:  now,
			}
			if p.Execution.Claims >= maxClaims {
				cause := fmt.Errorf("%d dispatch claims expired without a run: %w", p.Execution.Claims, domain.ErrExecutionFailed)
				next.Execution.State = proposal.ExecutionFailed
				next.Execution.Failed = true
				next.Execution.LastError = cause.Error()
				entry.Reasoning = audit.MsgExecutionFailed
				entry.Metadata["error"] = cause.Error()
				if err := s.store.UpdateProposal(ctx, next, entry); err != nil {
					return err
				}
				abandoned = next
				return nil
			}
			slog.WarnContext(ctx, "execution claim expired", "claims", p.Execution.Claims)
			entry.Reasoning = audit.MsgExecutionReclaimed
			entries = append(entries, entry)
		}

		next.Execution.State = proposal.ExecutionDispatched
		next.Execution.ClaimedAt = &now
		next.Execution.Claims++
		if err := s.store.UpdateProposal(ctx, next, entries...); err != nil {
			return err
		}
		claimed = next
		return nil
	})
	return claimed, abandoned, err
}

func (s *ExecutionService) dispatch(ctx context.Context, p *proposal.Proposal, attempt int) (*workflow.Ack, error) {
	ctx, span := otel.StartExecutionSpan(ctx, p.ID, attempt)
	defer span.End()
	s.notify.metrics.ExecutionAttempt(ctx)
	if s.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.AttemptTimeout)
		defer cancel()
	}
	return s.engine.Dispatch(ctx, workflow.Request{
		ProposalID:    p.ID,
		ExecutionPlan: p.ExecutionPlan,
		Attempt:       attempt,
	})
}

// recordDispatch stores the dispatch outcome. An engine report that landed
// first keeps its run id and terminal state; only the attempts are added.
func (s *ExecutionService) recordDispatch(ctx context.Context, id string, ack *workflow.Ack, attempts int, dispatchErr error) error {
	if dispatchErr != nil {
		dispatchErr = fmt.Errorf("%w: %w", domain.ErrExecutionFailed, dispatchErr)
	}
	var (
		updated *proposal.Proposal
		flagged bool
	)
	err := s.guard.do(ctx, id, func() error {
		p, err := s.store.GetProposal(ctx, id)
		if err != nil {
			return err
		}
		next := p.Clone()
		next.Execution.Attempts = attempts
		next.UpdatedAt = s.now().UTC()
		entry := audit.Entry{
			ProposalID: id,
			Kind:       audit.KindExecution,
			Actor:      audit.ActorExecutor,
			Reasoning:  audit.MsgExecutionDispatched,
			Metadata:   map[string]string{"attempts": fmt.Sprint(attempts)},
			CreatedAt:  next.UpdatedAt,
		}
		switch {
		case p.Execution.Terminal():
			entry.Metadata["reported_state"] = string(p.Execution.State)
			entry.Metadata["run_id"] = p.Execution.RunID
			if dispatchErr != nil {
				entry.Metadata["error"] = dispatchErr.Error()
			}
		case dispatchErr != nil:
			next.Execution.State = proposal.ExecutionFailed
			next.Execution.Failed = true
			next.Execution.LastError = dispatchErr.Error()
			entry.Reasoning = audit.MsgExecutionFailed
			entry.Metadata["error"] = dispatchErr.Error()
			flagged = true
		default:
			next.Execution.RunID = ack.RunID
			entry.Metadata["run_id"] = ack.RunID
		}
		if err := s.store.UpdateProposal(ctx, next, entry); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return err
	}
	switch {
	case flagged:
		s.notify.metrics.ExecutionFailed(ctx)
		slog.ErrorContext(ctx, "execution failed", "attempts", attempts, "error", dispatchErr)
	case dispatchErr != nil:
		slog.WarnContext(ctx, "dispatch failed after the engine reported", "state", updated.Execution.State, "error", dispatchErr)
	default:
		slog.InfoContext(ctx, "execution dispatched", "run_id", updated.Execution.RunID, "attempts", attempts)
	}
	s.notify.executionChanged(ctx, updated)
	return nil
}

// HandleStatus records a completion report from the workflow engine.
// Repeated reports for a finished run are accepted and ignored.
func (s *ExecutionService) HandleStatus(ctx context.Context, r workflow.StatusReport) error {
	ctx = logger.WithProposalID(ctx, r.ProposalID)
	if r.ProposalID == "" {
		return fmt.Errorf("proposal_id is required: %w", domain.ErrValidation)
	}
	if r.Status != workflow.StatusCompleted && r.Status != workflow.StatusFailed {
		return fmt.Errorf("invalid execution status %q: %w", r.Status, domain.ErrValidation)
	}

	var updated *proposal.Proposal
	err := s.guard.do(ctx, r.ProposalID, func() error {
		p, err := s.store.GetProposal(ctx, r.ProposalID)
		if err != nil {
			return err
		}
		if p.Status != proposal.StatusExecuted {
			return fmt.Errorf("execution report for %s proposal: %w", p.Status, domain.ErrInvalidTransition)
		}
		if r.RunID != "" && p.Execution.RunID != "" && r.RunID != p.Execution.RunID {
			return fmt.Errorf("unknown run %s: %w", r.RunID, domain.ErrValidation)
		}
		switch p.Execution.State {
		case proposal.ExecutionCompleted:
			return nil
		case proposal.ExecutionFailed:
			if p.Execution.RunID == "" || r.Status == workflow.StatusFailed {
				return nil
			}
		}

		next := p.Clone()
		next.UpdatedAt = s.now().UTC()
		if next.Execution.RunID == "" {
			next.Execution.RunID = r.RunID
		}
		entry := audit.Entry{
			ProposalID: p.ID,
			Kind:       audit.KindExecution,
			Actor:      audit.ActorExecutor,
			Metadata:   map[string]string{"run_id": next.Execution.RunID},
			CreatedAt:  next.UpdatedAt,
		}
		if r.Status == workflow.StatusCompleted {
			next.Execution.State = proposal.ExecutionCompleted
			next.Execution.Failed = false
			next.Execution.LastError = ""
			entry.Reasoning = audit.MsgExecutionCompleted
		} else {
			next.Execution.State = proposal.ExecutionFailed
			next.Execution.Failed = true
			next.Execution.LastError = r.Error
			entry.Reasoning = audit.MsgExecutionFailed
			entry.Metadata["error"] = r.Error
		}
		if err := s.store.UpdateProposal(ctx, next, entry); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil || updated == nil {
		return err
	}
	if updated.Execution.Failed {
		s.notify.metrics.ExecutionFailed(ctx)
		slog.WarnContext(ctx, "execution reported failed", "run_id", updated.Execution.RunID, "error", r.Error)
	} else {
		slog.InfoContext(ctx, "execution completed", "run_id", updated.Execution.RunID)
	}
	s.notify.executionChanged(ctx, updated)
	return nil
}

// IsTerminalReportError reports whether a status report can never be applied
// and should not be redelivered.
func IsTerminalReportError(err error) bool {
	return errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrInvalidTransition)
}
