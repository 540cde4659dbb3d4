// Package service implements business logic on top of ports.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/GovForge/internal/adapter/otel"
	"github.com/Strob0t/GovForge/internal/config"
	"github.com/Strob0t/GovForge/internal/domain"
	"github.com/Strob0t/GovForge/internal/domain/actor"
	"github.com/Strob0t/GovForge/internal/domain/audit"
	"github.com/Strob0t/GovForge/internal/domain/proposal"
	"github.com/Strob0t/GovForge/internal/domain/vote"
	"github.com/Strob0t/GovForge/internal/logger"
	"github.com/Strob0t/GovForge/internal/port/broadcast"
	"github.com/Strob0t/GovForge/internal/port/cache"
	"github.com/Strob0t/GovForge/internal/port/database"
	"github.com/Strob0t/GovForge/internal/port/locker"
	"github.com/Strob0t/GovForge/internal/port/messagequeue"
)

// ProposalView is a proposal with its tally evaluated against the current state.
type ProposalView struct {
	proposal.Proposal
	LiveTally vote.Result `json:"live_tally"`
}

// VoteReceipt is a recorded vote together with the proposal it was tallied into.
type VoteReceipt struct {
	Vote     vote.Vote    `json:"vote"`
	Proposal ProposalView `json:"proposal"`
}

func newView(p *proposal.Proposal) *ProposalView {
	return &ProposalView{
		Proposal:  *p,
		LiveTally: vote.Tally(p.Tally, p.EligiblePower, p.Rules.Thresholds),
	}
}

// GovernanceService drives proposals through the lifecycle graph.
type GovernanceService struct {
	store     database.Store
	guard     guard
	calc      *vote.Calculator
	rules     map[proposal.Type]proposal.Rules
	approvers map[string]bool
	viewTTL   time.Duration
	notify    notifier
	analysis  *AnalysisService
	execution *ExecutionService
	now       func() time.Time
}

// NewGovernanceService creates a GovernanceService. Each proposal type must
// have rules in cfg.Types.
func NewGovernanceService(store database.Store, lk locker.Locker, cfg *config.Governance) (*GovernanceService, error) {
	calc, err := vote.NewCalculator(cfg.Weights)
	if err != nil {
		return nil, err
	}
	rules := make(map[proposal.Type]proposal.Rules, len(proposal.Types))
	for _, t := range proposal.Types {
		tr, ok := cfg.Types[string(t)]
		if !ok {
			return nil, fmt.Errorf("no voting rules for type %s: %w", t, domain.ErrValidation)
		}
		r := tr.Rules(t, cfg)
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("rules for %s: %w", t, err)
		}
		rules[t] = r
	}
	approvers := make(map[string]bool, len(cfg.Approvers))
	for _, id := range cfg.Approvers {
		approvers[id] = true
	}
	return &GovernanceService{
		store:     store,
		guard:     guard{locker: lk, timeout: cfg.LockTimeout},
		calc:      calc,
		rules:     rules,
		approvers: approvers,
		viewTTL:   30 * time.Second,
		now:       time.Now,
	}, nil
}

// SetQueue enables NATS publication of transitions and votes.
func (s *GovernanceService) SetQueue(q messagequeue.Queue) { s.notify.queue = q }

// SetBroadcaster enables live WebSocket events.
func (s *GovernanceService) SetBroadcaster(b broadcast.Broadcaster) { s.notify.hub = b }

// SetMetrics enables governance metrics.
func (s *GovernanceService) SetMetrics(m *otel.Metrics) { s.notify.metrics = m }

// SetViewCache enables caching of proposal views for Get.
func (s *GovernanceService) SetViewCache(c cache.Cache, ttl time.Duration) {
	s.notify.views = c
	if ttl > 0 {
		s.viewTTL = ttl
	}
}

// SetAlerts sets the operator alert sink.
func (s *GovernanceService) SetAlerts(a *NotificationService) { s.notify.alerts = a }

// SetAnalysis sets the service that analyses submitted proposals.
func (s *GovernanceService) SetAnalysis(a *AnalysisService) { s.analysis = a }

// SetExecution sets the trigger for executed proposals.
func (s *GovernanceService) SetExecution(e *ExecutionService) { s.execution = e }

// SetClock overrides the time source.
func (s *GovernanceService) SetClock(now func() time.Time) { s.now = now }

// Calculator returns the voting power calculator for the configured weights.
func (s *GovernanceService) Calculator() *vote.Calculator { return s.calc }

// calculatorFor returns the calculator for the weights snapshotted on p.
// Proposals stored without a weights snapshot use the configured weights.
func (s *GovernanceService) calculatorFor(p *proposal.Proposal) (*vote.Calculator, error) {
	if p.Rules.Weights == (vote.Weights{}) {
		return s.calc, nil
	}
	return vote.NewCalculator(p.Rules.Weights)
}

// CreateProposal creates a draft with the voting rules of its type.
func (s *GovernanceService) CreateProposal(ctx context.Context, a actor.Actor, req proposal.CreateRequest) (*proposal.Proposal, error) {
	if a.ID == "" {
		return nil, fmt.Errorf("proposer is required: %w", domain.ErrValidation)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	p := &proposal.Proposal{
		ID:            uuid.NewString(),
		Title:         req.Title,
		Description:   req.Description,
		ExecutionPlan: req.ExecutionPlan,
		Type:          req.Type,
		Status:        proposal.StatusDraft,
		ProposerID:    a.ID,
		Rules:         s.rulesFor(req.Type),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	created := audit.Entry{
		ProposalID: p.ID,
		Kind:       audit.KindNote,
		Actor:      a.ID,
		ToStatus:   proposal.StatusDraft,
		Reasoning:  "proposal created",
		CreatedAt:  now,
	}
	if err := s.store.CreateProposal(ctx, p, created); err != nil {
		return nil, err
	}
	slog.InfoContext(logger.WithProposalID(ctx, p.ID), "proposal created", "type", p.Type, "proposer", a.ID)
	s.notify.created(ctx, p)
	return p, nil
}

func (s *GovernanceService) rulesFor(t proposal.Type) proposal.Rules {
	r := s.rules[t]
	r.Eligibility.Blacklist = append([]string(nil), r.Eligibility.Blacklist...)
	return r
}

// Submit moves a draft to submitted. Only the proposer may submit, and only
// with at least the stake snapshotted in the proposal's rules. Cognitive analysis starts afterwards.
func (s *GovernanceService) Submit(ctx context.Context, a actor.Actor, id string) (*proposal.Proposal, error) {
	ctx = logger.WithProposalID(ctx, id)
	var stake int64
	if v, err := s.store.GetVoter(ctx, a.ID); err == nil {
		stake = v.Stake
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	var out *proposal.Proposal
	err := s.guard.do(ctx, id, func() error {
		p, err := s.store.GetProposal(ctx, id)
		if err != nil {
			return err
		}
		ev := proposal.Event{
			To:            proposal.StatusSubmitted,
			At:            s.now(),
			Actor:         a.ID,
			ProposerStake: stake,
			MinStake:      p.Rules.ProposerMinStake,
		}
		if err := s.transition(ctx, p, ev, nil); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.analysis != nil {
		s.analysis.Start(ctx, out)
	}
	return out, nil
}

// OpenVoting moves a submitted proposal into voting once its review period
// has elapsed and snapshots the eligible voting power.
func (s *GovernanceService) OpenVoting(ctx context.Context, id string) (*proposal.Proposal, error) {
	ctx = logger.WithProposalID(ctx, id)
	var out *proposal.Proposal
	err := s.guard.do(ctx, id, func() error {
		p, err := s.store.GetProposal(ctx, id)
		if err != nil {
			return err
		}
		if p.Status != proposal.StatusSubmitted {
			return fmt.Errorf("open voting from %s: %w", p.Status, domain.ErrInvalidTransition)
		}
		voters, err := s.store.ListVoters(ctx)
		if err != nil {
			return err
		}
		calc, err := s.calculatorFor(p)
		if err != nil {
			return err
		}
		eligible := vote.EligiblePower(calc, p.Rules.Eligibility, voters)
		ev := proposal.Event{
			To:            proposal.StatusVoting,
			At:            s.now(),
			Actor:         actorOr(ctx, audit.ActorSweeper),
			EligiblePower: eligible,
		}
		meta := map[string]string{"eligible_power": formatPower(eligible)}
		if err := s.transition(ctx, p, ev, meta); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

// CloseVoting tallies a proposal whose voting window has ended and moves it
// to pending_human_approval, executed or rejected.
func (s *GovernanceService) CloseVoting(ctx context.Context, id string) (*proposal.Proposal, error) {
	ctx = logger.WithProposalID(ctx, id)
	var out *proposal.Proposal
	err := s.guard.do(ctx, id, func() error {
		p, err := s.store.GetProposal(ctx, id)
		if err != nil {
			return err
		}
		if p.Status != proposal.StatusVoting {
			return fmt.Errorf("close voting from %s: %w", p.Status, domain.ErrInvalidTransition)
		}
		result := vote.Tally(p.Tally, p.EligiblePower, p.Rules.Thresholds)
		to := proposal.StatusRejected
		switch {
		case result.Approved && p.Rules.RequiresHumanApproval:
			to = proposal.StatusPendingHumanApproval
		case result.Approved:
			to = proposal.StatusExecuted
		}
		ev := proposal.Event{
			To:      to,
			At:      s.now(),
			Actor:   actorOr(ctx, audit.ActorSweeper),
			Reason:  tallyReason(result),
			Outcome: &result,
		}
		if err := s.transition(ctx, p, ev, tallyMetadata(result)); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.maybeExecute(ctx, out)
	return out, nil
}

// Approve records a positive human decision and executes the proposal.
func (s *GovernanceService) Approve(ctx context.Context, a actor.Actor, id, rationale string) (*proposal.Proposal, error) {
	return s.decide(ctx, a, id, rationale, true)
}

// Reject records a negative human decision and rejects the proposal.
func (s *GovernanceService) Reject(ctx context.Context, a actor.Actor, id, rationale string) (*proposal.Proposal, error) {
	return s.decide(ctx, a, id, rationale, false)
}

func (s *GovernanceService) decide(ctx context.Context, a actor.Actor, id, rationale string, approved bool) (*proposal.Proposal, error) {
	ctx = logger.WithProposalID(ctx, id)
	if !s.IsApprover(a) {
		return nil, fmt.Errorf("%s is not an approver: %w", a.ID, domain.ErrForbidden)
	}
	to := proposal.StatusRejected
	if approved {
		to = proposal.StatusExecuted
	}

	var out *proposal.Proposal
	err := s.guard.do(ctx, id, func() error {
		p, err := s.store.GetProposal(ctx, id)
		if err != nil {
			return err
		}
		if p.Status != proposal.StatusPendingHumanApproval {
			return fmt.Errorf("decide on %s proposal: %w", p.Status, domain.ErrInvalidTransition)
		}
		now := s.now()
		ev := proposal.Event{
			To:     to,
			At:     now,
			Actor:  a.ID,
			Reason: rationale,
			Decision: &proposal.HumanDecision{
				Approver:  a.ID,
				Approved:  approved,
				Rationale: rationale,
				DecidedAt: now.UTC(),
			},
		}
		meta := map[string]string{"approved": fmt.Sprint(approved)}
		if err := s.transition(ctx, p, ev, meta); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.maybeExecute(ctx, out)
	return out, nil
}

// IsApprover reports whether a may decide on pending proposals.
func (s *GovernanceService) IsApprover(a actor.Actor) bool {
	if a.ID == "" {
		return false
	}
	return a.HasRole(actor.RoleApprover) || s.approvers[a.ID]
}

// transition applies ev to a copy of p and persists it together with exactly
// one transition audit entry. p is updated only when the write succeeds.
func (s *GovernanceService) transition(ctx context.Context, p *proposal.Proposal, ev proposal.Event, meta map[string]string) error {
	ctx, span := otel.StartTransitionSpan(ctx, p.ID, string(ev.To))
	defer span.End()

	from := p.Status
	next := p.Clone()
	if err := proposal.Transition(next, ev); err != nil {
		slog.WarnContext(ctx, "transition refused", "from", from, "to", ev.To, "actor", ev.Actor, "error", err)
		return err
	}
	entry := audit.Entry{
		ProposalID: p.ID,
		Kind:       audit.KindTransition,
		Actor:      ev.Actor,
		FromStatus: from,
		ToStatus:   ev.To,
		Reasoning:  ev.Reason,
		Metadata:   meta,
		CreatedAt:  next.UpdatedAt,
	}
	if err := s.store.UpdateProposal(ctx, next, entry); err != nil {
		return err
	}
	*p = *next
	slog.InfoContext(ctx, "proposal transitioned", "from", from, "to", ev.To, "actor", ev.Actor)
	s.notify.transitioned(ctx, p, &entry)
	return nil
}

func (s *GovernanceService) maybeExecute(ctx context.Context, p *proposal.Proposal) {
	if p.Status == proposal.StatusExecuted && s.execution != nil {
		s.execution.Trigger(ctx, p.ID)
	}
}

// CastVote records the authenticated actor's vote with power computed from
// their registry entry at cast time, using the weights snapshotted on the
// proposal. The receipt carries the proposal with the vote tallied in.
func (s *GovernanceService) CastVote(ctx context.Context, a actor.Actor, id string, req vote.CastRequest) (*VoteReceipt, error) {
	ctx = logger.WithProposalID(ctx, id)
	ctx, span := otel.StartVoteSpan(ctx, id, a.ID)
	defer span.End()

	v, tallied, err := s.castVote(ctx, a, id, req)
	if err != nil {
		s.notify.metrics.VoteRejected(ctx, rejectReason(err))
		slog.InfoContext(ctx, "vote refused", "voter", a.ID, "error", err)
		return nil, err
	}
	return &VoteReceipt{Vote: *v, Proposal: *newView(tallied)}, nil
}

func (s *GovernanceService) castVote(ctx context.Context, a actor.Actor, id string, req vote.CastRequest) (*vote.Vote, *proposal.Proposal, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}
	voter, err := s.store.GetVoter(ctx, a.ID)
	if errors.Is(err, domain.ErrNotFound) {
		voter = nil
	} else if err != nil {
		return nil, nil, err
	}

	var (
		out     *vote.Vote
		tallied *proposal.Proposal
	)
	err = s.guard.do(ctx, id, func() error {
		p, err := s.store.GetProposal(ctx, id)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if p.Status != proposal.StatusVoting || !p.InWindow(now) {
			return fmt.Errorf("proposal %s is %s: %w", id, p.Status, domain.ErrOutOfWindow)
		}
		if err := p.Rules.Eligibility.Check(voter); err != nil {
			return err
		}
		calc, err := s.calculatorFor(p)
		if err != nil {
			return err
		}
		power, err := calc.VoterPower(voter)
		if err != nil {
			return fmt.Errorf("voter %s: %v: %w", voter.ID, err, domain.ErrIneligibleVoter)
		}
		v := &vote.Vote{
			ID:         uuid.NewString(),
			ProposalID: id,
			VoterID:    voter.ID,
			Choice:     req.Choice,
			Power:      power,
			CastAt:     now,
		}
		next := p.Clone()
		next.Tally.Add(v.Choice, v.Power)
		next.UpdatedAt = now
		if err := s.store.RecordVote(ctx, next, v); err != nil {
			return err
		}
		out, tallied = v, next
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	slog.InfoContext(ctx, "vote cast", "voter", out.VoterID, "choice", out.Choice, "power", out.Power)
	s.notify.voted(ctx, tallied, out)
	return out, tallied, nil
}

// Get returns a proposal with its live tally.
func (s *GovernanceService) Get(ctx context.Context, id string) (*ProposalView, error) {
	if s.notify.views != nil {
		if data, ok, err := s.notify.views.Get(ctx, viewKey(id)); err == nil && ok {
			var v ProposalView
			if json.Unmarshal(data, &v) == nil {
				return &v, nil
			}
		}
	}
	p, err := s.store.GetProposal(ctx, id)
	if err != nil {
		return nil, err
	}
	v := newView(p)
	if s.notify.views != nil {
		if data, err := json.Marshal(v); err == nil {
			if err := s.notify.views.Set(ctx, viewKey(id), data, s.viewTTL); err != nil {
				slog.DebugContext(ctx, "cache proposal view", "proposal_id", id, "error", err)
			}
		}
	}
	return v, nil
}

// List returns proposals, optionally filtered by status, newest first.
func (s *GovernanceService) List(ctx context.Context, statuses ...proposal.Status) ([]proposal.Proposal, error) {
	for _, st := range statuses {
		if !st.Valid() {
			return nil, fmt.Errorf("invalid status %q: %w", st, domain.ErrValidation)
		}
	}
	return s.store.ListProposals(ctx, statuses...)
}

// ListPendingApproval returns proposals waiting for a human decision.
func (s *GovernanceService) ListPendingApproval(ctx context.Context) ([]proposal.Proposal, error) {
	return s.store.ListProposals(ctx, proposal.StatusPendingHumanApproval)
}

// Votes returns the vote ledger of a proposal.
func (s *GovernanceService) Votes(ctx context.Context, id string) ([]vote.Vote, error) {
	if _, err := s.store.GetProposal(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListVotes(ctx, id)
}

// Audit returns the audit trail of a proposal in append order.
func (s *GovernanceService) Audit(ctx context.Context, id string) ([]audit.Entry, error) {
	if _, err := s.store.GetProposal(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListAudit(ctx, id)
}

func actorOr(ctx context.Context, fallback string) string {
	if a, ok := actor.FromContext(ctx); ok {
		return a.ID
	}
	return fallback
}

func formatPower(p float64) string { return fmt.Sprintf("%g", p) }

func tallyReason(r vote.Result) string {
	switch {
	case r.Approved:
		return "approved by vote"
	case !r.QuorumReached:
		return "quorum not reached"
	default:
		return "approval threshold not met"
	}
}

func tallyMetadata(r vote.Result) map[string]string {
	return map[string]string{
		"quorum_reached": fmt.Sprint(r.QuorumReached),
		"approved":       fmt.Sprint(r.Approved),
		"for_power":      formatPower(r.ForPower),
		"against_power":  formatPower(r.AgainstPower),
		"abstain_power":  formatPower(r.AbstainPower),
		"participation":  formatPower(r.Participation),
		"votes":          fmt.Sprint(r.Votes),
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrDuplicateVote):
		return "duplicate"
	case errors.Is(err, domain.ErrIneligibleVoter):
		return "ineligible"
	case errors.Is(err, domain.ErrOutOfWindow):
		return "out_of_window"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	default:
		return "error"
	}
}
