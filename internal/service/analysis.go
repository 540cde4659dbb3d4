package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Strob0t/GovForge/internal/adapter/otel"
	"github.com/Strob0t/GovForge/internal/adapter/ws"
	"github.com/Strob0t/GovForge/internal/domain"
	"github.com/Strob0t/GovForge/internal/domain/audit"
	"github.com/Strob0t/GovForge/internal/domain/cognitive"
	"github.com/Strob0t/GovForge/internal/domain/proposal"
	"github.com/Strob0t/GovForge/internal/logger"
	"github.com/Strob0t/GovForge/internal/port/broadcast"
	"github.com/Strob0t/GovForge/internal/port/cache"
	cognitiveport "github.com/Strob0t/GovForge/internal/port/cognitive"
	"github.com/Strob0t/GovForge/internal/port/database"
	"github.com/Strob0t/GovForge/internal/port/locker"
)

// AnalysisService attaches advisory cognitive summaries to submitted
// proposals. Failures are audited and never block the lifecycle.
type AnalysisService struct {
	store    database.Store
	guard    guard
	analyzer cognitiveport.Analyzer
	timeout  time.Duration
	notify   notifier
	now      func() time.Time
	wg       sync.WaitGroup
}

// NewAnalysisService creates an AnalysisService. A nil analyzer records every
// proposal as analysis unavailable.
func NewAnalysisService(store database.Store, lk locker.Locker, analyzer cognitiveport.Analyzer, timeout, lockTimeout time.Duration) *AnalysisService {
	return &AnalysisService{
		store:    store,
		guard:    guard{locker: lk, timeout: lockTimeout},
		analyzer: analyzer,
		timeout:  timeout,
		now:      time.Now,
	}
}

// SetBroadcaster enables live analysis events.
func (s *AnalysisService) SetBroadcaster(b broadcast.Broadcaster) { s.notify.hub = b }

// SetViewCache sets the proposal view cache invalidated on attach.
func (s *AnalysisService) SetViewCache(c cache.Cache) { s.notify.views = c }

// SetClock overrides the time source.
func (s *AnalysisService) SetClock(now func() time.Time) { s.now = now }

// SetMetrics enables analysis failure metrics.
func (s *AnalysisService) SetMetrics(m *otel.Metrics) { s.notify.metrics = m }

// Start analyses p in the background. The goroutine outlives the caller's
// request but keeps its values.
func (s *AnalysisService) Start(ctx context.Context, p *proposal.Proposal) {
	req := cognitive.Request{
		ProposalID:    p.ID,
		Title:         p.Title,
		Description:   p.Description,
		ExecutionPlan: p.ExecutionPlan,
	}
	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Run(bg, req); err != nil {
			slog.ErrorContext(bg, "analysis bookkeeping failed", "error", err)
		}
	}()
}

// Wait blocks until all started analyses have finished.
func (s *AnalysisService) Wait() { s.wg.Wait() }

// Run analyses one proposal synchronously. Analyzer failures are recorded as
// an audit note; only store failures are returned.
func (s *AnalysisService) Run(ctx context.Context, req cognitive.Request) error {
	ctx = logger.WithProposalID(ctx, req.ProposalID)
	summary, err := s.analyze(ctx, req)
	if err != nil {
		slog.WarnContext(ctx, "analysis unavailable", "error", err)
		s.notify.metrics.AnalysisFailed(ctx)
		if err := s.store.AppendAudit(ctx, &audit.Entry{
			ProposalID: req.ProposalID,
			Kind:       audit.KindNote,
			Actor:      audit.ActorAnalysis,
			Reasoning:  audit.NoteAnalysisUnavailable,
			Metadata:   map[string]string{"error": err.Error()},
			CreatedAt:  s.now().UTC(),
		}); err != nil {
			return err
		}
		s.notify.broadcast(ctx, ws.EventAnalysisAttached, ws.AnalysisEvent{ProposalID: req.ProposalID})
		return nil
	}
	return s.attach(ctx, req.ProposalID, summary)
}

func (s *AnalysisService) analyze(ctx context.Context, req cognitive.Request) (*cognitive.Summary, error) {
	if s.analyzer == nil {
		return nil, fmt.Errorf("no analyzer configured: %w", domain.ErrAnalysisUnavailable)
	}
	ctx, span := otel.StartAnalysisSpan(ctx, req.ProposalID)
	defer span.End()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	summary, err := s.analyzer.Analyze(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrAnalysisUnavailable)
	}
	if err := summary.Validate(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrAnalysisUnavailable)
	}
	return summary, nil
}

// attach stores summary unless the proposal already has one or is closed.
func (s *AnalysisService) attach(ctx context.Context, id string, summary *cognitive.Summary) error {
	var attached *proposal.Proposal
	err := s.guard.do(ctx, id, func() error {
		p, err := s.store.GetProposal(ctx, id)
		if err != nil {
			return err
		}
		if p.CognitiveSummary != nil || p.Status.Terminal() {
			slog.InfoContext(ctx, "analysis discarded", "status", p.Status)
			return nil
		}
		if summary.AnalyzedAt.IsZero() {
			summary.AnalyzedAt = s.now().UTC()
		}
		next := p.Clone()
		next.CognitiveSummary = summary.Clone()
		note := audit.Entry{
			ProposalID: id,
			Kind:       audit.KindNote,
			Actor:      audit.ActorAnalysis,
			Reasoning:  audit.NoteAnalysisAttached,
			Metadata: map[string]string{
				"alignment_score": formatPower(summary.AlignmentScore),
				"confidence":      formatPower(summary.Confidence),
			},
			CreatedAt: s.now().UTC(),
		}
		if err := s.store.UpdateProposal(ctx, next, note); err != nil {
			return err
		}
		attached = next
		return nil
	})
	if err != nil || attached == nil {
		return err
	}
	slog.InfoContext(ctx, "analysis attached", "alignment_score", summary.AlignmentScore, "confidence", summary.Confidence)
	s.notify.invalidate(ctx, id)
	s.notify.broadcast(ctx, ws.EventAnalysisAttached, ws.AnalysisEvent{ProposalID: id, Available: true})
	return nil
}
