package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Strob0t/GovForge/internal/adapter/otel"
	"github.com/Strob0t/GovForge/internal/adapter/ws"
	"github.com/Strob0t/GovForge/internal/domain/audit"
	"github.com/Strob0t/GovForge/internal/domain/proposal"
	"github.com/Strob0t/GovForge/internal/domain/vote"
	"github.com/Strob0t/GovForge/internal/port/broadcast"
	"github.com/Strob0t/GovForge/internal/port/cache"
	"github.com/Strob0t/GovForge/internal/port/messagequeue"
)

// notifier fans governance events out to the optional queue, WebSocket hub,
// metrics, view cache and operator alerts. Every sink may be nil.
type notifier struct {
	queue   messagequeue.Queue
	hub     broadcast.Broadcaster
	metrics *otel.Metrics
	views   cache.Cache
	alerts  *NotificationService
}

func (n *notifier) publish(ctx context.Context, subject string, payload any) {
	if n.queue == nil || !n.queue.IsConnected() {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "marshal event", "subject", subject, "error", err)
		return
	}
	if err := n.queue.Publish(ctx, subject, data); err != nil {
		slog.WarnContext(ctx, "publish event failed", "subject", subject, "error", err)
	}
}

func (n *notifier) broadcast(ctx context.Context, eventType string, payload any) {
	if n.hub != nil {
		n.hub.BroadcastEvent(ctx, eventType, payload)
	}
}

func (n *notifier) invalidate(ctx context.Context, id string) {
	if n.views == nil {
		return
	}
	if err := n.views.Delete(ctx, viewKey(id)); err != nil {
		slog.WarnContext(ctx, "invalidate proposal view", "proposal_id", id, "error", err)
	}
}

func (n *notifier) created(ctx context.Context, p *proposal.Proposal) {
	n.metrics.ProposalCreated(ctx, string(p.Type))
	n.broadcast(ctx, ws.EventProposalCreated, ws.ProposalEvent{
		ProposalID: p.ID,
		Type:       string(p.Type),
		Status:     string(p.Status),
		Actor:      p.ProposerID,
	})
}

func (n *notifier) transitioned(ctx context.Context, p *proposal.Proposal, e *audit.Entry) {
	n.invalidate(ctx, p.ID)
	n.metrics.Transition(ctx, string(e.FromStatus), string(e.ToStatus))
	n.publish(ctx, messagequeue.SubjectProposalTransition, messagequeue.ProposalTransitionPayload{
		ProposalID: p.ID,
		Type:       string(p.Type),
		From:       string(e.FromStatus),
		To:         string(e.ToStatus),
		Actor:      e.Actor,
		Reasoning:  e.Reasoning,
		At:         e.CreatedAt,
	})
	n.broadcast(ctx, ws.EventProposalTransition, ws.ProposalEvent{
		ProposalID: p.ID,
		Type:       string(p.Type),
		From:       string(e.FromStatus),
		Status:     string(e.ToStatus),
		Actor:      e.Actor,
	})
	if e.ToStatus == proposal.StatusPendingHumanApproval {
		n.alerts.Notify(ctx, approvalRequiredAlert(p))
	}
}

func (n *notifier) voted(ctx context.Context, p *proposal.Proposal, v *vote.Vote) {
	n.invalidate(ctx, p.ID)
	n.metrics.VoteCast(ctx, string(v.Choice), v.Power)
	n.publish(ctx, messagequeue.SubjectVoteCast, messagequeue.VoteCastPayload{
		ProposalID: v.ProposalID,
		VoterID:    v.VoterID,
		Choice:     string(v.Choice),
		Power:      v.Power,
	})
	n.broadcast(ctx, ws.EventVoteCast, ws.VoteEvent{
		ProposalID:   v.ProposalID,
		VoterID:      v.VoterID,
		Choice:       string(v.Choice),
		Power:        v.Power,
		ForPower:     p.Tally.ForPower,
		AgainstPower: p.Tally.AgainstPower,
		AbstainPower: p.Tally.AbstainPower,
	})
}

func (n *notifier) executionChanged(ctx context.Context, p *proposal.Proposal) {
	n.invalidate(ctx, p.ID)
	n.broadcast(ctx, ws.EventExecution, ws.ExecutionEvent{
		ProposalID: p.ID,
		State:      string(p.Execution.State),
		Attempts:   p.Execution.Attempts,
		RunID:      p.Execution.RunID,
		Error:      p.Execution.LastError,
	})
	if a, ok := executionAlert(p); ok {
		n.alerts.Notify(ctx, a)
	}
}

func viewKey(id string) string { return "proposal." + id }
