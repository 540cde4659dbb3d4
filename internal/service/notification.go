package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Strob0t/GovForge/internal/domain/proposal"
	alertport "github.com/Strob0t/GovForge/internal/port/notifier"
)

// Alert sources. The enabled-events filter matches on these.
const (
	SourceApprovalRequired   = "proposal.approval_required"
	SourceExecutionFailed    = "execution.failed"
	SourceExecutionCompleted = "execution.completed"
)

const defaultAlertTimeout = 10 * time.Second

// NotificationService sends operator alerts to every configured notifier.
// Delivery is asynchronous and never blocks a governance operation.
type NotificationService struct {
	notifiers     []alertport.Notifier
	enabledEvents map[string]bool
	timeout       time.Duration
	wg            sync.WaitGroup
}

// NewNotificationService creates a NotificationService with the given
// notifiers and enabled sources. If enabledEvents is empty, all sources are
// enabled.
func NewNotificationService(notifiers []alertport.Notifier, enabledEvents []string, timeout time.Duration) *NotificationService {
	enabled := make(map[string]bool, len(enabledEvents))
	for _, e := range enabledEvents {
		enabled[e] = true
	}
	if timeout <= 0 {
		timeout = defaultAlertTimeout
	}
	return &NotificationService{
		notifiers:     notifiers,
		enabledEvents: enabled,
		timeout:       timeout,
	}
}

// Notify sends n to all notifiers in the background. Errors are logged and
// do not interrupt delivery to other notifiers. A nil service is a no-op.
func (s *NotificationService) Notify(ctx context.Context, n alertport.Notification) {
	if s == nil || len(s.notifiers) == 0 {
		return
	}
	if len(s.enabledEvents) > 0 && !s.enabledEvents[n.Source] {
		return
	}

	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for _, provider := range s.notifiers {
			sctx, cancel := context.WithTimeout(ctx, s.timeout)
			err := provider.Send(sctx, n)
			cancel()
			if err != nil {
				slog.WarnContext(ctx, "alert send failed",
					"provider", provider.Name(),
					"source", n.Source,
					"error", err,
				)
				continue
			}
			slog.DebugContext(ctx, "alert sent", "provider", provider.Name(), "source", n.Source)
		}
	}()
}

// Wait blocks until in-flight alerts are delivered.
func (s *NotificationService) Wait() {
	if s != nil {
		s.wg.Wait()
	}
}

// NotifierCount returns the number of configured notifiers.
func (s *NotificationService) NotifierCount() int {
	if s == nil {
		return 0
	}
	return len(s.notifiers)
}

func approvalRequiredAlert(p *proposal.Proposal) alertport.Notification {
	msg := fmt.Sprintf("%q (%s) passed its vote and awaits a human decision.", p.Title, p.Type)
	if p.Outcome != nil {
		msg += fmt.Sprintf(" Participation %.1f%%, approval %.1f%%.", p.Outcome.Participation*100, p.Outcome.ApprovalRatio*100)
	}
	return alertport.Notification{
		Title:      "Approval required",
		Message:    msg,
		Level:      alertport.LevelWarning,
		Source:     SourceApprovalRequired,
		ProposalID: p.ID,
	}
}

func executionAlert(p *proposal.Proposal) (alertport.Notification, bool) {
	switch {
	case p.Execution.Failed:
		return alertport.Notification{
			Title:      "Execution failed",
			Message:    fmt.Sprintf("%q failed after %d attempt(s): %s", p.Title, p.Execution.Attempts, p.Execution.LastError),
			Level:      alertport.LevelError,
			Source:     SourceExecutionFailed,
			ProposalID: p.ID,
		}, true
	case p.Execution.State == proposal.ExecutionCompleted:
		return alertport.Notification{
			Title:      "Execution completed",
			Message:    fmt.Sprintf("%q was executed (run %s).", p.Title, p.Execution.RunID),
			Level:      alertport.LevelSuccess,
			Source:     SourceExecutionCompleted,
			ProposalID: p.ID,
		}, true
	}
	return alertport.Notification{}, false
}
