// Package notifier defines the operator alert port (interface).
package notifier

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when a notifier is not properly configured.
var ErrNotConfigured = errors.New("notifier: not configured")

// Alert levels.
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Notification is the payload sent through a Notifier.
type Notification struct {
	Title      string `json:"title"`
	Message    string `json:"message"`
	Level      string `json:"level"`
	Source     string `json:"source"` // e.g. "proposal.approval_required"
	ProposalID string `json:"proposal_id,omitempty"`
}

// Notifier is the port interface for sending operator alerts.
type Notifier interface {
	// Name returns the unique identifier for this notifier (e.g. "slack", "email").
	Name() string

	// Send delivers a notification.
	Send(ctx context.Context, notification Notification) error
}
