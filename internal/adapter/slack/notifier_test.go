package slack

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Strob0t/GovForge/internal/port/notifier"
)

// Compile-time interface check.
var _ notifier.Notifier = (*Notifier)(nil)

func TestSendNotConfigured(t *testing.T) {
	err := NewNotifier("").Send(context.Background(), notifier.Notification{Title: "test"})
	if !errors.Is(err, notifier.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSendBlocks(t *testing.T) {
	var got message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	err := NewNotifier(srv.URL).Send(context.Background(), notifier.Notification{
		Title:      "Approval required",
		Message:    "Raise limits passed its vote",
		Level:      notifier.LevelWarning,
		Source:     "proposal.approval_required",
		ProposalID: "p-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(got.Blocks))
	}
	if got.Blocks[0].Text.Text != "[WARN] Approval required" {
		t.Fatalf("unexpected header %q", got.Blocks[0].Text.Text)
	}
	if !strings.Contains(got.Blocks[2].Elements[0].Text, "p-1") {
		t.Fatalf("context block must name the proposal: %+v", got.Blocks[2])
	}
}

func TestSendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal error"))
	}))
	defer srv.Close()

	err := NewNotifier(srv.URL).Send(context.Background(), notifier.Notification{Title: "Test", Level: notifier.LevelInfo})
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Fatalf("expected API error, got %v", err)
	}
}

func TestRegistered(t *testing.T) {
	n, err := notifier.New(providerName, map[string]string{"webhook_url": "https://hooks.example/x"})
	if err != nil {
		t.Fatal(err)
	}
	if n.Name() != "slack" {
		t.Fatalf("expected slack, got %q", n.Name())
	}
}
