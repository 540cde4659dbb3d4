package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/Strob0t/GovForge/internal/config"
)

func TestNewAsync(t *testing.T) {
	var buf bytes.Buffer
	l, closer := NewWithWriter(config.Logging{Level: "debug", Service: "test-svc", Async: true}, &buf)
	l.Info("queued")
	closer.Close()
	if !bytes.Contains(buf.Bytes(), []byte(`"msg":"queued"`)) {
		t.Fatalf("async record not flushed on close: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"unknown", "INFO"},
		{"", "INFO"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input).String(); got != tt.want {
				t.Errorf("parseLevel(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestContextAttributes(t *testing.T) {
	var buf bytes.Buffer
	l, closer := NewWithWriter(config.Logging{Level: "info", Service: "govforge"}, &buf)
	defer closer.Close()

	ctx := WithProposalID(WithRequestID(context.Background(), "req-123"), "prop-9")
	l.InfoContext(ctx, "vote cast")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec["service"] != "govforge" {
		t.Errorf("service = %v", rec["service"])
	}
	if rec["request_id"] != "req-123" {
		t.Errorf("request_id = %v", rec["request_id"])
	}
	if rec["proposal_id"] != "prop-9" {
		t.Errorf("proposal_id = %v", rec["proposal_id"])
	}
}

func TestContextAccessorsEmpty(t *testing.T) {
	ctx := context.Background()
	if RequestID(ctx) != "" || ProposalID(ctx) != "" {
		t.Fatal("empty context must yield empty IDs")
	}
}
