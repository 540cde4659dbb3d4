package analysis_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Strob0t/GovForge/internal/adapter/analysis"
	"github.com/Strob0t/GovForge/internal/domain"
	"github.com/Strob0t/GovForge/internal/domain/cognitive"
	"github.com/Strob0t/GovForge/internal/resilience"
)

func TestAnalyze(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/analyze" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer k" {
			t.Errorf("unexpected auth %q", got)
		}
		var req cognitive.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProposalID != "p1" {
			t.Errorf("bad request body: %+v %v", req, err)
		}
		_ = json.NewEncoder(w).Encode(cognitive.Summary{
			AlignmentScore: 0.82,
			Confidence:     0.7,
			Insights:       []string{"aligned with roadmap"},
			Risks:          []string{"budget overrun"},
		})
	}))
	defer srv.Close()

	c := analysis.NewClient(srv.URL, "k", time.Second)
	s, err := c.Analyze(context.Background(), cognitive.Request{ProposalID: "p1", Title: "t"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if s.AlignmentScore != 0.82 || len(s.Risks) != 1 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if s.AnalyzedAt.IsZero() {
		t.Fatal("analyzed_at should be stamped")
	}
}

func TestAnalyze_RejectsOutOfRangeScores(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"alignment_score":1.5,"confidence":0.5}`))
	}))
	defer srv.Close()

	_, err := analysis.NewClient(srv.URL, "", time.Second).Analyze(context.Background(), cognitive.Request{ProposalID: "p1"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestAnalyze_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := analysis.NewClient(srv.URL, "", time.Second).Analyze(context.Background(), cognitive.Request{ProposalID: "p1"}); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestAnalyze_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	_, err := analysis.NewClient(srv.URL, "", 50*time.Millisecond).Analyze(context.Background(), cognitive.Request{ProposalID: "p1"})
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestAnalyze_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := analysis.NewClient(srv.URL, "", time.Second)
	c.SetBreaker(resilience.NewBreaker(2, time.Hour))
	for range 2 {
		_, _ = c.Analyze(context.Background(), cognitive.Request{ProposalID: "p1"})
	}
	_, err := c.Analyze(context.Background(), cognitive.Request{ProposalID: "p1"})
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("breaker should stop calls after 2 failures, got %d", calls.Load())
	}
}
