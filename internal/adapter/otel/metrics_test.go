package otel

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, r *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := r.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	sums := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if s, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range s.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	return sums
}

func TestMetricsRecord(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	m, err := NewMetricsWith(mp)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	m.ProposalCreated(ctx, "technical")
	m.Transition(ctx, "draft", "submitted")
	m.Transition(ctx, "submitted", "voting")
	m.VoteCast(ctx, "for", 12.5)
	m.VoteRejected(ctx, "duplicate")
	m.ExecutionAttempt(ctx)
	m.ExecutionFailed(ctx)
	m.AnalysisFailed(ctx)

	got := collect(t, reader)
	want := map[string]int64{
		"govforge.proposals.created":     1,
		"govforge.proposals.transitions": 2,
		"govforge.votes.cast":            1,
		"govforge.votes.rejected":        1,
		"govforge.execution.attempts":    1,
		"govforge.execution.failures":    1,
		"govforge.analysis.failures":     1,
	}
	for name, n := range want {
		if got[name] != n {
			t.Errorf("%s = %d, want %d", name, got[name], n)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.ProposalCreated(ctx, "technical")
	m.Transition(ctx, "a", "b")
	m.VoteCast(ctx, "for", 1)
	m.VoteRejected(ctx, "x")
	m.ExecutionAttempt(ctx)
	m.ExecutionFailed(ctx)
	m.AnalysisFailed(ctx)
}

func TestInitWithoutEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), "govforge", "", false)
	if err != nil {
		t.Fatal(err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
}
