package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "govforge"

// Metrics holds the governance metric instruments. A nil *Metrics records nothing.
type Metrics struct {
	ProposalsCreated  metric.Int64Counter
	Transitions       metric.Int64Counter
	VotesCast         metric.Int64Counter
	VotesRejected     metric.Int64Counter
	AnalysisFailures  metric.Int64Counter
	ExecutionAttempts metric.Int64Counter
	ExecutionFailures metric.Int64Counter
	VotingPower       metric.Float64Histogram
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsWith(otel.GetMeterProvider())
}

// NewMetricsWith creates all metric instruments on mp.
func NewMetricsWith(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error

	m.ProposalsCreated, err = meter.Int64Counter("govforge.proposals.created",
		metric.WithDescription("Number of proposals created"))
	if err != nil {
		return nil, err
	}

	m.Transitions, err = meter.Int64Counter("govforge.proposals.transitions",
		metric.WithDescription("Number of applied status transitions"))
	if err != nil {
		return nil, err
	}

	m.VotesCast, err = meter.Int64Counter("govforge.votes.cast",
		metric.WithDescription("Number of counted votes"))
	if err != nil {
		return nil, err
	}

	m.VotesRejected, err = meter.Int64Counter("govforge.votes.rejected",
		metric.WithDescription("Number of refused votes by reason"))
	if err != nil {
		return nil, err
	}

	m.AnalysisFailures, err = meter.Int64Counter("govforge.analysis.failures",
		metric.WithDescription("Number of failed cognitive analyses"))
	if err != nil {
		return nil, err
	}

	m.ExecutionAttempts, err = meter.Int64Counter("govforge.execution.attempts",
		metric.WithDescription("Number of execution dispatch attempts"))
	if err != nil {
		return nil, err
	}

	m.ExecutionFailures, err = meter.Int64Counter("govforge.execution.failures",
		metric.WithDescription("Number of executions flagged failed"))
	if err != nil {
		return nil, err
	}

	m.VotingPower, err = meter.Float64Histogram("govforge.votes.power",
		metric.WithDescription("Voting power of counted votes"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) ProposalCreated(ctx context.Context, typ string) {
	if m == nil {
		return
	}
	m.ProposalsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("proposal.type", typ)))
}

func (m *Metrics) Transition(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	m.Transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

func (m *Metrics) VoteCast(ctx context.Context, choice string, power float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("choice", choice))
	m.VotesCast.Add(ctx, 1, attrs)
	m.VotingPower.Record(ctx, power, attrs)
}

func (m *Metrics) VoteRejected(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.VotesRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) AnalysisFailed(ctx context.Context) {
	if m == nil {
		return
	}
	m.AnalysisFailures.Add(ctx, 1)
}

func (m *Metrics) ExecutionAttempt(ctx context.Context) {
	if m == nil {
		return
	}
	m.ExecutionAttempts.Add(ctx, 1)
}

func (m *Metrics) ExecutionFailed(ctx context.Context) {
	if m == nil {
		return
	}
	m.ExecutionFailures.Add(ctx, 1)
}
