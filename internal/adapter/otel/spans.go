package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "govforge"

// StartTransitionSpan starts a span for a proposal status transition.
func StartTransitionSpan(ctx context.Context, proposalID, to string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "proposal.transition",
		trace.WithAttributes(
			attribute.String("proposal.id", proposalID),
			attribute.String("proposal.to", to),
		),
	)
}

// StartVoteSpan starts a span for casting a vote.
func StartVoteSpan(ctx context.Context, proposalID, voterID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "vote.cast",
		trace.WithAttributes(
			attribute.String("proposal.id", proposalID),
			attribute.String("voter.id", voterID),
		),
	)
}

// StartAnalysisSpan starts a span for a cognitive analysis request.
func StartAnalysisSpan(ctx context.Context, proposalID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "proposal.analysis",
		trace.WithAttributes(attribute.String("proposal.id", proposalID)),
	)
}

// StartExecutionSpan starts a span for one execution dispatch attempt.
func StartExecutionSpan(ctx context.Context, proposalID string, attempt int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "proposal.execution",
		trace.WithAttributes(
			attribute.String("proposal.id", proposalID),
			attribute.Int("execution.attempt", attempt),
		),
	)
}
