// Package workflowengine implements the workflow engine port. The NATS engine
// hands plans to an external runner over JetStream; the local engine is for
// development and reports every run as completed.
package workflowengine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Strob0t/GovForge/internal/logger"
	"github.com/Strob0t/GovForge/internal/port/messagequeue"
	"github.com/Strob0t/GovForge/internal/port/workflow"
)

// NATSEngine publishes execution requests on governance.execution.request.
// The JetStream publish ack is the engine acknowledgement.
type NATSEngine struct {
	queue messagequeue.Queue
}

// NewNATSEngine returns an engine publishing through queue.
func NewNATSEngine(queue messagequeue.Queue) *NATSEngine {
	return &NATSEngine{queue: queue}
}

func (e *NATSEngine) Dispatch(ctx context.Context, req workflow.Request) (*workflow.Ack, error) {
	runID := uuid.NewString()
	data, err := json.Marshal(messagequeue.ExecutionRequestPayload{
		ProposalID:    req.ProposalID,
		RunID:         runID,
		ExecutionPlan: req.ExecutionPlan,
		Attempt:       req.Attempt,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal execution request: %w", err)
	}
	ctx = logger.WithProposalID(ctx, req.ProposalID)
	if err := e.queue.Publish(ctx, messagequeue.SubjectExecutionRequest, data); err != nil {
		return nil, fmt.Errorf("dispatch %s: %w", req.ProposalID, err)
	}
	return &workflow.Ack{RunID: runID}, nil
}

// DecodeStatus parses a governance.execution.status payload.
func DecodeStatus(data []byte) (workflow.StatusReport, error) {
	var p messagequeue.ExecutionStatusPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return workflow.StatusReport{}, fmt.Errorf("decode execution status: %w", err)
	}
	return workflow.StatusReport{
		ProposalID: p.ProposalID,
		RunID:      p.RunID,
		Status:     p.Status,
		Error:      p.Error,
	}, nil
}

// Reporter receives status reports from the local engine.
type Reporter func(ctx context.Context, r workflow.StatusReport) error

// LocalEngine logs each plan and reports it completed on a background goroutine.
type LocalEngine struct {
	report Reporter
}

// NewLocalEngine returns an engine that reports through report. report may
// be set later with SetReporter, before the first Dispatch.
func NewLocalEngine(report Reporter) *LocalEngine {
	return &LocalEngine{report: report}
}

// SetReporter wires the status callback.
func (e *LocalEngine) SetReporter(r Reporter) { e.report = r }

func (e *LocalEngine) Dispatch(ctx context.Context, req workflow.Request) (*workflow.Ack, error) {
	ack := &workflow.Ack{RunID: uuid.NewString()}
	slog.InfoContext(ctx, "local execution", "proposal_id", req.ProposalID, "run_id", ack.RunID, "attempt", req.Attempt)
	if e.report != nil {
		rep := workflow.StatusReport{ProposalID: req.ProposalID, RunID: ack.RunID, Status: workflow.StatusCompleted}
		bg := context.WithoutCancel(ctx)
		go func() {
			if err := e.report(bg, rep); err != nil {
				slog.WarnContext(bg, "local execution report failed", "proposal_id", req.ProposalID, "error", err)
			}
		}()
	}
	return ack, nil
}
