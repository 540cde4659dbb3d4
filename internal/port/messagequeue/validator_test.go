package messagequeue

import (
	"strings"
	"testing"
)

func TestValidateValidTransition(t *testing.T) {
	data := []byte(`{"proposal_id":"p1","type":"technical","from":"voting","to":"executed","actor":"system:sweeper","at":"2026-01-01T00:00:00Z"}`)
	if err := Validate(SubjectProposalTransition, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateValidVoteCast(t *testing.T) {
	data := []byte(`{"proposal_id":"p1","voter_id":"v1","choice":"for","power":724}`)
	if err := Validate(SubjectVoteCast, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateValidExecutionRequest(t *testing.T) {
	data := []byte(`{"proposal_id":"p1","run_id":"r1","execution_plan":"deploy","attempt":1}`)
	if err := Validate(SubjectExecutionRequest, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateExecutionStatusRequiresProposal(t *testing.T) {
	if err := Validate(SubjectExecutionStatus, []byte(`{"proposal_id":"p1","status":"completed"}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := Validate(SubjectExecutionStatus, []byte(`{"status":"completed"}`))
	if err == nil || !strings.Contains(err.Error(), "proposal_id is required") {
		t.Fatalf("expected proposal_id error, got %v", err)
	}
}

func TestValidateUnknownSubject(t *testing.T) {
	// Unknown subjects should pass (future-proof).
	data := []byte(`{"foo":"bar"}`)
	if err := Validate("unknown.subject", data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateInvalidJSON(t *testing.T) {
	data := []byte(`{not valid json`)
	err := Validate(SubjectVoteCast, data)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "invalid JSON") {
		t.Fatalf("expected 'invalid JSON' in error, got: %v", err)
	}
}

func TestValidateInvalidSchema(t *testing.T) {
	data := []byte(`"just a string"`)
	err := Validate(SubjectVoteCast, data)
	if err == nil {
		t.Fatal("expected schema validation error")
	}
	if !strings.Contains(err.Error(), "schema validation failed") {
		t.Fatalf("expected 'schema validation failed' in error, got: %v", err)
	}
}
