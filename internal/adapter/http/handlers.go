package http

import (
	"context"
	"net/http"
	"time"

	"github.com/Strob0t/GovForge/internal/domain/proposal"
	"github.com/Strob0t/GovForge/internal/domain/vote"
	"github.com/Strob0t/GovForge/internal/port/workflow"
	"github.com/Strob0t/GovForge/internal/service"
)

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handlers holds the services behind the governance API.
type Handlers struct {
	Governance *service.GovernanceService
	Voters     *service.VoterService
	Execution  *service.ExecutionService
	Readiness  []ReadinessCheck
	Version    string
}

// decisionRequest is the body of approve and reject.
type decisionRequest struct {
	Rationale string `json:"rationale"`
}

// voterRequest is the body of PUT /voters/{id}.
type voterRequest struct {
	Stake      int64   `json:"stake"`
	Reputation float64 `json:"reputation"`
}

// CreateProposal handles POST /api/v1/proposals
func (h *Handlers) CreateProposal(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[proposal.CreateRequest](w, r)
	if !ok {
		return
	}
	p, err := h.Governance.CreateProposal(r.Context(), currentActor(r), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// ListProposals handles GET /api/v1/proposals?status=
func (h *Handlers) ListProposals(w http.ResponseWriter, r *http.Request) {
	var statuses []proposal.Status
	for _, s := range queryList(r, "status") {
		statuses = append(statuses, proposal.Status(s))
	}
	list, err := h.Governance.List(r.Context(), statuses...)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// ListPendingApproval handles GET /api/v1/proposals/pending-approval
func (h *Handlers) ListPendingApproval(w http.ResponseWriter, r *http.Request) {
	list, err := h.Governance.ListPendingApproval(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetProposal handles GET /api/v1/proposals/{id}
func (h *Handlers) GetProposal(w http.ResponseWriter, r *http.Request) {
	v, err := h.Governance.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// SubmitProposal handles POST /api/v1/proposals/{id}/submit
func (h *Handlers) SubmitProposal(w http.ResponseWriter, r *http.Request) {
	p, err := h.Governance.Submit(r.Context(), currentActor(r), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CastVote handles POST /api/v1/proposals/{id}/votes and responds with the
// recorded vote and the proposal with the vote tallied in.
func (h *Handlers) CastVote(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[vote.CastRequest](w, r)
	if !ok {
		return
	}
	receipt, err := h.Governance.CastVote(r.Context(), currentActor(r), urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

// ListVotes handles GET /api/v1/proposals/{id}/votes
func (h *Handlers) ListVotes(w http.ResponseWriter, r *http.Request) {
	votes, err := h.Governance.Votes(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, votes)
}

// ListAudit handles GET /api/v1/proposals/{id}/audit
func (h *Handlers) ListAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Governance.Audit(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// ApproveProposal handles POST /api/v1/proposals/{id}/approve
func (h *Handlers) ApproveProposal(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[decisionRequest](w, r)
	if !ok {
		return
	}
	p, err := h.Governance.Approve(r.Context(), currentActor(r), urlParam(r, "id"), req.Rationale)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// RejectProposal handles POST /api/v1/proposals/{id}/reject
func (h *Handlers) RejectProposal(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[decisionRequest](w, r)
	if !ok {
		return
	}
	p, err := h.Governance.Reject(r.Context(), currentActor(r), urlParam(r, "id"), req.Rationale)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ReportExecution handles POST /api/v1/proposals/{id}/execution-status
func (h *Handlers) ReportExecution(w http.ResponseWriter, r *http.Request) {
	report, ok := readJSON[workflow.StatusReport](w, r)
	if !ok {
		return
	}
	report.ProposalID = urlParam(r, "id")
	if err := h.Execution.HandleStatus(r.Context(), report); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PutVoter handles PUT /api/v1/voters/{id}
func (h *Handlers) PutVoter(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[voterRequest](w, r)
	if !ok {
		return
	}
	v := &vote.Voter{ID: urlParam(r, "id"), Stake: req.Stake, Reputation: req.Reputation}
	if err := h.Voters.Upsert(r.Context(), v); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// GetVoter handles GET /api/v1/voters/{id}
func (h *Handlers) GetVoter(w http.ResponseWriter, r *http.Request) {
	v, err := h.Voters.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// GetVoterPower handles GET /api/v1/voters/{id}/power
func (h *Handlers) GetVoterPower(w http.ResponseWriter, r *http.Request) {
	pp, err := h.Voters.Power(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pp)
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": h.Version})
}

// Ready handles GET /health/ready. Every check runs with a short timeout.
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.Readiness))
	for _, c := range h.Readiness {
		if err := c.Check(ctx); err != nil {
			checks[c.Name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[c.Name] = "ok"
	}
	writeJSON(w, status, map[string]any{"ready": status == http.StatusOK, "checks": checks})
}
