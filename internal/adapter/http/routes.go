package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/GovForge/internal/domain/actor"
	"github.com/Strob0t/GovForge/internal/middleware"
)

// RouteOptions holds the optional pieces of the router.
type RouteOptions struct {
	// Idempotency wraps mutating routes when set.
	Idempotency func(http.Handler) http.Handler
	// WebSocket serves GET /ws when set.
	WebSocket http.HandlerFunc
}

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers, opts RouteOptions) {
	r.Get("/health", h.Health)
	r.Get("/health/ready", h.Ready)
	if opts.WebSocket != nil {
		r.Get("/ws", opts.WebSocket)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"version": h.Version})
		})

		// Reads
		r.Get("/proposals", h.ListProposals)
		r.Get("/proposals/pending-approval", h.ListPendingApproval)
		r.Get("/proposals/{id}", h.GetProposal)
		r.Get("/proposals/{id}/votes", h.ListVotes)
		r.Get("/proposals/{id}/audit", h.ListAudit)
		r.Get("/voters/{id}", h.GetVoter)
		r.Get("/voters/{id}/power", h.GetVoterPower)

		// Writes require a caller.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireActor)
			if opts.Idempotency != nil {
				r.Use(opts.Idempotency)
			}

			r.Post("/proposals", h.CreateProposal)
			r.Post("/proposals/{id}/submit", h.SubmitProposal)
			r.Post("/proposals/{id}/votes", h.CastVote)
			r.Post("/proposals/{id}/approve", h.ApproveProposal)
			r.Post("/proposals/{id}/reject", h.RejectProposal)

			r.With(middleware.RequireRole(actor.RoleExecutor, actor.RoleAdmin)).
				Post("/proposals/{id}/execution-status", h.ReportExecution)
			r.With(middleware.RequireRole(actor.RoleAdmin)).
				Put("/voters/{id}", h.PutVoter)
		})
	})
}
