package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/GovForge/internal/domain"
	"github.com/Strob0t/GovForge/internal/domain/actor"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// ---------------------------------------------------------------------------
// Request helpers
// ---------------------------------------------------------------------------

// readJSON decodes a JSON request body with a size limit. An empty body
// decodes to the zero value.
func readJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request_too_large", "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		}
		return v, false
	}
	return v, true
}

// urlParam is a short alias for chi.URLParam.
func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// currentActor returns the caller. Routes that need one are wrapped in
// middleware.RequireActor, so a missing actor here is a routing bug.
func currentActor(r *http.Request) actor.Actor {
	a, _ := actor.FromContext(r.Context())
	return a
}

// queryList reads a query parameter that may be repeated or comma separated.
func queryList(r *http.Request, name string) []string {
	var out []string
	for _, v := range r.URL.Query()[name] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

// Error codes returned in the "code" field.
const (
	codeValidation        = "validation_error"
	codeNotFound          = "not_found"
	codeForbidden         = "forbidden"
	codeConflict          = "concurrent_modification"
	codeDuplicateVote     = "duplicate_vote"
	codeInvalidTransition = "invalid_transition"
	codeIneligibleVoter   = "ineligible_voter"
	codeOutOfWindow       = "out_of_window"
	codeInsufficientStake = "insufficient_stake"
	codeInternal          = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// domainErrors maps sentinels to status codes, most specific first.
var domainErrors = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrNotFound, http.StatusNotFound, codeNotFound},
	{domain.ErrValidation, http.StatusBadRequest, codeValidation},
	{domain.ErrForbidden, http.StatusForbidden, codeForbidden},
	{domain.ErrDuplicateVote, http.StatusConflict, codeDuplicateVote},
	{domain.ErrInvalidTransition, http.StatusConflict, codeInvalidTransition},
	{domain.ErrConflict, http.StatusConflict, codeConflict},
	{domain.ErrIneligibleVoter, http.StatusUnprocessableEntity, codeIneligibleVoter},
	{domain.ErrOutOfWindow, http.StatusUnprocessableEntity, codeOutOfWindow},
	{domain.ErrInsufficientStake, http.StatusUnprocessableEntity, codeInsufficientStake},
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	for _, d := range domainErrors {
		if errors.Is(err, d.err) {
			msg := err.Error()
			if d.status == http.StatusConflict && d.code == codeConflict {
				msg = "resource was modified by another request"
			}
			writeError(w, d.status, d.code, msg)
			return
		}
	}
	writeInternalError(w, r, err)
}

// writeInternalError logs the actual error server-side and returns a generic message to the client.
func writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, codeInternal, "internal server error")
}
