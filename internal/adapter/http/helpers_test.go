package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Strob0t/GovForge/internal/domain"
)

func TestWriteDomainError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("get proposal x: %w", domain.ErrNotFound), http.StatusNotFound, codeNotFound},
		{fmt.Errorf("title is required: %w", domain.ErrValidation), http.StatusBadRequest, codeValidation},
		{domain.ErrForbidden, http.StatusForbidden, codeForbidden},
		{domain.ErrDuplicateVote, http.StatusConflict, codeDuplicateVote},
		{domain.ErrInvalidTransition, http.StatusConflict, codeInvalidTransition},
		{domain.ErrConflict, http.StatusConflict, codeConflict},
		{domain.ErrIneligibleVoter, http.StatusUnprocessableEntity, codeIneligibleVoter},
		{domain.ErrOutOfWindow, http.StatusUnprocessableEntity, codeOutOfWindow},
		{domain.ErrInsufficientStake, http.StatusUnprocessableEntity, codeInsufficientStake},
		{errors.New("boom"), http.StatusInternalServerError, codeInternal},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		writeDomainError(w, r, tc.err)
		if w.Code != tc.status {
			t.Errorf("%v: status = %d, want %d", tc.err, w.Code, tc.status)
		}
		var body errorResponse
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body.Code != tc.code {
			t.Errorf("%v: code = %q, want %q", tc.err, body.Code, tc.code)
		}
	}
}

func TestWriteDomainError_HidesInternalDetail(t *testing.T) {
	w := httptest.NewRecorder()
	writeDomainError(w, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("pq: password authentication failed"))
	if strings.Contains(w.Body.String(), "password") {
		t.Fatalf("internal error leaked: %s", w.Body.String())
	}
}

func TestReadJSON(t *testing.T) {
	type body struct {
		Name string `json:"name"`
	}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`))
	v, ok := readJSON[body](w, r)
	if !ok || v.Name != "x" {
		t.Fatalf("got %+v, %v", v, ok)
	}

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	if _, ok := readJSON[body](w, r); !ok {
		t.Fatal("empty body must decode to the zero value")
	}

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"unknown":1}`))
	if _, ok := readJSON[body](w, r); ok || w.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: ok=%v status=%d", ok, w.Code)
	}

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"`+strings.Repeat("a", maxRequestBodySize)+`"}`))
	if _, ok := readJSON[body](w, r); ok || w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized body: ok=%v status=%d", ok, w.Code)
	}
}

func TestQueryList(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?status=voting,%20executed&status=draft", nil)
	got := queryList(r, "status")
	if strings.Join(got, "|") != "voting|executed|draft" {
		t.Fatalf("got %v", got)
	}
}
