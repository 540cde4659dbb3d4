// Package actor identifies the caller behind a governance operation.
package actor

import (
	"context"
	"slices"
)

// Roles recognised by the API.
const (
	RoleApprover = "approver"
	RoleAdmin    = "admin"
	// RoleExecutor is held by the workflow engine reporting run status.
	RoleExecutor = "executor"
)

// Actor is an authenticated caller.
type Actor struct {
	ID    string   `json:"id"`
	Roles []string `json:"roles,omitempty"`
}

// HasRole reports whether the actor carries role.
func (a Actor) HasRole(role string) bool {
	return slices.Contains(a.Roles, role)
}

type ctxKey struct{}

// WithActor stores a in ctx.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// FromContext returns the actor stored in ctx and whether one was present.
func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(Actor)
	return a, ok && a.ID != ""
}
