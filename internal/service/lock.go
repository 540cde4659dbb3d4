package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Strob0t/GovForge/internal/domain"
	"github.com/Strob0t/GovForge/internal/port/locker"
)

// guard serialises work per proposal with a bounded wait for the lock.
type guard struct {
	locker  locker.Locker
	timeout time.Duration
}

// do runs fn while holding the lock for id. Failing to acquire the lock in
// time is reported as a conflict so callers may retry.
func (g guard) do(ctx context.Context, id string, fn func() error) error {
	lctx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		lctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	unlock, err := g.locker.Lock(lctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("lock proposal %s: %v: %w", id, err, domain.ErrConflict)
	}
	defer unlock()
	return fn()
}
