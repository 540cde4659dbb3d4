// Package locker defines the port for per-key mutual exclusion.
package locker

import "context"

// Locker serialises work on a key (a proposal ID). Lock blocks until the
// lock is held or ctx is done; the returned function releases it.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
