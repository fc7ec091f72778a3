package driven

import (
	"context"
	"time"
)

// DistributedLock gates index rebuilds across instances, so that after a
// model change one instance embeds the knowledge base while the others wait.
// Holders are per lock name; the gate is advisory and callers rebuild anyway
// once their wait runs out.
type DistributedLock interface {
	// Acquire takes name for at most ttl without blocking. It reports false
	// when another holder has it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release drops name if this holder has it. Releasing an expired or
	// foreign lock is a no-op.
	Release(ctx context.Context, name string) error

	// Extend pushes the expiry of a held lock out to ttl. Backends without
	// expiry only check that the lock is still held.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	Ping(ctx context.Context) error
}
