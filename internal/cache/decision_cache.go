// Package cache holds the optional, strictly additive decision cache.
// A cache hit must reproduce exactly what the solver would have returned
// for the same request; a miss or a disabled cache always falls back to
// recomputation. See internal/facade for how the cache key folds in the
// newest rule-file mtime along the walked ancestor chain.
package cache

import (
	"context"
	"time"
)

// Entry is a cached access decision. Action, resource, and username are not
// stored here because they are already folded into the cache key (see
// Key) — a lookup only needs to hand back what the key alone can't encode:
// which rule won and what permission it carried.
type Entry struct {
	Permission  string    `json:"permission"`
	Role        string    `json:"role"`
	Description string    `json:"description"`
	StoredAt    time.Time `json:"storedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// DecisionCache is the storage-agnostic interface the façade consults. It
// has no prefix- or pattern-based eviction method: because Key folds the
// newest rule-file mtime into every key, a rule edit rotates to a fresh key
// on its own rather than requiring an explicit invalidation call — the
// façade only ever Lookups, conditionally Stores, and Closes at shutdown.
type DecisionCache interface {
	Lookup(ctx context.Context, key string) (Entry, bool, error)
	Store(ctx context.Context, key string, entry Entry) error
	Size(ctx context.Context) (int64, error)
	Close(ctx context.Context) error
}
