// Package cachestore memoizes feature gate values, so that backends which
// need a network round trip are not asked on every lookup.
package cachestore

import (
	"context"
)

type GateCache interface {
	// Lookup returns the cached value of a gate. ok is false when nothing is
	// cached, which is different from a cached "off".
	Lookup(ctx context.Context, name string) (active bool, ok bool)
	Store(ctx context.Context, name string, active bool)
	Forget(ctx context.Context, name string)
}
