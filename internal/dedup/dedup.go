// Package dedup filters repeat ticks out of the ingest stream before they
// reach the candle aggregator or alert engine.
package dedup

import (
	"context"

	"marketagg/internal/model"
)

// Deduplicator decides whether a normalized tick has been seen before
// within the current dedup window. IsUnique returns (true, nil) the
// first time a given DedupKey is observed in the window and (false,
// nil) on every repeat; a non-nil error means the backend could not be
// reached and the caller must decide the fail-open/fail-closed policy.
type Deduplicator interface {
	IsUnique(ctx context.Context, tick model.NormalizedTick) (bool, error)
}
