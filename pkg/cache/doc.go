// Package cache provides per-run memoization for values that are expensive
// to compute and must be computed at most once per tap invocation, such as
// the discovered player id list or the season list of a stream.
//
// Nothing is persisted: a Lazy lives as long as its owner.
//
// # Basic Usage
//
//	ids := cache.NewLazy("skaters.player_ids", func(ctx context.Context) ([]int64, error) {
//		return discoverer.Discover(ctx, endpoints, seasons)
//	})
//
//	first, err := ids.Get(ctx)  // runs discovery
//	second, err := ids.Get(ctx) // served from memory
//
// A failed load is not remembered; the next Get retries it.
//
// # Metrics
//
//   - nhl_cache_hits_total{name} - Get calls served from memory
//   - nhl_cache_misses_total{name} - Get calls that ran the loader
//   - nhl_cache_errors_total{name} - loader failures
package cache
