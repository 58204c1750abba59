// Package ratelimit paces outbound NHL API requests.
//
// The landing endpoint starts answering 429 when hit back to back, so every
// detail request waits on an Interval first. Discovery calls are not paced;
// they rely on the retrying session's backoff.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// DefaultInterval is the minimum spacing between detail requests.
const DefaultInterval = 350 * time.Millisecond

// Prometheus metrics for request pacing.
var (
	nhlRateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nhl_rate_limit_waits_total",
		Help: "Total number of requests delayed by the request pacer",
	})

	nhlRateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nhl_rate_limit_wait_seconds",
		Help:    "Time spent waiting on the request pacer",
		Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.35, 0.5, 1},
	})
)

// Interval enforces a minimum spacing between successive Wait calls.
//
// It is built on a token bucket with a burst of one, so the first Wait
// returns immediately and every later Wait returns no sooner than one
// interval after the previous one returned. Elapsed time is measured with
// Go's monotonic clock, so wall-clock adjustments do not affect pacing.
type Interval struct {
	limiter  *rate.Limiter
	interval time.Duration
	logger   zerolog.Logger

	mu   sync.Mutex
	last time.Time
}

// NewInterval creates a pacer with the given minimum spacing.
// A non-positive interval disables pacing.
func NewInterval(interval time.Duration, logger zerolog.Logger) *Interval {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Interval{
		limiter:  rate.NewLimiter(limit, 1),
		interval: interval,
		logger:   logger,
	}
}

// Wait blocks until the next request may be sent.
func (i *Interval) Wait(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	start := time.Now()
	if err := i.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	// The limiter schedules from reservation time; a late wakeup would
	// shorten the gap to the previous return.
	if i.interval > 0 && !i.last.IsZero() {
		if remaining := i.interval - time.Since(i.last); remaining > 0 {
			timer := time.NewTimer(remaining)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("rate limit wait: %w", ctx.Err())
			case <-timer.C:
			}
		}
	}
	i.last = time.Now()

	if waited := time.Since(start); waited > time.Millisecond {
		nhlRateLimitWaitsTotal.Inc()
		nhlRateLimitWaitSeconds.Observe(waited.Seconds())
		i.logger.Debug().
			Dur("waited", waited).
			Dur("interval", i.interval).
			Msg("Request paced")
	}
	return nil
}

// Interval returns the configured minimum spacing.
func (i *Interval) Interval() time.Duration {
	return i.interval
}
