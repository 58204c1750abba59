package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	nhlRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nhl_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	nhlRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nhl_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64, 120},
	}, []string{"error_class"})

	nhlRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nhl_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxRetries is the total number of retries after the first attempt.
	MaxRetries int

	// ConnectRetries caps retries caused by connection failures.
	ConnectRetries int

	// ReadRetries caps retries caused by failures after connecting.
	ReadRetries int

	// BackoffFactor scales the exponential backoff. The first retry is
	// immediate; retry n waits BackoffFactor * 2^(n-1).
	BackoffFactor time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// StatusForcelist lists the HTTP statuses that are retried.
	StatusForcelist []int

	// RespectRetryAfter honors the Retry-After header on 413, 429 and 503.
	RespectRetryAfter bool
}

// DefaultRetryConfig returns the retry policy used against the NHL APIs.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        5,
		ConnectRetries:    5,
		ReadRetries:       5,
		BackoffFactor:     2 * time.Second,
		MaxBackoff:        120 * time.Second,
		StatusForcelist:   []int{429, 500, 502, 503, 504},
		RespectRetryAfter: true,
	}
}

// retryable reports whether a failed attempt may be retried under this config.
func (c RetryConfig) retryable(apiErr *APIError) bool {
	if !shouldRetry(apiErr.ErrorClass) {
		return false
	}
	if apiErr.StatusCode == 0 {
		return true
	}
	return slices.Contains(c.StatusForcelist, apiErr.StatusCode)
}

// retryBudget tracks the remaining retries of one request.
type retryBudget struct {
	config  RetryConfig
	total   int
	connect int
	read    int
	history int
}

func newRetryBudget(config RetryConfig) *retryBudget {
	return &retryBudget{
		config:  config,
		total:   config.MaxRetries,
		connect: config.ConnectRetries,
		read:    config.ReadRetries,
	}
}

// take consumes one retry for the given class. It returns false once any
// budget is exhausted.
func (b *retryBudget) take(class ErrorClass) bool {
	b.total--
	switch class {
	case ErrorClassConnect:
		b.connect--
	case ErrorClassRead:
		b.read--
	}
	b.history++
	return b.total >= 0 && b.connect >= 0 && b.read >= 0
}

// backoff returns the delay before the next attempt.
func (b *retryBudget) backoff(retryAfter time.Duration) time.Duration {
	if retryAfter > 0 && b.config.RespectRetryAfter {
		return min(retryAfter, b.config.MaxBackoff)
	}
	if b.history <= 1 {
		return 0
	}
	delay := b.config.BackoffFactor
	for i := 1; i < b.history; i++ {
		delay *= 2
		if delay >= b.config.MaxBackoff {
			return b.config.MaxBackoff
		}
	}
	return delay
}

// retryWithBackoff executes fn until it succeeds, fails with a
// non-retryable error, or the retry budget is exhausted.
func retryWithBackoff(ctx context.Context, config RetryConfig, logger zerolog.Logger, fn func() error) error {
	budget := newRetryBudget(config)

	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		if ctx.Err() != nil {
			logger.Warn().
				Int("attempt", attempt).
				Msg("Context cancelled during request")
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !config.retryable(apiErr) {
			return err
		}
		class := apiErr.ErrorClass

		if !budget.take(class) {
			nhlRetryExhaustedTotal.WithLabelValues(string(class)).Inc()
			logger.Warn().
				Str("error_class", string(class)).
				Int("attempts", attempt).
				Msg("Retry attempts exhausted")
			return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempt, err)
		}

		delay := budget.backoff(apiErr.retryAfter)
		nhlRetriesTotal.WithLabelValues(string(class)).Inc()
		nhlRetryBackoffSeconds.WithLabelValues(string(class)).Observe(delay.Seconds())

		logger.Debug().
			Str("error_class", string(class)).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("Retrying request after backoff")

		if delay <= 0 {
			continue
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Warn().
				Str("error_class", string(class)).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-timer.C:
		}
	}
}

// parseRetryAfter reads a Retry-After header given in seconds or as an HTTP
// date. Unparseable or past values yield zero.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
