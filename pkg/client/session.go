// Package client provides the retrying HTTP session used against the NHL
// stats and web APIs.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for NHL API requests.
var (
	nhlRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nhl_requests_total",
		Help: "Total NHL API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	nhlRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nhl_request_duration_seconds",
		Help:    "NHL API request duration in seconds by endpoint, retries included",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"endpoint"})

	nhlErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nhl_errors_total",
		Help: "Total NHL API errors by class",
	}, []string{"class"})
)

const (
	// DefaultTimeout is the per-request timeout for detail requests.
	DefaultTimeout = 300 * time.Second

	// DiscoveryTimeout is the per-request timeout for discovery requests.
	DiscoveryTimeout = 60 * time.Second

	// DefaultUserAgent identifies the tap to the NHL APIs.
	DefaultUserAgent = "tap-nhl/0.1.0"
)

// Pacer delays a request until it may be sent.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Config holds the session configuration.
type Config struct {
	// UserAgent header sent with every request.
	UserAgent string

	// AuthToken, when set, is sent as "Authorization: Bearer <token>".
	AuthToken string

	// Timeout bounds one attempt, body read included.
	Timeout time.Duration

	// Retry is the retry/backoff policy.
	Retry RetryConfig

	// Pacer is waited on before every attempt (optional).
	Pacer Pacer

	// Transport overrides the HTTP transport (optional).
	Transport http.RoundTripper
}

// DefaultConfig returns the configuration used for detail requests.
func DefaultConfig(userAgent string) Config {
	return Config{
		UserAgent: userAgent,
		Timeout:   DefaultTimeout,
		Retry:     DefaultRetryConfig(),
	}
}

// DiscoveryConfig returns the configuration used for discovery requests.
func DiscoveryConfig(userAgent string) Config {
	cfg := DefaultConfig(userAgent)
	cfg.Timeout = DiscoveryTimeout
	return cfg
}

// Response is a successful (2xx) response with its body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
}

// Session issues GET requests with retry, backoff and optional pacing. One
// session is reused for every call of a stream so connections are pooled.
type Session struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new session.
func New(cfg Config) (*Session, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}
	if cfg.Retry.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.Retry.MaxRetries)
	}

	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}

	return &Session{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		config: cfg,
		logger: log.With().Str("component", "nhl-session").Logger(),
	}, nil
}

// Get requests rawURL with params merged into its query string. Transient
// failures are retried; a non-retryable status returns *APIError at once and
// exhaustion returns an error wrapping ErrRetryExhausted.
func (s *Session) Get(ctx context.Context, rawURL string, params url.Values) (*Response, error) {
	target, err := buildURL(rawURL, params)
	if err != nil {
		return nil, err
	}
	endpoint := endpointLabel(target)

	startTime := time.Now()
	defer func() {
		nhlRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	logger := s.logger.With().Str("endpoint", endpoint).Logger()

	var result *Response
	err = retryWithBackoff(ctx, s.config.Retry, logger, func() error {
		if s.config.Pacer != nil {
			if err := s.config.Pacer.Wait(ctx); err != nil {
				return err
			}
		}

		logger.Debug().Str("url", target.String()).Msg("Executing NHL API request")

		resp, err := s.do(ctx, target.String())
		if err != nil {
			class := classifyTransportError(err)
			nhlErrorsTotal.WithLabelValues(string(class)).Inc()
			nhlRequestsTotal.WithLabelValues(endpoint, "transport_error").Inc()
			logger.Warn().Err(err).Str("error_class", string(class)).Msg("HTTP request failed")
			return &APIError{
				ErrorClass: class,
				Message:    "request failed",
				URL:        target.String(),
				Err:        err,
			}
		}

		nhlRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			result = resp
			return nil
		}

		class := classifyStatus(resp.StatusCode)
		nhlErrorsTotal.WithLabelValues(string(class)).Inc()
		logger.Warn().
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("NHL API request error")

		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Message:    statusMessage(resp),
			URL:        target.String(),
		}
		switch resp.StatusCode {
		case http.StatusRequestEntityTooLarge, http.StatusTooManyRequests, http.StatusServiceUnavailable:
			apiErr.retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		}
		return apiErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// do performs a single attempt and reads the whole body.
func (s *Session) do(ctx context.Context, target string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if s.config.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.AuthToken)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errReadBody, err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		URL:        target,
	}, nil
}

// Close releases idle pooled connections.
func (s *Session) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}

// classifyStatus categorizes a non-2xx status.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// classifyTransportError separates connection failures from failures after
// the connection was established.
func classifyTransportError(err error) ErrorClass {
	if errors.Is(err, errReadBody) {
		return ErrorClassRead
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrorClassConnect
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return ErrorClassConnect
	}
	return ErrorClassRead
}

// buildURL merges params into rawURL's query.
func buildURL(rawURL string, params url.Values) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	if len(params) > 0 {
		query := u.Query()
		for key, values := range params {
			query[key] = values
		}
		u.RawQuery = query.Encode()
	}
	return u, nil
}

// endpointLabel turns a URL into a low-cardinality metrics label by replacing
// numeric path segments (player ids) with "{id}".
func endpointLabel(u *url.URL) string {
	segments := strings.Split(u.Path, "/")
	for i, segment := range segments {
		if segment == "" {
			continue
		}
		if _, err := strconv.ParseInt(segment, 10, 64); err == nil {
			segments[i] = "{id}"
		}
	}
	return u.Host + strings.Join(segments, "/")
}

// statusMessage returns the status text plus a truncated body.
func statusMessage(resp *Response) string {
	msg := http.StatusText(resp.StatusCode)
	if len(resp.Body) == 0 {
		return msg
	}
	return msg + ": " + truncate(resp.Body, 200)
}

func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
