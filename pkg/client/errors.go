package client

import (
	"errors"
	"fmt"
	"time"
)

// Common errors returned by the session.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// errReadBody marks failures while reading a response body.
	errReadBody = errors.New("read response body")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassConnect represents failures establishing a connection.
	ErrorClassConnect ErrorClass = "connect"

	// ErrorClassRead represents failures after the connection was established:
	// timeouts, resets, truncated bodies.
	ErrorClassRead ErrorClass = "read"
)

// APIError is a failed NHL API call: either a non-2xx status or a transport
// failure (StatusCode 0).
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	URL        string
	Err        error

	retryAfter time.Duration
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("NHL API %s error (status %d) %s: %s: %v",
			e.ErrorClass, e.StatusCode, e.URL, e.Message, e.Err)
	}
	return fmt.Sprintf("NHL API %s error (status %d) %s: %s",
		e.ErrorClass, e.StatusCode, e.URL, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure is one the session retries.
func (e *APIError) Transient() bool {
	return shouldRetry(e.ErrorClass)
}

// shouldRetry determines if an error class is eligible for retry. Server
// errors are further filtered by the configured status list.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		return false
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassConnect, ErrorClassRead:
		return true
	default:
		return false
	}
}
