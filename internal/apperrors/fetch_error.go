package apperrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/model"
)

// Kind classifies a FetchError.
type Kind string

const (
	KindNetwork          Kind = "network"
	KindHTTP             Kind = "http"
	KindMalformed        Kind = "malformed_response"
	KindCircuitOpen      Kind = "circuit_open"
	KindExhaustedRetries Kind = "exhausted_retries"
)

var kindSentinels = map[Kind]error{
	KindNetwork:          ErrNetwork,
	KindHTTP:             ErrHTTPStatus,
	KindMalformed:        ErrMalformedResponse,
	KindCircuitOpen:      ErrCircuitOpen,
	KindExhaustedRetries: ErrRetriesExhausted,
}

// FetchError is the typed error for every failure crossing a fetcher boundary.
// It records which upstream failed, whether retrying can help, and the
// underlying cause for diagnostics.
type FetchError struct {
	Kind       Kind
	Source     model.Source
	StatusCode int
	Retryable  bool
	Message    string
	Attempts   int
	Cause      error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Source, e.Message)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel of the error's kind, so errors.Is(err, ErrCircuitOpen) works.
func (e *FetchError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// NewNetworkError wraps a transport failure. Network errors are retryable.
func NewNetworkError(source model.Source, cause error) *FetchError {
	return &FetchError{
		Kind:      KindNetwork,
		Source:    source,
		Retryable: true,
		Message:   "network request failed",
		Cause:     cause,
	}
}

// NewHTTPError classifies a non-2xx status. 5xx, 408 and 429 are retryable; other 4xx are not.
func NewHTTPError(source model.Source, statusCode int, detail string) *FetchError {
	retryable := statusCode >= 500 ||
		statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusRequestTimeout
	msg := fmt.Sprintf("upstream returned HTTP %d", statusCode)
	if detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, detail)
	}
	return &FetchError{
		Kind:       KindHTTP,
		Source:     source,
		StatusCode: statusCode,
		Retryable:  retryable,
		Message:    msg,
	}
}

// NewMalformedResponseError reports a response that cannot be decoded or lacks required fields.
// Retrying cannot fix a broken contract, so the error is not retryable.
func NewMalformedResponseError(source model.Source, message string, cause error) *FetchError {
	return &FetchError{
		Kind:      KindMalformed,
		Source:    source,
		Retryable: false,
		Message:   message,
		Cause:     cause,
	}
}

// NewCircuitOpenError is returned without contacting the upstream while its breaker is open.
func NewCircuitOpenError(source model.Source) *FetchError {
	return &FetchError{
		Kind:       KindCircuitOpen,
		Source:     source,
		StatusCode: http.StatusServiceUnavailable,
		Retryable:  false,
		Message:    "service unavailable: circuit open",
	}
}

// NewExhaustedRetriesError is the terminal wrapper after every attempt failed.
func NewExhaustedRetriesError(source model.Source, attempts int, last error) *FetchError {
	status := 0
	var fe *FetchError
	if errors.As(last, &fe) {
		status = fe.StatusCode
	}
	return &FetchError{
		Kind:       KindExhaustedRetries,
		Source:     source,
		StatusCode: status,
		Retryable:  false,
		Message:    fmt.Sprintf("failed after %d attempts", attempts),
		Attempts:   attempts,
		Cause:      last,
	}
}

// IsRetryable reports whether err is worth retrying. Errors are retryable
// unless a FetchError says otherwise; context cancellation never is.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Retryable
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// KindOf returns the kind of the outermost FetchError in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
