// Package response provides utilities for sending consistent HTTP responses.
// It includes helpers for JSON responses, standardized error responses and
// the mapping from upstream failures to HTTP status codes.
package response

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/apperrors"
)

// ErrorResponse represents a structured error response returned by the API.
// The Details field is optional and can contain additional context about the error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
	Source  string `json:"source,omitempty"`
	// Retryable tells the client whether asking again later may succeed.
	Retryable bool `json:"retryable"`
}

// RespondJSON sends a JSON response with the given status code.
// Sets the Content-Type header to application/json and writes the status code.
// If data is nil, only the status code is sent (useful for 204 No Content).
// Logs encoding errors but does not fail the response.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			logrus.WithError(err).Error("failed to encode JSON response")
		}
	}
}

// RespondError sends a structured error response with the given status code.
// The message should be a user-friendly error description.
// The details parameter can be an error string, additional context, or nil.
//
// Example:
//
//	response.RespondError(w, http.StatusBadRequest, "unsupported metal", err.Error())
func RespondError(w http.ResponseWriter, status int, message string, details any) {
	RespondJSON(w, status, ErrorResponse{
		Error:   message,
		Details: details,
	})
}

// RespondFetchError maps err to a status code with StatusFor and sends it.
// When err carries a FetchError its source and retryability are included.
func RespondFetchError(w http.ResponseWriter, message string, err error) {
	body := ErrorResponse{
		Error:   message,
		Details: err.Error(),
	}
	var fe *apperrors.FetchError
	if errors.As(err, &fe) {
		body.Source = string(fe.Source)
		body.Retryable = fe.Kind == apperrors.KindCircuitOpen || fe.Kind == apperrors.KindExhaustedRetries || fe.Retryable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		body.Retryable = true
	}
	RespondJSON(w, StatusFor(err), body)
}

// StatusFor maps a service error to an HTTP status code:
//
//	invalid city, unsupported metal  400
//	no price data                    404
//	open circuit                     503
//	deadline exceeded                504
//	any other upstream failure       502
func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrInvalidCity), errors.Is(err, apperrors.ErrUnsupportedMetal):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrNoPriceData):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case apperrors.KindOf(err) != "":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
