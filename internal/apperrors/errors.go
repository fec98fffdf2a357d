package apperrors

import "errors"

// Lookup errors represent requests the service cannot satisfy regardless of upstream health.
var (
	// ErrUnsupportedMetal indicates that no upstream source quotes the requested metal.
	ErrUnsupportedMetal = errors.New("unsupported metal")

	// ErrInvalidCity indicates that the city parameter is empty after normalization.
	ErrInvalidCity = errors.New("city is required")

	// ErrNoPriceData indicates that an upstream responded but carried no usable price for the request.
	ErrNoPriceData = errors.New("no price data available")

	// ErrNoExpiry indicates that none of the candidate futures expiry dates returned data.
	ErrNoExpiry = errors.New("no futures expiry accepted by upstream")

	// ErrRateLimited indicates the local rate limiter refused to wait past the
	// caller's deadline. No request was sent.
	ErrRateLimited = errors.New("rate limit wait would exceed deadline")
)

// Kind sentinels let callers match a FetchError with errors.Is.
var (
	// ErrNetwork matches transport level failures (DNS, connection reset, timeouts).
	ErrNetwork = errors.New("upstream network error")

	// ErrHTTPStatus matches non-2xx upstream responses.
	ErrHTTPStatus = errors.New("upstream returned error status")

	// ErrMalformedResponse matches responses that could not be decoded or lack required fields.
	ErrMalformedResponse = errors.New("malformed upstream response")

	// ErrCircuitOpen matches calls rejected by an open circuit breaker.
	ErrCircuitOpen = errors.New("service unavailable: circuit open")

	// ErrRetriesExhausted matches the terminal error returned after all retries failed.
	ErrRetriesExhausted = errors.New("upstream retries exhausted")
)

// Operation failure errors are used by the HTTP layer as user facing messages.
var (
	ErrFailedToRetrievePrices = errors.New("failed to retrieve prices")
	ErrFailedToRetrieveCities = errors.New("failed to retrieve cities")
	ErrFailedToRetrieveHint   = errors.New("failed to retrieve price hint")
	ErrFailedToRetrieveTrend  = errors.New("failed to retrieve price trend")
)
