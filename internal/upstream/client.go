// Package upstream is the HTTP transport shared by every price fetcher.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/apperrors"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/logging"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/model"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

	// maxBodyBytes caps how much of an upstream response is read.
	maxBodyBytes = 4 << 20
)

// Options configures a Client.
type Options struct {
	BaseURL string
	Referer string
	Timeout time.Duration
	// RPS and Burst bound outgoing requests; RPS <= 0 disables limiting.
	RPS   float64
	Burst int

	HTTPClient *http.Client
	Logger     logrus.FieldLogger
}

// Client fetches JSON documents from one upstream source.
// Every failure it returns is an *apperrors.FetchError.
type Client struct {
	source     model.Source
	baseURL    string
	referer    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *logrus.Entry
}

// NewClient creates a client for source.
//
// Parameters:
//   - source: The upstream the client talks to, stamped on every error
//   - opts: Base URL, timeout and rate limit settings
//
// Returns:
//   - *Client: A client ready for use
func NewClient(source model.Source, opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}

	return &Client{
		source:     source,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		referer:    opts.Referer,
		httpClient: httpClient,
		limiter:    limiter,
		log:        logging.Component(opts.Logger, "upstream").WithField("source", source),
	}
}

// Source returns the upstream this client talks to.
func (c *Client) Source() model.Source {
	return c.source
}

// GetJSON issues GET {baseURL}{path}?{query} and decodes the JSON body into out.
//
// The method sets browser-like headers, since the upstreams reject obvious bots:
//   - User-Agent: Mimics a desktop browser
//   - Accept: Requests JSON response format
//   - Referer: The source's public page, when configured
//
// Parameters:
//   - ctx: Bounds the rate limiter wait and the request
//   - path: Path relative to the base URL, starting with "/"
//   - query: Optional query parameters
//   - out: Pointer the JSON body is decoded into
//
// Returns:
//   - error: A network FetchError on transport failure, an HTTP FetchError for
//     non-2xx statuses, a malformed_response FetchError for HTML or invalid JSON.
//     Context cancellation is returned unwrapped. A limiter wait refused for
//     lack of time wraps both apperrors.ErrRateLimited and context.DeadlineExceeded.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		// The limiter refuses waits that would outlast the deadline.
		return fmt.Errorf("%s: %w: %v: %w", c.source, apperrors.ErrRateLimited, err, context.DeadlineExceeded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return apperrors.NewNetworkError(c.source, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-IN,en;q=0.9")
	if c.referer != "" {
		req.Header.Set("Referer", c.referer)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return ctxErr
		}
		c.log.WithError(err).WithField("path", path).Debug("upstream request failed")
		return apperrors.NewNetworkError(c.source, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return apperrors.NewNetworkError(c.source, fmt.Errorf("reading body: %w", err))
	}

	c.log.WithFields(logrus.Fields{
		"path":        path,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("upstream response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperrors.NewHTTPError(c.source, resp.StatusCode, snippet(body))
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return apperrors.NewMalformedResponseError(c.source, "empty response body", nil)
	}
	if trimmed[0] == '<' {
		return apperrors.NewMalformedResponseError(c.source, "expected JSON, got HTML", nil)
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return apperrors.NewMalformedResponseError(c.source, "invalid JSON", err)
	}
	return nil
}

// snippet returns a short single-line excerpt of an error body for diagnostics.
func snippet(body []byte) string {
	s := strings.Join(strings.Fields(string(body)), " ")
	if len(s) > 120 {
		s = s[:120] + "..."
	}
	return s
}
