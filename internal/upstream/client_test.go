package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/apperrors"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/model"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/resilience"
)

type payload struct {
	Price string `json:"price"`
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(model.SourceGroww, Options{BaseURL: server.URL + "/", Referer: "https://example.test/gold"})
}

func TestGetJSON_Success(t *testing.T) {
	var gotPath, gotQuery, gotUA, gotReferer string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotUA = r.Header.Get("User-Agent")
		gotReferer = r.Header.Get("Referer")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"price":"7250.50"}`))
	})

	var out payload
	err := client.GetJSON(context.Background(), "/api/rates", url.Values{"city": {"MUMBAI"}}, &out)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if out.Price != "7250.50" {
		t.Errorf("Expected price 7250.50, got %s", out.Price)
	}
	if gotPath != "/api/rates" {
		t.Errorf("Expected path /api/rates, got %s", gotPath)
	}
	if gotQuery != "city=MUMBAI" {
		t.Errorf("Expected query city=MUMBAI, got %s", gotQuery)
	}
	if gotUA == "" || gotUA == "Go-http-client/1.1" {
		t.Errorf("Expected browser user agent, got %q", gotUA)
	}
	if gotReferer != "https://example.test/gold" {
		t.Errorf("Expected referer to be set, got %q", gotReferer)
	}
}

func TestGetJSON_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		kind      apperrors.Kind
		retryable bool
	}{
		{"server error", http.StatusInternalServerError, "oops", apperrors.KindHTTP, true},
		{"rate limited", http.StatusTooManyRequests, "", apperrors.KindHTTP, true},
		{"not found", http.StatusNotFound, "", apperrors.KindHTTP, false},
		{"html page", http.StatusOK, "<!DOCTYPE html><html></html>", apperrors.KindMalformed, false},
		{"invalid json", http.StatusOK, `{"price":`, apperrors.KindMalformed, false},
		{"empty body", http.StatusOK, "  ", apperrors.KindMalformed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			var out payload
			err := client.GetJSON(context.Background(), "/x", nil, &out)

			var fe *apperrors.FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("Expected FetchError, got %T: %v", err, err)
			}
			if fe.Kind != tt.kind {
				t.Errorf("Expected kind %s, got %s", tt.kind, fe.Kind)
			}
			if fe.Retryable != tt.retryable {
				t.Errorf("Expected retryable=%v, got %v", tt.retryable, fe.Retryable)
			}
			if fe.Source != model.SourceGroww {
				t.Errorf("Expected source groww, got %s", fe.Source)
			}
			if tt.kind == apperrors.KindHTTP && fe.StatusCode != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, fe.StatusCode)
			}
		})
	}
}

func TestGetJSON_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := server.URL
	server.Close()

	client := NewClient(model.SourceAngelOne, Options{BaseURL: base, Timeout: time.Second})
	err := client.GetJSON(context.Background(), "/x", nil, &payload{})

	if !errors.Is(err, apperrors.ErrNetwork) {
		t.Fatalf("Expected network error, got %v", err)
	}
	if !apperrors.IsRetryable(err) {
		t.Error("Expected network errors to be retryable")
	}
}

func TestGetJSON_ContextCancelled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := client.GetJSON(ctx, "/slow", nil, &payload{})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
	if apperrors.KindOf(err) != "" {
		t.Errorf("Expected caller cancellation to stay untyped, got kind %s", apperrors.KindOf(err))
	}
}

func TestGetJSON_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(model.SourceGroww, Options{BaseURL: server.URL, RPS: 1, Burst: 1})
	if err := client.GetJSON(context.Background(), "/", nil, &payload{}); err != nil {
		t.Fatalf("First request: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := client.GetJSON(ctx, "/", nil, &payload{})
	if err == nil {
		t.Fatal("Expected second request to wait beyond the deadline")
	}
	if apperrors.KindOf(err) == apperrors.KindNetwork {
		t.Errorf("Expected limiter wait on a short deadline not to count as a network failure, got %v", err)
	}
	if !errors.Is(err, apperrors.ErrRateLimited) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected ErrRateLimited wrapping DeadlineExceeded, got %v", err)
	}
}

func TestGetJSON_RateLimitDoesNotOpenBreaker(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(model.SourceGroww, Options{BaseURL: server.URL, RPS: 0.01, Burst: 1})
	cb := resilience.NewCircuitBreaker(model.SourceGroww, resilience.Policy{
		FailureThreshold:          2,
		ResetTimeout:              time.Minute,
		RequiredHalfOpenSuccesses: 1,
	})
	call := func(ctx context.Context) error {
		return cb.Execute(ctx, func(ctx context.Context) error {
			return client.GetJSON(ctx, "/", nil, &payload{})
		})
	}

	if err := call(context.Background()); err != nil {
		t.Fatalf("First request: %v", err)
	}
	for range 3 {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		err := call(ctx)
		cancel()
		if !errors.Is(err, apperrors.ErrRateLimited) {
			t.Fatalf("Expected ErrRateLimited, got %v", err)
		}
	}

	if hits.Load() != 1 {
		t.Errorf("Expected 1 upstream hit, got %d", hits.Load())
	}
	if cb.State() != resilience.StateClosed {
		t.Errorf("Expected breaker to stay closed, got %s", cb.State())
	}
}
