package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/logging"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/model"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/resilience"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/upstream"
)

// FakeUpstream is an httptest server standing in for a price API.
// Handlers are registered per path and every request is counted.
type FakeUpstream struct {
	Server *httptest.Server

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	hits     map[string]int
	requests []*http.Request
}

// NewFakeUpstream starts a fake upstream that is closed when the test ends.
// Unregistered paths answer 404.
func NewFakeUpstream(t *testing.T) *FakeUpstream {
	t.Helper()

	f := &FakeUpstream{
		handlers: make(map[string]http.HandlerFunc),
		hits:     make(map[string]int),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

func (f *FakeUpstream) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.hits[r.URL.Path]++
	f.requests = append(f.requests, r.Clone(r.Context()))
	h, ok := f.handlers[r.URL.Path]
	f.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

// Handle registers h for path, replacing any earlier handler.
func (f *FakeUpstream) Handle(path string, h http.HandlerFunc) *FakeUpstream {
	f.mu.Lock()
	f.handlers[path] = h
	f.mu.Unlock()
	return f
}

// HandleJSON answers path with body encoded as JSON.
func (f *FakeUpstream) HandleJSON(path string, body any) *FakeUpstream {
	return f.Handle(path, JSONHandler(body))
}

// HandleStatus answers path with an empty response of the given status.
func (f *FakeUpstream) HandleStatus(path string, status int) *FakeUpstream {
	return f.Handle(path, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	})
}

// Hits returns how many requests were made to path.
func (f *FakeUpstream) Hits(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

// TotalHits returns the number of requests across all paths.
func (f *FakeUpstream) TotalHits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// Requests returns copies of every request received so far.
func (f *FakeUpstream) Requests() []*http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*http.Request(nil), f.requests...)
}

// URL returns the server base URL.
func (f *FakeUpstream) URL() string {
	return f.Server.URL
}

// Client returns an upstream client for source pointed at the fake server.
func (f *FakeUpstream) Client(source model.Source) *upstream.Client {
	return upstream.NewClient(source, upstream.Options{BaseURL: f.URL(), Timeout: 2 * time.Second})
}

// JSONHandler answers every request with body encoded as JSON.
func JSONHandler(body any) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		//nolint:errcheck // test server
		json.NewEncoder(w).Encode(body)
	}
}

// FastPolicy returns a resilience policy with millisecond backoff so tests
// exercise retries without sleeping for seconds.
func FastPolicy() resilience.Policy {
	return resilience.Policy{
		FailureThreshold:          5,
		ResetTimeout:              time.Minute,
		RequiredHalfOpenSuccesses: 2,
		MaxRetries:                3,
		InitialDelay:              time.Millisecond,
		MaxDelay:                  2 * time.Millisecond,
		Multiplier:                2,
	}
}

// NewTestRegistry returns a fresh registry using FastPolicy and a discarding logger.
func NewTestRegistry(t *testing.T) *resilience.Registry {
	t.Helper()
	return resilience.NewRegistry(FastPolicy(), resilience.WithRegistryLogger(logging.Discard()))
}

// Upstream paths served by NewPriceUpstreams.
const (
	GrowwRatesPath       = "/v1/api/data/gold-silver/rates"
	GoldCalculatorPath   = "/gold-rates-today/api/calculator"
	GoldHistoryPath      = "/gold-rates-today/api/history"
	GoldCitiesPath       = "/gold-rates-today/api/cities"
	SilverCalculatorPath = "/silver-rates-today/api/calculator"
	SilverHistoryPath    = "/silver-rates-today/api/history"
	SilverCitiesPath     = "/silver-rates-today/api/silverCityList"
	CopperFuturesPath    = "/mc/commodity/futures"
	CopperHistoryPath    = "/mc/commodity/historical"
)

// NewPriceUpstreams serves every source from one fake server; their paths do not overlap.
//
//	groww        Mumbai (24K 7300/g, platinum, palladium, copper) and Bangalore (24K 7250.50/g)
//	angelone     gold 72505/66463/54379 per 10g, silver 95000 per kg, one gold and two silver history rows
//	moneycontrol copper 845.50 per kg for any expiry, two history days
func NewPriceUpstreams(t *testing.T) *FakeUpstream {
	t.Helper()
	fake := NewFakeUpstream(t)
	fake.HandleJSON(GrowwRatesPath, NewGrowwRates().
		WithCity("mumbai", "Mumbai", "7300", "6690").
		WithCity("bangalore", "Bangalore", "7250.50", "6646").
		WithMetal("mumbai", "platinum", "3100").
		WithMetal("mumbai", "palladium", "2900").
		WithMetal("mumbai", "copper", "850").
		WithTrending("bangalore", "mumbai").
		Build())
	fake.HandleJSON(GoldCitiesPath, AngelOneCities("Mumbai", "MUMBAI", "Bangalore", "BANGALORE"))
	fake.HandleJSON(SilverCitiesPath, AngelOneCities("Mumbai", "MUMBAI", "Hyderabad", "HYDERABAD"))
	fake.Handle(GoldCalculatorPath, func(w http.ResponseWriter, r *http.Request) {
		prices := map[string]string{"24": "72505", "22": "66463", "18": "54379"}
		JSONHandler(AngelOneCalculator(prices[r.URL.Query().Get("carat")], "", ""))(w, r)
	})
	fake.HandleJSON(GoldHistoryPath, AngelOneHistory(
		HistoryRow{Date: "2026-01-30", Rate: "71500", Change: ""},
	))
	fake.HandleJSON(SilverCalculatorPath, AngelOneCalculator("95000", "", ""))
	fake.HandleJSON(SilverHistoryPath, AngelOneHistory(
		HistoryRow{Date: "2 Feb 2026", Rate: "94,000", Change: "+500 (0.53%)"},
		HistoryRow{Date: "2026-01-30", Rate: "93,500", Change: ""},
	))
	fake.HandleJSON(CopperFuturesPath, MoneyControlFutures("845.50", "", ""))
	fake.HandleJSON(CopperHistoryPath, MoneyControlHistory(map[string]string{
		"2026-02-02": "842",
		"2026-01-30": "840",
	}))
	return fake
}
