// Package moneycontrol fetches MCX copper futures prices from MoneyControl.
package moneycontrol

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/apperrors"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/logging"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/model"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/normalize"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/resilience"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/units"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/upstream"
)

const (
	futuresPath    = "/mc/commodity/futures"
	historicalPath = "/mc/commodity/historical"

	symbol   = "COPPER"
	exchange = "MCX"

	// DefaultQuoteTTL is how long a futures quote, and the expiry that produced it, is reused.
	DefaultQuoteTTL = 5 * time.Minute

	// DefaultHistoryTTL is how long a historical series is shared between callers.
	DefaultHistoryTTL = 30 * time.Minute
)

// CityResolver resolves a loosely formatted city name.
type CityResolver interface {
	Resolve(ctx context.Context, input string) model.CityResolution
}

// Options tunes a Fetcher.
type Options struct {
	QuoteTTL   time.Duration
	HistoryTTL time.Duration
	Now        func() time.Time
	Logger     logrus.FieldLogger
	// Cities resolves the city stamped on quotes. Copper is priced
	// nationally, so the city never changes the price.
	Cities CityResolver
}

// Fetcher reads MCX copper futures quotes and history.
type Fetcher struct {
	client     *upstream.Client
	exec       *resilience.Executor
	cities     CityResolver
	quoteTTL   time.Duration
	historyTTL time.Duration
	now        func() time.Time
	log        *logrus.Entry

	mu          sync.Mutex
	expiry      model.Date
	expiryUntil time.Time
}

// New creates a MoneyControl fetcher that calls the upstream through exec.
func New(client *upstream.Client, exec *resilience.Executor, opts Options) *Fetcher {
	f := &Fetcher{
		client:     client,
		exec:       exec,
		cities:     opts.Cities,
		quoteTTL:   opts.QuoteTTL,
		historyTTL: opts.HistoryTTL,
		now:        opts.Now,
		log:        logging.Component(opts.Logger, "moneycontrol"),
	}
	if f.quoteTTL <= 0 {
		f.quoteTTL = DefaultQuoteTTL
	}
	if f.historyTTL <= 0 {
		f.historyTTL = DefaultHistoryTTL
	}
	if f.now == nil {
		f.now = time.Now
	}
	if f.cities == nil {
		f.cities = staticCities{normalize.NewResolver(defaultCities, normalize.DefaultCity)}
	}
	return f
}

type futuresResponse struct {
	Data *struct {
		LastPrice     normalize.FlexString `json:"lastPrice"`
		Change        normalize.FlexString `json:"change"`
		ChangePercent normalize.FlexString `json:"changePercent"`
	} `json:"data"`
}

type historicalResponse struct {
	Data map[string]normalize.FlexString `json:"data"`
}

// futuresResult is the outcome of one expiry attempt; Quote is nil when the
// upstream has no contract for that expiry.
type futuresResult struct {
	Quote *model.PriceQuote
}

// FetchCopper returns the copper quote stamped with the resolved city, plus
// its trend when withTrend is set. A trend failure never fails the quote.
func (f *Fetcher) FetchCopper(ctx context.Context, city string, withTrend bool) (model.MetalRates, error) {
	res := f.cities.Resolve(ctx, city)

	q, expiry, err := f.quote(ctx)
	if err != nil {
		return model.MetalRates{}, err
	}
	q.City = res.City.CanonicalName
	q.CityResolutionFallback = res.Fallback
	out := model.MetalRates{Quote: q}

	if withTrend {
		trend, err := f.history(ctx, expiry)
		if err != nil {
			f.log.WithError(err).Warn("copper trend unavailable")
		} else {
			out.Trend = trend.WithLive(q, f.today())
		}
	}
	return out, nil
}

// FetchCopperTrend returns the per-gram copper history for the active contract.
func (f *Fetcher) FetchCopperTrend(ctx context.Context) (model.TrendSeries, error) {
	_, expiry, err := f.quote(ctx)
	if err != nil {
		return nil, err
	}
	return f.history(ctx, expiry)
}

// quote tries the remembered expiry first, then each candidate in order.
func (f *Fetcher) quote(ctx context.Context) (model.PriceQuote, model.Date, error) {
	candidates := expiryCandidates(f.today())
	if remembered, ok := f.rememberedExpiry(); ok {
		candidates = append([]model.Date{remembered}, candidates...)
	}

	tried := make(map[model.Date]bool, len(candidates))
	for _, expiry := range candidates {
		if tried[expiry] {
			continue
		}
		tried[expiry] = true

		res, err := f.futures(ctx, expiry)
		if err != nil {
			return model.PriceQuote{}, model.Date{}, err
		}
		if res.Quote != nil {
			f.rememberExpiry(expiry)
			return *res.Quote, expiry, nil
		}
		f.log.WithField("expiry", expiry.String()).Debug("no copper contract for expiry")
	}

	return model.PriceQuote{}, model.Date{}, apperrors.NewMalformedResponseError(model.SourceMoneyControl,
		"no copper futures expiry accepted", apperrors.ErrNoExpiry)
}

// futures fetches the quote for one expiry. An unknown expiry is a
// successful empty result so that guessing never trips the breaker.
func (f *Fetcher) futures(ctx context.Context, expiry model.Date) (futuresResult, error) {
	return resilience.Do(ctx, f.exec, "copper:"+expiry.String(), f.quoteTTL, func(ctx context.Context) (futuresResult, error) {
		var resp futuresResponse
		err := f.client.GetJSON(ctx, futuresPath, url.Values{
			"symbol":   {symbol},
			"exchange": {exchange},
			"expiry":   {expiry.String()},
		}, &resp)
		if isUnknownExpiry(err) {
			return futuresResult{}, nil
		}
		if err != nil {
			return futuresResult{}, err
		}
		if resp.Data == nil {
			return futuresResult{}, nil
		}

		price, ok := normalize.ParsePositive(resp.Data.LastPrice.String())
		if !ok {
			return futuresResult{}, nil
		}
		q := model.NewPriceQuote(model.Copper, "", units.ToPerGram(price, units.Kilogram), "", model.SourceMoneyControl, f.now())
		if change := normalize.ParseChange(resp.Data.Change.String()); change != nil {
			c := units.ToPerGram(*change, units.Kilogram)
			q.ChangeAbsolute = &c
		}
		q.ChangePercent = normalize.ParseChange(resp.Data.ChangePercent.String())
		return futuresResult{Quote: &q}, nil
	})
}

// history fetches the date-keyed series for expiry, per kg upstream, per gram here.
func (f *Fetcher) history(ctx context.Context, expiry model.Date) (model.TrendSeries, error) {
	return resilience.Do(ctx, f.exec, "copper-history:"+expiry.String(), f.historyTTL, func(ctx context.Context) (model.TrendSeries, error) {
		var resp historicalResponse
		if err := f.client.GetJSON(ctx, historicalPath, url.Values{
			"symbol": {symbol},
			"expiry": {expiry.String()},
		}, &resp); err != nil {
			return nil, err
		}
		if resp.Data == nil {
			return nil, apperrors.NewMalformedResponseError(model.SourceMoneyControl, "historical response has no data", nil)
		}

		series := make(model.TrendSeries, 0, len(resp.Data))
		for rawDate, rawPrice := range resp.Data {
			date, ok := normalize.ParseTrendDate(rawDate)
			if !ok {
				continue
			}
			price, ok := normalize.ParsePositive(rawPrice.String())
			if !ok {
				continue
			}
			series = append(series, model.TrendPoint{Date: date, Price: units.ToPerGram(price, units.Kilogram)})
		}
		return series.Normalize(), nil
	})
}

func isUnknownExpiry(err error) bool {
	var fe *apperrors.FetchError
	if !errors.As(err, &fe) || fe.Kind != apperrors.KindHTTP {
		return false
	}
	return fe.StatusCode == http.StatusBadRequest || fe.StatusCode == http.StatusNotFound
}

func (f *Fetcher) rememberedExpiry() (model.Date, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.expiry.IsZero() || !f.now().Before(f.expiryUntil) || f.expiry.Before(f.today()) {
		return model.Date{}, false
	}
	return f.expiry, true
}

func (f *Fetcher) rememberExpiry(d model.Date) {
	f.mu.Lock()
	f.expiry = d
	f.expiryUntil = f.now().Add(f.quoteTTL)
	f.mu.Unlock()
}

func (f *Fetcher) today() model.Date {
	return model.NewDate(f.now().In(model.IST))
}

// defaultCities is used to stamp quotes when no city resolver is configured.
var defaultCities = []model.CityDescriptor{
	normalize.Describe("Mumbai", "MUMBAI"),
	normalize.Describe("Delhi", "DELHI"),
	normalize.Describe("Bangalore", "BANGALORE"),
	normalize.Describe("Chennai", "CHENNAI"),
	normalize.Describe("Kolkata", "KOLKATA"),
	normalize.Describe("Hyderabad", "HYDERABAD"),
	normalize.Describe("Pune", "PUNE"),
	normalize.Describe("Ahmedabad", "AHMEDABAD"),
}

type staticCities struct {
	r *normalize.Resolver
}

func (s staticCities) Resolve(_ context.Context, input string) model.CityResolution {
	return s.r.Resolve(input)
}
