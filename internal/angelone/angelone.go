// Package angelone fetches gold and silver prices from the AngelOne rate calculators.
package angelone

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/apperrors"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/citycache"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/logging"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/model"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/normalize"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/resilience"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/units"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/upstream"
)

const (
	// DefaultQuoteTTL is how long a calculator result is shared between callers.
	DefaultQuoteTTL = 5 * time.Minute

	// DefaultHistoryTTL is how long a history series is shared between callers.
	DefaultHistoryTTL = 30 * time.Minute
)

// Options tunes a Fetcher.
type Options struct {
	QuoteTTL     time.Duration
	HistoryTTL   time.Duration
	Now          func() time.Time
	Logger       logrus.FieldLogger
	CacheOptions []citycache.Option
}

// Fetcher talks to the AngelOne gold and silver endpoints. Gold and silver
// keep separate city lists because the upstream publishes them separately.
type Fetcher struct {
	client       *upstream.Client
	exec         *resilience.Executor
	goldCities   *citycache.Cache
	silverCities *citycache.Cache
	quoteTTL     time.Duration
	historyTTL   time.Duration
	now          func() time.Time
	log          *logrus.Entry
}

// New creates an AngelOne fetcher that calls the upstream through exec.
func New(client *upstream.Client, exec *resilience.Executor, opts Options) *Fetcher {
	f := &Fetcher{
		client:     client,
		exec:       exec,
		quoteTTL:   opts.QuoteTTL,
		historyTTL: opts.HistoryTTL,
		now:        opts.Now,
		log:        logging.Component(opts.Logger, "angelone"),
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

	cacheOpts := append([]citycache.Option{
		citycache.WithLogger(opts.Logger),
		citycache.WithDeduplicator(exec.Deduplicator()),
	}, opts.CacheOptions...)
	f.goldCities = citycache.New("angelone-gold", f.cityLoader(goldCitiesPath), fallbackCities, cacheOpts...)
	f.silverCities = citycache.New("angelone-silver", f.cityLoader(silverCitiesPath), fallbackCities, cacheOpts...)
	return f
}

// CityCaches exposes the gold and silver city caches so they can be warmed.
func (f *Fetcher) CityCaches() []*citycache.Cache {
	return []*citycache.Cache{f.goldCities, f.silverCities}
}

// calculatorRequest describes one calculator call.
type calculatorRequest struct {
	path  string
	key   string
	query url.Values
	grams int64
	metal model.Metal
	carat model.Carat
}

// calculator fetches a calculator price and converts it into a per-gram quote.
// The quote's city and fallback flag are left to the caller.
func (f *Fetcher) calculator(ctx context.Context, req calculatorRequest) (model.PriceQuote, error) {
	return resilience.Do(ctx, f.exec, req.key, f.quoteTTL, func(ctx context.Context) (model.PriceQuote, error) {
		var resp calculatorResponse
		if err := f.client.GetJSON(ctx, req.path, req.query, &resp); err != nil {
			return model.PriceQuote{}, err
		}
		if resp.Data == nil {
			return model.PriceQuote{}, apperrors.NewMalformedResponseError(model.SourceAngelOne, "calculator response has no data", nil)
		}
		price, ok := normalize.ParsePositive(resp.Data.Price.String())
		if !ok {
			return model.PriceQuote{}, apperrors.NewMalformedResponseError(model.SourceAngelOne,
				"calculator price missing or not positive: "+strconv.Quote(resp.Data.Price.String()), nil)
		}
		perGram, err := units.PerGramFromWeight(price, req.grams)
		if err != nil {
			return model.PriceQuote{}, apperrors.NewMalformedResponseError(model.SourceAngelOne, "calculator weight", err)
		}

		q := model.NewPriceQuote(req.metal, req.carat, perGram, "", model.SourceAngelOne, f.now())
		if change := normalize.ParseChange(resp.Data.Difference.String()); change != nil {
			c, _ := units.PerGramFromWeight(*change, req.grams)
			q.ChangeAbsolute = &c
		}
		q.ChangePercent = normalize.ParseChange(resp.Data.Percentage.String())
		return q, nil
	})
}

// history fetches a history series whose rates are quoted per grams and
// returns it per gram, ascending. Unparseable rows are dropped.
func (f *Fetcher) history(ctx context.Context, path, key string, query url.Values, grams int64) (model.TrendSeries, error) {
	return resilience.Do(ctx, f.exec, key, f.historyTTL, func(ctx context.Context) (model.TrendSeries, error) {
		var resp historyResponse
		if err := f.client.GetJSON(ctx, path, query, &resp); err != nil {
			return nil, err
		}
		if resp.Data == nil {
			return nil, apperrors.NewMalformedResponseError(model.SourceAngelOne, "history response has no data", nil)
		}

		series := make(model.TrendSeries, 0, len(resp.Data))
		dropped := 0
		for _, row := range resp.Data {
			p, ok := parseHistoryRow(row, grams)
			if !ok {
				dropped++
				continue
			}
			series = append(series, p)
		}
		if dropped > 0 {
			f.log.WithFields(logrus.Fields{"path": path, "dropped": dropped}).Debug("dropped unparseable history rows")
		}
		return series.Normalize(), nil
	})
}

// parseHistoryRow converts a row quoted per grams into a per-gram point.
// The change may be absolute, a percentage, or "abs (pct%)".
func parseHistoryRow(row historyRow, grams int64) (model.TrendPoint, bool) {
	date, ok := normalize.ParseTrendDate(row.Date)
	if !ok {
		return model.TrendPoint{}, false
	}
	rate, ok := normalize.ParsePositive(row.Rate.String())
	if !ok {
		return model.TrendPoint{}, false
	}
	perGram, err := units.PerGramFromWeight(rate, grams)
	if err != nil {
		return model.TrendPoint{}, false
	}

	p := model.TrendPoint{Date: date, Price: perGram}
	absolute, percent := normalize.SplitChange(row.Change.String())
	if absolute != nil {
		c, _ := units.PerGramFromWeight(*absolute, grams)
		p.ChangeAbsolute = &c
	}
	p.ChangePercent = percent
	return p, true
}

// cityLoader returns a citycache loader for a city list endpoint.
func (f *Fetcher) cityLoader(path string) citycache.Loader {
	return func(ctx context.Context) ([]model.CityDescriptor, error) {
		return resilience.Do(ctx, f.exec, "cities:"+path, 0, func(ctx context.Context) ([]model.CityDescriptor, error) {
			var resp citiesResponse
			if err := f.client.GetJSON(ctx, path, nil, &resp); err != nil {
				return nil, err
			}
			out := make([]model.CityDescriptor, 0, len(resp.Data))
			for _, c := range resp.Data {
				if strings.TrimSpace(c.City) == "" || strings.TrimSpace(c.Symbol) == "" {
					continue
				}
				out = append(out, normalize.Describe(c.City, c.Symbol))
			}
			if len(out) == 0 {
				return nil, apperrors.NewMalformedResponseError(model.SourceAngelOne, "city list is empty", nil)
			}
			return out, nil
		})
	}
}

// stamp sets the resolved city on a shared quote copy.
func stamp(q model.PriceQuote, res model.CityResolution) model.PriceQuote {
	q.City = res.City.CanonicalName
	q.CityResolutionFallback = res.Fallback
	return q
}

// today returns the current calendar day in India according to the fetcher clock.
func (f *Fetcher) today() model.Date {
	return model.NewDate(f.now().In(model.IST))
}
