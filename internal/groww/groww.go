// Package groww fetches the aggregated per-city metal rates published by Groww.
package groww

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
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

const ratesPath = "/v1/api/data/gold-silver/rates"

// DefaultQuoteTTL is how long a fetched rates document is shared between callers.
const DefaultQuoteTTL = 5 * time.Minute

// Options tunes a Fetcher.
type Options struct {
	QuoteTTL     time.Duration
	Now          func() time.Time
	Logger       logrus.FieldLogger
	CacheOptions []citycache.Option
}

// Fetcher reads the Groww aggregated rates document. One document carries
// every city and metal, so all operations share a single deduplicated call.
type Fetcher struct {
	client   *upstream.Client
	exec     *resilience.Executor
	cities   *citycache.Cache
	quoteTTL time.Duration
	now      func() time.Time
	log      *logrus.Entry
}

// New creates a Groww fetcher that calls the upstream through exec.
func New(client *upstream.Client, exec *resilience.Executor, opts Options) *Fetcher {
	f := &Fetcher{
		client:   client,
		exec:     exec,
		quoteTTL: opts.QuoteTTL,
		now:      opts.Now,
		log:      logging.Component(opts.Logger, "groww"),
	}
	if f.quoteTTL <= 0 {
		f.quoteTTL = DefaultQuoteTTL
	}
	if f.now == nil {
		f.now = time.Now
	}
	cacheOpts := append([]citycache.Option{
		citycache.WithLogger(opts.Logger),
		citycache.WithDeduplicator(exec.Deduplicator()),
	}, opts.CacheOptions...)
	f.cities = citycache.New("groww", f.loadCities, fallbackCities, cacheOpts...)
	return f
}

// CityCache exposes the city list cache so it can be warmed.
func (f *Fetcher) CityCache() *citycache.Cache {
	return f.cities
}

// FetchCityRates returns every metal Groww quotes for city. Metals the
// upstream omitted, or whose price failed validation, are nil.
func (f *Fetcher) FetchCityRates(ctx context.Context, city string) (model.CityRates, error) {
	doc, err := f.document(ctx)
	if err != nil {
		return model.CityRates{}, err
	}

	res := f.cities.Resolve(ctx, city)
	entry, ok := doc.lookup(res.City)
	if !ok {
		return model.CityRates{}, fmt.Errorf("groww: %s: %w", res.City.CanonicalName, apperrors.ErrNoPriceData)
	}

	name := entry.CityName
	if name == "" {
		name = res.City.CanonicalName
	}
	at := f.now()
	build := func(metal model.Metal, carat model.Carat, field *priceField, unit units.Unit) *model.PriceQuote {
		q := buildQuote(metal, carat, field, unit, name, at)
		if q != nil {
			q.CityResolutionFallback = res.Fallback
		}
		return q
	}

	return model.CityRates{
		City:                   name,
		CityResolutionFallback: res.Fallback,
		Gold24:                 build(model.Gold, model.Carat24, entry.Gold.K24, units.Gram),
		Gold22:                 build(model.Gold, model.Carat22, entry.Gold.K22, units.Gram),
		Silver:                 build(model.Silver, "", entry.Silver, units.Kilogram),
		Copper:                 build(model.Copper, "", entry.Copper, units.Kilogram),
		Platinum:               build(model.Platinum, "", entry.Platinum, units.Gram),
		Palladium:              build(model.Palladium, "", entry.Palladium, units.Gram),
	}, nil
}

// FetchQuote returns a single metal's quote for city. Gold is the 24K price.
func (f *Fetcher) FetchQuote(ctx context.Context, metal model.Metal, city string) (model.PriceQuote, error) {
	rates, err := f.FetchCityRates(ctx, city)
	if err != nil {
		return model.PriceQuote{}, err
	}

	var q *model.PriceQuote
	switch metal {
	case model.Gold:
		q = rates.Gold24
	case model.Silver:
		q = rates.Silver
	case model.Copper:
		q = rates.Copper
	case model.Platinum:
		q = rates.Platinum
	case model.Palladium:
		q = rates.Palladium
	default:
		return model.PriceQuote{}, fmt.Errorf("groww: %q: %w", metal, apperrors.ErrUnsupportedMetal)
	}
	if q == nil {
		return model.PriceQuote{}, fmt.Errorf("groww: %s in %s: %w", metal, rates.City, apperrors.ErrNoPriceData)
	}
	return *q, nil
}

// Cities returns the cities Groww publishes rates for.
func (f *Fetcher) Cities(ctx context.Context) []model.CityDescriptor {
	return f.cities.Cities(ctx)
}

// TrendingCities returns the cities Groww currently lists as trending, in upstream order.
// Slugs that are not in the rates document are skipped.
func (f *Fetcher) TrendingCities(ctx context.Context) ([]model.CityDescriptor, error) {
	doc, err := f.document(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.CityDescriptor, 0, len(doc.trending))
	for _, slug := range doc.trending {
		entry, ok := doc.cities[slug]
		if !ok {
			continue
		}
		out = append(out, describe(slug, entry))
	}
	return out, nil
}

// document fetches and validates the rates document, shared across callers for the quote TTL.
func (f *Fetcher) document(ctx context.Context) (document, error) {
	return resilience.Do(ctx, f.exec, "rates", f.quoteTTL, func(ctx context.Context) (document, error) {
		var raw map[string]json.RawMessage
		if err := f.client.GetJSON(ctx, ratesPath, nil, &raw); err != nil {
			return document{}, err
		}
		return f.parseDocument(raw)
	})
}

func (f *Fetcher) parseDocument(raw map[string]json.RawMessage) (document, error) {
	doc := document{cities: make(map[string]cityEntry, len(raw))}

	for key, value := range raw {
		if key == trendingKey {
			if err := json.Unmarshal(value, &doc.trending); err != nil {
				f.log.WithError(err).Warn("ignoring unreadable trending city list")
				doc.trending = nil
			}
			continue
		}
		var entry cityEntry
		if err := json.Unmarshal(value, &entry); err != nil {
			f.log.WithError(err).WithField("city", key).Debug("skipping unreadable city entry")
			continue
		}
		doc.cities[normalize.Slugify(key)] = entry
	}

	if len(doc.cities) == 0 {
		return document{}, apperrors.NewMalformedResponseError(model.SourceGroww, "rates document has no city entries", nil)
	}
	return doc, nil
}

func (f *Fetcher) loadCities(ctx context.Context) ([]model.CityDescriptor, error) {
	doc, err := f.document(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.CityDescriptor, 0, len(doc.cities))
	for slug, entry := range doc.cities {
		out = append(out, describe(slug, entry))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (d document) lookup(city model.CityDescriptor) (cityEntry, bool) {
	if e, ok := d.cities[normalize.Slugify(city.Symbol)]; ok {
		return e, true
	}
	e, ok := d.cities[city.Slug]
	return e, ok
}

func describe(slug string, entry cityEntry) model.CityDescriptor {
	name := entry.CityName
	if name == "" {
		name = normalize.DisplayName(slug)
	}
	c := normalize.Describe(name, slug)
	c.Slug = slug
	return c
}

// buildQuote converts a price block quoted per unit into a PriceQuote.
// It returns nil when the block is absent or its price is not a positive number.
// The absolute change is converted to per gram like the price.
func buildQuote(metal model.Metal, carat model.Carat, field *priceField, unit units.Unit, city string, at time.Time) *model.PriceQuote {
	if field == nil {
		return nil
	}
	price, ok := normalize.ParsePositive(field.Price.String())
	if !ok {
		return nil
	}
	q := model.NewPriceQuote(metal, carat, units.ToPerGram(price, unit), city, model.SourceGroww, at)
	if change := normalize.ParseChange(field.Change.String()); change != nil {
		perGram := units.ToPerGram(*change, unit)
		q.ChangeAbsolute = &perGram
	}
	q.ChangePercent = normalize.ParseChange(field.ChangePercent.String())
	return &q
}
