package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/angelone"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/apperrors"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/groww"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/logging"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/model"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/moneycontrol"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/resilience"
)

// DefaultHintTimeout bounds a price hint so a slow upstream never delays the caller.
const DefaultHintTimeout = 2500 * time.Millisecond

// Fetchers groups the upstream fetchers the price service reads from.
type Fetchers struct {
	Groww        *groww.Fetcher
	AngelOne     *angelone.Fetcher
	MoneyControl *moneycontrol.Fetcher
}

// PriceServiceOptions tunes a PriceService.
type PriceServiceOptions struct {
	HintTimeout time.Duration
	// GoldFallback serves Groww's 24K and 22K prices when every AngelOne carat fails.
	GoldFallback bool
	Logger       logrus.FieldLogger
}

// PriceService handles price-related business logic.
// It picks the upstream responsible for each metal and coordinates
// fallbacks between them:
//
//	gold               AngelOne (optionally Groww when AngelOne is down)
//	silver             AngelOne
//	copper             MoneyControl
//	platinum/palladium Groww
type PriceService struct {
	fetchers     Fetchers
	registry     *resilience.Registry
	hintTimeout  time.Duration
	goldFallback bool
	log          *logrus.Entry
}

// NewPriceService creates a new PriceService with the provided fetchers.
// The registry is only read, to report breaker state.
func NewPriceService(fetchers Fetchers, registry *resilience.Registry, opts PriceServiceOptions) *PriceService {
	s := &PriceService{
		fetchers:     fetchers,
		registry:     registry,
		hintTimeout:  opts.HintTimeout,
		goldFallback: opts.GoldFallback,
		log:          logging.Component(opts.Logger, "price_service"),
	}
	if s.hintTimeout <= 0 {
		s.hintTimeout = DefaultHintTimeout
	}
	return s
}

// Gold retrieves the per-carat gold quotes for a city.
//
// Parameters:
//   - ctx: bounds every upstream call
//   - city: free-form city name, resolved with aliases and fuzzy matching
//   - withTrend: also fetch the 24K history
//
// Returns apperrors.ErrInvalidCity for an empty city. When AngelOne fails
// for every carat and the Groww fallback is enabled, the Groww prices are
// returned instead with 18K listed as unavailable.
func (s *PriceService) Gold(ctx context.Context, city string, withTrend bool) (model.GoldRates, error) {
	city, err := cleanCity(city)
	if err != nil {
		return model.GoldRates{}, err
	}

	rates, err := s.fetchers.AngelOne.FetchGold(ctx, city, withTrend)
	if err == nil || !s.goldFallback || ctx.Err() != nil {
		return rates, err
	}

	s.log.WithError(err).WithField("city", city).Warn("angelone gold unavailable, falling back to groww")
	cityRates, gErr := s.fetchers.Groww.FetchCityRates(ctx, city)
	if gErr != nil {
		s.log.WithError(gErr).WithField("city", city).Warn("groww gold fallback failed")
		return model.GoldRates{}, err
	}
	return goldFromCityRates(cityRates)
}

// Silver retrieves the silver quote for a city, plus its trend when withTrend is set.
func (s *PriceService) Silver(ctx context.Context, city string, withTrend bool) (model.MetalRates, error) {
	city, err := cleanCity(city)
	if err != nil {
		return model.MetalRates{}, err
	}
	return s.fetchers.AngelOne.FetchSilver(ctx, city, withTrend)
}

// Copper retrieves the national MCX copper quote stamped with the resolved city.
func (s *PriceService) Copper(ctx context.Context, city string, withTrend bool) (model.MetalRates, error) {
	city, err := cleanCity(city)
	if err != nil {
		return model.MetalRates{}, err
	}
	return s.fetchers.MoneyControl.FetchCopper(ctx, city, withTrend)
}

// Platinum retrieves the platinum quote for a city. No upstream publishes a platinum history.
func (s *PriceService) Platinum(ctx context.Context, city string) (model.MetalRates, error) {
	return s.growwOnly(ctx, model.Platinum, city)
}

// Palladium retrieves the palladium quote for a city. No upstream publishes a palladium history.
func (s *PriceService) Palladium(ctx context.Context, city string) (model.MetalRates, error) {
	return s.growwOnly(ctx, model.Palladium, city)
}

func (s *PriceService) growwOnly(ctx context.Context, metal model.Metal, city string) (model.MetalRates, error) {
	city, err := cleanCity(city)
	if err != nil {
		return model.MetalRates{}, err
	}
	q, err := s.fetchers.Groww.FetchQuote(ctx, metal, city)
	if err != nil {
		return model.MetalRates{}, err
	}
	return model.MetalRates{Quote: q}, nil
}

// Prices dispatches to the metal's own operation. The result is a
// model.GoldRates for gold and a model.MetalRates for every other metal.
func (s *PriceService) Prices(ctx context.Context, metal model.Metal, city string, withTrend bool) (any, error) {
	switch metal {
	case model.Gold:
		return s.Gold(ctx, city, withTrend)
	case model.Silver:
		return s.Silver(ctx, city, withTrend)
	case model.Copper:
		return s.Copper(ctx, city, withTrend)
	case model.Platinum:
		return s.Platinum(ctx, city)
	case model.Palladium:
		return s.Palladium(ctx, city)
	default:
		return nil, fmt.Errorf("%q: %w", metal, apperrors.ErrUnsupportedMetal)
	}
}

// MetalTrend is the price history of one metal, per gram and ascending by date.
type MetalTrend struct {
	Metal  model.Metal       `json:"metal"`
	City   string            `json:"city"`
	Points model.TrendSeries `json:"points"`
}

// Trend retrieves the price history of metal for city.
//
// Gold is the 24K series. Copper trades nationally, so its history is the
// same for every city. Platinum and palladium have no upstream history and
// report apperrors.ErrNoPriceData.
func (s *PriceService) Trend(ctx context.Context, metal model.Metal, city string) (MetalTrend, error) {
	city, err := cleanCity(city)
	if err != nil {
		return MetalTrend{}, err
	}

	var points model.TrendSeries
	switch metal {
	case model.Gold:
		points, err = s.fetchers.AngelOne.FetchGoldTrend(ctx, city)
	case model.Silver:
		points, err = s.fetchers.AngelOne.FetchSilverTrend(ctx, city)
	case model.Copper:
		points, err = s.fetchers.MoneyControl.FetchCopperTrend(ctx)
	case model.Platinum, model.Palladium:
		return MetalTrend{}, fmt.Errorf("%s history: %w", metal, apperrors.ErrNoPriceData)
	default:
		return MetalTrend{}, fmt.Errorf("%q: %w", metal, apperrors.ErrUnsupportedMetal)
	}
	if err != nil {
		return MetalTrend{}, err
	}
	return MetalTrend{Metal: metal, City: city, Points: points}, nil
}

// CityRates retrieves every metal Groww quotes for a city in one call.
func (s *PriceService) CityRates(ctx context.Context, city string) (model.CityRates, error) {
	city, err := cleanCity(city)
	if err != nil {
		return model.CityRates{}, err
	}
	return s.fetchers.Groww.FetchCityRates(ctx, city)
}

// Cities returns the cities the metal's upstream publishes prices for.
// The list never fails: a cache serves stale or hardcoded cities when the upstream is down.
func (s *PriceService) Cities(ctx context.Context, metal model.Metal) ([]model.CityDescriptor, error) {
	switch metal {
	case model.Gold:
		return s.fetchers.AngelOne.GoldCities(ctx), nil
	case model.Silver:
		return s.fetchers.AngelOne.SilverCities(ctx), nil
	case model.Copper, model.Platinum, model.Palladium:
		return s.fetchers.Groww.Cities(ctx), nil
	default:
		return nil, fmt.Errorf("%q: %w", metal, apperrors.ErrUnsupportedMetal)
	}
}

// TrendingCities returns the cities Groww currently lists as trending.
func (s *PriceService) TrendingCities(ctx context.Context) ([]model.CityDescriptor, error) {
	return s.fetchers.Groww.TrendingCities(ctx)
}

// Breakers returns the state of every upstream circuit breaker, ordered by source.
func (s *PriceService) Breakers() []resilience.BreakerSnapshot {
	return s.registry.Snapshots()
}

// Hint is a compact price used in page titles and descriptions.
// Price is nil when the upstream did not answer in time.
type Hint struct {
	Metal     model.Metal      `json:"metal"`
	City      string           `json:"city"`
	Price     *decimal.Decimal `json:"price"`
	Unit      string           `json:"unit"`
	Available bool             `json:"available"`
}

// PriceHint retrieves a best-effort price for metal in city within the hint timeout.
//
// Upstream failures and timeouts are not errors: the hint comes back with
// Available false so the caller can render without a price. Only an
// unsupported metal or an empty city is reported as an error.
func (s *PriceService) PriceHint(ctx context.Context, metal model.Metal, city string) (Hint, error) {
	city, err := cleanCity(city)
	if err != nil {
		return Hint{}, err
	}
	hint := Hint{Metal: metal, City: city, Unit: hintUnit(metal)}
	if hint.Unit == "" {
		return Hint{}, fmt.Errorf("%q: %w", metal, apperrors.ErrUnsupportedMetal)
	}

	ctx, cancel := context.WithTimeout(ctx, s.hintTimeout)
	defer cancel()

	q, err := s.hintQuote(ctx, metal, city)
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"metal": metal,
			"city":  city,
		}).Debug("price hint unavailable")
		return hint, nil
	}

	price := q.PricePerGram
	switch hint.Unit {
	case "10g":
		price = q.PricePer10g
	case "kg":
		price = q.PricePerKg
	}
	hint.City = q.City
	hint.Price = &price
	hint.Available = true
	return hint, nil
}

func (s *PriceService) hintQuote(ctx context.Context, metal model.Metal, city string) (model.PriceQuote, error) {
	switch metal {
	case model.Gold:
		rates, err := s.Gold(ctx, city, false)
		if err != nil {
			return model.PriceQuote{}, err
		}
		for _, c := range model.Carats {
			if q := rates.Quote(c); q != nil {
				return *q, nil
			}
		}
		return model.PriceQuote{}, apperrors.ErrNoPriceData
	default:
		v, err := s.Prices(ctx, metal, city, false)
		if err != nil {
			return model.PriceQuote{}, err
		}
		return v.(model.MetalRates).Quote, nil
	}
}

// hintUnit is the unit Indian retail quotes each metal in.
func hintUnit(metal model.Metal) string {
	switch metal {
	case model.Gold:
		return "10g"
	case model.Silver, model.Copper:
		return "kg"
	case model.Platinum, model.Palladium:
		return "g"
	default:
		return ""
	}
}

func cleanCity(city string) (string, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return "", apperrors.ErrInvalidCity
	}
	return city, nil
}

func goldFromCityRates(r model.CityRates) (model.GoldRates, error) {
	out := model.GoldRates{
		City:                   r.City,
		CityResolutionFallback: r.CityResolutionFallback,
		Carats:                 make(map[model.Carat]*model.PriceQuote),
	}
	for _, c := range model.Carats {
		var q *model.PriceQuote
		switch c {
		case model.Carat24:
			q = r.Gold24
		case model.Carat22:
			q = r.Gold22
		}
		if q == nil {
			out.Unavailable = append(out.Unavailable, c)
			continue
		}
		out.Carats[c] = q
	}
	if len(out.Carats) == 0 {
		return model.GoldRates{}, fmt.Errorf("groww gold in %s: %w", r.City, apperrors.ErrNoPriceData)
	}
	return out, nil
}
