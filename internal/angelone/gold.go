package angelone

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/model"
)

const (
	goldCalculatorPath = "/gold-rates-today/api/calculator"
	goldHistoryPath    = "/gold-rates-today/api/history"
	goldCitiesPath     = "/gold-rates-today/api/cities"

	// goldGrams is the weight requested from the calculator and used by the history rates.
	goldGrams = 10
)

// FetchGold returns the 24K, 22K and 18K quotes for city, plus the 24K
// trend when withTrend is set.
//
// Each carat is a separate upstream call; they run concurrently and fail
// independently. A carat that could not be fetched is missing from Carats
// and listed in Unavailable. Only when every carat fails is an error
// returned. A trend failure never fails the quote.
func (f *Fetcher) FetchGold(ctx context.Context, city string, withTrend bool) (model.GoldRates, error) {
	res := f.goldCities.Resolve(ctx, city)
	symbol := res.City.Symbol

	quotes := make([]*model.PriceQuote, len(model.Carats))
	errs := make([]error, len(model.Carats))
	var trend model.TrendSeries
	var trendErr error

	var g errgroup.Group
	for i, carat := range model.Carats {
		g.Go(func() error {
			q, err := f.calculator(ctx, calculatorRequest{
				path: goldCalculatorPath,
				key:  fmt.Sprintf("gold:%s:%s", symbol, carat.Number()),
				query: url.Values{
					"city":  {symbol},
					"carat": {carat.Number()},
					"grams": {fmt.Sprint(goldGrams)},
				},
				grams: goldGrams,
				metal: model.Gold,
				carat: carat,
			})
			if err != nil {
				errs[i] = err
				return nil
			}
			q = stamp(q, res)
			quotes[i] = &q
			return nil
		})
	}
	if withTrend {
		g.Go(func() error {
			trend, trendErr = f.goldHistory(ctx, symbol)
			return nil
		})
	}
	//nolint:errcheck // every goroutine returns nil; failures are collected per carat
	g.Wait()

	out := model.GoldRates{
		City:                   res.City.CanonicalName,
		CityResolutionFallback: res.Fallback,
		Carats:                 make(map[model.Carat]*model.PriceQuote, len(model.Carats)),
	}
	for i, carat := range model.Carats {
		if quotes[i] != nil {
			out.Carats[carat] = quotes[i]
			continue
		}
		out.Unavailable = append(out.Unavailable, carat)
		f.log.WithError(errs[i]).WithFields(logrus.Fields{
			"city":  res.City.CanonicalName,
			"carat": carat,
		}).Warn("gold carat unavailable")
	}
	if len(out.Carats) == 0 {
		return model.GoldRates{}, fmt.Errorf("angelone gold for %s: %w", res.City.CanonicalName, errors.Join(errs...))
	}

	if withTrend {
		if trendErr != nil {
			f.log.WithError(trendErr).WithField("city", res.City.CanonicalName).Warn("gold trend unavailable")
		} else {
			if live := out.Carats[model.Carat24]; live != nil {
				trend = trend.WithLive(*live, f.today())
			}
			out.Trend = trend
		}
	}
	return out, nil
}

// FetchGoldTrend returns the 24K per-gram history for city, ascending by date.
func (f *Fetcher) FetchGoldTrend(ctx context.Context, city string) (model.TrendSeries, error) {
	res := f.goldCities.Resolve(ctx, city)
	return f.goldHistory(ctx, res.City.Symbol)
}

func (f *Fetcher) goldHistory(ctx context.Context, symbol string) (model.TrendSeries, error) {
	return f.history(ctx, goldHistoryPath, "gold-history:"+symbol, url.Values{
		"city":  {symbol},
		"carat": {model.Carat24.Number()},
	}, goldGrams)
}

// GoldCities returns the cities AngelOne publishes gold rates for.
func (f *Fetcher) GoldCities(ctx context.Context) []model.CityDescriptor {
	return f.goldCities.Cities(ctx)
}
