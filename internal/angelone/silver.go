package angelone

import (
	"context"
	"fmt"
	"net/url"

	"golang.org/x/sync/errgroup"

	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/model"
)

const (
	silverCalculatorPath = "/silver-rates-today/api/calculator"
	silverHistoryPath    = "/silver-rates-today/api/history"
	silverCitiesPath     = "/silver-rates-today/api/silverCityList"

	// silverGrams is the weight requested from the calculator and used by the history rates.
	silverGrams = 1000
)

// FetchSilver returns the silver quote for city, plus its trend when
// withTrend is set. A trend failure never fails the quote.
func (f *Fetcher) FetchSilver(ctx context.Context, city string, withTrend bool) (model.MetalRates, error) {
	res := f.silverCities.Resolve(ctx, city)
	symbol := res.City.Symbol

	var (
		quote    model.PriceQuote
		quoteErr error
		trend    model.TrendSeries
		trendErr error
	)

	var g errgroup.Group
	g.Go(func() error {
		quote, quoteErr = f.calculator(ctx, calculatorRequest{
			path: silverCalculatorPath,
			key:  "silver:" + symbol,
			query: url.Values{
				"city":  {symbol},
				"grams": {fmt.Sprint(silverGrams)},
			},
			grams: silverGrams,
			metal: model.Silver,
		})
		return nil
	})
	if withTrend {
		g.Go(func() error {
			trend, trendErr = f.silverHistory(ctx, symbol)
			return nil
		})
	}
	//nolint:errcheck // both goroutines return nil; errors are captured above
	g.Wait()

	if quoteErr != nil {
		return model.MetalRates{}, fmt.Errorf("angelone silver for %s: %w", res.City.CanonicalName, quoteErr)
	}
	out := model.MetalRates{Quote: stamp(quote, res)}

	if withTrend {
		if trendErr != nil {
			f.log.WithError(trendErr).WithField("city", res.City.CanonicalName).Warn("silver trend unavailable")
		} else {
			out.Trend = trend.WithLive(out.Quote, f.today())
		}
	}
	return out, nil
}

// FetchSilverTrend returns the per-gram silver history for city, ascending by date.
func (f *Fetcher) FetchSilverTrend(ctx context.Context, city string) (model.TrendSeries, error) {
	res := f.silverCities.Resolve(ctx, city)
	return f.silverHistory(ctx, res.City.Symbol)
}

func (f *Fetcher) silverHistory(ctx context.Context, symbol string) (model.TrendSeries, error) {
	return f.history(ctx, silverHistoryPath, "silver-history:"+symbol, url.Values{"city": {symbol}}, silverGrams)
}

// SilverCities returns the cities AngelOne publishes silver rates for.
func (f *Fetcher) SilverCities(ctx context.Context) []model.CityDescriptor {
	return f.silverCities.Cities(ctx)
}
