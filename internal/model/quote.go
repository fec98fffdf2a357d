package model

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/units"
)

// PriceQuote is a normalized price for one metal (and carat, for gold) in one city.
//
// PricePer10g and PricePerKg are always derived from PricePerGram at fetch
// time; they are never fetched independently. ChangeAbsolute and
// ChangePercent are nil when the upstream did not report them.
type PriceQuote struct {
	Metal                  Metal            `json:"metal"`
	Carat                  Carat            `json:"carat,omitempty"`
	PricePerGram           decimal.Decimal  `json:"pricePerGram"`
	PricePer10g            decimal.Decimal  `json:"pricePer10g"`
	PricePerKg             decimal.Decimal  `json:"pricePerKg"`
	City                   string           `json:"city"`
	Source                 Source           `json:"source"`
	FetchedAt              time.Time        `json:"fetchedAt"`
	ChangeAbsolute         *decimal.Decimal `json:"changeAbsolute"`
	ChangePercent          *decimal.Decimal `json:"changePercent"`
	CityResolutionFallback bool             `json:"cityResolutionFallback"`
}

// NewPriceQuote builds a quote whose 10g and 1kg prices are derived from perGram.
func NewPriceQuote(metal Metal, carat Carat, perGram decimal.Decimal, city string, source Source, fetchedAt time.Time) PriceQuote {
	d := units.Derive(perGram)
	return PriceQuote{
		Metal:        metal,
		Carat:        carat,
		PricePerGram: d.PerGram,
		PricePer10g:  d.Per10g,
		PricePerKg:   d.PerKg,
		City:         city,
		Source:       source,
		FetchedAt:    fetchedAt,
	}
}

// TrendPoint is one day of a historical price series. Price is per gram.
type TrendPoint struct {
	Date           Date             `json:"date"`
	Price          decimal.Decimal  `json:"price"`
	ChangeAbsolute *decimal.Decimal `json:"changeAbsolute"`
	ChangePercent  *decimal.Decimal `json:"changePercent"`
}

// TrendSeries is a list of trend points.
type TrendSeries []TrendPoint

// Normalize returns a copy of the series with one point per date (the last
// occurrence wins) sorted by ascending date.
func (s TrendSeries) Normalize() TrendSeries {
	byDate := make(map[Date]TrendPoint, len(s))
	for _, p := range s {
		byDate[p.Date] = p
	}

	out := make(TrendSeries, 0, len(byDate))
	for _, p := range byDate {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// WithoutDate returns the points whose date differs from d.
func (s TrendSeries) WithoutDate(d Date) TrendSeries {
	out := make(TrendSeries, 0, len(s))
	for _, p := range s {
		if p.Date != d {
			out = append(out, p)
		}
	}
	return out
}

// WithLive replaces any point dated day with the live quote's per-gram price
// and returns the normalized series.
func (s TrendSeries) WithLive(q PriceQuote, day Date) TrendSeries {
	out := append(s.WithoutDate(day), TrendPoint{
		Date:           day,
		Price:          q.PricePerGram,
		ChangeAbsolute: q.ChangeAbsolute,
		ChangePercent:  q.ChangePercent,
	})
	return out.Normalize()
}

// GoldRates bundles the per-carat gold quotes for a city.
// A carat whose fetch failed is absent from Carats and listed in Unavailable.
type GoldRates struct {
	City                   string                `json:"city"`
	CityResolutionFallback bool                  `json:"cityResolutionFallback"`
	Carats                 map[Carat]*PriceQuote `json:"carats"`
	Unavailable            []Carat               `json:"unavailable,omitempty"`
	Trend                  TrendSeries           `json:"trend,omitempty"`
}

// Quote returns the quote for the given carat, or nil when it is unavailable.
func (g GoldRates) Quote(c Carat) *PriceQuote {
	return g.Carats[c]
}

// MetalRates is a single quote plus an optional trend series.
type MetalRates struct {
	Quote PriceQuote  `json:"quote"`
	Trend TrendSeries `json:"trend,omitempty"`
}

// CityRates is the per-city bundle served by the aggregated Groww endpoint.
// Nil entries were not reported, or failed validation, upstream.
type CityRates struct {
	City                   string      `json:"city"`
	CityResolutionFallback bool        `json:"cityResolutionFallback"`
	Gold24                 *PriceQuote `json:"gold24k"`
	Gold22                 *PriceQuote `json:"gold22k"`
	Silver                 *PriceQuote `json:"silver"`
	Copper                 *PriceQuote `json:"copper"`
	Platinum               *PriceQuote `json:"platinum"`
	Palladium              *PriceQuote `json:"palladium"`
}
