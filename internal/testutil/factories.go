package testutil

// GrowwRatesBuilder provides a fluent interface for building Groww
// aggregated rates documents.
//
// Example:
//
//	doc := testutil.NewGrowwRates().
//	    WithCity("bangalore", "Bangalore", "7250.50", "6646.00").
//	    WithMetal("bangalore", "silver", "92500").
//	    WithTrending("bangalore").
//	    Build()
type GrowwRatesBuilder struct {
	cities   map[string]map[string]any
	order    []string
	trending []string
}

// NewGrowwRates creates an empty rates document builder.
func NewGrowwRates() *GrowwRatesBuilder {
	return &GrowwRatesBuilder{cities: make(map[string]map[string]any)}
}

func (b *GrowwRatesBuilder) city(slug string) map[string]any {
	c, ok := b.cities[slug]
	if !ok {
		c = map[string]any{"gold": map[string]any{}}
		b.cities[slug] = c
		b.order = append(b.order, slug)
	}
	return c
}

// WithCity adds a city with 24K and 22K per-gram gold prices. An empty price omits that carat.
func (b *GrowwRatesBuilder) WithCity(slug, name, gold24, gold22 string) *GrowwRatesBuilder {
	c := b.city(slug)
	c["cityName"] = name
	gold := c["gold"].(map[string]any)
	if gold24 != "" {
		gold["24k"] = map[string]any{"price": gold24}
	}
	if gold22 != "" {
		gold["22k"] = map[string]any{"price": gold22}
	}
	return b
}

// WithGoldChange sets the 24K change fields of a city. Empty values are omitted.
func (b *GrowwRatesBuilder) WithGoldChange(slug, change, changePercent string) *GrowwRatesBuilder {
	gold := b.city(slug)["gold"].(map[string]any)
	block, ok := gold["24k"].(map[string]any)
	if !ok {
		block = map[string]any{}
		gold["24k"] = block
	}
	if change != "" {
		block["change"] = change
	}
	if changePercent != "" {
		block["changePercent"] = changePercent
	}
	return b
}

// WithMetal sets a non-gold metal price for a city. Silver and copper are
// per kilogram, platinum and palladium per gram.
func (b *GrowwRatesBuilder) WithMetal(slug, metal string, price any) *GrowwRatesBuilder {
	b.city(slug)[metal] = map[string]any{"price": price}
	return b
}

// WithTrending sets the trending city slugs.
func (b *GrowwRatesBuilder) WithTrending(slugs ...string) *GrowwRatesBuilder {
	b.trending = slugs
	return b
}

// Build returns the document ready to be JSON encoded.
func (b *GrowwRatesBuilder) Build() map[string]any {
	doc := make(map[string]any, len(b.cities)+1)
	for _, slug := range b.order {
		doc[slug] = b.cities[slug]
	}
	if b.trending != nil {
		doc["trendingCities"] = b.trending
	}
	return doc
}

// AngelOneCalculator builds a calculator response. Empty change values are omitted.
func AngelOneCalculator(price, difference, percentage string) map[string]any {
	data := map[string]any{"price": price}
	if difference != "" {
		data["difference"] = difference
	}
	if percentage != "" {
		data["percentage"] = percentage
	}
	return map[string]any{"data": data}
}

// HistoryRow is one row of an AngelOne history response.
type HistoryRow struct {
	Date   string
	Rate   string
	Change string
}

// AngelOneHistory builds a history response from rows, in the given order.
func AngelOneHistory(rows ...HistoryRow) map[string]any {
	data := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		data = append(data, map[string]any{"date": r.Date, "rate": r.Rate, "change": r.Change})
	}
	return map[string]any{"data": data}
}

// AngelOneCities builds a city list response from name, symbol pairs.
func AngelOneCities(nameSymbolPairs ...string) map[string]any {
	data := make([]map[string]any, 0, len(nameSymbolPairs)/2)
	for i := 0; i+1 < len(nameSymbolPairs); i += 2 {
		data = append(data, map[string]any{"city": nameSymbolPairs[i], "symbol": nameSymbolPairs[i+1]})
	}
	return map[string]any{"data": data}
}

// MoneyControlFutures builds a futures quote response.
func MoneyControlFutures(lastPrice, change, changePercent string) map[string]any {
	return map[string]any{"data": map[string]any{
		"lastPrice":     lastPrice,
		"change":        change,
		"changePercent": changePercent,
	}}
}

// MoneyControlHistory builds a date-keyed historical response.
func MoneyControlHistory(prices map[string]string) map[string]any {
	return map[string]any{"data": prices}
}
