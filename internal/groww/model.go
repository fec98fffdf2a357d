package groww

import (
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/model"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/normalize"
)

// trendingKey is the document key that holds the trending city list rather than a city.
const trendingKey = "trendingCities"

// priceField is one metal's price block in the aggregated rates document.
type priceField struct {
	Price         normalize.FlexString `json:"price"`
	Change        normalize.FlexString `json:"change"`
	ChangePercent normalize.FlexString `json:"changePercent"`
}

// cityEntry is the raw per-city value of the aggregated rates document.
// Gold prices are per gram, silver and copper per kilogram, platinum and
// palladium per gram.
type cityEntry struct {
	CityName string `json:"cityName"`
	Gold     struct {
		K24 *priceField `json:"24k"`
		K22 *priceField `json:"22k"`
	} `json:"gold"`
	Silver    *priceField `json:"silver"`
	Copper    *priceField `json:"copper"`
	Platinum  *priceField `json:"platinum"`
	Palladium *priceField `json:"palladium"`
}

// document is the validated aggregated rates response.
type document struct {
	// cities is keyed by the upstream's city slug.
	cities   map[string]cityEntry
	trending []string
}

// fallbackCities is served when the rates document cannot be loaded.
var fallbackCities = []model.CityDescriptor{
	normalize.Describe("Mumbai", "mumbai"),
	normalize.Describe("Delhi", "delhi"),
	normalize.Describe("Bangalore", "bangalore"),
	normalize.Describe("Chennai", "chennai"),
	normalize.Describe("Kolkata", "kolkata"),
	normalize.Describe("Hyderabad", "hyderabad"),
	normalize.Describe("Pune", "pune"),
	normalize.Describe("Ahmedabad", "ahmedabad"),
	normalize.Describe("Jaipur", "jaipur"),
	normalize.Describe("Lucknow", "lucknow"),
}
