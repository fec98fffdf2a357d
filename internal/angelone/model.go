package angelone

import (
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/model"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/normalize"
)

// calculatorResponse is returned by the gold and silver calculator endpoints.
// Price is for the requested number of grams.
type calculatorResponse struct {
	Data *struct {
		Price      normalize.FlexString `json:"price"`
		Difference normalize.FlexString `json:"difference"`
		Percentage normalize.FlexString `json:"percentage"`
	} `json:"data"`
}

// historyResponse is returned by the history endpoints. Gold rates are per
// 10 grams, silver rates per kilogram.
type historyResponse struct {
	Data []historyRow `json:"data"`
}

type historyRow struct {
	Date   string               `json:"date"`
	Rate   normalize.FlexString `json:"rate"`
	Change normalize.FlexString `json:"change"`
}

// citiesResponse is returned by the gold cities and silver city list endpoints.
type citiesResponse struct {
	Data []struct {
		City   string `json:"city"`
		Symbol string `json:"symbol"`
	} `json:"data"`
}

// fallbackCities is served when a city list cannot be loaded. AngelOne uses
// the upper-case city name as its symbol.
var fallbackCities = []model.CityDescriptor{
	normalize.Describe("Mumbai", "MUMBAI"),
	normalize.Describe("Delhi", "DELHI"),
	normalize.Describe("Bangalore", "BANGALORE"),
	normalize.Describe("Chennai", "CHENNAI"),
	normalize.Describe("Kolkata", "KOLKATA"),
	normalize.Describe("Hyderabad", "HYDERABAD"),
	normalize.Describe("Pune", "PUNE"),
	normalize.Describe("Ahmedabad", "AHMEDABAD"),
	normalize.Describe("Jaipur", "JAIPUR"),
	normalize.Describe("Lucknow", "LUCKNOW"),
	normalize.Describe("Kerala", "KERALA"),
	normalize.Describe("Coimbatore", "COIMBATORE"),
}
