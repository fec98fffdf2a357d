package model

// CityDescriptor maps a city to the key or symbol an upstream expects.
type CityDescriptor struct {
	CanonicalName string   `json:"name"`
	Slug          string   `json:"slug"`
	Symbol        string   `json:"symbol"`
	Aliases       []string `json:"aliases,omitempty"`
}

// CityResolution is the outcome of resolving a user supplied city string.
// Fallback is true when no match was found and the default city was used.
type CityResolution struct {
	City     CityDescriptor
	Input    string
	Fallback bool
}
