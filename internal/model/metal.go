package model

import (
	"fmt"
	"strings"
)

// Metal identifies a tradable metal the service can quote.
type Metal string

const (
	Gold      Metal = "gold"
	Silver    Metal = "silver"
	Copper    Metal = "copper"
	Platinum  Metal = "platinum"
	Palladium Metal = "palladium"
)

// Metals lists every supported metal in display order.
var Metals = []Metal{Gold, Silver, Copper, Platinum, Palladium}

// ParseMetal converts a loosely formatted metal name into a Metal.
func ParseMetal(raw string) (Metal, error) {
	m := Metal(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Metals {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown metal %q", raw)
}

// Carat is the purity grade of a gold quote.
type Carat string

const (
	Carat24 Carat = "24K"
	Carat22 Carat = "22K"
	Carat18 Carat = "18K"
)

// Carats lists the gold grades fetched for a gold quote, purest first.
var Carats = []Carat{Carat24, Carat22, Carat18}

// Number returns the numeric purity used in upstream query strings ("24", "22", "18").
func (c Carat) Number() string {
	return strings.TrimSuffix(string(c), "K")
}

// Source identifies an upstream price provider.
type Source string

const (
	SourceGroww        Source = "groww"
	SourceAngelOne     Source = "angelone"
	SourceMoneyControl Source = "moneycontrol"
)

// Sources lists every upstream provider.
var Sources = []Source{SourceGroww, SourceAngelOne, SourceMoneyControl}
