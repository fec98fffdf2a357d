// Package units derives every quoted weight unit from a single authoritative
// per-gram price, so no two units of a quote can drift apart.
package units

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Unit is a weight an upstream may quote a price for.
type Unit int

const (
	Gram Unit = iota
	TenGram
	Kilogram
)

var (
	ten      = decimal.NewFromInt(10)
	thousand = decimal.NewFromInt(1000)
)

// Grams returns how many grams the unit weighs.
func (u Unit) Grams() decimal.Decimal {
	switch u {
	case TenGram:
		return ten
	case Kilogram:
		return thousand
	default:
		return decimal.NewFromInt(1)
	}
}

func (u Unit) String() string {
	switch u {
	case TenGram:
		return "10g"
	case Kilogram:
		return "1kg"
	default:
		return "1g"
	}
}

// Derived holds a per-gram price and the units computed from it.
type Derived struct {
	PerGram decimal.Decimal
	Per10g  decimal.Decimal
	PerKg   decimal.Decimal
}

// Derive computes the 10g and 1kg prices from a per-gram price.
func Derive(perGram decimal.Decimal) Derived {
	return Derived{
		PerGram: perGram,
		Per10g:  perGram.Mul(ten),
		PerKg:   perGram.Mul(thousand),
	}
}

// ToPerGram converts a price quoted for unit into a per-gram price.
func ToPerGram(price decimal.Decimal, unit Unit) decimal.Decimal {
	if unit == Gram {
		return price
	}
	return price.Div(unit.Grams())
}

// PerGramFromWeight converts a price quoted for an arbitrary number of grams
// (as returned by calculator style endpoints) into a per-gram price.
func PerGramFromWeight(price decimal.Decimal, grams int64) (decimal.Decimal, error) {
	if grams <= 0 {
		return decimal.Zero, fmt.Errorf("invalid weight %d grams", grams)
	}
	if grams == 1 {
		return price, nil
	}
	return price.Div(decimal.NewFromInt(grams)), nil
}
