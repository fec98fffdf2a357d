package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// FlexString holds a JSON scalar that upstreams send either as a string or a
// bare number. null and absent both decode to the empty string.
type FlexString string

// UnmarshalJSON accepts a JSON string, number or null.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }

// currencyPrefixes are stripped from the front of a price, longest first.
var currencyPrefixes = []string{"₹", "Rs.", "Rs", "INR"}

// cleanNumber strips a leading currency marker and thousands separators.
// Whitespace left inside the value means two tokens, and "" is returned.
func cleanNumber(raw string) string {
	s := strings.TrimSpace(raw)
	for _, p := range currencyPrefixes {
		if strings.HasPrefix(s, p) {
			s = strings.TrimSpace(strings.TrimPrefix(s, p))
			break
		}
	}
	if strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return ""
	}
	return strings.ReplaceAll(s, ",", "")
}

// ParsePositive parses an upstream price string. A currency prefix and
// thousands separators are ignored. The boolean is false when the value
// is empty, unparseable, split by whitespace, or not strictly positive.
func ParsePositive(raw string) (decimal.Decimal, bool) {
	cleaned := cleanNumber(raw)
	if cleaned == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}

// ParseChange parses a single absolute or percentage change such as
// "+12.50", "-0.17%" or "(0.17%)". It returns nil when the value is absent
// or invalid, including strings that carry two values; a missing change is
// never synthesized.
func ParseChange(raw string) *decimal.Decimal {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	s = strings.TrimPrefix(s, "+")

	cleaned := cleanNumber(s)
	if cleaned == "" || strings.ContainsAny(cleaned, "+()%") {
		return nil
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return nil
	}
	return &d
}

// SplitChange reads a change field that may hold an absolute value, a
// percentage, or both as "abs (pct%)". Each part is nil when absent or invalid.
func SplitChange(raw string) (absolute, percent *decimal.Decimal) {
	s := strings.TrimSpace(raw)
	if open := strings.Index(s, "("); open > 0 && strings.HasSuffix(s, ")") {
		head, tail := s[:open], s[open+1:len(s)-1]
		if !strings.Contains(head, "%") {
			absolute = ParseChange(head)
		}
		if strings.HasSuffix(strings.TrimSpace(tail), "%") {
			percent = ParseChange(tail)
		}
		return absolute, percent
	}
	if strings.Contains(s, "%") {
		return nil, ParseChange(s)
	}
	return ParseChange(s), nil
}
