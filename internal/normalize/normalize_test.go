package normalize

import (
	"encoding/json"
	"testing"

	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/model"
	"github.com/shopspring/decimal"
)

func testCities() []model.CityDescriptor {
	return []model.CityDescriptor{
		Describe("Mumbai", "MUM"),
		Describe("Delhi", "DEL"),
		Describe("Bangalore", "BLR"),
		Describe("Chennai", "CHN"),
		Describe("Navi Mumbai", "NMB"),
		Describe("Hyderabad", "HYD"),
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Navi Mumbai":        "navi-mumbai",
		"  navi_mumbai  ":    "navi-mumbai",
		"NAVI--MUMBAI":       "navi-mumbai",
		"Thiruvananthapuram": "thiruvananthapuram",
		"St. Thomas' Mount":  "st-thomas-mount",
		"":                   "",
	}
	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			got := Slugify(in)
			if got != want {
				t.Errorf("Expected %q, got %q", want, got)
			}
			if again := Slugify(got); again != got {
				t.Errorf("Slugify not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestResolver_Resolve(t *testing.T) {
	r := NewResolver(testCities(), DefaultCity)

	t.Run("case hyphen and space variants resolve to the same symbol", func(t *testing.T) {
		variants := []string{"Navi Mumbai", "navi-mumbai", "NAVI MUMBAI", "navi_mumbai", " navi  mumbai ", "navimumbai"}
		for _, v := range variants {
			res := r.Resolve(v)
			if res.Fallback {
				t.Errorf("%q: unexpected fallback", v)
			}
			if res.City.Symbol != "NMB" {
				t.Errorf("%q: expected NMB, got %q", v, res.City.Symbol)
			}
		}
	})

	t.Run("aliases resolve to canonical city", func(t *testing.T) {
		cases := map[string]string{
			"Bengaluru":    "BLR",
			"gurgaon":      "DEL",
			"Gurugram":     "DEL",
			"new delhi":    "DEL",
			"Bombay":       "MUM",
			"madras":       "CHN",
			"secunderabad": "HYD",
		}
		for in, want := range cases {
			res := r.Resolve(in)
			if res.Fallback {
				t.Errorf("%q: unexpected fallback", in)
			}
			if res.City.Symbol != want {
				t.Errorf("%q: expected %s, got %s", in, want, res.City.Symbol)
			}
		}
	})

	t.Run("minor misspelling resolves", func(t *testing.T) {
		res := r.Resolve("chenai")
		if res.Fallback || res.City.Symbol != "CHN" {
			t.Errorf("Expected CHN without fallback, got %+v", res)
		}
	})

	t.Run("unknown city falls back to Mumbai and says so", func(t *testing.T) {
		res := r.Resolve("atlantis")
		if !res.Fallback {
			t.Error("Expected fallback flag")
		}
		if res.City.Symbol != "MUM" {
			t.Errorf("Expected listed Mumbai entry as fallback, got %+v", res.City)
		}
	})

	t.Run("empty input falls back", func(t *testing.T) {
		res := r.Resolve("  ")
		if !res.Fallback {
			t.Error("Expected fallback flag for empty input")
		}
	})

	t.Run("listed city is not shadowed by alias of another", func(t *testing.T) {
		cities := append(testCities(), Describe("Thane", "THN"))
		res := NewResolver(cities, DefaultCity).Resolve("thane")
		if res.City.Symbol != "THN" {
			t.Errorf("Expected THN, got %s", res.City.Symbol)
		}
	})
}

func TestParseTrendDate(t *testing.T) {
	cases := map[string]string{
		"4 February 2026":          "2026-02-04",
		"3rd Feb, 2026":            "2026-02-03",
		"2026-02":                  "2026-02-01",
		"2026-02-04":               "2026-02-04",
		"2026-02-04T10:30:00.000Z": "2026-02-04",
		"21st January, 2026":       "2026-01-21",
		"Feb 3, 2026":              "2026-02-03",
		"04-Feb-2026":              "2026-02-04",
		"04/02/2026":               "2026-02-04",
	}
	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			got, ok := ParseTrendDate(in)
			if !ok {
				t.Fatalf("Expected %q to parse", in)
			}
			if got.String() != want {
				t.Errorf("Expected %s, got %s", want, got)
			}
		})
	}

	for _, bad := range []string{"", "yesterday", "32 Feb 2026", "2026-13"} {
		if _, ok := ParseTrendDate(bad); ok {
			t.Errorf("Expected %q to be rejected", bad)
		}
	}
}

func TestParsePositive(t *testing.T) {
	valid := map[string]string{
		"7234.50":    "7234.5",
		"₹ 7,234.50": "7234.5",
		" 92100 ":    "92100",
		"Rs. 812.35": "812.35",
		"INR 1,000":  "1000",
	}
	for in, want := range valid {
		got, ok := ParsePositive(in)
		if !ok {
			t.Errorf("Expected %q to parse", in)
			continue
		}
		if !got.Equal(decimal.RequireFromString(want)) {
			t.Errorf("%q: expected %s, got %s", in, want, got)
		}
	}

	for _, bad := range []string{"", "NaN", "Infinity", "0", "-5", "abc", "1.2.3", "7 250 .5", "72 505", "7250 ₹"} {
		if _, ok := ParsePositive(bad); ok {
			t.Errorf("Expected %q to be rejected", bad)
		}
	}
}

func TestParseChange(t *testing.T) {
	tests := []struct {
		raw  string
		want string // "" means nil
	}{
		{"-12.50", "-12.5"},
		{"+12.50", "12.5"},
		{"(+0.17%)", "0.17"},
		{"-0.17%", "-0.17"},
		{"1,250", "1250"},
		{"0", "0"},
		{"", ""},
		{"n/a", ""},
		{"+120 (0.17%)", ""},
		{"120 0.17", ""},
		{"(1) (2)", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := ParseChange(tt.raw)
			if tt.want == "" {
				if got != nil {
					t.Errorf("Expected nil, got %s", got)
				}
				return
			}
			if got == nil || !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("Expected %s, got %v", tt.want, got)
			}
		})
	}
}

func TestSplitChange(t *testing.T) {
	tests := []struct {
		raw          string
		wantAbsolute string
		wantPercent  string
	}{
		{"+120 (0.17%)", "120", "0.17"},
		{"-85.50 (-0.12%)", "-85.5", "-0.12"},
		{"+120", "120", ""},
		{"-0.12%", "", "-0.12"},
		{"(0.17%)", "", "0.17"},
		{"+120 (n/a)", "120", ""},
		{"1 2 (0.17%)", "", "0.17"},
		{"", "", ""},
	}

	check := func(t *testing.T, what string, got *decimal.Decimal, want string) {
		t.Helper()
		if want == "" {
			if got != nil {
				t.Errorf("Expected no %s, got %s", what, got)
			}
			return
		}
		if got == nil || !got.Equal(decimal.RequireFromString(want)) {
			t.Errorf("Expected %s %s, got %v", what, want, got)
		}
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			absolute, percent := SplitChange(tt.raw)
			check(t, "absolute", absolute, tt.wantAbsolute)
			check(t, "percent", percent, tt.wantPercent)
		})
	}
}

func TestFlexString(t *testing.T) {
	var payload struct {
		A FlexString `json:"a"`
		B FlexString `json:"b"`
		C FlexString `json:"c"`
		D FlexString `json:"d"`
	}
	err := json.Unmarshal([]byte(`{"a":"7234.5","b":7234.5,"c":null}`), &payload)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if payload.A != "7234.5" || payload.B != "7234.5" {
		t.Errorf("Expected both forms to decode to 7234.5, got %q and %q", payload.A, payload.B)
	}
	if payload.C != "" || payload.D != "" {
		t.Errorf("Expected null and missing to decode empty, got %q and %q", payload.C, payload.D)
	}

	if err := json.Unmarshal([]byte(`{"a":{"x":1}}`), &payload); err == nil {
		t.Error("Expected error for object value")
	}
}
