package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/angelone"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/apperrors"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/groww"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/model"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/moneycontrol"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/resilience"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/testutil"
)

func newTestPriceService(t *testing.T, fake *testutil.FakeUpstream, opts PriceServiceOptions) (*PriceService, *resilience.Registry) {
	t.Helper()
	reg := testutil.NewTestRegistry(t)

	g := groww.New(fake.Client(model.SourceGroww), reg.Executor(model.SourceGroww), groww.Options{})
	a := angelone.New(fake.Client(model.SourceAngelOne), reg.Executor(model.SourceAngelOne), angelone.Options{})
	mc := moneycontrol.New(fake.Client(model.SourceMoneyControl), reg.Executor(model.SourceMoneyControl),
		moneycontrol.Options{Cities: g.CityCache()})

	return NewPriceService(Fetchers{Groww: g, AngelOne: a, MoneyControl: mc}, reg, opts), reg
}

func TestPriceService_Gold(t *testing.T) {
	t.Run("reads every carat from angelone", func(t *testing.T) {
		fake := testutil.NewPriceUpstreams(t)
		svc, _ := newTestPriceService(t, fake, PriceServiceOptions{GoldFallback: true})

		rates, err := svc.Gold(context.Background(), "  bengaluru ", false)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(rates.Carats) != 3 || len(rates.Unavailable) != 0 {
			t.Errorf("Expected 3 carats, got %d (unavailable %v)", len(rates.Carats), rates.Unavailable)
		}
		if q := rates.Quote(model.Carat24); q == nil || q.Source != model.SourceAngelOne {
			t.Errorf("Expected an angelone 24K quote, got %+v", q)
		}
		if fake.Hits(testutil.GrowwRatesPath) != 0 {
			t.Error("Expected groww not to be called")
		}
	})

	t.Run("falls back to groww when angelone is down", func(t *testing.T) {
		fake := testutil.NewPriceUpstreams(t).HandleStatus(testutil.GoldCalculatorPath, http.StatusBadGateway)
		svc, _ := newTestPriceService(t, fake, PriceServiceOptions{GoldFallback: true})

		rates, err := svc.Gold(context.Background(), "Bangalore", false)
		if err != nil {
			t.Fatalf("Expected the groww fallback, got %v", err)
		}
		q := rates.Quote(model.Carat24)
		if q == nil || q.Source != model.SourceGroww {
			t.Fatalf("Expected a groww 24K quote, got %+v", q)
		}
		if !q.PricePerGram.Equal(decimal.RequireFromString("7250.5")) {
			t.Errorf("Expected 7250.5 per gram, got %s", q.PricePerGram)
		}
		if len(rates.Unavailable) != 1 || rates.Unavailable[0] != model.Carat18 {
			t.Errorf("Expected only 18K unavailable, got %v", rates.Unavailable)
		}
	})

	t.Run("without fallback the angelone error is returned", func(t *testing.T) {
		fake := testutil.NewPriceUpstreams(t).HandleStatus(testutil.GoldCalculatorPath, http.StatusBadGateway)
		svc, _ := newTestPriceService(t, fake, PriceServiceOptions{})

		_, err := svc.Gold(context.Background(), "Bangalore", false)
		if err == nil {
			t.Fatal("Expected an error")
		}
		var fe *apperrors.FetchError
		if !errors.As(err, &fe) || fe.Source != model.SourceAngelOne {
			t.Errorf("Expected an angelone FetchError, got %v", err)
		}
		if fake.Hits(testutil.GrowwRatesPath) != 0 {
			t.Error("Expected groww not to be called")
		}
	})

	t.Run("empty city is rejected before any upstream call", func(t *testing.T) {
		fake := testutil.NewPriceUpstreams(t)
		svc, _ := newTestPriceService(t, fake, PriceServiceOptions{})

		_, err := svc.Gold(context.Background(), "   ", false)
		if !errors.Is(err, apperrors.ErrInvalidCity) {
			t.Errorf("Expected ErrInvalidCity, got %v", err)
		}
		if fake.TotalHits() != 0 {
			t.Errorf("Expected no upstream calls, got %d", fake.TotalHits())
		}
	})
}

func TestPriceService_Prices(t *testing.T) {
	fake := testutil.NewPriceUpstreams(t)
	svc, _ := newTestPriceService(t, fake, PriceServiceOptions{})
	ctx := context.Background()

	tests := []struct {
		metal  model.Metal
		source model.Source
		perKg  string
	}{
		{model.Silver, model.SourceAngelOne, "95000"},
		{model.Copper, model.SourceMoneyControl, "845.5"},
		{model.Platinum, model.SourceGroww, "3100000"},
		{model.Palladium, model.SourceGroww, "2900000"},
	}

	for _, tt := range tests {
		t.Run(string(tt.metal), func(t *testing.T) {
			v, err := svc.Prices(ctx, tt.metal, "Mumbai", false)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			rates, ok := v.(model.MetalRates)
			if !ok {
				t.Fatalf("Expected MetalRates, got %T", v)
			}
			if rates.Quote.Source != tt.source {
				t.Errorf("Expected source %s, got %s", tt.source, rates.Quote.Source)
			}
			if !rates.Quote.PricePerKg.Equal(decimal.RequireFromString(tt.perKg)) {
				t.Errorf("Expected %s per kg, got %s", tt.perKg, rates.Quote.PricePerKg)
			}
			if rates.Quote.City != "Mumbai" {
				t.Errorf("Expected Mumbai, got %s", rates.Quote.City)
			}
		})
	}

	t.Run("gold returns per-carat rates", func(t *testing.T) {
		v, err := svc.Prices(ctx, model.Gold, "Mumbai", false)
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := v.(model.GoldRates); !ok {
			t.Errorf("Expected GoldRates, got %T", v)
		}
	})

	t.Run("unsupported metal", func(t *testing.T) {
		_, err := svc.Prices(ctx, model.Metal("rhodium"), "Mumbai", false)
		if !errors.Is(err, apperrors.ErrUnsupportedMetal) {
			t.Errorf("Expected ErrUnsupportedMetal, got %v", err)
		}
	})

	t.Run("missing metal in groww document", func(t *testing.T) {
		_, err := svc.Platinum(ctx, "Bangalore")
		if !errors.Is(err, apperrors.ErrNoPriceData) {
			t.Errorf("Expected ErrNoPriceData, got %v", err)
		}
	})
}

func TestPriceService_Trend(t *testing.T) {
	fake := testutil.NewPriceUpstreams(t)
	svc, _ := newTestPriceService(t, fake, PriceServiceOptions{})
	ctx := context.Background()

	tests := []struct {
		metal      model.Metal
		wantDates  []string
		firstPrice string
	}{
		{model.Gold, []string{"2026-01-30"}, "7150"},
		{model.Silver, []string{"2026-01-30", "2026-02-02"}, "93.5"},
		{model.Copper, []string{"2026-01-30", "2026-02-02"}, "0.84"},
	}

	for _, tt := range tests {
		t.Run(string(tt.metal), func(t *testing.T) {
			trend, err := svc.Trend(ctx, tt.metal, "mumbai")
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if trend.Metal != tt.metal {
				t.Errorf("Expected metal %s, got %s", tt.metal, trend.Metal)
			}
			if len(trend.Points) != len(tt.wantDates) {
				t.Fatalf("Expected %d points, got %v", len(tt.wantDates), trend.Points)
			}
			for i, d := range tt.wantDates {
				if trend.Points[i].Date.String() != d {
					t.Errorf("point %d: expected %s, got %s", i, d, trend.Points[i].Date)
				}
			}
			if !trend.Points[0].Price.Equal(decimal.RequireFromString(tt.firstPrice)) {
				t.Errorf("Expected %s per gram, got %s", tt.firstPrice, trend.Points[0].Price)
			}
		})
	}

	t.Run("combined silver change is split", func(t *testing.T) {
		trend, err := svc.Trend(ctx, model.Silver, "mumbai")
		if err != nil {
			t.Fatal(err)
		}
		last := trend.Points[1]
		if last.ChangeAbsolute == nil || !last.ChangeAbsolute.Equal(decimal.RequireFromString("0.5")) {
			t.Errorf("Expected 0.5 per gram, got %v", last.ChangeAbsolute)
		}
		if last.ChangePercent == nil || !last.ChangePercent.Equal(decimal.RequireFromString("0.53")) {
			t.Errorf("Expected 0.53%%, got %v", last.ChangePercent)
		}
	})

	t.Run("platinum has no history", func(t *testing.T) {
		if _, err := svc.Trend(ctx, model.Platinum, "mumbai"); !errors.Is(err, apperrors.ErrNoPriceData) {
			t.Errorf("Expected ErrNoPriceData, got %v", err)
		}
	})

	t.Run("unsupported metal", func(t *testing.T) {
		if _, err := svc.Trend(ctx, model.Metal("tin"), "mumbai"); !errors.Is(err, apperrors.ErrUnsupportedMetal) {
			t.Errorf("Expected ErrUnsupportedMetal, got %v", err)
		}
	})

	t.Run("blank city", func(t *testing.T) {
		if _, err := svc.Trend(ctx, model.Gold, " "); !errors.Is(err, apperrors.ErrInvalidCity) {
			t.Errorf("Expected ErrInvalidCity, got %v", err)
		}
	})
}

func TestPriceService_Cities(t *testing.T) {
	fake := testutil.NewPriceUpstreams(t)
	svc, _ := newTestPriceService(t, fake, PriceServiceOptions{})
	ctx := context.Background()

	t.Run("gold and silver use their own lists", func(t *testing.T) {
		gold, err := svc.Cities(ctx, model.Gold)
		if err != nil {
			t.Fatal(err)
		}
		silver, err := svc.Cities(ctx, model.Silver)
		if err != nil {
			t.Fatal(err)
		}
		if len(gold) != 2 || gold[1].Symbol != "BANGALORE" {
			t.Errorf("Expected the gold list, got %+v", gold)
		}
		if len(silver) != 2 || silver[1].Symbol != "HYDERABAD" {
			t.Errorf("Expected the silver list, got %+v", silver)
		}
	})

	t.Run("other metals use the groww list", func(t *testing.T) {
		cities, err := svc.Cities(ctx, model.Copper)
		if err != nil {
			t.Fatal(err)
		}
		if len(cities) != 2 {
			t.Errorf("Expected 2 groww cities, got %+v", cities)
		}
	})

	t.Run("unsupported metal", func(t *testing.T) {
		if _, err := svc.Cities(ctx, model.Metal("tin")); !errors.Is(err, apperrors.ErrUnsupportedMetal) {
			t.Errorf("Expected ErrUnsupportedMetal, got %v", err)
		}
	})

	t.Run("trending keeps upstream order", func(t *testing.T) {
		trending, err := svc.TrendingCities(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(trending) != 2 || trending[0].CanonicalName != "Bangalore" {
			t.Errorf("Expected [Bangalore Mumbai], got %+v", trending)
		}
	})
}

func TestPriceService_PriceHint(t *testing.T) {
	t.Run("gold hint is the 24K price per 10g", func(t *testing.T) {
		fake := testutil.NewPriceUpstreams(t)
		svc, _ := newTestPriceService(t, fake, PriceServiceOptions{})

		hint, err := svc.PriceHint(context.Background(), model.Gold, "Mumbai")
		if err != nil {
			t.Fatal(err)
		}
		if !hint.Available || hint.Price == nil {
			t.Fatalf("Expected an available hint, got %+v", hint)
		}
		if !hint.Price.Equal(decimal.RequireFromString("72505")) || hint.Unit != "10g" {
			t.Errorf("Expected 72505 per 10g, got %s per %s", hint.Price, hint.Unit)
		}
	})

	t.Run("slow upstream yields an unavailable hint in time", func(t *testing.T) {
		fake := testutil.NewPriceUpstreams(t)
		fake.Handle(testutil.GrowwRatesPath, func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		})
		svc, _ := newTestPriceService(t, fake, PriceServiceOptions{HintTimeout: 20 * time.Millisecond})

		start := time.Now()
		hint, err := svc.PriceHint(context.Background(), model.Platinum, "Mumbai")
		elapsed := time.Since(start)

		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if hint.Available || hint.Price != nil {
			t.Errorf("Expected an unavailable hint, got %+v", hint)
		}
		if elapsed > 200*time.Millisecond {
			t.Errorf("Expected the hint to return near its timeout, took %s", elapsed)
		}
	})

	t.Run("unsupported metal is an error", func(t *testing.T) {
		fake := testutil.NewPriceUpstreams(t)
		svc, _ := newTestPriceService(t, fake, PriceServiceOptions{})

		if _, err := svc.PriceHint(context.Background(), model.Metal("zinc"), "Mumbai"); !errors.Is(err, apperrors.ErrUnsupportedMetal) {
			t.Errorf("Expected ErrUnsupportedMetal, got %v", err)
		}
	})
}

func TestPriceService_Breakers(t *testing.T) {
	fake := testutil.NewPriceUpstreams(t).HandleStatus(testutil.CopperFuturesPath, http.StatusInternalServerError)
	svc, reg := newTestPriceService(t, fake, PriceServiceOptions{})

	//nolint:errcheck // driving the breaker open
	svc.Copper(context.Background(), "Mumbai", false)
	//nolint:errcheck // second call finds the breaker open
	svc.Copper(context.Background(), "Mumbai", false)

	snaps := svc.Breakers()
	if len(snaps) != len(model.Sources) {
		t.Fatalf("Expected %d breakers, got %d", len(model.Sources), len(snaps))
	}
	if reg.Executor(model.SourceMoneyControl).Breaker().State() != resilience.StateOpen {
		t.Error("Expected the moneycontrol breaker to be open")
	}

	if err := NewSystemService(reg).CheckHealth(); !errors.Is(err, apperrors.ErrCircuitOpen) {
		t.Errorf("Expected health to report the open circuit, got %v", err)
	}
}
