package handlers

import (
	"testing"

	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/angelone"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/groww"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/model"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/moneycontrol"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/resilience"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/service"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/testutil"
)

// newTestServices wires the real services against fake upstreams.
func newTestServices(t *testing.T, fake *testutil.FakeUpstream) (*service.PriceService, *service.SystemService, *resilience.Registry) {
	t.Helper()
	reg := testutil.NewTestRegistry(t)

	g := groww.New(fake.Client(model.SourceGroww), reg.Executor(model.SourceGroww), groww.Options{})
	a := angelone.New(fake.Client(model.SourceAngelOne), reg.Executor(model.SourceAngelOne), angelone.Options{})
	mc := moneycontrol.New(fake.Client(model.SourceMoneyControl), reg.Executor(model.SourceMoneyControl),
		moneycontrol.Options{Cities: g.CityCache()})

	prices := service.NewPriceService(service.Fetchers{Groww: g, AngelOne: a, MoneyControl: mc}, reg, service.PriceServiceOptions{})
	return prices, service.NewSystemService(reg), reg
}
