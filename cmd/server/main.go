package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/angelone"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/api"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/citycache"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/config"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/groww"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/logging"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/model"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/moneycontrol"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/resilience"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/service"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/upstream"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/version"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	log := logging.Component(logger, "server")

	// Resilience: one breaker and retry policy per upstream
	registry := resilience.NewRegistry(cfg.Resilience.Defaults,
		resilience.WithPolicyOverrides(cfg.Resilience.Overrides),
		resilience.WithRegistryLogger(logger),
	)

	client := func(src model.Source) *upstream.Client {
		sc := cfg.Sources[src]
		return upstream.NewClient(src, upstream.Options{
			BaseURL: sc.BaseURL,
			Referer: sc.Referer,
			Timeout: sc.Timeout,
			RPS:     sc.RPS,
			Burst:   sc.Burst,
			Logger:  logger,
		})
	}
	cacheOpts := []citycache.Option{citycache.WithTTL(cfg.Cache.CityTTL)}

	// Create fetchers
	growwFetcher := groww.New(client(model.SourceGroww), registry.Executor(model.SourceGroww), groww.Options{
		QuoteTTL:     cfg.Cache.QuoteTTL,
		Logger:       logger,
		CacheOptions: cacheOpts,
	})
	angelOneFetcher := angelone.New(client(model.SourceAngelOne), registry.Executor(model.SourceAngelOne), angelone.Options{
		QuoteTTL:     cfg.Cache.QuoteTTL,
		HistoryTTL:   cfg.Cache.HistoryTTL,
		Logger:       logger,
		CacheOptions: cacheOpts,
	})
	moneyControlFetcher := moneycontrol.New(client(model.SourceMoneyControl), registry.Executor(model.SourceMoneyControl), moneycontrol.Options{
		QuoteTTL:   cfg.Cache.QuoteTTL,
		HistoryTTL: cfg.Cache.HistoryTTL,
		Logger:     logger,
		Cities:     growwFetcher.CityCache(),
	})

	// Create services
	systemService := service.NewSystemService(registry)
	priceService := service.NewPriceService(
		service.Fetchers{
			Groww:        growwFetcher,
			AngelOne:     angelOneFetcher,
			MoneyControl: moneyControlFetcher,
		},
		registry,
		service.PriceServiceOptions{
			HintTimeout:  cfg.Prices.HintTimeout,
			GoldFallback: cfg.Prices.GoldFallback,
			Logger:       logger,
		},
	)

	// Keep city lists warm
	var caches []service.Refresher
	for _, c := range append(angelOneFetcher.CityCaches(), growwFetcher.CityCache()) {
		caches = append(caches, c)
	}
	warmer := service.NewCityWarmer(caches, cfg.Cache.WarmTimeout, logger)
	if err := warmer.Start(cfg.Cache.WarmSchedule); err != nil {
		log.WithError(err).Fatal("Failed to start city warmer")
	}

	// Create router
	router := api.NewRouter(systemService, priceService, cfg, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.WithFields(logrus.Fields{
			"addr":    cfg.Server.Addr,
			"version": version.Version,
		}).Info("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("Server forced to shutdown")
	}

	select {
	case <-warmer.Stop().Done():
	case <-ctx.Done():
		log.Warn("City warm-up still running at shutdown")
	}

	log.Info("Server exited")
}
