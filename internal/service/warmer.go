package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/logging"
)

// DefaultWarmSchedule refreshes city lists as often as they expire.
const DefaultWarmSchedule = "@every 1h"

// Refresher is a cache that can be reloaded on demand.
type Refresher interface {
	Name() string
	Refresh(ctx context.Context) error
}

// CityWarmer reloads every city list cache on a cron schedule, so request
// paths rarely pay for a list fetch.
type CityWarmer struct {
	caches  []Refresher
	timeout time.Duration
	cron    *cron.Cron
	log     *logrus.Entry
}

// NewCityWarmer creates a warmer for caches. Each warm run is bounded by timeout.
func NewCityWarmer(caches []Refresher, timeout time.Duration, logger logrus.FieldLogger) *CityWarmer {
	log := logging.Component(logger, "city_warmer")
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cronLog := cron.PrintfLogger(log)
	return &CityWarmer{
		caches:  caches,
		timeout: timeout,
		cron:    cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.SkipIfStillRunning(cronLog))),
		log:     log,
	}
}

// WarmAll refreshes every cache concurrently and returns the joined failures.
// A failed refresh leaves that cache serving its previous list.
func (w *CityWarmer) WarmAll(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	errs := make([]error, len(w.caches))
	var g errgroup.Group
	for i, c := range w.caches {
		g.Go(func() error {
			if err := c.Refresh(ctx); err != nil {
				errs[i] = fmt.Errorf("%s: %w", c.Name(), err)
			}
			return nil
		})
	}
	//nolint:errcheck // goroutines record failures in errs
	g.Wait()

	err := errors.Join(errs...)
	if err != nil {
		w.log.WithError(err).Warn("city warm-up incomplete")
	} else {
		w.log.WithField("caches", len(w.caches)).Info("city lists warmed")
	}
	return err
}

// Start warms all caches once in the background and then on schedule.
func (w *CityWarmer) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultWarmSchedule
	}
	if _, err := w.cron.AddFunc(schedule, w.run); err != nil {
		return fmt.Errorf("invalid warm schedule %q: %w", schedule, err)
	}
	go w.run()
	w.cron.Start()
	return nil
}

// Stop halts the schedule. The returned context is done once a running warm-up has finished.
func (w *CityWarmer) Stop() context.Context {
	return w.cron.Stop()
}

func (w *CityWarmer) run() {
	//nolint:errcheck // logged by WarmAll
	w.WarmAll(context.Background())
}
