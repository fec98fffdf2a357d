package service

import (
	"errors"
	"fmt"

	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/apperrors"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/resilience"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/version"
)

// SystemService handles system-related operations
type SystemService struct {
	registry *resilience.Registry
}

// NewSystemService creates a new SystemService
func NewSystemService(registry *resilience.Registry) *SystemService {
	return &SystemService{
		registry: registry,
	}
}

// CheckHealth reports every upstream whose circuit breaker is open.
// A nil error means all sources are accepting calls.
func (s *SystemService) CheckHealth() error {
	var errs []error
	for _, snap := range s.registry.Snapshots() {
		if snap.State == resilience.StateOpen {
			errs = append(errs, fmt.Errorf("%s: %w", snap.Source, apperrors.ErrCircuitOpen))
		}
	}
	return errors.Join(errs...)
}

// Breakers returns the state of every upstream circuit breaker.
func (s *SystemService) Breakers() []resilience.BreakerSnapshot {
	return s.registry.Snapshots()
}

func (s *SystemService) CheckVersion() string {
	return version.Version
}
