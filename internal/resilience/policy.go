package resilience

import "time"

// Policy tunes the breaker and retry behaviour for one upstream source.
type Policy struct {
	FailureThreshold          int           `yaml:"failure_threshold"`
	ResetTimeout              time.Duration `yaml:"reset_timeout"`
	RequiredHalfOpenSuccesses int           `yaml:"required_half_open_successes"`

	MaxRetries   int           `yaml:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Multiplier   float64       `yaml:"multiplier"`
}

// DefaultPolicy returns the breaker and retry defaults.
func DefaultPolicy() Policy {
	return Policy{
		FailureThreshold:          5,
		ResetTimeout:              60 * time.Second,
		RequiredHalfOpenSuccesses: 2,
		MaxRetries:                3,
		InitialDelay:              time.Second,
		MaxDelay:                  10 * time.Second,
		Multiplier:                2,
	}
}

// Merge returns p with every zero field taken from base.
// MaxRetries is only overridden when positive; use a negative value in p to disable retries.
func (p Policy) Merge(base Policy) Policy {
	out := base
	if p.FailureThreshold > 0 {
		out.FailureThreshold = p.FailureThreshold
	}
	if p.ResetTimeout > 0 {
		out.ResetTimeout = p.ResetTimeout
	}
	if p.RequiredHalfOpenSuccesses > 0 {
		out.RequiredHalfOpenSuccesses = p.RequiredHalfOpenSuccesses
	}
	if p.MaxRetries > 0 {
		out.MaxRetries = p.MaxRetries
	} else if p.MaxRetries < 0 {
		out.MaxRetries = 0
	}
	if p.InitialDelay > 0 {
		out.InitialDelay = p.InitialDelay
	}
	if p.MaxDelay > 0 {
		out.MaxDelay = p.MaxDelay
	}
	if p.Multiplier > 0 {
		out.Multiplier = p.Multiplier
	}
	return out
}
