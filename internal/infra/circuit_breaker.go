package infra

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// ── Circuit Breaker ───────────────────────────────────────────────────────────
// Thin wrapper over sony/gobreaker shared by the fiscal sidecar client and the
// two enrichment clients. State changes are logged and exported as metrics.

// ErrCircuitOpen is returned when the breaker rejects a call without running it.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig holds tunable parameters.
type CircuitBreakerConfig struct {
	FailureThreshold uint32        // consecutive failures to trip open (default: 5)
	HalfOpenRequests uint32        // trial requests allowed while half-open (default: 2)
	OpenTimeout      time.Duration // how long to stay open before probing (default: 60s)
	Interval         time.Duration // closed-state count reset period (0 = never)

	// Ignore reports errors that must not count as failures, such as a lookup
	// answering "not found".
	Ignore func(error) bool
}

func DefaultCBConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		HalfOpenRequests: 2,
		OpenTimeout:      60 * time.Second,
	}
}

type CircuitBreaker struct {
	cb     *gobreaker.CircuitBreaker
	name   string
	ignore func(error) bool
}

// NewCircuitBreaker creates a breaker in the closed state. m may be nil.
func NewCircuitBreaker(name string, cfg CircuitBreakerConfig, m *Metrics) *CircuitBreaker {
	def := DefaultCBConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = def.HalfOpenRequests
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker: state changed")
			if m != nil {
				m.BreakerState.WithLabelValues(name).Set(stateValue(to))
				if to == gobreaker.StateOpen {
					m.BreakerTrips.WithLabelValues(name).Inc()
				}
			}
		},
	}
	if m != nil {
		m.BreakerState.WithLabelValues(name).Set(0)
	}

	return &CircuitBreaker{cb: gobreaker.NewCircuitBreaker(settings), name: name, ignore: cfg.Ignore}
}

// Execute runs fn through the breaker.
// Returns ErrCircuitOpen immediately if the breaker is open.
func (c *CircuitBreaker) Execute(fn func() error) error {
	_, err := Run(c, func() (struct{}, error) { return struct{}{}, fn() })
	return err
}

// Run is Execute for functions that produce a value.
func Run[T any](c *CircuitBreaker, fn func() (T, error)) (T, error) {
	var (
		out     T
		ignored error
	)
	_, err := c.cb.Execute(func() (interface{}, error) {
		v, err := fn()
		if err != nil && c.ignore != nil && c.ignore(err) {
			ignored = err
			return nil, nil
		}
		out = v
		return nil, err
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return out, fmt.Errorf("%s: %w", c.name, ErrCircuitOpen)
	case err != nil:
		return out, err
	case ignored != nil:
		return out, ignored
	}
	return out, nil
}

// State returns "closed", "half-open" or "open".
func (c *CircuitBreaker) State() string { return c.cb.State().String() }

func (c *CircuitBreaker) Open() bool { return c.cb.State() == gobreaker.StateOpen }

func (c *CircuitBreaker) Name() string { return c.name }

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
