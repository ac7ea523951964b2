// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package breaker wraps sony/gobreaker with the Closed/Open/Half-open
// consecutive-failure policy spec §4.4 describes, plus the Prometheus
// metrics wiring and named-registry idiom the teacher used for its
// hand-rolled breaker.
package breaker

import (
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/daniell-olaitan/sensorhub/internal/metrics"
)

// ErrOpen is returned when a call is rejected because the circuit is open
// or the half-open admission cap has been reached. Call returns it in place
// of gobreaker.ErrOpenState/ErrTooManyRequests (which are not wrapped) so
// callers can errors.Is against one stable sentinel regardless of which
// gobreaker condition fired.
var ErrOpen = errors.New("breaker: circuit open")

// Config mirrors the spec's three tunables for a named circuit.
type Config struct {
	FailureThreshold int
	TimeoutSeconds   int
	HalfOpenMaxCalls int
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{FailureThreshold: 6, TimeoutSeconds: 60, HalfOpenMaxCalls: 3}
}

// Breaker guards a single named dependency.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker
}

// New builds a Breaker named name using cfg. ReadyToTrip fires once
// consecutive failures reach FailureThreshold, matching the original's
// CLOSED-state failure_count check; Timeout is the Open→Half-open cooldown;
// MaxRequests caps concurrent half-open probes, and a consecutive-success
// streak of HalfOpenMaxCalls closes the circuit (gobreaker closes
// automatically once MaxRequests successes land in half-open, which is the
// same "N consecutive successes" rule the original applies).
func New(name string, cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg = DefaultConfig()
	}

	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(cfg.HalfOpenMaxCalls),
		Timeout:     time.Duration(cfg.TimeoutSeconds) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.FailureThreshold)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SetCircuitBreakerState(name, stateName(to))
			if to == gobreaker.StateOpen {
				metrics.RecordCircuitBreakerTrip(name, "consecutive_failure_threshold")
			}
		},
	}

	b := &Breaker{name: name, cb: gobreaker.NewCircuitBreaker(st)}
	metrics.SetCircuitBreakerState(name, stateName(gobreaker.StateClosed))
	return b
}

func stateName(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Call executes fn through the breaker. A rejection (circuit open or
// half-open admission exhausted) is reported as ErrOpen; any other error
// returned by fn propagates unwrapped so callers can still inspect it.
func (b *Breaker) Call(fn func() error) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrOpen
	}
	return err
}

// State reports the breaker's current state name ("closed", "open",
// "half-open").
func (b *Breaker) State() string {
	return stateName(b.cb.State())
}

// Registry is the named-circuit lookup the original keeps at module scope
// (get_circuit_breaker). Components that need a breaker for a given
// dependency name should go through a shared Registry rather than
// constructing one ad hoc, so every caller guarding "notification_service"
// shares the same state machine.
type Registry struct {
	mu       sync.Mutex
	cfg      Config
	breakers map[string]*Breaker
}

// NewRegistry builds a Registry that lazily creates breakers with cfg.
func NewRegistry(cfg Config) *Registry {
	return &Registry{cfg: cfg, breakers: make(map[string]*Breaker)}
}

// Get returns the named breaker, creating it on first use.
func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[name]; ok {
		return b
	}
	b := New(name, r.cfg)
	r.breakers[name] = b
	return b
}
