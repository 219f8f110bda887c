// Package resilience provides the tolerant-call policy shared by every
// component that touches a backend:
//   - a circuit breaker (sony/gobreaker) so a dead backend is skipped quickly
//   - conversion of any failure, panic or open circuit into ErrUnavailable
//   - structured logging of the underlying cause
//
// Callers decide what "unavailable" means for them (admit, serve stale, skip).
package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// ErrUnavailable marks a backend call that failed, timed out or was skipped
// because the circuit is open.
var ErrUnavailable = errors.New("backend unavailable")

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of CircuitState
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateHalfOpen:
		return "HALF-OPEN"
	case StateOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

func mapState(state gobreaker.State) CircuitState {
	switch state {
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	case gobreaker.StateOpen:
		return StateOpen
	default:
		return StateClosed
	}
}

// Config holds configuration for a Guard.
type Config struct {
	Name string
	// MaxFailures consecutive failures open the circuit.
	MaxFailures int
	// ResetTimeout is how long the circuit stays open before probing.
	ResetTimeout time.Duration
	// HalfOpenLimit is the number of probes allowed while half-open.
	HalfOpenLimit int
}

// Guard runs backend calls through a circuit breaker and maps every failure
// onto ErrUnavailable. A nil *Guard runs calls without a breaker.
type Guard struct {
	name   string
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger
}

// NewGuard creates a Guard. Zero config values fall back to 5 failures,
// 30s reset and a single half-open probe.
func NewGuard(cfg Config, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Name == "" {
		cfg.Name = "backend"
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenLimit <= 0 {
		cfg.HalfOpenLimit = 1
	}

	log := logger.With("component", "resilience", "breaker", cfg.Name)
	maxFailures := uint32(cfg.MaxFailures) //nolint:gosec // validated positive above

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: uint32(cfg.HalfOpenLimit), //nolint:gosec // validated positive above
		Timeout:     cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// The caller giving up is not a backend failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed",
				"from", mapState(from).String(),
				"to", mapState(to).String())
		},
	}

	return &Guard{
		name:   cfg.Name,
		cb:     gobreaker.NewCircuitBreaker(settings),
		logger: log,
	}
}

// State reports the breaker state.
func (g *Guard) State() CircuitState {
	if g == nil || g.cb == nil {
		return StateClosed
	}
	return mapState(g.cb.State())
}

// Do runs op and returns nil or an error wrapping ErrUnavailable.
func (g *Guard) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	_, err := Call(ctx, g, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Call runs fn through g and returns its value, or the zero value and an
// error wrapping ErrUnavailable. Panics inside fn are recovered.
func Call[T any](ctx context.Context, g *Guard, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	run := func() (result interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return fn(ctx)
	}

	var (
		result interface{}
		err    error
	)
	if g == nil || g.cb == nil {
		result, err = run()
	} else {
		result, err = g.cb.Execute(run)
	}

	if err != nil {
		logger := slog.Default()
		name := "backend"
		if g != nil {
			logger, name = g.logger, g.name
		}
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			logger.DebugContext(ctx, "Backend call skipped, circuit open", "op", op)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			logger.WarnContext(ctx, "Backend call abandoned", "op", op, "error", err)
		default:
			logger.ErrorContext(ctx, "Backend call failed", "op", op, "error", err)
		}
		return zero, fmt.Errorf("%s %s: %w: %w", name, op, ErrUnavailable, err)
	}

	value, ok := result.(T)
	if !ok {
		return zero, nil
	}
	return value, nil
}
