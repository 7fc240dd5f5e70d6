package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig tunes the circuit breaker around a remote store.
type BreakerConfig struct {
	Name string
	// MaxFailures consecutive failures open the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before half-opening.
	OpenTimeout time.Duration
	// HalfOpenRequests is how many trial requests are let through when half-open.
	HalfOpenRequests uint32
}

// DefaultBreakerConfig returns the settings used by NewStore.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxFailures:      5,
		OpenTimeout:      30 * time.Second,
		HalfOpenRequests: 1,
	}
}

// BreakerStore fails fast while its backend is failing. It never retries:
// every failing call still returns its own error.
type BreakerStore struct {
	next    Store
	breaker *gobreaker.CircuitBreaker
}

// WithBreaker wraps next in a circuit breaker. onChange, when non-nil, is
// called on every state transition.
func WithBreaker(next Store, cfg BreakerConfig, logger *zap.Logger, onChange func(name string, to gobreaker.State)) *BreakerStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		// A caller that hangs up says nothing about the backend.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("vector store breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if onChange != nil {
				onChange(name, to)
			}
		},
	}
	return &BreakerStore{next: next, breaker: gobreaker.NewCircuitBreaker(settings)}
}

// Search runs through the breaker.
func (b *BreakerStore) Search(ctx context.Context, q Query) ([]Record, error) {
	out, err := b.breaker.Execute(func() (interface{}, error) {
		return b.next.Search(ctx, q)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: breaker %s: %w", ErrSearchUnavailable, b.breaker.Name(), err)
		}
		return nil, err
	}
	return out.([]Record), nil
}

// Health bypasses the breaker so health checks see the real backend state.
func (b *BreakerStore) Health(ctx context.Context) error {
	return b.next.Health(ctx)
}

// State reports the breaker state.
func (b *BreakerStore) State() gobreaker.State {
	return b.breaker.State()
}

func (b *BreakerStore) Close() error {
	return b.next.Close()
}
