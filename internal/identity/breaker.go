package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32 = 5
	defaultCBTimeout            = 30 * time.Second
	defaultCBInterval           = 60 * time.Second
)

// BreakerConfig configures BreakerProvider.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before probing again.
	Timeout time.Duration
	// Interval clears failure counts while the circuit is closed.
	Interval time.Duration
}

// BreakerProvider fails fast once the wrapped provider keeps failing.
// Token and credential verdicts count as successes; only availability
// failures trip the circuit.
type BreakerProvider struct {
	inner   Provider
	breaker *gobreaker.CircuitBreaker[any]
	logger  *slog.Logger
}

// NewBreakerProvider wraps inner with a circuit breaker.
func NewBreakerProvider(inner Provider, cfg BreakerConfig, logger *slog.Logger) *BreakerProvider {
	if logger == nil {
		logger = slog.Default()
	}
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "identity",
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsUpstream(err)
		},
	})
	return &BreakerProvider{inner: inner, breaker: cb, logger: logger}
}

// GetUser implements Provider.
func (p *BreakerProvider) GetUser(ctx context.Context, accessToken string) (*User, error) {
	out, err := p.breaker.Execute(func() (any, error) {
		return p.inner.GetUser(ctx, accessToken)
	})
	if err != nil {
		return nil, p.wrap(err)
	}
	return out.(*User), nil
}

// SignOut implements Provider.
func (p *BreakerProvider) SignOut(ctx context.Context, accessToken string) error {
	_, err := p.breaker.Execute(func() (any, error) {
		return nil, p.inner.SignOut(ctx, accessToken)
	})
	return p.wrap(err)
}

// SignInWithPassword implements Provider.
func (p *BreakerProvider) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	out, err := p.breaker.Execute(func() (any, error) {
		return p.inner.SignInWithPassword(ctx, email, password)
	})
	if err != nil {
		return nil, p.wrap(err)
	}
	return out.(*Session), nil
}

// State returns the breaker state for monitoring.
func (p *BreakerProvider) State() gobreaker.State {
	return p.breaker.State()
}

func (p *BreakerProvider) wrap(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: circuit open: %v", ErrUnavailable, err)
	}
	return err
}

var _ Provider = (*BreakerProvider)(nil)
