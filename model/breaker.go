package model

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/hupe1980/taskmesh/logging"
)

// Default circuit breaker settings.
const (
	defaultBreakerMaxFailures uint32        = 5
	defaultBreakerTimeout     time.Duration = 30 * time.Second
	defaultBreakerInterval    time.Duration = 60 * time.Second
)

// BreakerOptions configures a BreakerModel.
type BreakerOptions struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before allowing a trial request.
	Timeout time.Duration
	// Interval clears failure counts periodically while closed.
	Interval time.Duration
	// Logger receives state changes. Defaults to a no-op logger.
	Logger logging.Logger
}

// BreakerModel guards a Model with a circuit breaker. Once the wrapped model
// fails repeatedly, calls fail fast until the open timeout has elapsed.
//
// Responses are buffered until the wrapped call finishes, so streaming
// requests are delivered in one burst.
type BreakerModel struct {
	inner   Model
	breaker *gobreaker.CircuitBreaker[[]Response]
}

// NewBreakerModel wraps inner with a circuit breaker.
func NewBreakerModel(inner Model, optFns ...func(o *BreakerOptions)) *BreakerModel {
	opts := BreakerOptions{
		MaxFailures: defaultBreakerMaxFailures,
		Timeout:     defaultBreakerTimeout,
		Interval:    defaultBreakerInterval,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxFailures == 0 {
		opts.MaxFailures = defaultBreakerMaxFailures
	}
	logger := logging.Scoped(opts.Logger, "model")

	cb := gobreaker.NewCircuitBreaker[[]Response](gobreaker.Settings{
		Name:        "model:" + inner.Info().Provider,
		MaxRequests: 1,
		Interval:    opts.Interval,
		Timeout:     opts.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &BreakerModel{inner: inner, breaker: cb}
}

// Generate implements Model. Calls are routed through the circuit breaker.
func (b *BreakerModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	out := make(chan Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		resps, err := b.breaker.Execute(func() ([]Response, error) {
			return drain(ctx, b.inner, req)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				err = fmt.Errorf("model %q circuit open: %w", b.inner.Info().Name, err)
			}
			errCh <- err
			return
		}
		for _, r := range resps {
			select {
			case out <- r:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, errCh
}

// Info implements Model.
func (b *BreakerModel) Info() Info { return b.inner.Info() }

// State returns the current breaker state.
func (b *BreakerModel) State() gobreaker.State { return b.breaker.State() }

// drain runs one Generate call to completion.
func drain(ctx context.Context, m Model, req Request) ([]Response, error) {
	respCh, errCh := m.Generate(ctx, req)

	var resps []Response
	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			resps = append(resps, r)
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return nil, err
			}
		}
	}
	return resps, nil
}

var _ Model = (*BreakerModel)(nil)
