package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/aristath/planner/internal/backend"
	"github.com/aristath/planner/internal/logging"
)

// RetryConfig configures exponential backoff retry behavior.
type RetryConfig struct {
	InitialInterval     time.Duration // Initial retry interval (default 100ms)
	MaxInterval         time.Duration // Maximum retry interval (default 10s)
	MaxElapsedTime      time.Duration // Maximum total retry time (default 2min)
	Multiplier          float64       // Backoff multiplier (default 2.0)
	RandomizationFactor float64       // Jitter factor (default 0.5)
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         10 * time.Second,
		MaxElapsedTime:      2 * time.Minute,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// CircuitBreakerRegistry manages per-provider circuit breakers.
type CircuitBreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	logger   *logging.Logger
}

// NewCircuitBreakerRegistry creates a new circuit breaker registry.
func NewCircuitBreakerRegistry(logger *logging.Logger) *CircuitBreakerRegistry {
	if logger == nil {
		logger = logging.Nop()
	}
	return &CircuitBreakerRegistry{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		logger:   logger.With("component", "breaker"),
	}
}

// Get returns the circuit breaker for the given provider, creating it on
// first use. Five consecutive failures open it for 30 seconds.
func (r *CircuitBreakerRegistry) Get(provider string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[provider]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        provider,
		MaxRequests: 3, // test requests allowed while half-open
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			r.logger.Warn("circuit breaker state changed", "provider", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// Cancellation is the caller's doing, not the provider's.
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	})

	r.breakers[provider] = cb
	return cb
}

// sendWithRetry sends a message to the backend with exponential backoff retry and circuit breaker protection.
func sendWithRetry(ctx context.Context, b backend.Backend, msg backend.Message, cb *gobreaker.CircuitBreaker, retryCfg RetryConfig, logger *logging.Logger) (backend.Response, error) {
	var resp backend.Response

	operation := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		result, err := cb.Execute(func() (interface{}, error) {
			return b.Send(ctx, msg)
		})
		if err != nil {
			// An open circuit will not close within our retry window.
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}

		resp = result.(backend.Response)
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = retryCfg.InitialInterval
	policy.MaxInterval = retryCfg.MaxInterval
	policy.MaxElapsedTime = retryCfg.MaxElapsedTime
	policy.Multiplier = retryCfg.Multiplier
	policy.RandomizationFactor = retryCfg.RandomizationFactor

	notify := func(err error, wait time.Duration) {
		logger.Warn("backend call failed, retrying", "provider", cb.Name(), "error", err, "wait", wait.String())
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), notify)
	return resp, err
}

// Client sends prompts to one backend through a circuit breaker and retry
// policy. It satisfies planner.Generator.
type Client struct {
	backend backend.Backend
	breaker *gobreaker.CircuitBreaker
	retry   RetryConfig
	logger  *logging.Logger
}

// NewClient wraps b. The breaker is normally taken from a registry keyed by
// provider so agents sharing a provider share its failure budget.
func NewClient(b backend.Backend, breaker *gobreaker.CircuitBreaker, retry RetryConfig, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Client{backend: b, breaker: breaker, retry: retry, logger: logger}
}

// Generate sends prompt as a user message and returns the reply text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := sendWithRetry(ctx, c.backend, backend.Message{Content: prompt, Role: "user"}, c.breaker, c.retry, c.logger)
	if err != nil {
		return "", fmt.Errorf("%s: %w", c.breaker.Name(), err)
	}
	return resp.Content, nil
}

// Close releases the underlying backend.
func (c *Client) Close() error {
	return c.backend.Close()
}
