package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// RetryConfig configures retry behavior for provider calls.
type RetryConfig struct {
	MaxRetries int           // maximum retry attempts (0 = no retries)
	RetryDelay time.Duration // initial delay between retries
	MaxDelay   time.Duration // cap for exponential backoff
	Timeout    time.Duration // per-request timeout
}

// DefaultRetryConfig returns a sensible default configuration.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries: 3,
		RetryDelay: 1 * time.Second,
		MaxDelay:   30 * time.Second,
		Timeout:    2 * time.Minute,
	}
}

// RetryProvider wraps a Provider with timeout and retry logic.
type RetryProvider struct {
	inner  Provider
	config *RetryConfig
}

// NewRetryProvider wraps an existing provider with retry logic.
func NewRetryProvider(inner Provider, config *RetryConfig) *RetryProvider {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &RetryProvider{inner: inner, config: config}
}

// Name returns the underlying provider name.
func (r *RetryProvider) Name() string { return r.inner.Name() }

// Complete sends a prompt with timeout and retry logic.
func (r *RetryProvider) Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error) {
	var resp *Response
	err := r.withRetries(ctx, func(attemptCtx context.Context) error {
		var err error
		resp, err = r.inner.Complete(attemptCtx, prompt, opts)
		return err
	})
	return resp, err
}

// Embed sends an embedding request with timeout and retry logic.
func (r *RetryProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32
	err := r.withRetries(ctx, func(attemptCtx context.Context) error {
		var err error
		vectors, err = r.inner.Embed(attemptCtx, texts)
		return err
	})
	return vectors, err
}

func (r *RetryProvider) withRetries(ctx context.Context, call func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.backoff(attempt)):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
		err := call(attemptCtx)
		cancel()

		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return fmt.Errorf("non-retryable error: %w", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", r.config.MaxRetries, lastErr)
}

// backoff returns the delay for the given attempt: delay * 2^(attempt-1),
// capped at MaxDelay.
func (r *RetryProvider) backoff(attempt int) time.Duration {
	delay := r.config.RetryDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > r.config.MaxDelay {
			return r.config.MaxDelay
		}
	}
	return delay
}

// isRetryable determines if an error should trigger another attempt.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	errStr := err.Error()

	// Rate limiting and server errors come back as status text from the
	// HTTP client; retry those.
	for _, marker := range []string{"429", "Too Many Requests", "500", "502", "503", "504"} {
		if strings.Contains(errStr, marker) {
			return true
		}
	}

	// Remaining 4xx are caller mistakes.
	for _, marker := range []string{"400", "401", "403", "404"} {
		if strings.Contains(errStr, marker) {
			return false
		}
	}

	// Unknown errors: retry, connection resets from local model servers
	// rarely identify themselves cleanly.
	return true
}

// WrapWithRetry is a convenience to wrap a provider with retry logic from config.
func WrapWithRetry(provider Provider, cfg ProviderConfig) Provider {
	if provider == nil {
		return nil
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 && cfg.Timeout == 0 {
		maxRetries = 3
	}
	retryDelay := cfg.RetryDelay
	if retryDelay == 0 {
		retryDelay = 1 * time.Second
	}

	return NewRetryProvider(provider, &RetryConfig{
		MaxRetries: maxRetries,
		RetryDelay: retryDelay,
		MaxDelay:   30 * time.Second,
		Timeout:    timeout,
	})
}
