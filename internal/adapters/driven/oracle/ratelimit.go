// Package oracle holds provider-independent Oracle decorators. The
// provider adapters live in the ollama, openai and anthropic subpackages.
package oracle

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/ollama/ollama/api"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
)

// DefaultBackoff is how long calls pause after the provider reports a rate limit.
const DefaultBackoff = 30 * time.Second

// RateLimitConfig holds token bucket settings.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate limit.
	RequestsPerSecond float64
	// BurstSize is the maximum burst size.
	BurstSize int
	// Backoff is the pause after a 429 (default: 30s).
	Backoff time.Duration
}

// RateLimited wraps an Oracle with a token bucket and a shared backoff
// window that opens when the provider answers 429.
type RateLimited struct {
	inner   driven.Oracle
	limiter *rate.Limiter
	backoff time.Duration

	mu      sync.Mutex
	retryAt time.Time
}

var _ driven.Oracle = (*RateLimited)(nil)

// NewRateLimited wraps inner. A non-positive rate returns inner unchanged.
func NewRateLimited(inner driven.Oracle, cfg RateLimitConfig) driven.Oracle {
	if inner == nil || cfg.RequestsPerSecond <= 0 {
		return inner
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = 1
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
		backoff: cfg.Backoff,
	}
}

// Infer waits for a token, then calls the wrapped oracle.
func (r *RateLimited) Infer(ctx context.Context, prompt string) (string, error) {
	if err := r.wait(ctx); err != nil {
		return "", err
	}
	resp, err := r.inner.Infer(ctx, prompt)
	if err != nil && IsRateLimited(err) {
		r.recordRateLimit()
	}
	return resp, err
}

// wait respects the backoff window and then the token bucket.
func (r *RateLimited) wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if d := time.Until(retryAt); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return r.limiter.Wait(ctx)
}

func (r *RateLimited) recordRateLimit() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retryAt = time.Now().Add(r.backoff)
}

// ModelName returns the wrapped model name.
func (r *RateLimited) ModelName() string { return r.inner.ModelName() }

// Ping is not rate limited.
func (r *RateLimited) Ping(ctx context.Context) error { return r.inner.Ping(ctx) }

// Close closes the wrapped oracle.
func (r *RateLimited) Close() error { return r.inner.Close() }

// IsRateLimited reports whether err is a provider's HTTP 429.
func IsRateLimited(err error) bool {
	var (
		oaiErr    *openai.APIError
		oaiReqErr *openai.RequestError
		antErr    *anthropic.Error
		olErr     api.StatusError
	)
	switch {
	case errors.As(err, &oaiErr):
		return oaiErr.HTTPStatusCode == http.StatusTooManyRequests
	case errors.As(err, &oaiReqErr):
		return oaiReqErr.HTTPStatusCode == http.StatusTooManyRequests
	case errors.As(err, &antErr):
		return antErr.StatusCode == http.StatusTooManyRequests
	case errors.As(err, &olErr):
		return olErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}
