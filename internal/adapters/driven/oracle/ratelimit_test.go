package oracle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubOracle struct {
	calls atomic.Int32
	err   error
}

func (s *stubOracle) Infer(context.Context, string) (string, error) {
	s.calls.Add(1)
	return "ok", s.err
}
func (s *stubOracle) ModelName() string          { return "stub" }
func (s *stubOracle) Ping(context.Context) error { return nil }
func (s *stubOracle) Close() error               { return nil }

func TestNewRateLimited_ZeroRateIsPassthrough(t *testing.T) {
	inner := &stubOracle{}
	assert.Same(t, inner, NewRateLimited(inner, RateLimitConfig{}))
}

func TestRateLimited_Infer(t *testing.T) {
	inner := &stubOracle{}
	o := NewRateLimited(inner, RateLimitConfig{RequestsPerSecond: 1000, BurstSize: 2})

	for range 3 {
		resp, err := o.Infer(context.Background(), "p")
		require.NoError(t, err)
		assert.Equal(t, "ok", resp)
	}
	assert.Equal(t, int32(3), inner.calls.Load())
	assert.Equal(t, "stub", o.ModelName())
}

func TestRateLimited_WaitHonoursContext(t *testing.T) {
	inner := &stubOracle{}
	o := NewRateLimited(inner, RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 1})

	_, err := o.Infer(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = o.Infer(ctx, "second")
	assert.Error(t, err)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestRateLimited_BacksOffAfter429(t *testing.T) {
	inner := &stubOracle{err: fmt.Errorf("openai: chat completion: %w",
		&openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "slow down"})}
	o := NewRateLimited(inner, RateLimitConfig{RequestsPerSecond: 1000, BurstSize: 10, Backoff: time.Hour})

	_, err := o.Infer(context.Background(), "p")
	require.Error(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = o.Infer(ctx, "p")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestIsRateLimited(t *testing.T) {
	assert.True(t, IsRateLimited(&openai.APIError{HTTPStatusCode: 429}))
	assert.True(t, IsRateLimited(fmt.Errorf("wrapped: %w", api.StatusError{StatusCode: 429})))
	assert.False(t, IsRateLimited(&openai.APIError{HTTPStatusCode: 500}))
	assert.False(t, IsRateLimited(errors.New("boom")))
}
