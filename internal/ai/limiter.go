package ai

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// NewLimiter returns a token bucket admitting perMinute requests per minute
// with the given burst. A non-positive rate returns nil (unlimited).
func NewLimiter(perMinute float64, burst int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perMinute/60.0), burst)
}

type limitedRuntime struct {
	rt  Runtime
	lim *rate.Limiter
}

// WithLimiter makes every Generate call on rt wait for a token from lim.
// A nil limiter returns rt unchanged.
func WithLimiter(rt Runtime, lim *rate.Limiter) Runtime {
	if lim == nil || rt == nil {
		return rt
	}
	return &limitedRuntime{rt: rt, lim: lim}
}

func (l *limitedRuntime) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if err := l.lim.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	return l.rt.Generate(ctx, req)
}
