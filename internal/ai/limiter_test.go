package ai

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingRuntime struct{ calls int32 }

func (c *countingRuntime) Generate(context.Context, GenerateRequest) (*GenerateResponse, error) {
	atomic.AddInt32(&c.calls, 1)
	return &GenerateResponse{Choices: []Choice{{Message: Message{Content: "ok"}}}}, nil
}

func TestWithLimiterBlocksBeyondBurst(t *testing.T) {
	inner := &countingRuntime{}
	// One token per minute, burst 1: the second call must wait.
	rt := WithLimiter(inner, NewLimiter(1, 1))

	if _, err := rt.Generate(context.Background(), GenerateRequest{}); err != nil {
		t.Fatalf("first call: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := rt.Generate(ctx, GenerateRequest{}); err == nil {
		t.Fatal("second call should fail waiting for a token")
	}
	if got := atomic.LoadInt32(&inner.calls); got != 1 {
		t.Fatalf("inner calls = %d", got)
	}
}

func TestNilLimiterIsPassthrough(t *testing.T) {
	inner := &countingRuntime{}
	if WithLimiter(inner, NewLimiter(0, 5)) != Runtime(inner) {
		t.Fatal("expected the runtime unchanged")
	}
}
