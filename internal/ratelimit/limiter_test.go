package ratelimit

import (
	"context"
	"errors"
	"testing"
)

func TestInProcessLimiter_AllowsWithinWindow(t *testing.T) {
	l := NewInProcessLimiter(3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.Allow(ctx, "client-a"); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
	}
	if err := l.Allow(ctx, "client-a"); !errors.Is(err, ErrTooManyRequests) {
		t.Errorf("4th request: want ErrTooManyRequests, got %v", err)
	}
}

func TestInProcessLimiter_KeysAreIndependent(t *testing.T) {
	l := NewInProcessLimiter(1)
	ctx := context.Background()

	if err := l.Allow(ctx, "client-a"); err != nil {
		t.Fatalf("client-a: %v", err)
	}
	if err := l.Allow(ctx, "client-b"); err != nil {
		t.Errorf("client-b should have its own window: %v", err)
	}
}

func TestInProcessLimiter_ZeroDisables(t *testing.T) {
	l := NewInProcessLimiter(0)
	for i := 0; i < 100; i++ {
		if err := l.Allow(context.Background(), "client-a"); err != nil {
			t.Fatalf("disabled limiter rejected request %d: %v", i+1, err)
		}
	}
}
