package limiters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestWindow(t *testing.T, cfg Config) (*Window, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return New(client, "testwin", cfg), mr
}

func TestAllowWithinBudget(t *testing.T) {
	w, _ := newTestWindow(t, Config{Window: time.Minute, MaxRequests: 3})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := w.Allow(ctx, "k1"); err != nil {
			t.Fatalf("Allow() %d error = %v", i+1, err)
		}
	}

	retryAfter, err := w.Allow(ctx, "k1")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Allow() error = %v, want ErrRateLimited", err)
	}
	if retryAfter <= 0 || retryAfter > time.Minute {
		t.Fatalf("retryAfter = %v", retryAfter)
	}
}

func TestWindowExpires(t *testing.T) {
	w, mr := newTestWindow(t, Config{Window: time.Minute, MaxRequests: 1})
	ctx := context.Background()

	if _, err := w.Allow(ctx, "k1"); err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if _, err := w.Allow(ctx, "k1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Allow() error = %v, want ErrRateLimited", err)
	}

	mr.FastForward(61 * time.Second)

	if _, err := w.Allow(ctx, "k1"); err != nil {
		t.Fatalf("Allow() after window error = %v", err)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	w, _ := newTestWindow(t, Config{Window: time.Minute, MaxRequests: 1})
	ctx := context.Background()

	if _, err := w.Allow(ctx, "k1"); err != nil {
		t.Fatalf("Allow(k1) error = %v", err)
	}
	if _, err := w.Allow(ctx, "k2"); err != nil {
		t.Fatalf("Allow(k2) error = %v", err)
	}
}

func TestReset(t *testing.T) {
	w, _ := newTestWindow(t, Config{Window: time.Minute, MaxRequests: 1})
	ctx := context.Background()

	if _, err := w.Allow(ctx, "k1"); err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if err := w.Reset(ctx, "k1"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if _, err := w.Allow(ctx, "k1"); err != nil {
		t.Fatalf("Allow() after reset error = %v", err)
	}
}
