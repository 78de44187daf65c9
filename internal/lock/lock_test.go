package lock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLocal_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()

	lease, err := l.Acquire(ctx, "poster", time.Minute)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if _, err := l.Acquire(ctx, "poster", time.Minute); !errors.Is(err, ErrHeld) {
		t.Fatalf("second Acquire() error = %v, want ErrHeld", err)
	}
	if _, err := l.Acquire(ctx, "other", time.Minute); err != nil {
		t.Fatalf("Acquire(other) error = %v", err)
	}

	if err := lease.Release(ctx); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := l.Acquire(ctx, "poster", time.Minute); err != nil {
		t.Fatalf("Acquire() after release error = %v", err)
	}
}

func TestLocal_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocal()
	l.now = func() time.Time { return now }

	stale, err := l.Acquire(ctx, "poster", time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	now = now.Add(2 * time.Minute)
	fresh, err := l.Acquire(ctx, "poster", time.Minute)
	if err != nil {
		t.Fatalf("Acquire() after expiry error = %v", err)
	}

	// Releasing the expired lease must not free the new holder.
	if err := stale.Release(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Acquire(ctx, "poster", time.Minute); !errors.Is(err, ErrHeld) {
		t.Fatalf("Acquire() error = %v, want ErrHeld", err)
	}
	if err := fresh.Release(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestLocal_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewLocal().Acquire(ctx, "poster", time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("Acquire() error = %v, want context.Canceled", err)
	}
}
