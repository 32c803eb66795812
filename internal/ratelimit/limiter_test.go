package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestWaitSpacesSameHost(t *testing.T) {
	l := New(10) // 10 rps = 100ms interval
	ctx := context.Background()

	if err := l.Wait(ctx, "example.com"); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	if err := l.Wait(ctx, "example.com"); err != nil {
		t.Fatal(err)
	}
	if d := time.Since(start); d < 80*time.Millisecond {
		t.Errorf("expected wait ~100ms, got %v", d)
	}
}

func TestWaitDifferentHostsIndependent(t *testing.T) {
	l := New(1)
	ctx := context.Background()

	if err := l.Wait(ctx, "a.com"); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	if err := l.Wait(ctx, "b.com"); err != nil {
		t.Fatal(err)
	}
	if d := time.Since(start); d > 50*time.Millisecond {
		t.Errorf("host b blocked by host a: %v", d)
	}
}

func TestWaitHostCaseInsensitive(t *testing.T) {
	l := New(10)
	ctx := context.Background()

	if err := l.Wait(ctx, "Example.COM"); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	if err := l.Wait(ctx, "example.com"); err != nil {
		t.Fatal(err)
	}
	if d := time.Since(start); d < 80*time.Millisecond {
		t.Errorf("case variants treated as distinct hosts, waited only %v", d)
	}
}

func TestWaitCanceledContext(t *testing.T) {
	l := New(0.1) // 10s interval
	ctx := context.Background()
	if err := l.Wait(ctx, "slow.com"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx, "slow.com"); err == nil {
		t.Fatal("expected context error while waiting")
	}
}

func TestWaitDisabled(t *testing.T) {
	l := New(0)
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := l.Wait(ctx, "example.com"); err != nil {
			t.Fatal(err)
		}
	}
	if d := time.Since(start); d > 50*time.Millisecond {
		t.Errorf("disabled limiter should not block, took %v", d)
	}
}
