package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAllowWithinBurst(t *testing.T) {
	l := New(10)

	for i := 0; i < 10; i++ {
		if !l.Allow() {
			t.Fatalf("request %d denied within burst", i)
		}
	}
	if l.Allow() {
		t.Error("request allowed after burst exhausted")
	}
}

func TestWaitBlocksWhenEmpty(t *testing.T) {
	l := New(20)
	for l.Allow() {
	}

	start := time.Now()
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("Wait returned after %v, expected at least one token interval", elapsed)
	}
}

func TestWaitHonoursContextCancellation(t *testing.T) {
	l := New(0.1)
	for l.Allow() {
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx); err != context.DeadlineExceeded {
		t.Errorf("Wait() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestTokensRefill(t *testing.T) {
	l := New(100)
	for l.Allow() {
	}

	time.Sleep(50 * time.Millisecond)
	if !l.Allow() {
		t.Error("no token available after refill interval")
	}
}
