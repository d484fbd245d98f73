// Package ratelimit provides a token bucket limiter used to pace requests
// against the Polymarket APIs.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter is a token bucket. Tokens refill continuously at the configured
// rate; each Wait consumes one token, blocking while the bucket is empty.
type Limiter struct {
	mu     sync.Mutex
	rate   float64 // tokens per second
	burst  float64
	tokens float64
	last   time.Time
}

// New creates a limiter allowing rps requests per second with a burst equal
// to one second of traffic (minimum 1).
func New(rps float64) *Limiter {
	if rps <= 0 {
		rps = 1.0
	}
	burst := rps
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		rate:   rps,
		burst:  burst,
		tokens: burst,
		last:   time.Now(),
	}
}

// Wait consumes one token, sleeping until one becomes available or the
// context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		ok, wait := l.take()
		if ok {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Allow reports whether a token is available without blocking.
func (l *Limiter) Allow() bool {
	ok, _ := l.take()
	return ok
}

// take refills the bucket and attempts to consume a token. When the bucket
// is empty it returns how long until the next token accrues.
func (l *Limiter) take() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.tokens += now.Sub(l.last).Seconds() * l.rate
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.last = now

	if l.tokens >= 1.0 {
		l.tokens -= 1.0
		return true, 0
	}

	deficit := 1.0 - l.tokens
	return false, time.Duration(deficit / l.rate * float64(time.Second))
}
