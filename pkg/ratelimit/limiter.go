package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter defines the interface for request pacing
type Limiter interface {
	// Wait blocks until the next request may proceed or ctx is done
	Wait(ctx context.Context) error
	// Reset resets the limiter state
	Reset()
}

// TokenBucket implements a token bucket rate limiter
type TokenBucket struct {
	capacity     int
	tokens       int
	refillPeriod time.Duration
	lastRefill   time.Time
	mu           sync.Mutex
}

// NewTokenBucket creates a new token bucket rate limiter
func NewTokenBucket(capacity int, refillPeriod time.Duration) *TokenBucket {
	return &TokenBucket{
		capacity:     capacity,
		tokens:       capacity,
		refillPeriod: refillPeriod,
		lastRefill:   time.Now(),
	}
}

// PerMinute returns a bucket allowing n requests per minute
func PerMinute(n int) *TokenBucket {
	return NewTokenBucket(n, time.Minute)
}

// Allow checks if a request can proceed and consumes a token if so
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for !tb.Allow() {
		tb.mu.Lock()
		untilRefill := tb.refillPeriod - time.Since(tb.lastRefill)
		tb.mu.Unlock()

		if untilRefill <= 0 {
			untilRefill = 10 * time.Millisecond
		}
		if err := sleep(ctx, untilRefill); err != nil {
			return err
		}
	}
	return nil
}

// Reset resets the token bucket to full capacity
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.lastRefill = time.Now()
}

func (tb *TokenBucket) refill() {
	now := time.Now()
	if now.Sub(tb.lastRefill) >= tb.refillPeriod {
		tb.tokens = tb.capacity
		tb.lastRefill = now
	}
}

// Pacer sleeps a random duration in [Min, Max] before each request.
// The first call does not wait.
type Pacer struct {
	Min time.Duration
	Max time.Duration

	mu      sync.Mutex
	started bool
	rng     *rand.Rand
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewPacer creates a pacer with the given bounds
func NewPacer(min, max time.Duration) *Pacer {
	if max < min {
		max = min
	}
	return &Pacer{
		Min:   min,
		Max:   max,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep: sleep,
	}
}

// PageDelay returns the pacer used between API pages
func PageDelay() *Pacer {
	return NewPacer(2*time.Second, 4*time.Second)
}

// DownloadDelay returns the pacer used between media downloads
func DownloadDelay() *Pacer {
	return NewPacer(400*time.Millisecond, 750*time.Millisecond)
}

// Next returns the next random delay
func (p *Pacer) Next() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Max == p.Min {
		return p.Min
	}
	return p.Min + time.Duration(p.rng.Int63n(int64(p.Max-p.Min)+1))
}

// Wait sleeps a random delay unless this is the first call
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	first := !p.started
	p.started = true
	p.mu.Unlock()

	if first {
		return nil
	}
	return p.sleep(ctx, p.Next())
}

// Reset makes the next Wait return immediately
func (p *Pacer) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = false
}

// Nop is a Limiter that never waits
type Nop struct{}

func (Nop) Wait(ctx context.Context) error { return ctx.Err() }
func (Nop) Reset()                         {}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
