package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	initialBackoff = 100 * time.Millisecond
	maxBackoff     = 2 * time.Minute
)

// Limiter paces requests to one upstream API. After a 429 the next Wait
// also sits out an exponentially growing backoff.
type Limiter struct {
	limiter *rate.Limiter
	name    string

	mu      sync.Mutex
	backoff time.Duration
	until   time.Time // no requests before this instant
	now     func() time.Time
}

// NewLimiter creates a new rate limiter
// perMinute specifies the number of requests allowed per minute
func NewLimiter(name string, perMinute int) *Limiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	// Allow burst of up to 5 requests or 1/10th of per-minute limit
	burst := min(max(perMinute/10, 1), 5)

	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst),
		name:    name,
		backoff: initialBackoff,
		now:     time.Now,
	}
}

// Wait blocks until any backoff has passed and a token is available,
// or ctx is done
func (l *Limiter) Wait(ctx context.Context) error {
	if d := l.Pause(); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return l.limiter.Wait(ctx)
}

// Allow reports whether an event may happen now
func (l *Limiter) Allow() bool {
	if l.Pause() > 0 {
		return false
	}
	return l.limiter.Allow()
}

// Pause returns how long requests are still held back after a 429
func (l *Limiter) Pause() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if d := l.until.Sub(l.now()); d > 0 {
		return d
	}
	return 0
}

// SignalRateLimited should be called when a 429 response is received.
// It holds requests for the current backoff and doubles it.
func (l *Limiter) SignalRateLimited() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.until = l.now().Add(l.backoff)
	l.backoff = min(l.backoff*2, maxBackoff)
}

// ResetBackoff resets the backoff duration after successful request
func (l *Limiter) ResetBackoff() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.backoff = initialBackoff
}

// GetBackoff returns the current backoff duration
func (l *Limiter) GetBackoff() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.backoff
}

// Name returns the limiter name
func (l *Limiter) Name() string {
	return l.name
}
