package ratelimit

import (
	"context"
	"sync"
	"time"
)

const window = time.Second

// Clock abstracts time so the window arithmetic is testable without
// real sleeping.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Limiter caps admissions at maxPerSecond within any trailing one-second
// window. It is shared by every outbound API call of a run: page fetches,
// per-deal note fetches and deletes all pass through the same gate.
type Limiter struct {
	maxPerSecond int
	clock        Clock

	mu     sync.Mutex
	window []time.Time
	count  uint64
}

// New creates a Limiter backed by the system clock.
func New(maxPerSecond int) *Limiter {
	return NewWithClock(maxPerSecond, systemClock{})
}

// NewWithClock creates a Limiter with an explicit clock.
func NewWithClock(maxPerSecond int, clock Clock) *Limiter {
	if maxPerSecond < 1 {
		maxPerSecond = 1
	}
	return &Limiter{
		maxPerSecond: maxPerSecond,
		clock:        clock,
	}
}

// Acquire blocks until admitting one more call would not exceed the
// ceiling, then records the admission. The mutex is held across the whole
// critical section including the sleep, so callers are admitted in
// FIFO-ish order; no stronger fairness is guaranteed. Returns the context
// error if the caller is cancelled while parked.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.prune(now)

	if len(l.window) >= l.maxPerSecond {
		// Sleep until the oldest admission leaves the trailing window.
		wait := window - now.Sub(l.window[0])
		if wait > 0 {
			if err := l.clock.Sleep(ctx, wait); err != nil {
				return err
			}
		}
		now = l.clock.Now()
		l.prune(now)
	}

	l.window = append(l.window, now)
	l.count++
	return nil
}

// Count returns the total number of admissions so far.
func (l *Limiter) Count() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

func (l *Limiter) prune(now time.Time) {
	cut := 0
	for cut < len(l.window) && now.Sub(l.window[cut]) >= window {
		cut++
	}
	if cut > 0 {
		l.window = append(l.window[:0], l.window[cut:]...)
	}
}
