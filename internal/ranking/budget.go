package ranking

import (
	"sync"
	"time"
)

// RateBudget tracks the remaining upstream query allowance for the current
// window. One instance exists per process; it is updated from the quota
// metadata the ranking service attaches to every query response and
// consulted before each batch is dispatched. Safe for concurrent use.
type RateBudget struct {
	mu        sync.Mutex
	perWindow float64
	remaining float64
	resetAt   time.Time
}

// NewRateBudget creates a budget of perWindow points per hour. The budget
// is optimistic until the first response reports real quota numbers.
func NewRateBudget(perWindow float64) *RateBudget {
	return &RateBudget{
		perWindow: perWindow,
		remaining: perWindow,
		resetAt:   time.Now().Add(time.Hour),
	}
}

// Acquire reserves cost points. It returns false when the current window
// cannot cover the cost; the caller defers its work to a later window.
func (b *RateBudget) Acquire(cost float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if now := time.Now(); now.After(b.resetAt) {
		b.remaining = b.perWindow
		b.resetAt = now.Add(time.Hour)
	}
	if b.remaining < cost {
		return false
	}
	b.remaining -= cost
	return true
}

// Observe replaces the tracked state with quota metadata from an upstream
// response, which is authoritative over our local accounting.
func (b *RateBudget) Observe(limitPerHour, spentThisHour float64, resetIn time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if limitPerHour > 0 {
		b.perWindow = limitPerHour
	}
	b.remaining = b.perWindow - spentThisHour
	if b.remaining < 0 {
		b.remaining = 0
	}
	if resetIn > 0 {
		b.resetAt = time.Now().Add(resetIn)
	}
}

// Remaining returns the points left in the current window.
func (b *RateBudget) Remaining() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}
