package core

// limiter.go bounds the number of conversions running at once.
//
// Each conversion may hold an outbound AI request open for up to a minute,
// so the limiter caps parallel work with a semaphore. When all slots are
// taken, new requests wait up to maxWait before failing with
// ErrTooManyConversions. WaitForDrain lets shutdown finish in-flight work.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyConversions is returned when all slots are occupied and the wait
// timeout expires. Clients should retry after a short delay.
var ErrTooManyConversions = errors.New("too many conversions in progress, please try again later")

// DefaultMaxConcurrent is the default limit for parallel conversions.
const DefaultMaxConcurrent = 10

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 30 * time.Second

// ConversionLimiter controls concurrent conversions using a semaphore.
type ConversionLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewConversionLimiter creates a limiter that allows at most maxConcurrent
// simultaneous conversions. Requests that cannot acquire a slot within
// maxWait receive ErrTooManyConversions.
func NewConversionLimiter(maxConcurrent int, maxWait time.Duration) *ConversionLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	return &ConversionLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire waits for a slot. The caller must call Release when done.
func (l *ConversionLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil

	case <-timer.C:
		return ErrTooManyConversions

	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire attempts to acquire a slot without blocking.
func (l *ConversionLimiter) TryAcquire() bool {
	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return true
	default:
		return false
	}
}

// Release releases a previously acquired slot.
// Must be called exactly once for each successful Acquire/TryAcquire.
func (l *ConversionLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()

	<-l.semaphore
}

// ActiveCount returns the number of conversions in progress.
func (l *ConversionLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// WaitForDrain blocks until all active conversions complete or ctx ends.
func (l *ConversionLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// LimiterStatus is a snapshot of the limiter's state.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state for monitoring.
func (l *ConversionLimiter) Status() LimiterStatus {
	l.mu.RLock()
	active := l.active
	l.mu.RUnlock()

	return LimiterStatus{
		Active:        active,
		Available:     cap(l.semaphore) - len(l.semaphore),
		MaxConcurrent: cap(l.semaphore),
	}
}
