package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestConversionLimiter_AcquireRelease(t *testing.T) {
	limiter := NewConversionLimiter(2, time.Second)
	ctx := context.Background()

	if got := limiter.Status(); got.Available != 2 || got.Active != 0 {
		t.Errorf("initial Status = %+v, want 2 available", got)
	}

	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("second Acquire failed: %v", err)
	}
	if got := limiter.Status(); got.Active != 2 || got.Available != 0 {
		t.Errorf("full Status = %+v, want 2 active", got)
	}
	if limiter.TryAcquire() {
		t.Error("TryAcquire succeeded on a full limiter")
	}

	limiter.Release()
	limiter.Release()
	if got := limiter.ActiveCount(); got != 0 {
		t.Errorf("after Release, ActiveCount = %d, want 0", got)
	}
}

func TestConversionLimiter_Defaults(t *testing.T) {
	got := NewConversionLimiter(0, 0).Status()
	if got.MaxConcurrent != DefaultMaxConcurrent {
		t.Errorf("MaxConcurrent = %d, want %d", got.MaxConcurrent, DefaultMaxConcurrent)
	}
}

func TestConversionLimiter_BlocksWhenFull(t *testing.T) {
	limiter := NewConversionLimiter(1, 50*time.Millisecond)
	if !limiter.TryAcquire() {
		t.Fatal("TryAcquire failed on an empty limiter")
	}
	defer limiter.Release()

	start := time.Now()
	err := limiter.Acquire(context.Background())
	if !errors.Is(err, ErrTooManyConversions) {
		t.Errorf("Acquire error = %v, want ErrTooManyConversions", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("Acquire returned after %v, want about 50ms", elapsed)
	}
}

func TestConversionLimiter_ContextCancelled(t *testing.T) {
	limiter := NewConversionLimiter(1, time.Minute)
	limiter.TryAcquire()
	defer limiter.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := limiter.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire error = %v, want context.Canceled", err)
	}
}

func TestConversionLimiter_ConcurrentAccess(t *testing.T) {
	const maxConcurrent = 3
	limiter := NewConversionLimiter(maxConcurrent, time.Second)

	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		maxObserved int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := limiter.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			defer limiter.Release()

			mu.Lock()
			if n := limiter.ActiveCount(); n > maxObserved {
				maxObserved = n
			}
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
		}()
	}
	wg.Wait()

	if maxObserved > maxConcurrent {
		t.Errorf("observed %d concurrent conversions, limit %d", maxObserved, maxConcurrent)
	}
}

func TestConversionLimiter_WaitForDrain(t *testing.T) {
	limiter := NewConversionLimiter(1, time.Second)
	if err := limiter.WaitForDrain(context.Background()); err != nil {
		t.Fatalf("WaitForDrain on idle limiter: %v", err)
	}

	limiter.TryAcquire()
	go func() {
		time.Sleep(50 * time.Millisecond)
		limiter.Release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := limiter.WaitForDrain(ctx); err != nil {
		t.Errorf("WaitForDrain error = %v", err)
	}

	limiter.TryAcquire()
	defer limiter.Release()
	short, cancel2 := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel2()
	if err := limiter.WaitForDrain(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitForDrain error = %v, want deadline exceeded", err)
	}
}
