package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNewLimiter_Validation(t *testing.T) {
	tests := []struct {
		name        string
		window      Window
		expectError bool
	}{
		{
			name:   "valid window",
			window: Window{MaxCalls: 12, Duration: time.Second},
		},
		{
			name:        "zero max calls",
			window:      Window{MaxCalls: 0, Duration: time.Second},
			expectError: true,
		},
		{
			name:        "negative max calls",
			window:      Window{MaxCalls: -1, Duration: time.Second},
			expectError: true,
		},
		{
			name:        "zero duration",
			window:      Window{MaxCalls: 1, Duration: 0},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLimiter(tt.window)
			if tt.expectError && err == nil {
				t.Error("Expected error but got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

func TestAcquire_GrantsImmediatelyUnderCapacity(t *testing.T) {
	limiter, err := NewLimiter(Window{MaxCalls: 3, Duration: time.Second})
	if err != nil {
		t.Fatalf("NewLimiter failed: %v", err)
	}

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := limiter.Acquire(ctx); err != nil {
			t.Fatalf("Acquire %d failed: %v", i, err)
		}
	}

	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Acquires under capacity took %v, expected immediate grants", elapsed)
	}
	if got := limiter.InFlight(); got != 3 {
		t.Errorf("InFlight = %d, want 3", got)
	}
}

func TestAcquire_BlocksUntilWindowFrees(t *testing.T) {
	window := 200 * time.Millisecond
	limiter, err := NewLimiter(Window{MaxCalls: 2, Duration: window})
	if err != nil {
		t.Fatalf("NewLimiter failed: %v", err)
	}

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 2; i++ {
		if err := limiter.Acquire(ctx); err != nil {
			t.Fatalf("Acquire %d failed: %v", i, err)
		}
	}

	// Third acquire must wait until the first grant exits the window.
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("Blocked acquire failed: %v", err)
	}

	elapsed := time.Since(start)
	if elapsed < window-20*time.Millisecond {
		t.Errorf("Third acquire returned after %v, expected to wait ~%v", elapsed, window)
	}
}

// TestAcquire_RollingWindowProperty drives the limiter hard and verifies that
// no interval of the window duration ever contains more grants than allowed.
func TestAcquire_RollingWindowProperty(t *testing.T) {
	window := 100 * time.Millisecond
	maxCalls := 3
	limiter, err := NewLimiter(Window{MaxCalls: maxCalls, Duration: window})
	if err != nil {
		t.Fatalf("NewLimiter failed: %v", err)
	}

	ctx := context.Background()
	var mu sync.Mutex
	var granted []time.Time

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := limiter.Acquire(ctx); err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			mu.Lock()
			granted = append(granted, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(granted) != 10 {
		t.Fatalf("Expected 10 grants, got %d", len(granted))
	}

	// Timestamps are taken after Acquire returns, so allow a small slack for
	// scheduling delay between the grant and the timestamp.
	slack := 25 * time.Millisecond
	for i := range granted {
		inWindow := 0
		for j := range granted {
			d := granted[j].Sub(granted[i])
			if d >= 0 && d < window-slack {
				inWindow++
			}
		}
		if inWindow > maxCalls {
			t.Errorf("Window starting at grant %d contains %d grants, want <= %d", i, inWindow, maxCalls)
		}
	}
}

func TestAcquire_ConcurrentCallersNeverOverCommit(t *testing.T) {
	limiter, err := NewLimiter(Window{MaxCalls: 1, Duration: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewLimiter failed: %v", err)
	}

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := limiter.Acquire(ctx); err != nil {
				t.Errorf("Acquire failed: %v", err)
			}
		}()
	}
	wg.Wait()

	// With MaxCalls=1 the ledger can never hold more than one live grant.
	if got := limiter.InFlight(); got > 1 {
		t.Errorf("InFlight = %d after concurrent acquires, want <= 1", got)
	}
}

func TestAcquire_ContextCancelledWhileWaiting(t *testing.T) {
	limiter, err := NewLimiter(Window{MaxCalls: 1, Duration: 10 * time.Second})
	if err != nil {
		t.Fatalf("NewLimiter failed: %v", err)
	}

	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("First acquire failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = limiter.Acquire(ctx)
	if err == nil {
		t.Fatal("Expected error from cancelled acquire, got nil")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Cancelled acquire returned after %v, expected prompt abort", elapsed)
	}

	// The aborted caller must not have consumed a slot.
	if got := limiter.InFlight(); got != 1 {
		t.Errorf("InFlight = %d after aborted acquire, want 1", got)
	}
}
