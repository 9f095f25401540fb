package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/pratik-mahalle/muscleai/internal/testutil"
)

func TestWindow_Allow(t *testing.T) {
	clock := testutil.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	w := NewWindow(3, 30*time.Second).WithClock(clock.Now)

	for i := 0; i < 3; i++ {
		if ok, _ := w.Allow(); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
		clock.Advance(time.Second)
	}

	ok, retry := w.Allow()
	if ok {
		t.Fatal("fourth request inside the window should be rejected")
	}
	// Oldest hit was at t=0, now is t=3s.
	if retry != 27*time.Second {
		t.Errorf("retryAfter = %v, want 27s", retry)
	}

	clock.Advance(27 * time.Second)
	if ok, _ := w.Allow(); !ok {
		t.Error("request should be allowed once the oldest hit leaves the window")
	}
}

func TestWindow_RejectedRequestsAreNotRecorded(t *testing.T) {
	clock := testutil.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	w := NewWindow(1, 10*time.Second).WithClock(clock.Now)

	w.Allow()
	for i := 0; i < 5; i++ {
		w.Allow()
	}
	if got := w.Count(); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}

	clock.Advance(10 * time.Second)
	if ok, _ := w.Allow(); !ok {
		t.Error("window should have room after it slides past the only hit")
	}
}

func TestWindow_Reset(t *testing.T) {
	w := NewWindow(1, time.Hour)
	w.Allow()
	if ok, _ := w.Allow(); ok {
		t.Fatal("second request should be rejected")
	}
	w.Reset()
	if ok, _ := w.Allow(); !ok {
		t.Error("request after Reset() should be allowed")
	}
}

func TestWindow_Defaults(t *testing.T) {
	w := NewWindow(0, 0)
	if w.Limit() != DefaultLimit || w.window != DefaultWindow {
		t.Errorf("defaults = %d/%v, want %d/%v", w.Limit(), w.window, DefaultLimit, DefaultWindow)
	}
}

func TestWindow_Concurrent(t *testing.T) {
	w := NewWindow(10, time.Hour)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := w.Allow(); ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 10 {
		t.Errorf("allowed = %d, want 10", allowed)
	}
}
