package upload

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestWatchdog_FiresRepeatedly(t *testing.T) {
	var fires atomic.Int64
	w := NewWatchdog(15*time.Millisecond, func() { fires.Add(1) })
	defer w.Stop()

	time.Sleep(70 * time.Millisecond)
	if got := fires.Load(); got < 2 {
		t.Fatalf("expected at least 2 fires, got %d", got)
	}
}

func TestWatchdog_ResetDelaysFire(t *testing.T) {
	var fires atomic.Int64
	w := NewWatchdog(30*time.Millisecond, func() { fires.Add(1) })
	defer w.Stop()

	time.Sleep(20 * time.Millisecond)
	w.Reset()
	time.Sleep(20 * time.Millisecond)

	if got := fires.Load(); got != 0 {
		t.Fatalf("expected no fires yet after reset, got %d", got)
	}
}

func TestWatchdog_StopIsIdempotentAndTerminal(t *testing.T) {
	var fires atomic.Int64
	w := NewWatchdog(10*time.Millisecond, func() { fires.Add(1) })
	w.Stop()
	w.Stop() // must not panic

	time.Sleep(40 * time.Millisecond)
	if got := fires.Load(); got != 0 {
		t.Fatalf("expected no fires after stop, got %d", got)
	}
}
