// Package upload implements the sliced-upload engine: a fixed pool of
// workers writing positional slices to append-capable files, an idle
// watchdog nudging stalled clients, and a persistent download-code map.
package upload

import (
	"sync"
	"time"
)

// Watchdog fires action repeatedly, once every period after construction
// and after each Reset, until Stop is called. Reset restarts the wait.
// Stop is terminal; calling it twice is a no-op.
type Watchdog struct {
	period time.Duration
	action func()

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
	done    chan struct{}
}

// NewWatchdog constructs and arms a Watchdog that fires action every
// period starting period after construction.
func NewWatchdog(period time.Duration, action func()) *Watchdog {
	w := &Watchdog{
		period: period,
		action: action,
		done:   make(chan struct{}),
	}
	w.timer = time.NewTimer(period)
	go w.loop()
	return w
}

func (w *Watchdog) loop() {
	for {
		select {
		case <-w.timer.C:
			w.action()
			w.mu.Lock()
			if !w.stopped {
				w.timer.Reset(w.period)
			}
			w.mu.Unlock()
		case <-w.done:
			return
		}
	}
}

// Reset restarts the wait period, draining a pending fire if necessary.
func (w *Watchdog) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if !w.timer.Stop() {
		select {
		case <-w.timer.C:
		default:
		}
	}
	w.timer.Reset(w.period)
}

// Stop terminates the watchdog. Idempotent: a second call is a no-op.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	w.timer.Stop()
	close(w.done)
}
