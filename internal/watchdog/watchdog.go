// Package watchdog resets an abandoned kiosk session. After a period of
// inactivity it raises a warning; if nobody touches the screen during the
// warning countdown the timeout callback runs.
package watchdog

import (
	"sync"
	"time"

	"github.com/greenscreen-pictures/kiosk/internal/clock"
)

// Stopper cancels a scheduled callback. Satisfied by *time.Timer.
type Stopper interface {
	Stop() bool
}

// Scheduler runs f once after d. time.AfterFunc in production.
type Scheduler func(d time.Duration, f func()) Stopper

func realScheduler(d time.Duration, f func()) Stopper { return time.AfterFunc(d, f) }

// Watchdog tracks user activity for the active session.
type Watchdog struct {
	mu       sync.Mutex
	idle     time.Duration
	warning  time.Duration
	debounce time.Duration

	onWarn    func(remaining time.Duration)
	onTimeout func()

	clock    clock.Clock
	schedule Scheduler

	armed   bool
	warned  bool
	gen     uint64
	last    time.Time
	pending Stopper
}

// New creates a disarmed watchdog. Either callback may be nil. Callbacks run on
// the timer goroutine without the watchdog's lock held.
func New(idle, warning, debounce time.Duration, onWarn func(remaining time.Duration), onTimeout func()) *Watchdog {
	return &Watchdog{
		idle:      idle,
		warning:   warning,
		debounce:  debounce,
		onWarn:    onWarn,
		onTimeout: onTimeout,
		clock:     clock.Real{},
		schedule:  realScheduler,
	}
}

// WithClock replaces the clock used for debouncing.
func (w *Watchdog) WithClock(c clock.Clock) *Watchdog {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.clock = clock.OrReal(c)
	return w
}

// WithScheduler replaces time.AfterFunc.
func (w *Watchdog) WithScheduler(s Scheduler) *Watchdog {
	w.mu.Lock()
	defer w.mu.Unlock()
	if s == nil {
		s = realScheduler
	}
	w.schedule = s
	return w
}

// Arm starts the idle countdown. Arming an armed watchdog is a no-op.
func (w *Watchdog) Arm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.armed {
		return
	}
	w.armed = true
	w.last = w.clock.Now()
	w.startIdleLocked()
}

// Disarm cancels any pending warning or timeout.
func (w *Watchdog) Disarm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.armed = false
	w.warned = false
	w.gen++
	w.stopLocked()
}

// Activity records user input. It restarts the idle countdown and dismisses a
// shown warning. Input within the debounce window of the last accepted
// activity is ignored. Reports whether the activity was accepted.
func (w *Watchdog) Activity() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.armed {
		return false
	}
	now := w.clock.Now()
	if !w.warned && now.Sub(w.last) < w.debounce {
		return false
	}
	w.last = now
	w.warned = false
	w.startIdleLocked()
	return true
}

// Armed reports whether a countdown is running.
func (w *Watchdog) Armed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.armed
}

// Warning reports whether the warning is currently shown.
func (w *Watchdog) Warning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.warned
}

func (w *Watchdog) stopLocked() {
	if w.pending != nil {
		w.pending.Stop()
		w.pending = nil
	}
}

func (w *Watchdog) startIdleLocked() {
	w.stopLocked()
	w.gen++
	gen := w.gen
	w.pending = w.schedule(w.idle, func() { w.fireIdle(gen) })
}

func (w *Watchdog) fireIdle(gen uint64) {
	w.mu.Lock()
	if !w.armed || gen != w.gen {
		w.mu.Unlock()
		return
	}
	w.warned = true
	w.gen++
	next := w.gen
	w.pending = w.schedule(w.warning, func() { w.fireTimeout(next) })
	onWarn, remaining := w.onWarn, w.warning
	w.mu.Unlock()

	if onWarn != nil {
		onWarn(remaining)
	}
}

func (w *Watchdog) fireTimeout(gen uint64) {
	w.mu.Lock()
	if !w.armed || gen != w.gen {
		w.mu.Unlock()
		return
	}
	w.armed = false
	w.warned = false
	w.gen++
	w.pending = nil
	onTimeout := w.onTimeout
	w.mu.Unlock()

	if onTimeout != nil {
		onTimeout()
	}
}
