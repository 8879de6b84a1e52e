package watchdog

import (
	"sync"
	"testing"
	"time"

	"github.com/greenscreen-pictures/kiosk/internal/clock"
)

// --- Mock implementations ---

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) schedule(d time.Duration, f func()) Stopper {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

// fireLatest runs the most recently scheduled timer, even if it was stopped,
// to model a timer that already fired when Stop raced it.
func (s *fakeScheduler) fireLatest(t *testing.T) *fakeTimer {
	t.Helper()
	s.mu.Lock()
	if len(s.timers) == 0 {
		s.mu.Unlock()
		t.Fatal("no timer scheduled")
	}
	tm := s.timers[len(s.timers)-1]
	s.mu.Unlock()
	tm.f()
	return tm
}

func (s *fakeScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

type harness struct {
	w        *Watchdog
	sched    *fakeScheduler
	now      time.Time
	warns    int
	timeouts int
}

func newHarness() *harness {
	h := &harness{sched: &fakeScheduler{}, now: time.Unix(1_700_000_000, 0)}
	h.w = New(30*time.Second, 20*time.Second, 200*time.Millisecond,
		func(time.Duration) { h.warns++ },
		func() { h.timeouts++ },
	).WithClock(clock.Func(func() time.Time { return h.now })).WithScheduler(h.sched.schedule)
	return h
}

func (h *harness) advance(d time.Duration) { h.now = h.now.Add(d) }

// --- Tests ---

func TestWatchdog_WarnThenTimeout(t *testing.T) {
	h := newHarness()
	h.w.Arm()

	idle := h.sched.fireLatest(t)
	if idle.d != 30*time.Second {
		t.Errorf("idle timer: got %v, want 30s", idle.d)
	}
	if h.warns != 1 || !h.w.Warning() {
		t.Fatalf("expected warning, warns=%d", h.warns)
	}

	countdown := h.sched.fireLatest(t)
	if countdown.d != 20*time.Second {
		t.Errorf("warning timer: got %v, want 20s", countdown.d)
	}
	if h.timeouts != 1 {
		t.Fatalf("expected timeout, got %d", h.timeouts)
	}
	if h.w.Armed() || h.w.Warning() {
		t.Error("watchdog should be disarmed after timeout")
	}
}

func TestWatchdog_ActivitySupersedesPendingTimer(t *testing.T) {
	h := newHarness()
	h.w.Arm()
	h.advance(time.Second)

	if !h.w.Activity() {
		t.Fatal("activity should be accepted")
	}
	first := h.sched.timers[0]
	if !first.stopped {
		t.Error("previous idle timer should be stopped")
	}

	// A stale timer that fires anyway must be ignored.
	first.f()
	if h.warns != 0 {
		t.Errorf("stale timer raised a warning")
	}

	h.sched.fireLatest(t)
	if h.warns != 1 {
		t.Errorf("current timer should warn, warns=%d", h.warns)
	}
}

func TestWatchdog_Debounce(t *testing.T) {
	h := newHarness()
	h.w.Arm()
	before := h.sched.count()

	h.advance(100 * time.Millisecond)
	if h.w.Activity() {
		t.Error("activity inside the debounce window should be ignored")
	}
	if h.sched.count() != before {
		t.Error("ignored activity must not reschedule")
	}

	h.advance(150 * time.Millisecond)
	if !h.w.Activity() {
		t.Error("activity after the debounce window should be accepted")
	}
}

func TestWatchdog_ActivityDismissesWarning(t *testing.T) {
	h := newHarness()
	h.w.Arm()
	h.sched.fireLatest(t)
	countdown := h.sched.timers[len(h.sched.timers)-1]

	// Dismissing the warning is never debounced.
	if !h.w.Activity() {
		t.Fatal("activity during warning should be accepted")
	}
	if h.w.Warning() {
		t.Error("warning should be dismissed")
	}

	countdown.f()
	if h.timeouts != 0 {
		t.Error("dismissed countdown must not time out")
	}
}

func TestWatchdog_DisarmCancels(t *testing.T) {
	h := newHarness()
	h.w.Arm()
	idle := h.sched.timers[0]

	h.w.Disarm()
	if !idle.stopped {
		t.Error("disarm should stop the pending timer")
	}
	idle.f()
	if h.warns != 0 || h.timeouts != 0 {
		t.Error("callbacks fired after disarm")
	}
	if h.w.Activity() {
		t.Error("activity on a disarmed watchdog should be ignored")
	}
}

func TestWatchdog_ArmIsIdempotent(t *testing.T) {
	h := newHarness()
	h.w.Arm()
	h.w.Arm()
	if got := h.sched.count(); got != 1 {
		t.Errorf("scheduled timers: got %d, want 1", got)
	}
}

func TestWatchdog_RealTimers(t *testing.T) {
	done := make(chan struct{})
	w := New(5*time.Millisecond, 5*time.Millisecond, time.Millisecond, nil, func() { close(done) })
	w.Arm()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout callback never ran")
	}
}
