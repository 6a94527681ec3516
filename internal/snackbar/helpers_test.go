package snackbar

import (
	"strings"
	"sync"
	"time"
)

// manualClock fires timers only when Advance is called.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	at      time.Time
	f       func()
	fired   bool
	stopped bool
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock forward, firing due timers in order.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *manualTimer
		for _, t := range c.timers {
			if t.fired || t.stopped || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.fired = true
		if next.at.After(c.now) {
			c.now = next.at
		}
		c.mu.Unlock()

		next.f()
	}
}

// recorder is a Renderer that logs every call.
type recorder struct {
	mu    sync.Mutex
	calls []string
	bound []Action
}

func (r *recorder) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) RenderMessage(text string) { r.record("message:" + text) }

func (r *recorder) RenderActions(actions []Action) {
	labels := make([]string, 0, len(actions))
	for _, a := range actions {
		labels = append(labels, a.Label)
	}
	r.mu.Lock()
	r.bound = actions
	r.mu.Unlock()
	r.record("actions:" + strings.Join(labels, ","))
}

func (r *recorder) SetVisible(visible bool) {
	if visible {
		r.record("show")
	} else {
		r.record("hide")
	}
}

func (r *recorder) SetActionsVisible(visible bool) {
	if visible {
		r.record("actions-show")
	} else {
		r.record("actions-hide")
	}
}

func (r *recorder) ClearMessage() { r.record("clear-message") }

func (r *recorder) ClearActions() {
	r.mu.Lock()
	r.bound = nil
	r.mu.Unlock()
	r.record("clear-actions")
}

// Calls returns the recorded calls and resets the log.
func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	calls := r.calls
	r.calls = nil
	return calls
}

// Messages returns the rendered messages in order.
func (r *recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var msgs []string
	for _, c := range r.calls {
		if text, ok := strings.CutPrefix(c, "message:"); ok {
			msgs = append(msgs, text)
		}
	}
	return msgs
}

// slotRecorder is a recorder with fixed action slots.
type slotRecorder struct {
	*recorder
	slots int
}

func (r *slotRecorder) ActionSlots() int { return r.slots }

func noop() {}
