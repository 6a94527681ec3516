package snackbar

import (
	"container/list"
	"context"
	"log/slog"
	"sync"
	"time"
)

// Default timings.
const (
	// DefaultTimeout is how long a notification stays visible when neither the
	// request nor the queue configuration sets a timeout.
	DefaultTimeout = 2750 * time.Millisecond
	// DefaultGracePeriod is the time reserved for the hide animation.
	DefaultGracePeriod = 250 * time.Millisecond
)

// entry is a request plus queue bookkeeping.
type entry struct {
	req         Request
	submittedAt time.Time
}

// Queue shows one notification at a time through a Renderer and queues the
// rest in submission order.
type Queue struct {
	renderer Renderer
	clock    Clock
	logger   *slog.Logger

	mu             sync.Mutex
	defaultTimeout time.Duration
	gracePeriod    time.Duration

	state   State
	current *entry
	pending *list.List // of *entry, oldest first

	// cycle is bumped for every displayed request; timer callbacks carrying an
	// older cycle are ignored.
	cycle uint64
	timer Timer

	listeners []Listener
	events    []Event

	// outbox holds batches awaiting delivery, oldest first. One goroutine at
	// a time drains it, so listeners see events in emission order.
	outbox     []batch
	delivering bool

	idleCh     chan struct{}
	idleClosed bool
	// idleDone is closed once the events emitted before it have been delivered.
	idleDone chan struct{}
}

// batch is the output of one locked section.
type batch struct {
	events    []Event
	listeners []Listener
	idleDone  chan struct{}
}

// Option configures a Queue.
type Option func(*Queue)

// WithClock sets the clock used for timeouts.
func WithClock(c Clock) Option {
	return func(q *Queue) {
		q.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) {
		q.logger = l
	}
}

// WithDefaultTimeout sets the timeout used by requests that don't carry one.
// Zero disables auto-dismiss for those requests.
func WithDefaultTimeout(d time.Duration) Option {
	return func(q *Queue) {
		q.defaultTimeout = d
	}
}

// WithGracePeriod sets the delay between hiding a notification and clearing it.
func WithGracePeriod(d time.Duration) Option {
	return func(q *Queue) {
		q.gracePeriod = d
	}
}

// New creates a Queue bound to r. The action slots start hidden.
func New(r Renderer, opts ...Option) *Queue {
	q := &Queue{
		renderer:       r,
		clock:          SystemClock(),
		defaultTimeout: DefaultTimeout,
		gracePeriod:    DefaultGracePeriod,
		pending:        list.New(),
		idleCh:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.logger == nil {
		q.logger = slog.Default()
	}
	if q.defaultTimeout < 0 {
		q.defaultTimeout = 0
	}
	if q.gracePeriod < 0 {
		q.gracePeriod = 0
	}

	close(q.idleCh)
	q.idleClosed = true

	r.SetActionsVisible(false)
	return q
}

// Subscribe registers a listener for queue events.
func (q *Queue) Subscribe(l Listener) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.listeners = append(q.listeners, l)
}

// Submit validates req and either displays it immediately or appends it to
// the pending queue. It returns the request ID.
func (q *Queue) Submit(req Request) (string, error) {
	if err := req.Validate(ActionSlots(q.renderer)); err != nil {
		return "", err
	}

	q.mu.Lock()
	now := q.clock.Now()
	if req.ID == "" {
		id, err := newID(now)
		if err != nil {
			q.mu.Unlock()
			return "", err
		}
		req.ID = id
	}
	if len(req.Actions) > 0 {
		req.Actions = append([]Action(nil), req.Actions...)
	}

	e := &entry{req: req, submittedAt: now}
	if q.state != StateIdle {
		q.pending.PushBack(e)
		q.emitLocked(EventQueued, e, DismissNone)
		q.logger.Debug("queued notification",
			"request_id", req.ID,
			"state", q.state.String(),
			"pending", q.pending.Len(),
		)
		q.unlock()
		return req.ID, nil
	}

	q.showLocked(e)
	q.unlock()
	return req.ID, nil
}

// Close starts the dismissal sequence for the visible notification. It
// returns false if nothing is displayed or a dismissal is already running.
func (q *Queue) Close() bool {
	q.mu.Lock()
	if q.state != StateDisplaying {
		q.mu.Unlock()
		return false
	}
	q.dismissLocked(DismissClosed)
	q.unlock()
	return true
}

// CloseAll drops every pending request and dismisses the visible one.
// It returns the number of dropped pending requests.
func (q *Queue) CloseAll() int {
	q.mu.Lock()
	dropped := q.pending.Len()
	for e := q.pending.Front(); e != nil; e = e.Next() {
		q.emitLocked(EventDropped, e.Value.(*entry), DismissCleared)
	}
	q.pending.Init()

	if q.state == StateDisplaying {
		q.dismissLocked(DismissCleared)
	}

	q.logger.Debug("closed all notifications", "dropped", dropped)
	q.unlock()
	return dropped
}

// Wait blocks until the queue is idle with nothing pending and listeners
// have received the final events.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	ch := q.idleCh
	q.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current display state.
func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Current returns the request being displayed or dismissed.
func (q *Queue) Current() (Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current == nil {
		return Request{}, false
	}
	return q.current.req, true
}

// Pending returns the queued requests, oldest first.
func (q *Queue) Pending() []Request {
	q.mu.Lock()
	defer q.mu.Unlock()

	reqs := make([]Request, 0, q.pending.Len())
	for e := q.pending.Front(); e != nil; e = e.Next() {
		reqs = append(reqs, e.Value.(*entry).req)
	}
	return reqs
}

// Len returns the number of pending requests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.Len()
}

// SetDefaultTimeout changes the default timeout for requests displayed from now on.
func (q *Queue) SetDefaultTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.defaultTimeout = d
}

// SetGracePeriod changes the grace period for dismissals started from now on.
func (q *Queue) SetGracePeriod(d time.Duration) {
	if d < 0 {
		d = 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.gracePeriod = d
}

// showLocked runs the display sequence for e. Caller must hold the lock.
func (q *Queue) showLocked(e *entry) {
	q.current = e
	q.state = StateDisplaying
	q.cycle++
	cycle := q.cycle
	q.markBusyLocked()

	q.renderer.RenderMessage(e.req.Message)
	if len(e.req.Actions) > 0 {
		q.renderer.RenderActions(e.req.Actions)
		q.renderer.SetActionsVisible(true)
	}
	q.renderer.SetVisible(true)

	timeout := e.req.Timeout
	if timeout == 0 {
		timeout = q.defaultTimeout
	}
	if timeout > 0 {
		q.timer = q.clock.AfterFunc(timeout, func() {
			q.expire(cycle)
		})
	}

	q.emitLocked(EventShown, e, DismissNone)
	q.logger.Debug("showed notification",
		"request_id", e.req.ID,
		"actions", len(e.req.Actions),
		"timeout_ms", timeout.Milliseconds(),
		"pending", q.pending.Len(),
	)
}

// expire is the auto-dismiss callback for a display cycle.
func (q *Queue) expire(cycle uint64) {
	q.mu.Lock()
	if q.cycle != cycle || q.state != StateDisplaying {
		q.mu.Unlock()
		return
	}
	q.timer = nil
	q.dismissLocked(DismissExpired)
	q.unlock()
}

// dismissLocked hides the current notification and schedules the cleanup
// after the grace period. Caller must hold the lock.
func (q *Queue) dismissLocked(reason DismissReason) {
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	q.state = StateDismissing
	q.renderer.SetVisible(false)
	q.emitLocked(EventDismissing, q.current, reason)

	cycle := q.cycle
	q.timer = q.clock.AfterFunc(q.gracePeriod, func() {
		q.finishDismiss(cycle, reason)
	})

	q.logger.Debug("dismissing notification",
		"request_id", q.current.req.ID,
		"reason", reason.String(),
		"grace_ms", q.gracePeriod.Milliseconds(),
	)
}

// finishDismiss clears the display once the grace period has elapsed and
// advances to the next pending request.
func (q *Queue) finishDismiss(cycle uint64, reason DismissReason) {
	q.mu.Lock()
	if q.cycle != cycle || q.state != StateDismissing {
		q.mu.Unlock()
		return
	}
	q.timer = nil

	q.renderer.ClearMessage()
	q.renderer.ClearActions()
	q.renderer.SetActionsVisible(false)

	done := q.current
	q.current = nil
	q.state = StateIdle
	q.emitLocked(EventDismissed, done, reason)

	q.advanceLocked()
	q.unlock()
}

// advanceLocked displays the oldest pending request, if any. Caller must hold the lock.
func (q *Queue) advanceLocked() {
	front := q.pending.Front()
	if front == nil {
		q.markIdleLocked()
		return
	}
	q.pending.Remove(front)
	q.showLocked(front.Value.(*entry))
}

func (q *Queue) markBusyLocked() {
	if q.idleClosed {
		q.idleCh = make(chan struct{})
		q.idleClosed = false
	}
}

func (q *Queue) markIdleLocked() {
	if !q.idleClosed {
		q.idleDone = q.idleCh
		q.idleClosed = true
	}
}

// emitLocked buffers an event for delivery once the lock is released.
func (q *Queue) emitLocked(kind EventKind, e *entry, reason DismissReason) {
	if len(q.listeners) == 0 {
		return
	}
	q.events = append(q.events, Event{
		Kind:        kind,
		Request:     e.req,
		Reason:      reason,
		At:          q.clock.Now(),
		SubmittedAt: e.submittedAt,
	})
}

// unlock queues the buffered events and releases the lock. If no other
// goroutine is delivering, this one drains the outbox, including batches
// queued meanwhile by timers or by listeners calling back into the queue.
func (q *Queue) unlock() {
	if len(q.events) > 0 || q.idleDone != nil {
		q.outbox = append(q.outbox, batch{
			events:    q.events,
			listeners: q.listeners,
			idleDone:  q.idleDone,
		})
		q.events = nil
		q.idleDone = nil
	}
	if q.delivering || len(q.outbox) == 0 {
		q.mu.Unlock()
		return
	}
	q.delivering = true

	for {
		b := q.outbox[0]
		q.outbox[0] = batch{}
		q.outbox = q.outbox[1:]
		q.mu.Unlock()

		for _, ev := range b.events {
			for _, l := range b.listeners {
				l(ev)
			}
		}
		if b.idleDone != nil {
			close(b.idleDone)
		}

		q.mu.Lock()
		if len(q.outbox) == 0 {
			q.delivering = false
			q.mu.Unlock()
			return
		}
	}
}
