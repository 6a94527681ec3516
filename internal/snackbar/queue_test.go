package snackbar

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T, r Renderer, opts ...Option) (*Queue, *manualClock) {
	t.Helper()
	clock := newManualClock()
	opts = append([]Option{
		WithClock(clock),
		WithDefaultTimeout(time.Second),
		WithGracePeriod(250 * time.Millisecond),
	}, opts...)
	return New(r, opts...), clock
}

func messagesOf(reqs []Request) []string {
	msgs := make([]string, 0, len(reqs))
	for _, r := range reqs {
		msgs = append(msgs, r.Message)
	}
	return msgs
}

func TestNew_HidesActionSlots(t *testing.T) {
	r := &recorder{}
	q, _ := newTestQueue(t, r)

	assert.Equal(t, StateIdle, q.State())
	assert.Equal(t, []string{"actions-hide"}, r.Calls())
}

func TestQueue_SubmitWhileIdleDisplaysFirstAndQueuesRest(t *testing.T) {
	r := &recorder{}
	q, _ := newTestQueue(t, r)
	r.Calls()

	for _, msg := range []string{"A", "B", "C"} {
		_, err := q.Submit(Request{Message: msg})
		require.NoError(t, err)
	}

	assert.Equal(t, StateDisplaying, q.State())
	cur, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, "A", cur.Message)
	assert.Equal(t, []string{"B", "C"}, messagesOf(q.Pending()))
	assert.Equal(t, 2, q.Len())

	// Queued submits have no display side effect.
	assert.Equal(t, []string{"message:A", "show"}, r.Calls())
}

func TestQueue_FullCycleAdvancesInFIFOOrder(t *testing.T) {
	r := &recorder{}
	q, clock := newTestQueue(t, r)

	_, err := q.Submit(Request{Message: "A"})
	require.NoError(t, err)
	_, err = q.Submit(Request{Message: "B"})
	require.NoError(t, err)

	clock.Advance(time.Second)
	assert.Equal(t, StateDismissing, q.State())
	cur, _ := q.Current()
	assert.Equal(t, "A", cur.Message, "current is held until the grace period ends")

	clock.Advance(249 * time.Millisecond)
	assert.Equal(t, StateDismissing, q.State())

	clock.Advance(time.Millisecond)
	assert.Equal(t, StateDisplaying, q.State())
	cur, _ = q.Current()
	assert.Equal(t, "B", cur.Message)
	assert.Empty(t, q.Pending())

	clock.Advance(1250 * time.Millisecond)
	assert.Equal(t, StateIdle, q.State())
	_, ok := q.Current()
	assert.False(t, ok)
	assert.Equal(t, []string{"A", "B"}, r.Messages())
}

func TestQueue_DisplayAndDismissSequence(t *testing.T) {
	r := &slotRecorder{recorder: &recorder{}, slots: 2}
	q, clock := newTestQueue(t, r)
	r.Calls()

	_, err := q.Submit(Request{
		Message: "X",
		Actions: []Action{{Label: "Yes", Handler: noop}, {Label: "No", Handler: noop}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"message:X", "actions:Yes,No", "actions-show", "show"}, r.Calls())

	clock.Advance(time.Second)
	assert.Equal(t, []string{"hide"}, r.Calls())

	clock.Advance(250 * time.Millisecond)
	assert.Equal(t, []string{"clear-message", "clear-actions", "actions-hide"}, r.Calls())
	assert.Equal(t, StateIdle, q.State())
}

func TestQueue_ActionsBoundInOrder(t *testing.T) {
	var got []string
	yes := func() { got = append(got, "yes") }
	no := func() { got = append(got, "no") }

	r := &slotRecorder{recorder: &recorder{}, slots: 2}
	q, _ := newTestQueue(t, r)

	_, err := q.Submit(Request{
		Message: "X",
		Actions: []Action{{Label: "Yes", Handler: yes}, {Label: "No", Handler: no}},
	})
	require.NoError(t, err)

	require.Len(t, r.bound, 2)
	assert.Equal(t, "Yes", r.bound[0].Label)
	assert.Equal(t, "No", r.bound[1].Label)
	r.bound[0].Handler()
	r.bound[1].Handler()
	assert.Equal(t, []string{"yes", "no"}, got)
}

func TestQueue_ActionSlotMismatch(t *testing.T) {
	r := &slotRecorder{recorder: &recorder{}, slots: 1}
	q, _ := newTestQueue(t, r)
	r.Calls()

	_, err := q.Submit(Request{
		Message: "X",
		Actions: []Action{{Label: "Yes", Handler: noop}, {Label: "No", Handler: noop}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.ErrorIs(t, err, ErrActionSlotMismatch)
	assert.Equal(t, StateIdle, q.State())
	assert.Empty(t, r.Calls())
}

func TestQueue_InvalidRequestsLeaveStateUnchanged(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{
			name:    "empty message",
			req:     Request{},
			wantErr: ErrEmptyMessage,
		},
		{
			name:    "action without label",
			req:     Request{Message: "m", Actions: []Action{{Handler: noop}}},
			wantErr: ErrInvalidAction,
		},
		{
			name:    "action without handler",
			req:     Request{Message: "m", Actions: []Action{{Label: "Undo"}}},
			wantErr: ErrInvalidAction,
		},
		{
			name:    "negative timeout",
			req:     Request{Message: "m", Timeout: -time.Second},
			wantErr: ErrInvalidTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recorder{}
			q, _ := newTestQueue(t, r)

			_, err := q.Submit(Request{Message: "visible"})
			require.NoError(t, err)
			_, err = q.Submit(Request{Message: "waiting"})
			require.NoError(t, err)
			r.Calls()

			_, err = q.Submit(tt.req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
			assert.ErrorIs(t, err, tt.wantErr)

			assert.Equal(t, StateDisplaying, q.State())
			assert.Equal(t, []string{"waiting"}, messagesOf(q.Pending()))
			assert.Empty(t, r.Calls())
		})
	}
}

func TestQueue_CloseDuringDisplaying(t *testing.T) {
	r := &recorder{}
	q, clock := newTestQueue(t, r)

	_, err := q.Submit(Request{Message: "A", Timeout: 10 * time.Second})
	require.NoError(t, err)

	clock.Advance(time.Second)
	assert.True(t, q.Close())
	assert.Equal(t, StateDismissing, q.State())

	// A second close while dismissing is a no-op.
	assert.False(t, q.Close())

	clock.Advance(250 * time.Millisecond)
	assert.Equal(t, StateIdle, q.State())
	r.Calls()

	// The original timeout must not fire into a later cycle.
	clock.Advance(20 * time.Second)
	assert.Empty(t, r.Calls())
	assert.False(t, q.Close())
}

func TestQueue_ClosedTimeoutDoesNotCutNextCycle(t *testing.T) {
	r := &recorder{}
	q, clock := newTestQueue(t, r)

	_, err := q.Submit(Request{Message: "A"})
	require.NoError(t, err)
	_, err = q.Submit(Request{Message: "B"})
	require.NoError(t, err)

	clock.Advance(500 * time.Millisecond)
	require.True(t, q.Close())
	clock.Advance(250 * time.Millisecond)

	cur, _ := q.Current()
	require.Equal(t, "B", cur.Message)

	// A's original deadline (t=1s) passes; B must keep its full second.
	clock.Advance(500 * time.Millisecond)
	assert.Equal(t, StateDisplaying, q.State())

	clock.Advance(500 * time.Millisecond)
	assert.Equal(t, StateDismissing, q.State())
}

func TestQueue_NoTimeoutStaysUntilClose(t *testing.T) {
	r := &recorder{}
	q, clock := newTestQueue(t, r, WithDefaultTimeout(0))

	_, err := q.Submit(Request{Message: "sticky"})
	require.NoError(t, err)

	clock.Advance(24 * time.Hour)
	assert.Equal(t, StateDisplaying, q.State())

	require.True(t, q.Close())
	clock.Advance(250 * time.Millisecond)
	assert.Equal(t, StateIdle, q.State())
}

func TestQueue_RequestTimeoutOverridesDefault(t *testing.T) {
	r := &recorder{}
	q, clock := newTestQueue(t, r, WithDefaultTimeout(0))

	_, err := q.Submit(Request{Message: "short", Timeout: 100 * time.Millisecond})
	require.NoError(t, err)

	clock.Advance(100 * time.Millisecond)
	assert.Equal(t, StateDismissing, q.State())
}

func TestQueue_SetDefaultTimeoutAppliesToNextCycle(t *testing.T) {
	r := &recorder{}
	q, clock := newTestQueue(t, r)

	_, err := q.Submit(Request{Message: "A"})
	require.NoError(t, err)
	_, err = q.Submit(Request{Message: "B"})
	require.NoError(t, err)

	q.SetDefaultTimeout(5 * time.Second)
	q.SetGracePeriod(100 * time.Millisecond)

	clock.Advance(time.Second)
	cur, _ := q.Current()
	assert.Equal(t, "A", cur.Message)
	assert.Equal(t, StateDismissing, q.State())

	clock.Advance(250 * time.Millisecond)
	cur, _ = q.Current()
	assert.Equal(t, "B", cur.Message)

	// B was shown at 1.1s with the new 5s default.
	clock.Advance(4 * time.Second)
	assert.Equal(t, StateDisplaying, q.State())
	clock.Advance(time.Second)
	assert.Equal(t, StateIdle, q.State())
}

func TestQueue_CloseAll(t *testing.T) {
	r := &recorder{}
	q, clock := newTestQueue(t, r)

	var mu sync.Mutex
	var kinds []EventKind
	q.Subscribe(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, ev.Kind)
	})

	for _, msg := range []string{"A", "B", "C"} {
		_, err := q.Submit(Request{Message: msg})
		require.NoError(t, err)
	}

	assert.Equal(t, 2, q.CloseAll())
	assert.Equal(t, StateDismissing, q.State())
	assert.Empty(t, q.Pending())

	clock.Advance(250 * time.Millisecond)
	assert.Equal(t, StateIdle, q.State())
	assert.Equal(t, []string{"A"}, r.Messages())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []EventKind{
		EventShown, EventQueued, EventQueued,
		EventDropped, EventDropped, EventDismissing, EventDismissed,
	}, kinds)
}

func TestQueue_EventsCarryReasonAndRequest(t *testing.T) {
	r := &recorder{}
	q, clock := newTestQueue(t, r)

	var events []Event
	q.Subscribe(func(ev Event) { events = append(events, ev) })

	id, err := q.Submit(Request{Message: "A"})
	require.NoError(t, err)
	clock.Advance(1250 * time.Millisecond)

	_, err = q.Submit(Request{ID: "fixed", Message: "B"})
	require.NoError(t, err)
	q.Close()
	clock.Advance(250 * time.Millisecond)

	require.Len(t, events, 6)
	assert.Equal(t, EventShown, events[0].Kind)
	assert.Equal(t, id, events[0].Request.ID)
	assert.Equal(t, EventDismissed, events[2].Kind)
	assert.Equal(t, DismissExpired, events[2].Reason)
	assert.Equal(t, "fixed", events[3].Request.ID)
	assert.Equal(t, DismissClosed, events[5].Reason)
	assert.Equal(t, events[3].At.Add(250*time.Millisecond), events[5].At)
}

func TestQueue_ListenerMayResubmit(t *testing.T) {
	r := &recorder{}
	q, clock := newTestQueue(t, r)

	resubmitted := false
	q.Subscribe(func(ev Event) {
		if ev.Kind == EventDismissed && !resubmitted {
			resubmitted = true
			_, err := q.Submit(Request{Message: "again"})
			assert.NoError(t, err)
		}
	})

	_, err := q.Submit(Request{Message: "first"})
	require.NoError(t, err)
	clock.Advance(1250 * time.Millisecond)

	cur, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, "again", cur.Message)
}

func TestQueue_AssignsIDs(t *testing.T) {
	r := &recorder{}
	q, _ := newTestQueue(t, r)

	id1, err := q.Submit(Request{Message: "A"})
	require.NoError(t, err)
	id2, err := q.Submit(Request{Message: "B"})
	require.NoError(t, err)
	id3, err := q.Submit(Request{ID: "mine", Message: "C"})
	require.NoError(t, err)

	assert.Len(t, id1, 26)
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, "mine", id3)
	assert.Equal(t, id2, q.Pending()[0].ID)
}

func TestQueue_Wait(t *testing.T) {
	r := &recorder{}
	q, clock := newTestQueue(t, r)

	// Idle queue returns immediately.
	require.NoError(t, q.Wait(context.Background()))

	_, err := q.Submit(Request{Message: "A"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, q.Wait(ctx), context.Canceled)

	clock.Advance(1250 * time.Millisecond)
	assert.NoError(t, q.Wait(context.Background()))
}

func TestQueue_SystemClockDrains(t *testing.T) {
	r := &recorder{}
	q := New(r, WithDefaultTimeout(5*time.Millisecond), WithGracePeriod(time.Millisecond))

	for _, msg := range []string{"A", "B", "C"} {
		_, err := q.Submit(Request{Message: msg})
		require.NoError(t, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Wait(ctx))

	assert.Equal(t, StateIdle, q.State())
	assert.Equal(t, []string{"A", "B", "C"}, r.Messages())
}

func TestQueue_WaitAfterListeners(t *testing.T) {
	r := &recorder{}
	q := New(r, WithDefaultTimeout(time.Millisecond), WithGracePeriod(0))

	var (
		mu   sync.Mutex
		seen []EventKind
	)
	q.Subscribe(func(ev Event) {
		if ev.Kind == EventDismissed {
			time.Sleep(5 * time.Millisecond)
		}
		mu.Lock()
		seen = append(seen, ev.Kind)
		mu.Unlock()
	})

	_, err := q.Submit(Request{Message: "slow listener"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Wait(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, seen, EventDismissed)
}

func TestQueue_EventOrderAcrossGoroutines(t *testing.T) {
	r := &recorder{}
	q := New(r, WithDefaultTimeout(time.Millisecond), WithGracePeriod(0))

	var (
		mu   sync.Mutex
		seen []EventKind
	)
	q.Subscribe(func(ev Event) {
		if ev.Kind == EventShown {
			time.Sleep(50 * time.Millisecond)
		}
		mu.Lock()
		seen = append(seen, ev.Kind)
		mu.Unlock()
	})

	go func() {
		_, err := q.Submit(Request{Message: "A"})
		assert.NoError(t, err)
	}()
	require.Eventually(t, func() bool {
		return len(r.Messages()) > 0
	}, 5*time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Wait(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []EventKind{EventShown, EventDismissing, EventDismissed}, seen)
}

func TestQueue_NestedEventsFollowCurrent(t *testing.T) {
	r := &recorder{}
	q, clock := newTestQueue(t, r)

	var kinds []string
	q.Subscribe(func(ev Event) {
		kinds = append(kinds, ev.Kind.String()+":"+ev.Request.Message)
		if ev.Kind == EventShown && ev.Request.Message == "A" {
			q.Close()
		}
	})
	q.Subscribe(func(ev Event) {
		kinds = append(kinds, "second-"+ev.Kind.String())
	})

	_, err := q.Submit(Request{Message: "A"})
	require.NoError(t, err)
	clock.Advance(250 * time.Millisecond)

	assert.Equal(t, []string{
		"shown:A", "second-shown",
		"dismissing:A", "second-dismissing",
		"dismissed:A", "second-dismissed",
	}, kinds)
}
