package snackbar

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_Validate(t *testing.T) {
	two := []Action{{Label: "Yes", Handler: noop}, {Label: "No", Handler: noop}}

	tests := []struct {
		name    string
		req     Request
		slots   int
		wantErr error
	}{
		{
			name:  "message only",
			req:   Request{Message: "saved"},
			slots: -1,
		},
		{
			name:  "no actions on slot renderer",
			req:   Request{Message: "saved"},
			slots: 1,
		},
		{
			name:  "actions match slots",
			req:   Request{Message: "delete?", Actions: two},
			slots: 2,
		},
		{
			name:  "any action count without slots",
			req:   Request{Message: "delete?", Actions: two},
			slots: -1,
		},
		{
			name:    "too many actions for slots",
			req:     Request{Message: "delete?", Actions: two},
			slots:   1,
			wantErr: ErrActionSlotMismatch,
		},
		{
			name:    "actions on zero slot renderer",
			req:     Request{Message: "delete?", Actions: two[:1]},
			slots:   0,
			wantErr: ErrActionSlotMismatch,
		},
		{
			name:    "empty message",
			req:     Request{Actions: two},
			slots:   2,
			wantErr: ErrEmptyMessage,
		},
		{
			name:    "negative timeout",
			req:     Request{Message: "m", Timeout: -time.Millisecond},
			slots:   -1,
			wantErr: ErrInvalidTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate(tt.slots)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestRequest_Labels(t *testing.T) {
	req := Request{Actions: []Action{{Label: "Undo", Handler: noop}, {Label: "Open", Handler: noop}}}
	assert.Equal(t, []string{"Undo", "Open"}, req.Labels())
	assert.Empty(t, Request{}.Labels())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "displaying", StateDisplaying.String())
	assert.Equal(t, "dismissing", StateDismissing.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestDismissReasonString(t *testing.T) {
	tests := []struct {
		reason   DismissReason
		expected string
	}{
		{DismissNone, ""},
		{DismissExpired, "expired"},
		{DismissClosed, "closed"},
		{DismissCleared, "cleared"},
		{DismissReason(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.reason.String())
		})
	}
}

func TestNewID(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	id, err := newID(now)
	require.NoError(t, err)

	parsed, err := ulid.ParseStrict(id)
	require.NoError(t, err)
	assert.Equal(t, ulid.Timestamp(now), parsed.Time())

	a, err := NewID()
	require.NoError(t, err)
	b, err := NewID()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
