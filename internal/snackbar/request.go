package snackbar

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Validation errors. All of them match ErrInvalidRequest with errors.Is.
var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrEmptyMessage       = fmt.Errorf("%w: message cannot be empty", ErrInvalidRequest)
	ErrInvalidAction      = fmt.Errorf("%w: action needs a label and a handler", ErrInvalidRequest)
	ErrActionSlotMismatch = fmt.Errorf("%w: action count does not match renderer slots", ErrInvalidRequest)
	ErrInvalidTimeout     = fmt.Errorf("%w: timeout must not be negative", ErrInvalidRequest)
)

// Action is a labelled button bound to a handler.
type Action struct {
	Label   string
	Handler func()
}

// Request is a single notification submitted to a Queue.
type Request struct {
	// ID is assigned on submit when empty.
	ID      string
	Message string
	Actions []Action
	// Timeout overrides the queue default. Zero means unset.
	Timeout time.Duration
}

// Labels returns the action labels in slot order.
func (r Request) Labels() []string {
	labels := make([]string, 0, len(r.Actions))
	for _, a := range r.Actions {
		labels = append(labels, a.Label)
	}
	return labels
}

// Validate checks the request shape. slots is the renderer's fixed number of
// action slots, or -1 when the renderer is not slot based.
func (r Request) Validate(slots int) error {
	if r.Message == "" {
		return ErrEmptyMessage
	}
	if r.Timeout < 0 {
		return ErrInvalidTimeout
	}
	for i, a := range r.Actions {
		if a.Label == "" || a.Handler == nil {
			return fmt.Errorf("action %d: %w", i, ErrInvalidAction)
		}
	}
	if slots >= 0 && len(r.Actions) > 0 && len(r.Actions) != slots {
		return fmt.Errorf("got %d actions for %d slots: %w", len(r.Actions), slots, ErrActionSlotMismatch)
	}
	return nil
}

// NewID returns a fresh request ID. Callers that need the ID before Submit
// (for example to capture it in an action handler) set Request.ID with it.
func NewID() (string, error) {
	return newID(time.Now())
}

func newID(now time.Time) (string, error) {
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to generate ULID: %w", err)
	}
	return id.String(), nil
}
