package tui

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jmylchreest/bigsnackbar/internal/snackbar"
)

// ErrNoAction is returned by Invoke when no visible action occupies the slot.
var ErrNoAction = errors.New("no action in slot")

// Snapshot is what the snackbar bar currently shows.
type Snapshot struct {
	Message        string
	Labels         []string
	Visible        bool
	ActionsVisible bool
}

// Bridge is the Renderer behind the TUI. It records the display state and
// signals the program through Changed; the model pulls a Snapshot on each
// signal, so renderer calls never wait on the event loop.
type Bridge struct {
	slots   int
	changed chan struct{}

	mu      sync.Mutex
	snap    Snapshot
	actions []snackbar.Action
}

// NewBridge creates a Bridge with a fixed number of action slots.
func NewBridge(slots int) *Bridge {
	return &Bridge{
		slots:   slots,
		changed: make(chan struct{}, 1),
	}
}

// ActionSlots implements snackbar.SlotRenderer.
func (b *Bridge) ActionSlots() int {
	return b.slots
}

// Changed is signalled after every display change. Signals coalesce.
func (b *Bridge) Changed() <-chan struct{} {
	return b.changed
}

// Snapshot returns a copy of the display state.
func (b *Bridge) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.snap
	s.Labels = append([]string(nil), b.snap.Labels...)
	return s
}

func (b *Bridge) RenderMessage(text string) {
	b.update(func() { b.snap.Message = text })
}

func (b *Bridge) RenderActions(actions []snackbar.Action) {
	b.update(func() {
		b.actions = append([]snackbar.Action(nil), actions...)
		b.snap.Labels = make([]string, len(actions))
		for i, a := range actions {
			b.snap.Labels[i] = a.Label
		}
	})
}

func (b *Bridge) SetVisible(visible bool) {
	b.update(func() { b.snap.Visible = visible })
}

func (b *Bridge) SetActionsVisible(visible bool) {
	b.update(func() { b.snap.ActionsVisible = visible })
}

func (b *Bridge) ClearMessage() {
	b.update(func() { b.snap.Message = "" })
}

func (b *Bridge) ClearActions() {
	b.update(func() {
		b.actions = nil
		b.snap.Labels = nil
	})
}

// Invoke runs the handler in the 1-based slot and returns its label.
func (b *Bridge) Invoke(slot int) (string, error) {
	b.mu.Lock()
	if !b.snap.Visible || !b.snap.ActionsVisible || slot < 1 || slot > len(b.actions) {
		b.mu.Unlock()
		return "", fmt.Errorf("slot %d: %w", slot, ErrNoAction)
	}
	a := b.actions[slot-1]
	b.mu.Unlock()

	a.Handler()
	return a.Label, nil
}

func (b *Bridge) update(fn func()) {
	b.mu.Lock()
	fn()
	b.mu.Unlock()

	select {
	case b.changed <- struct{}{}:
	default:
	}
}
