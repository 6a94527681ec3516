package desktop

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/bigsnackbar/internal/snackbar"
)

const (
	actionKeyPrefix = "action-"

	// DefaultCallTimeout bounds each call to the notification daemon.
	DefaultCallTimeout = 2 * time.Second
)

// Options configures the notification sent to the daemon.
type Options struct {
	AppName string
	AppIcon string
	Urgency int
	// OnDismiss is called when the user or the daemon dismisses the visible
	// notification. Usually wired to Queue.Close.
	OnDismiss func()
	// CallTimeout bounds Notify and CloseNotification, which run with the
	// queue lock held. Zero means DefaultCallTimeout.
	CallTimeout time.Duration
	Logger      *slog.Logger
}

// Renderer shows notifications through a Notifier. The queue owns timing,
// so notifications are sent with no expiry.
type Renderer struct {
	notifier Notifier
	opts     Options
	logger   *slog.Logger

	mu             sync.Mutex
	message        string
	actions        []snackbar.Action
	actionsVisible bool
	id             uint32
}

// New creates a Renderer and subscribes it to n's signals.
func New(n Notifier, opts Options) *Renderer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	r := &Renderer{
		notifier: n,
		opts:     opts,
		logger:   logger,
	}
	n.Subscribe(r)
	return r
}

// SetDismissHandler replaces the dismiss hook.
func (r *Renderer) SetDismissHandler(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opts.OnDismiss = fn
}

// RenderMessage implements snackbar.Renderer.
func (r *Renderer) RenderMessage(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.message = text
}

// RenderActions implements snackbar.Renderer.
func (r *Renderer) RenderActions(actions []snackbar.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append([]snackbar.Action(nil), actions...)
}

// SetActionsVisible implements snackbar.Renderer.
func (r *Renderer) SetActionsVisible(visible bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actionsVisible = visible
}

// ClearMessage implements snackbar.Renderer.
func (r *Renderer) ClearMessage() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.message = ""
}

// ClearActions implements snackbar.Renderer.
func (r *Renderer) ClearActions() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = nil
}

// SetVisible implements snackbar.Renderer.
func (r *Renderer) SetVisible(visible bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !visible {
		if r.id == 0 {
			return
		}
		id := r.id
		r.id = 0
		ctx, cancel := context.WithTimeout(context.Background(), r.opts.CallTimeout)
		defer cancel()
		if err := r.notifier.CloseNotification(ctx, id); err != nil {
			r.logger.Warn("failed to close desktop notification", "dbus_id", id, "error", err)
		}
		return
	}

	if r.id != 0 {
		return
	}

	note := Notification{
		AppName:       r.opts.AppName,
		AppIcon:       r.opts.AppIcon,
		Summary:       r.message,
		Hints:         map[string]dbus.Variant{"urgency": dbus.MakeVariant(byte(r.opts.Urgency))},
		ExpireTimeout: 0,
	}
	if r.actionsVisible {
		note.Actions = make([]string, 0, len(r.actions)*2)
		for i, a := range r.actions {
			note.Actions = append(note.Actions, actionKey(i), a.Label)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.opts.CallTimeout)
	defer cancel()
	id, err := r.notifier.Notify(ctx, note)
	if err != nil {
		r.logger.Warn("failed to show desktop notification", "error", err)
		return
	}
	r.id = id
	r.logger.Debug("sent desktop notification", "dbus_id", id, "actions", len(note.Actions)/2)
}

// ActionInvoked implements SignalHandler.
func (r *Renderer) ActionInvoked(id uint32, key string) {
	r.mu.Lock()
	if id == 0 || id != r.id || !r.actionsVisible {
		r.mu.Unlock()
		return
	}
	idx, ok := parseActionKey(key)
	if !ok || idx >= len(r.actions) {
		r.mu.Unlock()
		r.logger.Debug("ignoring unknown action key", "dbus_id", id, "action_key", key)
		return
	}
	handler := r.actions[idx].Handler
	dismiss := r.opts.OnDismiss
	r.mu.Unlock()

	handler()
	if dismiss != nil {
		dismiss()
	}
}

// NotificationClosed implements SignalHandler.
func (r *Renderer) NotificationClosed(id uint32, reason CloseReason) {
	if reason != CloseReasonExpired && reason != CloseReasonDismissed {
		return
	}
	r.mu.Lock()
	if id == 0 || id != r.id {
		r.mu.Unlock()
		return
	}
	// The daemon already removed it.
	r.id = 0
	dismiss := r.opts.OnDismiss
	r.mu.Unlock()

	if dismiss != nil {
		dismiss()
	}
}

func actionKey(i int) string {
	return fmt.Sprintf("%s%d", actionKeyPrefix, i)
}

func parseActionKey(key string) (int, bool) {
	s, ok := strings.CutPrefix(key, actionKeyPrefix)
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}
