// Package desktop renders notifications through the session notification
// daemon (org.freedesktop.Notifications).
package desktop

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	// DBusInterface is the notification interface name.
	DBusInterface = "org.freedesktop.Notifications"
	// DBusPath is the notification object path.
	DBusPath = "/org/freedesktop/Notifications"

	callNotify            = DBusInterface + ".Notify"
	callCloseNotification = DBusInterface + ".CloseNotification"
	signalClosed          = DBusInterface + ".NotificationClosed"
	signalActionInvoked   = DBusInterface + ".ActionInvoked"

	signalBufferSize = 10
)

// CloseReason is the reason carried by the NotificationClosed signal.
type CloseReason uint32

const (
	// CloseReasonExpired indicates the daemon expired the notification.
	CloseReasonExpired CloseReason = 1
	// CloseReasonDismissed indicates the user dismissed the notification.
	CloseReasonDismissed CloseReason = 2
	// CloseReasonClosed indicates the notification was closed via CloseNotification.
	CloseReasonClosed CloseReason = 3
	// CloseReasonUndefined is reserved/undefined.
	CloseReasonUndefined CloseReason = 4
)

// String returns the string representation of the close reason.
func (r CloseReason) String() string {
	switch r {
	case CloseReasonExpired:
		return "expired"
	case CloseReasonDismissed:
		return "dismissed"
	case CloseReasonClosed:
		return "closed"
	case CloseReasonUndefined:
		return "undefined"
	default:
		return "unknown"
	}
}

// Notification holds the Notify call parameters.
type Notification struct {
	AppName    string
	ReplacesID uint32
	AppIcon    string
	Summary    string
	Body       string
	Actions    []string // alternating key, label pairs
	Hints      map[string]dbus.Variant
	// ExpireTimeout in milliseconds: -1 = server default, 0 = never expire.
	ExpireTimeout int32
}

// SignalHandler receives notification daemon signals.
type SignalHandler interface {
	ActionInvoked(id uint32, key string)
	NotificationClosed(id uint32, reason CloseReason)
}

// Notifier is the subset of the notification interface the renderer needs.
// Calls must return once ctx is done.
type Notifier interface {
	Notify(ctx context.Context, n Notification) (uint32, error)
	CloseNotification(ctx context.Context, id uint32) error
	Subscribe(h SignalHandler)
}

// BusNotifier talks to the notification daemon on a D-Bus connection.
type BusNotifier struct {
	conn   *dbus.Conn
	logger *slog.Logger
	owned  bool

	mu       sync.RWMutex
	handlers []SignalHandler

	signals chan *dbus.Signal
	stopCh  chan struct{}
	doneCh  chan struct{}
	once    sync.Once
}

// DialSession connects to the session bus and returns a BusNotifier that
// closes the connection when closed.
func DialSession(logger *slog.Logger) (*BusNotifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	n, err := NewBusNotifier(conn, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	n.owned = true
	return n, nil
}

// NewBusNotifier subscribes to notification signals on conn and starts the
// signal loop.
func NewBusNotifier(conn *dbus.Conn, logger *slog.Logger) (*BusNotifier, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(DBusPath),
		dbus.WithMatchInterface(DBusInterface),
	); err != nil {
		return nil, fmt.Errorf("failed to add signal match: %w", err)
	}

	n := &BusNotifier{
		conn:    conn,
		logger:  logger,
		signals: make(chan *dbus.Signal, signalBufferSize),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	conn.Signal(n.signals)

	go n.receiveSignals()
	return n, nil
}

// Subscribe implements Notifier.
func (n *BusNotifier) Subscribe(h SignalHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers = append(n.handlers, h)
}

// Notify implements Notifier.
func (n *BusNotifier) Notify(ctx context.Context, note Notification) (uint32, error) {
	actions := note.Actions
	if actions == nil {
		actions = []string{}
	}
	hints := note.Hints
	if hints == nil {
		hints = map[string]dbus.Variant{}
	}

	obj := n.conn.Object(DBusInterface, DBusPath)
	call := obj.CallWithContext(ctx, callNotify, 0,
		note.AppName,
		note.ReplacesID,
		note.AppIcon,
		note.Summary,
		note.Body,
		actions,
		hints,
		note.ExpireTimeout,
	)
	if call.Err != nil {
		return 0, fmt.Errorf("failed to send notification: %w", call.Err)
	}

	var id uint32
	if err := call.Store(&id); err != nil {
		return 0, fmt.Errorf("failed to read notification id: %w", err)
	}
	return id, nil
}

// CloseNotification implements Notifier.
func (n *BusNotifier) CloseNotification(ctx context.Context, id uint32) error {
	obj := n.conn.Object(DBusInterface, DBusPath)
	if call := obj.CallWithContext(ctx, callCloseNotification, 0, id); call.Err != nil {
		return fmt.Errorf("failed to close notification %d: %w", id, call.Err)
	}
	return nil
}

// Close stops the signal loop and removes the signal match.
func (n *BusNotifier) Close() error {
	var err error
	n.once.Do(func() {
		close(n.stopCh)
		<-n.doneCh

		n.conn.RemoveSignal(n.signals)
		if rerr := n.conn.RemoveMatchSignal(
			dbus.WithMatchObjectPath(DBusPath),
			dbus.WithMatchInterface(DBusInterface),
		); rerr != nil {
			err = fmt.Errorf("failed to remove signal match: %w", rerr)
		}
		if n.owned {
			if cerr := n.conn.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("failed to close session bus: %w", cerr)
			}
		}
	})
	return err
}

func (n *BusNotifier) receiveSignals() {
	defer close(n.doneCh)
	for {
		select {
		case <-n.stopCh:
			return
		case <-n.conn.Context().Done():
			return
		case sig, ok := <-n.signals:
			if !ok {
				return
			}
			n.dispatch(sig)
		}
	}
}

func (n *BusNotifier) dispatch(sig *dbus.Signal) {
	if sig == nil || len(sig.Body) < 2 {
		return
	}
	id, ok := sig.Body[0].(uint32)
	if !ok {
		return
	}

	n.mu.RLock()
	handlers := append([]SignalHandler(nil), n.handlers...)
	n.mu.RUnlock()

	switch sig.Name {
	case signalClosed:
		reason, ok := sig.Body[1].(uint32)
		if !ok {
			return
		}
		n.logger.Debug("notification closed signal", "dbus_id", id, "reason", CloseReason(reason).String())
		for _, h := range handlers {
			go h.NotificationClosed(id, CloseReason(reason))
		}
	case signalActionInvoked:
		key, ok := sig.Body[1].(string)
		if !ok {
			return
		}
		n.logger.Debug("action invoked signal", "dbus_id", id, "action_key", key)
		for _, h := range handlers {
			go h.ActionInvoked(id, key)
		}
	}
}
