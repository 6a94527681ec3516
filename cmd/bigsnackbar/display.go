package main

import (
	"context"
	"fmt"
	"io"

	"github.com/jmylchreest/bigsnackbar/internal/audio"
	"github.com/jmylchreest/bigsnackbar/internal/config"
	"github.com/jmylchreest/bigsnackbar/internal/history"
	"github.com/jmylchreest/bigsnackbar/internal/render/desktop"
	"github.com/jmylchreest/bigsnackbar/internal/render/term"
	"github.com/jmylchreest/bigsnackbar/internal/snackbar"
	"github.com/jmylchreest/bigsnackbar/internal/telemetry"
	"github.com/jmylchreest/bigsnackbar/internal/tui"
)

// display is a configured renderer plus the resources behind it.
type display struct {
	kind     config.RendererKind
	renderer snackbar.Renderer

	term    *term.Renderer
	bridge  *tui.Bridge
	desktop *desktop.Renderer
	bus     *desktop.BusNotifier

	chime  *audio.Chime
	player *audio.Player
}

// newDisplay builds the renderer for kind, wrapped in a chime.
func newDisplay(kind config.RendererKind, c *config.Config, out io.Writer) (*display, error) {
	d := &display{kind: kind}

	var base snackbar.Renderer
	switch kind {
	case config.RendererTUI:
		d.bridge = tui.NewBridge(c.Snackbar.ActionSlots)
		base = d.bridge
	case config.RendererTerm:
		d.term = term.New(out, c.Snackbar.ActionSlots, logger)
		base = d.term
	case config.RendererDesktop:
		bus, err := desktop.DialSession(logger)
		if err != nil {
			return nil, err
		}
		d.bus = bus
		d.desktop = desktop.New(bus, desktop.Options{
			AppName: c.Desktop.AppName,
			AppIcon: c.Desktop.AppIcon,
			Urgency: c.Desktop.Urgency,
			Logger:  logger,
		})
		base = d.desktop
	default:
		return nil, fmt.Errorf("invalid renderer kind %q, must be one of: %v", kind, config.ValidRendererKinds())
	}

	d.player = audio.NewPlayer(logger)
	d.chime = audio.NewChime(base, d.player, "", logger)
	d.renderer = d.chime
	d.reconfigure(c)

	logger.Debug("renderer ready", "kind", string(kind), "action_slots", snackbar.ActionSlots(d.renderer))
	return d, nil
}

// newQueue creates a queue bound to the display and applies the timing config.
func (d *display) newQueue(c *config.Config) *snackbar.Queue {
	q := snackbar.New(d.renderer,
		snackbar.WithLogger(logger),
		snackbar.WithDefaultTimeout(c.Snackbar.DefaultTimeout.Duration()),
		snackbar.WithGracePeriod(c.Snackbar.GracePeriod.Duration()),
	)
	if d.desktop != nil {
		d.desktop.SetDismissHandler(func() { q.Close() })
	}
	return q
}

// reconfigure applies the parts of c that can change at runtime.
func (d *display) reconfigure(c *config.Config) {
	sound := c.SoundPath()
	if sound != "" {
		d.player.Invalidate(sound)
	}
	d.player.SetVolume(float64(c.Audio.Volume) / 100)
	d.chime.Configure(sound, c.Audio.Enabled)
}

// invoke runs the action in slot on renderers that support it.
func (d *display) invoke(slot int) error {
	if d.term == nil {
		return fmt.Errorf("renderer %q does not take action input", d.kind)
	}
	return d.term.Invoke(slot)
}

// close waits for pending sounds and releases the bus and speaker.
func (d *display) close() {
	d.chime.Wait()
	d.player.Close()
	if d.bus != nil {
		if err := d.bus.Close(); err != nil {
			logger.Warn("failed to close session bus", "error", err)
		}
	}
}

// observers subscribes the history store and tracer to q. The returned
// function flushes and closes them.
func observers(ctx context.Context, q *snackbar.Queue, c *config.Config) (func(), error) {
	var cleanups []func()

	if c.History.Enabled {
		store, err := history.Open(ctx, c.HistoryPath(), logger)
		if err != nil {
			return nil, err
		}
		q.Subscribe(store.Listener())
		cleanups = append(cleanups, func() {
			if err := store.Close(); err != nil {
				logger.Warn("failed to close history", "error", err)
			}
		})
	}

	tracer, err := telemetry.NewFromEnv(ctx, logger)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	}
	q.Subscribe(tracer.Listener())
	cleanups = append(cleanups, func() {
		if err := tracer.Shutdown(context.Background()); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	})

	return func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}, nil
}
