package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/bigsnackbar/internal/config"
	"github.com/jmylchreest/bigsnackbar/internal/httpapi"
	"github.com/jmylchreest/bigsnackbar/internal/snackbar"
	"github.com/jmylchreest/bigsnackbar/internal/tui"
)

var serveOpts struct {
	listen   string
	renderer string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept notifications over HTTP",
	Long: `Run the HTTP ingestion API and show submitted notifications with the
configured renderer until interrupted.

Endpoints:
  POST   /api/v1/notifications        submit {message, timeout, actions}
  POST   /api/v1/notifications/close  close the visible notification
  DELETE /api/v1/notifications        close all, dropping pending ones
  GET    /api/v1/status               current state and queue length
  GET    /health                      liveness

When http.jwt_secret is set, /api/v1 requires an HS256 bearer token
(see "bigsnackbar token").

Timing and audio settings are reloaded when the config file changes.
With the tui renderer the API runs in the background of the TUI.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveOpts.listen, "listen", "",
		"Listen address (default from config)")
	serveCmd.Flags().StringVar(&serveOpts.renderer, "renderer", "",
		"Renderer to use: tui, term or desktop (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	kind := config.RendererKind(cfg.Renderer.Kind)
	if serveOpts.renderer != "" {
		kind = config.RendererKind(serveOpts.renderer)
	}
	addr := cfg.HTTP.Listen
	if serveOpts.listen != "" {
		addr = serveOpts.listen
	}

	d, err := newDisplay(kind, cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer d.close()

	ctx, stop := waitContext(cmd.Context())
	defer stop()

	q := d.newQueue(cfg)
	cleanup, err := observers(ctx, q, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	defer drain(q)

	watcher, err := watchConfig(q, d)
	if err != nil {
		logger.Warn("config hot reload disabled", "error", err)
	} else {
		defer func() { _ = watcher.Stop() }()
	}

	server := httpapi.NewServer(q, httpapi.Options{
		JWTSecret: cfg.HTTP.JWTSecret,
		Logger:    logger,
	})
	if cfg.HTTP.JWTSecret == "" {
		logger.Warn("http api has no jwt_secret, accepting unauthenticated requests", "addr", addr)
	}

	if kind != config.RendererTUI {
		return server.ListenAndServe(ctx, addr)
	}
	return serveWithTUI(ctx, server, addr, q, d)
}

// serveWithTUI runs the API in the background until the TUI exits.
func serveWithTUI(ctx context.Context, server *httpapi.Server, addr string, q *snackbar.Queue, d *display) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe(ctx, addr)
	}()

	tuiErr := tui.Run(tui.RunOptions{Queue: q, Bridge: d.bridge})
	cancel()
	return errors.Join(tuiErr, <-errCh)
}

// watchConfig reloads timing and audio settings when the config file changes.
func watchConfig(q *snackbar.Queue, d *display) (*config.Watcher, error) {
	w, err := config.NewWatcher(globalOpts.configPath, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}
	w.SetReloadCallback(func(c *config.Config) {
		q.SetDefaultTimeout(c.Snackbar.DefaultTimeout.Duration())
		q.SetGracePeriod(c.Snackbar.GracePeriod.Duration())
		d.reconfigure(c)
		if c.Renderer.Kind != string(d.kind) || c.Snackbar.ActionSlots != cfg.Snackbar.ActionSlots ||
			c.HTTP != cfg.HTTP {
			logger.Warn("renderer, action slot and http changes apply after restart")
		}
	})
	w.SetErrorCallback(func(err error) {
		logger.Error("keeping previous config", "error", err)
	})
	if err := w.Start(); err != nil {
		return nil, fmt.Errorf("failed to watch config: %w", err)
	}
	return w, nil
}
