package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/bigsnackbar/internal/config"
	"github.com/jmylchreest/bigsnackbar/internal/script"
	"github.com/jmylchreest/bigsnackbar/internal/snackbar"
)

const drainTimeout = 2 * time.Second

var sendOpts struct {
	message  string
	actions  []string
	timeout  string
	renderer string
}

var sendCmd = &cobra.Command{
	Use:   "send [script|-]",
	Short: "Show notifications from a script or the command line",
	Long: `Submit notifications and wait until every one has been shown and dismissed.

A script is a YAML or JSON document:

  notifications:
    - message: Message archived
      timeout: 4s
      actions:
        - label: Undo
          command: mv ~/Archive/last ~/Inbox/
    - message: Build finished
      actions:
        - label: Open
          print: https://ci.example.com/latest

Use "-" to read the script from stdin.

With the term renderer and an interactive stdin, type an action number and
press enter to run it, an empty line to close the visible notification, or
"x" to close everything.

Examples:
  bigsnackbar send batch.yaml
  bigsnackbar send -m "Message archived" --action "Undo=mv ~/Archive/last ~/Inbox/"
  generate-notifications | bigsnackbar send - --renderer desktop`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVarP(&sendOpts.message, "message", "m", "",
		"Notification message")
	sendCmd.Flags().StringArrayVar(&sendOpts.actions, "action", nil,
		"Action as label=command (repeatable)")
	sendCmd.Flags().StringVar(&sendOpts.timeout, "timeout", "",
		"Timeout for --message (e.g. 4s, 1500; 0 uses the configured default)")
	sendCmd.Flags().StringVar(&sendOpts.renderer, "renderer", "",
		"Renderer to use: term or desktop (default from config)")
}

func runSend(cmd *cobra.Command, args []string) error {
	s, err := sendScript(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	kind, err := sendRenderer(sendOpts.renderer, cfg.Renderer.Kind)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	d, err := newDisplay(kind, cfg, out)
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

	runner := script.NewRunner(out, logger)
	for _, req := range runner.Requests(s) {
		if _, err := q.Submit(req); err != nil {
			drain(q)
			return fmt.Errorf("failed to submit %q: %w", req.Message, err)
		}
	}

	if kind == config.RendererTerm && (len(args) == 0 || args[0] != "-") && isatty.IsTerminal(os.Stdin.Fd()) {
		go readSlots(os.Stdin, q, d.invoke)
	}

	if err := q.Wait(ctx); err != nil {
		logger.Info("interrupted, dropping pending notifications")
		drain(q)
	}
	runner.Wait()
	return nil
}

// drain closes everything and gives the last dismissal time to reach the
// listeners.
func drain(q *snackbar.Queue) {
	q.CloseAll()
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := q.Wait(ctx); err != nil {
		logger.Warn("queue did not drain", "error", err)
	}
}

// sendScript loads the script argument, or builds one from the flags.
func sendScript(args []string, stdin io.Reader) (*script.Script, error) {
	if len(args) == 1 {
		if sendOpts.message != "" || len(sendOpts.actions) > 0 {
			return nil, errors.New("--message and --action cannot be combined with a script")
		}
		return script.Load(args[0], stdin)
	}
	if sendOpts.message == "" {
		return nil, errors.New("specify a script or --message")
	}

	entry := script.Entry{Message: sendOpts.message}
	if sendOpts.timeout != "" {
		if err := entry.Timeout.UnmarshalText([]byte(sendOpts.timeout)); err != nil {
			return nil, fmt.Errorf("invalid --timeout: %w", err)
		}
	}
	for _, raw := range sendOpts.actions {
		spec, err := parseActionFlag(raw)
		if err != nil {
			return nil, err
		}
		entry.Actions = append(entry.Actions, spec)
	}

	s := &script.Script{Notifications: []script.Entry{entry}}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// parseActionFlag parses "label=command".
func parseActionFlag(raw string) (script.ActionSpec, error) {
	label, command, ok := strings.Cut(raw, "=")
	label = strings.TrimSpace(label)
	command = strings.TrimSpace(command)
	if !ok || label == "" || command == "" {
		return script.ActionSpec{}, fmt.Errorf("invalid --action %q: expected label=command", raw)
	}
	return script.ActionSpec{Label: label, Command: command}, nil
}

// sendRenderer resolves the renderer for send. The TUI needs its own
// program, so a tui config falls back to plain terminal output.
func sendRenderer(flag, configured string) (config.RendererKind, error) {
	kind := config.RendererKind(configured)
	if flag != "" {
		kind = config.RendererKind(flag)
	}
	switch kind {
	case config.RendererTerm, config.RendererDesktop:
		return kind, nil
	case config.RendererTUI:
		return config.RendererTerm, nil
	default:
		return "", fmt.Errorf("invalid renderer %q, must be term or desktop", kind)
	}
}

// closer is the part of the queue driven by keyboard input.
type closer interface {
	Close() bool
	CloseAll() int
}

// readSlots turns input lines into queue operations until r is exhausted.
func readSlots(r io.Reader, q closer, invoke func(slot int) error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			q.Close()
		case "x":
			q.CloseAll()
		default:
			slot, err := strconv.Atoi(line)
			if err != nil {
				logger.Warn("expected an action number", "input", line)
				continue
			}
			if err := invoke(slot); err != nil {
				logger.Warn("failed to run action", "slot", slot, "error", err)
				continue
			}
			q.Close()
		}
	}
}

// waitContext is shared by commands that run until interrupted.
func waitContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
