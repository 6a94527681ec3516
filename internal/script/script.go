// Package script loads batches of notifications from YAML or JSON documents
// and turns them into queue requests.
package script

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/bigsnackbar/internal/config"
	"github.com/jmylchreest/bigsnackbar/internal/snackbar"
)

// CommandTimeout bounds how long a command action may run.
const CommandTimeout = 30 * time.Second

// Script is a parsed notification document.
type Script struct {
	Notifications []Entry `yaml:"notifications" json:"notifications"`
}

// Entry is one notification in a script.
type Entry struct {
	Message string          `yaml:"message" json:"message"`
	Timeout config.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Actions []ActionSpec    `yaml:"actions,omitempty" json:"actions,omitempty"`
}

// ActionSpec describes what an action does when invoked. Exactly one of
// Command or Print is set.
type ActionSpec struct {
	Label   string `yaml:"label" json:"label"`
	Command string `yaml:"command,omitempty" json:"command,omitempty"`
	Print   string `yaml:"print,omitempty" json:"print,omitempty"`
}

// ParseError reports a problem with a script document or one of its entries.
type ParseError struct {
	// Index is the entry index, or -1 for document-level errors.
	Index   int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	msg := e.Message
	if e.Index >= 0 {
		msg = fmt.Sprintf("notification %d: %s", e.Index, msg)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse decodes a YAML or JSON script. JSON is a subset of YAML, so one
// decoder handles both.
func Parse(data []byte) (*Script, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ParseError{Index: -1, Message: "empty script"}
	}

	var s Script
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, &ParseError{Index: -1, Message: "failed to decode script", Err: err}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks every entry. Errors are *ParseError.
func (s *Script) Validate() error {
	if len(s.Notifications) == 0 {
		return &ParseError{Index: -1, Message: "script has no notifications"}
	}

	for i, e := range s.Notifications {
		if strings.TrimSpace(e.Message) == "" {
			return &ParseError{Index: i, Message: "message is required", Err: snackbar.ErrEmptyMessage}
		}
		if e.Timeout < 0 {
			return &ParseError{Index: i, Message: "timeout must not be negative", Err: snackbar.ErrInvalidTimeout}
		}
		for j, a := range e.Actions {
			if a.Label == "" {
				return &ParseError{Index: i, Message: fmt.Sprintf("action %d has no label", j), Err: snackbar.ErrInvalidAction}
			}
			if (a.Command == "") == (a.Print == "") {
				return &ParseError{Index: i, Message: fmt.Sprintf("action %q needs exactly one of command or print", a.Label), Err: snackbar.ErrInvalidAction}
			}
		}
	}
	return nil
}

// Load reads and parses a script from path, or from stdin when path is "-".
func Load(path string, stdin io.Reader) (*Script, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return Parse(data)
}

// Runner builds action handlers for script entries.
type Runner struct {
	// Out receives print actions and command output.
	Out    io.Writer
	Shell  string
	Logger *slog.Logger
	// Timeout bounds each command. Zero means CommandTimeout.
	Timeout time.Duration

	wg sync.WaitGroup
}

// NewRunner creates a Runner writing to out.
func NewRunner(out io.Writer, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{Out: out, Shell: "sh", Logger: logger, Timeout: CommandTimeout}
}

// Requests converts the script entries into queue requests, in order.
func (r *Runner) Requests(s *Script) []snackbar.Request {
	reqs := make([]snackbar.Request, 0, len(s.Notifications))
	for _, e := range s.Notifications {
		req := snackbar.Request{
			Message: e.Message,
			Timeout: e.Timeout.Duration(),
		}
		for _, a := range e.Actions {
			req.Actions = append(req.Actions, snackbar.Action{
				Label:   a.Label,
				Handler: r.handler(a),
			})
		}
		reqs = append(reqs, req)
	}
	return reqs
}

// Action returns a handler for a single spec.
func (r *Runner) Action(a ActionSpec) snackbar.Action {
	return snackbar.Action{Label: a.Label, Handler: r.handler(a)}
}

func (r *Runner) handler(a ActionSpec) func() {
	if a.Print != "" {
		text := a.Print
		return func() {
			if _, err := fmt.Fprintln(r.Out, text); err != nil {
				r.Logger.Warn("failed to print action output", "label", a.Label, "error", err)
			}
		}
	}

	command := a.Command
	return func() {
		// Runs in the background; Wait collects it.
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := r.Run(context.Background(), command); err != nil {
				r.Logger.Warn("action command failed", "label", a.Label, "command", command, "error", err)
			}
		}()
	}
}

// Wait blocks until every started command has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Run executes command through the shell, writing its output to Out.
func (r *Runner) Run(ctx context.Context, command string) error {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = CommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	shell := r.Shell
	if shell == "" {
		shell = "sh"
	}
	cmd := exec.CommandContext(ctx, shell, "-c", command)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if out.Len() > 0 && r.Out != nil {
		_, _ = r.Out.Write(out.Bytes())
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("command timed out after %s: %w", timeout, ctx.Err())
		}
		return fmt.Errorf("failed to run command: %w", err)
	}
	r.Logger.Debug("action command finished", "command", command)
	return nil
}
