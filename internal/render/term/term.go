// Package term renders notifications as styled blocks on a line-oriented writer.
package term

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/jmylchreest/bigsnackbar/internal/snackbar"
)

// ErrNoAction is returned by Invoke when no visible action occupies the slot.
var ErrNoAction = errors.New("no action in slot")

// Styles holds the lipgloss styles used for output.
type Styles struct {
	Box     lipgloss.Style
	Message lipgloss.Style
	Action  lipgloss.Style
	Hint    lipgloss.Style
}

// DefaultStyles returns the default styles.
func DefaultStyles() Styles {
	return Styles{
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1),
		Message: lipgloss.NewStyle().Bold(true),
		Action:  lipgloss.NewStyle().Foreground(lipgloss.Color("212")),
		Hint:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// Renderer writes a block to out whenever a notification becomes visible.
type Renderer struct {
	mu     sync.Mutex
	out    io.Writer
	slots  int
	styles Styles
	logger *slog.Logger

	message        string
	actions        []snackbar.Action
	actionsVisible bool
	visible        bool
}

// New creates a Renderer with a fixed number of action slots.
func New(out io.Writer, slots int, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		out:    out,
		slots:  slots,
		styles: DefaultStyles(),
		logger: logger,
	}
}

// ActionSlots implements snackbar.SlotRenderer.
func (r *Renderer) ActionSlots() int {
	return r.slots
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

// SetVisible implements snackbar.Renderer. Each hidden-to-visible change
// writes the notification block; hiding writes a dismissed line.
func (r *Renderer) SetVisible(visible bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if visible == r.visible {
		return
	}
	r.visible = visible

	var line string
	if visible {
		line = r.viewLocked()
	} else {
		line = r.styles.Hint.Render("dismissed: " + r.message)
	}
	if _, err := fmt.Fprintln(r.out, line); err != nil {
		r.logger.Warn("failed to write notification", "error", err)
	}
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

// View returns the block for the visible notification, or "" when hidden.
func (r *Renderer) View() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.visible {
		return ""
	}
	return r.viewLocked()
}

func (r *Renderer) viewLocked() string {
	content := r.styles.Message.Render(r.message)
	if r.actionsVisible && len(r.actions) > 0 {
		labels := make([]string, 0, len(r.actions))
		for i, a := range r.actions {
			labels = append(labels, r.styles.Action.Render(fmt.Sprintf("[%d] %s", i+1, a.Label)))
		}
		content += "\n" + strings.Join(labels, "  ")
	}
	return r.styles.Box.Render(content)
}

// Invoke runs the handler bound to the 1-based slot.
func (r *Renderer) Invoke(slot int) error {
	r.mu.Lock()
	if !r.visible || !r.actionsVisible || slot < 1 || slot > len(r.actions) {
		r.mu.Unlock()
		return fmt.Errorf("slot %d: %w", slot, ErrNoAction)
	}
	handler := r.actions[slot-1].Handler
	r.mu.Unlock()

	handler()
	return nil
}
