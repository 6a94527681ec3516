package tui

import (
	"fmt"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
)

// copyText copies text to the system clipboard.
func copyText(text string) error {
	if clipboard.Unsupported {
		return fmt.Errorf("no clipboard utility available")
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("failed to copy to clipboard: %w", err)
	}
	return nil
}

// copyToClipboard copies text to the clipboard off the event loop.
func (m Model) copyToClipboard(text string) tea.Cmd {
	copyFn := m.copy
	return func() tea.Msg {
		return copyResultMsg{err: copyFn(text)}
	}
}
