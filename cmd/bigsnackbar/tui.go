package main

import (
	"github.com/spf13/cobra"

	"github.com/jmylchreest/bigsnackbar/internal/config"
	"github.com/jmylchreest/bigsnackbar/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive snackbar demo",
	Long: `Launch the interactive terminal interface.

Compose notifications and watch them pass through the queue one at a time.
The compose syntax is "message | Label": each part after a bar becomes an
action button. Buttons only close the notification.

Key bindings:
  n           Compose a notification
  enter       Submit the composed notification
  1-9         Run action N and close
  esc         Close the visible notification
  ctrl+x      Close all (drop pending)
  ctrl+y, y   Copy the visible message to the clipboard
  ?           Show help
  q           Quit`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	d, err := newDisplay(config.RendererTUI, cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer d.close()

	q := d.newQueue(cfg)
	cleanup, err := observers(cmd.Context(), q, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	defer drain(q)

	return tui.Run(tui.RunOptions{
		Queue:  q,
		Bridge: d.bridge,
	})
}
