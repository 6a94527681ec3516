package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/bigsnackbar/internal/history"
	"github.com/jmylchreest/bigsnackbar/internal/output"
)

var historyOpts struct {
	limit    int
	prune    string
	format   string
	template string
	dryRun   bool
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List or prune displayed notifications",
	Long: `List notifications that have been displayed, newest first, or remove
old entries.

Examples:
  # Show the last 20 notifications
  bigsnackbar history

  # Output as JSON
  bigsnackbar history --limit 0 --format json

  # Custom template
  bigsnackbar history --template '{{.ID}} {{.Reason}} {{truncate .Message 40}}'

  # Remove entries older than 7 days
  bigsnackbar history --prune 7d`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyOpts.limit, "limit", "n", 20,
		"Maximum entries to show (0=all)")
	historyCmd.Flags().StringVar(&historyOpts.prune, "prune", "",
		"Remove entries older than this age (e.g., 48h, 7d, 2w)")
	historyCmd.Flags().BoolVar(&historyOpts.dryRun, "dry-run", false,
		"With --prune, count matching entries without removing them")
	historyCmd.Flags().StringVarP(&historyOpts.format, "format", "f", "plain",
		"Output format: plain, json, ids")
	historyCmd.Flags().StringVar(&historyOpts.template, "template", "",
		"Go template applied to each entry")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	store, err := history.Open(ctx, cfg.HistoryPath(), logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if historyOpts.prune != "" {
		age, err := history.ParseAge(historyOpts.prune)
		if err != nil {
			return err
		}
		cutoff := time.Now().Add(-age)

		if historyOpts.dryRun {
			records, err := store.List(ctx, 0)
			if err != nil {
				return err
			}
			matched := 0
			for _, r := range records {
				if r.ShownAt.Before(cutoff) {
					matched++
				}
			}
			fmt.Fprintf(out, "Would remove %d of %d entries shown before %s\n",
				matched, len(records), humanize.Time(cutoff))
			return nil
		}

		removed, err := store.Prune(ctx, cutoff)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Removed %s entries shown before %s\n",
			humanize.Comma(removed), humanize.Time(cutoff))
		return nil
	}

	formatter, err := output.NewFormatter(output.FormatType(historyOpts.format), output.Options{
		Template:   historyOpts.template,
		ShowIndex:  true,
		MessageMax: 80,
	})
	if err != nil {
		return err
	}

	records, err := store.List(ctx, historyOpts.limit)
	if err != nil {
		return err
	}
	if len(records) == 0 && historyOpts.format == string(output.FormatPlain) && historyOpts.template == "" {
		fmt.Fprintln(out, "No notifications in history")
		return nil
	}
	return formatter.Format(out, records)
}
