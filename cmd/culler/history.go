package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/culler-io/culler/internal/runlog"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recorded planning runs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := runlog.Open(cfg.RunLog.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		if len(args) == 1 {
			return printRun(cmd, store, args[0])
		}

		runs, err := store.Runs(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		for _, r := range runs {
			outcome := r.Outcome
			if outcome == "" {
				outcome = "running"
			}
			fmt.Printf("%s\t%s\t%s\n", r.ID, r.StartedAt.UTC().Format(time.RFC3339), outcome)
		}
		return nil
	},
}

func printRun(cmd *cobra.Command, store *runlog.Store, runID string) error {
	actions, err := store.Actions(cmd.Context(), runID)
	if err != nil {
		return err
	}
	for _, a := range actions {
		fmt.Printf("%d. %s (%s): %d of %d selected\n",
			a.Position, a.Action, a.Category, len(a.Selected), a.Candidates)
		if a.Error != "" {
			fmt.Printf("   error: %s\n", a.Error)
		}
		if len(a.Selected) > 0 {
			fmt.Printf("   %s\n", strings.Join(a.Selected, "\n   "))
		}
	}
	return nil
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum runs to list")
	rootCmd.AddCommand(historyCmd)
}
