package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/culler-io/culler/internal/config"
	"github.com/culler-io/culler/internal/logging"
	"github.com/culler-io/culler/internal/metrics"
	"github.com/culler-io/culler/internal/planner"
	"github.com/culler-io/culler/internal/runlog"
	"github.com/culler-io/culler/internal/schedule"
)

var planSchedule string

var planCmd = &cobra.Command{
	Use:   "plan <action-file>",
	Short: "Run the action file's filter pipelines and report the selections",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		af, err := config.LoadActions(args[0])
		if err != nil {
			return err
		}
		cl, err := newClient(cfg)
		if err != nil {
			return err
		}

		p := planner.New(cl).WithLogger(logging.Global())
		if cfg.Metrics.Enabled {
			p.WithMetrics(metrics.NewCore())
			srv := metrics.NewServer(cfg.Metrics.Listen)
			if err := srv.Start(); err != nil {
				return fmt.Errorf("metrics listener: %w", err)
			}
			defer srv.Close()
		}
		if cfg.RunLog.Enabled {
			store, err := runlog.Open(cfg.RunLog.Path)
			if err != nil {
				return err
			}
			defer store.Close()
			p.WithRunLog(store)
		}

		if planSchedule == "" {
			return runOnce(cmd.Context(), p, af)
		}
		return runScheduled(p, af)
	},
}

func runOnce(ctx context.Context, p *planner.Planner, af *config.ActionFile) error {
	report, err := p.Run(ctx, af)
	printReport(report)
	return err
}

func runScheduled(p *planner.Planner, af *config.ActionFile) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched, err := schedule.New(planSchedule, func(ctx context.Context) {
		report, err := p.Run(ctx, af)
		printReport(report)
		if err != nil {
			logging.Error("scheduled run failed: " + err.Error())
		}
	})
	if err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}
	logging.Info("planning on schedule, interrupt to stop")
	<-ctx.Done()
	sched.Stop()
	return nil
}

func printReport(report *planner.Report) {
	if report == nil {
		return
	}
	fmt.Printf("run %s\n", report.RunID)
	for _, res := range report.Results {
		fmt.Printf("%d. %s (%s): %d of %d selected\n",
			res.Position, res.Action, res.Category, len(res.Selected), res.Candidates)
		if res.Err != nil {
			fmt.Printf("   error: %v\n", res.Err)
			continue
		}
		if len(res.Selected) > 0 {
			fmt.Printf("   %s\n", strings.Join(res.Selected, "\n   "))
		}
	}
}

func init() {
	planCmd.Flags().StringVar(&planSchedule, "schedule", "", "cron expression to plan repeatedly")
	rootCmd.AddCommand(planCmd)
}
