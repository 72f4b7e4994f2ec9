package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/helixir/paper-digest-service/internal/app"
	"github.com/helixir/paper-digest-service/internal/scheduler"
)

var (
	watchOnce   bool
	watchOutDir string
)

func init() {
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "Run the watch list once and exit")
	watchCmd.Flags().StringVarP(&watchOutDir, "out", "o", "", "Override scheduler.output_dir")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Summarize the configured watch list on a schedule",
	Long: `Summarize every paper in scheduler.watch on the scheduler.cron schedule.

Reports go to the archive and, when scheduler.output_dir is set, to rendered
files under it. A failing paper does not stop the others.

Examples:
  digest watch
  digest watch --once --out reports/`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(true)
	if err != nil {
		return err
	}
	if watchOutDir != "" {
		cfg.Scheduler.OutputDir = watchOutDir
	}
	if len(cfg.Scheduler.Watch) == 0 {
		return fmt.Errorf("scheduler.watch is empty")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger, app.WithoutMetrics())
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := scheduler.New(cfg.Scheduler, a.Pipeline, scheduler.WithLogger(logger), scheduler.WithTitleFinder(a.Catalog))
	if err != nil {
		return err
	}

	if watchOnce {
		var failed int
		for _, out := range sched.RunOnce(ctx) {
			switch {
			case out.Err != nil:
				failed++
				fmt.Fprintf(os.Stderr, "FAIL  %s: %v\n", out.Reference, out.Err)
			case out.Path != "":
				fmt.Fprintf(os.Stderr, "OK    %s -> %s\n", out.Reference, out.Path)
			default:
				fmt.Fprintf(os.Stderr, "OK    %s (%s)\n", out.Reference, out.Report.ID)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d papers failed", failed, len(cfg.Scheduler.Watch))
		}
		return nil
	}

	if err := sched.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	logger.Info().Msg("stopping scheduler")
	<-sched.Stop().Done()
	return nil
}
