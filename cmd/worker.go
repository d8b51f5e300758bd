package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/contrimap/contrimap/internal/config"
	"github.com/contrimap/contrimap/internal/queue"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a standalone analysis worker",
	Long:  `Consumes analysis jobs from the configured queue and runs the pipeline. Intended for the kafka backend where workers scale separately from the API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		if cfg.Queue.Backend != config.QueueKafka {
			return fmt.Errorf("standalone workers need the kafka queue backend, configured backend is %q", cfg.Queue.Backend)
		}

		deps, err := buildDeps(cfg)
		if err != nil {
			return err
		}
		defer deps.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Fprintf(os.Stderr, "contrimap worker v%s consuming from %s\n", Version, cfg.Queue.Topic)

		err = deps.jobs.Consume(ctx, func(ctx context.Context, job queue.Job) error {
			return deps.pipeline.Run(ctx, job.AnalysisID, job.Owner, job.Name)
		})
		if ctx.Err() != nil {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
