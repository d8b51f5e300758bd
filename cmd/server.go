package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/contrimap/contrimap/internal/analysis"
	"github.com/contrimap/contrimap/internal/config"
	"github.com/contrimap/contrimap/internal/db"
	"github.com/contrimap/contrimap/internal/github"
	"github.com/contrimap/contrimap/internal/insights"
	"github.com/contrimap/contrimap/internal/llm"
	"github.com/contrimap/contrimap/internal/queue"
	"github.com/contrimap/contrimap/internal/repos"
	"github.com/contrimap/contrimap/internal/server"
)

var serverPort int

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the contrimap API server",
	Long:  `Starts the contrimap REST API with an embedded analysis worker, or API-only when the kafka queue backend is configured with separate workers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if serverPort != 0 {
			cfg.Port = serverPort
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		deps, err := buildDeps(cfg)
		if err != nil {
			return err
		}
		defer deps.Close()

		srv := server.New(server.Config{
			Port:        cfg.Port,
			FrontendURL: cfg.FrontendURL,
		})
		repos.RegisterRoutes(srv.Router(), deps.store, deps.jobs, deps.gh)
		analysis.RegisterRoutes(srv.Router(), deps.store, deps.pipeline)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// In-process worker. With the kafka backend the consumer can also
		// run standalone via `contrimap worker`.
		go func() {
			if err := deps.jobs.Consume(ctx, func(ctx context.Context, job queue.Job) error {
				return deps.pipeline.Run(ctx, job.AnalysisID, job.Owner, job.Name)
			}); err != nil && ctx.Err() == nil {
				fmt.Fprintf(os.Stderr, "worker stopped: %v\n", err)
			}
		}()

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		fmt.Fprintf(os.Stderr, "contrimap server v%s starting on port %d\n", Version, cfg.Port)
		fmt.Fprintf(os.Stderr, "  Provider: %s (%s)\n", cfg.Provider, cfg.Model)
		fmt.Fprintf(os.Stderr, "  Queue: %s\n", cfg.Queue.Backend)

		return srv.Start()
	},
}

// deps bundles the wired collaborators shared by the server and worker
// commands.
type deps struct {
	database *db.DB
	store    *analysis.Store
	gh       *github.Client
	jobs     queue.Queue
	pipeline *analysis.Pipeline
}

func (d *deps) Close() {
	d.jobs.Close()
	d.database.Close()
}

func buildDeps(cfg *config.Config) (*deps, error) {
	dbPath := filepath.Join(cfg.DataDir, "contrimap.db")
	database, err := db.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	provider, err := llm.NewProvider(string(cfg.Provider), cfg.Model)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}

	jobs, err := buildQueue(cfg)
	if err != nil {
		database.Close()
		return nil, err
	}

	store := analysis.NewStore(database)
	gh := github.NewClient(cfg.GitHubToken)
	generator := insights.NewGenerator(provider, cfg.Model)
	pipeline := analysis.NewPipeline(store, gh, generator)

	return &deps{
		database: database,
		store:    store,
		gh:       gh,
		jobs:     jobs,
		pipeline: pipeline,
	}, nil
}

func buildQueue(cfg *config.Config) (queue.Queue, error) {
	switch cfg.Queue.Backend {
	case config.QueueKafka:
		q, err := queue.NewKafka(cfg.Queue.Brokers, cfg.Queue.Topic, cfg.Queue.ConsumerGroup)
		if err != nil {
			return nil, fmt.Errorf("connecting to kafka: %w", err)
		}
		return q, nil
	default:
		return queue.NewMemory(cfg.Queue.MaxAttempts, time.Duration(cfg.Queue.BackoffMS)*time.Millisecond), nil
	}
}

func init() {
	serverCmd.Flags().IntVar(&serverPort, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serverCmd)
}
