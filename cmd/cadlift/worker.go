package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Vartmor/CADLift-sub001/internal/observability"
	"github.com/Vartmor/CADLift-sub001/internal/pipeline"
	"github.com/Vartmor/CADLift-sub001/internal/queue"
)

var workerConcurrency int

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run jobs from the Redis queue",
	Long: `Consume job IDs pushed by "cadlift serve --queue" and run them.

The worker must share the server's job store (DATABASE_URL or REDIS_URL) and
blob store (MINIO_ENDPOINT).`,
	RunE: runWorker,
}

func init() {
	workerCmd.Flags().IntVar(&workerConcurrency, "concurrency", 0, "Jobs run at once (defaults to WORKERS)")
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	concurrency := cfg.Workers
	if workerConcurrency > 0 {
		concurrency = workerConcurrency
	}
	if cfg.MinIO.Endpoint == "" {
		log.Warn("no MINIO_ENDPOINT: inputs uploaded to the server will not be visible to this worker")
	}

	shutdownTracer := observability.InitTracer(cfg.Tracing, "cadlift-worker", cmd.OutOrStdout())
	defer func() { _ = shutdownTracer(context.Background()) }()

	a := newApp(cfg)
	defer a.Close()

	client, err := a.redisClient(ctx)
	if err != nil {
		return err
	}
	orch, deps, err := a.orchestrator(ctx, observability.NewMetrics())
	if err != nil {
		return err
	}

	pool := pipeline.NewPool(orch, concurrency)
	pool.OnDone = logRelease(pool)
	w := &pipeline.Worker{Queue: queue.New(client), Store: deps.Store, Pool: pool}
	log.WithField("concurrency", concurrency).Info("worker started")
	runErr := w.Run(ctx)

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.GeneratorTimeout+30*time.Second)
	defer cancel()
	if err := pool.Shutdown(drainCtx); err != nil {
		log.WithError(err).Warn("running jobs were cancelled during shutdown")
	}
	return runErr
}
