package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Vartmor/CADLift-sub001/internal/config"
	"github.com/Vartmor/CADLift-sub001/internal/observability"
	"github.com/Vartmor/CADLift-sub001/internal/pipeline"
	"github.com/Vartmor/CADLift-sub001/internal/queue"
	"github.com/Vartmor/CADLift-sub001/internal/server"
)

var (
	servePort  int
	serveQueue bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server that accepts generation jobs and reports their progress.

Jobs run in an in-process worker pool. With --queue they are pushed onto the
Redis queue instead and executed by "cadlift worker" processes.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (defaults to PORT)")
	serveCmd.Flags().BoolVar(&serveQueue, "queue", false, "Dispatch jobs to the Redis queue instead of running them in process")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if servePort > 0 {
		cfg.Port = servePort
	}
	jwtConfig, err := config.NewJWTConfig()
	if err != nil {
		return err
	}

	shutdownTracer := observability.InitTracer(cfg.Tracing, "cadlift", cmd.OutOrStdout())
	defer func() { _ = shutdownTracer(context.Background()) }()

	a := newApp(cfg)
	defer a.Close()

	metrics := observability.NewMetrics()
	orch, deps, err := a.orchestrator(ctx, metrics)
	if err != nil {
		return err
	}

	var dispatcher pipeline.Dispatcher
	var pool *pipeline.Pool
	if serveQueue {
		client, err := a.redisClient(ctx)
		if err != nil {
			return fmt.Errorf("--queue: %w", err)
		}
		dispatcher = pipeline.QueueDispatcher{Queue: queue.New(client)}
		log.Info("dispatching jobs to the redis queue")
	} else {
		pool = pipeline.NewPool(orch, cfg.Workers)
		pool.OnDone = logRelease(pool)
		dispatcher = pipeline.LocalDispatcher{Pool: pool}
		log.WithField("workers", cfg.Workers).Info("running jobs in process")
	}

	srv := server.New(server.Options{
		Port:       cfg.Port,
		Jobs:       deps.Store,
		Blobs:      deps.Blobs,
		Dispatcher: dispatcher,
		JWT:        server.NewJWTService(jwtConfig),
		Metrics:    metrics,
	})
	serveErr := srv.Start(ctx)

	if pool != nil {
		drainCtx, cancel := context.WithTimeout(context.Background(), cfg.GeneratorTimeout+30*time.Second)
		defer cancel()
		if err := pool.Shutdown(drainCtx); err != nil {
			log.WithError(err).Warn("running jobs were cancelled during shutdown")
		}
	}
	return serveErr
}
