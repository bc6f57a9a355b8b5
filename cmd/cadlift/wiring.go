package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/Vartmor/CADLift-sub001/internal/cad"
	"github.com/Vartmor/CADLift-sub001/internal/config"
	"github.com/Vartmor/CADLift-sub001/internal/db"
	"github.com/Vartmor/CADLift-sub001/internal/generator"
	"github.com/Vartmor/CADLift-sub001/internal/inference"
	"github.com/Vartmor/CADLift-sub001/internal/jobs"
	"github.com/Vartmor/CADLift-sub001/internal/llm"
	"github.com/Vartmor/CADLift-sub001/internal/observability"
	"github.com/Vartmor/CADLift-sub001/internal/pipeline"
	"github.com/Vartmor/CADLift-sub001/internal/queue"
	"github.com/Vartmor/CADLift-sub001/internal/storage"
)

// app owns the connections shared by a command and closes them in reverse
// order of opening.
type app struct {
	cfg     *config.Config
	redis   *redis.Client
	closers []func()
}

func newApp(cfg *config.Config) *app { return &app{cfg: cfg} }

func (a *app) onClose(fn func()) { a.closers = append(a.closers, fn) }

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// redisClient connects on first use.
func (a *app) redisClient(ctx context.Context) (*redis.Client, error) {
	if a.redis != nil {
		return a.redis, nil
	}
	if a.cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	client, err := queue.Connect(ctx, a.cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	a.onClose(func() { _ = client.Close() })
	a.redis = client
	return client, nil
}

// jobStore picks Postgres when DATABASE_URL is set, then Redis, then memory.
func (a *app) jobStore(ctx context.Context) (jobs.Store, error) {
	switch {
	case a.cfg.DatabaseURL != "":
		database, err := db.Connect(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.onClose(database.Close)
		if err := database.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		log.Info("job store: postgres")
		return db.JobStore{DB: database}, nil
	case a.cfg.RedisURL != "":
		client, err := a.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		log.Info("job store: redis")
		return jobs.NewRedisStore(client, a.cfg.JobTTL), nil
	default:
		log.Warn("job store: memory (jobs are lost on restart)")
		return jobs.NewMemoryStore(), nil
	}
}

// blobStore uses MinIO when an endpoint is configured.
func (a *app) blobStore(ctx context.Context) (storage.Store, error) {
	cfg := a.cfg
	if cfg.MinIO.Endpoint == "" {
		log.Warn("blob store: memory")
		return storage.NewMemoryStore(), nil
	}
	store, err := storage.NewMinIOStore(ctx, storage.MinIOConfig{
		Endpoint:  cfg.MinIO.Endpoint,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		Bucket:    cfg.MinIO.Bucket,
		UseSSL:    cfg.MinIO.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	log.WithField("bucket", cfg.MinIO.Bucket).Info("blob store: minio")
	return store, nil
}

// generators fills the generator slots of deps from configuration.
// Generators whose backing service is not configured stay nil and are
// reported unavailable by the orchestrator.
func (a *app) generators(ctx context.Context, deps *pipeline.Deps) error {
	cfg := a.cfg
	var kernel cad.Kernel
	switch cfg.CAD.Kernel {
	case config.KernelProcess:
		kernel = cad.NewProcessKernel(cfg.CAD.Binary, cfg.CAD.Concurrency, cfg.GeneratorTimeout)
	default:
		kernel = cad.NewLocalKernel()
	}
	deps.Parametric = generator.NewParametric(kernel, cfg.GeneratorTimeout)

	var backend generator.Backend
	switch cfg.Neural.Backend {
	case config.NeuralRemote:
		backend = inference.NewRemote(inference.RemoteConfig{BaseURL: cfg.Neural.URL, APIKey: cfg.Neural.APIKey})
	case config.NeuralLocal:
		backend = inference.NewLocal(cfg.Neural.URL, cfg.GeneratorTimeout)
	}
	if backend != nil {
		deps.NeuralImage = generator.NewNeural(generator.ConditionImage, backend, cfg.GeneratorTimeout)
		deps.NeuralText = generator.NewNeural(generator.ConditionText, backend, cfg.GeneratorTimeout)
	}

	if cfg.Gemini.APIKey != "" {
		client, err := llm.NewClient(ctx, llm.DefaultConfig(), cfg.Gemini.APIKey)
		if err != nil {
			return fmt.Errorf("failed to create LLM client: %w", err)
		}
		a.onClose(func() { _ = client.Close() })
		deps.Vectorizer = generator.NewVectorizer(llm.NewVision(client), cfg.VisionTimeout)
		deps.Planner = llm.NewPlanner(client)
		deps.PlannerTimeout = cfg.VisionTimeout
	}

	log.WithFields(log.Fields{
		"cad_kernel":     kernel.Name(),
		"neural_backend": cfg.Neural.Backend,
		"vision":         deps.Vectorizer != nil,
	}).Info("generators configured")
	return nil
}

// orchestrator opens both stores and builds an orchestrator over them.
func (a *app) orchestrator(ctx context.Context, metrics *observability.Metrics) (*pipeline.Orchestrator, pipeline.Deps, error) {
	deps := pipeline.Deps{Metrics: metrics}
	var err error
	if deps.Store, err = a.jobStore(ctx); err != nil {
		return nil, deps, err
	}
	if deps.Blobs, err = a.blobStore(ctx); err != nil {
		return nil, deps, err
	}
	if err := a.generators(ctx, &deps); err != nil {
		return nil, deps, err
	}
	return pipeline.New(deps), deps, nil
}

// logRelease is the pool's completion hook. Outcomes are logged by the
// orchestrator itself.
func logRelease(pool *pipeline.Pool) func(*jobs.Job, *pipeline.Result, error) {
	return func(job *jobs.Job, _ *pipeline.Result, _ error) {
		log.WithFields(log.Fields{"job_id": job.ID, "running": pool.Running()}).Debug("worker slot released")
	}
}
