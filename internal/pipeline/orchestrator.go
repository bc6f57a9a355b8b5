// Package pipeline runs generation jobs through the stage machine: generate,
// combine, refine, export.
package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Vartmor/CADLift-sub001/internal/combine"
	"github.com/Vartmor/CADLift-sub001/internal/export"
	"github.com/Vartmor/CADLift-sub001/internal/generator"
	"github.com/Vartmor/CADLift-sub001/internal/jobs"
	"github.com/Vartmor/CADLift-sub001/internal/mesh"
	"github.com/Vartmor/CADLift-sub001/internal/observability"
	"github.com/Vartmor/CADLift-sub001/internal/quality"
	"github.com/Vartmor/CADLift-sub001/internal/repair"
	"github.com/Vartmor/CADLift-sub001/internal/storage"
	"github.com/Vartmor/CADLift-sub001/internal/types"
)

// Pipeline kinds reported in result metadata.
const (
	KindVectorize  = "vectorize"
	KindNeural     = "neural"
	KindParametric = "parametric"
	KindHybrid     = "hybrid"
)

// Deps are the collaborators of an Orchestrator. Store and Blobs are
// required; nil generators count as unavailable and nil stages get defaults.
type Deps struct {
	Store jobs.Store
	Blobs storage.Store

	NeuralImage generator.Generator
	NeuralText  generator.Generator
	Vectorizer  generator.Generator
	Parametric  generator.Generator
	Planner     generator.Planner
	// PlannerTimeout bounds a planner call; zero uses generator.DefaultTimeout.
	PlannerTimeout time.Duration

	Scorer   repair.MeshScorer
	Repairer repair.MeshRepairer
	Schedule repair.Schedule
	Combiner *combine.Combiner
	Exporter *export.Exporter

	Metrics *observability.Metrics
	// OnProgress receives every persisted status change.
	OnProgress func(jobs.StatusView)
}

// Result is the artifact bundle of a completed job.
type Result struct {
	JobID      uuid.UUID
	Mesh       []byte // final mesh as binary STL
	Exports    map[string][]byte
	OutputKeys map[string]string
	Quality    quality.Metrics
	Metadata   types.ResultMetadata
}

// Orchestrator runs jobs. It holds no per-job state and is safe for
// concurrent use.
type Orchestrator struct {
	deps   Deps
	tracer trace.Tracer
}

// New returns an orchestrator, filling in default scorer, repairer,
// combiner, and exporter.
func New(deps Deps) *Orchestrator {
	if deps.Scorer == nil {
		deps.Scorer = quality.DefaultScorer()
	}
	if deps.Repairer == nil {
		deps.Repairer = repair.NewRepairer()
	}
	if deps.Schedule == (repair.Schedule{}) {
		deps.Schedule = repair.DefaultSchedule()
	}
	if deps.Combiner == nil {
		deps.Combiner = combine.NewCombiner()
	}
	if deps.Exporter == nil {
		deps.Exporter = export.NewExporter()
	}
	return &Orchestrator{deps: deps, tracer: otel.Tracer("cadlift/pipeline")}
}

// run is the per-job state shared by the stages.
type run struct {
	job     *jobs.Job
	tracker *jobs.Tracker
	logger  *log.Entry
	params  types.Params
	input   generator.Input
}

// Run drives job to a terminal state. On success the job is completed with
// its output keys and the result is returned; on any failure the job is
// recorded as failed with the error's kind and the error is returned.
func (o *Orchestrator) Run(ctx context.Context, job *jobs.Job) (*Result, error) {
	r := &run{
		job:     job,
		tracker: jobs.NewTracker(o.deps.Store, job, o.deps.OnProgress),
		logger:  log.WithField("job_id", job.ID),
		params:  job.Request.Params.WithDefaults(),
	}

	ctx, span := o.tracer.Start(ctx, "job", trace.WithAttributes(
		attribute.String("job.id", job.ID.String()),
		attribute.String("job.mode", string(job.Request.Mode)),
		attribute.String("job.source_type", string(job.Request.SourceType)),
	))
	defer span.End()

	o.deps.Metrics.JobStarted()
	start := time.Now()
	res, err := o.run(ctx, r)
	if err != nil {
		kind := ErrorKind(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		if ferr := r.tracker.Fail(ctx, kind, err.Error()); ferr != nil {
			r.logger.WithError(ferr).Error("failed to record job failure")
		}
		o.deps.Metrics.JobFinished(string(jobs.StatusFailed), kind)
		r.logger.WithFields(log.Fields{
			"error_kind": kind,
			"duration":   time.Since(start).String(),
		}).WithError(err).Warn("job failed")
		return nil, err
	}

	o.deps.Metrics.JobFinished(string(jobs.StatusCompleted), "")
	o.deps.Metrics.ObserveQuality(res.Quality.OverallScore, res.Metadata.Retries)
	r.logger.WithFields(log.Fields{
		"pipeline": res.Metadata.Pipeline,
		"score":    res.Quality.OverallScore,
		"retries":  res.Metadata.Retries,
		"duration": time.Since(start).String(),
	}).Info("job completed")
	return res, nil
}

// Abandon records job as cancelled without running any stage. It is used for
// jobs cancelled while they waited for a worker.
func (o *Orchestrator) Abandon(ctx context.Context, job *jobs.Job, cause error) error {
	tracker := jobs.NewTracker(o.deps.Store, job, o.deps.OnProgress)
	if err := tracker.Fail(ctx, jobs.KindCancelled, cause.Error()); err != nil {
		return err
	}
	o.deps.Metrics.JobAbandoned(string(jobs.StatusFailed), jobs.KindCancelled)
	log.WithField("job_id", job.ID).Info("job cancelled before start")
	return nil
}

// scorerFor narrows the built-in scorer's face window to the job's target.
// Custom scorers are used as given.
func (o *Orchestrator) scorerFor(params types.Params) repair.MeshScorer {
	if s, ok := o.deps.Scorer.(*quality.Scorer); ok {
		return s.ForTarget(params.TargetFaces)
	}
	return o.deps.Scorer
}

func (o *Orchestrator) run(ctx context.Context, r *run) (*Result, error) {
	meta := types.ResultMetadata{SourceType: r.job.Request.SourceType}
	var outs []*generator.Output

	err := o.stage(ctx, r, jobs.StageGenerating, func(ctx context.Context) error {
		if err := o.loadInput(ctx, r); err != nil {
			return err
		}
		if r.job.Hybrid() {
			var err error
			outs, err = o.generateHybrid(ctx, r)
			return err
		}
		out, kind, err := o.generateSingle(ctx, r)
		if err != nil {
			return err
		}
		outs, meta.Pipeline = []*generator.Output{out}, kind
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, out := range outs {
		meta.Generators = append(meta.Generators, out.Generator)
		if out.Provider == "neural" {
			meta.Provider, meta.Backend, meta.Device = out.Provider, out.Backend, out.Device
		} else if meta.Provider == "" {
			meta.Provider = out.Provider
		}
	}

	candidate := outs[0].Mesh
	if meta.Pipeline == "" {
		meta.Pipeline = pipelineOf(outs[0].Generator)
	}
	if len(outs) == 2 {
		meta.Pipeline = KindHybrid
		err = o.stage(ctx, r, jobs.StageCombining, func(ctx context.Context) error {
			var err error
			candidate, err = o.deps.Combiner.Combine(ctx, outs[0].Mesh, outs[1].Mesh, r.params.Placement)
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	var loop *repair.LoopResult
	err = o.stage(ctx, r, jobs.StageRefining, func(ctx context.Context) error {
		retries := r.params.Retries()
		if meta.Pipeline == KindParametric || meta.Pipeline == KindVectorize {
			retries = 0
		}
		var err error
		loop, err = repair.RunQualityLoop(ctx, candidate, o.deps.Repairer, o.scorerFor(r.params), repair.LoopOptions{
			TargetFaces: r.params.TargetFaces,
			MinQuality:  r.params.MinQuality,
			MaxRetries:  retries,
			Schedule:    o.deps.Schedule,
			OnAttempt: func(attempt int, m quality.Metrics) {
				o.advance(ctx, r, float64(attempt)/float64(retries+1))
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	meta.Retries = loop.Attempts
	meta.ThresholdMet = loop.ThresholdMet

	res := &Result{JobID: r.job.ID, Quality: loop.Metrics, Metadata: meta}
	err = o.stage(ctx, r, jobs.StageExporting, func(ctx context.Context) error {
		// A started export set is finished even if the job is cancelled.
		ctx = context.WithoutCancel(ctx)
		var err error
		if res.Mesh, err = mesh.EncodeSTL(loop.Mesh); err != nil {
			return &export.ExportError{Format: export.FormatSTL, Message: "failed to encode final mesh", Cause: err}
		}
		if res.Exports, err = o.deps.Exporter.Export(ctx, loop.Mesh, r.params.Formats); err != nil {
			return err
		}
		res.OutputKeys = make(map[string]string, len(res.Exports))
		done := 0
		for format, data := range res.Exports {
			key := storage.KeyOutput(r.job.ID, format)
			if _, err := o.deps.Blobs.Put(ctx, key, data, storage.ContentTypeFor(format)); err != nil {
				return &StorageError{Op: "put", Key: key, Cause: err}
			}
			res.OutputKeys[format] = key
			done++
			o.advance(ctx, r, float64(done)/float64(len(res.Exports)))
		}
		return r.tracker.Complete(ctx, res.OutputKeys, &jobs.ResultSummary{Metadata: meta, Quality: loop.Metrics})
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// stage enters s, runs fn inside a span, and records the stage duration.
// Cancellation is checked before entering, so a cancelled job never starts
// another stage.
func (o *Orchestrator) stage(ctx context.Context, r *run, s jobs.Stage, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.tracker.Enter(ctx, s); err != nil {
		return err
	}
	r.logger.WithField("stage", s).Debug("stage entered")

	ctx, span := o.tracer.Start(ctx, string(s))
	defer span.End()
	start := time.Now()
	err := fn(ctx)
	o.deps.Metrics.ObserveStage(string(s), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrorKind(err))
	}
	return err
}

func (o *Orchestrator) advance(ctx context.Context, r *run, f float64) {
	if err := r.tracker.Advance(ctx, f); err != nil {
		r.logger.WithError(err).Warn("failed to record progress")
	}
}

// loadInput fetches the image payload and parses inline instructions.
func (o *Orchestrator) loadInput(ctx context.Context, r *run) error {
	req := r.job.Request
	r.input = generator.Input{Prompt: req.Prompt, Params: r.params}

	if req.SourceType == types.SourceImage && r.job.InputKey != "" {
		data, err := o.deps.Blobs.Get(ctx, r.job.InputKey)
		if err != nil {
			return &StorageError{Op: "get", Key: r.job.InputKey, Cause: err}
		}
		r.input.Image = data
		r.input.ImageMIME = http.DetectContentType(data)
	}
	if len(req.Instructions) > 0 {
		prog, err := generator.ParseProgram(req.Instructions)
		if err != nil {
			return err
		}
		r.input.Program = prog
	}
	return nil
}

// unavailable collects the reasons candidates were skipped.
type unavailable []string

func (u *unavailable) add(name, reason string) {
	*u = append(*u, name+": "+reason)
}

func (u unavailable) err() error {
	return &generator.GenerationError{
		Generator: "none",
		Message:   "no generator available (" + strings.Join(u, "; ") + ")",
	}
}

// available reports whether g can be dispatched, recording why not.
func available(ctx context.Context, g generator.Generator, name string, skipped *unavailable) bool {
	if g == nil {
		skipped.add(name, "not configured")
		return false
	}
	if a := g.Availability(ctx); !a.OK {
		skipped.add(g.Name(), a.Reason)
		return false
	}
	return true
}

// generateSingle selects one generator for the source type.
func (o *Orchestrator) generateSingle(ctx context.Context, r *run) (*generator.Output, string, error) {
	var skipped unavailable
	switch r.job.Request.SourceType {
	case types.SourceImage:
		// 2d_to_3d asks for the drawing's contours extruded; other modes
		// treat the image as conditioning for the neural model first.
		order := []struct {
			gen  generator.Generator
			name string
			kind string
		}{
			{o.deps.NeuralImage, generator.NameNeuralImage, KindNeural},
			{o.deps.Vectorizer, generator.NameVectorizer, KindVectorize},
		}
		if r.job.Request.Mode == types.Mode2DTo3D {
			order[0], order[1] = order[1], order[0]
		}
		for _, c := range order {
			if available(ctx, c.gen, c.name, &skipped) {
				out, err := c.gen.Generate(ctx, r.input)
				return out, c.kind, err
			}
		}
	case types.SourcePrompt:
		if available(ctx, o.deps.NeuralText, generator.NameNeuralText, &skipped) {
			out, err := o.deps.NeuralText.Generate(ctx, r.input)
			return out, KindNeural, err
		}
		if o.plannerAvailable(ctx, &skipped) && available(ctx, o.deps.Parametric, generator.NameParametric, &skipped) {
			out, err := o.planAndBuild(ctx, r)
			return out, KindParametric, err
		}
	case types.SourceParametric:
		if o.deps.Parametric == nil {
			return nil, "", &generator.ParametricBuildError{Message: "no CAD kernel configured"}
		}
		out, err := o.deps.Parametric.Generate(ctx, r.input)
		return out, KindParametric, err
	default:
		return nil, "", fmt.Errorf("unknown source type %q", r.job.Request.SourceType)
	}
	return nil, "", skipped.err()
}

func (o *Orchestrator) plannerAvailable(ctx context.Context, skipped *unavailable) bool {
	if o.deps.Planner == nil {
		skipped.add("planner", "not configured")
		return false
	}
	if a := o.deps.Planner.Availability(ctx); !a.OK {
		skipped.add(o.deps.Planner.Name(), a.Reason)
		return false
	}
	return true
}

func (o *Orchestrator) planAndBuild(ctx context.Context, r *run) (*generator.Output, error) {
	prog, err := generator.Plan(ctx, o.deps.Planner, r.input.Prompt, o.deps.PlannerTimeout)
	if err != nil {
		return nil, err
	}
	in := r.input
	in.Program = prog
	return o.deps.Parametric.Generate(ctx, in)
}

// generateHybrid runs the neural and parametric branches in parallel. A
// branch without a capable generator or without input is skipped; at least
// one must run. The neural output, when present, comes first.
func (o *Orchestrator) generateHybrid(ctx context.Context, r *run) ([]*generator.Output, error) {
	var skipped unavailable

	var neural generator.Generator
	switch {
	case len(r.input.Image) > 0 && available(ctx, o.deps.NeuralImage, generator.NameNeuralImage, &skipped):
		neural = o.deps.NeuralImage
	case r.input.Prompt != "" && available(ctx, o.deps.NeuralText, generator.NameNeuralText, &skipped):
		neural = o.deps.NeuralText
	}

	var parametric func(context.Context) (*generator.Output, error)
	if r.input.Program != nil || r.input.Prompt != "" {
		if available(ctx, o.deps.Parametric, generator.NameParametric, &skipped) {
			switch {
			case r.input.Program != nil:
				parametric = func(ctx context.Context) (*generator.Output, error) {
					return o.deps.Parametric.Generate(ctx, r.input)
				}
			case o.plannerAvailable(ctx, &skipped):
				parametric = func(ctx context.Context) (*generator.Output, error) {
					return o.planAndBuild(ctx, r)
				}
			}
		}
	} else {
		skipped.add(generator.NameParametric, "no instructions or prompt")
	}

	if neural == nil && parametric == nil {
		return nil, skipped.err()
	}

	var neuralOut, paramOut *generator.Output
	var finished atomic.Int32
	branches := 0
	g, gCtx := errgroup.WithContext(ctx)
	if neural != nil {
		branches++
		g.Go(func() error {
			out, err := neural.Generate(gCtx, r.input)
			if err != nil {
				return err
			}
			neuralOut = out
			o.advance(ctx, r, float64(finished.Add(1))/2)
			return nil
		})
	}
	if parametric != nil {
		branches++
		g.Go(func() error {
			out, err := parametric(gCtx)
			if err != nil {
				return err
			}
			paramOut = out
			o.advance(ctx, r, float64(finished.Add(1))/2)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	r.logger.WithFields(log.Fields{
		"branches": branches,
		"skipped":  strings.Join(skipped, "; "),
	}).Debug("hybrid generation finished")

	var outs []*generator.Output
	for _, out := range []*generator.Output{neuralOut, paramOut} {
		if out != nil {
			outs = append(outs, out)
		}
	}
	return outs, nil
}

func pipelineOf(generatorName string) string {
	switch generatorName {
	case generator.NameVectorizer:
		return KindVectorize
	case generator.NameParametric:
		return KindParametric
	default:
		return KindNeural
	}
}
