package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Vartmor/CADLift-sub001/internal/config"
	"github.com/Vartmor/CADLift-sub001/internal/jobs"
	"github.com/Vartmor/CADLift-sub001/internal/observability"
	"github.com/Vartmor/CADLift-sub001/internal/pipeline"
	"github.com/Vartmor/CADLift-sub001/internal/storage"
	"github.com/Vartmor/CADLift-sub001/internal/types"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Run one generation job locally",
	Long: `Run a single job in process with in-memory stores and write the exported
files to <out>/model.<format>.

Exactly one input is required: --instructions (a JSON CAD program), --image, or --prompt.`,
	RunE: runJobCmd,
}

// runOptions are the inputs of a local run.
type runOptions struct {
	Instructions string
	Image        string
	Prompt       string
	Mode         string
	Formats      []string
	MinQuality   float64
	Out          string
	Verbose      bool
}

var runOpts runOptions

func init() {
	f := runCommand.Flags()
	f.StringVar(&runOpts.Instructions, "instructions", "", "Path to a JSON CAD program")
	f.StringVarP(&runOpts.Image, "image", "i", "", "Path to an input image")
	f.StringVarP(&runOpts.Prompt, "prompt", "p", "", "Text prompt")
	f.StringVarP(&runOpts.Mode, "mode", "m", "", "Generation mode: 2d_to_3d, text_to_3d or hybrid (default depends on the input)")
	f.StringSliceVar(&runOpts.Formats, "formats", nil, "Export formats (default stl,obj,glb,step)")
	f.Float64Var(&runOpts.MinQuality, "min-quality", 0, "Quality threshold from 0 to 10 (default 7)")
	f.StringVarP(&runOpts.Out, "out", "o", "output", "Output directory")
	f.BoolVarP(&runOpts.Verbose, "verbose", "v", false, "Print progress and a quality report")
	rootCmd.AddCommand(runCommand)
}

func runJobCmd(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	if runOpts.Verbose {
		log.SetLevel(log.DebugLevel)
	}
	_, err := runLocal(ctx, cfg, runOpts, cmd.OutOrStdout())
	return err
}

// buildRequest turns the run flags into a generation request. The image, if
// any, is returned separately because it is stored before the job is created.
func buildRequest(opts runOptions) (types.GenerationRequest, []byte, error) {
	var req types.GenerationRequest
	var image []byte

	inputs := 0
	for _, set := range []bool{opts.Instructions != "", opts.Image != "", opts.Prompt != ""} {
		if set {
			inputs++
		}
	}
	if inputs != 1 {
		return req, nil, fmt.Errorf("exactly one of --instructions, --image or --prompt must be provided")
	}

	switch {
	case opts.Instructions != "":
		data, err := os.ReadFile(opts.Instructions)
		if err != nil {
			return req, nil, fmt.Errorf("failed to read instructions: %w", err)
		}
		req.SourceType, req.Mode, req.Instructions = types.SourceParametric, types.Mode2DTo3D, data
	case opts.Image != "":
		data, err := os.ReadFile(opts.Image)
		if err != nil {
			return req, nil, fmt.Errorf("failed to read image: %w", err)
		}
		req.SourceType, req.Mode, image = types.SourceImage, types.Mode2DTo3D, data
	default:
		req.SourceType, req.Mode, req.Prompt = types.SourcePrompt, types.ModeTextTo3D, opts.Prompt
	}
	if opts.Mode != "" {
		req.Mode = types.Mode(opts.Mode)
	}
	req.Params.Formats = opts.Formats
	req.Params.MinQuality = opts.MinQuality
	return req, image, nil
}

// runLocal executes one job against memory stores and writes its exports.
func runLocal(ctx context.Context, cfg *config.Config, opts runOptions, out io.Writer) (*pipeline.Result, error) {
	req, image, err := buildRequest(opts)
	if err != nil {
		return nil, err
	}

	a := newApp(cfg)
	defer a.Close()
	deps := pipeline.Deps{Store: jobs.NewMemoryStore(), Blobs: storage.NewMemoryStore()}
	if err := a.generators(ctx, &deps); err != nil {
		return nil, err
	}
	if opts.Verbose {
		deps.OnProgress = func(v jobs.StatusView) {
			fmt.Fprintf(out, "[%3d%%] %s\n", v.Progress, v.Stage)
		}
	}

	job := jobs.New(uuid.New(), req)
	if image != nil {
		key := storage.KeyInput(job.ID)
		if _, err := deps.Blobs.Put(ctx, key, image, http.DetectContentType(image)); err != nil {
			return nil, err
		}
		job.Request.PayloadKey, job.InputKey = key, key
	}
	if err := job.Request.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if err := deps.Store.Create(ctx, job); err != nil {
		return nil, err
	}

	printer := observability.NewPrinter(out)
	res, err := pipeline.New(deps).Run(ctx, job)
	if err != nil {
		if opts.Verbose {
			printer.PrintFailure(pipeline.ErrorKind(err), err.Error())
		}
		return nil, err
	}

	files, err := writeExports(opts.Out, res.Exports)
	if err != nil {
		return nil, err
	}
	if opts.Verbose {
		printer.PrintQuality(&res.Quality, job.Request.Params.WithDefaults().MinQuality)
		printer.PrintResult(&res.Metadata, files)
	} else {
		formats := make([]string, 0, len(files))
		for f := range files {
			formats = append(formats, f)
		}
		sort.Strings(formats)
		fmt.Fprintf(out, "%s mesh (score %.2f) written to %s: %s\n",
			res.Metadata.Pipeline, res.Quality.OverallScore, opts.Out, strings.Join(formats, ", "))
	}
	return res, nil
}

// writeExports writes each format to dir/model.<format>.
func writeExports(dir string, exports map[string][]byte) (map[string]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	files := make(map[string]string, len(exports))
	for format, data := range exports {
		path := filepath.Join(dir, "model."+format)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		files[format] = path
	}
	return files, nil
}
