// Package cli implements the pipefitter command: load config and
// catalog, assemble the pipeline from its document, compile, and write
// the executable graph.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/askiada/pipefitter/internal/catalog"
	"github.com/askiada/pipefitter/internal/config"
	"github.com/askiada/pipefitter/pkg/pipeline"
	"github.com/askiada/pipefitter/pkg/pipeline/drawer"
)

// ExitError is an error carrying the process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func usageError(err error) error {
	return &ExitError{Code: 2, Err: err}
}

// Run executes the command with the given arguments. Validation and
// compilation failures exit 1, usage errors exit 2.
func Run(ctx context.Context, args []string, stderr io.Writer) error {
	flagSet := flag.NewFlagSet("pipefitter", flag.ContinueOnError)
	flagSet.SetOutput(stderr)

	flagSet.Usage = func() {
		fmt.Fprint(stderr, `pipefitter - compiles declarative container pipelines into an executable task graph.

Usage:
  pipefitter [options] -pipeline PIPELINE_FILE

Options:
`)
		flagSet.PrintDefaults()
	}

	var (
		pipelinePath  = flagSet.String("pipeline", "", "Path to the pipeline document.")
		componentsDir = flagSet.String("components", "", "Directory containing component contract files.")
		outPath       = flagSet.String("out", "graph.yaml", "Where to write the compiled graph document.")
		dotPath       = flagSet.String("dot", "", "Optionally write a DOT rendering of the compiled graph.")
		configPath    = flagSet.String("config", "", "Path to a config file. Defaults to pipefitter.yaml if present.")
		basePath      = flagSet.String("base-path", "", "Artifact base path manifests are derived under.")
		runID         = flagSet.String("run-id", "", "Run id. A fresh one is generated when empty.")
		clusterType   = flagSet.String("cluster-type", "", "Cluster hint threaded through to the runner.")
		noCache       = flagSet.Bool("no-cache", false, "Disable caching for every node.")
	)

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}

		return usageError(err)
	}

	if *pipelinePath == "" {
		flagSet.Usage()

		return usageError(errors.New("-pipeline must be set"))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return usageError(err)
	}

	if *componentsDir != "" {
		cfg.ComponentsDir = *componentsDir
	}
	if *basePath != "" {
		cfg.BasePath = *basePath
	}
	if *runID != "" {
		cfg.RunID = *runID
	}
	if *clusterType != "" {
		cfg.ClusterType = *clusterType
	}
	if *noCache {
		cfg.Cache = false
	}

	if err := cfg.Validate(); err != nil {
		return usageError(err)
	}

	logger := newLogger(cfg, stderr)

	compiled, err := compile(ctx, cfg, logger, *pipelinePath)
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	if err := writeGraph(compiled, *outPath, *dotPath); err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	logger.Info().
		Str("pipeline", compiled.Name).
		Str("run_id", compiled.RunID).
		Int("tasks", len(compiled.Tasks)).
		Str("out", *outPath).
		Msg("pipeline compiled")

	return nil
}

func compile(ctx context.Context, cfg *config.Config, logger zerolog.Logger, pipelinePath string) (*pipeline.CompiledGraph, error) {
	cat, err := catalog.Init(ctx, cfg.ComponentsDir, logger)
	if err != nil {
		return nil, errors.Wrap(err, "unable to load component catalog")
	}

	doc, err := pipeline.LoadDocument(pipelinePath)
	if err != nil {
		return nil, err
	}

	opts := []pipeline.Option{
		pipeline.WithBasePath(cfg.BasePath),
		pipeline.WithClusterType(cfg.ClusterType),
	}
	if cfg.RunID != "" {
		opts = append(opts, pipeline.WithRunID(cfg.RunID))
	}
	if !cfg.Cache {
		opts = append(opts, pipeline.WithoutCache())
	}

	pipe, err := pipeline.FromDocument(doc, cat.Get, opts...)
	if err != nil {
		return nil, err
	}

	return pipe.Compile()
}

func writeGraph(compiled *pipeline.CompiledGraph, outPath, dotPath string) error {
	out, err := os.Create(outPath)
	if err != nil {
		return errors.Wrapf(err, "unable to create %s", outPath)
	}
	defer out.Close()

	if err := compiled.WriteYAML(out); err != nil {
		return err
	}

	if dotPath == "" {
		return nil
	}

	d := drawer.New()
	if err := d.AddGraph(compiled); err != nil {
		return err
	}

	return d.DrawFile(dotPath)
}

func newLogger(cfg *config.Config, stderr io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(stderr)
	if cfg.LogFormat == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: stderr})
	}

	return logger.Level(level).With().Timestamp().Logger()
}
