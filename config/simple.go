// Package config wires the build pipeline end to end for callers that do
// not want to assemble the service themselves.
package config

import (
	"context"
	"log/slog"

	"github.com/debspin/debspin/internal/build"
	"github.com/debspin/debspin/internal/build/full"
	"github.com/debspin/debspin/internal/build/stub"
	"github.com/debspin/debspin/internal/logging"
	"github.com/debspin/debspin/internal/probe"
	"github.com/debspin/debspin/internal/progress"
)

// DefaultOutputDir is where finalized artifacts land unless overridden.
var DefaultOutputDir = "."

// Options adjusts the end-to-end build flow.
type Options struct {
	OutputDir string
	TempDir   string
	Logger    *slog.Logger
	Progress  progress.Publisher
}

// Build runs one complete ISO build session for the provided configuration.
func Build(ctx context.Context, cfg build.Config, opts Options) (*build.Result, error) {
	logger := logging.Ensure(opts.Logger).With("component", "config.build")

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = DefaultOutputDir
	}

	service := &build.Service{
		Logger:    logger,
		Prober:    &probe.SystemProber{},
		FullPath:  &full.Builder{Logger: logger.With("path", "full")},
		StubPath:  &stub.Builder{Logger: logger.With("path", "stub")},
		OutputDir: outputDir,
		TempDir:   opts.TempDir,
	}

	return service.Run(ctx, cfg, opts.Progress)
}
