// Package batch runs the silhouette pipeline over many image files and writes
// their reports.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/MeKo-Tech/shapectx/internal/pipeline"
	"github.com/MeKo-Tech/shapectx/internal/report"
)

// ErrNoImages is returned when discovery finds nothing to process.
var ErrNoImages = errors.New("no image files found")

// ProcessBatch discovers the images named by args, analyzes them in parallel
// and writes per-image reports and overlays as configured. Failing images are
// recorded in the result; with ContinueOnError unset the first one aborts the
// batch.
func ProcessBatch(ctx context.Context, args []string, config *Config) (*Result, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if !report.ValidFormat(config.Format) {
		return nil, fmt.Errorf("%w: %q", report.ErrUnsupportedFormat, config.Format)
	}
	if config.OutputDir == "" && config.Format == report.FormatXML {
		return nil, fmt.Errorf("%w: xml needs an output directory", report.ErrUnsupportedFormat)
	}

	files, err := discoverImageFiles(args, config.Recursive, config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoImages
	}

	result := &Result{WorkerCount: config.Workers}
	if config.OutputDir != "" {
		files, result.Skipped, err = planTargets(files, config)
		if err != nil {
			return nil, err
		}
		for _, s := range result.Skipped {
			slog.Info("Report exists, skipping", "file", s)
		}
		if len(files) == 0 {
			return result, nil
		}
	}
	result.ImagePaths = files

	pl, err := buildPipeline(config)
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	parallel := pipeline.ParallelConfig{
		MaxWorkers: config.Workers,
		ErrorHandler: func(_ int, path string, err error) {
			result.Errors = append(result.Errors, FileError{Path: path, Err: err})
			slog.Warn("Image failed", "file", path, "error", err)
		},
	}
	if config.ShowProgress && !config.Quiet {
		parallel.ProgressCallback = pipeline.NewConsoleProgressCallback(os.Stderr, "Processing: ").
			WithUpdateInterval(config.ProgressInterval)
	}

	start := time.Now()
	images, err := pl.ProcessFilesParallel(ctx, files, parallel)
	result.Duration = time.Since(start)
	if images == nil {
		return nil, fmt.Errorf("batch processing failed: %w", err)
	}
	result.Images = images
	if err != nil && !config.ContinueOnError {
		return result, fmt.Errorf("batch processing failed: %w", err)
	}

	if config.OutputDir != "" {
		if err := writeReports(result, config); err != nil {
			return result, err
		}
	}
	if config.OverlayDir != "" {
		writeOverlays(result, config)
	}
	return result, nil
}
