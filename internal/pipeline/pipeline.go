package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"time"

	"github.com/MeKo-Tech/shapectx/internal/descriptor"
	"github.com/MeKo-Tech/shapectx/internal/geom"
	"github.com/MeKo-Tech/shapectx/internal/report"
	"github.com/MeKo-Tech/shapectx/internal/tracer"
	"github.com/MeKo-Tech/shapectx/internal/utils"
)

// ErrTooFewPoints marks contours skipped because they are shorter than the
// configured minimum.
var ErrTooFewPoints = errors.New("contour has too few points")

// Config holds configuration for the silhouette pipeline.
type Config struct {
	Binarize    tracer.BinarizeOptions
	MinPoints   int // contours with fewer points are reported as failed
	Workers     int // contour analysis workers per image (0 = runtime.NumCPU())
	Constraints utils.ImageConstraints
}

// DefaultConfig returns a default pipeline config.
func DefaultConfig() Config {
	return Config{
		Binarize:    tracer.DefaultBinarizeOptions(),
		MinPoints:   1,
		Workers:     runtime.NumCPU(),
		Constraints: utils.DefaultImageConstraints(),
	}
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg Config
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// NewBuilderWithConfig starts from an existing configuration.
func NewBuilderWithConfig(cfg Config) *Builder { return &Builder{cfg: cfg} }

// WithInvert treats dark pixels as the silhouette.
func (b *Builder) WithInvert(invert bool) *Builder {
	b.cfg.Binarize.Invert = invert
	return b
}

// WithThreshold sets a fixed gray threshold; a negative value selects Otsu.
func (b *Builder) WithThreshold(t int) *Builder {
	b.cfg.Binarize.Threshold = t
	return b
}

// WithMinPoints sets the minimum contour length that is analyzed.
func (b *Builder) WithMinPoints(n int) *Builder {
	if n > 0 {
		b.cfg.MinPoints = n
	}
	return b
}

// WithWorkers sets the number of contour analysis workers.
func (b *Builder) WithWorkers(n int) *Builder {
	if n > 0 {
		b.cfg.Workers = n
	}
	return b
}

// WithConstraints sets the accepted image dimensions.
func (b *Builder) WithConstraints(c utils.ImageConstraints) *Builder {
	b.cfg.Constraints = c
	return b
}

// Config returns a copy of the current config.
func (b *Builder) Config() Config { return b.cfg }

// Validate checks that the configuration looks sane.
func (b *Builder) Validate() error {
	if b.cfg.Binarize.Threshold > 255 {
		return fmt.Errorf("threshold %d out of range [0,255]", b.cfg.Binarize.Threshold)
	}
	if b.cfg.MinPoints < 1 {
		return fmt.Errorf("min points must be at least 1, got %d", b.cfg.MinPoints)
	}
	if b.cfg.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", b.cfg.Workers)
	}
	return nil
}

// Build validates the configuration and returns the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{cfg: b.cfg}, nil
}

// Pipeline turns silhouette images into shape documents.
type Pipeline struct {
	cfg      Config
	profiler Profiler
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Profile returns cumulative counters of the pipeline.
func (p *Pipeline) Profile() map[string]any { return p.profiler.Snapshot() }

// ImageResult is the per-image output of the pipeline.
type ImageResult struct {
	Document   *report.Document
	Contours   []geom.Contour
	Results    []descriptor.Result
	Stats      descriptor.Stats
	Processing struct {
		TraceNs   int64 `json:"trace_ns"`
		AnalyzeNs int64 `json:"analyze_ns"`
		TotalNs   int64 `json:"total_ns"`
	}
}

// ProcessImage analyzes img with a background context.
func (p *Pipeline) ProcessImage(img image.Image, source string) (*ImageResult, error) {
	return p.ProcessImageContext(context.Background(), img, source)
}

// ProcessImageContext binarizes img, traces its borders and analyzes every
// contour. Per-contour failures are recorded in the document; only image
// level problems and cancellation return an error.
func (p *Pipeline) ProcessImageContext(ctx context.Context, img image.Image, source string) (*ImageResult, error) {
	return p.processImage(ctx, img, source, nil)
}

// ProcessImageStream works like ProcessImageContext and additionally calls
// onContour as each contour finishes, in completion order.
func (p *Pipeline) ProcessImageStream(
	ctx context.Context, img image.Image, source string, onContour func(index int, r descriptor.Result),
) (*ImageResult, error) {
	return p.processImage(ctx, img, source, onContour)
}

func (p *Pipeline) processImage(
	ctx context.Context, img image.Image, source string, onContour func(int, descriptor.Result),
) (*ImageResult, error) {
	if p == nil {
		return nil, errors.New("pipeline not initialized")
	}
	if err := utils.ValidateImageConstraints(img, p.cfg.Constraints); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	mask, threshold := tracer.Binarize(img, p.cfg.Binarize)
	contours, links := tracer.FindContours(mask)
	traced := time.Now()

	// Short contours are failed up front; the rest go through the worker pool
	// under their original indices.
	results := make([]descriptor.Result, len(contours))
	var todo []geom.Contour
	var todoIdx []int
	for i, c := range contours {
		if len(c) < p.cfg.MinPoints {
			results[i] = descriptor.Result{
				Err: fmt.Errorf("%w: %d < %d", ErrTooFewPoints, len(c), p.cfg.MinPoints),
			}
			if onContour != nil {
				onContour(i, results[i])
			}
			continue
		}
		todo = append(todo, c)
		todoIdx = append(todoIdx, i)
	}

	cfg := descriptor.ParallelConfig{MaxWorkers: p.cfg.Workers}
	if onContour != nil {
		cfg.OnResult = func(j int, r descriptor.Result) { onContour(todoIdx[j], r) }
	}
	for j, r := range descriptor.AnalyzeAll(ctx, todo, cfg) {
		results[todoIdx[j]] = r
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	done := time.Now()

	b := img.Bounds()
	doc := report.New(source, b.Dx(), b.Dy(), contours, links, results)
	doc.Threshold = int(threshold)

	res := &ImageResult{
		Document: doc,
		Contours: contours,
		Results:  results,
		Stats:    descriptor.CalculateStats(results, done.Sub(traced)),
	}
	res.Processing.TraceNs = traced.Sub(start).Nanoseconds()
	res.Processing.AnalyzeNs = done.Sub(traced).Nanoseconds()
	res.Processing.TotalNs = done.Sub(start).Nanoseconds()

	p.profiler.Record(res.Processing.TraceNs, res.Processing.AnalyzeNs, res.Stats.Analyzed, res.Stats.Failed)
	return res, nil
}

// ProcessFile loads the image at path and analyzes it.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (*ImageResult, image.Image, error) {
	img, _, err := utils.LoadImage(path)
	if err != nil {
		return nil, nil, err
	}
	res, err := p.ProcessImageContext(ctx, img, path)
	if err != nil {
		return nil, nil, err
	}
	return res, img, nil
}
