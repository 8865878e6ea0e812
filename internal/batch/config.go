package batch

import (
	"fmt"
	"io"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/MeKo-Tech/shapectx/internal/pipeline"
	"github.com/MeKo-Tech/shapectx/internal/report"
)

// Config holds all configuration for batch processing.
type Config struct {
	// Analysis settings
	Invert         bool
	Threshold      int // negative selects Otsu
	MinPoints      int
	ContourWorkers int

	// Output settings. With OutputDir set every image gets its own report
	// file there; otherwise the combined report goes to OutputFile or stdout.
	Format     string
	Precision  int
	OutputFile string
	OutputDir  string
	Force      bool // overwrite existing per-image reports
	OverlayDir string
	Overlay    pipeline.OverlayStyle

	// Parallel processing settings
	Workers         int
	ContinueOnError bool

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Progress settings
	ShowProgress     bool
	Quiet            bool
	ProgressInterval time.Duration
}

// DefaultConfig returns the settings of the plain contour command: XML
// reports, Otsu threshold, continue past failing images.
func DefaultConfig() *Config {
	return &Config{
		Threshold:        -1,
		MinPoints:        1,
		Format:           report.FormatXML,
		Precision:        report.DefaultPrecision,
		Overlay:          pipeline.DefaultOverlayStyle(),
		Workers:          pipeline.DefaultParallelConfig().MaxWorkers,
		ContinueOnError:  true,
		ProgressInterval: 100 * time.Millisecond,
	}
}

// FileError records an image that could not be processed.
type FileError struct {
	Path string `json:"path"`
	Err  error  `json:"-"`
}

func (e FileError) Error() string { return e.Path + ": " + e.Err.Error() }

func (e FileError) Unwrap() error { return e.Err }

// Result holds the result of batch processing. Images and ImagePaths are
// parallel; failed images have a nil entry.
type Result struct {
	Images      []*pipeline.ImageResult
	ImagePaths  []string
	Skipped     []string // inputs whose report already existed
	Written     []string // per-image reports written
	Errors      []FileError
	Duration    time.Duration
	WorkerCount int
}

// Documents returns the documents of the successfully processed images.
func (r *Result) Documents() []*report.Document {
	docs := make([]*report.Document, 0, len(r.Images))
	for _, img := range r.Images {
		if img != nil {
			docs = append(docs, img.Document)
		}
	}
	return docs
}

// FormatResults formats all documents as one output.
func (r *Result) FormatResults(format string, precision int) ([]byte, error) {
	return report.FormatBatch(r.Documents(), report.Options{Format: format, Precision: precision})
}

// SaveResults writes the combined report to outputFile, or to w when
// outputFile is empty.
func (r *Result) SaveResults(w io.Writer, format string, precision int, outputFile string) error {
	output, err := r.FormatResults(format, precision)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}
	if outputFile != "" {
		if err := report.WriteFileAtomic(outputFile, output); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		return nil
	}
	_, err = w.Write(output)
	return err
}

// PrintStats prints processing statistics with grouped thousands.
func (r *Result) PrintStats(w io.Writer) {
	stats := pipeline.CalculateParallelStats(r.Images, r.Duration)
	p := message.NewPrinter(language.English)
	_, _ = p.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = p.Fprintf(w, "  Total images: %d\n", len(r.ImagePaths)+len(r.Skipped))
	_, _ = p.Fprintf(w, "  Processed: %d\n", stats.SuccessfulCount)
	_, _ = p.Fprintf(w, "  Skipped: %d\n", len(r.Skipped))
	_, _ = p.Fprintf(w, "  Failed: %d\n", stats.FailedCount)
	_, _ = p.Fprintf(w, "  Contours: %d (%d failed)\n", stats.TotalContours, stats.FailedContours)
	_, _ = p.Fprintf(w, "  Workers: %d\n", r.WorkerCount)
	_, _ = p.Fprintf(w, "  Duration: %v\n", stats.TotalDuration.Round(time.Millisecond))
	_, _ = p.Fprintf(w, "  Avg per image: %v\n", stats.AveragePerImage.Round(time.Millisecond))
}
