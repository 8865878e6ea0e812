package batch

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/shapectx/internal/pipeline"
	"github.com/MeKo-Tech/shapectx/internal/report"
	"github.com/MeKo-Tech/shapectx/internal/utils"
)

// ErrDuplicateTarget is returned when two inputs map to the same report file.
var ErrDuplicateTarget = errors.New("inputs map to the same report file")

// buildPipeline creates the pipeline from the batch configuration.
func buildPipeline(config *Config) (*pipeline.Pipeline, error) {
	b := pipeline.NewBuilder().
		WithInvert(config.Invert).
		WithThreshold(config.Threshold).
		WithMinPoints(config.MinPoints)
	if config.ContourWorkers > 0 {
		b = b.WithWorkers(config.ContourWorkers)
	} else if config.Workers > 1 {
		// Images already run in parallel.
		b = b.WithWorkers(1)
	}
	return b.Build()
}

// reportPath returns the per-image report path: the image's base name with
// the format's extension, inside dir.
func reportPath(dir, image, format string) string {
	base := filepath.Base(image)
	return filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base))+report.Extension(format))
}

// planTargets drops inputs whose report already exists unless Force is set.
func planTargets(files []string, config *Config) (todo, skipped []string, err error) {
	seen := make(map[string]string, len(files))
	for _, f := range files {
		target := reportPath(config.OutputDir, f, config.Format)
		if prev, ok := seen[target]; ok {
			return nil, nil, fmt.Errorf("%w: %s and %s -> %s", ErrDuplicateTarget, prev, f, target)
		}
		seen[target] = f

		if !config.Force {
			if _, statErr := os.Stat(target); statErr == nil {
				skipped = append(skipped, f)
				continue
			}
		}
		todo = append(todo, f)
	}
	return todo, skipped, nil
}

// writeReports writes one report per processed image into OutputDir.
func writeReports(result *Result, config *Config) error {
	if err := os.MkdirAll(config.OutputDir, 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	opts := report.Options{Format: config.Format, Precision: config.Precision}
	for i, img := range result.Images {
		if img == nil {
			continue
		}
		data, err := report.Format(img.Document, opts)
		if err != nil {
			return fmt.Errorf("format %s: %w", result.ImagePaths[i], err)
		}
		target := reportPath(config.OutputDir, result.ImagePaths[i], config.Format)
		if err := report.WriteFileAtomic(target, data); err != nil {
			return err
		}
		result.Written = append(result.Written, target)
		slog.Debug("Report written", "file", target, "contours", len(img.Document.Contours))
	}
	return nil
}

// writeOverlays renders an overlay PNG per processed image. Failures are
// logged and do not affect the batch.
func writeOverlays(result *Result, config *Config) {
	if err := os.MkdirAll(config.OverlayDir, 0o750); err != nil {
		slog.Warn("Cannot create overlay directory", "dir", config.OverlayDir, "error", err)
		return
	}
	for i, res := range result.Images {
		if res == nil {
			continue
		}
		path := result.ImagePaths[i]
		img, _, err := utils.LoadImage(path)
		if err != nil {
			slog.Warn("Cannot reload image for overlay", "file", path, "error", err)
			continue
		}
		if err := saveOverlay(pipeline.RenderOverlay(img, res, config.Overlay), path, config.OverlayDir); err != nil {
			slog.Warn("Cannot write overlay", "file", path, "error", err)
		}
	}
}

// saveOverlay writes ov as <dir>/<name>_overlay.png.
func saveOverlay(ov *image.NRGBA, src, dir string) error {
	if ov == nil {
		return errors.New("nothing to render")
	}
	base := filepath.Base(src)
	outPath := filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base))+"_overlay.png")
	var buf bytes.Buffer
	if err := png.Encode(&buf, ov); err != nil {
		return err
	}
	return report.WriteFileAtomic(outPath, buf.Bytes())
}
