package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/shapectx/internal/pipeline"
	"github.com/MeKo-Tech/shapectx/internal/report"
	"github.com/MeKo-Tech/shapectx/internal/testutil"
)

func TestProcessBatch_WritesReports(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")
	paths := testutil.GenerateSilhouettes(t, src)

	config := DefaultConfig()
	config.OutputDir = dst
	config.Workers = 2

	res, err := ProcessBatch(context.Background(), []string{src}, config)
	require.NoError(t, err)
	assert.Len(t, res.ImagePaths, len(paths))
	assert.Len(t, res.Written, len(paths))
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Skipped)

	data, err := os.ReadFile(filepath.Join(dst, "silhouette_ring.ctx")) //nolint:gosec // G304: test temp path
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), `<?xml version="1.0" standalone="yes"?>`))
	assert.Contains(t, string(data), `<silhouette contours="2" outer-contour-list="1">`)

	matches, err := filepath.Glob(filepath.Join(dst, "*.part"))
	require.NoError(t, err)
	assert.Empty(t, matches)

	// Existing reports are skipped on the next run unless forced.
	res, err = ProcessBatch(context.Background(), []string{src}, config)
	require.NoError(t, err)
	assert.Len(t, res.Skipped, len(paths))
	assert.Empty(t, res.Written)

	config.Force = true
	res, err = ProcessBatch(context.Background(), []string{src}, config)
	require.NoError(t, err)
	assert.Len(t, res.Written, len(paths))
}

func TestProcessBatch_CombinedOutput(t *testing.T) {
	src := t.TempDir()
	paths := testutil.GenerateSilhouettes(t, src)

	config := DefaultConfig()
	config.Format = report.FormatJSON
	res, err := ProcessBatch(context.Background(), paths[:2], config)
	require.NoError(t, err)
	require.Len(t, res.Documents(), 2)

	var buf bytes.Buffer
	require.NoError(t, res.SaveResults(&buf, config.Format, config.Precision, ""))
	var parsed struct {
		Images []report.Document `json:"images"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	require.Len(t, parsed.Images, 2)
	assert.Equal(t, paths[0], parsed.Images[0].Source)
	assert.Equal(t, paths[1], parsed.Images[1].Source)

	out := filepath.Join(t.TempDir(), "all.csv")
	require.NoError(t, res.SaveResults(nil, report.FormatCSV, 6, out))
	data, err := os.ReadFile(out) //nolint:gosec // G304: test temp path
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "file,contour,parent"))
}

func TestProcessBatch_XMLNeedsOutputDir(t *testing.T) {
	paths := testutil.GenerateSilhouettes(t, t.TempDir())
	_, err := ProcessBatch(context.Background(), paths, DefaultConfig())
	require.ErrorIs(t, err, report.ErrUnsupportedFormat)

	config := DefaultConfig()
	config.Format = "pdf"
	_, err = ProcessBatch(context.Background(), paths, config)
	require.ErrorIs(t, err, report.ErrUnsupportedFormat)
}

func TestProcessBatch_FailingImage(t *testing.T) {
	src := t.TempDir()
	paths := testutil.GenerateSilhouettes(t, src)
	broken := filepath.Join(src, "broken.png")
	require.NoError(t, os.WriteFile(broken, []byte("not a png"), 0o600))

	config := DefaultConfig()
	config.Format = report.FormatJSON
	res, err := ProcessBatch(context.Background(), []string{src}, config)
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, broken, res.Errors[0].Path)
	assert.Len(t, res.Documents(), len(paths))

	config.ContinueOnError = false
	_, err = ProcessBatch(context.Background(), []string{src}, config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.png")
}

func TestProcessBatch_NoImages(t *testing.T) {
	config := DefaultConfig()
	config.Format = report.FormatJSON
	_, err := ProcessBatch(context.Background(), []string{t.TempDir()}, config)
	require.ErrorIs(t, err, ErrNoImages)
}

func TestProcessBatch_Overlays(t *testing.T) {
	src := t.TempDir()
	paths := testutil.GenerateSilhouettes(t, src)
	overlays := filepath.Join(t.TempDir(), "ov")

	config := DefaultConfig()
	config.Format = report.FormatJSON
	config.OverlayDir = overlays
	_, err := ProcessBatch(context.Background(), paths[:1], config)
	require.NoError(t, err)

	img := testutil.LoadImage(t, filepath.Join(overlays, "silhouette_rect_overlay.png"))
	assert.Equal(t, 160, img.Bounds().Dx())
}

func TestPlanTargets_Duplicates(t *testing.T) {
	config := DefaultConfig()
	config.OutputDir = t.TempDir()
	_, _, err := planTargets([]string{"a/x.png", "b/x.bmp"}, config)
	require.ErrorIs(t, err, ErrDuplicateTarget)
}

func TestReportPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "shape.ctx"), reportPath("out", "/in/shape.png", report.FormatXML))
	assert.Equal(t, filepath.Join("out", "shape.json"), reportPath("out", "shape.png", report.FormatJSON))
}

func TestResult_PrintStats(t *testing.T) {
	doc := &report.Document{Contours: make([]report.Contour, 1500)}
	res := &Result{
		Images:      []*pipeline.ImageResult{{Document: doc}, nil},
		ImagePaths:  []string{"a.png", "b.png"},
		Skipped:     []string{"c.png"},
		Duration:    2 * time.Second,
		WorkerCount: 4,
	}
	var buf bytes.Buffer
	res.PrintStats(&buf)
	out := buf.String()
	assert.Contains(t, out, "Total images: 3")
	assert.Contains(t, out, "Processed: 1")
	assert.Contains(t, out, "Skipped: 1")
	assert.Contains(t, out, "Failed: 1")
	assert.Contains(t, out, "Contours: 1,500 (0 failed)")
	assert.Contains(t, out, "Workers: 4")
}

func TestFileError(t *testing.T) {
	e := FileError{Path: "a.png", Err: os.ErrNotExist}
	assert.Equal(t, "a.png: file does not exist", e.Error())
	require.ErrorIs(t, e, os.ErrNotExist)
}
