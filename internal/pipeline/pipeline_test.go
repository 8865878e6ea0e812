package pipeline

import (
	"context"
	"image"
	"image/color"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/shapectx/internal/descriptor"
	"github.com/MeKo-Tech/shapectx/internal/testutil"
	"github.com/MeKo-Tech/shapectx/internal/utils"
)

func silhouette(t *testing.T, shape testutil.Shape) image.Image {
	t.Helper()
	config := testutil.DefaultSilhouetteConfig()
	config.Shape = shape
	img, err := testutil.GenerateSilhouette(config)
	require.NoError(t, err)
	return img
}

func newPipeline(t *testing.T, b *Builder) *Pipeline {
	t.Helper()
	p, err := b.Build()
	require.NoError(t, err)
	return p
}

func TestBuilder_Defaults(t *testing.T) {
	cfg := NewBuilder().Config()
	assert.Equal(t, -1, cfg.Binarize.Threshold)
	assert.False(t, cfg.Binarize.Invert)
	assert.Equal(t, 1, cfg.MinPoints)
	assert.Positive(t, cfg.Workers)
}

func TestBuilder_Options(t *testing.T) {
	cfg := NewBuilder().
		WithInvert(true).
		WithThreshold(100).
		WithMinPoints(5).
		WithWorkers(3).
		WithConstraints(utils.ImageConstraints{MinWidth: 8}).
		Config()
	assert.True(t, cfg.Binarize.Invert)
	assert.Equal(t, 100, cfg.Binarize.Threshold)
	assert.Equal(t, 5, cfg.MinPoints)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 8, cfg.Constraints.MinWidth)

	// Non-positive values keep the previous setting.
	cfg = NewBuilder().WithMinPoints(0).WithWorkers(-2).Config()
	assert.Equal(t, 1, cfg.MinPoints)
	assert.Positive(t, cfg.Workers)

	base := NewBuilder().WithMinPoints(7).Config()
	cfg = NewBuilderWithConfig(base).WithInvert(true).Config()
	assert.Equal(t, 7, cfg.MinPoints)
	assert.True(t, cfg.Binarize.Invert)
}

func TestBuilder_Validate(t *testing.T) {
	require.NoError(t, NewBuilder().Validate())

	_, err := NewBuilder().WithThreshold(300).Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "threshold")
}

func TestProcessImage_Rectangle(t *testing.T) {
	p := newPipeline(t, NewBuilder())
	res, err := p.ProcessImage(silhouette(t, testutil.ShapeRect), "rect.png")
	require.NoError(t, err)

	doc := res.Document
	assert.Equal(t, "rect.png", doc.Source)
	assert.Equal(t, 160, doc.Width)
	assert.Equal(t, 120, doc.Height)
	require.Len(t, doc.Contours, 1)
	require.Len(t, res.Contours, 1)

	d := doc.Contours[0].Descriptor
	require.NotNil(t, d)
	assert.Equal(t, image.Rect(32, 36, 128, 84), d.BoundingRect)
	assert.InDelta(t, 95*47, d.Area, 1e-9)
	assert.InDelta(t, 2*(95+47), d.Perimeter, 1e-9)
	assert.True(t, d.Convex)
	assert.InDelta(t, 79.5, d.Centroid.X, 1e-9)
	assert.InDelta(t, 59.5, d.Centroid.Y, 1e-9)

	// The major axis runs along x.
	a := math.Mod(math.Abs(d.Frame.Angle), 180)
	assert.InDelta(t, 0, math.Min(a, 180-a), 1e-6)
	assert.Greater(t, d.Frame.Size[0], d.Frame.Size[1])

	assert.Equal(t, 1, res.Stats.Total)
	assert.Equal(t, 1, res.Stats.Analyzed)
	assert.Positive(t, res.Processing.TotalNs)

	profile := p.Profile()
	assert.Equal(t, int64(1), profile["images"])
	assert.Equal(t, int64(1), profile["contours_analyzed"])
}

func TestProcessImage_RingHierarchy(t *testing.T) {
	p := newPipeline(t, NewBuilder().WithWorkers(2))
	res, err := p.ProcessImage(silhouette(t, testutil.ShapeRing), "")
	require.NoError(t, err)

	doc := res.Document
	require.Len(t, doc.Contours, 2)
	assert.Equal(t, -1, doc.Contours[0].Hierarchy.Parent)
	assert.Equal(t, 1, doc.Contours[0].Hierarchy.FirstChild)
	assert.Equal(t, 0, doc.Contours[1].Hierarchy.Parent)
	assert.Equal(t, []int{0}, doc.OuterContours())
	require.NotNil(t, doc.Contours[0].Descriptor)
	require.NotNil(t, doc.Contours[1].Descriptor)
	assert.Greater(t, doc.Contours[0].Descriptor.Area, doc.Contours[1].Descriptor.Area)
}

func TestProcessImage_Invert(t *testing.T) {
	config := testutil.DefaultSilhouetteConfig()
	config.Background = color.White
	config.Foreground = color.Black
	img, err := testutil.GenerateSilhouette(config)
	require.NoError(t, err)

	p := newPipeline(t, NewBuilder().WithInvert(true))
	res, err := p.ProcessImage(img, "")
	require.NoError(t, err)
	require.Len(t, res.Document.Contours, 1)
	require.NotNil(t, res.Document.Contours[0].Descriptor)
	assert.Equal(t, image.Rect(32, 36, 128, 84), res.Document.Contours[0].Descriptor.BoundingRect)
}

func TestProcessImage_MinPoints(t *testing.T) {
	p := newPipeline(t, NewBuilder().WithMinPoints(100000))
	res, err := p.ProcessImage(silhouette(t, testutil.ShapeRing), "")
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	for _, r := range res.Results {
		require.ErrorIs(t, r.Err, ErrTooFewPoints)
	}
	assert.Equal(t, 2, res.Document.Failed())
	assert.Equal(t, 2, res.Stats.Failed)
}

func TestProcessImage_Empty(t *testing.T) {
	p := newPipeline(t, NewBuilder())
	res, err := p.ProcessImage(testutil.CreateTestImage(20, 10, color.Black), "")
	require.NoError(t, err)
	assert.Empty(t, res.Document.Contours)
}

func TestProcessImage_Errors(t *testing.T) {
	p := newPipeline(t, NewBuilder().WithConstraints(utils.ImageConstraints{MinWidth: 500}))
	_, err := p.ProcessImage(silhouette(t, testutil.ShapeRect), "")
	var ie *utils.ImageError
	require.ErrorAs(t, err, &ie)

	var nilPipeline *Pipeline
	_, err = nilPipeline.ProcessImage(silhouette(t, testutil.ShapeRect), "")
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = newPipeline(t, NewBuilder()).ProcessImageContext(ctx, silhouette(t, testutil.ShapeRect), "")
	require.ErrorIs(t, err, context.Canceled)
}

func TestProcessImageStream(t *testing.T) {
	p := newPipeline(t, NewBuilder().WithWorkers(4))
	seen := map[int]bool{}
	res, err := p.ProcessImageStream(context.Background(), silhouette(t, testutil.ShapeRing), "",
		func(index int, r descriptor.Result) {
			assert.NoError(t, r.Err)
			seen[index] = true
		})
	require.NoError(t, err)
	assert.Len(t, seen, len(res.Document.Contours))
}

func TestProcessFile(t *testing.T) {
	paths := testutil.GenerateSilhouettes(t, t.TempDir())
	p := newPipeline(t, NewBuilder())

	res, img, err := p.ProcessFile(context.Background(), paths[0])
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.Equal(t, paths[0], res.Document.Source)
	assert.NotEmpty(t, res.Document.Contours)

	_, _, err = p.ProcessFile(context.Background(), filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)
}
