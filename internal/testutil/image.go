package testutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/shapectx/internal/geom"
)

// ImageSize represents common image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// Common test image sizes.
	SmallSize  = ImageSize{64, 48}
	MediumSize = ImageSize{160, 120}
	LargeSize  = ImageSize{320, 240}
)

// Shape selects the silhouette drawn by GenerateSilhouette.
type Shape string

// Available silhouettes.
const (
	ShapeRect     Shape = "rect"
	ShapeDisk     Shape = "disk"
	ShapeRing     Shape = "ring"
	ShapeTriangle Shape = "triangle"
	ShapeL        Shape = "l"
)

// SilhouetteConfig holds configuration for generating silhouette images.
type SilhouetteConfig struct {
	Shape      Shape
	Size       ImageSize
	Background color.Color
	Foreground color.Color
	Rotation   float64 // rotation in degrees
}

// DefaultSilhouetteConfig returns a light rectangle on a dark background.
func DefaultSilhouetteConfig() SilhouetteConfig {
	return SilhouetteConfig{
		Shape:      ShapeRect,
		Size:       MediumSize,
		Background: color.Black,
		Foreground: color.White,
	}
}

// GenerateSilhouette draws a single centered shape. Nil colors default to a
// white shape on black.
func GenerateSilhouette(config SilhouetteConfig) (*image.RGBA, error) {
	w, h := config.Size.Width, config.Size.Height
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid silhouette size %dx%d", w, h)
	}
	inside, err := shapeTest(config.Shape, float64(w)/2, float64(h)/2, float64(min(w, h))/3)
	if err != nil {
		return nil, err
	}
	if config.Background == nil {
		config.Background = color.Black
	}
	if config.Foreground == nil {
		config.Foreground = color.White
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{config.Background}, image.Point{}, draw.Src)

	fg := image.NewUniform(config.Foreground)
	for y := range h {
		for x := range w {
			if inside(float64(x)+0.5, float64(y)+0.5) {
				img.Set(x, y, fg.C)
			}
		}
	}

	if config.Rotation != 0 {
		rotated := imaging.Rotate(img, config.Rotation, config.Background)
		rgba := image.NewRGBA(rotated.Bounds())
		draw.Draw(rgba, rgba.Bounds(), rotated, rotated.Bounds().Min, draw.Src)
		return rgba, nil
	}

	return img, nil
}

// shapeTest returns the inside test of shape centered at (cx, cy) with
// radius r.
func shapeTest(shape Shape, cx, cy, r float64) (func(x, y float64) bool, error) {
	switch shape {
	case ShapeRect:
		return func(x, y float64) bool {
			return math.Abs(x-cx) <= r*1.2 && math.Abs(y-cy) <= r*0.6
		}, nil
	case ShapeDisk:
		return func(x, y float64) bool { return math.Hypot(x-cx, y-cy) <= r }, nil
	case ShapeRing:
		return func(x, y float64) bool {
			d := math.Hypot(x-cx, y-cy)
			return d <= r && d >= r/2
		}, nil
	case ShapeTriangle:
		// Right triangle with the long leg along x.
		return func(x, y float64) bool {
			u := (x - (cx - r*1.2)) / (r * 2.4)
			v := ((cy + r*0.5) - y) / r
			return u >= 0 && v >= 0 && u+v <= 1
		}, nil
	case ShapeL:
		return func(x, y float64) bool {
			inBox := math.Abs(x-cx) <= r && math.Abs(y-cy) <= r
			inCut := x > cx && y < cy
			return inBox && !inCut
		}, nil
	default:
		return nil, fmt.Errorf("unknown shape %q", shape)
	}
}

// RectContour returns the 8-connected boundary of the w x h pixel block whose
// top-left pixel is (x, y), starting at (x, y) and walking down first.
// Both w and h must be at least 2.
func RectContour(x, y, w, h int) geom.Contour {
	var c geom.Contour
	for j := y; j < y+h; j++ {
		c = append(c, image.Pt(x, j))
	}
	for i := x + 1; i < x+w; i++ {
		c = append(c, image.Pt(i, y+h-1))
	}
	for j := y + h - 2; j >= y; j-- {
		c = append(c, image.Pt(x+w-1, j))
	}
	for i := x + w - 2; i > x; i-- {
		c = append(c, image.Pt(i, y))
	}
	return c
}

// SaveImage saves an image to the specified path.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	dir := filepath.Dir(path)
	require.NoError(t, EnsureDir(dir), "Failed to create directory %s", dir)

	file, err := os.Create(path) //nolint:gosec // G304: Test file creation with controlled path
	require.NoError(t, err, "Failed to create file %s", path)
	defer func() {
		require.NoError(t, file.Close())
	}()

	err = png.Encode(file, img)
	require.NoError(t, err, "Failed to encode PNG image")
}

// LoadImage loads an image from the specified path.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()

	file, err := os.Open(path) //nolint:gosec // G304: Test file reading with controlled path
	require.NoError(t, err, "Failed to open image file %s", path)
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	require.NoError(t, err, "Failed to decode image")

	return img
}

// CompareImages compares two images and returns true if they are similar.
func CompareImages(img1, img2 image.Image, tolerance float64) bool {
	bounds1 := img1.Bounds()
	bounds2 := img2.Bounds()

	if bounds1 != bounds2 {
		return false
	}

	var totalDiff float64
	var pixelCount float64

	for y := bounds1.Min.Y; y < bounds1.Max.Y; y++ {
		for x := bounds1.Min.X; x < bounds1.Max.X; x++ {
			r1, g1, b1, a1 := img1.At(x, y).RGBA()
			r2, g2, b2, a2 := img2.At(x, y).RGBA()

			dr := float64(r1) - float64(r2)
			dg := float64(g1) - float64(g2)
			db := float64(b1) - float64(b2)
			da := float64(a1) - float64(a2)

			totalDiff += math.Sqrt(dr*dr + dg*dg + db*db + da*da)
			pixelCount++
		}
	}

	avgDiff := totalDiff / pixelCount
	maxDiff := math.Sqrt(4 * 65535 * 65535) // Maximum possible difference

	return (avgDiff / maxDiff) <= tolerance
}

// GenerateSilhouettes writes one PNG per shape into dir and returns the paths.
func GenerateSilhouettes(t *testing.T, dir string) []string {
	t.Helper()

	require.NoError(t, EnsureDir(dir))
	shapes := []Shape{ShapeRect, ShapeDisk, ShapeRing, ShapeTriangle, ShapeL}
	paths := make([]string, 0, len(shapes))
	for _, s := range shapes {
		config := DefaultSilhouetteConfig()
		config.Shape = s
		img, err := GenerateSilhouette(config)
		require.NoError(t, err, "Failed to generate silhouette %s", s)

		path := filepath.Join(dir, fmt.Sprintf("silhouette_%s.png", s))
		SaveImage(t, img, path)
		paths = append(paths, path)
	}
	return paths
}

// CreateTestImage creates a simple test image with the specified dimensions and color.
func CreateTestImage(width, height int, backgroundColor color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{backgroundColor}, image.Point{}, draw.Src)
	return img
}

// EncodePNG returns the PNG encoding of img.
func EncodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
