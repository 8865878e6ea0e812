package testutil

import (
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSilhouetteConfig(t *testing.T) {
	config := DefaultSilhouetteConfig()
	assert.Equal(t, ShapeRect, config.Shape)
	assert.Equal(t, MediumSize, config.Size)
	assert.Equal(t, color.Black, config.Background)
	assert.Equal(t, color.White, config.Foreground)
	assert.InDelta(t, 0.0, config.Rotation, 0.0001)
}

func TestGenerateSilhouette(t *testing.T) {
	for _, shape := range []Shape{ShapeRect, ShapeDisk, ShapeRing, ShapeTriangle, ShapeL} {
		t.Run(string(shape), func(t *testing.T) {
			config := DefaultSilhouetteConfig()
			config.Shape = shape
			config.Size = SmallSize

			img, err := GenerateSilhouette(config)
			require.NoError(t, err)
			assert.Equal(t, SmallSize.Width, img.Bounds().Dx())
			assert.Equal(t, SmallSize.Height, img.Bounds().Dy())

			// Center pixel belongs to the shape except for the ring hole.
			r, _, _, _ := img.At(SmallSize.Width/2, SmallSize.Height/2).RGBA()
			if shape == ShapeRing {
				assert.Zero(t, r)
			} else {
				assert.NotZero(t, r)
			}
		})
	}

	_, err := GenerateSilhouette(SilhouetteConfig{Shape: "hexagon", Size: SmallSize})
	require.ErrorContains(t, err, "unknown shape")

	_, err = GenerateSilhouette(SilhouetteConfig{Shape: ShapeDisk})
	require.ErrorContains(t, err, "invalid silhouette size")
}

func TestGenerateSilhouette_DefaultColors(t *testing.T) {
	img, err := GenerateSilhouette(SilhouetteConfig{Shape: ShapeDisk, Size: SmallSize, Rotation: 15})
	require.NoError(t, err)

	corner, _, _, _ := img.At(0, 0).RGBA()
	assert.Zero(t, corner)
	b := img.Bounds()
	center, _, _, _ := img.At(b.Min.X+b.Dx()/2, b.Min.Y+b.Dy()/2).RGBA()
	assert.Equal(t, uint32(0xffff), center)
}

func TestGenerateRotatedSilhouette(t *testing.T) {
	config := DefaultSilhouetteConfig()
	config.Rotation = 30

	img, err := GenerateSilhouette(config)
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), MediumSize.Width)
}

func TestRectContour(t *testing.T) {
	c := RectContour(0, 0, 3, 3)
	require.Len(t, c, 8)
	assert.Equal(t, 0, c[0].X)
	assert.Equal(t, 2, c[2].Y)
	assert.Equal(t, 1, c[len(c)-1].X)
	assert.Equal(t, 0, c[len(c)-1].Y)
}

func TestSaveAndLoadImage(t *testing.T) {
	img, err := GenerateSilhouette(DefaultSilhouetteConfig())
	require.NoError(t, err)

	imagePath := filepath.Join(CreateTempDir(t), "test_image.png")
	SaveImage(t, img, imagePath)
	assert.True(t, FileExists(imagePath))

	loadedImg := LoadImage(t, imagePath)
	assert.Equal(t, img.Bounds(), loadedImg.Bounds())
	assert.True(t, CompareImages(img, loadedImg, 0.001))
}

func TestGenerateSilhouettes(t *testing.T) {
	paths := GenerateSilhouettes(t, CreateTempDir(t))
	assert.Len(t, paths, 5)
	for _, p := range paths {
		assert.True(t, FileExists(p))
	}
}
