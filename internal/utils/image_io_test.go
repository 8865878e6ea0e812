package utils

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func TestIsSupportedImage(t *testing.T) {
	cases := []struct {
		path string
		ok   bool
	}{
		{"a.jpg", true},
		{"b.JPEG", true},
		{"c.png", true},
		{"d.bmp", true},
		{"e.tiff", true},
		{"f.gif", true},
		{"g.pdf", false},
		{"noext", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, IsSupportedImage(c.path), c.path)
	}
}

func writeTempPNG(t *testing.T, dir string, w, h int, col color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, col)
		}
	}
	path := filepath.Join(dir, "test.png")
	f, err := os.Create(path) //nolint:gosec // G304: test temp path
	require.NoError(t, err)
	defer func() {
		require.NoError(t, f.Close())
	}()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestLoadImageAndMetadata(t *testing.T) {
	dir := t.TempDir()
	p := writeTempPNG(t, dir, 10, 20, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	img, meta, err := LoadImage(p)
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.Equal(t, p, meta.Path)
	assert.Equal(t, "png", meta.Format)
	assert.Equal(t, 10, meta.Width)
	assert.Equal(t, 20, meta.Height)
	assert.Positive(t, meta.SizeBytes)
}

func TestLoadImage_Errors(t *testing.T) {
	_, _, err := LoadImage("")
	var ie *ImageError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "load", ie.Operation)

	_, _, err = LoadImage("file.pdf")
	require.ErrorAs(t, err, &ie)

	_, _, err = LoadImage(filepath.Join(t.TempDir(), "missing.png"))
	require.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(t.TempDir(), "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o600))
	_, _, err = LoadImage(bad)
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "decode", ie.Operation)
}

func TestDecodeImage_BMP(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 7, 3))
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, src))

	img, meta, err := DecodeImage(&buf)
	require.NoError(t, err)
	assert.Equal(t, "bmp", meta.Format)
	assert.Equal(t, 7, img.Bounds().Dx())
	assert.Equal(t, 3, meta.Height)
}

func TestValidateImageConstraints(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	require.NoError(t, ValidateImageConstraints(img, DefaultImageConstraints()))
	require.Error(t, ValidateImageConstraints(img, ImageConstraints{MinWidth: 20}))
	require.Error(t, ValidateImageConstraints(img, ImageConstraints{MaxPixels: 99}))
	require.NoError(t, ValidateImageConstraints(img, ImageConstraints{MaxPixels: 100}))
	require.Error(t, ValidateImageConstraints(nil, DefaultImageConstraints()))
}
