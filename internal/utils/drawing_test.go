package utils

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MeKo-Tech/shapectx/internal/geom"
)

var red = color.NRGBA{R: 255, A: 255}

func isRed(img *image.NRGBA, x, y int) bool {
	return img.NRGBAAt(x, y) == red
}

func TestCloneImage(t *testing.T) {
	src := image.NewGray(image.Rect(5, 5, 9, 8))
	src.SetGray(5, 5, color.Gray{Y: 200})
	dst := CloneImage(src)
	assert.Equal(t, image.Rect(0, 0, 4, 3), dst.Bounds())
	assert.Equal(t, uint8(200), dst.NRGBAAt(0, 0).R)
}

func TestDrawRect(t *testing.T) {
	dst := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	DrawRect(dst, image.Rect(2, 2, 6, 6), red, 1)
	assert.True(t, isRed(dst, 2, 2))
	assert.True(t, isRed(dst, 5, 5))
	assert.True(t, isRed(dst, 2, 4))
	assert.False(t, isRed(dst, 3, 3))

	// Fully outside: nothing drawn, no panic.
	DrawRect(dst, image.Rect(20, 20, 30, 30), red, 1)
}

func TestDrawPolygon(t *testing.T) {
	dst := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	DrawPolygon(dst, []geom.Point{{X: 1, Y: 1}, {X: 8, Y: 1}, {X: 8, Y: 8}}, red, 1)
	assert.True(t, isRed(dst, 1, 1))
	assert.True(t, isRed(dst, 4, 1))
	assert.True(t, isRed(dst, 8, 5))
	assert.True(t, isRed(dst, 5, 5))
	assert.False(t, isRed(dst, 1, 8))

	DrawPolygon(dst, []geom.Point{{X: 0, Y: 9}}, red, 1)
	assert.False(t, isRed(dst, 0, 9))
}

func TestDrawContourAndCross(t *testing.T) {
	dst := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	DrawContour(dst, geom.Contour{{0, 0}, {9, 9}, {12, 12}}, red, 1)
	assert.True(t, isRed(dst, 0, 0))
	assert.True(t, isRed(dst, 9, 9))
	assert.False(t, isRed(dst, 5, 5))

	DrawCross(dst, geom.Point{X: 5, Y: 5}, 2, red)
	assert.True(t, isRed(dst, 3, 5))
	assert.True(t, isRed(dst, 5, 7))
	assert.False(t, isRed(dst, 4, 4))
}

func TestDrawLine_Thick(t *testing.T) {
	dst := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	DrawLine(dst, image.Pt(2, 5), image.Pt(7, 5), red, 3)
	assert.True(t, isRed(dst, 4, 4))
	assert.True(t, isRed(dst, 4, 6))
	assert.False(t, isRed(dst, 4, 7))
}
