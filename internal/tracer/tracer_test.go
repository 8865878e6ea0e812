package tracer

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/shapectx/internal/chaincode"
	"github.com/MeKo-Tech/shapectx/internal/geom"
	"github.com/MeKo-Tech/shapectx/internal/moments"
	"github.com/MeKo-Tech/shapectx/internal/testutil"
)

// maskFromRows builds a mask from strings where '#' is foreground.
func maskFromRows(rows ...string) *Mask {
	m := NewMask(len(rows[0]), len(rows))
	for y, row := range rows {
		for x, c := range row {
			m.Set(x, y, c == '#')
		}
	}
	return m
}

func TestFindContours_Block(t *testing.T) {
	m := maskFromRows(
		".....",
		".###.",
		".###.",
		".###.",
		".....",
	)
	contours, links := FindContours(m)
	require.Len(t, contours, 1)
	assert.Equal(t, testutil.RectContour(1, 1, 3, 3), contours[0])
	assert.Equal(t, []Link{noLink}, links)
}

func TestFindContours_TouchingEdges(t *testing.T) {
	m := maskFromRows(
		"##",
		"##",
	)
	contours, _ := FindContours(m)
	require.Len(t, contours, 1)
	assert.Equal(t, geom.Contour{{0, 0}, {0, 1}, {1, 1}, {1, 0}}, contours[0])
}

func TestFindContours_SinglePixelAndLine(t *testing.T) {
	m := maskFromRows(
		"#....",
		".....",
		"..###",
	)
	contours, links := FindContours(m)
	require.Len(t, contours, 2)
	assert.Equal(t, geom.Contour{{0, 0}}, contours[0])
	assert.Equal(t, geom.Contour{{2, 2}, {3, 2}, {4, 2}, {3, 2}}, contours[1])

	assert.Equal(t, Link{Next: 1, Previous: -1, FirstChild: -1, Parent: -1}, links[0])
	assert.Equal(t, Link{Next: -1, Previous: 0, FirstChild: -1, Parent: -1}, links[1])
}

func TestFindContours_Hole(t *testing.T) {
	m := maskFromRows(
		"#####",
		"#####",
		"##.##",
		"#####",
		"#####",
	)
	contours, links := FindContours(m)
	require.Len(t, contours, 2)
	assert.Len(t, contours[0], 16)
	assert.Equal(t, geom.Contour{{1, 2}, {2, 1}, {3, 2}, {2, 3}}, contours[1])

	assert.Equal(t, Link{Next: -1, Previous: -1, FirstChild: 1, Parent: -1}, links[0])
	assert.Equal(t, Link{Next: -1, Previous: -1, FirstChild: -1, Parent: 0}, links[1])
}

func TestFindContours_IslandInHole(t *testing.T) {
	m := maskFromRows(
		"#########",
		"#.......#",
		"#.......#",
		"#.......#",
		"#...#...#",
		"#.......#",
		"#.......#",
		"#.......#",
		"#########",
	)
	contours, links := FindContours(m)
	require.Len(t, contours, 3)
	assert.Equal(t, -1, links[0].Parent)
	assert.Equal(t, 1, links[0].FirstChild)
	assert.Equal(t, 0, links[1].Parent)
	assert.Equal(t, 2, links[1].FirstChild)
	assert.Equal(t, 1, links[2].Parent)
	assert.Equal(t, geom.Contour{{4, 4}}, contours[2])
}

func TestFindContours_Empty(t *testing.T) {
	contours, links := FindContours(NewMask(4, 4))
	assert.Empty(t, contours)
	assert.Empty(t, links)

	contours, links = FindContours(nil)
	assert.Nil(t, contours)
	assert.Nil(t, links)
}

func TestFindContours_ChainCodable(t *testing.T) {
	for _, shape := range []testutil.Shape{
		testutil.ShapeRect, testutil.ShapeDisk, testutil.ShapeRing, testutil.ShapeTriangle, testutil.ShapeL,
	} {
		t.Run(string(shape), func(t *testing.T) {
			config := testutil.DefaultSilhouetteConfig()
			config.Shape = shape
			img, err := testutil.GenerateSilhouette(config)
			require.NoError(t, err)

			mask, _ := Binarize(img, DefaultBinarizeOptions())
			contours, links := FindContours(mask)
			require.NotEmpty(t, contours)
			require.Len(t, links, len(contours))

			for i, c := range contours {
				ch, err := chaincode.Encode(c)
				require.NoError(t, err, "contour %d", i)
				back, err := chaincode.Decode(ch)
				require.NoError(t, err)
				assert.True(t, back.Equal(c))
			}

			if shape == testutil.ShapeRing {
				require.Len(t, contours, 2)
				assert.Equal(t, 0, links[1].Parent)
				outer, err := moments.FromContour(contours[0])
				require.NoError(t, err)
				hole, err := moments.FromContour(contours[1])
				require.NoError(t, err)
				assert.Greater(t, outer.M00, hole.M00)
			}
		})
	}
}

func TestBinarize(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 2))
	for x := range 4 {
		img.SetGray(x, 0, color.Gray{Y: 20})
		img.SetGray(x, 1, color.Gray{Y: 220})
	}

	mask, threshold := Binarize(img, DefaultBinarizeOptions())
	assert.GreaterOrEqual(t, threshold, uint8(20))
	assert.Less(t, threshold, uint8(220))
	assert.False(t, mask.At(0, 0))
	assert.True(t, mask.At(0, 1))
	assert.Equal(t, 4, mask.Count())

	inverted, _ := Binarize(img, BinarizeOptions{Threshold: -1, Invert: true})
	assert.True(t, inverted.At(0, 0))
	assert.False(t, inverted.At(0, 1))

	fixed, threshold := Binarize(img, BinarizeOptions{Threshold: 250})
	assert.Equal(t, uint8(250), threshold)
	assert.Zero(t, fixed.Count())

	all, _ := Binarize(img, BinarizeOptions{Threshold: 0})
	assert.Equal(t, 8, all.Count())
}

func TestOtsuThreshold(t *testing.T) {
	var hist [256]int
	hist[10] = 100
	hist[200] = 50
	got := OtsuThreshold(hist)
	assert.GreaterOrEqual(t, got, uint8(10))
	assert.Less(t, got, uint8(200))

	assert.Zero(t, OtsuThreshold([256]int{}))
}

func TestMask(t *testing.T) {
	m := NewMask(3, 2)
	m.Set(2, 1, true)
	assert.True(t, m.At(2, 1))
	assert.False(t, m.At(3, 1))
	assert.False(t, m.At(-1, 0))
	assert.Equal(t, 1, m.Count())
	m.Set(2, 1, false)
	assert.Zero(t, m.Count())
}
