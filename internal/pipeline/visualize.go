package pipeline

import (
	"fmt"
	"image"
	"image/color"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/MeKo-Tech/shapectx/internal/geom"
	"github.com/MeKo-Tech/shapectx/internal/utils"
)

// OverlayStyle selects the colors used by RenderOverlay. A nil Contour color
// gives every contour its own hue.
type OverlayStyle struct {
	Contour color.Color
	Rect    color.Color
	Axis    color.Color
	Failed  color.Color
}

// DefaultOverlayStyle returns per-contour hues with a yellow rectangle, cyan
// axis and red failures.
func DefaultOverlayStyle() OverlayStyle {
	s, _ := ParseOverlayStyle("", "#ffd700", "#00e5ff", "#ff1744")
	return s
}

// ParseOverlayStyle builds a style from hex strings such as "#ff0000". An
// empty contour color selects per-contour hues.
func ParseOverlayStyle(contourHex, rectHex, axisHex, failedHex string) (OverlayStyle, error) {
	parse := func(name, hex string) (color.Color, error) {
		if hex == "" {
			return nil, nil
		}
		c, err := colorful.Hex(hex)
		if err != nil {
			return nil, fmt.Errorf("%s color: %w", name, err)
		}
		return c.Clamped(), nil
	}
	var s OverlayStyle
	var err error
	if s.Contour, err = parse("contour", contourHex); err != nil {
		return OverlayStyle{}, err
	}
	if s.Rect, err = parse("rect", rectHex); err != nil {
		return OverlayStyle{}, err
	}
	if s.Axis, err = parse("axis", axisHex); err != nil {
		return OverlayStyle{}, err
	}
	if s.Failed, err = parse("failed", failedHex); err != nil {
		return OverlayStyle{}, err
	}
	return s, nil
}

// contourHue spreads hues by the golden angle so neighbouring indices differ.
func contourHue(i int) color.Color {
	return colorful.Hsv(math.Mod(float64(i)*137.508, 360), 0.85, 0.95).Clamped()
}

// RenderOverlay draws each contour of res over a copy of img, together with
// its minimum-area rectangle, principal axis and centroid. Contours that
// could not be analyzed are drawn in the failure color only.
func RenderOverlay(img image.Image, res *ImageResult, style OverlayStyle) *image.NRGBA {
	if img == nil {
		return nil
	}
	dst := utils.CloneImage(img)
	if res == nil || res.Document == nil {
		return dst
	}

	for i, c := range res.Document.Contours {
		if i >= len(res.Contours) {
			break
		}
		contour := res.Contours[i]
		d := c.Descriptor
		if d == nil {
			if style.Failed != nil {
				utils.DrawContour(dst, contour, style.Failed, 1)
			}
			continue
		}

		col := style.Contour
		if col == nil {
			col = contourHue(i)
		}
		utils.DrawContour(dst, contour, col, 1)

		if style.Rect != nil {
			corners := d.MinAreaRect.Corners()
			utils.DrawPolygon(dst, corners[:], style.Rect, 1)
		}
		if style.Axis != nil {
			drawAxis(dst, d.Frame.Center, d.Frame.Angle, d.Frame.Size[0], style.Axis)
			utils.DrawCross(dst, d.Centroid, 2, style.Axis)
		}
	}
	return dst
}

// drawAxis draws a segment of half-length r from center along angle degrees,
// measured in image coordinates.
func drawAxis(dst *image.NRGBA, center geom.Point, angle, r float64, col color.Color) {
	if r < 1 {
		r = 1
	}
	rad := angle * math.Pi / 180
	tip := geom.Pt(center.X+r*math.Cos(rad), center.Y+r*math.Sin(rad))
	a := image.Pt(int(math.Round(center.X)), int(math.Round(center.Y)))
	b := image.Pt(int(math.Round(tip.X)), int(math.Round(tip.Y)))
	utils.DrawLine(dst, a, b, col, 1)
}
