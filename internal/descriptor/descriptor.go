// Package descriptor assembles the shape descriptor record of a contour from
// its moments, local frame, enclosing shapes and chain code.
package descriptor

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/MeKo-Tech/shapectx/internal/chaincode"
	"github.com/MeKo-Tech/shapectx/internal/frame"
	"github.com/MeKo-Tech/shapectx/internal/geom"
	"github.com/MeKo-Tech/shapectx/internal/moments"
)

// Descriptor is the immutable measurement record of one contour.
type Descriptor struct {
	Contour      geom.Contour     `json:"-" yaml:"-"`
	Area         float64          `json:"area" yaml:"area"`
	Perimeter    float64          `json:"perimeter" yaml:"perimeter"`
	Compactness  float64          `json:"compactness" yaml:"compactness"`
	Centroid     geom.Point       `json:"centroid" yaml:"centroid"`
	Convex       bool             `json:"convex" yaml:"convex"`
	BoundingRect image.Rectangle  `json:"bounding_rect" yaml:"bounding_rect"`
	Frame        frame.Frame      `json:"frame" yaml:"frame"`
	MinAreaRect  geom.RotatedRect `json:"min_area_rect" yaml:"min_area_rect"`
	Ellipse      *geom.Ellipse    `json:"ellipse,omitempty" yaml:"ellipse,omitempty"`
	Circle       geom.Circle      `json:"min_enclosing_circle" yaml:"min_enclosing_circle"`
	Variance     moments.Variance `json:"variance" yaml:"variance"`
	Moments      moments.Moments  `json:"moments" yaml:"moments"`
	Chain        chaincode.Chain  `json:"-" yaml:"-"`
	// ChainErr is set when the contour is not 8-connected; Chain is then empty and
	// every other measure is still valid.
	ChainErr     error            `json:"-" yaml:"-"`
}

// ChainString returns the chain in "x y c c ..." form, or "" when the
// contour could not be chain coded.
func (d *Descriptor) ChainString() string {
	if d.ChainErr != nil {
		return ""
	}
	return d.Chain.String()
}

// Analyze computes the descriptor of c. It fails with a
// *moments.DegenerateContourError for contours without area. A contour that
// is not 8-connected still gets its measures; the
// *chaincode.NonAdjacentPointsError is kept in ChainErr.
func Analyze(c geom.Contour) (*Descriptor, error) {
	m, err := moments.FromContour(c)
	if err != nil {
		return nil, err
	}
	chain, chainErr := chaincode.Encode(c)

	pts := c.Points()
	perimeter := geom.ArcLength(c)
	d := &Descriptor{
		Contour:      c.Clone(),
		Area:         m.M00,
		Perimeter:    perimeter,
		Compactness:  Compactness(m.M00, perimeter),
		Centroid:     m.Centroid(),
		Convex:       geom.IsConvex(c),
		BoundingRect: geom.BoundingRect(c),
		Frame:        frame.Estimate(c, m, perimeter),
		MinAreaRect:  geom.MinAreaRect(pts),
		Circle:       geom.MinEnclosingCircle(pts),
		Variance:     m.Variance(),
		Moments:      m,
		Chain:        chain,
		ChainErr:     chainErr,
	}

	e, err := geom.FitEllipse(pts)
	switch {
	case err == nil:
		d.Ellipse = &e
	case errors.Is(err, geom.ErrUnderdeterminedFit):
		// Fewer than five points: no ellipse.
	case errors.Is(err, geom.ErrDegenerateFit):
		me := momentEllipse(m)
		d.Ellipse = &me
	default:
		return nil, fmt.Errorf("fit ellipse: %w", err)
	}
	return d, nil
}

// Compactness returns 4*pi*area/perimeter^2. Digitized concave shapes may
// exceed 1; the value is left as is.
func Compactness(area, perimeter float64) float64 {
	if perimeter == 0 {
		return 0
	}
	return 4 * math.Pi * area / (perimeter * perimeter)
}

// momentEllipse is the ellipse with the same area-normalized second moments
// as the shape.
func momentEllipse(m moments.Moments) geom.Ellipse {
	v := m.Variance()
	a := v.VX - v.VY
	b := 2 * v.VXY
	l0 := math.Sqrt(a*a + b*b)
	l1 := 0.5 * (v.VX + v.VY + l0)
	l2 := max(0, 0.5*(v.VX+v.VY-l0))
	angle := 0.5 * math.Atan2(b, a) * 180 / math.Pi
	if angle < 0 {
		angle += 180
	}
	return geom.Ellipse{
		Center: m.Centroid(),
		Major:  4 * math.Sqrt(l1),
		Minor:  4 * math.Sqrt(l2),
		Angle:  angle,
	}
}
