// Package moments computes raw, central and normalized geometric moments up
// to third order of a closed polygon.
package moments

import (
	"errors"
	"fmt"
	"math"

	"github.com/MeKo-Tech/shapectx/internal/geom"
)

// ErrDegenerateContour is matched by every *DegenerateContourError.
var ErrDegenerateContour = errors.New("degenerate contour")

// DegenerateContourError reports a contour whose enclosed area is not
// positive, which leaves normalization undefined.
type DegenerateContourError struct {
	Points int
	Area   float64
}

func (e *DegenerateContourError) Error() string {
	return fmt.Sprintf("degenerate contour: %d points enclose area %g", e.Points, e.Area)
}

// Unwrap returns ErrDegenerateContour.
func (e *DegenerateContourError) Unwrap() error { return ErrDegenerateContour }

// Moments holds the raw spatial moments m_pq for p+q <= 3, the central
// moments for p+q in {2,3} and the matching normalized moments.
type Moments struct {
	M00  float64 `json:"m00" yaml:"m00"`
	M10  float64 `json:"m10" yaml:"m10"`
	M01  float64 `json:"m01" yaml:"m01"`
	M20  float64 `json:"m20" yaml:"m20"`
	M11  float64 `json:"m11" yaml:"m11"`
	M02  float64 `json:"m02" yaml:"m02"`
	M30  float64 `json:"m30" yaml:"m30"`
	M21  float64 `json:"m21" yaml:"m21"`
	M12  float64 `json:"m12" yaml:"m12"`
	M03  float64 `json:"m03" yaml:"m03"`
	Mu20 float64 `json:"mu20" yaml:"mu20"`
	Mu11 float64 `json:"mu11" yaml:"mu11"`
	Mu02 float64 `json:"mu02" yaml:"mu02"`
	Mu30 float64 `json:"mu30" yaml:"mu30"`
	Mu21 float64 `json:"mu21" yaml:"mu21"`
	Mu12 float64 `json:"mu12" yaml:"mu12"`
	Mu03 float64 `json:"mu03" yaml:"mu03"`
	Nu20 float64 `json:"nu20" yaml:"nu20"`
	Nu11 float64 `json:"nu11" yaml:"nu11"`
	Nu02 float64 `json:"nu02" yaml:"nu02"`
	Nu30 float64 `json:"nu30" yaml:"nu30"`
	Nu21 float64 `json:"nu21" yaml:"nu21"`
	Nu12 float64 `json:"nu12" yaml:"nu12"`
	Nu03 float64 `json:"nu03" yaml:"nu03"`
}

// FromContour computes the moments of a lattice contour.
func FromContour(c geom.Contour) (Moments, error) {
	return Compute(c.Points())
}

// Compute evaluates the polygon moments of the closed point sequence with
// Green's theorem. The result does not depend on the traversal direction.
func Compute(pts []geom.Point) (Moments, error) {
	m := raw(pts)
	if m.M00 <= 0 {
		return m, &DegenerateContourError{Points: len(pts), Area: m.M00}
	}
	m.central()
	return m, nil
}

func raw(pts []geom.Point) Moments {
	n := len(pts)
	if n == 0 {
		return Moments{}
	}
	var a00, a10, a01, a20, a11, a02, a30, a21, a12, a03 float64
	xp, yp := pts[n-1].X, pts[n-1].Y
	xp2 := xp * xp
	yp2 := yp * yp
	for _, p := range pts {
		x, y := p.X, p.Y
		x2 := x * x
		y2 := y * y
		dxy := xp*y - x*yp
		xii := xp + x
		yii := yp + y

		a00 += dxy
		a10 += dxy * xii
		a01 += dxy * yii
		a20 += dxy * (xp*xii + x2)
		a11 += dxy * (xp*(yii+yp) + x*(yii+y))
		a02 += dxy * (yp*yii + y2)
		a30 += dxy * xii * (xp2 + x2)
		a03 += dxy * yii * (yp2 + y2)
		a21 += dxy * (xp2*(3*yp+y) + 2*x*xp*yii + x2*(yp+3*y))
		a12 += dxy * (yp2*(3*xp+x) + 2*y*yp*xii + y2*(xp+3*x))

		xp, yp = x, y
		xp2, yp2 = x2, y2
	}

	// Counter-clockwise and clockwise traversals differ only in sign.
	if a00 < 0 {
		a00, a10, a01 = -a00, -a10, -a01
		a20, a11, a02 = -a20, -a11, -a02
		a30, a21, a12, a03 = -a30, -a21, -a12, -a03
	}
	return Moments{
		M00: a00 / 2,
		M10: a10 / 6,
		M01: a01 / 6,
		M20: a20 / 12,
		M11: a11 / 24,
		M02: a02 / 12,
		M30: a30 / 20,
		M21: a21 / 60,
		M12: a12 / 60,
		M03: a03 / 20,
	}
}

func (m *Moments) central() {
	cx := m.M10 / m.M00
	cy := m.M01 / m.M00

	m.Mu20 = m.M20 - m.M10*cx
	m.Mu11 = m.M11 - m.M10*cy
	m.Mu02 = m.M02 - m.M01*cy
	m.Mu30 = m.M30 - cx*(3*m.Mu20+cx*m.M10)
	m.Mu21 = m.M21 - cx*(2*m.Mu11+cx*m.M01) - cy*m.Mu20
	m.Mu12 = m.M12 - cy*(2*m.Mu11+cy*m.M10) - cx*m.Mu02
	m.Mu03 = m.M03 - cy*(3*m.Mu02+cy*m.M01)

	s2 := 1 / (m.M00 * m.M00)
	s3 := s2 / math.Sqrt(m.M00)
	m.Nu20 = m.Mu20 * s2
	m.Nu11 = m.Mu11 * s2
	m.Nu02 = m.Mu02 * s2
	m.Nu30 = m.Mu30 * s3
	m.Nu21 = m.Mu21 * s3
	m.Nu12 = m.Mu12 * s3
	m.Nu03 = m.Mu03 * s3
}

// Centroid returns (m10/m00, m01/m00).
func (m Moments) Centroid() geom.Point {
	return geom.Point{X: m.M10 / m.M00, Y: m.M01 / m.M00}
}

// Variance holds the second-order central moments scaled by the area.
type Variance struct {
	VX  float64 `json:"vx" yaml:"vx"`
	VY  float64 `json:"vy" yaml:"vy"`
	VXY float64 `json:"vxy" yaml:"vxy"`
}

// Variance returns mu20/m00, mu02/m00 and mu11/m00.
func (m Moments) Variance() Variance {
	return Variance{
		VX:  m.Mu20 / m.M00,
		VY:  m.Mu02 / m.M00,
		VXY: m.Mu11 / m.M00,
	}
}

// Raw returns the ten raw moments in m00, m10, m01, m20, m11, m02, m30, m21,
// m12, m03 order.
func (m Moments) Raw() [10]float64 {
	return [10]float64{m.M00, m.M10, m.M01, m.M20, m.M11, m.M02, m.M30, m.M21, m.M12, m.M03}
}

// Central returns mu20, mu11, mu02, mu30, mu21, mu12, mu03.
func (m Moments) Central() [7]float64 {
	return [7]float64{m.Mu20, m.Mu11, m.Mu02, m.Mu30, m.Mu21, m.Mu12, m.Mu03}
}

// Normalized returns nu20, nu11, nu02, nu30, nu21, nu12, nu03.
func (m Moments) Normalized() [7]float64 {
	return [7]float64{m.Nu20, m.Nu11, m.Nu02, m.Nu30, m.Nu21, m.Nu12, m.Nu03}
}
