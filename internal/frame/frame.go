// Package frame estimates the local shape frame of a contour: the principal
// axis orientation, resolved to a canonical direction by the third-order
// moments, and the elliptic extent along both axes.
package frame

import (
	"math"

	"github.com/MeKo-Tech/shapectx/internal/geom"
	"github.com/MeKo-Tech/shapectx/internal/moments"
)

// Frame is an oriented rectangle centered on the centroid. Angle is in
// degrees within (-360, 360); Size holds the major and minor half-lengths.
type Frame struct {
	Center geom.Point `json:"center" yaml:"center"`
	Angle  float64    `json:"angle" yaml:"angle"`
	Size   [2]float64 `json:"size" yaml:"size"`
}

// Estimate computes the frame of c from its moments m and perimeter.
func Estimate(c geom.Contour, m moments.Moments, perimeter float64) Frame {
	center := m.Centroid()
	a := m.Mu20 - m.Mu02
	b := 2 * m.Mu11

	theta := PrincipalAngle(a, b)
	theta = Disambiguate(c, center, theta, m.M00)
	theta = normalize(theta)

	return Frame{
		Center: center,
		Angle:  theta,
		Size:   axes(m, a, b, perimeter),
	}
}

// PrincipalAngle returns the major-axis direction, in degrees, of a shape
// with a = mu20-mu02 and b = 2*mu11.
func PrincipalAngle(a, b float64) float64 {
	var phi float64
	switch {
	case a == 0 && b > 0:
		phi = 45
	case a == 0 && b < 0:
		phi = -45
	case a == 0:
		phi = 0
	default:
		phi = 0.5 * math.Atan(b/a) * 180 / math.Pi
	}
	// A negative second derivative of the inertia at phi marks the minor axis.
	r := 2 * phi * math.Pi / 180
	if 2*(a*math.Cos(r)+b*math.Sin(r)) < 0 {
		return phi + 90
	}
	return phi
}

// Disambiguate resolves the 180 degree freedom of theta using the sign of the
// third-order moments of c expressed in the frame (center, theta). area is
// the contour's m00 and sets the zero band.
func Disambiguate(c geom.Contour, center geom.Point, theta, area float64) float64 {
	rm, err := moments.Compute(Reexpress(c, center, theta))
	if err != nil {
		return theta
	}
	eps := math.Sqrt(area/math.Pi) / 128
	if rm.M30 > -eps && rm.M30 < eps {
		if rm.M03 <= -eps {
			theta += 180
		}
	} else if rm.M30 < 0 {
		theta += 180
	}
	return theta
}

// Reexpress translates c to center and rotates it by -theta degrees so the
// frame's x-axis becomes the coordinate x-axis.
func Reexpress(c geom.Contour, center geom.Point, theta float64) []geom.Point {
	rad := theta * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	out := make([]geom.Point, len(c))
	for i, p := range c {
		dx := float64(p.X) - center.X
		dy := float64(p.Y) - center.Y
		out[i] = geom.Point{
			X: dx*cos + dy*sin,
			Y: -dx*sin + dy*cos,
		}
	}
	return out
}

func normalize(theta float64) float64 {
	if theta >= 360 {
		return theta - 360
	}
	if theta <= -360 {
		return theta + 360
	}
	return theta
}

// axes returns the inertia eigenvalues per unit area, scaled to match an
// ideal ellipse of the same perimeter.
func axes(m moments.Moments, a, b, perimeter float64) [2]float64 {
	l0 := math.Sqrt(a*a + b*b)
	l1 := 0.5 * (m.Mu20 + m.Mu02 + l0) / m.M00
	l2 := 0.5 * (m.Mu20 + m.Mu02 - l0) / m.M00
	if l1 < l2 {
		l1, l2 = l2, l1
	}
	d := 2 * math.Pi * math.Sqrt((l1*l1+l2*l2)/2)
	if d == 0 {
		return [2]float64{}
	}
	k := perimeter / d
	return [2]float64{k * l1, k * l2}
}
