// Package geom holds the planar types shared by the contour analysis
// packages and the computational-geometry fits used by the descriptor
// aggregator.
package geom

import (
	"image"
	"math"
)

// Point represents a 2D coordinate in float space.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

// Sub returns p-q.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 { return math.Hypot(p.X-q.X, p.Y-q.Y) }

// Contour is an implicitly closed sequence of lattice points: the last point
// connects back to the first.
type Contour []image.Point

// Points converts the lattice points to float points.
func (c Contour) Points() []Point {
	out := make([]Point, len(c))
	for i, p := range c {
		out[i] = Point{X: float64(p.X), Y: float64(p.Y)}
	}
	return out
}

// Clone returns a copy of the contour.
func (c Contour) Clone() Contour {
	return append(Contour(nil), c...)
}

// Equal reports whether both contours hold the same points in the same order.
func (c Contour) Equal(o Contour) bool {
	if len(c) != len(o) {
		return false
	}
	for i := range c {
		if c[i] != o[i] {
			return false
		}
	}
	return true
}

// RotatedRect is a rectangle of the given size centered at Center whose
// width side makes Angle degrees with the x-axis.
type RotatedRect struct {
	Center Point   `json:"center" yaml:"center"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
	Angle  float64 `json:"angle" yaml:"angle"`
}

// Corners returns the four rectangle corners in order around the rectangle.
func (r RotatedRect) Corners() [4]Point {
	rad := r.Angle * math.Pi / 180
	ux, uy := math.Cos(rad)*r.Width/2, math.Sin(rad)*r.Width/2
	vx, vy := -math.Sin(rad)*r.Height/2, math.Cos(rad)*r.Height/2
	c := r.Center
	return [4]Point{
		{X: c.X - ux - vx, Y: c.Y - uy - vy},
		{X: c.X + ux - vx, Y: c.Y + uy - vy},
		{X: c.X + ux + vx, Y: c.Y + uy + vy},
		{X: c.X - ux + vx, Y: c.Y - uy + vy},
	}
}

// Area returns Width*Height.
func (r RotatedRect) Area() float64 { return r.Width * r.Height }

// Circle is a circle in float space.
type Circle struct {
	Center Point   `json:"center" yaml:"center"`
	Radius float64 `json:"radius" yaml:"radius"`
}

// Contains reports whether p lies inside c, allowing a small relative slack.
func (c Circle) Contains(p Point) bool {
	return c.Center.Dist(p) <= c.Radius*(1+1e-9)+1e-9
}

// Ellipse is described by its center, full axis lengths and the angle in
// degrees, in [0, 180), between the x-axis and the major axis.
type Ellipse struct {
	Center Point   `json:"center" yaml:"center"`
	Major  float64 `json:"major" yaml:"major"`
	Minor  float64 `json:"minor" yaml:"minor"`
	Angle  float64 `json:"angle" yaml:"angle"`
}
