package geom

import (
	"cmp"
	"image"
	"math"
	"slices"
)

// ArcLength returns the perimeter of the closed polygon, including the edge
// from the last point back to the first.
func ArcLength(c Contour) float64 {
	n := len(c)
	if n < 2 {
		return 0
	}
	var sum float64
	prev := c[n-1]
	for _, p := range c {
		sum += math.Hypot(float64(p.X-prev.X), float64(p.Y-prev.Y))
		prev = p
	}
	return sum
}

// BoundingRect returns the tightest axis-aligned pixel rectangle holding all
// points. Max is exclusive, so a single point yields a 1x1 rectangle.
func BoundingRect(c Contour) image.Rectangle {
	if len(c) == 0 {
		return image.Rectangle{}
	}
	minX, minY := c[0].X, c[0].Y
	maxX, maxY := c[0].X, c[0].Y
	for _, p := range c[1:] {
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
		maxX = max(maxX, p.X)
		maxY = max(maxY, p.Y)
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// IsConvex reports whether every turn of the closed polygon has the same
// orientation. Collinear turns are ignored.
func IsConvex(c Contour) bool {
	n := len(c)
	if n < 4 {
		return true
	}
	sign := 0
	for i := range n {
		a := c[i]
		b := c[(i+1)%n]
		d := c[(i+2)%n]
		cr := (b.X-a.X)*(d.Y-b.Y) - (b.Y-a.Y)*(d.X-b.X)
		switch {
		case cr == 0:
			continue
		case sign == 0:
			sign = cmp.Compare(cr, 0)
		case cmp.Compare(cr, 0) != sign:
			return false
		}
	}
	return true
}

// ConvexHull computes the convex hull of a set of points using the
// monotone chain algorithm. Returns the hull in CCW order without
// duplicating the first point at the end.
func ConvexHull(pts []Point) []Point {
	n := len(pts)
	if n <= 1 {
		return append([]Point(nil), pts...)
	}
	p := make([]Point, n)
	copy(p, pts)
	slices.SortFunc(p, func(a, b Point) int {
		if c := cmp.Compare(a.X, b.X); c != 0 {
			return c
		}
		return cmp.Compare(a.Y, b.Y)
	})
	p = slices.Compact(p)
	n = len(p)
	if n <= 1 {
		return p
	}
	lower := buildLowerHull(p)
	upper := buildUpperHull(p)
	// Last point of each chain is the first point of the other one.
	hull := make([]Point, 0, len(lower)+len(upper)-2)
	hull = append(hull, lower[:len(lower)-1]...)
	hull = append(hull, upper[:len(upper)-1]...)
	return hull
}

func buildLowerHull(p []Point) []Point {
	lower := make([]Point, 0, len(p))
	for _, pt := range p {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], pt) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, pt)
	}
	return lower
}

func buildUpperHull(p []Point) []Point {
	upper := make([]Point, 0, len(p))
	for i := len(p) - 1; i >= 0; i-- {
		pt := p[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], pt) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, pt)
	}
	return upper
}

func cross(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// MinAreaRect computes the minimum-area enclosing rectangle using a
// rotating calipers approach over the convex hull. A single point gives a
// zero-size rectangle and two hull points a zero-height one.
func MinAreaRect(pts []Point) RotatedRect {
	hull := ConvexHull(pts)
	switch len(hull) {
	case 0:
		return RotatedRect{}
	case 1:
		return RotatedRect{Center: hull[0]}
	case 2:
		a, b := hull[0], hull[1]
		return RotatedRect{
			Center: Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2},
			Width:  a.Dist(b),
			Angle:  math.Atan2(b.Y-a.Y, b.X-a.X) * 180 / math.Pi,
		}
	}
	return findMinimumAreaRectangle(hull)
}

func findMinimumAreaRectangle(hull []Point) RotatedRect {
	bestArea := math.Inf(1)
	var bestU, bestV Point
	var bestMinS, bestMaxS, bestMinT, bestMaxT float64
	// Each hull edge is a candidate orientation.
	for i := range hull {
		a := hull[i]
		b := hull[(i+1)%len(hull)]
		dx := b.X - a.X
		dy := b.Y - a.Y
		L := math.Hypot(dx, dy)
		if L == 0 {
			continue
		}
		ux, uy := dx/L, dy/L
		vx, vy := -uy, ux
		minS, maxS := math.Inf(1), math.Inf(-1)
		minT, maxT := math.Inf(1), math.Inf(-1)
		for _, p := range hull {
			s := p.X*ux + p.Y*uy
			t := p.X*vx + p.Y*vy
			minS = min(minS, s)
			maxS = max(maxS, s)
			minT = min(minT, t)
			maxT = max(maxT, t)
		}
		area := (maxS - minS) * (maxT - minT)
		if area < bestArea {
			bestArea = area
			bestU = Point{ux, uy}
			bestV = Point{vx, vy}
			bestMinS, bestMaxS, bestMinT, bestMaxT = minS, maxS, minT, maxT
		}
	}
	ms := (bestMinS + bestMaxS) / 2
	mt := (bestMinT + bestMaxT) / 2
	return RotatedRect{
		Center: Point{X: bestU.X*ms + bestV.X*mt, Y: bestU.Y*ms + bestV.Y*mt},
		Width:  bestMaxS - bestMinS,
		Height: bestMaxT - bestMinT,
		Angle:  math.Atan2(bestU.Y, bestU.X) * 180 / math.Pi,
	}
}
