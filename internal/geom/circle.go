package geom

import (
	"math"
	"math/rand/v2"
)

// Fixed seed keeps the enclosing circle reproducible across runs.
const welzlSeed = 0x5eed

// MinEnclosingCircle returns the smallest circle containing every point,
// using Welzl's randomized incremental algorithm over the convex hull.
func MinEnclosingCircle(pts []Point) Circle {
	hull := ConvexHull(pts)
	switch len(hull) {
	case 0:
		return Circle{}
	case 1:
		return Circle{Center: hull[0]}
	}

	p := append([]Point(nil), hull...)
	rng := rand.New(rand.NewPCG(welzlSeed, uint64(len(p))))
	rng.Shuffle(len(p), func(i, j int) { p[i], p[j] = p[j], p[i] })

	c := Circle{Center: p[0]}
	for i := 1; i < len(p); i++ {
		if c.Contains(p[i]) {
			continue
		}
		c = Circle{Center: p[i]}
		for j := 0; j < i; j++ {
			if c.Contains(p[j]) {
				continue
			}
			c = circleFrom2(p[i], p[j])
			for k := 0; k < j; k++ {
				if !c.Contains(p[k]) {
					c = circleFrom3(p[i], p[j], p[k])
				}
			}
		}
	}
	return c
}

func circleFrom2(a, b Point) Circle {
	return Circle{
		Center: Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2},
		Radius: a.Dist(b) / 2,
	}
}

// circleFrom3 returns the circumcircle of a, b, c. Collinear triples fall
// back to the circle spanned by the farthest pair.
func circleFrom3(a, b, c Point) Circle {
	bx, by := b.X-a.X, b.Y-a.Y
	cx, cy := c.X-a.X, c.Y-a.Y
	d := 2 * (bx*cy - by*cx)
	if math.Abs(d) < 1e-12 {
		best := circleFrom2(a, b)
		for _, cand := range []Circle{circleFrom2(a, c), circleFrom2(b, c)} {
			if cand.Radius > best.Radius {
				best = cand
			}
		}
		return best
	}
	b2 := bx*bx + by*by
	c2 := cx*cx + cy*cy
	ux := (cy*b2 - by*c2) / d
	uy := (bx*c2 - cx*b2) / d
	center := Point{X: a.X + ux, Y: a.Y + uy}
	return Circle{Center: center, Radius: math.Hypot(ux, uy)}
}
