package geom

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// MinEllipsePoints is the smallest point count a conic fit is defined for.
const MinEllipsePoints = 5

var (
	// ErrUnderdeterminedFit is returned when fewer than MinEllipsePoints
	// points are given.
	ErrUnderdeterminedFit = errors.New("ellipse fit needs at least 5 points")
	// ErrDegenerateFit is returned when the points do not determine a real
	// ellipse (collinear input, hyperbola or parabola solutions).
	ErrDegenerateFit = errors.New("points do not determine an ellipse")
)

// FitEllipse fits an ellipse to the points in the least-squares sense using
// the numerically stable direct method of Halir and Flusser. Coordinates are
// centered and scaled before the fit and mapped back afterwards.
func FitEllipse(pts []Point) (Ellipse, error) {
	n := len(pts)
	if n < MinEllipsePoints {
		return Ellipse{}, ErrUnderdeterminedFit
	}

	var mx, my float64
	for _, p := range pts {
		mx += p.X
		my += p.Y
	}
	mx /= float64(n)
	my /= float64(n)
	var scale float64
	for _, p := range pts {
		scale = max(scale, math.Abs(p.X-mx), math.Abs(p.Y-my))
	}
	if scale == 0 {
		return Ellipse{}, ErrDegenerateFit
	}

	d1 := mat.NewDense(n, 3, nil)
	d2 := mat.NewDense(n, 3, nil)
	for i, p := range pts {
		x := (p.X - mx) / scale
		y := (p.Y - my) / scale
		d1.SetRow(i, []float64{x * x, x * y, y * y})
		d2.SetRow(i, []float64{x, y, 1})
	}

	var s1, s2, s3 mat.Dense
	s1.Mul(d1.T(), d1)
	s2.Mul(d1.T(), d2)
	s3.Mul(d2.T(), d2)

	var s3inv mat.Dense
	if err := s3inv.Inverse(&s3); err != nil {
		return Ellipse{}, ErrDegenerateFit
	}
	// T = -S3^-1 * S2^T maps the quadratic coefficients to the linear ones.
	var t mat.Dense
	t.Mul(&s3inv, s2.T())
	t.Scale(-1, &t)

	var m mat.Dense
	m.Mul(&s2, &t)
	m.Add(&s1, &m)

	// Premultiply by the inverse of the constraint matrix 4ac - b^2 = 1.
	reduced := mat.NewDense(3, 3, nil)
	for j := range 3 {
		reduced.Set(0, j, m.At(2, j)/2)
		reduced.Set(1, j, -m.At(1, j))
		reduced.Set(2, j, m.At(0, j)/2)
	}

	var eig mat.Eigen
	if ok := eig.Factorize(reduced, mat.EigenRight); !ok {
		return Ellipse{}, ErrDegenerateFit
	}
	var vecs mat.CDense
	eig.VectorsTo(&vecs)

	var a1 []float64
	for j := range 3 {
		v := []float64{real(vecs.At(0, j)), real(vecs.At(1, j)), real(vecs.At(2, j))}
		if 4*v[0]*v[2]-v[1]*v[1] > 0 {
			a1 = v
			break
		}
	}
	if a1 == nil {
		return Ellipse{}, ErrDegenerateFit
	}
	a2 := mat.NewVecDense(3, nil)
	a2.MulVec(&t, mat.NewVecDense(3, a1))

	e, err := conicToEllipse(a1[0], a1[1], a1[2], a2.AtVec(0), a2.AtVec(1), a2.AtVec(2))
	if err != nil {
		return Ellipse{}, err
	}
	e.Center = Point{X: e.Center.X*scale + mx, Y: e.Center.Y*scale + my}
	e.Major *= scale
	e.Minor *= scale
	return e, nil
}

// conicToEllipse converts A x^2 + B xy + C y^2 + D x + E y + F = 0 into
// center, full axes and major-axis angle.
func conicToEllipse(a, b, c, d, e, f float64) (Ellipse, error) {
	det := 4*a*c - b*b
	if det <= 0 {
		return Ellipse{}, ErrDegenerateFit
	}
	x0 := (b*e - 2*c*d) / det
	y0 := (b*d - 2*a*e) / det
	f0 := a*x0*x0 + b*x0*y0 + c*y0*y0 + d*x0 + e*y0 + f

	var es mat.EigenSym
	if ok := es.Factorize(mat.NewSymDense(2, []float64{a, b / 2, b / 2, c}), true); !ok {
		return Ellipse{}, ErrDegenerateFit
	}
	vals := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	semi := make([]float64, 2)
	for i, l := range vals {
		r := -f0 / l
		if l == 0 || r <= 0 || math.IsNaN(r) || math.IsInf(r, 0) {
			return Ellipse{}, ErrDegenerateFit
		}
		semi[i] = math.Sqrt(r)
	}
	major := 0
	if semi[1] > semi[0] {
		major = 1
	}
	angle := math.Atan2(vecs.At(1, major), vecs.At(0, major)) * 180 / math.Pi
	angle = math.Mod(angle, 180)
	if angle < 0 {
		angle += 180
	}
	return Ellipse{
		Center: Point{X: x0, Y: y0},
		Major:  2 * semi[major],
		Minor:  2 * semi[1-major],
		Angle:  angle,
	}, nil
}
