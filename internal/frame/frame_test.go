package frame

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/shapectx/internal/geom"
	"github.com/MeKo-Tech/shapectx/internal/moments"
)

func estimate(t *testing.T, c geom.Contour) (Frame, moments.Moments) {
	t.Helper()
	m, err := moments.FromContour(c)
	require.NoError(t, err)
	return Estimate(c, m, geom.ArcLength(c)), m
}

func TestEstimate_Square(t *testing.T) {
	f, _ := estimate(t, geom.Contour{{0, 0}, {0, 2}, {2, 2}, {2, 0}})
	assert.InDelta(t, 1, f.Center.X, 1e-12)
	assert.InDelta(t, 1, f.Center.Y, 1e-12)
	assert.InDelta(t, 0, f.Angle, 1e-12)
	assert.InDelta(t, 4/math.Pi, f.Size[0], 1e-12)
	assert.InDelta(t, 4/math.Pi, f.Size[1], 1e-12)
}

func TestEstimate_TallRectangle(t *testing.T) {
	f, _ := estimate(t, geom.Contour{{0, 0}, {0, 10}, {2, 10}, {2, 0}})
	assert.InDelta(t, 90, f.Angle, 1e-9)
	assert.Greater(t, f.Size[0], f.Size[1])
}

func TestPrincipalAngle(t *testing.T) {
	tests := []struct {
		name     string
		a, b     float64
		expected float64
	}{
		{"wide", 5, 0, 0},
		{"tall", -5, 0, 90},
		{"diagonal", 0, 4, 45},
		{"anti-diagonal", 0, -4, -45},
		{"isotropic", 0, 0, 0},
		{"minor axis candidate", -3, 3, 0.5*math.Atan(-1)*180/math.Pi + 90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, PrincipalAngle(tt.a, tt.b), 1e-12)
		})
	}
}

func TestDisambiguate_PointsTowardTail(t *testing.T) {
	tests := []struct {
		name    string
		contour geom.Contour
	}{
		{"tail to the right", geom.Contour{{0, 0}, {12, 0}, {0, 3}}},
		{"tail to the left", geom.Contour{{0, 0}, {0, 3}, {-12, 0}}},
		{"tail downwards", geom.Contour{{0, 0}, {3, 0}, {0, 12}}},
		{"tail upwards", geom.Contour{{0, 0}, {0, -12}, {3, 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, m := estimate(t, tt.contour)
			rm, err := moments.Compute(Reexpress(tt.contour, f.Center, f.Angle))
			require.NoError(t, err)
			eps := math.Sqrt(m.M00/math.Pi) / 128
			assert.Greater(t, rm.M30, eps)
		})
	}

	right, _ := estimate(t, geom.Contour{{0, 0}, {12, 0}, {0, 3}})
	left, _ := estimate(t, geom.Contour{{0, 0}, {0, 3}, {-12, 0}})
	assert.Less(t, math.Abs(right.Angle), 90.0)
	assert.Greater(t, math.Abs(left.Angle), 90.0)
}

func TestDisambiguate_ZeroBandUsesM03(t *testing.T) {
	// Both houses are mirror symmetric about x = 2, so m30 vanishes at
	// theta = 0 and the apex side of m03 decides.
	tests := []struct {
		name     string
		contour  geom.Contour
		expected float64
	}{
		{"apex below", geom.Contour{{0, 0}, {4, 0}, {4, 1}, {2, 6}, {0, 1}}, 0},
		{"apex above", geom.Contour{{0, 0}, {0, -1}, {2, -6}, {4, -1}, {4, 0}}, 180},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := moments.FromContour(tt.contour)
			require.NoError(t, err)
			center := m.Centroid()

			before, err := moments.Compute(Reexpress(tt.contour, center, 0))
			require.NoError(t, err)
			eps := math.Sqrt(m.M00/math.Pi) / 128
			require.Less(t, math.Abs(before.M30), eps)

			theta := Disambiguate(tt.contour, center, 0, m.M00)
			assert.Equal(t, tt.expected, theta)

			after, err := moments.Compute(Reexpress(tt.contour, center, theta))
			require.NoError(t, err)
			assert.Greater(t, after.M03, eps)
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, 10.0, normalize(370))
	assert.Equal(t, 0.0, normalize(360))
	assert.Equal(t, -10.0, normalize(-370))
	assert.Equal(t, 270.0, normalize(270))
}

func TestReexpress(t *testing.T) {
	pts := Reexpress(geom.Contour{{2, 1}}, geom.Point{X: 1, Y: 1}, 90)
	require.Len(t, pts, 1)
	assert.InDelta(t, 0, pts[0].X, 1e-12)
	assert.InDelta(t, -1, pts[0].Y, 1e-12)
}

func TestEstimate_Deterministic(t *testing.T) {
	c := geom.Contour{{0, 0}, {7, 2}, {9, 8}, {3, 6}, {1, 9}}
	f1, _ := estimate(t, c)
	f2, _ := estimate(t, c)
	assert.Equal(t, f1, f2)
}

func TestEstimate_CanonicalDirection(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("frame leaves non-negative skew along its x-axis", prop.ForAll(
		func(x1, y1, x2, y2 int) bool {
			c := geom.Contour{{0, 0}, {x1, y1}, {x2, y2}}
			m, err := moments.FromContour(c)
			if err != nil {
				return true
			}
			f := Estimate(c, m, geom.ArcLength(c))
			if f.Angle <= -360 || f.Angle >= 360 {
				return false
			}
			rm, err := moments.Compute(Reexpress(c, f.Center, f.Angle))
			if err != nil {
				return false
			}
			eps := math.Sqrt(m.M00/math.Pi) / 128
			slack := 1e-9 * math.Max(1, m.M00*m.M00)
			if math.Abs(rm.M30) < eps {
				return rm.M03 > -eps-slack
			}
			return rm.M30 > -slack
		},
		gen.IntRange(-40, 40),
		gen.IntRange(-40, 40),
		gen.IntRange(-40, 40),
		gen.IntRange(-40, 40),
	))

	properties.TestingRun(t)
}
