// Package tracer extracts the borders of a binary mask as closed 8-connected
// contours together with their nesting hierarchy, following Suzuki and Abe,
// "Topological Structural Analysis of Digitized Binary Images by Border
// Following" (1985).
package tracer

import (
	"image"

	"github.com/MeKo-Tech/shapectx/internal/geom"
	"github.com/MeKo-Tech/shapectx/internal/mempool"
)

// Link relates a contour to its neighbours in the hierarchy by index into the
// contour slice. Absent relations are -1.
type Link struct {
	Next       int `json:"next" yaml:"next"`
	Previous   int `json:"previous" yaml:"previous"`
	FirstChild int `json:"first_child" yaml:"first_child"`
	Parent     int `json:"parent" yaml:"parent"`
}

// noLink has every relation absent.
var noLink = Link{Next: -1, Previous: -1, FirstChild: -1, Parent: -1}

// Neighbour ids around (i, j) in row/column form, counter-clockwise on screen
// starting east. Clockwise is id-1, counter-clockwise id+1.
var (
	nbDI = [8]int{0, -1, -1, -1, 0, 1, 1, 1}
	nbDJ = [8]int{1, 1, 0, -1, -1, -1, 0, 1}
)

func neighbourID(di, dj int) int {
	for id := range 8 {
		if nbDI[id] == di && nbDJ[id] == dj {
			return id
		}
	}
	return -1
}

type border struct {
	hole   bool
	parent int // border number, 0 for none
}

// grid is the padded label image the algorithm rewrites in place.
type grid struct {
	w, h int
	f    []int32
}

func (g *grid) at(i, j int) int32     { return g.f[i*g.w+j] }
func (g *grid) set(i, j int, v int32) { g.f[i*g.w+j] = v }

// FindContours traces every border of mask, outer borders and hole borders,
// and returns the contours in discovery order with their hierarchy. Contour
// points are all border pixels, so consecutive points are 8-adjacent. A
// foreground pixel without foreground neighbours yields a one-point contour.
func FindContours(mask *Mask) ([]geom.Contour, []Link) {
	if mask == nil || mask.W == 0 || mask.H == 0 {
		return nil, nil
	}

	g := &grid{w: mask.W + 2, h: mask.H + 2}
	g.f = mempool.GetInt32(g.w * g.h)
	defer mempool.PutInt32(g.f)
	for y := range mask.H {
		for x := range mask.W {
			if mask.Pix[y*mask.W+x] != 0 {
				g.set(y+1, x+1, 1)
			}
		}
	}

	// Border 1 is the frame of the picture.
	borders := []border{{}, {hole: true}}
	var contours []geom.Contour

	nbd := int32(1)
	for i := 1; i < g.h-1; i++ {
		lnbd := int32(1)
		for j := 1; j < g.w-1; j++ {
			fij := g.at(i, j)
			// (si, sj) is the background pixel the border is entered from.
			var si, sj int
			hole := false
			switch {
			case fij == 1 && g.at(i, j-1) == 0:
				si, sj = i, j-1
			case fij >= 1 && g.at(i, j+1) == 0:
				si, sj = i, j+1
				hole = true
				if fij > 1 {
					lnbd = fij
				}
			default:
				if fij != 0 && fij != 1 {
					lnbd = abs32(fij)
				}
				continue
			}

			nbd++
			prev := borders[lnbd]
			parent := int(lnbd)
			if hole == prev.hole {
				parent = prev.parent
			}
			borders = append(borders, border{hole: hole, parent: parent})

			contours = append(contours, g.follow(i, j, si, sj, nbd))

			if f := g.at(i, j); f != 1 {
				lnbd = abs32(f)
			}
		}
	}

	return contours, buildLinks(borders)
}

// follow traces the border starting at (i, j), entered from (i2, j2), marks it
// with nbd and returns its pixels as image points.
func (g *grid) follow(i, j, i2, j2 int, nbd int32) geom.Contour {
	pt := func(r, c int) image.Point { return image.Pt(c-1, r-1) }

	// Clockwise search for the first foreground neighbour.
	id := neighbourID(i2-i, j2-j)
	i1, j1 := -1, -1
	for k := range 8 {
		n := (id - k + 8) % 8
		if g.at(i+nbDI[n], j+nbDJ[n]) != 0 {
			i1, j1 = i+nbDI[n], j+nbDJ[n]
			break
		}
	}
	if i1 < 0 {
		g.set(i, j, -nbd)
		return geom.Contour{pt(i, j)}
	}

	contour := geom.Contour{pt(i, j)}
	i2, j2 = i1, j1
	i3, j3 := i, j
	for {
		// Counter-clockwise search around (i3, j3) starting after (i2, j2).
		id := neighbourID(i2-i3, j2-j3)
		eastZero := false
		var i4, j4 int
		for k := 1; k <= 8; k++ {
			n := (id + k) % 8
			ni, nj := i3+nbDI[n], j3+nbDJ[n]
			if g.at(ni, nj) != 0 {
				i4, j4 = ni, nj
				break
			}
			if n == 0 {
				eastZero = true
			}
		}

		switch {
		case eastZero:
			g.set(i3, j3, -nbd)
		case g.at(i3, j3) == 1:
			g.set(i3, j3, nbd)
		}

		if i4 == i && j4 == j && i3 == i1 && j3 == j1 {
			return contour
		}
		contour = append(contour, pt(i4, j4))
		i2, j2 = i3, j3
		i3, j3 = i4, j4
	}
}

// buildLinks turns the per-border parent numbers into index links. Children
// and top-level contours are chained as siblings in discovery order.
func buildLinks(borders []border) []Link {
	n := len(borders) - 2
	links := make([]Link, n)
	for k := range links {
		links[k] = noLink
	}
	lastChild := make(map[int]int) // parent index (-1 for top level) -> last child index
	for k := range n {
		parent := borders[k+2].parent - 2
		if parent < 0 {
			parent = -1
		}
		links[k].Parent = parent
		if last, ok := lastChild[parent]; ok {
			links[last].Next = k
			links[k].Previous = last
		} else if parent >= 0 {
			links[parent].FirstChild = k
		}
		lastChild[parent] = k
	}
	return links
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
