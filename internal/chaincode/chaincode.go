// Package chaincode encodes closed 8-connected contours as Freeman chain
// codes and decodes them back.
//
// Directions use raster coordinates (x to the right, y downwards):
//
//	code  0  1  2  3  4  5  6  7
//	dx   +1 +1  0 -1 -1 -1  0 +1
//	dy    0 +1 +1 +1  0 -1 -1 -1
package chaincode

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/shapectx/internal/geom"
)

// Directions maps a code to its unit step.
var Directions = [8]image.Point{
	{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1},
}

// codeOf is indexed by [dy+1][dx+1].
var codeOf = [3][3]int8{
	{5, 6, 7},
	{4, -1, 0},
	{3, 2, 1},
}

var (
	// ErrNonAdjacentPoints is matched by every *NonAdjacentPointsError.
	ErrNonAdjacentPoints = errors.New("points are not 8-adjacent")
	// ErrInvalidCode reports a code outside 0..7.
	ErrInvalidCode = errors.New("invalid chain code")
	// ErrOpenChain reports a chain whose walk does not return to its start.
	ErrOpenChain = errors.New("chain does not close")
	// ErrEmptyChain reports a chain without start point.
	ErrEmptyChain = errors.New("empty chain")
)

// NonAdjacentPointsError identifies the first step of a contour that is not
// a unit 8-connectivity move.
type NonAdjacentPointsError struct {
	Index    int
	From, To image.Point
}

func (e *NonAdjacentPointsError) Error() string {
	return fmt.Sprintf("points %d %v and %v are not 8-adjacent", e.Index, e.From, e.To)
}

// Unwrap returns ErrNonAdjacentPoints.
func (e *NonAdjacentPointsError) Unwrap() error { return ErrNonAdjacentPoints }

// Chain is a start point followed by one direction code per contour edge,
// the last code being the step from the final point back to the start.
type Chain struct {
	Start image.Point
	Codes []uint8
}

// Code returns the direction code for the step d.
func Code(d image.Point) (uint8, bool) {
	if d.X < -1 || d.X > 1 || d.Y < -1 || d.Y > 1 {
		return 0, false
	}
	c := codeOf[d.Y+1][d.X+1]
	if c < 0 {
		return 0, false
	}
	return uint8(c), true
}

// Encode returns the chain code of the closed contour c.
func Encode(c geom.Contour) (Chain, error) {
	if len(c) == 0 {
		return Chain{}, ErrEmptyChain
	}
	ch := Chain{Start: c[0], Codes: make([]uint8, 0, len(c))}
	if len(c) == 1 {
		return ch, nil
	}
	for i, p := range c {
		next := c[(i+1)%len(c)]
		code, ok := Code(next.Sub(p))
		if !ok {
			return Chain{}, &NonAdjacentPointsError{Index: i, From: p, To: next}
		}
		ch.Codes = append(ch.Codes, code)
	}
	return ch, nil
}

// Decode rebuilds the contour from ch. The final code must lead back to the
// start point.
func Decode(ch Chain) (geom.Contour, error) {
	out := make(geom.Contour, 0, max(1, len(ch.Codes)))
	p := ch.Start
	out = append(out, p)
	for i, code := range ch.Codes {
		if code > 7 {
			return nil, fmt.Errorf("code %d at %d: %w", code, i, ErrInvalidCode)
		}
		p = p.Add(Directions[code])
		if i < len(ch.Codes)-1 {
			out = append(out, p)
		}
	}
	if p != ch.Start {
		return nil, fmt.Errorf("walk ends at %v, start %v: %w", p, ch.Start, ErrOpenChain)
	}
	return out, nil
}

// String renders the chain as "x y c c c ...".
func (ch Chain) String() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(ch.Start.X))
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(ch.Start.Y))
	for _, c := range ch.Codes {
		b.WriteByte(' ')
		b.WriteByte('0' + c)
	}
	return b.String()
}

// Parse reads the String form back.
func Parse(s string) (Chain, error) {
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return Chain{}, ErrEmptyChain
	}
	x, err := strconv.Atoi(fields[0])
	if err != nil {
		return Chain{}, fmt.Errorf("parse start x: %w", err)
	}
	y, err := strconv.Atoi(fields[1])
	if err != nil {
		return Chain{}, fmt.Errorf("parse start y: %w", err)
	}
	ch := Chain{Start: image.Pt(x, y), Codes: make([]uint8, 0, len(fields)-2)}
	for i, f := range fields[2:] {
		if len(f) != 1 || f[0] < '0' || f[0] > '7' {
			return Chain{}, fmt.Errorf("field %d %q: %w", i+2, f, ErrInvalidCode)
		}
		ch.Codes = append(ch.Codes, f[0]-'0')
	}
	return ch, nil
}
