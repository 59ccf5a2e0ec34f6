// Package visualcue selects the layout blocks an operator is pointing at with
// two pens held on either side of a line of text.
//
// The tip of the left pen is the midpoint of its right edge and the tip of
// the right pen is the midpoint of its left edge. A block is selected when it
// overlaps the tip-to-tip rectangle or when any of its corners lies close to
// the tip-to-tip segment.
package visualcue

import (
	"math"
	"sort"
	"strings"

	perr "penwatch/internal/platform/errors"
)

// Default tolerances in pixels
const (
	DefaultRectTolerance = 5.0
	DefaultLineTolerance = 5.0
)

// Box is an axis-aligned rectangle in pixel coordinates
type Box struct {
	X1, Y1, X2, Y2 float64
}

// FromYOLO converts a normalized center/size box into pixels
func FromYOLO(xc, yc, w, h float64, imgW, imgH int) Box {
	fw, fh := float64(imgW), float64(imgH)
	return Box{
		X1: (xc - w/2) * fw,
		Y1: (yc - h/2) * fh,
		X2: (xc + w/2) * fw,
		Y2: (yc + h/2) * fh,
	}
}

// Point is a pixel coordinate
type Point struct{ X, Y float64 }

// Block is one layout region with its recognized text
type Block struct {
	Box   Box
	Label string
	Text  string
}

// Selection is the outcome of Select
type Selection struct {
	Left, Right Box
	TipA, TipB  Point
	Rect        Box
	Blocks      []Block
}

// Text joins the selected blocks top to bottom
func (s Selection) Text() string {
	parts := make([]string, 0, len(s.Blocks))
	for _, b := range s.Blocks {
		if t := strings.TrimSpace(b.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

// Filter holds the tolerances used by Select
type Filter struct {
	RectTol float64
	LineTol float64
}

// New returns a filter with the default tolerances
func New() Filter {
	return Filter{RectTol: DefaultRectTolerance, LineTol: DefaultLineTolerance}
}

// Select picks the blocks between exactly two pens
// Blocks keep their input order sorted by top edge
func (f Filter) Select(pens []Box, blocks []Block) (Selection, error) {
	if len(pens) != 2 {
		return Selection{}, perr.Newf(perr.ErrorCodeInvalidArgument, "expected exactly 2 pens, got %d", len(pens))
	}

	left, right := pens[0], pens[1]
	if right.X1 < left.X1 {
		left, right = right, left
	}

	tipA := Point{X: left.X2, Y: (left.Y1 + left.Y2) / 2}
	tipB := Point{X: right.X1, Y: (right.Y1 + right.Y2) / 2}
	rect := Box{
		X1: math.Min(tipA.X, tipB.X),
		Y1: math.Min(tipA.Y, tipB.Y),
		X2: math.Max(tipA.X, tipB.X),
		Y2: math.Max(tipA.Y, tipB.Y),
	}

	sel := Selection{Left: left, Right: right, TipA: tipA, TipB: tipB, Rect: rect}
	for _, b := range blocks {
		if f.overlaps(b.Box, rect) || f.nearSegment(b.Box, tipA, tipB) {
			sel.Blocks = append(sel.Blocks, b)
		}
	}
	sort.SliceStable(sel.Blocks, func(i, j int) bool { return sel.Blocks[i].Box.Y1 < sel.Blocks[j].Box.Y1 })
	return sel, nil
}

func (f Filter) overlaps(b, r Box) bool {
	t := f.RectTol
	return b.X1 <= r.X2+t && b.X2 >= r.X1-t && b.Y1 <= r.Y2+t && b.Y2 >= r.Y1-t
}

func (f Filter) nearSegment(b Box, a, z Point) bool {
	corners := [4]Point{{b.X1, b.Y1}, {b.X1, b.Y2}, {b.X2, b.Y1}, {b.X2, b.Y2}}
	for _, c := range corners {
		if DistanceToSegment(c, a, z) <= f.LineTol {
			return true
		}
	}
	return false
}

// DistanceToSegment returns the distance from p to the segment a-z
func DistanceToSegment(p, a, z Point) float64 {
	cx, cy := z.X-a.X, z.Y-a.Y
	lenSq := cx*cx + cy*cy

	param := -1.0
	if lenSq != 0 {
		param = ((p.X-a.X)*cx + (p.Y-a.Y)*cy) / lenSq
	}

	var q Point
	switch {
	case param < 0:
		q = a
	case param > 1:
		q = z
	default:
		q = Point{X: a.X + param*cx, Y: a.Y + param*cy}
	}
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}
