// Package region implements set algebra over axis-aligned integer
// rectangles.
//
// A Region stores its pixels as a sequence of non-overlapping rectangles
// grouped into bands: maximal horizontal strips whose rectangles share the
// same top and bottom y-coordinate. Within a band the rectangles are sorted
// left to right and disjoint, y-coordinates strictly increase between
// bands, and adjacent bands with identical x-runs are merged into one.
// Every operation keeps this canonical form.
//
// Regions are immutable once constructed. Operations never modify their
// inputs and may return one of the inputs unchanged when the result is
// known to equal it.
package region

import (
	"container/heap"
	"slices"
)

// Region is a canonical band-form set of rectangles.
// The zero value is the empty region.
type Region struct {
	rects   []Rect
	extents Rect
}

var empty = &Region{}

// Empty returns the shared empty region.
func Empty() *Region {
	return empty
}

// FromRect returns the region covering a single rectangle.
func FromRect(r Rect) *Region {
	if r.IsEmpty() {
		return empty
	}
	return &Region{rects: []Rect{r}, extents: r}
}

// Rects returns the region's rectangles in band order. The returned slice
// is owned by the region and must not be modified.
func (r *Region) Rects() []Rect {
	return r.rects
}

// Extents returns the minimum bounding rectangle. The empty region returns
// the zero rectangle.
func (r *Region) Extents() Rect {
	return r.extents
}

// IsEmpty reports whether the region covers no pixels.
func (r *Region) IsEmpty() bool {
	return len(r.rects) == 0
}

// Contains reports whether the point (x, y) lies inside the region.
func (r *Region) Contains(x, y int32) bool {
	if !r.extents.Contains(x, y) {
		return false
	}
	for _, rect := range r.rects {
		if rect.Y1 > y {
			return false
		}
		if rect.Contains(x, y) {
			return true
		}
	}
	return false
}

// Move returns the region translated by (dx, dy).
func (r *Region) Move(dx, dy int32) *Region {
	if r.IsEmpty() || (dx == 0 && dy == 0) {
		return r
	}
	rects := make([]Rect, len(r.rects))
	for i, rect := range r.rects {
		rects[i] = rect.Move(dx, dy)
	}
	return &Region{rects: rects, extents: r.extents.Move(dx, dy)}
}

// Union returns the set union of the two regions.
func (r *Region) Union(o *Region) *Region {
	if r.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return r
	}
	return newRegion(bandOp(r.rects, o.rects, opUnion))
}

// Subtract returns the set difference r \ o.
func (r *Region) Subtract(o *Region) *Region {
	if r.IsEmpty() || o.IsEmpty() {
		return r
	}
	if !r.extents.Intersects(o.extents) {
		return r
	}
	return newRegion(bandOp(r.rects, o.rects, opSubtract))
}

// Intersect returns the set intersection of the two regions.
func (r *Region) Intersect(o *Region) *Region {
	if r.IsEmpty() || o.IsEmpty() {
		return empty
	}
	if !r.extents.Intersects(o.extents) {
		return empty
	}
	return newRegion(bandOp(r.rects, o.rects, opIntersect))
}

func newRegion(rects []Rect) *Region {
	if len(rects) == 0 {
		return empty
	}
	return &Region{rects: rects, extents: extents(rects)}
}

func extents(rects []Rect) Rect {
	if len(rects) == 0 {
		return Rect{}
	}
	res := rects[0]
	for _, r := range rects[1:] {
		res.X1 = min(res.X1, r.X1)
		res.Y1 = min(res.Y1, r.Y1)
		res.X2 = max(res.X2, r.X2)
		res.Y2 = max(res.Y2, r.Y2)
	}
	return res
}

type opKind uint8

const (
	opUnion opKind = iota
	opSubtract
	opIntersect
)

// keepNonOverlapping reports whether bands of the given operand that do not
// vertically overlap the other operand appear in the result.
func (k opKind) keepNonOverlapping(isA bool) bool {
	switch k {
	case opUnion:
		return true
	case opSubtract:
		return isA
	default:
		return false
	}
}

// band is a view of a maximal run of input rectangles sharing one top
// coordinate, with its effective vertical extent. y1 is advanced as the
// opposing operand splits the band.
type band struct {
	rects  []Rect
	y1, y2 int32
}

// nextBand splits off the leading band of a canonical rect list.
func nextBand(rects []Rect) (band, []Rect, bool) {
	if len(rects) == 0 {
		return band{}, nil, false
	}
	y1 := rects[0].Y1
	y2 := rects[0].Y2
	n := 1
	for n < len(rects) && rects[n].Y1 == y1 {
		n++
	}
	return band{rects: rects[:n], y1: y1, y2: y2}, rects[n:], true
}

// opState accumulates the result bands and coalesces an emitted band into
// the previous one when both have identical x-runs and touch vertically.
type opState struct {
	res           []Rect
	prevBandY2    int32
	prevBandStart int
	curBandStart  int
}

func (s *opState) fixupNewBand(y1, y2 int32) {
	if s.prevBandY2 != y1 || !s.coalesce(y2) {
		s.prevBandStart = s.curBandStart
	}
	s.prevBandY2 = y2
}

func (s *opState) coalesce(y2 int32) bool {
	a, b := s.prevBandStart, s.curBandStart
	if len(s.res)-b != b-a {
		return false
	}
	for i := 0; i < b-a; i++ {
		if s.res[a+i].X1 != s.res[b+i].X1 || s.res[a+i].X2 != s.res[b+i].X2 {
			return false
		}
	}
	for i := a; i < b; i++ {
		s.res[i].Y2 = y2
	}
	s.res = s.res[:b]
	return true
}

// appendBand emits the rects of b clipped to [b.y1, y2).
func (s *opState) appendBand(b band, y2 int32) {
	s.curBandStart = len(s.res)
	for _, r := range b.rects {
		s.res = append(s.res, Rect{X1: r.X1, Y1: b.y1, X2: r.X2, Y2: y2})
	}
	s.fixupNewBand(b.y1, y2)
}

// bandOp walks the two inputs as streams of bands. The band with the
// smaller top advances alone; bands with equal tops are merged by an x-run
// sweep, then the shorter band's bottom advances.
func bandOp(a, b []Rect, kind opKind) []Rect {
	var s opState

	ab, a, aOK := nextBand(a)
	bb, b, bOK := nextBand(b)

	for aOK && bOK {
		switch {
		case ab.y1 < bb.y1:
			if kind.keepNonOverlapping(true) {
				s.appendBand(ab, min(ab.y2, bb.y1))
			}
			if ab.y2 <= bb.y1 {
				ab, a, aOK = nextBand(a)
			} else {
				ab.y1 = bb.y1
			}
		case bb.y1 < ab.y1:
			if kind.keepNonOverlapping(false) {
				s.appendBand(bb, min(bb.y2, ab.y1))
			}
			if bb.y2 <= ab.y1 {
				bb, b, bOK = nextBand(b)
			} else {
				bb.y1 = ab.y1
			}
		default:
			y2 := min(ab.y2, bb.y2)
			s.curBandStart = len(s.res)
			s.res = mergeBand(s.res, kind, ab.rects, bb.rects, ab.y1, y2)
			if len(s.res) > s.curBandStart {
				s.fixupNewBand(ab.y1, y2)
			}
			if ab.y2 == y2 {
				ab, a, aOK = nextBand(a)
			} else {
				ab.y1 = y2
			}
			if bb.y2 == y2 {
				bb, b, bOK = nextBand(b)
			} else {
				bb.y1 = y2
			}
		}
	}

	if kind.keepNonOverlapping(true) {
		for aOK {
			s.appendBand(ab, ab.y2)
			ab, a, aOK = nextBand(a)
		}
	}
	if kind.keepNonOverlapping(false) {
		for bOK {
			s.appendBand(bb, bb.y2)
			bb, b, bOK = nextBand(b)
		}
	}

	return s.res
}

func mergeBand(res []Rect, kind opKind, a, b []Rect, y1, y2 int32) []Rect {
	switch kind {
	case opUnion:
		return unionBand(res, a, b, y1, y2)
	case opSubtract:
		return subtractBand(res, a, b, y1, y2)
	default:
		return intersectBand(res, a, b, y1, y2)
	}
}

// unionBand merges the x-runs of two overlapping bands by a linear sweep.
func unionBand(res []Rect, a, b []Rect, y1, y2 int32) []Rect {
	var x1, x2 int32
	if a[0].X1 < b[0].X1 {
		x1, x2 = a[0].X1, a[0].X2
		a = a[1:]
	} else {
		x1, x2 = b[0].X1, b[0].X2
		b = b[1:]
	}

	merge := func(r Rect) {
		if r.X1 <= x2 {
			if r.X2 > x2 {
				x2 = r.X2
			}
		} else {
			res = append(res, Rect{X1: x1, Y1: y1, X2: x2, Y2: y2})
			x1, x2 = r.X1, r.X2
		}
	}

	for len(a) > 0 && len(b) > 0 {
		if a[0].X1 < b[0].X1 {
			merge(a[0])
			a = a[1:]
		} else {
			merge(b[0])
			b = b[1:]
		}
	}
	for _, r := range a {
		merge(r)
	}
	for _, r := range b {
		merge(r)
	}
	return append(res, Rect{X1: x1, Y1: y1, X2: x2, Y2: y2})
}

// subtractBand removes the x-runs of b from the x-runs of a.
func subtractBand(res []Rect, a, b []Rect, y1, y2 int32) []Rect {
	ai := 0
	x1, x2 := a[0].X1, a[0].X2
	ai++

	bi := 0
	for bi < len(b) {
		cut := b[bi]
		switch {
		case cut.X2 <= x1:
			bi++
		case cut.X1 >= x2:
			res = append(res, Rect{X1: x1, Y1: y1, X2: x2, Y2: y2})
			if ai >= len(a) {
				return res
			}
			x1, x2 = a[ai].X1, a[ai].X2
			ai++
		default:
			if cut.X1 > x1 {
				res = append(res, Rect{X1: x1, Y1: y1, X2: cut.X1, Y2: y2})
			}
			if cut.X2 < x2 {
				x1 = cut.X2
			} else {
				if ai >= len(a) {
					return res
				}
				x1, x2 = a[ai].X1, a[ai].X2
				ai++
			}
		}
	}

	for {
		res = append(res, Rect{X1: x1, Y1: y1, X2: x2, Y2: y2})
		if ai >= len(a) {
			return res
		}
		x1, x2 = a[ai].X1, a[ai].X2
		ai++
	}
}

// intersectBand keeps the overlap of the x-runs of two bands.
func intersectBand(res []Rect, a, b []Rect, y1, y2 int32) []Rect {
	ai, bi := 0, 0
	for ai < len(a) && bi < len(b) {
		x1 := max(a[ai].X1, b[bi].X1)
		x2 := min(a[ai].X2, b[bi].X2)
		if x1 < x2 {
			res = append(res, Rect{X1: x1, Y1: y1, X2: x2, Y2: y2})
		}
		if a[ai].X2 < b[bi].X2 {
			ai++
		} else {
			bi++
		}
	}
	return res
}

// rectHeap orders rectangles by (Y1, X1) ascending.
type rectHeap []Rect

func (h rectHeap) Len() int { return len(h) }
func (h rectHeap) Less(i, j int) bool {
	if h[i].Y1 != h[j].Y1 {
		return h[i].Y1 < h[j].Y1
	}
	return h[i].X1 < h[j].X1
}
func (h rectHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *rectHeap) Push(x any)   { *h = append(*h, x.(Rect)) }
func (h *rectHeap) Pop() any {
	old := *h
	n := len(old)
	r := old[n-1]
	*h = old[:n-1]
	return r
}

// FromRects canonicalizes an arbitrary rectangle list into band form.
// Degenerate zero-area rectangles are discarded. The inputs may overlap
// in any way.
func FromRects(rects []Rect) *Region {
	ys := bandBoundaries(rects)

	h := make(rectHeap, 0, len(rects))
	for _, r := range rects {
		if !r.IsEmpty() {
			h = append(h, r)
		}
	}
	heap.Init(&h)

	var res []Rect
	for i := 0; i+1 < len(ys); i++ {
		y1, y2 := ys[i], ys[i+1]
		if len(h) == 0 || h[0].Y1 != y1 {
			continue
		}
		r := popTrimmed(&h, y1, y2)
		x1, x2 := r.X1, r.X2
		for len(h) > 0 && h[0].Y1 == y1 {
			r = popTrimmed(&h, y1, y2)
			if r.X1 > x2 {
				res = append(res, Rect{X1: x1, Y1: y1, X2: x2, Y2: y2})
				x1, x2 = r.X1, r.X2
			} else {
				x2 = max(x2, r.X2)
			}
		}
		res = append(res, Rect{X1: x1, Y1: y1, X2: x2, Y2: y2})
	}

	return newRegion(mergeBands(res))
}

// popTrimmed pops the top rectangle, clips it to the band [y1, y2), and
// pushes the remainder below y2 back onto the heap.
func popTrimmed(h *rectHeap, y1, y2 int32) Rect {
	r := heap.Pop(h).(Rect)
	if r.Y2 > y2 {
		rest := r
		rest.Y1 = y2
		heap.Push(h, rest)
	}
	r.Y1, r.Y2 = y1, y2
	return r
}

// bandBoundaries returns the sorted unique y-coordinates of the inputs.
func bandBoundaries(rects []Rect) []int32 {
	tmp := make([]int32, 0, 2*len(rects))
	for _, r := range rects {
		if !r.IsEmpty() {
			tmp = append(tmp, r.Y1, r.Y2)
		}
	}
	slices.Sort(tmp)
	res := tmp[:0]
	for i, y := range tmp {
		if i == 0 || y != res[len(res)-1] {
			res = append(res, y)
		}
	}
	return res
}

// mergeBands merges vertically adjacent bands with identical x-runs.
func mergeBands(rects []Rect) []Rect {
	if len(rects) == 0 {
		return rects
	}
	out := make([]Rect, 0, len(rects))
	cur, rest, _ := nextBand(rects)
	for {
		next, nrest, ok := nextBand(rest)
		if ok && canMergeBands(cur, next) {
			cur.y2 = next.y2
			rest = nrest
			continue
		}
		for _, r := range cur.rects {
			out = append(out, Rect{X1: r.X1, Y1: cur.y1, X2: r.X2, Y2: cur.y2})
		}
		if !ok {
			return out
		}
		cur, rest = next, nrest
	}
}

func canMergeBands(cur, next band) bool {
	if next.y1 != cur.y2 || len(next.rects) != len(cur.rects) {
		return false
	}
	for i := range cur.rects {
		if cur.rects[i].X1 != next.rects[i].X1 || cur.rects[i].X2 != next.rects[i].X2 {
			return false
		}
	}
	return true
}
