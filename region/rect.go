package region

// Rect is an axis-aligned rectangle with exclusive lower-right corner.
// X1 <= X2 and Y1 <= Y2 hold for every rect produced by this package.
// Negative coordinates are permitted.
type Rect struct {
	X1, Y1, X2, Y2 int32
}

// NewRect returns the rectangle spanning [x1, x2) x [y1, y2).
// Inverted rectangles are normalized to empty.
func NewRect(x1, y1, x2, y2 int32) Rect {
	if x2 < x1 {
		x2 = x1
	}
	if y2 < y1 {
		y2 = y1
	}
	return Rect{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// Width returns the horizontal extent.
func (r Rect) Width() int32 {
	return r.X2 - r.X1
}

// Height returns the vertical extent.
func (r Rect) Height() int32 {
	return r.Y2 - r.Y1
}

// IsEmpty reports whether the rect covers no pixels.
func (r Rect) IsEmpty() bool {
	return r.X1 >= r.X2 || r.Y1 >= r.Y2
}

// Contains reports whether the point (x, y) lies inside the rect.
func (r Rect) Contains(x, y int32) bool {
	return x >= r.X1 && x < r.X2 && y >= r.Y1 && y < r.Y2
}

// Intersects reports whether the two rects share at least one pixel.
func (r Rect) Intersects(o Rect) bool {
	return r.X1 < o.X2 && o.X1 < r.X2 && r.Y1 < o.Y2 && o.Y1 < r.Y2
}

// Intersect returns the overlap of the two rects, empty if disjoint.
func (r Rect) Intersect(o Rect) Rect {
	res := Rect{
		X1: max(r.X1, o.X1),
		Y1: max(r.Y1, o.Y1),
		X2: min(r.X2, o.X2),
		Y2: min(r.Y2, o.Y2),
	}
	if res.IsEmpty() {
		return Rect{}
	}
	return res
}

// Union returns the smallest rect containing both inputs.
func (r Rect) Union(o Rect) Rect {
	if r.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return r
	}
	return Rect{
		X1: min(r.X1, o.X1),
		Y1: min(r.Y1, o.Y1),
		X2: max(r.X2, o.X2),
		Y2: max(r.Y2, o.Y2),
	}
}

// Move returns the rect translated by (dx, dy).
func (r Rect) Move(dx, dy int32) Rect {
	return Rect{X1: r.X1 + dx, Y1: r.Y1 + dy, X2: r.X2 + dx, Y2: r.Y2 + dy}
}

// Tag identifies which input rectangle produced a band fragment.
// Lower tags take precedence where tagged inputs overlap.
type Tag = int32

// TaggedRect is a Rect carrying a small integer tag through region
// construction.
type TaggedRect struct {
	Rect
	Tag Tag
}
