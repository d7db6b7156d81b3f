package region

import (
	"math/rand"
	"testing"
)

func rect(x1, y1, x2, y2 int32) Rect {
	return Rect{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

func tagged(x1, y1, x2, y2 int32, tag Tag) TaggedRect {
	return TaggedRect{Rect: rect(x1, y1, x2, y2), Tag: tag}
}

func equalRects(a, b []Rect) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestUnion(t *testing.T) {
	tests := []struct {
		name string
		a, b []Rect
		want []Rect
	}{
		{
			name: "overlapping corners",
			a:    []Rect{rect(0, 0, 10, 10)},
			b:    []Rect{rect(5, 5, 15, 15)},
			want: []Rect{rect(0, 0, 10, 5), rect(0, 5, 15, 10), rect(5, 10, 15, 15)},
		},
		{
			name: "vertically adjacent bands coalesce",
			a:    []Rect{rect(0, 0, 10, 10)},
			b:    []Rect{rect(0, 10, 10, 20)},
			want: []Rect{rect(0, 0, 10, 20)},
		},
		{
			name: "disjoint",
			a:    []Rect{rect(0, 0, 10, 10)},
			b:    []Rect{rect(20, 20, 30, 30)},
			want: []Rect{rect(0, 0, 10, 10), rect(20, 20, 30, 30)},
		},
		{
			name: "negative coordinates",
			a:    []Rect{rect(-10, -10, 0, 0)},
			b:    []Rect{rect(-5, -5, 5, 5)},
			want: []Rect{rect(-10, -10, 0, -5), rect(-10, -5, 5, 0), rect(-5, 0, 5, 5)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromRects(tt.a).Union(FromRects(tt.b))
			if !equalRects(got.Rects(), tt.want) {
				t.Errorf("Union() = %v, want %v", got.Rects(), tt.want)
			}
			checkCanonical(t, got.Rects())
		})
	}
}

func TestUnionChain(t *testing.T) {
	r1 := FromRect(rect(0, 0, 10, 10))
	r2 := FromRect(rect(10, 10, 20, 20))
	r3 := r1.Union(r2).Union(FromRect(rect(5, 5, 15, 15)))
	if r3.Extents() != rect(0, 0, 20, 20) {
		t.Fatalf("extents = %v, want (0,0,20,20)", r3.Extents())
	}
	want := []Rect{
		rect(0, 0, 10, 5),
		rect(0, 5, 15, 10),
		rect(5, 10, 20, 15),
		rect(10, 15, 20, 20),
	}
	if !equalRects(r3.Rects(), want) {
		t.Errorf("rects = %v, want %v", r3.Rects(), want)
	}
}

func TestSubtract(t *testing.T) {
	tests := []struct {
		name string
		a, b []Rect
		want []Rect
	}{
		{
			name: "hole",
			a:    []Rect{rect(0, 0, 20, 20)},
			b:    []Rect{rect(5, 5, 15, 15)},
			want: []Rect{
				rect(0, 0, 20, 5),
				rect(0, 5, 5, 15),
				rect(15, 5, 20, 15),
				rect(0, 15, 20, 20),
			},
		},
		{
			name: "full cover",
			a:    []Rect{rect(5, 5, 10, 10)},
			b:    []Rect{rect(0, 0, 20, 20)},
			want: nil,
		},
		{
			name: "disjoint keeps a",
			a:    []Rect{rect(0, 0, 10, 10)},
			b:    []Rect{rect(50, 50, 60, 60)},
			want: []Rect{rect(0, 0, 10, 10)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromRects(tt.a).Subtract(FromRects(tt.b))
			if !equalRects(got.Rects(), tt.want) {
				t.Errorf("Subtract() = %v, want %v", got.Rects(), tt.want)
			}
			checkCanonical(t, got.Rects())
		})
	}
}

func TestIntersect(t *testing.T) {
	a := FromRect(rect(0, 0, 10, 10))
	b := FromRect(rect(5, 5, 15, 15))
	got := a.Intersect(b)
	want := []Rect{rect(5, 5, 10, 10)}
	if !equalRects(got.Rects(), want) {
		t.Errorf("Intersect() = %v, want %v", got.Rects(), want)
	}
	if !a.Intersect(Empty()).IsEmpty() {
		t.Error("intersect with empty should be empty")
	}
}

func TestFromRects(t *testing.T) {
	tests := []struct {
		name string
		in   []Rect
		want []Rect
	}{
		{
			name: "staircase",
			in:   []Rect{rect(0, 0, 10, 10), rect(5, 0, 30, 10), rect(30, 5, 50, 15)},
			want: []Rect{rect(0, 0, 30, 5), rect(0, 5, 50, 10), rect(30, 10, 50, 15)},
		},
		{
			name: "stacked bands merge",
			in:   []Rect{rect(0, 0, 10, 10), rect(0, 10, 10, 20)},
			want: []Rect{rect(0, 0, 10, 20)},
		},
		{
			name: "degenerate discarded",
			in:   []Rect{rect(0, 0, 0, 10), rect(3, 3, 6, 6)},
			want: []Rect{rect(3, 3, 6, 6)},
		},
		{
			name: "empty input",
			in:   nil,
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromRects(tt.in)
			if !equalRects(got.Rects(), tt.want) {
				t.Errorf("FromRects() = %v, want %v", got.Rects(), tt.want)
			}
			checkCanonical(t, got.Rects())
		})
	}
}

func TestFromRectsTagged(t *testing.T) {
	got := FromRectsTagged([]TaggedRect{
		tagged(0, 0, 200, 200, 1),
		tagged(50, 50, 150, 150, 0),
	})
	want := []TaggedRect{
		tagged(0, 0, 200, 50, 1),
		tagged(0, 50, 50, 150, 1),
		tagged(50, 50, 150, 150, 0),
		tagged(150, 50, 200, 150, 1),
		tagged(0, 150, 200, 200, 1),
	}
	if len(got) != len(want) {
		t.Fatalf("got %d rects %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("rect %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFromRectsTaggedTieBreak(t *testing.T) {
	// Identical tags: the earlier input wins the overlap.
	got := FromRectsTagged([]TaggedRect{
		tagged(0, 0, 10, 10, 3),
		tagged(0, 0, 10, 10, 3),
	})
	want := []TaggedRect{tagged(0, 0, 10, 10, 3)}
	if len(got) != 1 || got[0] != want[0] {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestContains(t *testing.T) {
	r := FromRects([]Rect{rect(0, 0, 10, 10), rect(20, 0, 30, 10)})
	tests := []struct {
		x, y int32
		want bool
	}{
		{5, 5, true},
		{25, 5, true},
		{15, 5, false},
		{5, 15, false},
		{-1, 0, false},
		{9, 9, true},
		{10, 9, false},
	}
	for _, tt := range tests {
		if got := r.Contains(tt.x, tt.y); got != tt.want {
			t.Errorf("Contains(%d, %d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestExtentsEmpty(t *testing.T) {
	if Empty().Extents() != (Rect{}) {
		t.Errorf("empty extents = %v, want zero rect", Empty().Extents())
	}
}

// checkCanonical verifies band form: within a band rects are sorted and
// disjoint, band tops strictly increase, and adjacent bands differ.
func checkCanonical(t *testing.T, rects []Rect) {
	t.Helper()
	for i := 0; i < len(rects); i++ {
		if rects[i].IsEmpty() {
			t.Errorf("rect %d is empty: %v", i, rects[i])
		}
	}
	i := 0
	var prev []Rect
	var prevY2 int32
	first := true
	for i < len(rects) {
		j := i + 1
		for j < len(rects) && rects[j].Y1 == rects[i].Y1 {
			j++
		}
		cur := rects[i:j]
		for k := range cur {
			if cur[k].Y1 != cur[0].Y1 || cur[k].Y2 != cur[0].Y2 {
				t.Errorf("band at %d has mixed vertical extents", i)
			}
			if k > 0 && cur[k-1].X2 >= cur[k].X1 {
				t.Errorf("band at %d has touching or unsorted runs: %v", i, cur)
			}
		}
		if !first {
			if cur[0].Y1 < prevY2 {
				t.Errorf("bands overlap vertically at %d", i)
			}
			if cur[0].Y1 == prevY2 && sameRuns(prev, cur) {
				t.Errorf("adjacent identical bands not merged at %d", i)
			}
		}
		prev, prevY2, first = cur, cur[0].Y2, false
		i = j
	}
}

func countBands(rects []Rect) int {
	n := 0
	for i, r := range rects {
		if i == 0 || r.Y1 != rects[i-1].Y1 {
			n++
		}
	}
	return n
}

func sameRuns(a, b []Rect) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].X1 != b[i].X1 || a[i].X2 != b[i].X2 {
			return false
		}
	}
	return true
}

// TestRandomizedOps cross-checks the band algebra against a per-pixel
// model on small random inputs.
func TestRandomizedOps(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	randRects := func(n int) []Rect {
		rs := make([]Rect, n)
		for i := range rs {
			x1 := int32(rng.Intn(200) - 100)
			y1 := int32(rng.Intn(200) - 100)
			rs[i] = rect(x1, y1, x1+int32(rng.Intn(40)), y1+int32(rng.Intn(40)))
		}
		return rs
	}
	covered := func(rects []Rect, x, y int32) bool {
		for _, r := range rects {
			if r.Contains(x, y) {
				return true
			}
		}
		return false
	}
	for iter := 0; iter < 20; iter++ {
		aIn := randRects(1 + rng.Intn(8))
		bIn := randRects(1 + rng.Intn(8))
		a := FromRects(aIn)
		b := FromRects(bIn)
		u := a.Union(b)
		s := a.Subtract(b)
		x := a.Intersect(b)
		checkCanonical(t, u.Rects())
		checkCanonical(t, s.Rects())
		checkCanonical(t, x.Rects())
		if got := countBands(u.Rects()); got > 2*(len(aIn)+len(bIn)) {
			t.Errorf("union band count %d exceeds 2x input count %d", got, len(aIn)+len(bIn))
		}
		for probe := 0; probe < 200; probe++ {
			px := int32(rng.Intn(220) - 110)
			py := int32(rng.Intn(220) - 110)
			inA := covered(aIn, px, py)
			inB := covered(bIn, px, py)
			if got := u.Contains(px, py); got != (inA || inB) {
				t.Fatalf("union Contains(%d,%d) = %v, want %v", px, py, got, inA || inB)
			}
			if got := s.Contains(px, py); got != (inA && !inB) {
				t.Fatalf("subtract Contains(%d,%d) = %v, want %v", px, py, got, inA && !inB)
			}
			if got := x.Contains(px, py); got != (inA && inB) {
				t.Fatalf("intersect Contains(%d,%d) = %v, want %v", px, py, got, inA && inB)
			}
		}
	}
}
