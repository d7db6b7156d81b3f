package region

import "slices"

// FromRectsTagged canonicalizes a tagged rectangle list into band form.
// Where tagged rectangles overlap, the rectangle with the lower tag wins
// for each covered pixel; equal tags resolve to the earlier rectangle in
// the input. Zero-area rectangles are discarded.
//
// The result is in canonical band form: disjoint, left-to-right within a
// band, strictly increasing band tops, adjacent bands with identical
// x-runs and tags merged.
func FromRectsTagged(rects []TaggedRect) []TaggedRect {
	var plain []Rect
	for _, r := range rects {
		if !r.IsEmpty() {
			plain = append(plain, r.Rect)
		}
	}
	ys := bandBoundaries(plain)

	type seg struct {
		TaggedRect
		order int
	}

	var res []TaggedRect
	var alive []seg
	for i := 0; i+1 < len(ys); i++ {
		y1, y2 := ys[i], ys[i+1]
		alive = alive[:0]
		for order, r := range rects {
			if r.IsEmpty() || r.Y1 > y1 || r.Y2 < y2 {
				continue
			}
			alive = append(alive, seg{TaggedRect: r, order: order})
		}
		if len(alive) == 0 {
			continue
		}
		// Paint lowest priority first so that the winning segment
		// (lowest tag, then earliest input) lands on top.
		slices.SortStableFunc(alive, func(a, b seg) int {
			if a.Tag != b.Tag {
				return int(b.Tag - a.Tag)
			}
			return b.order - a.order
		})
		var runs []TaggedRect
		for _, s := range alive {
			runs = paintRun(runs, TaggedRect{
				Rect: Rect{X1: s.X1, Y1: y1, X2: s.X2, Y2: y2},
				Tag:  s.Tag,
			})
		}
		res = append(res, joinRuns(runs)...)
	}

	return mergeTaggedBands(res)
}

// paintRun overlays one segment onto a sorted, disjoint run list; parts of
// existing runs covered by the segment are replaced.
func paintRun(runs []TaggedRect, s TaggedRect) []TaggedRect {
	out := make([]TaggedRect, 0, len(runs)+2)
	inserted := false
	for _, r := range runs {
		if !inserted && s.X1 < r.X1 {
			out = append(out, s)
			inserted = true
		}
		if r.X2 <= s.X1 || r.X1 >= s.X2 {
			out = append(out, r)
			continue
		}
		if r.X1 < s.X1 {
			left := r
			left.X2 = s.X1
			out = append(out, left)
		}
		if !inserted {
			out = append(out, s)
			inserted = true
		}
		if r.X2 > s.X2 {
			right := r
			right.X1 = s.X2
			out = append(out, right)
		}
	}
	if !inserted {
		out = append(out, s)
	}
	return out
}

// joinRuns merges touching runs with equal tags.
func joinRuns(runs []TaggedRect) []TaggedRect {
	out := runs[:0]
	for _, r := range runs {
		if n := len(out); n > 0 && out[n-1].X2 == r.X1 && out[n-1].Tag == r.Tag {
			out[n-1].X2 = r.X2
			continue
		}
		out = append(out, r)
	}
	return out
}

// mergeTaggedBands merges vertically adjacent bands whose x-runs and tags
// are identical.
func mergeTaggedBands(rects []TaggedRect) []TaggedRect {
	out := make([]TaggedRect, 0, len(rects))
	prevStart := 0
	i := 0
	for i < len(rects) {
		j := i + 1
		for j < len(rects) && rects[j].Y1 == rects[i].Y1 {
			j++
		}
		cur := rects[i:j]
		i = j
		if canMergeTagged(out[prevStart:], cur) {
			for k := prevStart; k < len(out); k++ {
				out[k].Y2 = cur[0].Y2
			}
			continue
		}
		prevStart = len(out)
		out = append(out, cur...)
	}
	return out
}

func canMergeTagged(prev, cur []TaggedRect) bool {
	if len(prev) != len(cur) || len(prev) == 0 {
		return false
	}
	if prev[0].Y2 != cur[0].Y1 {
		return false
	}
	for i := range prev {
		if prev[i].X1 != cur[i].X1 || prev[i].X2 != cur[i].X2 || prev[i].Tag != cur[i].Tag {
			return false
		}
	}
	return true
}

// IntersectTagged clips a canonical tagged rect list against a region,
// carrying each rectangle's tag through to the output.
func IntersectTagged(a []TaggedRect, b *Region) []TaggedRect {
	if len(a) == 0 || b.IsEmpty() {
		return nil
	}
	var pieces []TaggedRect
	for _, r := range a {
		if !r.Intersects(b.Extents()) {
			continue
		}
		for _, clip := range b.Rects() {
			got := r.Rect.Intersect(clip)
			if !got.IsEmpty() {
				pieces = append(pieces, TaggedRect{Rect: got, Tag: r.Tag})
			}
		}
	}
	return FromRectsTagged(pieces)
}
