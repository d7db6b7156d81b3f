package tree

import "github.com/strata-wm/strata/region"

// Placeholder is a tombstone node that keeps tiling geometry while its
// referenced toplevel is suspended (fullscreen or temporarily detached).
// Restoring the toplevel swaps it back in without reflowing the tree.
type Placeholder struct {
	nodeData

	tree *Tree

	// forID is the suspended toplevel's stable id.
	forID NodeID
}

// NewPlaceholder creates a tombstone for a toplevel.
func (t *Tree) NewPlaceholder(for_ *Toplevel) *Placeholder {
	p := &Placeholder{tree: t, forID: for_.ID()}
	p.id = t.ids.nextID()
	p.localVisible = true
	p.pos = for_.pos
	return p
}

// Kind returns KindPlaceholder.
func (p *Placeholder) Kind() NodeKind {
	return KindPlaceholder
}

// For returns the suspended toplevel's id.
func (p *Placeholder) For() NodeID {
	return p.forID
}

// Replace swaps the placeholder for the restored toplevel, handing over
// the kept geometry.
func (p *Placeholder) Replace(tl *Toplevel) {
	parent := p.parent
	if c, ok := parent.(*Container); ok {
		at := c.IndexOf(p)
		c.removeChild(p)
		c.InsertChild(tl, at)
	}
	p.Destroy()
}

// SetVisible recomputes visibility.
func (p *Placeholder) SetVisible(parentVisible bool) {
	p.setVisible(parentVisible)
}

// VisitChildren does nothing; placeholders are leaves.
func (p *Placeholder) VisitChildren(visit func(Node) bool) {}

// FindTreeAt reports the placeholder itself for input so clicks on the
// tombstone can restore the window.
func (p *Placeholder) FindTreeAt(x, y int32, stack *[]FoundNode, usecase FindUsecase) bool {
	if usecase == FindSelectToplevel {
		return false
	}
	*stack = append(*stack, FoundNode{Node: p, X: x, Y: y})
	return true
}

// Render draws the tombstone.
func (p *Placeholder) Render(r Renderer, x, y int32, bounds *region.Rect) {
	r.RenderPlaceholder(p, x, y)
}

// Destroy removes the placeholder.
func (p *Placeholder) Destroy() {
	if p.destroyed {
		return
	}
	p.seatState.destroy(p)
	if c, ok := p.parent.(*Container); ok {
		c.removeChild(p)
	}
	p.destroyCommon(p)
}
