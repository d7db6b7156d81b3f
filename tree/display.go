package tree

import "github.com/strata-wm/strata/region"

// Display is the singleton root of the tree. It owns the outputs keyed
// by their stable id plus a stacked list of nodes floating on top of
// everything (lock surfaces, popups rooted off-tree).
type Display struct {
	nodeData

	tree    *Tree
	outputs map[string]*Output
	stacked stackedList
}

// Kind returns KindDisplay.
func (d *Display) Kind() NodeKind {
	return KindDisplay
}

// Output returns the output with the given stable id.
func (d *Display) Output(stableID string) *Output {
	return d.outputs[stableID]
}

// Outputs returns the connected outputs.
func (d *Display) Outputs() map[string]*Output {
	return d.outputs
}

// StackOnTop raises a node above everything else.
func (d *Display) StackOnTop(n Node) {
	setParent(n, d)
	d.stacked.raise(n)
	n.SetVisible(d.visible)
}

// Unstack removes a node from the on-top list.
func (d *Display) Unstack(n Node) {
	d.stacked.remove(n)
}

// Extents returns the bounding rectangle of the global layout.
func (d *Display) Extents() region.Rect {
	var ext region.Rect
	for _, o := range d.outputs {
		ext = ext.Union(o.pos)
	}
	return ext
}

// SetVisible recomputes visibility and propagates.
func (d *Display) SetVisible(parentVisible bool) {
	if !d.setVisible(parentVisible) {
		return
	}
	for _, o := range d.outputs {
		o.SetVisible(d.visible)
	}
	d.stacked.visit(func(n Node) bool {
		n.SetVisible(d.visible)
		return true
	})
}

// VisitChildren visits the outputs, then the on-top stack.
func (d *Display) VisitChildren(visit func(Node) bool) {
	for _, o := range d.outputs {
		if !visit(o) {
			return
		}
	}
	d.stacked.visit(visit)
}

// FindTreeAt hit-tests the on-top stack first, then the outputs.
// x and y are display-global coordinates.
func (d *Display) FindTreeAt(x, y int32, stack *[]FoundNode, usecase FindUsecase) bool {
	if d.stacked.findTopAt(x, y, stack, usecase) {
		return true
	}
	for _, o := range d.outputs {
		if !o.Visible() || !o.pos.Contains(x, y) {
			continue
		}
		if o.FindTreeAt(x-o.pos.X1, y-o.pos.Y1, stack, usecase) {
			return true
		}
	}
	return false
}

// Render draws every output.
func (d *Display) Render(r Renderer, x, y int32, bounds *region.Rect) {
	for _, o := range d.outputs {
		o.Render(r, x, y, bounds)
	}
}

// Destroy tears down the whole tree.
func (d *Display) Destroy() {
	if d.destroyed {
		return
	}
	for _, o := range d.outputs {
		o.Destroy()
	}
	for _, n := range append([]Node(nil), d.stacked.nodes...) {
		n.Destroy()
	}
	d.stacked.nodes = nil
	d.destroyCommon(d)
}
