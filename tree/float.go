package tree

import "github.com/strata-wm/strata/region"

// Float is a freely positioned window holder owning one child.
type Float struct {
	nodeData

	tree  *Tree
	child Node
}

// NewFloat creates a float holding child at the given position.
func (t *Tree) NewFloat(child Node, pos region.Rect) *Float {
	f := &Float{tree: t, child: child}
	f.id = t.ids.nextID()
	f.localVisible = true
	f.pos = pos
	setParent(child, f)
	f.applyChild()
	return f
}

// Kind returns KindFloat.
func (f *Float) Kind() NodeKind {
	return KindFloat
}

// Child returns the held node.
func (f *Float) Child() Node {
	return f.child
}

// SetPosition moves the float.
func (f *Float) SetPosition(pos region.Rect) {
	f.pos = pos
	f.applyChild()
}

func (f *Float) applyChild() {
	switch n := f.child.(type) {
	case *Toplevel:
		n.SetBody(f.pos)
	case *Container:
		n.SetBody(f.pos)
	}
}

// childGone handles the child being destroyed under the float.
func (f *Float) childGone(n Node) {
	if f.child == n {
		f.child = nil
		f.Destroy()
	}
}

// SetVisible recomputes visibility and propagates.
func (f *Float) SetVisible(parentVisible bool) {
	if !f.setVisible(parentVisible) {
		return
	}
	if f.child != nil {
		f.child.SetVisible(f.visible)
	}
}

// VisitChildren visits the single child.
func (f *Float) VisitChildren(visit func(Node) bool) {
	if f.child != nil {
		visit(f.child)
	}
}

// FindTreeAt descends into the child.
func (f *Float) FindTreeAt(x, y int32, stack *[]FoundNode, usecase FindUsecase) bool {
	if f.child == nil {
		return false
	}
	if !f.child.FindTreeAt(x, y, stack, usecase) {
		return false
	}
	*stack = append(*stack, FoundNode{Node: f, X: x, Y: y})
	return true
}

// Render draws the float.
func (f *Float) Render(r Renderer, x, y int32, bounds *region.Rect) {
	r.RenderFloat(f, x, y)
}

// Destroy tears the float down.
func (f *Float) Destroy() {
	if f.destroyed {
		return
	}
	f.seatState.destroy(f)
	if f.child != nil {
		c := f.child
		f.child = nil
		c.Destroy()
	}
	if ws, ok := f.parent.(*Workspace); ok {
		ws.floats.remove(f)
	}
	if d, ok := f.parent.(*Display); ok {
		d.stacked.remove(f)
	}
	f.destroyCommon(f)
}
