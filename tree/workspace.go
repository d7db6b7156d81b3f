package tree

import "github.com/strata-wm/strata/region"

// Workspace is a named tiling context attached to at most one output at
// a time. It owns at most one container root plus a stacked list of
// floats and popups, and optionally a fullscreen toplevel covering the
// output.
type Workspace struct {
	nodeData

	tree *Tree
	name string

	output *Output
	root   *Container
	floats stackedList

	// fullscreen, when set, covers the output; the toplevel's tiling
	// slot is kept by a placeholder.
	fullscreen *Toplevel
}

// NewWorkspace creates a detached workspace.
func (t *Tree) NewWorkspace(name string) *Workspace {
	ws := &Workspace{tree: t, name: name}
	ws.id = t.ids.nextID()
	ws.localVisible = true
	return ws
}

// Kind returns KindWorkspace.
func (ws *Workspace) Kind() NodeKind {
	return KindWorkspace
}

// Name returns the workspace name.
func (ws *Workspace) Name() string {
	return ws.name
}

// Output returns the output back-pointer.
func (ws *Workspace) Output() *Output {
	return ws.output
}

// Root returns the container root, nil when the workspace is empty.
func (ws *Workspace) Root() *Container {
	return ws.root
}

// SetRoot installs the container root.
func (ws *Workspace) SetRoot(c *Container) {
	if ws.root != nil {
		old := ws.root
		ws.root = nil
		old.Destroy()
	}
	ws.root = c
	if c != nil {
		setParent(c, ws)
		c.SetBody(ws.pos)
		c.SetVisible(ws.visible)
		ws.relinkToplevels(c)
	}
}

// relinkToplevels refreshes workspace back-links under a new subtree.
func (ws *Workspace) relinkToplevels(n Node) {
	if tl, ok := n.(*Toplevel); ok {
		tl.SetWorkspace(ws)
	}
	n.VisitChildren(func(c Node) bool {
		ws.relinkToplevels(c)
		return true
	})
}

// rootGone clears the root link after the container destroyed itself.
func (ws *Workspace) rootGone(c *Container) {
	if ws.root == c {
		ws.root = nil
	}
}

// AddFloat stacks a float on top of the workspace.
func (ws *Workspace) AddFloat(f *Float) {
	setParent(f, ws)
	ws.floats.append(f)
	ws.relinkToplevels(f)
	f.SetVisible(ws.visible)
}

// RaiseFloat moves a float to the top of the stack.
func (ws *Workspace) RaiseFloat(f *Float) {
	ws.floats.raise(f)
}

// SetFullscreen covers the output with tl, leaving a placeholder in its
// tiling slot. A nil tl restores the previous layout.
func (ws *Workspace) SetFullscreen(tl *Toplevel) {
	if ws.fullscreen == tl {
		return
	}
	if old := ws.fullscreen; old != nil {
		ws.fullscreen = nil
		old.SetFullscreen(false)
		// Swap back into the kept placeholder, if it survived.
		if ws.root != nil {
			if ph := findPlaceholder(ws.root, old.ID()); ph != nil {
				setParent(old, nil)
				ph.Replace(old)
			}
		}
	}
	if tl != nil {
		if c, ok := tl.parent.(*Container); ok {
			ph := ws.tree.NewPlaceholder(tl)
			at := c.IndexOf(tl)
			c.removeChild(tl)
			c.InsertChild(ph, at)
		}
		setParent(tl, ws)
		tl.SetFullscreen(true)
		tl.SetWorkspace(ws)
		tl.SetBody(ws.pos)
		tl.SetVisible(ws.visible)
		ws.fullscreen = tl
	}
	ws.updateVisibility()
}

// Fullscreen returns the covering toplevel, nil without one.
func (ws *Workspace) Fullscreen() *Toplevel {
	return ws.fullscreen
}

// fullscreenGone clears the fullscreen link after the toplevel died.
func (ws *Workspace) fullscreenGone(tl *Toplevel) {
	if ws.fullscreen == tl {
		ws.fullscreen = nil
		ws.updateVisibility()
	}
}

func findPlaceholder(n Node, forID NodeID) *Placeholder {
	if ph, ok := n.(*Placeholder); ok && ph.For() == forID {
		return ph
	}
	var found *Placeholder
	n.VisitChildren(func(c Node) bool {
		found = findPlaceholder(c, forID)
		return found == nil
	})
	return found
}

// SetBody positions the workspace within its output.
func (ws *Workspace) SetBody(r region.Rect) {
	ws.pos = r
	if ws.root != nil {
		ws.root.SetBody(r)
	}
	if ws.fullscreen != nil {
		ws.fullscreen.SetBody(r)
	}
}

// updateVisibility re-propagates visibility; a fullscreen toplevel
// hides the tiled layer beneath it.
func (ws *Workspace) updateVisibility() {
	if ws.root != nil {
		ws.root.SetVisible(ws.visible && ws.fullscreen == nil)
	}
	if ws.fullscreen != nil {
		ws.fullscreen.SetVisible(ws.visible)
	}
}

// SetVisible recomputes visibility and propagates.
func (ws *Workspace) SetVisible(parentVisible bool) {
	if !ws.setVisible(parentVisible) {
		return
	}
	if ws.root != nil {
		ws.root.SetVisible(ws.visible && ws.fullscreen == nil)
	}
	if ws.fullscreen != nil {
		ws.fullscreen.SetVisible(ws.visible)
	}
	ws.floats.visit(func(n Node) bool {
		n.SetVisible(ws.visible)
		return true
	})
}

// VisitChildren visits the root, then the floats bottom to top, then
// the fullscreen toplevel.
func (ws *Workspace) VisitChildren(visit func(Node) bool) {
	if ws.root != nil && !visit(ws.root) {
		return
	}
	ws.floats.visit(visit)
	if ws.fullscreen != nil {
		visit(ws.fullscreen)
	}
}

// FindTreeAt hit-tests fullscreen first, then floats top to bottom,
// then the tiled layer.
func (ws *Workspace) FindTreeAt(x, y int32, stack *[]FoundNode, usecase FindUsecase) bool {
	ax, ay := ws.pos.X1+x, ws.pos.Y1+y
	if fs := ws.fullscreen; fs != nil && fs.Visible() {
		if fs.FindTreeAt(ax-fs.pos.X1, ay-fs.pos.Y1, stack, usecase) {
			*stack = append(*stack, FoundNode{Node: ws, X: x, Y: y})
			return true
		}
		return false
	}
	if ws.floats.findTopAt(ax, ay, stack, usecase) {
		*stack = append(*stack, FoundNode{Node: ws, X: x, Y: y})
		return true
	}
	if r := ws.root; r != nil && r.Visible() && r.pos.Contains(ax, ay) {
		if r.FindTreeAt(ax-r.pos.X1, ay-r.pos.Y1, stack, usecase) {
			*stack = append(*stack, FoundNode{Node: ws, X: x, Y: y})
			return true
		}
	}
	return false
}

// Render draws the workspace.
func (ws *Workspace) Render(r Renderer, x, y int32, bounds *region.Rect) {
	r.RenderWorkspace(ws, x, y)
}

// Destroy tears the workspace down and detaches it from its output,
// keeping the membership list and back-pointer in sync.
func (ws *Workspace) Destroy() {
	if ws.destroyed {
		return
	}
	ws.seatState.destroy(ws)
	if ws.fullscreen != nil {
		fs := ws.fullscreen
		ws.fullscreen = nil
		fs.Destroy()
	}
	for _, n := range append([]Node(nil), ws.floats.nodes...) {
		n.Destroy()
	}
	ws.floats.nodes = nil
	if ws.root != nil {
		root := ws.root
		ws.root = nil
		root.Destroy()
	}
	if ws.output != nil {
		ws.output.removeWorkspace(ws)
		ws.output = nil
	}
	ws.destroyCommon(ws)
}
