// Package tree implements the compositor's window tree: the recursive
// node graph of displays, outputs, workspaces, containers, floating
// nodes, placeholders, and toplevel windows, together with the
// transaction engine and the configure pipeline that reconfigure it
// atomically.
//
// All tree state is owned by the runtime goroutine. Parent links are
// weak (cleared on destruction before the owning side drops its strong
// reference), children are strong, and every node carries a stable
// integer id so external references can outlive the node.
package tree

import (
	"github.com/strata-wm/strata/gpu"
	"github.com/strata-wm/strata/region"
)

// NodeID is a stable integer identity. IDs are never reused.
type NodeID uint64

// NodeKind discriminates the node variants.
type NodeKind uint8

const (
	KindDisplay NodeKind = iota
	KindOutput
	KindWorkspace
	KindContainer
	KindFloat
	KindPlaceholder
	KindToplevel
	KindSurface
	KindLayerSurface
	KindTrayItem
)

// String returns the kind name.
func (k NodeKind) String() string {
	switch k {
	case KindDisplay:
		return "display"
	case KindOutput:
		return "output"
	case KindWorkspace:
		return "workspace"
	case KindContainer:
		return "container"
	case KindFloat:
		return "float"
	case KindPlaceholder:
		return "placeholder"
	case KindToplevel:
		return "toplevel"
	case KindSurface:
		return "surface"
	case KindLayerSurface:
		return "layer-surface"
	case KindTrayItem:
		return "tray-item"
	default:
		return "invalid"
	}
}

// FindUsecase distinguishes hit-testing for input routing from toplevel
// selection; surfaces may mark themselves non-selectable.
type FindUsecase uint8

const (
	// FindInput routes pointer/touch input.
	FindInput FindUsecase = iota

	// FindSelectToplevel picks a toplevel under the cursor.
	FindSelectToplevel
)

// FoundNode is one entry of the hit-test stack: a node together with the
// query point in its local coordinates.
type FoundNode struct {
	Node Node
	X, Y int32
}

// Renderer draws node subtrees. The render package provides the
// GPU-backed implementation; tests substitute recorders.
type Renderer interface {
	RenderSurface(s *Surface, x, y int32, bounds *region.Rect)
	RenderContainer(c *Container, x, y int32)
	RenderToplevel(tl *Toplevel, x, y int32, bounds *region.Rect)
	RenderWorkspace(ws *Workspace, x, y int32)
	RenderOutput(o *Output, x, y int32)
	RenderLayerSurface(ls *LayerSurface, x, y int32)
	RenderFloat(f *Float, x, y int32)
	RenderPlaceholder(p *Placeholder, x, y int32)
	FillRect(r region.Rect, c gpu.Color)
}

// Node is the polymorphic node interface.
type Node interface {
	// ID returns the stable identity.
	ID() NodeID

	// Kind returns the variant discriminant.
	Kind() NodeKind

	// Parent returns the current parent, nil for the root and for
	// detached nodes.
	Parent() Node

	// AbsolutePosition returns the node's rectangle in display-global
	// coordinates.
	AbsolutePosition() region.Rect

	// Visible reports the derived visibility bit.
	Visible() bool

	// SetVisible recomputes visibility from the parent's bit and
	// propagates depth-first.
	SetVisible(parentVisible bool)

	// VisitChildren calls visit for each child, bottom to top, until it
	// returns false.
	VisitChildren(visit func(Node) bool)

	// FindTreeAt descends the topmost children at (x, y) in local
	// coordinates, appending hit nodes to stack.
	FindTreeAt(x, y int32, stack *[]FoundNode, usecase FindUsecase) bool

	// Render draws the subtree at (x, y) with an optional local clip.
	Render(r Renderer, x, y int32, bounds *region.Rect)

	// Destroy removes the node and its subtree: seat focus is drained,
	// the removed signal is broadcast, and back-pointers are unlinked
	// before storage is released.
	Destroy()
}

// nodeData is the common seat-state bag embedded in every node.
type nodeData struct {
	id           NodeID
	parent       Node
	pos          region.Rect
	localVisible bool
	visible      bool
	destroyed    bool

	seatState SeatState

	removedListeners []func(Node)
}

func (d *nodeData) ID() NodeID {
	return d.id
}

func (d *nodeData) Parent() Node {
	return d.parent
}

func (d *nodeData) AbsolutePosition() region.Rect {
	return d.pos
}

func (d *nodeData) Visible() bool {
	return d.visible
}

// OnRemoved registers a listener invoked when the node is destroyed.
func (d *nodeData) OnRemoved(fn func(Node)) {
	d.removedListeners = append(d.removedListeners, fn)
}

func (d *nodeData) broadcastRemoved(self Node) {
	ls := d.removedListeners
	d.removedListeners = nil
	for _, fn := range ls {
		fn(self)
	}
}

// setVisible updates the derived bit and reports whether it changed.
func (d *nodeData) setVisible(parentVisible bool) bool {
	v := parentVisible && d.localVisible
	if v == d.visible {
		return false
	}
	d.visible = v
	return true
}

// destroyCommon drains seat focus, broadcasts removal, and clears the
// parent back-pointer. Callers destroy children first.
func (d *nodeData) destroyCommon(self Node) {
	if d.destroyed {
		return
	}
	d.destroyed = true
	d.seatState.destroy(self)
	d.broadcastRemoved(self)
	d.parent = nil
}

// dataOf returns the embedded node data of any concrete node.
func dataOf(n Node) *nodeData {
	switch t := n.(type) {
	case *Display:
		return &t.nodeData
	case *Output:
		return &t.nodeData
	case *Workspace:
		return &t.nodeData
	case *Container:
		return &t.nodeData
	case *Float:
		return &t.nodeData
	case *Placeholder:
		return &t.nodeData
	case *Toplevel:
		return &t.nodeData
	case *Surface:
		return &t.nodeData
	case *LayerSurface:
		return &t.nodeData
	case *TrayItem:
		return &t.nodeData
	default:
		return nil
	}
}

// setParent atomically rebinds a node's parent pointer.
func setParent(n, p Node) {
	if d := dataOf(n); d != nil {
		d.parent = p
	}
}

func clearParent(n Node) {
	setParent(n, nil)
}

// ids allocates NodeIDs for one tree.
type ids struct {
	next NodeID
}

func (i *ids) nextID() NodeID {
	i.next++
	return i.next
}

// stackedList is an ordered list of nodes from bottom to top. Insertion
// order is significant for hit-testing and paint.
type stackedList struct {
	nodes []Node
}

// append pushes a node on top.
func (s *stackedList) append(n Node) {
	s.nodes = append(s.nodes, n)
}

// remove unlinks a node wherever it sits.
func (s *stackedList) remove(n Node) {
	for i, c := range s.nodes {
		if c == n {
			s.nodes = append(s.nodes[:i], s.nodes[i+1:]...)
			return
		}
	}
}

// raise moves a node to the top.
func (s *stackedList) raise(n Node) {
	s.remove(n)
	s.append(n)
}

// visit walks bottom to top.
func (s *stackedList) visit(visit func(Node) bool) {
	for _, n := range s.nodes {
		if !visit(n) {
			return
		}
	}
}

// findTopAt hit-tests top to bottom in display coordinates relative to
// the owner's origin.
func (s *stackedList) findTopAt(x, y int32, stack *[]FoundNode, usecase FindUsecase) bool {
	for i := len(s.nodes) - 1; i >= 0; i-- {
		n := s.nodes[i]
		if !n.Visible() {
			continue
		}
		pos := n.AbsolutePosition()
		if !pos.Contains(x, y) {
			continue
		}
		if n.FindTreeAt(x-pos.X1, y-pos.Y1, stack, usecase) {
			return true
		}
	}
	return false
}
