package tree

import "github.com/strata-wm/strata/region"

// Anchor is a layer surface's edge anchoring bitfield.
type Anchor uint8

const (
	AnchorTop Anchor = 1 << iota
	AnchorBottom
	AnchorLeft
	AnchorRight
)

// Margins are a layer surface's per-edge offsets from its anchors.
type Margins struct {
	Top, Bottom, Left, Right int32
}

// LayerSurface is a surface anchored to one output region with a layer
// index, margins, an exclusive-zone contribution, and optional popup
// children.
type LayerSurface struct {
	nodeData

	tree    *Tree
	surface *Surface
	layer   Layer

	anchor  Anchor
	margins Margins

	// exclusiveZone reserves space at the anchored edge; zero reserves
	// nothing, negative requests placement ignoring other zones.
	exclusiveZone int32

	// desired size; zero means stretch between anchors.
	width, height int32

	popups stackedList
}

// NewLayerSurface gives a surface the layer role on the given layer.
func (t *Tree) NewLayerSurface(s *Surface, layer Layer) (*LayerSurface, error) {
	if err := s.SetRole(RoleLayerSurface); err != nil {
		return nil, err
	}
	ls := &LayerSurface{tree: t, surface: s, layer: layer}
	ls.id = t.ids.nextID()
	ls.localVisible = true
	s.layer = ls
	s.parent = ls
	return ls, nil
}

// Kind returns KindLayerSurface.
func (ls *LayerSurface) Kind() NodeKind {
	return KindLayerSurface
}

// Surface returns the underlying surface.
func (ls *LayerSurface) Surface() *Surface {
	return ls.surface
}

// Layer returns the z-region index.
func (ls *LayerSurface) Layer() Layer {
	return ls.layer
}

// SetAnchor updates the anchor bitfield and rearranges.
func (ls *LayerSurface) SetAnchor(a Anchor) {
	ls.anchor = a
	ls.arrange()
}

// SetMargins updates the margins and rearranges.
func (ls *LayerSurface) SetMargins(m Margins) {
	ls.margins = m
	ls.arrange()
}

// SetSize updates the desired size and rearranges.
func (ls *LayerSurface) SetSize(w, h int32) {
	ls.width, ls.height = w, h
	ls.arrange()
}

// SetExclusiveZone updates the reserved space at the anchored edge.
func (ls *LayerSurface) SetExclusiveZone(z int32) {
	ls.exclusiveZone = z
	if o, ok := ls.parent.(*Output); ok {
		o.recomputeExclusive()
	}
}

// ExclusiveZone returns the reservation.
func (ls *LayerSurface) ExclusiveZone() int32 {
	return ls.exclusiveZone
}

// anchorEdge reduces the anchor bitfield to the single edge the
// exclusive zone applies to; anchoring to opposing or no edges reserves
// nothing.
func (ls *LayerSurface) anchorEdge() Anchor {
	switch ls.anchor {
	case AnchorTop, AnchorTop | AnchorLeft | AnchorRight:
		return AnchorTop
	case AnchorBottom, AnchorBottom | AnchorLeft | AnchorRight:
		return AnchorBottom
	case AnchorLeft, AnchorLeft | AnchorTop | AnchorBottom:
		return AnchorLeft
	case AnchorRight, AnchorRight | AnchorTop | AnchorBottom:
		return AnchorRight
	default:
		return 0
	}
}

// arrange positions the layer surface within its output per anchors,
// margins, and desired size.
func (ls *LayerSurface) arrange() {
	o, ok := ls.parent.(*Output)
	if !ok {
		return
	}
	out := o.pos
	w, h := ls.width, ls.height
	if w == 0 {
		w = out.Width() - ls.margins.Left - ls.margins.Right
	}
	if h == 0 {
		h = out.Height() - ls.margins.Top - ls.margins.Bottom
	}
	var x, y int32
	switch {
	case ls.anchor&AnchorLeft != 0 && ls.anchor&AnchorRight == 0:
		x = out.X1 + ls.margins.Left
	case ls.anchor&AnchorRight != 0 && ls.anchor&AnchorLeft == 0:
		x = out.X2 - ls.margins.Right - w
	default:
		x = out.X1 + (out.Width()-w)/2
	}
	switch {
	case ls.anchor&AnchorTop != 0 && ls.anchor&AnchorBottom == 0:
		y = out.Y1 + ls.margins.Top
	case ls.anchor&AnchorBottom != 0 && ls.anchor&AnchorTop == 0:
		y = out.Y2 - ls.margins.Bottom - h
	default:
		y = out.Y1 + (out.Height()-h)/2
	}
	ls.pos = region.Rect{X1: x, Y1: y, X2: x + w, Y2: y + h}
	if ls.surface != nil {
		ls.surface.SetPosition(x, y)
	}
}

// AddPopup stacks a popup surface over the layer surface.
func (ls *LayerSurface) AddPopup(s *Surface) error {
	if err := s.SetRole(RolePopup); err != nil {
		return err
	}
	s.parent = ls
	ls.popups.append(s)
	s.SetVisible(ls.visible)
	return nil
}

// SetVisible recomputes visibility and propagates.
func (ls *LayerSurface) SetVisible(parentVisible bool) {
	if !ls.setVisible(parentVisible) {
		return
	}
	if ls.surface != nil {
		ls.surface.SetVisible(ls.visible)
	}
	ls.popups.visit(func(n Node) bool {
		n.SetVisible(ls.visible)
		return true
	})
}

// VisitChildren visits the surface then the popups.
func (ls *LayerSurface) VisitChildren(visit func(Node) bool) {
	if ls.surface != nil && !visit(ls.surface) {
		return
	}
	ls.popups.visit(visit)
}

// FindTreeAt hit-tests popups first, then the surface.
func (ls *LayerSurface) FindTreeAt(x, y int32, stack *[]FoundNode, usecase FindUsecase) bool {
	ax, ay := ls.pos.X1+x, ls.pos.Y1+y
	if ls.popups.findTopAt(ax, ay, stack, usecase) {
		*stack = append(*stack, FoundNode{Node: ls, X: x, Y: y})
		return true
	}
	if ls.surface != nil && ls.surface.FindTreeAt(x, y, stack, usecase) {
		*stack = append(*stack, FoundNode{Node: ls, X: x, Y: y})
		return true
	}
	return false
}

// Render draws the layer surface.
func (ls *LayerSurface) Render(r Renderer, x, y int32, bounds *region.Rect) {
	r.RenderLayerSurface(ls, x, y)
}

// Destroy removes the layer surface from its output.
func (ls *LayerSurface) Destroy() {
	if ls.destroyed {
		return
	}
	for _, n := range append([]Node(nil), ls.popups.nodes...) {
		n.Destroy()
	}
	ls.popups.nodes = nil
	if s := ls.surface; s != nil {
		ls.surface = nil
		s.layer = nil
		s.role = RoleNone
		s.parent = nil
	}
	if o, ok := ls.parent.(*Output); ok {
		o.removeLayerSurface(ls)
	}
	ls.destroyCommon(ls)
}
