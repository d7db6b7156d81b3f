package tree

import "github.com/strata-wm/strata/region"

// TrayItem is an output-anchored surface with configure serials, a
// position rectangle relative to the output, and popup children.
type TrayItem struct {
	nodeData

	tree    *Tree
	surface *Surface

	// rel is the item's rectangle relative to the output.
	rel region.Rect

	// sentSerial and ackedSerial track the configure round-trip with
	// the tray client.
	sentSerial  Serial
	ackedSerial Serial

	popups stackedList
}

// NewTrayItem gives a surface the tray role.
func (t *Tree) NewTrayItem(s *Surface) (*TrayItem, error) {
	if err := s.SetRole(RoleTray); err != nil {
		return nil, err
	}
	ti := &TrayItem{tree: t, surface: s}
	ti.id = t.ids.nextID()
	ti.localVisible = true
	s.tray = ti
	s.parent = ti
	return ti, nil
}

// Kind returns KindTrayItem.
func (ti *TrayItem) Kind() NodeKind {
	return KindTrayItem
}

// Surface returns the underlying surface.
func (ti *TrayItem) Surface() *Surface {
	return ti.surface
}

// SetRelPosition places the item relative to its output.
func (ti *TrayItem) SetRelPosition(r region.Rect) {
	ti.rel = r
	if o, ok := ti.parent.(*Output); ok {
		ti.pos = r.Move(o.pos.X1, o.pos.Y1)
		if ti.surface != nil {
			ti.surface.SetPosition(ti.pos.X1, ti.pos.Y1)
		}
	}
}

// RelPosition returns the output-relative rectangle.
func (ti *TrayItem) RelPosition() region.Rect {
	return ti.rel
}

// SentConfigure records a configure serial sent to the client.
func (ti *TrayItem) SentConfigure(s Serial) {
	ti.sentSerial = s
}

// AckConfigure records the client's acknowledgement. Serials older than
// the last sent one are accepted; unknown serials are a protocol error
// handled by the caller.
func (ti *TrayItem) AckConfigure(s Serial) bool {
	if s > ti.sentSerial {
		return false
	}
	ti.ackedSerial = s
	return true
}

// Acked reports whether the last sent configure was acknowledged.
func (ti *TrayItem) Acked() bool {
	return ti.ackedSerial == ti.sentSerial && ti.sentSerial != 0
}

// AddPopup stacks a popup surface over the item.
func (ti *TrayItem) AddPopup(s *Surface) error {
	if err := s.SetRole(RolePopup); err != nil {
		return err
	}
	s.parent = ti
	ti.popups.append(s)
	s.SetVisible(ti.visible)
	return nil
}

// SetVisible recomputes visibility and propagates.
func (ti *TrayItem) SetVisible(parentVisible bool) {
	if !ti.setVisible(parentVisible) {
		return
	}
	if ti.surface != nil {
		ti.surface.SetVisible(ti.visible)
	}
	ti.popups.visit(func(n Node) bool {
		n.SetVisible(ti.visible)
		return true
	})
}

// VisitChildren visits the surface then the popups.
func (ti *TrayItem) VisitChildren(visit func(Node) bool) {
	if ti.surface != nil && !visit(ti.surface) {
		return
	}
	ti.popups.visit(visit)
}

// FindTreeAt hit-tests popups first, then the surface.
func (ti *TrayItem) FindTreeAt(x, y int32, stack *[]FoundNode, usecase FindUsecase) bool {
	ax, ay := ti.pos.X1+x, ti.pos.Y1+y
	if ti.popups.findTopAt(ax, ay, stack, usecase) {
		*stack = append(*stack, FoundNode{Node: ti, X: x, Y: y})
		return true
	}
	if ti.surface != nil && ti.surface.FindTreeAt(x, y, stack, usecase) {
		*stack = append(*stack, FoundNode{Node: ti, X: x, Y: y})
		return true
	}
	return false
}

// Render draws the tray item's surface.
func (ti *TrayItem) Render(r Renderer, x, y int32, bounds *region.Rect) {
	if ti.surface != nil {
		ti.surface.Render(r, x, y, bounds)
	}
}

// Destroy removes the tray item from its output.
func (ti *TrayItem) Destroy() {
	if ti.destroyed {
		return
	}
	for _, n := range append([]Node(nil), ti.popups.nodes...) {
		n.Destroy()
	}
	ti.popups.nodes = nil
	if s := ti.surface; s != nil {
		ti.surface = nil
		s.tray = nil
		s.role = RoleNone
		s.parent = nil
	}
	if o, ok := ti.parent.(*Output); ok {
		o.removeTrayItem(ti)
	}
	ti.destroyCommon(ti)
}
