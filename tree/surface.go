package tree

import (
	"errors"

	"github.com/strata-wm/strata/gpu"
	"github.com/strata-wm/strata/region"
)

// SurfaceRole identifies the single role a surface holds at a time.
type SurfaceRole uint8

const (
	RoleNone SurfaceRole = iota
	RoleToplevel
	RoleSubsurface
	RoleCursor
	RolePopup
	RoleLayerSurface
	RoleLock
	RoleTray
)

// String returns the role name.
func (r SurfaceRole) String() string {
	switch r {
	case RoleNone:
		return "none"
	case RoleToplevel:
		return "toplevel"
	case RoleSubsurface:
		return "subsurface"
	case RoleCursor:
		return "cursor"
	case RolePopup:
		return "popup"
	case RoleLayerSurface:
		return "layer-surface"
	case RoleLock:
		return "lock"
	case RoleTray:
		return "tray"
	default:
		return "invalid"
	}
}

// ErrRoleConflict is returned when a surface is given a second role.
// Role conflicts are client protocol errors and kill the offending
// client only.
var ErrRoleConflict = errors.New("tree: surface already has a role")

// Buffer is a surface's attached image.
type Buffer struct {
	// Shm is set for shared-memory buffers.
	Shm *gpu.ShmTextureHandle

	// Texture is set for imported dma-buf textures.
	Texture gpu.Texture

	Width  int32
	Height int32
}

// SurfaceState is one side of the pending/committed state pair.
type SurfaceState struct {
	buffer        *Buffer
	bufferChanged bool
	damage        *region.Region
	opaque        *region.Region
	frameCbs      []func(msec uint32)
}

// Surface is a client image with a pending and committed state pair,
// ordered subsurface children, and a role extension.
type Surface struct {
	nodeData

	client *Client

	pending   SurfaceState
	committed SurfaceState

	// Subsurface children, each stacked below or above the parent.
	below stackedList
	above stackedList

	role     SurfaceRole
	toplevel *Toplevel
	layer    *LayerSurface
	tray     *TrayItem

	// extents is the union of the buffer rect and all subsurface
	// extents, in surface-local coordinates.
	extents region.Rect

	// output the surface was last announced on.
	output *Output

	// selectable surfaces participate in toplevel selection.
	selectable bool
}

// NewSurface creates a role-less surface for a client.
func (t *Tree) NewSurface(c *Client) *Surface {
	s := &Surface{}
	s.id = t.ids.nextID()
	s.client = c
	s.localVisible = true
	s.committed.damage = region.Empty()
	s.committed.opaque = region.Empty()
	s.pending.damage = region.Empty()
	s.pending.opaque = region.Empty()
	if c != nil {
		c.surfaces[s.id] = s
	}
	return s
}

// Client returns the owning client.
func (s *Surface) Client() *Client {
	return s.client
}

// Kind returns KindSurface.
func (s *Surface) Kind() NodeKind {
	return KindSurface
}

// Role returns the surface's current role.
func (s *Surface) Role() SurfaceRole {
	return s.role
}

// SetRole assigns the surface's role. Surfaces have exactly one role at
// a time; a second assignment is a protocol error.
func (s *Surface) SetRole(r SurfaceRole) error {
	if s.role != RoleNone && s.role != r {
		return ErrRoleConflict
	}
	s.role = r
	return nil
}

// Toplevel returns the toplevel role object, nil without one.
func (s *Surface) Toplevel() *Toplevel {
	return s.toplevel
}

// Output returns the output the surface is bound to.
func (s *Surface) Output() *Output {
	return s.output
}

// SetOutput rebinds the surface and its subtree to an output.
func (s *Surface) SetOutput(o *Output) {
	if s.output == o {
		return
	}
	s.output = o
	s.below.visit(func(n Node) bool {
		if sub, ok := n.(*Surface); ok {
			sub.SetOutput(o)
		}
		return true
	})
	s.above.visit(func(n Node) bool {
		if sub, ok := n.(*Surface); ok {
			sub.SetOutput(o)
		}
		return true
	})
}

// Attach stages a buffer for the next commit. A nil buffer unmaps the
// surface on commit.
func (s *Surface) Attach(b *Buffer) {
	s.pending.buffer = b
	s.pending.bufferChanged = true
}

// Damage stages damage in surface-local coordinates.
func (s *Surface) Damage(r region.Rect) {
	s.pending.damage = s.pending.damage.Union(region.FromRect(r))
}

// SetOpaque stages the opaque region.
func (s *Surface) SetOpaque(r *region.Region) {
	if r == nil {
		r = region.Empty()
	}
	s.pending.opaque = r
}

// Frame queues a frame callback delivered after the next frame the
// surface was visible in.
func (s *Surface) Frame(cb func(msec uint32)) {
	s.pending.frameCbs = append(s.pending.frameCbs, cb)
}

// Commit atomically applies the pending state.
func (s *Surface) Commit() {
	p := &s.pending
	if p.bufferChanged {
		s.committed.buffer = p.buffer
		s.committed.bufferChanged = true
		p.buffer = nil
		p.bufferChanged = false
	}
	s.committed.damage = s.committed.damage.Union(p.damage)
	p.damage = region.Empty()
	s.committed.opaque = p.opaque
	s.committed.frameCbs = append(s.committed.frameCbs, p.frameCbs...)
	p.frameCbs = nil
	s.updateExtents()
}

// Buffer returns the committed buffer.
func (s *Surface) Buffer() *Buffer {
	return s.committed.buffer
}

// TakeDamage returns and resets the accumulated committed damage.
func (s *Surface) TakeDamage() *region.Region {
	d := s.committed.damage
	s.committed.damage = region.Empty()
	return d
}

// Opaque returns the committed opaque region.
func (s *Surface) Opaque() *region.Region {
	return s.committed.opaque
}

// TakeFrameCallbacks returns and clears the queued frame callbacks.
func (s *Surface) TakeFrameCallbacks() []func(msec uint32) {
	cbs := s.committed.frameCbs
	s.committed.frameCbs = nil
	return cbs
}

// Extents returns the surface-local bounding rectangle of the surface
// and its subsurfaces.
func (s *Surface) Extents() region.Rect {
	return s.extents
}

func (s *Surface) updateExtents() {
	var ext region.Rect
	if b := s.committed.buffer; b != nil {
		ext = region.Rect{X2: b.Width, Y2: b.Height}
	}
	grow := func(n Node) bool {
		if sub, ok := n.(*Surface); ok {
			sub.updateExtents()
			rel := sub.extents.Move(sub.pos.X1-s.pos.X1, sub.pos.Y1-s.pos.Y1)
			ext = ext.Union(rel)
		}
		return true
	}
	s.below.visit(grow)
	s.above.visit(grow)
	s.extents = ext
}

// AddSubsurface stacks a child surface above or below.
func (s *Surface) AddSubsurface(sub *Surface, above bool) error {
	if err := sub.SetRole(RoleSubsurface); err != nil {
		return err
	}
	sub.parent = s
	if above {
		s.above.append(sub)
	} else {
		s.below.append(sub)
	}
	sub.SetVisible(s.visible)
	return nil
}

// SetPosition places the surface in display-global coordinates.
func (s *Surface) SetPosition(x, y int32) {
	w := s.pos.Width()
	h := s.pos.Height()
	if b := s.committed.buffer; b != nil {
		w, h = b.Width, b.Height
	}
	dx, dy := x-s.pos.X1, y-s.pos.Y1
	s.pos = region.Rect{X1: x, Y1: y, X2: x + w, Y2: y + h}
	move := func(n Node) bool {
		if sub, ok := n.(*Surface); ok {
			sub.SetPosition(sub.pos.X1+dx, sub.pos.Y1+dy)
		}
		return true
	}
	s.below.visit(move)
	s.above.visit(move)
}

// SetSelectable marks whether the surface participates in toplevel
// selection hit-tests.
func (s *Surface) SetSelectable(v bool) {
	s.selectable = v
}

// SetVisible recomputes visibility and propagates to subsurfaces.
func (s *Surface) SetVisible(parentVisible bool) {
	if !s.setVisible(parentVisible) {
		return
	}
	prop := func(n Node) bool {
		n.SetVisible(s.visible)
		return true
	}
	s.below.visit(prop)
	s.above.visit(prop)
}

// VisitChildren visits subsurfaces bottom to top.
func (s *Surface) VisitChildren(visit func(Node) bool) {
	s.below.visit(visit)
	s.above.visit(visit)
}

// VisitBelow visits the subsurfaces stacked below, bottom to top.
func (s *Surface) VisitBelow(visit func(*Surface) bool) {
	s.below.visit(func(n Node) bool {
		if sub, ok := n.(*Surface); ok {
			return visit(sub)
		}
		return true
	})
}

// VisitAbove visits the subsurfaces stacked above, bottom to top.
func (s *Surface) VisitAbove(visit func(*Surface) bool) {
	s.above.visit(func(n Node) bool {
		if sub, ok := n.(*Surface); ok {
			return visit(sub)
		}
		return true
	})
}

// FindTreeAt hit-tests the surface and its subsurfaces.
func (s *Surface) FindTreeAt(x, y int32, stack *[]FoundNode, usecase FindUsecase) bool {
	if usecase == FindSelectToplevel && !s.selectable {
		return false
	}
	ax, ay := s.pos.X1+x, s.pos.Y1+y
	if s.above.findTopAt(ax, ay, stack, usecase) {
		*stack = append(*stack, FoundNode{Node: s, X: x, Y: y})
		return true
	}
	if b := s.committed.buffer; b != nil && x >= 0 && y >= 0 && x < b.Width && y < b.Height {
		*stack = append(*stack, FoundNode{Node: s, X: x, Y: y})
		return true
	}
	if s.below.findTopAt(ax, ay, stack, usecase) {
		*stack = append(*stack, FoundNode{Node: s, X: x, Y: y})
		return true
	}
	return false
}

// Render draws the surface subtree.
func (s *Surface) Render(r Renderer, x, y int32, bounds *region.Rect) {
	r.RenderSurface(s, x, y, bounds)
}

// Destroy tears down the surface and its subsurfaces.
func (s *Surface) Destroy() {
	if s.destroyed {
		return
	}
	s.seatState.destroy(s)
	for _, n := range append(append([]Node(nil), s.below.nodes...), s.above.nodes...) {
		n.Destroy()
	}
	s.below.nodes = nil
	s.above.nodes = nil
	if p, ok := s.parent.(*Surface); ok {
		p.below.remove(s)
		p.above.remove(s)
	}
	if s.toplevel != nil {
		tl := s.toplevel
		s.toplevel = nil
		tl.surfaceGone()
	}
	if s.layer != nil {
		ls := s.layer
		s.layer = nil
		ls.Destroy()
	}
	if s.tray != nil {
		ti := s.tray
		s.tray = nil
		ti.Destroy()
	}
	if s.client != nil {
		delete(s.client.surfaces, s.id)
	}
	if b := s.committed.buffer; b != nil && b.Shm != nil {
		b.Shm.Release()
	}
	s.destroyCommon(s)
}
