package tree

import "github.com/strata-wm/strata/region"

// ToplevelKind distinguishes shell-protocol toplevels from legacy X
// toplevels.
type ToplevelKind uint8

const (
	ToplevelXdg ToplevelKind = iota
	ToplevelX
)

// ContentType is the client-declared content classification.
type ContentType uint8

const (
	ContentNone ContentType = iota
	ContentPhoto
	ContentVideo
	ContentGame
)

// Toplevel is a managed window: a shell or X toplevel owning a single
// surface subtree plus window metadata.
type Toplevel struct {
	nodeData

	tree    *Tree
	kindTag ToplevelKind
	surface *Surface

	title string
	appID string
	tag   string

	// parentToplevel is the transient-for link.
	parentToplevel *Toplevel

	workspace *Workspace
	output    *Output

	fullscreen  bool
	contentType ContentType

	// activeChildren counts the toplevel and its descendants holding
	// keyboard focus, so parent chains can render active decorations.
	activeChildren int

	// titleChanged listeners, e.g. the container tab bar.
	titleListeners []func(*Toplevel)
}

// NewToplevel gives a surface the toplevel role.
func (t *Tree) NewToplevel(s *Surface, kind ToplevelKind) (*Toplevel, error) {
	if err := s.SetRole(RoleToplevel); err != nil {
		return nil, err
	}
	tl := &Toplevel{tree: t, kindTag: kind, surface: s}
	tl.id = t.ids.nextID()
	tl.localVisible = true
	s.toplevel = tl
	s.parent = tl
	s.selectable = true
	return tl, nil
}

// Kind returns KindToplevel.
func (tl *Toplevel) Kind() NodeKind {
	return KindToplevel
}

// ToplevelKind returns the protocol variant.
func (tl *Toplevel) ToplevelKind() ToplevelKind {
	return tl.kindTag
}

// Surface returns the toplevel's surface.
func (tl *Toplevel) Surface() *Surface {
	return tl.surface
}

// Title returns the window title.
func (tl *Toplevel) Title() string {
	return tl.title
}

// SetTitle updates the title and notifies the parent container.
func (tl *Toplevel) SetTitle(title string) {
	if tl.title == title {
		return
	}
	tl.title = title
	for _, fn := range tl.titleListeners {
		fn(tl)
	}
	if c, ok := tl.parent.(*Container); ok {
		c.childTitleChanged(tl, title)
	}
}

// OnTitleChanged registers a title listener.
func (tl *Toplevel) OnTitleChanged(fn func(*Toplevel)) {
	tl.titleListeners = append(tl.titleListeners, fn)
}

// AppID returns the application id.
func (tl *Toplevel) AppID() string {
	return tl.appID
}

// SetAppID updates the application id.
func (tl *Toplevel) SetAppID(id string) {
	tl.appID = id
}

// Tag returns the user-assigned tag.
func (tl *Toplevel) Tag() string {
	return tl.tag
}

// SetTag updates the tag.
func (tl *Toplevel) SetTag(tag string) {
	tl.tag = tag
}

// ParentToplevel returns the transient-for parent.
func (tl *Toplevel) ParentToplevel() *Toplevel {
	return tl.parentToplevel
}

// SetParentToplevel updates the transient-for link.
func (tl *Toplevel) SetParentToplevel(p *Toplevel) {
	tl.parentToplevel = p
}

// Workspace returns the back-link to the owning workspace.
func (tl *Toplevel) Workspace() *Workspace {
	return tl.workspace
}

// Output returns the output the toplevel is mapped on.
func (tl *Toplevel) Output() *Output {
	return tl.output
}

// ContentType returns the client-declared content classification.
func (tl *Toplevel) ContentType() ContentType {
	return tl.contentType
}

// SetContentType updates the content classification.
func (tl *Toplevel) SetContentType(ct ContentType) {
	tl.contentType = ct
}

// Fullscreen reports the fullscreen flag.
func (tl *Toplevel) Fullscreen() bool {
	return tl.fullscreen
}

// SetFullscreen toggles fullscreen. The tiling position is kept by a
// placeholder so leaving fullscreen does not reflow the tree.
func (tl *Toplevel) SetFullscreen(fs bool) {
	tl.fullscreen = fs
}

// Floating reports whether the toplevel sits in a float.
func (tl *Toplevel) Floating() bool {
	_, ok := tl.parent.(*Float)
	return ok
}

// Active reports whether the toplevel or a descendant holds keyboard
// focus.
func (tl *Toplevel) Active() bool {
	return tl.activeChildren > 0
}

// SetActive adjusts the active-child counters up the transient chain.
func (tl *Toplevel) SetActive(active bool) {
	delta := 1
	if !active {
		delta = -1
	}
	for cur := tl; cur != nil; cur = cur.parentToplevel {
		cur.activeChildren += delta
	}
}

// SetWorkspace moves the back-link, keeping invariant 3: the workspace
// link and the membership lists never dangle.
func (tl *Toplevel) SetWorkspace(ws *Workspace) {
	tl.workspace = ws
	if ws != nil {
		tl.output = ws.output
	} else {
		tl.output = nil
	}
	if tl.surface != nil {
		if tl.output != nil {
			tl.surface.SetOutput(tl.output)
		}
	}
}

// SetBody positions the toplevel's content in display coordinates.
func (tl *Toplevel) SetBody(r region.Rect) {
	tl.pos = r
	if tl.surface != nil {
		tl.surface.SetPosition(r.X1, r.Y1)
	}
}

// SetVisible recomputes visibility and propagates to the surface.
func (tl *Toplevel) SetVisible(parentVisible bool) {
	if !tl.setVisible(parentVisible) {
		return
	}
	if tl.surface != nil {
		tl.surface.SetVisible(tl.visible)
	}
}

// VisitChildren visits the surface subtree.
func (tl *Toplevel) VisitChildren(visit func(Node) bool) {
	if tl.surface != nil {
		visit(tl.surface)
	}
}

// FindTreeAt descends into the surface.
func (tl *Toplevel) FindTreeAt(x, y int32, stack *[]FoundNode, usecase FindUsecase) bool {
	if tl.surface == nil {
		return false
	}
	if !tl.surface.FindTreeAt(x, y, stack, usecase) {
		return false
	}
	*stack = append(*stack, FoundNode{Node: tl, X: x, Y: y})
	return true
}

// Render draws the toplevel.
func (tl *Toplevel) Render(r Renderer, x, y int32, bounds *region.Rect) {
	r.RenderToplevel(tl, x, y, bounds)
}

// surfaceGone handles the surface being destroyed under the toplevel.
func (tl *Toplevel) surfaceGone() {
	tl.surface = nil
	tl.Destroy()
}

// Destroy detaches the toplevel from its parent and drains focus.
func (tl *Toplevel) Destroy() {
	if tl.destroyed {
		return
	}
	tl.seatState.destroy(tl)
	switch p := tl.parent.(type) {
	case *Container:
		p.removeChild(tl)
	case *Float:
		p.childGone(tl)
	case *Workspace:
		p.fullscreenGone(tl)
	}
	if tl.workspace != nil {
		tl.workspace = nil
	}
	tl.output = nil
	if s := tl.surface; s != nil {
		tl.surface = nil
		s.toplevel = nil
		s.role = RoleNone
		s.parent = nil
	}
	tl.destroyCommon(tl)
}
