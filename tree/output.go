package tree

import "github.com/strata-wm/strata/region"

// Scale is an output scale as a rational of 120ths, matching the
// fractional-scale wire convention.
type Scale struct {
	Base120 uint32
}

// ScaleOf builds a scale from a float, rounded to 120ths.
func ScaleOf(f float64) Scale {
	return Scale{Base120: uint32(f*120 + 0.5)}
}

// Float returns the scale factor.
func (s Scale) Float() float64 {
	if s.Base120 == 0 {
		return 1
	}
	return float64(s.Base120) / 120
}

// Transform is an output rotation/flip.
type Transform uint8

const (
	TransformNone Transform = iota
	Transform90
	Transform180
	Transform270
	TransformFlipped
	TransformFlipped90
	TransformFlipped180
	TransformFlipped270
)

// Mode is one output video mode.
type Mode struct {
	Width, Height int32
	RefreshMHz    uint32
}

// Layer indexes the four z-ordered layer-shell regions of an output.
type Layer uint8

const (
	LayerBackground Layer = iota
	LayerBottom
	LayerTop
	LayerOverlay

	numLayers
)

// Output represents one connected monitor.
type Output struct {
	nodeData

	tree *Tree

	// stableID identifies the physical connector across reconnects.
	stableID string

	scale     Scale
	transform Transform
	mode      Mode

	workspaces []*Workspace
	visibleWs  *Workspace

	layers [numLayers]stackedList

	trayItems []*TrayItem

	// presentation listeners fire after a frame was presented.
	presentListeners []func(msec uint32)

	// exclusive zones reserved by layer surfaces, per edge.
	exclusiveTop, exclusiveBottom, exclusiveLeft, exclusiveRight int32
}

// NewOutput creates an output and links it into the display.
func (t *Tree) NewOutput(stableID string, pos region.Rect, mode Mode) *Output {
	o := &Output{tree: t, stableID: stableID, scale: ScaleOf(1), mode: mode}
	o.id = t.ids.nextID()
	o.localVisible = true
	o.pos = pos
	o.parent = t.Display
	t.Display.outputs[stableID] = o
	o.SetVisible(t.Display.visible)
	return o
}

// Kind returns KindOutput.
func (o *Output) Kind() NodeKind {
	return KindOutput
}

// StableID returns the connector identity.
func (o *Output) StableID() string {
	return o.stableID
}

// Scale returns the output scale.
func (o *Output) Scale() Scale {
	return o.scale
}

// SetScale updates the output scale.
func (o *Output) SetScale(s Scale) {
	o.scale = s
}

// Transform returns the output transform.
func (o *Output) Transform() Transform {
	return o.transform
}

// SetTransform updates the output transform.
func (o *Output) SetTransform(t Transform) {
	o.transform = t
}

// Mode returns the current mode.
func (o *Output) Mode() Mode {
	return o.mode
}

// SetPosition moves the output in the global layout.
func (o *Output) SetPosition(pos region.Rect) {
	o.pos = pos
	if o.visibleWs != nil {
		o.visibleWs.SetBody(o.usableRect())
	}
}

// usableRect is the output rect minus the layer-shell exclusive zones.
func (o *Output) usableRect() region.Rect {
	return region.Rect{
		X1: o.pos.X1 + o.exclusiveLeft,
		Y1: o.pos.Y1 + o.exclusiveTop,
		X2: o.pos.X2 - o.exclusiveRight,
		Y2: o.pos.Y2 - o.exclusiveBottom,
	}
}

// Workspaces returns the attached workspaces.
func (o *Output) Workspaces() []*Workspace {
	return o.workspaces
}

// VisibleWorkspace returns the workspace currently shown.
func (o *Output) VisibleWorkspace() *Workspace {
	return o.visibleWs
}

// AttachWorkspace links a workspace to this output, keeping the
// membership list and the back-pointer in sync.
func (o *Output) AttachWorkspace(ws *Workspace) {
	if ws.output == o {
		return
	}
	if ws.output != nil {
		ws.output.removeWorkspace(ws)
	}
	ws.output = o
	setParent(ws, o)
	o.workspaces = append(o.workspaces, ws)
	ws.SetBody(o.usableRect())
	if o.visibleWs == nil {
		o.ShowWorkspace(ws)
	} else {
		ws.SetVisible(false)
	}
}

// ShowWorkspace makes ws the visible workspace.
func (o *Output) ShowWorkspace(ws *Workspace) {
	if ws.output != o || o.visibleWs == ws {
		return
	}
	if old := o.visibleWs; old != nil {
		old.SetVisible(false)
	}
	o.visibleWs = ws
	ws.SetBody(o.usableRect())
	ws.SetVisible(o.visible)
}

// removeWorkspace unlinks a workspace from the membership list.
func (o *Output) removeWorkspace(ws *Workspace) {
	for i, w := range o.workspaces {
		if w == ws {
			o.workspaces = append(o.workspaces[:i], o.workspaces[i+1:]...)
			break
		}
	}
	if o.visibleWs == ws {
		o.visibleWs = nil
		if len(o.workspaces) > 0 {
			o.ShowWorkspace(o.workspaces[0])
		}
	}
}

// AddLayerSurface anchors a layer surface onto one of the four layers.
func (o *Output) AddLayerSurface(ls *LayerSurface) {
	setParent(ls, o)
	o.layers[ls.layer].append(ls)
	ls.arrange()
	ls.SetVisible(o.visible)
	o.recomputeExclusive()
}

func (o *Output) removeLayerSurface(ls *LayerSurface) {
	o.layers[ls.layer].remove(ls)
	o.recomputeExclusive()
}

// recomputeExclusive sums the exclusive-zone contributions of all layer
// surfaces and reflows the visible workspace.
func (o *Output) recomputeExclusive() {
	o.exclusiveTop, o.exclusiveBottom, o.exclusiveLeft, o.exclusiveRight = 0, 0, 0, 0
	for l := range o.layers {
		o.layers[l].visit(func(n Node) bool {
			ls, ok := n.(*LayerSurface)
			if !ok || ls.exclusiveZone <= 0 {
				return true
			}
			switch ls.anchorEdge() {
			case AnchorTop:
				o.exclusiveTop += ls.exclusiveZone
			case AnchorBottom:
				o.exclusiveBottom += ls.exclusiveZone
			case AnchorLeft:
				o.exclusiveLeft += ls.exclusiveZone
			case AnchorRight:
				o.exclusiveRight += ls.exclusiveZone
			}
			return true
		})
	}
	if o.visibleWs != nil {
		o.visibleWs.SetBody(o.usableRect())
	}
}

// AddTrayItem links an output-anchored tray item.
func (o *Output) AddTrayItem(ti *TrayItem) {
	setParent(ti, o)
	o.trayItems = append(o.trayItems, ti)
	ti.SetVisible(o.visible)
}

func (o *Output) removeTrayItem(ti *TrayItem) {
	for i, t := range o.trayItems {
		if t == ti {
			o.trayItems = append(o.trayItems[:i], o.trayItems[i+1:]...)
			return
		}
	}
}

// TrayItems returns the output's tray items.
func (o *Output) TrayItems() []*TrayItem {
	return o.trayItems
}

// OnPresented registers a presentation listener.
func (o *Output) OnPresented(fn func(msec uint32)) {
	o.presentListeners = append(o.presentListeners, fn)
}

// Presented fires the presentation listeners for a completed frame.
func (o *Output) Presented(msec uint32) {
	for _, fn := range o.presentListeners {
		fn(msec)
	}
}

// SetVisible recomputes visibility and propagates.
func (o *Output) SetVisible(parentVisible bool) {
	if !o.setVisible(parentVisible) {
		return
	}
	for l := range o.layers {
		o.layers[l].visit(func(n Node) bool {
			n.SetVisible(o.visible)
			return true
		})
	}
	for _, ws := range o.workspaces {
		ws.SetVisible(o.visible && ws == o.visibleWs)
	}
	for _, ti := range o.trayItems {
		ti.SetVisible(o.visible)
	}
}

// VisitChildren visits background layers, the visible workspace, top
// layers, and tray items, bottom to top.
func (o *Output) VisitChildren(visit func(Node) bool) {
	for _, l := range []Layer{LayerBackground, LayerBottom} {
		o.layers[l].visit(visit)
	}
	if o.visibleWs != nil && !visit(o.visibleWs) {
		return
	}
	for _, l := range []Layer{LayerTop, LayerOverlay} {
		o.layers[l].visit(visit)
	}
	for _, ti := range o.trayItems {
		if !visit(ti) {
			return
		}
	}
}

// FindTreeAt hit-tests overlay layers first, then the workspace, then
// the background layers.
func (o *Output) FindTreeAt(x, y int32, stack *[]FoundNode, usecase FindUsecase) bool {
	ax, ay := o.pos.X1+x, o.pos.Y1+y
	for _, l := range []Layer{LayerOverlay, LayerTop} {
		if o.layers[l].findTopAt(ax, ay, stack, usecase) {
			*stack = append(*stack, FoundNode{Node: o, X: x, Y: y})
			return true
		}
	}
	if ws := o.visibleWs; ws != nil && ws.Visible() {
		if ws.FindTreeAt(ax-ws.pos.X1, ay-ws.pos.Y1, stack, usecase) {
			*stack = append(*stack, FoundNode{Node: o, X: x, Y: y})
			return true
		}
	}
	for _, l := range []Layer{LayerBottom, LayerBackground} {
		if o.layers[l].findTopAt(ax, ay, stack, usecase) {
			*stack = append(*stack, FoundNode{Node: o, X: x, Y: y})
			return true
		}
	}
	if usecase == FindInput {
		*stack = append(*stack, FoundNode{Node: o, X: x, Y: y})
		return true
	}
	return false
}

// Render draws the output's scene.
func (o *Output) Render(r Renderer, x, y int32, bounds *region.Rect) {
	r.RenderOutput(o, x, y)
}

// Destroy disconnects the output, destroying its workspaces, layers,
// and tray items.
func (o *Output) Destroy() {
	if o.destroyed {
		return
	}
	for _, ws := range append([]*Workspace(nil), o.workspaces...) {
		ws.Destroy()
	}
	o.workspaces = nil
	o.visibleWs = nil
	for l := range o.layers {
		for _, n := range append([]Node(nil), o.layers[l].nodes...) {
			n.Destroy()
		}
		o.layers[l].nodes = nil
	}
	for _, ti := range append([]*TrayItem(nil), o.trayItems...) {
		ti.Destroy()
	}
	o.trayItems = nil
	if d, ok := o.parent.(*Display); ok {
		delete(d.outputs, o.stableID)
	}
	o.destroyCommon(o)
}
