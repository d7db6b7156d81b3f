// Package render drives per-frame drawing: it traverses the window
// tree into the GPU backend, accumulates damage, renders the cursor
// plane, and emits screencopy frames through the CPU worker.
package render

import (
	"fmt"

	"github.com/strata-wm/strata/cpuworker"
	"github.com/strata-wm/strata/gpu"
	"github.com/strata-wm/strata/internal/loop"
	"github.com/strata-wm/strata/region"
	"github.com/strata-wm/strata/tree"
)

// Colors of the built-in decorations.
var (
	colorBackground  = gpu.Color{R: 0.1, G: 0.1, B: 0.1, A: 1}
	colorTitleBar    = gpu.Color{R: 0.2, G: 0.2, B: 0.25, A: 1}
	colorTitleActive = gpu.Color{R: 0.25, G: 0.35, B: 0.5, A: 1}
	colorPlaceholder = gpu.Color{R: 0.15, G: 0.15, B: 0.15, A: 1}
)

// Renderer implements tree.Renderer against a gpu.Backend.
type Renderer struct {
	be     gpu.Backend
	loop   *loop.Loop
	worker *cpuworker.Pool

	// Per-output persistent state.
	outputs map[tree.NodeID]*outputState

	titles titleCache
	cursor cursorState

	// Current frame state.
	origin    region.Rect
	frameClip *region.Rect
	frameCbs  []func(msec uint32)
}

type outputState struct {
	fb     gpu.Framebuffer
	format *gpu.Format
	width  int32
	height int32
	damage *region.Region

	// Screencopy bridge framebuffer, reused while its layout matches.
	bridge       gpu.Framebuffer
	bridgeFormat *gpu.Format
	bridgeW      int32
	bridgeH      int32
	bridgeStride int32
}

// New creates a renderer on top of a backend.
func New(be gpu.Backend, l *loop.Loop, w *cpuworker.Pool) *Renderer {
	r := &Renderer{
		be:      be,
		loop:    l,
		worker:  w,
		outputs: make(map[tree.NodeID]*outputState),
	}
	r.titles.init(be, l)
	return r
}

// Backend returns the rendering backend.
func (r *Renderer) Backend() gpu.Backend {
	return r.be
}

func (r *Renderer) outputState(o *tree.Output) (*outputState, error) {
	st := r.outputs[o.ID()]
	w := o.AbsolutePosition().Width()
	h := o.AbsolutePosition().Height()
	f := gpu.ArgB8888()
	if st != nil && st.width == w && st.height == h && st.format == f {
		return st, nil
	}
	if st != nil {
		if st.fb != 0 {
			r.be.ReleaseFramebuffer(st.fb)
		}
	} else {
		st = &outputState{damage: region.Empty()}
		r.outputs[o.ID()] = st
	}
	fb, err := r.be.CreateFramebuffer(f, w, h)
	if err != nil {
		return nil, fmt.Errorf("render: output framebuffer: %w", err)
	}
	st.fb = fb
	st.format = f
	st.width = w
	st.height = h
	st.damage = region.FromRect(region.Rect{X2: w, Y2: h})
	return st, nil
}

// Damage adds a display-global damaged region to every intersecting
// output.
func (r *Renderer) Damage(tr *tree.Tree, d *region.Region) {
	for _, o := range tr.Display.Outputs() {
		st := r.outputs[o.ID()]
		if st == nil {
			continue
		}
		pos := o.AbsolutePosition()
		local := d.Intersect(region.FromRect(pos)).Move(-pos.X1, -pos.Y1)
		st.damage = st.damage.Union(local)
	}
}

// RenderFrame draws one frame of an output and submits it. Frame
// callbacks of the surfaces drawn are delivered with the msec
// timestamp after submission.
func (r *Renderer) RenderFrame(o *tree.Output, msec uint32) (*gpu.SyncFile, error) {
	if status := r.be.ResetStatus(); status != gpu.ResetNone {
		return nil, gpu.ErrReset
	}
	st, err := r.outputState(o)
	if err != nil {
		return nil, err
	}
	if err := r.be.BeginFrame(st.fb); err != nil {
		return nil, err
	}
	r.origin = o.AbsolutePosition()
	r.frameCbs = r.frameCbs[:0]

	// Scissor to the damaged area; the rest of the target is intact.
	r.frameClip = nil
	if !st.damage.IsEmpty() {
		ext := st.damage.Extents()
		r.frameClip = &ext
		r.be.SetScissor(r.frameClip)
	}
	r.be.Clear(colorBackground)
	r.RenderOutput(o, 0, 0)
	r.renderCursor(o)
	r.be.SetScissor(nil)
	r.frameClip = nil
	st.damage = region.Empty()

	sync, err := r.be.EndFrame()
	if err != nil {
		return nil, err
	}
	cbs := r.frameCbs
	r.frameCbs = nil
	for _, cb := range cbs {
		cb(msec)
	}
	return sync, nil
}

// OutputTexture returns the texture holding the output's last frame.
func (r *Renderer) OutputTexture(o *tree.Output) gpu.Texture {
	st := r.outputs[o.ID()]
	if st == nil {
		return 0
	}
	return r.be.FramebufferTexture(st.fb)
}

// toFb converts a display-global rect into current-framebuffer
// coordinates.
func (r *Renderer) toFb(rc region.Rect) region.Rect {
	return rc.Move(-r.origin.X1, -r.origin.Y1)
}

// FillRect draws a solid rectangle given in display coordinates.
func (r *Renderer) FillRect(rc region.Rect, c gpu.Color) {
	r.be.FillRect(r.toFb(rc), c)
}

// RenderOutput draws the output's scene bottom to top.
func (r *Renderer) RenderOutput(o *tree.Output, x, y int32) {
	o.VisitChildren(func(n tree.Node) bool {
		if n.Visible() {
			pos := n.AbsolutePosition()
			n.Render(r, pos.X1, pos.Y1, nil)
		}
		return true
	})
}

// RenderWorkspace draws the tiled layer, floats, and fullscreen.
func (r *Renderer) RenderWorkspace(ws *tree.Workspace, x, y int32) {
	ws.VisitChildren(func(n tree.Node) bool {
		if n.Visible() {
			pos := n.AbsolutePosition()
			n.Render(r, pos.X1, pos.Y1, nil)
		}
		return true
	})
}

// RenderContainer draws per-child title bars and the children, each
// clipped to its body.
func (r *Renderer) RenderContainer(c *tree.Container, x, y int32) {
	for i := 0; i < c.NumChildren(); i++ {
		child := c.Child(i)
		body := c.ChildBody(i)
		content := c.ChildContent(i)

		bar := body
		bar.Y2 = content.Y1
		if c.Axis() == tree.AxisMono {
			bar = body
		}
		if !bar.IsEmpty() {
			color := colorTitleBar
			if tl, ok := child.(*tree.Toplevel); ok && tl.Active() {
				color = colorTitleActive
			}
			r.be.FillRect(r.toFb(bar), color)
			r.titles.draw(r, c.ChildTitle(i), bar)
		}

		if !child.Visible() {
			continue
		}
		clip := r.toFb(content)
		if r.frameClip != nil {
			clip = clip.Intersect(*r.frameClip)
		}
		r.be.SetScissor(&clip)
		child.Render(r, content.X1, content.Y1, &content)
		r.be.SetScissor(r.frameClip)
	}
}

// RenderToplevel draws the toplevel's surface tree.
func (r *Renderer) RenderToplevel(tl *tree.Toplevel, x, y int32, bounds *region.Rect) {
	if s := tl.Surface(); s != nil && s.Visible() {
		s.Render(r, x, y, bounds)
	}
}

// RenderFloat draws the float's child.
func (r *Renderer) RenderFloat(f *tree.Float, x, y int32) {
	if c := f.Child(); c != nil && c.Visible() {
		pos := c.AbsolutePosition()
		c.Render(r, pos.X1, pos.Y1, nil)
	}
}

// RenderPlaceholder draws the suspended window's tombstone.
func (r *Renderer) RenderPlaceholder(p *tree.Placeholder, x, y int32) {
	r.be.FillRect(r.toFb(p.AbsolutePosition()), colorPlaceholder)
}

// RenderLayerSurface draws the layer surface and its popups.
func (r *Renderer) RenderLayerSurface(ls *tree.LayerSurface, x, y int32) {
	ls.VisitChildren(func(n tree.Node) bool {
		if s, ok := n.(*tree.Surface); ok && s.Visible() {
			pos := s.AbsolutePosition()
			s.Render(r, pos.X1, pos.Y1, nil)
		}
		return true
	})
}

// RenderSurface draws a surface and its subsurface stack, collecting
// its frame callbacks for delivery after submission.
func (r *Renderer) RenderSurface(s *tree.Surface, x, y int32, bounds *region.Rect) {
	drawSub := func(sub *tree.Surface) bool {
		if sub.Visible() {
			pos := sub.AbsolutePosition()
			sub.Render(r, pos.X1, pos.Y1, bounds)
		}
		return true
	}
	s.VisitBelow(drawSub)

	if b := s.Buffer(); b != nil {
		dst := region.Rect{X1: x, Y1: y, X2: x + b.Width, Y2: y + b.Height}
		if bounds != nil {
			dst = dst.Intersect(*bounds)
		}
		if !dst.IsEmpty() {
			src := region.Rect{X2: b.Width, Y2: b.Height}
			tex := b.Texture
			if b.Shm != nil {
				tex = b.Shm.Tex
			}
			if tex != 0 {
				r.be.DrawTexture(tex, src, r.toFb(dst))
			}
		}
	}
	s.VisitAbove(drawSub)

	for _, cb := range s.TakeFrameCallbacks() {
		r.frameCbs = append(r.frameCbs, cb)
	}
}

// Ensure Renderer implements the tree's renderer interface.
var _ tree.Renderer = (*Renderer)(nil)

// OpaqueUnder composes the opaque regions of the surfaces into a tagged
// band list: each pixel carries the index of the first listed surface
// whose opaque region covers it (lower indices win), so for a list
// ordered topmost first that is the topmost opaque surface. Used for
// occlusion culling.
func OpaqueUnder(surfaces []*tree.Surface) []region.TaggedRect {
	var rects []region.TaggedRect
	for i, s := range surfaces {
		pos := s.AbsolutePosition()
		for _, rc := range s.Opaque().Rects() {
			rects = append(rects, region.TaggedRect{
				Rect: rc.Move(pos.X1, pos.Y1),
				Tag:  region.Tag(i),
			})
		}
	}
	return region.FromRectsTagged(rects)
}
