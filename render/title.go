package render

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/strata-wm/strata/gpu"
	"github.com/strata-wm/strata/internal/loop"
	"github.com/strata-wm/strata/region"
)

// titlePadding is the horizontal inset of title text in a bar.
const titlePadding = 4

// titleCache renders title strings into shm textures and reuses them
// across frames until the text or bar width changes.
type titleCache struct {
	be   gpu.Backend
	loop *loop.Loop

	entries map[titleKey]*titleEntry
}

type titleKey struct {
	text  string
	width int32
}

type titleEntry struct {
	handle *gpu.ShmTextureHandle
	used   bool
}

func (tc *titleCache) init(be gpu.Backend, l *loop.Loop) {
	tc.be = be
	tc.loop = l
	tc.entries = make(map[titleKey]*titleEntry)
}

// draw paints the title text into the bar rectangle.
func (tc *titleCache) draw(r *Renderer, text string, bar region.Rect) {
	if text == "" || bar.IsEmpty() {
		return
	}
	key := titleKey{text: text, width: bar.Width()}
	e := tc.entries[key]
	if e == nil {
		h := tc.render(text, bar.Width(), bar.Height())
		if h == nil {
			return
		}
		e = &titleEntry{handle: h}
		tc.entries[key] = e
	}
	e.used = true
	src := region.Rect{X2: e.handle.Width, Y2: e.handle.Height}
	dst := region.Rect{
		X1: bar.X1,
		Y1: bar.Y1,
		X2: bar.X1 + e.handle.Width,
		Y2: bar.Y1 + e.handle.Height,
	}.Intersect(bar)
	tc.be.DrawTexture(e.handle.Tex, src, r.toFb(dst))
}

// render rasterises the text with the built-in bitmap face and uploads
// it as an rgba-ordered shm texture.
func (tc *titleCache) render(text string, width, height int32) *gpu.ShmTextureHandle {
	if width <= 0 || height <= 0 {
		return nil
	}
	face := basicfont.Face7x13
	img := image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{R: 230, G: 230, B: 230, A: 255}),
		Face: face,
		Dot: fixed.P(
			titlePadding,
			(int(height)+face.Metrics().Ascent.Ceil())/2,
		),
	}
	d.DrawString(text)

	f := gpu.FormatByName("abgr8888")
	h, err := gpu.ShmTexture(tc.be, tc.loop, nil, img.Pix, f, width, height, int32(img.Stride), nil)
	if err != nil {
		return nil
	}
	return h
}

// sweep drops cache entries that were not used since the last sweep.
func (tc *titleCache) sweep() {
	for key, e := range tc.entries {
		if !e.used {
			e.handle.Release()
			delete(tc.entries, key)
			continue
		}
		e.used = false
	}
}
