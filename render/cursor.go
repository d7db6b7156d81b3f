package render

import (
	"image"

	"github.com/KononK/resize"

	"github.com/strata-wm/strata/gpu"
	"github.com/strata-wm/strata/region"
	"github.com/strata-wm/strata/tree"
)

// cursorState holds the active cursor image, pre-scaled per output
// scale and uploaded as a texture.
type cursorState struct {
	img     image.Image
	hotX    int32
	hotY    int32
	x, y    int32
	visible bool

	// scaled texture cache, keyed by the 120ths scale it was built
	// for.
	scaleKey uint32
	handle   *gpu.ShmTextureHandle
}

// SetCursor installs a new cursor image with its hotspot.
func (r *Renderer) SetCursor(img image.Image, hotX, hotY int32) {
	c := &r.cursor
	c.img = img
	c.hotX = hotX
	c.hotY = hotY
	c.visible = img != nil
	if c.handle != nil {
		c.handle.Release()
		c.handle = nil
	}
	c.scaleKey = 0
}

// MoveCursor places the cursor at display-global coordinates.
func (r *Renderer) MoveCursor(x, y int32) {
	r.cursor.x = x
	r.cursor.y = y
}

// HideCursor hides the cursor plane.
func (r *Renderer) HideCursor() {
	r.cursor.visible = false
}

// renderCursor draws the cursor on top of the output's scene, scaled
// to the output's scale.
func (r *Renderer) renderCursor(o *tree.Output) {
	c := &r.cursor
	if !c.visible || c.img == nil {
		return
	}
	if !o.AbsolutePosition().Contains(c.x, c.y) {
		return
	}
	scale := o.Scale()
	if c.handle == nil || c.scaleKey != scale.Base120 {
		if c.handle != nil {
			c.handle.Release()
			c.handle = nil
		}
		h := r.uploadCursor(c.img, scale)
		if h == nil {
			return
		}
		c.handle = h
		c.scaleKey = scale.Base120
	}
	hx := int32(float64(c.hotX) * scale.Float())
	hy := int32(float64(c.hotY) * scale.Float())
	dst := region.Rect{
		X1: c.x - hx,
		Y1: c.y - hy,
		X2: c.x - hx + c.handle.Width,
		Y2: c.y - hy + c.handle.Height,
	}
	src := region.Rect{X2: c.handle.Width, Y2: c.handle.Height}
	r.be.DrawTexture(c.handle.Tex, src, r.toFb(dst))
}

// uploadCursor scales the cursor image for the output and uploads it.
func (r *Renderer) uploadCursor(img image.Image, scale tree.Scale) *gpu.ShmTextureHandle {
	b := img.Bounds()
	w := uint(float64(b.Dx()) * scale.Float())
	h := uint(float64(b.Dy()) * scale.Float())
	if w == 0 || h == 0 {
		return nil
	}
	scaled := resize.Resize(w, h, img, resize.Bilinear)
	rgba, ok := scaled.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(scaled.Bounds())
		for y := scaled.Bounds().Min.Y; y < scaled.Bounds().Max.Y; y++ {
			for x := scaled.Bounds().Min.X; x < scaled.Bounds().Max.X; x++ {
				rgba.Set(x, y, scaled.At(x, y))
			}
		}
	}
	f := gpu.FormatByName("abgr8888")
	handle, err := gpu.ShmTexture(r.be, r.loop, nil, rgba.Pix, f,
		int32(rgba.Rect.Dx()), int32(rgba.Rect.Dy()), int32(rgba.Stride), nil)
	if err != nil {
		return nil
	}
	return handle
}
