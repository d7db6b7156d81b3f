package gpu

import (
	"github.com/daaku/swizzle"

	"github.com/strata-wm/strata/internal/loop"
	"github.com/strata-wm/strata/region"
)

// ShmTextureHandle pairs a backend texture with the client layout it was
// created for, so uploads can reuse it across commits.
type ShmTextureHandle struct {
	be     Backend
	Tex    Texture
	Format *Format
	Width  int32
	Height int32
	Stride int32
}

// Release frees the texture.
func (h *ShmTextureHandle) Release() {
	if h.Tex != 0 {
		h.be.ReleaseTexture(h.Tex)
		h.Tex = 0
	}
}

// ShmTexture uploads client memory into a texture, reusing old when its
// format and layout still match and recreating it otherwise. The upload
// is asynchronous: the staging resources are released once the backend's
// fence signals, observed on the loop.
func ShmTexture(be Backend, l *loop.Loop, old *ShmTextureHandle, data []byte, f *Format, width, height, stride int32, damage []region.Rect) (*ShmTextureHandle, error) {
	if err := ValidateShm(f, width, height, stride, len(data)); err != nil {
		return nil, err
	}
	h := old
	if h != nil && (h.Format != f || h.Width != width || h.Height != height || h.Stride != stride) {
		h.Release()
		h = nil
	}
	if h == nil {
		tex, err := be.CreateShmTexture(f, width, height, stride, false)
		if err != nil {
			return nil, err
		}
		h = &ShmTextureHandle{be: be, Tex: tex, Format: f, Width: width, Height: height, Stride: stride}
		// A fresh texture has no valid content to patch; upload fully.
		damage = nil
	}
	u, err := be.UploadShm(h.Tex, data, damage)
	if err != nil {
		if old == nil {
			h.Release()
		}
		return nil, err
	}
	WatchUpload(l, u)
	return h, nil
}

// ConvertRows rewrites pixel rows from the texture's channel order into
// the client-requested one. Only the BGRA and RGBA families differ by a
// red/blue swap; identical orders are left untouched.
func ConvertRows(dst []byte, stride, width, height int32, from, to *Format) {
	if from == nil || to == nil || from.Shm == nil || to.Shm == nil {
		return
	}
	if sameChannelOrder(from, to) {
		return
	}
	rowBytes := width * int32(to.Shm.Bpp)
	for y := int32(0); y < height; y++ {
		row := dst[y*stride : y*stride+rowBytes]
		swizzle.BGRA(row)
	}
}

func sameChannelOrder(a, b *Format) bool {
	return a.Shm.LegacySource == b.Shm.LegacySource
}
