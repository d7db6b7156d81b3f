package soft

import (
	"unsafe"

	"github.com/daaku/swizzle"
	"honnef.co/go/safeish"

	"github.com/strata-wm/strata/gpu"
)

// swapRB exchanges the R and B channels of 4-byte pixels in place.
func swapRB(p []byte) {
	swizzle.BGRA(p)
}

// colorBytes packs a color into the storage layout of a format.
// Internal storage is the legacy target layout: R, G, B, A byte order
// for 4-byte formats, a single channel for r8.
func colorBytes(c gpu.Color, f *gpu.Format) []byte {
	clamp := func(v float32) byte {
		if v <= 0 {
			return 0
		}
		if v >= 1 {
			return 255
		}
		return byte(v*255 + 0.5)
	}
	if f.Shm.Bpp == 1 {
		return []byte{clamp(c.R)}
	}
	a := byte(255)
	if f.HasAlpha {
		a = clamp(c.A)
	}
	return []byte{clamp(c.R), clamp(c.G), clamp(c.B), a}
}

// blendPixel composites a premultiplied source pixel over dst in place.
func blendPixel(dst, src []byte) {
	a := uint32(src[3])
	if a == 255 {
		copy(dst, src)
		return
	}
	if a == 0 {
		return
	}
	inv := 255 - a
	for i := 0; i < 4; i++ {
		dst[i] = byte(uint32(src[i]) + uint32(dst[i])*inv/255)
	}
}

// fillRow32 stores a packed pixel across a row span through a word view
// of the storage.
func fillRow32(row []byte, from, to int32, px []byte) {
	v := *safeish.Cast[*uint32](&px[0])
	words := unsafe.Slice(safeish.Cast[*uint32](&row[0]), len(row)/4)
	for x := from; x < to; x++ {
		words[x] = v
	}
}
