// Package soft provides the legacy single-threaded rendering backend.
//
// Every operation executes immediately on the runtime goroutine against
// CPU pixel storage. The backend is feature-complete exactly for the
// formats that carry a shared-memory analog mapping in the format table;
// other formats are rejected at import and creation time.
package soft

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/strata-wm/strata/gpu"
	"github.com/strata-wm/strata/region"
)

func init() {
	gpu.RegisterBackend("soft", func() gpu.Backend { return New() })
}

// Backend implements gpu.Backend in software.
type Backend struct {
	textures     map[gpu.Texture]*texture
	framebuffers map[gpu.Framebuffer]*framebuffer
	nextHandle   uintptr

	reset gpu.ResetStatus

	// Current frame state
	target  *framebuffer
	scissor *region.Rect
}

// texture stores pixels in the format's legacy target layout with a
// tight stride.
type texture struct {
	format   *gpu.Format
	width    int32
	height   int32
	stride   int32 // client layout stride uploads are validated against
	data     []byte
	uploaded bool
	planes   []gpu.Plane // referenced fds of a dma-buf import
}

type framebuffer struct {
	tex    gpu.Texture
	width  int32
	height int32
}

// New creates a software backend.
func New() *Backend {
	return &Backend{
		textures:     make(map[gpu.Texture]*texture),
		framebuffers: make(map[gpu.Framebuffer]*framebuffer),
		nextHandle:   1,
	}
}

func (b *Backend) newHandle() uintptr {
	h := b.nextHandle
	b.nextHandle++
	return h
}

// Name returns the backend identifier.
func (b *Backend) Name() string {
	return "soft (single-threaded)"
}

// Init initializes the backend.
func (b *Backend) Init() error {
	return nil
}

// Destroy releases all backend resources.
func (b *Backend) Destroy() {
	for h := range b.textures {
		b.ReleaseTexture(h)
	}
	for h, fb := range b.framebuffers {
		delete(b.framebuffers, h)
		b.ReleaseTexture(fb.tex)
	}
}

// ResetStatus reports device health. Software storage cannot be lost.
func (b *Backend) ResetStatus() gpu.ResetStatus {
	return b.reset
}

// Formats returns the formats with a known analog mapping.
func (b *Backend) Formats() []*gpu.Format {
	var res []*gpu.Format
	for _, f := range gpu.Formats() {
		if f.Shm != nil {
			res = append(res, f)
		}
	}
	return res
}

// Modifiers returns the supported modifiers: software can only walk
// linear layouts.
func (b *Backend) Modifiers(f *gpu.Format) []gpu.ModifierInfo {
	if f.Shm == nil {
		return nil
	}
	return []gpu.ModifierInfo{
		{Modifier: gpu.ModifierLinear},
		{Modifier: gpu.ModifierInvalid},
	}
}

// ImportDmaBuf maps the buffer's single plane and copies it into
// internal storage. The plane fds stay referenced by the texture until
// it is released.
func (b *Backend) ImportDmaBuf(buf *gpu.DmaBuf) (gpu.Texture, error) {
	if err := buf.Validate(); err != nil {
		return 0, err
	}
	f, _, err := gpu.ResolveDmaBuf(b, buf)
	if err != nil {
		return 0, err
	}
	if len(buf.Planes) != 1 {
		return 0, fmt.Errorf("soft backend: %d planes: %w", len(buf.Planes), gpu.ErrUnsupportedFormat)
	}
	plane := buf.Planes[0]
	size := int(plane.Offset) + int(plane.Stride)*int(buf.Height)
	mapped, err := unix.Mmap(plane.Fd.Fd(), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return 0, fmt.Errorf("soft backend: mmap dma-buf: %w", err)
	}
	t := &texture{
		format: f,
		width:  buf.Width,
		height: buf.Height,
		stride: int32(plane.Stride),
		data:   make([]byte, int(buf.Width)*int(buf.Height)*int(f.Shm.Bpp)),
	}
	copyRows(t, mapped[plane.Offset:], int32(plane.Stride), region.Rect{X2: buf.Width, Y2: buf.Height})
	if err := unix.Munmap(mapped); err != nil {
		return 0, fmt.Errorf("soft backend: munmap: %w", err)
	}
	buf.Ref()
	t.planes = buf.Planes
	t.uploaded = true
	handle := gpu.Texture(b.newHandle())
	b.textures[handle] = t
	return handle, nil
}

// CreateShmTexture allocates CPU storage for a client-fed texture.
func (b *Backend) CreateShmTexture(f *gpu.Format, width, height, stride int32, forDownload bool) (gpu.Texture, error) {
	if f.Shm == nil {
		return 0, gpu.ErrUnsupportedFormat
	}
	bpp := int32(f.Shm.Bpp)
	if stride%bpp != 0 || stride/bpp < width {
		return 0, gpu.ErrInvalidStride
	}
	t := &texture{
		format: f,
		width:  width,
		height: height,
		stride: stride,
		data:   make([]byte, int(width)*int(height)*int(bpp)),
	}
	handle := gpu.Texture(b.newHandle())
	b.textures[handle] = t
	return handle, nil
}

// UploadShm stages the damaged rows and copies them into the texture.
// The staging copy completes inline, so the returned upload carries an
// already-signalled sync file.
func (b *Backend) UploadShm(tex gpu.Texture, data []byte, damage []region.Rect) (*gpu.Upload, error) {
	t := b.textures[tex]
	if t == nil {
		return nil, gpu.ErrInvalidHandle
	}
	full := region.Rect{X2: t.width, Y2: t.height}
	var rects []region.Rect
	if damage == nil || !t.uploaded {
		rects = []region.Rect{full}
	} else {
		for _, d := range damage {
			d = d.Intersect(full)
			if !d.IsEmpty() {
				rects = append(rects, d)
			}
		}
		if len(rects) == 0 {
			return &gpu.Upload{}, nil
		}
	}

	// Stage the damaged rows packed, then copy into the image. The
	// staging buffer exists so cancelled clients cannot observe a
	// partially consumed source buffer.
	total := 0
	for _, r := range rects {
		total += int(r.Width()) * int(r.Height()) * int(t.format.Shm.Bpp)
	}
	staging := make([]byte, 0, total)
	bpp := int32(t.format.Shm.Bpp)
	for _, r := range rects {
		rowBytes := r.Width() * bpp
		for y := r.Y1; y < r.Y2; y++ {
			off := y*t.stride + r.X1*bpp
			staging = append(staging, data[off:off+rowBytes]...)
		}
	}

	off := int32(0)
	for _, r := range rects {
		rowBytes := r.Width() * bpp
		src := staging[off : off+rowBytes*r.Height()]
		copyRows(t, src, rowBytes, r)
		off += rowBytes * r.Height()
	}
	t.uploaded = true

	sync, err := gpu.NewSignaledSyncFile()
	if err != nil {
		// No fence to export; the copy already completed inline, so
		// just hand back the staging release.
		return &gpu.Upload{Release: func() {}}, nil
	}
	return &gpu.Upload{Sync: sync, Release: func() {}}, nil
}

// copyRows copies client-layout rows (srcStride apart) into the
// texture's tight internal storage, converting the channel order per the
// format's legacy triple.
func copyRows(t *texture, src []byte, srcStride int32, r region.Rect) {
	bpp := int32(t.format.Shm.Bpp)
	dstStride := t.width * bpp
	rowBytes := r.Width() * bpp
	swap := t.format.Shm.LegacySource == gpu.LegacySourceBGRA
	for row := int32(0); row < r.Height(); row++ {
		so := row * srcStride
		do := (r.Y1+row)*dstStride + r.X1*bpp
		dst := t.data[do : do+rowBytes]
		copy(dst, src[so:so+rowBytes])
		if swap {
			swapRB(dst)
		}
	}
}

// DownloadShm copies the texture into client memory, converting to the
// requested channel order.
func (b *Backend) DownloadShm(tex gpu.Texture, f *gpu.Format, dst []byte, stride int32) error {
	t := b.textures[tex]
	if t == nil {
		return gpu.ErrInvalidHandle
	}
	if f == nil {
		f = t.format
	}
	if f.Shm == nil {
		return gpu.ErrUnsupportedFormat
	}
	bpp := int32(t.format.Shm.Bpp)
	if stride < t.width*bpp {
		return gpu.ErrInvalidStride
	}
	srcStride := t.width * bpp
	rowBytes := t.width * bpp
	// Internal storage is the legacy target layout (RGBA order); only
	// BGRA-ordered client formats need a swap on the way out.
	swap := f.Shm.LegacySource == gpu.LegacySourceBGRA && bpp == 4
	for y := int32(0); y < t.height; y++ {
		row := dst[y*stride : y*stride+rowBytes]
		copy(row, t.data[y*srcStride:y*srcStride+rowBytes])
		if swap {
			swapRB(row)
		}
	}
	return nil
}

// CreateFramebuffer allocates a renderable target.
func (b *Backend) CreateFramebuffer(f *gpu.Format, width, height int32) (gpu.Framebuffer, error) {
	if f.Shm == nil {
		return 0, gpu.ErrUnsupportedFormat
	}
	tex, err := b.CreateShmTexture(f, width, height, width*int32(f.Shm.Bpp), true)
	if err != nil {
		return 0, err
	}
	b.textures[tex].uploaded = true
	fb := &framebuffer{tex: tex, width: width, height: height}
	handle := gpu.Framebuffer(b.newHandle())
	b.framebuffers[handle] = fb
	return handle, nil
}

// FramebufferTexture returns the texture backing fb.
func (b *Backend) FramebufferTexture(fb gpu.Framebuffer) gpu.Texture {
	f := b.framebuffers[fb]
	if f == nil {
		return 0
	}
	return f.tex
}

// BeginFrame starts drawing into fb.
func (b *Backend) BeginFrame(fb gpu.Framebuffer) error {
	f := b.framebuffers[fb]
	if f == nil {
		return gpu.ErrInvalidHandle
	}
	b.target = f
	b.scissor = nil
	return nil
}

// SetScissor clips subsequent draws to r; nil removes the clip.
func (b *Backend) SetScissor(r *region.Rect) {
	b.scissor = r
}

func (b *Backend) clip(r region.Rect) region.Rect {
	if b.target == nil {
		return region.Rect{}
	}
	r = r.Intersect(region.Rect{X2: b.target.width, Y2: b.target.height})
	if b.scissor != nil {
		r = r.Intersect(*b.scissor)
	}
	return r
}

// Clear fills the current scissor with a color.
func (b *Backend) Clear(c gpu.Color) {
	if b.target == nil {
		return
	}
	b.fill(b.clip(region.Rect{X2: b.target.width, Y2: b.target.height}), c, false)
}

// FillRect draws a solid rectangle, blending translucent colors.
func (b *Backend) FillRect(r region.Rect, c gpu.Color) {
	b.fill(b.clip(r), c, c.A < 1)
}

func (b *Backend) fill(r region.Rect, c gpu.Color, blend bool) {
	if r.IsEmpty() || b.target == nil {
		return
	}
	t := b.textures[b.target.tex]
	bpp := int32(t.format.Shm.Bpp)
	px := colorBytes(c, t.format)
	stride := t.width * bpp
	for y := r.Y1; y < r.Y2; y++ {
		row := t.data[y*stride : (y+1)*stride]
		if !blend && bpp == 4 {
			fillRow32(row, r.X1, r.X2, px)
			continue
		}
		for x := r.X1; x < r.X2; x++ {
			dst := row[x*bpp : x*bpp+bpp]
			if blend && bpp == 4 {
				blendPixel(dst, px)
			} else {
				copy(dst, px)
			}
		}
	}
}

// DrawTexture samples src from tex into dst with nearest filtering,
// blending when the texture format has alpha.
func (b *Backend) DrawTexture(tex gpu.Texture, src, dst region.Rect) {
	if b.target == nil {
		return
	}
	t := b.textures[tex]
	if t == nil || src.IsEmpty() || dst.IsEmpty() {
		return
	}
	out := b.textures[b.target.tex]
	clipped := b.clip(dst)
	if clipped.IsEmpty() {
		return
	}
	bpp := int32(t.format.Shm.Bpp)
	if bpp != int32(out.format.Shm.Bpp) {
		return
	}
	blend := t.format.HasAlpha && bpp == 4
	srcStride := t.width * bpp
	dstStride := out.width * bpp
	for y := clipped.Y1; y < clipped.Y2; y++ {
		sy := src.Y1 + (y-dst.Y1)*src.Height()/dst.Height()
		if sy < 0 || sy >= t.height {
			continue
		}
		for x := clipped.X1; x < clipped.X2; x++ {
			sx := src.X1 + (x-dst.X1)*src.Width()/dst.Width()
			if sx < 0 || sx >= t.width {
				continue
			}
			sp := t.data[sy*srcStride+sx*bpp:][:bpp]
			dp := out.data[y*dstStride+x*bpp:][:bpp]
			if blend {
				blendPixel(dp, sp)
			} else {
				copy(dp, sp)
			}
		}
	}
}

// EndFrame finishes the frame. Software work completed inline, so the
// sync file is already signalled.
func (b *Backend) EndFrame() (*gpu.SyncFile, error) {
	if b.target == nil {
		return nil, gpu.ErrInvalidHandle
	}
	b.target = nil
	b.scissor = nil
	return gpu.NewSignaledSyncFile()
}

// ReleaseTexture frees a texture and unreferences any imported fds.
func (b *Backend) ReleaseTexture(tex gpu.Texture) {
	t := b.textures[tex]
	if t == nil {
		return
	}
	delete(b.textures, tex)
	for _, p := range t.planes {
		p.Fd.Unref()
	}
	t.data = nil
}

// ReleaseFramebuffer frees a framebuffer and its backing texture.
func (b *Backend) ReleaseFramebuffer(fb gpu.Framebuffer) {
	f := b.framebuffers[fb]
	if f == nil {
		return
	}
	delete(b.framebuffers, fb)
	b.ReleaseTexture(f.tex)
}

// Ensure Backend implements gpu.Backend.
var _ gpu.Backend = (*Backend)(nil)
