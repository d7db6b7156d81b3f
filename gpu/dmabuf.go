package gpu

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Modifier is a 64-bit tiling/compression descriptor qualifying a pixel
// format.
type Modifier uint64

const (
	// ModifierLinear is plain row-major layout.
	ModifierLinear Modifier = 0

	// ModifierInvalid marks buffers allocated without an explicit
	// modifier.
	ModifierInvalid Modifier = 0x00ffffffffffffff
)

// Hi returns the upper 32 bits of the modifier for APIs that split it.
func (m Modifier) Hi() uint32 {
	return uint32(m >> 32)
}

// Lo returns the lower 32 bits of the modifier.
func (m Modifier) Lo() uint32 {
	return uint32(m)
}

// ModifierInfo qualifies a supported modifier. ExternalOnly modifiers
// require the backend's external sampler variant.
type ModifierInfo struct {
	Modifier     Modifier
	ExternalOnly bool
}

// BufferFd is a reference-counted dma-buf file descriptor. The core
// holds references for as long as any imported texture uses the fd.
type BufferFd struct {
	fd   int
	refs int
}

// NewBufferFd takes ownership of fd with one reference.
func NewBufferFd(fd int) *BufferFd {
	return &BufferFd{fd: fd, refs: 1}
}

// Fd returns the underlying descriptor. The caller must hold a
// reference.
func (b *BufferFd) Fd() int {
	return b.fd
}

// Ref adds a reference.
func (b *BufferFd) Ref() *BufferFd {
	b.refs++
	return b
}

// Unref drops a reference, closing the descriptor when none remain.
func (b *BufferFd) Unref() {
	b.refs--
	if b.refs == 0 {
		unix.Close(b.fd)
		b.fd = -1
	}
}

// Plane describes one plane of a dma-buf.
type Plane struct {
	Fd     *BufferFd
	Offset uint32
	Stride uint32
}

// DmaBuf describes a kernel-shared buffer by format, modifier, and
// per-plane layout.
type DmaBuf struct {
	Width, Height int32
	Fourcc        uint32
	Modifier      Modifier
	Planes        []Plane
}

// Validate performs format-independent sanity checks.
func (b *DmaBuf) Validate() error {
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("gpu: dma-buf has degenerate size %dx%d", b.Width, b.Height)
	}
	if len(b.Planes) == 0 || len(b.Planes) > 4 {
		return fmt.Errorf("gpu: dma-buf has %d planes", len(b.Planes))
	}
	for i, p := range b.Planes {
		if p.Fd == nil || p.Fd.fd < 0 {
			return fmt.Errorf("gpu: dma-buf plane %d has no fd", i)
		}
	}
	return nil
}

// Ref references every plane fd, for handing the buffer to an import.
func (b *DmaBuf) Ref() {
	for _, p := range b.Planes {
		p.Fd.Ref()
	}
}

// Unref drops the references taken by Ref.
func (b *DmaBuf) Unref() {
	for _, p := range b.Planes {
		p.Fd.Unref()
	}
}
