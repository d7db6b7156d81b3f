package gpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/strata-wm/strata/region"
)

// ErrNoBackendRegistered is returned when no backend is available.
var ErrNoBackendRegistered = errors.New("gpu: no backend registered")

// Upload is the in-flight state of an asynchronous shm upload. Sync is
// signalled by the backend once the device finished consuming the
// staging buffer; Release then frees the staging buffer and command
// buffer. When fence export failed the backend completed the copy
// synchronously and Sync is nil; Release must still be called.
type Upload struct {
	Sync    *SyncFile
	Release func()
}

// Backend is the interface both rendering backends satisfy.
//
// All methods must be called from the runtime goroutine. Draw commands
// between BeginFrame and EndFrame are recorded against the frame's
// target framebuffer; EndFrame submits them and exports a sync file
// signalling completion.
type Backend interface {
	// Name returns the backend identifier.
	Name() string

	// Init initializes the backend.
	Init() error

	// Destroy releases all backend resources.
	Destroy()

	// ResetStatus reports device health. After ResetLost every
	// operation fails with ErrReset until the context is recreated.
	ResetStatus() ResetStatus

	// Formats returns the formats the backend can sample and render.
	Formats() []*Format

	// Modifiers returns the modifiers supported for a format.
	Modifiers(f *Format) []ModifierInfo

	// ImportDmaBuf imports a kernel-shared buffer as a sampleable
	// texture. The texture holds references on the plane fds until it
	// is released.
	ImportDmaBuf(buf *DmaBuf) (Texture, error)

	// CreateShmTexture allocates a texture fed from client memory.
	// forDownload selects a renderable layout instead of a sampled one.
	CreateShmTexture(f *Format, width, height, stride int32, forDownload bool) (Texture, error)

	// UploadShm stages data into the texture. A nil damage uploads the
	// full image; otherwise each damage rectangle is clipped to the
	// image and copied separately, honoring the source stride.
	UploadShm(tex Texture, data []byte, damage []region.Rect) (*Upload, error)

	// DownloadShm copies the texture's content into dst with the given
	// stride, converting to the requested format when it differs from
	// the texture's own.
	DownloadShm(tex Texture, f *Format, dst []byte, stride int32) error

	// CreateFramebuffer allocates a renderable target.
	CreateFramebuffer(f *Format, width, height int32) (Framebuffer, error)

	// FramebufferTexture returns the sampleable texture backing fb.
	FramebufferTexture(fb Framebuffer) Texture

	// BeginFrame starts recording draw commands targeting fb.
	BeginFrame(fb Framebuffer) error

	// Clear fills the current scissor with a color.
	Clear(c Color)

	// SetScissor clips subsequent draws to r; nil removes the clip.
	SetScissor(r *region.Rect)

	// FillRect draws a solid rectangle.
	FillRect(r region.Rect, c Color)

	// DrawTexture draws the src part of tex into dst, blending when the
	// texture format has alpha.
	DrawTexture(tex Texture, src, dst region.Rect)

	// EndFrame submits the recorded commands and exports a sync file
	// that signals when the frame is on the target.
	EndFrame() (*SyncFile, error)

	// ReleaseTexture frees a texture and any fds it references.
	ReleaseTexture(t Texture)

	// ReleaseFramebuffer frees a framebuffer and its backing texture.
	ReleaseFramebuffer(f Framebuffer)
}

// ResolveDmaBuf validates a dma-buf description against a backend's
// format and modifier tables.
func ResolveDmaBuf(be Backend, buf *DmaBuf) (*Format, *ModifierInfo, error) {
	f := FormatByDrm(buf.Fourcc)
	if f == nil {
		return nil, nil, ErrUnsupportedFormat
	}
	supported := false
	for _, bf := range be.Formats() {
		if bf == f {
			supported = true
			break
		}
	}
	if !supported {
		return nil, nil, ErrUnsupportedFormat
	}
	for _, mi := range be.Modifiers(f) {
		if mi.Modifier == buf.Modifier {
			mi := mi
			return f, &mi, nil
		}
	}
	return nil, nil, ErrUnsupportedModifier
}

// BackendFactory creates a new backend instance.
type BackendFactory func() Backend

// The backend packages register themselves at package init; the
// compositor then opens one by name, or walks the fall-back chain when
// the configuration leaves the choice open. A GPU reset takes the same
// path: the outer loop destroys the lost context and reopens.
var (
	backendsMu sync.Mutex
	factories  map[string]BackendFactory
)

// fallback orders the built-in backends from most to least capable.
// The command-buffer backend is preferred; the single-threaded soft
// backend always works.
var fallback = []string{"wgpu", "soft"}

// RegisterBackend makes a backend openable under the given name.
func RegisterBackend(name string, factory BackendFactory) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if factories == nil {
		factories = make(map[string]BackendFactory)
	}
	factories[name] = factory
}

// OpenBackend creates and initializes a rendering backend. A non-empty
// name selects that backend and fails if it is unknown or does not
// come up. An empty name tries the fall-back chain, then any remaining
// registered backend, and returns the first one whose Init succeeds.
func OpenBackend(name string) (Backend, error) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if name != "" {
		factory := factories[name]
		if factory == nil {
			return nil, fmt.Errorf("gpu: backend %q: %w", name, ErrNoBackendRegistered)
		}
		be := factory()
		if err := be.Init(); err != nil {
			be.Destroy()
			return nil, fmt.Errorf("gpu: backend %q: %w", name, err)
		}
		return be, nil
	}
	tried := make(map[string]bool, len(factories))
	var firstErr error
	try := func(n string) Backend {
		factory := factories[n]
		if factory == nil || tried[n] {
			return nil
		}
		tried[n] = true
		be := factory()
		if err := be.Init(); err != nil {
			be.Destroy()
			if firstErr == nil {
				firstErr = fmt.Errorf("gpu: backend %q: %w", n, err)
			}
			return nil
		}
		return be
	}
	for _, n := range fallback {
		if be := try(n); be != nil {
			return be, nil
		}
	}
	for n := range factories {
		if be := try(n); be != nil {
			return be, nil
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return nil, ErrNoBackendRegistered
}
