// Package wgpu provides the command-buffer rendering backend on top of
// WebGPU via wgpu-native.
//
// Work is recorded into command encoders and submitted to the device
// queue. The binding does not expose texture upload, dma-buf import, or
// fence export; those entry points report gpu.ErrNotImplemented to the
// caller. They are not routed to another backend: gpu.OpenBackend picks
// the soft backend only when this backend's Init fails.
package wgpu

import (
	"fmt"
	"log"
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/strata-wm/strata/gpu"
	"github.com/strata-wm/strata/region"
)

func init() {
	gpu.RegisterBackend("wgpu", func() gpu.Backend { return New() })
}

// clearShader fills the current attachment with a uniform color fed
// through a full-screen triangle.
const clearShader = `
@vertex
fn vs_main(@builtin(vertex_index) idx: u32) -> @builtin(position) vec4<f32> {
    var pos = array<vec2<f32>, 3>(
        vec2<f32>(-1.0, -3.0),
        vec2<f32>(3.0, 1.0),
        vec2<f32>(-1.0, 1.0),
    );
    return vec4<f32>(pos[idx], 0.0, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(0.0, 0.0, 0.0, 1.0);
}
`

// importInfo is the image import description handed to the driver once
// the binding grows a dma-buf entry point. The 64-bit modifier travels
// split hi/lo.
type importInfo struct {
	fourcc     uint32
	modifierHi uint32
	modifierLo uint32
	planes     []planeInfo
}

type planeInfo struct {
	fd     int
	offset uint32
	stride uint32
}

// Backend implements gpu.Backend using wgpu-native.
type Backend struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	clearPipeline *wgpu.RenderPipeline

	// Current frame state
	encoder *wgpu.CommandEncoder
	view    *wgpu.TextureView
	reset   gpu.ResetStatus

	unsupportedOnce sync.Once
}

// New creates a wgpu backend.
func New() *Backend {
	return &Backend{}
}

// Name returns the backend identifier.
func (b *Backend) Name() string {
	return "wgpu (wgpu-native)"
}

// Init creates the instance, adapter, device, and queue.
func (b *Backend) Init() error {
	var err error
	b.instance, err = wgpu.CreateInstance(nil)
	if err != nil {
		return fmt.Errorf("wgpu backend: create instance: %w", err)
	}
	b.adapter, err = b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return fmt.Errorf("wgpu backend: request adapter: %w", err)
	}
	b.device, err = b.adapter.RequestDevice(nil)
	if err != nil {
		return fmt.Errorf("wgpu backend: request device: %w", err)
	}
	b.queue = b.device.GetQueue()

	shader := b.device.CreateShaderModuleWGSL(clearShader)
	if shader == nil {
		return fmt.Errorf("wgpu backend: failed to create clear shader")
	}
	defer shader.Release()
	b.clearPipeline = b.device.CreateRenderPipelineSimple(
		nil,
		shader, "vs_main",
		shader, "fs_main",
		wgpu.TextureFormatBGRA8Unorm,
	)
	if b.clearPipeline == nil {
		return fmt.Errorf("wgpu backend: failed to create clear pipeline")
	}
	return nil
}

// Destroy releases all backend resources.
func (b *Backend) Destroy() {
	if b.clearPipeline != nil {
		b.clearPipeline.Release()
		b.clearPipeline = nil
	}
	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}

// ResetStatus reports device health.
func (b *Backend) ResetStatus() gpu.ResetStatus {
	return b.reset
}

// Formats returns every format with a WebGPU analog.
func (b *Backend) Formats() []*gpu.Format {
	var res []*gpu.Format
	for _, f := range gpu.Formats() {
		if f.WebGPU != gpu.WebGPUFormatUndefined {
			res = append(res, f)
		}
	}
	return res
}

// Modifiers returns the supported modifiers for a format.
func (b *Backend) Modifiers(f *gpu.Format) []gpu.ModifierInfo {
	if f.WebGPU == gpu.WebGPUFormatUndefined {
		return nil
	}
	return []gpu.ModifierInfo{{Modifier: gpu.ModifierLinear}}
}

// ImportDmaBuf validates the buffer and builds the driver import info.
// The binding has no import entry point yet.
func (b *Backend) ImportDmaBuf(buf *gpu.DmaBuf) (gpu.Texture, error) {
	if err := buf.Validate(); err != nil {
		return 0, err
	}
	if _, _, err := gpu.ResolveDmaBuf(b, buf); err != nil {
		return 0, err
	}
	info := importInfo{
		fourcc:     buf.Fourcc,
		modifierHi: buf.Modifier.Hi(),
		modifierLo: buf.Modifier.Lo(),
	}
	for _, p := range buf.Planes {
		info.planes = append(info.planes, planeInfo{
			fd:     p.Fd.Fd(),
			offset: p.Offset,
			stride: p.Stride,
		})
	}
	_ = info
	return 0, gpu.ErrNotImplemented
}

// CreateShmTexture is not available through the binding.
func (b *Backend) CreateShmTexture(f *gpu.Format, width, height, stride int32, forDownload bool) (gpu.Texture, error) {
	if err := gpu.ValidateShm(f, width, height, stride, 0); err != nil {
		return 0, err
	}
	return 0, gpu.ErrNotImplemented
}

// UploadShm is not available through the binding.
func (b *Backend) UploadShm(tex gpu.Texture, data []byte, damage []region.Rect) (*gpu.Upload, error) {
	return nil, gpu.ErrNotImplemented
}

// DownloadShm is not available through the binding.
func (b *Backend) DownloadShm(tex gpu.Texture, f *gpu.Format, dst []byte, stride int32) error {
	return gpu.ErrNotImplemented
}

// CreateFramebuffer is not available through the binding; render targets
// come from surfaces, which platform glue owns.
func (b *Backend) CreateFramebuffer(f *gpu.Format, width, height int32) (gpu.Framebuffer, error) {
	return 0, gpu.ErrNotImplemented
}

// FramebufferTexture returns the texture backing fb.
func (b *Backend) FramebufferTexture(fb gpu.Framebuffer) gpu.Texture {
	return 0
}

// BeginFrame starts recording a frame.
func (b *Backend) BeginFrame(fb gpu.Framebuffer) error {
	if b.device == nil {
		return gpu.ErrReset
	}
	return gpu.ErrNotImplemented
}

// Clear records a clear pass over the current attachment.
func (b *Backend) Clear(c gpu.Color) {
	if b.encoder == nil || b.view == nil {
		return
	}
	pass := b.encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       b.view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: float64(c.R), G: float64(c.G), B: float64(c.B), A: float64(c.A)},
		}},
	})
	pass.SetPipeline(b.clearPipeline)
	pass.End()
	pass.Release()
}

// SetScissor is recorded per draw; the binding exposes no scissor state
// yet.
func (b *Backend) SetScissor(r *region.Rect) {
	b.logUnsupported()
}

// FillRect is not available through the binding.
func (b *Backend) FillRect(r region.Rect, c gpu.Color) {
	b.logUnsupported()
}

// DrawTexture is not available through the binding.
func (b *Backend) DrawTexture(tex gpu.Texture, src, dst region.Rect) {
	b.logUnsupported()
}

func (b *Backend) logUnsupported() {
	b.unsupportedOnce.Do(func() {
		log.Printf("wgpu backend: draw commands not supported by the binding; they are ignored")
	})
}

// EndFrame submits the recorded commands. The binding cannot export a
// fence, so submission blocks until the queue accepted the work and the
// returned sync file is already signalled.
func (b *Backend) EndFrame() (*gpu.SyncFile, error) {
	if b.encoder == nil {
		return nil, gpu.ErrInvalidHandle
	}
	buffer := b.encoder.Finish(nil)
	b.queue.Submit(buffer)
	buffer.Release()
	b.encoder.Release()
	b.encoder = nil
	b.view = nil
	return gpu.NewSignaledSyncFile()
}

// ReleaseTexture frees a texture.
func (b *Backend) ReleaseTexture(tex gpu.Texture) {}

// ReleaseFramebuffer frees a framebuffer.
func (b *Backend) ReleaseFramebuffer(fb gpu.Framebuffer) {}

// Ensure Backend implements gpu.Backend.
var _ gpu.Backend = (*Backend)(nil)
