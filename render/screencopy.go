package render

import (
	"fmt"

	"github.com/strata-wm/strata/cpuworker"
	"github.com/strata-wm/strata/gpu"
	"github.com/strata-wm/strata/tree"
)

// ScreencopyRequest describes one client capture of an output.
type ScreencopyRequest struct {
	// Format, Width, Height, and Stride describe the client buffer.
	Format *gpu.Format
	Width  int32
	Height int32
	Stride int32

	// Dst is the client memory the frame lands in.
	Dst []byte

	// Done runs on the runtime goroutine once Dst is filled or the
	// copy failed.
	Done func(err error)
}

// Screencopy renders the output's current frame into the client
// buffer. The render goes through an internal bridge framebuffer that
// is reused across frames while the client layout stays identical; the
// final row copy into client memory runs on the CPU worker.
func (r *Renderer) Screencopy(o *tree.Output, req *ScreencopyRequest) error {
	if err := gpu.ValidateShm(req.Format, req.Width, req.Height, req.Stride, len(req.Dst)); err != nil {
		return err
	}
	st, err := r.outputState(o)
	if err != nil {
		return err
	}

	// The bridge is only reusable on an exact match of size, format,
	// and stride; any mismatch, size-only ones included, recreates it.
	// See the notes in DESIGN.md.
	if st.bridge == 0 || st.bridgeFormat != req.Format ||
		st.bridgeW != req.Width || st.bridgeH != req.Height ||
		st.bridgeStride != req.Stride {
		if st.bridge != 0 {
			r.be.ReleaseFramebuffer(st.bridge)
			st.bridge = 0
		}
		fb, err := r.be.CreateFramebuffer(req.Format, req.Width, req.Height)
		if err != nil {
			return fmt.Errorf("render: bridge framebuffer: %w", err)
		}
		st.bridge = fb
		st.bridgeFormat = req.Format
		st.bridgeW = req.Width
		st.bridgeH = req.Height
		st.bridgeStride = req.Stride
	}

	// Draw the scene into the bridge.
	if err := r.be.BeginFrame(st.bridge); err != nil {
		return err
	}
	r.origin = o.AbsolutePosition()
	r.frameClip = nil
	r.be.Clear(colorBackground)
	r.RenderOutput(o, 0, 0)
	sync, err := r.be.EndFrame()
	if err != nil {
		return err
	}
	sync.Close()

	// Download into internal staging, then let the worker copy the
	// rows into client memory.
	bpp := int32(req.Format.Shm.Bpp)
	tight := req.Width * bpp
	staging := make([]byte, tight*req.Height)
	tex := r.be.FramebufferTexture(st.bridge)
	if err := r.be.DownloadShm(tex, req.Format, staging, tight); err != nil {
		return err
	}
	done := req.Done
	job := &cpuworker.CopyJob{
		Src:       staging,
		Dst:       req.Dst,
		SrcStride: int(tight),
		DstStride: int(req.Stride),
		RowBytes:  int(tight),
		Rows:      int(req.Height),
		OnDone:    done,
	}
	r.worker.Submit(job)
	return nil
}
