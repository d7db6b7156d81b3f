package render

import (
	"testing"
	"time"

	"github.com/strata-wm/strata/cpuworker"
	"github.com/strata-wm/strata/gpu"
	"github.com/strata-wm/strata/gpu/backend/soft"
	"github.com/strata-wm/strata/internal/loop"
	"github.com/strata-wm/strata/region"
	"github.com/strata-wm/strata/tree"
)

type fixture struct {
	loop     *loop.Loop
	be       *soft.Backend
	worker   *cpuworker.Pool
	tree     *tree.Tree
	renderer *Renderer
	output   *tree.Output
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	l, err := loop.New()
	if err != nil {
		t.Fatalf("loop.New: %v", err)
	}
	t.Cleanup(l.Close)
	be := soft.New()
	if err := be.Init(); err != nil {
		t.Fatalf("backend Init: %v", err)
	}
	t.Cleanup(be.Destroy)
	w, err := cpuworker.New(l, 1)
	if err != nil {
		t.Fatalf("cpuworker.New: %v", err)
	}
	t.Cleanup(w.Stop)
	tr := tree.New(l)
	o := tr.NewOutput("DP-1", region.Rect{X2: 64, Y2: 64}, tree.Mode{Width: 64, Height: 64, RefreshMHz: 60000})
	return &fixture{
		loop:     l,
		be:       be,
		worker:   w,
		tree:     tr,
		renderer: New(be, l, w),
		output:   o,
	}
}

// addToplevel maps a solid-color toplevel filling the workspace.
func (f *fixture) addToplevel(t *testing.T, px [4]byte) *tree.Toplevel {
	t.Helper()
	ws := f.tree.NewWorkspace("1")
	f.output.AttachWorkspace(ws)
	c := f.tree.NewContainer(tree.AxisHorizontal)
	ws.SetRoot(c)

	s := f.tree.NewSurface(tree.NewClient(1, 1, 1))
	const w, h = 64, 64
	data := make([]byte, w*h*4)
	for i := 0; i < len(data); i += 4 {
		copy(data[i:], px[:])
	}
	format := gpu.FormatByName("argb8888")
	handle, err := gpu.ShmTexture(f.be, f.loop, nil, data, format, w, h, w*4, nil)
	if err != nil {
		t.Fatalf("ShmTexture: %v", err)
	}
	s.Attach(&tree.Buffer{Shm: handle, Width: w, Height: h})
	s.Commit()
	tl, err := f.tree.NewToplevel(s, tree.ToplevelXdg)
	if err != nil {
		t.Fatalf("NewToplevel: %v", err)
	}
	c.InsertChild(tl, -1)
	return tl
}

func (f *fixture) readFrame(t *testing.T) []byte {
	t.Helper()
	tex := f.renderer.OutputTexture(f.output)
	if tex == 0 {
		t.Fatal("no output texture")
	}
	dst := make([]byte, 64*64*4)
	if err := f.be.DownloadShm(tex, gpu.FormatByName("argb8888"), dst, 64*4); err != nil {
		t.Fatalf("DownloadShm: %v", err)
	}
	return dst
}

func TestRenderFrameDrawsSurface(t *testing.T) {
	f := newFixture(t)
	// Client bytes are B, G, R, A: solid red.
	f.addToplevel(t, [4]byte{0, 0, 255, 255})

	sync, err := f.renderer.RenderFrame(f.output, 16)
	if err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	sync.Close()

	frame := f.readFrame(t)
	// A pixel inside the content area (below the title bar) is red.
	idx := (40*64 + 32) * 4
	if frame[idx+2] != 255 || frame[idx+1] != 0 {
		t.Errorf("content pixel BGRA = %v, want red", frame[idx:idx+4])
	}
	// A pixel inside the title bar is not red.
	idx = (4*64 + 32) * 4
	if frame[idx+2] == 255 && frame[idx+1] == 0 {
		t.Errorf("title bar pixel looks like surface content: %v", frame[idx:idx+4])
	}
}

func TestFrameCallbacksDelivered(t *testing.T) {
	f := newFixture(t)
	tl := f.addToplevel(t, [4]byte{0, 255, 0, 255})
	var got []uint32
	tl.Surface().Frame(func(msec uint32) { got = append(got, msec) })
	tl.Surface().Commit()

	sync, err := f.renderer.RenderFrame(f.output, 123)
	if err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	sync.Close()
	if len(got) != 1 || got[0] != 123 {
		t.Fatalf("frame callbacks = %v, want [123]", got)
	}

	// Callbacks are one-shot: the next frame delivers nothing.
	sync, err = f.renderer.RenderFrame(f.output, 140)
	if err != nil {
		t.Fatalf("RenderFrame: %v", err)
	}
	sync.Close()
	if len(got) != 1 {
		t.Errorf("callback re-delivered: %v", got)
	}
}

func TestScreencopy(t *testing.T) {
	f := newFixture(t)
	f.addToplevel(t, [4]byte{255, 0, 0, 255}) // solid blue

	format := gpu.FormatByName("argb8888")
	dst := make([]byte, 64*64*4)
	var done bool
	var gotErr error
	req := &ScreencopyRequest{
		Format: format,
		Width:  64,
		Height: 64,
		Stride: 64 * 4,
		Dst:    dst,
		Done:   func(err error) { done = true; gotErr = err },
	}
	if err := f.renderer.Screencopy(f.output, req); err != nil {
		t.Fatalf("Screencopy: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for !done {
		if time.Now().After(deadline) {
			t.Fatal("screencopy did not complete")
		}
		if err := f.loop.RunOnce(); err != nil {
			t.Fatalf("RunOnce: %v", err)
		}
		time.Sleep(time.Millisecond)
	}
	if gotErr != nil {
		t.Fatalf("screencopy err = %v", gotErr)
	}
	idx := (40*64 + 32) * 4
	if dst[idx] != 255 {
		t.Errorf("captured pixel BGRA = %v, want blue", dst[idx:idx+4])
	}
}

func TestScreencopyBridgeReuse(t *testing.T) {
	f := newFixture(t)
	f.addToplevel(t, [4]byte{0, 0, 255, 255})
	format := gpu.FormatByName("argb8888")
	mk := func() *ScreencopyRequest {
		return &ScreencopyRequest{
			Format: format,
			Width:  64,
			Height: 64,
			Stride: 64 * 4,
			Dst:    make([]byte, 64*64*4),
			Done:   func(error) {},
		}
	}
	if err := f.renderer.Screencopy(f.output, mk()); err != nil {
		t.Fatalf("first Screencopy: %v", err)
	}
	first := f.renderer.outputs[f.output.ID()].bridge
	if err := f.renderer.Screencopy(f.output, mk()); err != nil {
		t.Fatalf("second Screencopy: %v", err)
	}
	if got := f.renderer.outputs[f.output.ID()].bridge; got != first {
		t.Error("bridge framebuffer not reused on exact match")
	}
	// A stride change forces recreation.
	req := mk()
	req.Stride = 64*4 + 64
	req.Dst = make([]byte, req.Stride*64)
	if err := f.renderer.Screencopy(f.output, req); err != nil {
		t.Fatalf("third Screencopy: %v", err)
	}
	if got := f.renderer.outputs[f.output.ID()].bridge; got == first {
		t.Error("bridge framebuffer reused despite stride mismatch")
	}
}

func TestScreencopyRejectsBadLayout(t *testing.T) {
	f := newFixture(t)
	f.addToplevel(t, [4]byte{0, 0, 0, 255})
	req := &ScreencopyRequest{
		Format: gpu.FormatByName("argb8888"),
		Width:  64,
		Height: 64,
		Stride: 63, // not pixel aligned
		Dst:    make([]byte, 63*64),
	}
	if err := f.renderer.Screencopy(f.output, req); err != gpu.ErrInvalidStride {
		t.Errorf("err = %v, want ErrInvalidStride", err)
	}
}

func TestOpaqueUnderTagging(t *testing.T) {
	f := newFixture(t)
	tl := f.addToplevel(t, [4]byte{0, 0, 0, 255})
	s := tl.Surface()
	s.SetOpaque(region.FromRect(region.Rect{X2: 64, Y2: 64}))
	s.Commit()
	rects := OpaqueUnder([]*tree.Surface{s})
	if len(rects) == 0 {
		t.Fatal("no opaque bands")
	}
	for _, r := range rects {
		if r.Tag != 0 {
			t.Errorf("tag = %d, want 0", r.Tag)
		}
	}
}
