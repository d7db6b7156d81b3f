package soft

import (
	"bytes"
	"testing"

	"github.com/strata-wm/strata/gpu"
	"github.com/strata-wm/strata/internal/loop"
	"github.com/strata-wm/strata/region"
)

func rect(x1, y1, x2, y2 int32) region.Rect {
	return region.Rect{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

func newBackend(t *testing.T) *Backend {
	t.Helper()
	b := New()
	if err := b.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(b.Destroy)
	return b
}

// solid returns a client buffer filled with one pixel value.
func solid(w, h, stride int, px [4]byte) []byte {
	buf := make([]byte, stride*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			copy(buf[y*stride+x*4:], px[:])
		}
	}
	return buf
}

func download(t *testing.T, b *Backend, tex gpu.Texture, f *gpu.Format, w, h int32) []byte {
	t.Helper()
	dst := make([]byte, w*h*4)
	if err := b.DownloadShm(tex, f, dst, w*4); err != nil {
		t.Fatalf("DownloadShm: %v", err)
	}
	return dst
}

func TestShmUploadIdempotence(t *testing.T) {
	b := newBackend(t)
	f := gpu.FormatByName("argb8888")
	tex, err := b.CreateShmTexture(f, 4, 4, 16, false)
	if err != nil {
		t.Fatalf("CreateShmTexture: %v", err)
	}
	data := solid(4, 4, 16, [4]byte{0x11, 0x22, 0x33, 0xff})

	if _, err := b.UploadShm(tex, data, nil); err != nil {
		t.Fatalf("full upload: %v", err)
	}
	first := download(t, b, tex, f, 4, 4)

	// Upload the same bytes again with damage covering the whole image.
	if _, err := b.UploadShm(tex, data, []region.Rect{rect(0, 0, 4, 4)}); err != nil {
		t.Fatalf("damaged upload: %v", err)
	}
	second := download(t, b, tex, f, 4, 4)

	if !bytes.Equal(first, second) {
		t.Error("sampled content differs after re-uploading identical bytes")
	}
}

func TestShmUploadDamageClipped(t *testing.T) {
	b := newBackend(t)
	f := gpu.FormatByName("xbgr8888")
	tex, err := b.CreateShmTexture(f, 4, 4, 16, false)
	if err != nil {
		t.Fatalf("CreateShmTexture: %v", err)
	}
	base := solid(4, 4, 16, [4]byte{1, 2, 3, 255})
	if _, err := b.UploadShm(tex, base, nil); err != nil {
		t.Fatalf("initial upload: %v", err)
	}
	patch := solid(4, 4, 16, [4]byte{9, 9, 9, 255})
	// Damage extends past the image; must be clipped, and only the
	// damaged pixel may change.
	if _, err := b.UploadShm(tex, patch, []region.Rect{rect(3, 3, 10, 10)}); err != nil {
		t.Fatalf("patch upload: %v", err)
	}
	got := download(t, b, tex, f, 4, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			want := byte(1)
			if x == 3 && y == 3 {
				want = 9
			}
			if got[(y*4+x)*4] != want {
				t.Errorf("pixel (%d,%d) R = %d, want %d", x, y, got[(y*4+x)*4], want)
			}
		}
	}
}

func TestUploadSignalsSyncFile(t *testing.T) {
	l, err := loop.New()
	if err != nil {
		t.Fatalf("loop.New: %v", err)
	}
	defer l.Close()
	b := newBackend(t)
	f := gpu.FormatByName("argb8888")
	tex, _ := b.CreateShmTexture(f, 2, 2, 8, false)
	u, err := b.UploadShm(tex, make([]byte, 16), nil)
	if err != nil {
		t.Fatalf("UploadShm: %v", err)
	}
	released := false
	u.Release = func() { released = true }
	gpu.WatchUpload(l, u)
	// The soft backend's fence is already signalled, so a few loop
	// iterations must release the staging resources.
	for i := 0; i < 10 && !released; i++ {
		if err := l.RunOnce(); err != nil {
			t.Fatalf("RunOnce: %v", err)
		}
	}
	if !released {
		t.Error("staging resources not released after fence signalled")
	}
}

func TestWatchUploadCancelReleasesEarly(t *testing.T) {
	l, err := loop.New()
	if err != nil {
		t.Fatalf("loop.New: %v", err)
	}
	defer l.Close()
	sync, err := gpu.NewSignaledSyncFile()
	if err != nil {
		t.Fatalf("NewSignaledSyncFile: %v", err)
	}
	released := 0
	u := &gpu.Upload{Sync: sync, Release: func() { released++ }}
	cancel := gpu.WatchUpload(l, u)
	cancel()
	if released != 1 {
		t.Fatalf("released %d times after cancel, want 1", released)
	}
	// The fence signalling afterwards must not release twice.
	if err := l.RunOnce(); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if released != 1 {
		t.Errorf("released %d times total, want 1", released)
	}
}

func TestChannelOrderConversion(t *testing.T) {
	b := newBackend(t)
	argb := gpu.FormatByName("argb8888")
	abgr := gpu.FormatByName("abgr8888")
	tex, err := b.CreateShmTexture(argb, 1, 1, 4, false)
	if err != nil {
		t.Fatalf("CreateShmTexture: %v", err)
	}
	// argb8888 client bytes are B, G, R, A.
	if _, err := b.UploadShm(tex, []byte{0x10, 0x20, 0x30, 0xff}, nil); err != nil {
		t.Fatalf("UploadShm: %v", err)
	}
	// Downloading as abgr8888 (R, G, B, A client order) yields the
	// channels swapped relative to the upload bytes.
	got := download(t, b, tex, abgr, 1, 1)
	want := []byte{0x30, 0x20, 0x10, 0xff}
	if !bytes.Equal(got, want) {
		t.Errorf("abgr download = %v, want %v", got, want)
	}
	// Downloading in the texture's own order returns the upload bytes.
	got = download(t, b, tex, argb, 1, 1)
	want = []byte{0x10, 0x20, 0x30, 0xff}
	if !bytes.Equal(got, want) {
		t.Errorf("argb download = %v, want %v", got, want)
	}
}

func TestFillAndScissor(t *testing.T) {
	b := newBackend(t)
	f := gpu.FormatByName("xbgr8888")
	fb, err := b.CreateFramebuffer(f, 8, 8)
	if err != nil {
		t.Fatalf("CreateFramebuffer: %v", err)
	}
	if err := b.BeginFrame(fb); err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	b.Clear(gpu.Color{R: 0, G: 0, B: 0, A: 1})
	clip := rect(2, 2, 6, 6)
	b.SetScissor(&clip)
	b.FillRect(rect(0, 0, 8, 8), gpu.Color{R: 1, G: 1, B: 1, A: 1})
	b.SetScissor(nil)
	sync, err := b.EndFrame()
	if err != nil {
		t.Fatalf("EndFrame: %v", err)
	}
	sync.Close()

	got := download(t, b, b.FramebufferTexture(fb), f, 8, 8)
	for y := int32(0); y < 8; y++ {
		for x := int32(0); x < 8; x++ {
			want := byte(0)
			if clip.Contains(x, y) {
				want = 255
			}
			if got[(y*8+x)*4] != want {
				t.Fatalf("pixel (%d,%d) = %d, want %d", x, y, got[(y*8+x)*4], want)
			}
		}
	}
}

func TestDrawTextureBlends(t *testing.T) {
	b := newBackend(t)
	f := gpu.FormatByName("abgr8888")
	fb, _ := b.CreateFramebuffer(f, 2, 1)
	tex, _ := b.CreateShmTexture(f, 2, 1, 8, false)
	// Left pixel opaque red, right pixel transparent.
	if _, err := b.UploadShm(tex, []byte{255, 0, 0, 255, 0, 0, 0, 0}, nil); err != nil {
		t.Fatalf("UploadShm: %v", err)
	}
	if err := b.BeginFrame(fb); err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	b.Clear(gpu.Color{G: 1, A: 1})
	b.DrawTexture(tex, rect(0, 0, 2, 1), rect(0, 0, 2, 1))
	sync, _ := b.EndFrame()
	sync.Close()

	got := download(t, b, b.FramebufferTexture(fb), f, 2, 1)
	if got[0] != 255 || got[1] != 0 {
		t.Errorf("opaque texel = %v, want red", got[0:4])
	}
	if got[4] != 0 || got[5] != 255 {
		t.Errorf("transparent texel = %v, want background green", got[4:8])
	}
}
