package gpu

import "testing"

func TestFormatLookups(t *testing.T) {
	tests := []struct {
		name string
		drm  uint32
	}{
		{"argb8888", fourcc('A', 'R', '2', '4')},
		{"xrgb8888", fourcc('X', 'R', '2', '4')},
		{"abgr8888", fourcc('A', 'B', '2', '4')},
		{"r8", fourcc('R', '8', ' ', ' ')},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := FormatByName(tt.name)
			if f == nil {
				t.Fatalf("FormatByName(%q) = nil", tt.name)
			}
			if f.Drm != tt.drm {
				t.Errorf("Drm = %#x, want %#x", f.Drm, tt.drm)
			}
			if got := FormatByDrm(tt.drm); got != f {
				t.Errorf("FormatByDrm(%#x) = %v, want %v", tt.drm, got, f)
			}
		})
	}
	if FormatByDrm(0xdeadbeef) != nil {
		t.Error("unknown four-cc resolved to a format")
	}
}

func TestOpaqueVariants(t *testing.T) {
	argb := FormatByName("argb8888")
	xrgb := FormatByName("xrgb8888")
	if argb.Opaque != xrgb {
		t.Errorf("argb8888 opaque variant = %v, want xrgb8888", argb.Opaque)
	}
	if !argb.HasAlpha || xrgb.HasAlpha {
		t.Error("alpha flags wrong on argb8888/xrgb8888")
	}
	if xrgb.Opaque != nil {
		t.Error("xrgb8888 should not have an opaque variant")
	}
}

func TestFormatByWebGPUPrefersAlpha(t *testing.T) {
	f := FormatByWebGPU(WebGPUFormatBGRA8Unorm)
	if f == nil || !f.HasAlpha {
		t.Errorf("FormatByWebGPU(BGRA8) = %v, want the alpha variant", f)
	}
}

func TestValidateShm(t *testing.T) {
	argb := FormatByName("argb8888")
	tests := []struct {
		name         string
		w, h, stride int32
		size         int
		wantErr      error
	}{
		{"ok", 10, 10, 40, 400, nil},
		{"padded stride", 10, 10, 64, 640, nil},
		{"stride not pixel aligned", 10, 10, 41, 410, ErrInvalidStride},
		{"stride too small", 10, 10, 36, 360, ErrInvalidStride},
		{"payload too large", 10, 10, 40, 401, ErrBufferTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateShm(argb, tt.w, tt.h, tt.stride, tt.size)
			if err != tt.wantErr {
				t.Errorf("ValidateShm = %v, want %v", err, tt.wantErr)
			}
		})
	}
	noShm := FormatByName("abgr2101010")
	if err := ValidateShm(noShm, 1, 1, 4, 4); err != ErrUnsupportedFormat {
		t.Errorf("format without shm path: err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestModifierSplit(t *testing.T) {
	m := Modifier(0x0123456789abcdef)
	if m.Hi() != 0x01234567 || m.Lo() != 0x89abcdef {
		t.Errorf("Hi/Lo = %#x/%#x", m.Hi(), m.Lo())
	}
}
