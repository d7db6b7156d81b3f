package gpu

import "sync"

// WebGPUFormat is the command-buffer backend's texture format enum.
// Values match the WebGPU specification.
type WebGPUFormat uint32

const (
	// WebGPUFormatUndefined marks formats without a WebGPU analog.
	WebGPUFormatUndefined WebGPUFormat = 0x00

	// WebGPUFormatR8Unorm is a single 8-bit channel.
	WebGPUFormatR8Unorm WebGPUFormat = 0x01

	// WebGPUFormatRGBA8Unorm is byte order R, G, B, A.
	WebGPUFormatRGBA8Unorm WebGPUFormat = 0x12

	// WebGPUFormatBGRA8Unorm is byte order B, G, R, A.
	WebGPUFormatBGRA8Unorm WebGPUFormat = 0x17

	// WebGPUFormatRGB10A2Unorm packs 10-bit channels with 2-bit alpha.
	WebGPUFormatRGB10A2Unorm WebGPUFormat = 0x19
)

// Legacy backend upload descriptors. The single-threaded backend only
// understands byte-ordered single-plane layouts; the triple mirrors the
// (source, target, type) description of classic GL-style upload paths.
const (
	LegacySourceRGBA uint32 = iota
	LegacySourceBGRA
	LegacySourceR8
)

const (
	LegacyTargetRGBA8 uint32 = iota
	LegacyTargetR8
)

const (
	LegacyTypeU8 uint32 = iota
)

// ShmInfo describes the shared-memory path of a format. Formats without
// an ShmInfo cannot be created as shm textures and are unsupported by
// the legacy backend.
type ShmInfo struct {
	// Bpp is bytes per pixel of client buffers in this format.
	Bpp uint32

	// LegacySource, LegacyTarget, and LegacyType describe the legacy
	// backend's upload conversion.
	LegacySource uint32
	LegacyTarget uint32
	LegacyType   uint32
}

// Format describes one recognised pixel format.
type Format struct {
	// Name is the stable lowercase format name.
	Name string

	// Drm is the four-cc code identifying the format on the wire.
	Drm uint32

	// HasAlpha reports whether the format carries an alpha channel.
	HasAlpha bool

	// Opaque points at the alpha-less variant of an alpha format, nil
	// when no such variant exists.
	Opaque *Format

	// WebGPU is the command-buffer backend's analog, or
	// WebGPUFormatUndefined when none exists.
	WebGPU WebGPUFormat

	// Shm is the shared-memory path record, nil when the format has no
	// shm analog.
	Shm *ShmInfo
}

func fourcc(a, b, c, d byte) uint32 {
	return uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24
}

var (
	formatXRGB8888 = &Format{
		Name:   "xrgb8888",
		Drm:    fourcc('X', 'R', '2', '4'),
		WebGPU: WebGPUFormatBGRA8Unorm,
		Shm: &ShmInfo{
			Bpp:          4,
			LegacySource: LegacySourceBGRA,
			LegacyTarget: LegacyTargetRGBA8,
			LegacyType:   LegacyTypeU8,
		},
	}

	formatARGB8888 = &Format{
		Name:     "argb8888",
		Drm:      fourcc('A', 'R', '2', '4'),
		HasAlpha: true,
		Opaque:   formatXRGB8888,
		WebGPU:   WebGPUFormatBGRA8Unorm,
		Shm: &ShmInfo{
			Bpp:          4,
			LegacySource: LegacySourceBGRA,
			LegacyTarget: LegacyTargetRGBA8,
			LegacyType:   LegacyTypeU8,
		},
	}

	formatXBGR8888 = &Format{
		Name:   "xbgr8888",
		Drm:    fourcc('X', 'B', '2', '4'),
		WebGPU: WebGPUFormatRGBA8Unorm,
		Shm: &ShmInfo{
			Bpp:          4,
			LegacySource: LegacySourceRGBA,
			LegacyTarget: LegacyTargetRGBA8,
			LegacyType:   LegacyTypeU8,
		},
	}

	formatABGR8888 = &Format{
		Name:     "abgr8888",
		Drm:      fourcc('A', 'B', '2', '4'),
		HasAlpha: true,
		Opaque:   formatXBGR8888,
		WebGPU:   WebGPUFormatRGBA8Unorm,
		Shm: &ShmInfo{
			Bpp:          4,
			LegacySource: LegacySourceRGBA,
			LegacyTarget: LegacyTargetRGBA8,
			LegacyType:   LegacyTypeU8,
		},
	}

	formatR8 = &Format{
		Name:   "r8",
		Drm:    fourcc('R', '8', ' ', ' '),
		WebGPU: WebGPUFormatR8Unorm,
		Shm: &ShmInfo{
			Bpp:          1,
			LegacySource: LegacySourceR8,
			LegacyTarget: LegacyTargetR8,
			LegacyType:   LegacyTypeU8,
		},
	}

	formatXBGR2101010 = &Format{
		Name:   "xbgr2101010",
		Drm:    fourcc('X', 'B', '3', '0'),
		WebGPU: WebGPUFormatRGB10A2Unorm,
	}

	formatABGR2101010 = &Format{
		Name:     "abgr2101010",
		Drm:      fourcc('A', 'B', '3', '0'),
		HasAlpha: true,
		Opaque:   formatXBGR2101010,
		WebGPU:   WebGPUFormatRGB10A2Unorm,
	}
)

// formats is the compile-time list of recognised formats.
var formats = []*Format{
	formatARGB8888,
	formatXRGB8888,
	formatABGR8888,
	formatXBGR8888,
	formatR8,
	formatABGR2101010,
	formatXBGR2101010,
}

// ArgB8888 returns the default compositor format.
func ArgB8888() *Format {
	return formatARGB8888
}

var (
	formatIndexOnce sync.Once
	formatsByDrm    map[uint32]*Format
	formatsByName   map[string]*Format
	formatsByWebGPU map[WebGPUFormat]*Format
)

// The three lookup indices are built on first use and immutable after.
func buildFormatIndices() {
	formatsByDrm = make(map[uint32]*Format, len(formats))
	formatsByName = make(map[string]*Format, len(formats))
	formatsByWebGPU = make(map[WebGPUFormat]*Format, len(formats))
	for _, f := range formats {
		formatsByDrm[f.Drm] = f
		formatsByName[f.Name] = f
		if f.WebGPU != WebGPUFormatUndefined {
			// Prefer the alpha variant when two formats share one
			// backend enum.
			if cur, ok := formatsByWebGPU[f.WebGPU]; !ok || !cur.HasAlpha {
				formatsByWebGPU[f.WebGPU] = f
			}
		}
	}
}

// Formats returns all recognised formats.
func Formats() []*Format {
	return formats
}

// FormatByDrm looks up a format by four-cc code.
func FormatByDrm(drm uint32) *Format {
	formatIndexOnce.Do(buildFormatIndices)
	return formatsByDrm[drm]
}

// FormatByName looks up a format by name.
func FormatByName(name string) *Format {
	formatIndexOnce.Do(buildFormatIndices)
	return formatsByName[name]
}

// FormatByWebGPU looks up a format by its command-buffer backend enum.
func FormatByWebGPU(f WebGPUFormat) *Format {
	formatIndexOnce.Do(buildFormatIndices)
	return formatsByWebGPU[f]
}

// ValidateShm checks client-supplied shm texture parameters against the
// format's layout: the stride must be a whole number of pixels covering
// at least the width, and the payload must fit the declared rows.
func ValidateShm(f *Format, width, height, stride int32, size int) error {
	if f.Shm == nil {
		return ErrUnsupportedFormat
	}
	bpp := int32(f.Shm.Bpp)
	if stride%bpp != 0 || stride/bpp < width {
		return ErrInvalidStride
	}
	if int64(size) > int64(stride)*int64(height) {
		return ErrBufferTooLarge
	}
	return nil
}
