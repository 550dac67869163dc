package dmabuf

import (
	"fmt"

	"texshare/internal/config"
)

// FourCC is a DRM pixel format code: four ASCII bytes, little endian.
type FourCC uint32

// FormatABGR8888 is DRM_FORMAT_ABGR8888 ('AB24'), RGBA8 in byte order.
const FormatABGR8888 = FourCC('A' | 'B'<<8 | '2'<<16 | '4'<<24)

// ParseFourCC converts a four character code such as "AB24".
func ParseFourCC(code string) (FourCC, error) {
	if len(code) != 4 {
		return 0, fmt.Errorf("fourcc must be four characters, got %q", code)
	}
	return FourCC(uint32(code[0]) | uint32(code[1])<<8 | uint32(code[2])<<16 | uint32(code[3])<<24), nil
}

// String returns the ASCII form, or hex when the code is not printable.
func (f FourCC) String() string {
	b := []byte{byte(f), byte(f >> 8), byte(f >> 16), byte(f >> 24)}
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return fmt.Sprintf("%#08x", uint32(f))
		}
	}
	return string(b)
}

// Modifier is a DRM format modifier describing tiling or compression.
type Modifier uint64

const (
	// ModLinear is DRM_FORMAT_MOD_LINEAR: plain row-major layout.
	ModLinear Modifier = 0
	// ModInvalid is DRM_FORMAT_MOD_INVALID: layout implied by the driver.
	ModInvalid Modifier = 0x00ffffffffffffff
)

// ParseModifier accepts the configuration spellings: "linear", "invalid"
// or an integer in any Go base notation.
func ParseModifier(value string) (Modifier, error) {
	parsed, err := config.ParseModifier(value)
	if err != nil {
		return 0, err
	}
	return Modifier(parsed), nil
}

func (m Modifier) String() string {
	switch m {
	case ModLinear:
		return "linear"
	case ModInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("0x%016x", uint64(m))
	}
}
