package camera

import "fmt"

// BufferKind identifies a category of data the camera can produce per frame.
// The string values are used directly as stream topic segments.
type BufferKind string

const (
	// BufferRadialDistance is the radial distance image.
	BufferRadialDistance BufferKind = "radial_distance"

	// BufferNormAmplitude is the normalized amplitude image.
	BufferNormAmplitude BufferKind = "norm_amplitude"

	// BufferAmplitude is the raw (non-normalized) amplitude image.
	BufferAmplitude BufferKind = "amplitude"

	// BufferXYZ is the Cartesian point data.
	BufferXYZ BufferKind = "xyz"

	// BufferExtrinsics is the extrinsic calibration record.
	BufferExtrinsics BufferKind = "extrinsics"

	// BufferRGB is the compressed color image.
	BufferRGB BufferKind = "rgb"
)

// Legacy schema mask bits. Older deployments configure the buffer selection
// as a 16-bit mask; the modern explicit list supersedes it.
const (
	MaskRadialDistance uint16 = 1 << 0
	MaskNormAmplitude  uint16 = 1 << 1
	MaskAmplitude      uint16 = 1 << 2
	MaskXYZ            uint16 = 1 << 3
)

// maskTable fixes the canonical order of mask-derived selections:
// distance, normalized amplitude, raw amplitude, Cartesian.
var maskTable = []struct {
	bit  uint16
	kind BufferKind
}{
	{MaskRadialDistance, BufferRadialDistance},
	{MaskNormAmplitude, BufferNormAmplitude},
	{MaskAmplitude, BufferAmplitude},
	{MaskXYZ, BufferXYZ},
}

// BuffersFromSchemaMask translates a legacy schema mask into the explicit
// buffer selection, in canonical order. Unknown or reserved bits are
// silently ignored so masks written for newer firmware keep working here.
func BuffersFromSchemaMask(mask uint16) []BufferKind {
	var buffers []BufferKind
	for _, entry := range maskTable {
		if mask&entry.bit == entry.bit {
			buffers = append(buffers, entry.kind)
		}
	}
	return buffers
}

// Valid reports whether k names a known buffer kind.
func (k BufferKind) Valid() bool {
	switch k {
	case BufferRadialDistance, BufferNormAmplitude, BufferAmplitude,
		BufferXYZ, BufferExtrinsics, BufferRGB:
		return true
	}
	return false
}

// ParseBufferKind converts a configuration string into a BufferKind.
func ParseBufferKind(s string) (BufferKind, error) {
	k := BufferKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("camera: unknown buffer kind %q", s)
	}
	return k, nil
}

// ParseBufferKinds converts an explicit configuration list, preserving order
// and rejecting duplicates.
func ParseBufferKinds(names []string) ([]BufferKind, error) {
	seen := make(map[BufferKind]bool, len(names))
	buffers := make([]BufferKind, 0, len(names))
	for _, name := range names {
		k, err := ParseBufferKind(name)
		if err != nil {
			return nil, err
		}
		if seen[k] {
			return nil, fmt.Errorf("camera: duplicate buffer kind %q", name)
		}
		seen[k] = true
		buffers = append(buffers, k)
	}
	return buffers, nil
}
