package camera

import "time"

// Extrinsics is the camera-to-mount transform reported by the device.
// Translations are in metres, rotations in radians.
type Extrinsics struct {
	TX   float64
	TY   float64
	TZ   float64
	RotX float64
	RotY float64
	RotZ float64
}

// Image is a single 2D buffer as delivered by the device.
//
// Format describes the pixel encoding of Data (e.g. "mono16le", "float32le",
// "jpeg"). Data is the raw buffer exactly as received.
type Image struct {
	Width  int
	Height int
	Format string
	Data   []byte
}

// PointCloud is organized Cartesian point data: Width*Height points, three
// little-endian float32 per point (x, y, z in metres), invalid points NaN.
type PointCloud struct {
	Width  int
	Height int
	Data   []byte
}

// Frame is one capture from the device, carrying whichever of the requested
// buffers the device produced for it.
//
// CapturedAt is the device's own capture timestamp, not local receipt time;
// downstream consumers rely on it for temporal ordering.
type Frame struct {
	CapturedAt time.Time
	Count      uint32

	Images     map[BufferKind]Image
	Cloud      *PointCloud
	Extrinsics *Extrinsics
}

// Has reports whether the frame carries data for the given buffer kind.
func (f *Frame) Has(kind BufferKind) bool {
	switch kind {
	case BufferXYZ:
		return f.Cloud != nil
	case BufferExtrinsics:
		return f.Extrinsics != nil
	default:
		_, ok := f.Images[kind]
		return ok
	}
}
