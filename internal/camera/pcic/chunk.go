package pcic

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/nerrad567/gray-logic-tof/internal/camera"
)

// Chunk type identifiers used by the device firmware.
const (
	chunkRadialDistance uint32 = 100
	chunkNormAmplitude  uint32 = 101
	chunkAmplitude      uint32 = 103
	chunkCartesianAll   uint32 = 203
	chunkJPEGImage      uint32 = 260
	chunkExtrinsics     uint32 = 400
)

// Pixel format identifiers from the chunk header.
const (
	pixelFormatMono16  uint32 = 2
	pixelFormatFloat32 uint32 = 8
)

// chunkHeaderSize is the fixed size of the binary chunk header: twelve
// little-endian uint32 fields (type, chunk size, header size, header
// version, width, height, pixel format, timestamp seconds, timestamp
// nanoseconds, frame count, status code, reserved).
const chunkHeaderSize = 48

type chunkHeader struct {
	chunkType    uint32
	chunkSize    uint32
	headerSize   uint32
	width        uint32
	height       uint32
	pixelFormat  uint32
	timestampSec uint32
	timestampNs  uint32
	frameCount   uint32
}

func parseChunkHeader(buf []byte) (chunkHeader, error) {
	if len(buf) < chunkHeaderSize {
		return chunkHeader{}, fmt.Errorf("pcic: chunk header truncated (%d bytes)", len(buf))
	}
	h := chunkHeader{
		chunkType:    binary.LittleEndian.Uint32(buf[0:]),
		chunkSize:    binary.LittleEndian.Uint32(buf[4:]),
		headerSize:   binary.LittleEndian.Uint32(buf[8:]),
		width:        binary.LittleEndian.Uint32(buf[16:]),
		height:       binary.LittleEndian.Uint32(buf[20:]),
		pixelFormat:  binary.LittleEndian.Uint32(buf[24:]),
		timestampSec: binary.LittleEndian.Uint32(buf[28:]),
		timestampNs:  binary.LittleEndian.Uint32(buf[32:]),
		frameCount:   binary.LittleEndian.Uint32(buf[36:]),
	}
	if h.headerSize < chunkHeaderSize || h.chunkSize < h.headerSize {
		return chunkHeader{}, fmt.Errorf("pcic: inconsistent chunk sizes (header %d, chunk %d)", h.headerSize, h.chunkSize)
	}
	return h, nil
}

// parseFrame decodes the binary content of a frame message (the bytes
// between the "star" and "stop" envelope markers) into a camera.Frame.
//
// Unknown chunk types are skipped, mirroring the forward-compatibility
// policy of the schema mask: newer firmware may interleave chunks this
// build does not know about.
func parseFrame(content []byte) (*camera.Frame, error) {
	frame := &camera.Frame{
		Images: make(map[camera.BufferKind]camera.Image),
	}

	for len(content) > 0 {
		h, err := parseChunkHeader(content)
		if err != nil {
			return nil, err
		}
		if int(h.chunkSize) > len(content) {
			return nil, fmt.Errorf("pcic: chunk exceeds message (%d > %d)", h.chunkSize, len(content))
		}

		data := content[h.headerSize:h.chunkSize]

		// Capture timestamp comes from the chunks themselves; any one
		// of them carries the device clock for the whole frame.
		if frame.CapturedAt.IsZero() && (h.timestampSec != 0 || h.timestampNs != 0) {
			frame.CapturedAt = time.Unix(int64(h.timestampSec), int64(h.timestampNs)).UTC()
		}
		frame.Count = h.frameCount

		switch h.chunkType {
		case chunkRadialDistance:
			frame.Images[camera.BufferRadialDistance] = imageFromChunk(h, data)
		case chunkNormAmplitude:
			frame.Images[camera.BufferNormAmplitude] = imageFromChunk(h, data)
		case chunkAmplitude:
			frame.Images[camera.BufferAmplitude] = imageFromChunk(h, data)
		case chunkJPEGImage:
			frame.Images[camera.BufferRGB] = camera.Image{
				Width:  int(h.width),
				Height: int(h.height),
				Format: "jpeg",
				Data:   data,
			}
		case chunkCartesianAll:
			frame.Cloud = &camera.PointCloud{
				Width:  int(h.width),
				Height: int(h.height),
				Data:   data,
			}
		case chunkExtrinsics:
			ext, err := extrinsicsFromChunk(data)
			if err != nil {
				return nil, err
			}
			frame.Extrinsics = ext
		default:
			// Unknown chunk: skip.
		}

		content = content[h.chunkSize:]
	}

	if frame.CapturedAt.IsZero() {
		// Device clock unset (e.g. factory reset). Fall back to receipt
		// time so messages still carry a usable stamp.
		frame.CapturedAt = time.Now().UTC()
	}

	return frame, nil
}

func imageFromChunk(h chunkHeader, data []byte) camera.Image {
	format := "mono16le"
	if h.pixelFormat == pixelFormatFloat32 {
		format = "float32le"
	}
	return camera.Image{
		Width:  int(h.width),
		Height: int(h.height),
		Format: format,
		Data:   data,
	}
}

// extrinsicsFromChunk decodes six little-endian float32 values:
// tx, ty, tz (metres), rot_x, rot_y, rot_z (radians).
func extrinsicsFromChunk(data []byte) (*camera.Extrinsics, error) {
	const want = 6 * 4
	if len(data) < want {
		return nil, fmt.Errorf("pcic: extrinsics chunk too short (%d bytes)", len(data))
	}
	f := func(i int) float64 {
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
	}
	return &camera.Extrinsics{
		TX: f(0), TY: f(1), TZ: f(2),
		RotX: f(3), RotY: f(4), RotZ: f(5),
	}, nil
}
