package node

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/nerrad567/gray-logic-tof/internal/camera"
)

// Payload encodings.
const (
	// EncodingRaw marks an uncompressed data payload.
	EncodingRaw = "raw"

	// EncodingZstd marks a zstd-compressed data payload.
	EncodingZstd = "zstd"

	// compressThreshold is the payload size above which data is
	// compressed. Small payloads (extrinsics, tiny images) are not worth
	// the round trip.
	compressThreshold = 16 << 10 // 16KB
)

// Header is common to every stream message. CapturedAt is the device
// timestamp of the frame, not the publish time.
type Header struct {
	FrameID    string    `cbor:"frame_id"`
	CapturedAt time.Time `cbor:"captured_at"`
	Count      uint32    `cbor:"count"`
}

// ImageMessage carries one 2D buffer.
type ImageMessage struct {
	Header   Header `cbor:"header"`
	Width    int    `cbor:"width"`
	Height   int    `cbor:"height"`
	Format   string `cbor:"format"`
	Encoding string `cbor:"encoding"`
	Data     []byte `cbor:"data"`
}

// CloudMessage carries the Cartesian point cloud as interleaved xyz
// float32 triples.
type CloudMessage struct {
	Header   Header `cbor:"header"`
	Width    int    `cbor:"width"`
	Height   int    `cbor:"height"`
	Encoding string `cbor:"encoding"`
	Data     []byte `cbor:"data"`
}

// ExtrinsicsMessage carries the optics-to-user transform.
type ExtrinsicsMessage struct {
	Header Header  `cbor:"header"`
	TX     float64 `cbor:"tx"`
	TY     float64 `cbor:"ty"`
	TZ     float64 `cbor:"tz"`
	RotX   float64 `cbor:"rot_x"`
	RotY   float64 `cbor:"rot_y"`
	RotZ   float64 `cbor:"rot_z"`
}

// Codec encodes stream messages. It is safe for concurrent use; the zstd
// encoder's EncodeAll is stateless per call.
type Codec struct {
	enc  cbor.EncMode
	zstd *zstd.Encoder
}

// NewCodec builds a Codec with deterministic CBOR encoding.
func NewCodec() (*Codec, error) {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("node: building cbor encoder: %w", err)
	}
	zenc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("node: building zstd encoder: %w", err)
	}
	return &Codec{enc: enc, zstd: zenc}, nil
}

// pack compresses data when it is large enough to benefit and returns the
// payload with its encoding tag.
func (c *Codec) pack(data []byte) ([]byte, string) {
	if len(data) < compressThreshold {
		return data, EncodingRaw
	}
	return c.zstd.EncodeAll(data, make([]byte, 0, len(data)/4)), EncodingZstd
}

// EncodeImage builds the wire payload for one image buffer.
func (c *Codec) EncodeImage(hdr Header, img camera.Image) ([]byte, error) {
	data, encoding := c.pack(img.Data)
	return c.enc.Marshal(ImageMessage{
		Header:   hdr,
		Width:    img.Width,
		Height:   img.Height,
		Format:   img.Format,
		Encoding: encoding,
		Data:     data,
	})
}

// EncodeCloud builds the wire payload for the point cloud.
func (c *Codec) EncodeCloud(hdr Header, cloud camera.PointCloud) ([]byte, error) {
	data, encoding := c.pack(cloud.Data)
	return c.enc.Marshal(CloudMessage{
		Header:   hdr,
		Width:    cloud.Width,
		Height:   cloud.Height,
		Encoding: encoding,
		Data:     data,
	})
}

// EncodeExtrinsics builds the wire payload for the extrinsics transform.
func (c *Codec) EncodeExtrinsics(hdr Header, ext camera.Extrinsics) ([]byte, error) {
	return c.enc.Marshal(ExtrinsicsMessage{
		Header: hdr,
		TX:     ext.TX,
		TY:     ext.TY,
		TZ:     ext.TZ,
		RotX:   ext.RotX,
		RotY:   ext.RotY,
		RotZ:   ext.RotZ,
	})
}
