package node

import (
	"bytes"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/nerrad567/gray-logic-tof/internal/camera"
)

func testHeader() Header {
	return Header{
		FrameID:    "camera_optical_link",
		CapturedAt: time.Unix(1700000000, 123).UTC(),
		Count:      7,
	}
}

func TestEncodeImage_SmallStaysRaw(t *testing.T) {
	codec, err := NewCodec()
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}

	img := camera.Image{Width: 2, Height: 2, Format: "mono16le", Data: []byte{1, 0, 2, 0, 3, 0, 4, 0}}
	payload, err := codec.EncodeImage(testHeader(), img)
	if err != nil {
		t.Fatalf("EncodeImage() error = %v", err)
	}

	var msg ImageMessage
	if err := cbor.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("decoding message: %v", err)
	}
	if msg.Encoding != EncodingRaw {
		t.Errorf("Encoding = %q, want raw", msg.Encoding)
	}
	if !bytes.Equal(msg.Data, img.Data) {
		t.Error("raw payload does not match source data")
	}
	if msg.Header.Count != 7 {
		t.Errorf("Header.Count = %d, want 7", msg.Header.Count)
	}
}

func TestEncodeCloud_LargeCompresses(t *testing.T) {
	codec, err := NewCodec()
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}

	// Repetitive data well above the compression threshold.
	cloud := camera.PointCloud{Width: 100, Height: 100, Data: make([]byte, 100*100*12)}
	payload, err := codec.EncodeCloud(testHeader(), cloud)
	if err != nil {
		t.Fatalf("EncodeCloud() error = %v", err)
	}

	var msg CloudMessage
	if err := cbor.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("decoding message: %v", err)
	}
	if msg.Encoding != EncodingZstd {
		t.Fatalf("Encoding = %q, want zstd", msg.Encoding)
	}
	if len(msg.Data) >= len(cloud.Data) {
		t.Errorf("compressed size %d not smaller than source %d", len(msg.Data), len(cloud.Data))
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer dec.Close()
	restored, err := dec.DecodeAll(msg.Data, nil)
	if err != nil {
		t.Fatalf("decompressing payload: %v", err)
	}
	if !bytes.Equal(restored, cloud.Data) {
		t.Error("decompressed payload does not match source data")
	}
}

func TestEncodeExtrinsics(t *testing.T) {
	codec, err := NewCodec()
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}

	ext := camera.Extrinsics{TX: 0.1, TY: 0.2, TZ: 0.3, RotX: 1.1, RotY: 1.2, RotZ: 1.3}
	payload, err := codec.EncodeExtrinsics(testHeader(), ext)
	if err != nil {
		t.Fatalf("EncodeExtrinsics() error = %v", err)
	}

	var msg ExtrinsicsMessage
	if err := cbor.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("decoding message: %v", err)
	}
	if msg.TX != 0.1 || msg.RotZ != 1.3 {
		t.Errorf("decoded transform = %+v, want %+v", msg, ext)
	}
	if msg.Header.FrameID != "camera_optical_link" {
		t.Errorf("Header.FrameID = %q", msg.Header.FrameID)
	}
}
