package node

import (
	"reflect"
	"testing"

	"github.com/nerrad567/gray-logic-tof/internal/camera"
	"github.com/nerrad567/gray-logic-tof/internal/infrastructure/config"
)

func testParams() Params {
	return FromConfig(config.Default().Camera, "info")
}

func TestApplyBatch_HotParameter(t *testing.T) {
	p := testParams()

	result := p.ApplyBatch(map[string]string{"frame_latency_thresh": "30"})

	if !result.Accepted {
		t.Fatalf("batch rejected: %s", result.Reason)
	}
	if result.NeedsReentry {
		t.Error("hot parameter flagged as needing re-entry")
	}
	if p.FrameLatencyThresh != 30 {
		t.Errorf("FrameLatencyThresh = %v, want 30", p.FrameLatencyThresh)
	}
}

func TestApplyBatch_SessionAffecting(t *testing.T) {
	p := testParams()

	result := p.ApplyBatch(map[string]string{"address": "10.0.0.5"})

	if !result.Accepted {
		t.Fatalf("batch rejected: %s", result.Reason)
	}
	if !result.NeedsReentry {
		t.Error("address change did not request re-entry")
	}
	if p.Address != "10.0.0.5" {
		t.Errorf("Address = %q, want 10.0.0.5", p.Address)
	}
}

func TestApplyBatch_TimeoutNeedsReentry(t *testing.T) {
	p := testParams()

	// The acquisition timeout shapes the session's frame wait, so it is
	// a session-affecting change like the endpoint or the schema.
	result := p.ApplyBatch(map[string]string{
		"timeout_millis":         "9999",
		"timeout_tolerance_secs": "9",
	})

	if !result.Accepted {
		t.Fatalf("batch rejected: %s", result.Reason)
	}
	if !result.NeedsReentry {
		t.Error("timeout change did not request re-entry")
	}
}

func TestApplyBatch_RejectedWhole(t *testing.T) {
	p := testParams()
	before := p.Map()

	// One valid update and one invalid; neither may land.
	result := p.ApplyBatch(map[string]string{
		"address":        "10.0.0.5",
		"timeout_millis": "-1",
	})

	if result.Accepted {
		t.Fatal("invalid batch was accepted")
	}
	if result.Reason == "" {
		t.Error("rejection carries no reason")
	}
	if got := p.Map(); !reflect.DeepEqual(got, before) {
		t.Error("rejected batch mutated the parameter set")
	}
}

func TestApplyBatch_UnknownParameter(t *testing.T) {
	p := testParams()
	if result := p.ApplyBatch(map[string]string{"warp_drive": "1"}); result.Accepted {
		t.Error("unknown parameter was accepted")
	}
}

func TestApplyBatch_UnparseableValue(t *testing.T) {
	p := testParams()
	if result := p.ApplyBatch(map[string]string{"pcic_port": "not-a-port"}); result.Accepted {
		t.Error("unparseable value was accepted")
	}
}

func TestApplyBatch_NoopChangeNotListed(t *testing.T) {
	p := testParams()

	result := p.ApplyBatch(map[string]string{
		"address":              p.Address, // unchanged
		"frame_latency_thresh": "7.5",
	})

	if !result.Accepted {
		t.Fatalf("batch rejected: %s", result.Reason)
	}
	if want := []string{"frame_latency_thresh"}; !reflect.DeepEqual(result.Changed, want) {
		t.Errorf("Changed = %v, want %v", result.Changed, want)
	}
	if result.NeedsReentry {
		t.Error("unchanged session parameter triggered re-entry")
	}
}

func TestBufferKinds_ExplicitListWins(t *testing.T) {
	p := testParams()
	p.SchemaMask = 0x1
	p.Buffers = []string{"xyz", "rgb"}

	kinds, err := p.BufferKinds()
	if err != nil {
		t.Fatalf("BufferKinds() error = %v", err)
	}
	want := []camera.BufferKind{camera.BufferXYZ, camera.BufferRGB}
	if !reflect.DeepEqual(kinds, want) {
		t.Errorf("BufferKinds() = %v, want %v", kinds, want)
	}
}

func TestBufferKinds_MaskFallback(t *testing.T) {
	p := testParams()
	p.SchemaMask = 0x3
	p.Buffers = nil

	kinds, err := p.BufferKinds()
	if err != nil {
		t.Fatalf("BufferKinds() error = %v", err)
	}
	want := []camera.BufferKind{camera.BufferRadialDistance, camera.BufferNormAmplitude}
	if !reflect.DeepEqual(kinds, want) {
		t.Errorf("BufferKinds() = %v, want %v", kinds, want)
	}
}

func TestMapRoundTrip(t *testing.T) {
	p := testParams()
	p.Buffers = []string{"xyz", "rgb"}
	p.SyncClocks = true

	restored := testParams()
	for name, value := range p.Map() {
		if err := restored.set(name, value); err != nil {
			t.Fatalf("set(%q, %q) error = %v", name, value, err)
		}
	}

	if !reflect.DeepEqual(restored.Map(), p.Map()) {
		t.Errorf("round trip mismatch:\n got %v\nwant %v", restored.Map(), p.Map())
	}
}
