package camera

import (
	"reflect"
	"testing"
)

func TestBuffersFromSchemaMask(t *testing.T) {
	tests := []struct {
		name string
		mask uint16
		want []BufferKind
	}{
		{
			name: "empty mask",
			mask: 0,
			want: nil,
		},
		{
			name: "distance and norm amplitude",
			mask: 0b0011,
			want: []BufferKind{BufferRadialDistance, BufferNormAmplitude},
		},
		{
			name: "all legacy kinds",
			mask: 0b1111,
			want: []BufferKind{BufferRadialDistance, BufferNormAmplitude, BufferAmplitude, BufferXYZ},
		},
		{
			name: "cartesian only",
			mask: MaskXYZ,
			want: []BufferKind{BufferXYZ},
		},
		{
			name: "unknown bits ignored",
			mask: 0xfff0,
			want: nil,
		},
		{
			name: "known bits survive unknown neighbours",
			mask: 0xff00 | MaskNormAmplitude | MaskXYZ,
			want: []BufferKind{BufferNormAmplitude, BufferXYZ},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuffersFromSchemaMask(tt.mask)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("BuffersFromSchemaMask(%#b) = %v, want %v", tt.mask, got, tt.want)
			}
		})
	}
}

func TestBuffersFromSchemaMask_CanonicalOrder(t *testing.T) {
	// Order must not depend on bit position tricks; it is always
	// distance, norm amplitude, raw amplitude, cartesian.
	got := BuffersFromSchemaMask(MaskXYZ | MaskRadialDistance)
	want := []BufferKind{BufferRadialDistance, BufferXYZ}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BuffersFromSchemaMask() = %v, want canonical order %v", got, want)
	}
}

func TestParseBufferKinds(t *testing.T) {
	got, err := ParseBufferKinds([]string{"xyz", "rgb", "extrinsics"})
	if err != nil {
		t.Fatalf("ParseBufferKinds() error = %v", err)
	}
	want := []BufferKind{BufferXYZ, BufferRGB, BufferExtrinsics}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseBufferKinds() = %v, want %v", got, want)
	}
}

func TestParseBufferKinds_Unknown(t *testing.T) {
	if _, err := ParseBufferKinds([]string{"xyz", "thermal"}); err == nil {
		t.Error("ParseBufferKinds() expected error for unknown kind, got nil")
	}
}

func TestParseBufferKinds_Duplicate(t *testing.T) {
	if _, err := ParseBufferKinds([]string{"xyz", "xyz"}); err == nil {
		t.Error("ParseBufferKinds() expected error for duplicate kind, got nil")
	}
}
