package stlink

import (
	"errors"
	"testing"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want string
		has  []Feature
		not  []Feature
	}{
		{
			name: "v1",
			raw:  []byte{0x12, 0x80, 0x83, 0x04, 0x44, 0x37},
			want: "V1J10S0",
			not:  []Feature{FeatureTargetVoltage, FeatureSWDSetFreq},
		},
		{
			name: "v2 j21",
			raw:  []byte{0x25, 0x40, 0x83, 0x04, 0x48, 0x37},
			want: "V2J21S0",
			has:  []Feature{FeatureTargetVoltage},
			not:  []Feature{FeatureSWDSetFreq, FeatureJTAGSetFreq},
		},
		{
			name: "v2 j27 s6",
			raw:  []byte{0x26, 0xC6, 0x83, 0x04, 0x48, 0x37},
			want: "V2J27S6",
			has:  []Feature{FeatureTargetVoltage, FeatureSWDSetFreq, FeatureJTAGSetFreq, FeatureMem16Bit},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v, err := ParseVersion(tc.raw)
			if err != nil {
				t.Fatalf("ParseVersion returned error: %v", err)
			}
			if v.String() != tc.want {
				t.Fatalf("version = %s, want %s", v, tc.want)
			}
			if v.VendorID != VendorST {
				t.Fatalf("vendor = %04x, want %04x", v.VendorID, VendorST)
			}
			for _, f := range tc.has {
				if !v.Has(f) {
					t.Fatalf("%s lacks feature %d", v, f)
				}
			}
			for _, f := range tc.not {
				if v.Has(f) {
					t.Fatalf("%s unexpectedly has feature %d", v, f)
				}
			}
		})
	}
}

func TestParseVersionShort(t *testing.T) {
	if _, err := ParseVersion([]byte{0x26, 0xC6}); !errors.Is(err, ErrProtocol) {
		t.Fatalf("ParseVersion error = %v, want ErrProtocol", err)
	}
}

func TestZeroVersionHasNothing(t *testing.T) {
	var v Version
	if v.Has(FeatureTargetVoltage) || v.Has(Feature(99)) {
		t.Fatalf("zero Version reports features")
	}
}
