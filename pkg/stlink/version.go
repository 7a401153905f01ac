package stlink

import (
	"encoding/binary"
	"fmt"

	"github.com/boljen/go-bitmap"
)

// Feature is a firmware capability gated on the reported version.
type Feature int

const (
	FeatureTargetVoltage Feature = iota
	FeatureSWDSetFreq
	FeatureJTAGSetFreq
	FeatureMem16Bit
	numFeatures
)

// Version is the firmware version reported by GET_VERSION.
type Version struct {
	Stlink int
	JTAG   int
	SWIM   int

	VendorID  uint16
	ProductID uint16

	features bitmap.Bitmap
}

// ParseVersion decodes a GET_VERSION reply: a big-endian word holding the
// probe generation (bits 15..12), JTAG API (11..6) and SWIM (5..0) versions,
// then the little-endian USB vendor and product ids.
func ParseVersion(raw []byte) (Version, error) {
	if len(raw) < versionReplyLen {
		return Version{}, fmt.Errorf("%w: version reply is %d bytes, want %d", ErrProtocol, len(raw), versionReplyLen)
	}
	word := binary.BigEndian.Uint16(raw[0:2])
	v := Version{
		Stlink:    int(word>>12) & 0x0F,
		JTAG:      int(word>>6) & 0x3F,
		SWIM:      int(word) & 0x3F,
		VendorID:  binary.LittleEndian.Uint16(raw[2:4]),
		ProductID: binary.LittleEndian.Uint16(raw[4:6]),
	}
	v.features = v.featureFlags()
	return v, nil
}

func (v Version) featureFlags() bitmap.Bitmap {
	flags := bitmap.New(int(numFeatures))
	if v.Stlink < 2 {
		return flags
	}
	flags.Set(int(FeatureTargetVoltage), v.JTAG >= 13)
	flags.Set(int(FeatureSWDSetFreq), v.JTAG >= 22)
	flags.Set(int(FeatureJTAGSetFreq), v.JTAG >= 24)
	flags.Set(int(FeatureMem16Bit), v.JTAG >= 26)
	return flags
}

// Has reports whether the firmware supports f.
func (v Version) Has(f Feature) bool {
	if f < 0 || f >= numFeatures || len(v.features) == 0 {
		return false
	}
	return v.features.Get(int(f))
}

func (v Version) String() string {
	return fmt.Sprintf("V%dJ%dS%d", v.Stlink, v.JTAG, v.SWIM)
}
