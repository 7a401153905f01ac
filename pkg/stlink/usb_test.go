package stlink

import (
	"errors"
	"testing"
)

// Integration test - only runs with real hardware
func TestUSBProbeIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	reg := NewRegistry(WithLogger(quietLogger()))
	defer reg.CloseAll()

	sessions, err := reg.Probe(MatchCriteria{})
	if errors.Is(err, ErrDeviceNotFound) || errors.Is(err, ErrTransport) {
		t.Skipf("No ST-Link hardware found: %v", err)
	}
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}

	for _, s := range sessions {
		t.Logf("%s core id 0x%08x", s.Info().Label(), s.CoreID())
		if s.Version().Stlink == 0 {
			t.Errorf("%s: firmware version not cached", s.Info().Label())
		}
		if _, err := s.ReadStatus(); err != nil {
			t.Errorf("%s: ReadStatus failed: %v", s.Info().Label(), err)
		}
	}
}

func TestDeviceDescString(t *testing.T) {
	d := DeviceDesc{Bus: 1, Address: 12, Vendor: VendorST, Product: ProductNucleo}
	if got := d.String(); got != "001:012 0483:374b" {
		t.Fatalf("String = %q", got)
	}
}
