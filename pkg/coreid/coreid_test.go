package coreid

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		raw      uint32
		version  uint8
		part     uint16
		designer string
		port     string
	}{
		{0x1BA01477, 1, 0xBA01, "ARM", "SW-DP"},
		{0x2BA01477, 2, 0xBA01, "ARM", "SW-DP"},
		{0x4BA00477, 4, 0xBA00, "ARM", "JTAG-DP"},
		{0x0BB11477, 0, 0xBB11, "ARM", "SW-DP (Cortex-M0)"},
		{0x0BC11477, 0, 0xBC11, "ARM", "SW-DP (Cortex-M0+)"},
	}

	for _, tc := range tests {
		id := Parse(tc.raw)
		if !id.Valid {
			t.Fatalf("0x%08X: marker bit not detected", tc.raw)
		}
		if id.Version != tc.version || id.PartNumber != tc.part {
			t.Fatalf("0x%08X: version/part = %d/0x%04X, want %d/0x%04X", tc.raw, id.Version, id.PartNumber, tc.version, tc.part)
		}
		d, ok := LookupDesigner(id.DesignerCode)
		if !ok || d.Abbreviation != tc.designer {
			t.Fatalf("0x%08X: designer = %+v, want %s", tc.raw, d, tc.designer)
		}
		if port, ok := id.DebugPort(); !ok || port != tc.port {
			t.Fatalf("0x%08X: debug port = %q, want %q", tc.raw, port, tc.port)
		}
	}
}

func TestIDCodeString(t *testing.T) {
	if got := Parse(0x1BA01477).String(); got != "SW-DP v1 by ARM (0x1BA01477)" {
		t.Fatalf("String = %q", got)
	}
	if got := Parse(0x12345670).String(); got != "invalid idcode 0x12345670" {
		t.Fatalf("String = %q", got)
	}
}

func TestLookupDesignerUnknown(t *testing.T) {
	d, ok := LookupDesigner(0x7FF)
	if ok {
		t.Fatalf("expected unknown designer")
	}
	if d.Name != "Unknown (0x7FF)" {
		t.Fatalf("Name = %q", d.Name)
	}
}

func TestLookupChip(t *testing.T) {
	c, ok := LookupChip(0x10076413)
	if !ok {
		t.Fatalf("STM32F4 DEV_ID not found")
	}
	if c.Family != "STM32F4" || c.Revision != 0x1007 || c.DevID != 0x413 || !c.HasFPU {
		t.Fatalf("unexpected chip: %+v", c)
	}

	if _, ok := LookupChip(0x00000FFF); ok {
		t.Fatalf("expected unknown chip")
	}
}

func TestChipIDAddress(t *testing.T) {
	if got := ChipIDAddress(Parse(0x0BB11477)); got != DBGMCUIDCodeM0 {
		t.Fatalf("M0 address = 0x%08X", got)
	}
	if got := ChipIDAddress(Parse(0x1BA01477)); got != DBGMCUIDCode {
		t.Fatalf("M3/M4 address = 0x%08X", got)
	}
}
