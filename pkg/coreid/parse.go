package coreid

import "fmt"

// Parse splits a raw debug port IDCODE into its fields.
func Parse(raw uint32) IDCode {
	return IDCode{
		Raw:          raw,
		Version:      uint8((raw >> 28) & 0xF),
		PartNumber:   uint16((raw >> 12) & 0xFFFF),
		DesignerCode: uint16((raw >> 1) & 0x7FF),
		Valid:        raw&0x1 == 0x1,
	}
}

// debugPorts names the ARM debug port implementations by part number.
var debugPorts = map[uint16]string{
	0xBA00: "JTAG-DP",
	0xBA01: "SW-DP",
	0xBA02: "SW-DP (multi-drop)",
	0xBB11: "SW-DP (Cortex-M0)",
	0xBC11: "SW-DP (Cortex-M0+)",
}

// DebugPort returns the debug port name, or false for an unknown part.
func (id IDCode) DebugPort() (string, bool) {
	name, ok := debugPorts[id.PartNumber]
	return name, ok
}

// IsCortexM0 reports whether the debug port belongs to a v6-M core, whose
// DBGMCU block lives on the APB bus rather than the private peripheral bus.
func (id IDCode) IsCortexM0() bool {
	return id.PartNumber == 0xBB11 || id.PartNumber == 0xBC11
}

func (id IDCode) String() string {
	if !id.Valid {
		return fmt.Sprintf("invalid idcode 0x%08X", id.Raw)
	}
	port, ok := id.DebugPort()
	if !ok {
		port = fmt.Sprintf("part 0x%04X", id.PartNumber)
	}
	d, _ := LookupDesigner(id.DesignerCode)
	return fmt.Sprintf("%s v%d by %s (0x%08X)", port, id.Version, d.Abbreviation, id.Raw)
}
