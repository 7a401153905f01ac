package coreid

import "fmt"

// designers is a subset of the JEP106 database keyed by the 11-bit designer
// field: continuation count << 7 | identity code.
var designers = map[uint16]Designer{
	0x001: {Code: 0x001, Name: "AMD", Abbreviation: "AMD"},
	0x00E: {Code: 0x00E, Name: "Freescale (Motorola)", Abbreviation: "Freescale"},
	0x015: {Code: 0x015, Name: "NXP (Philips)", Abbreviation: "NXP"},
	0x017: {Code: 0x017, Name: "Texas Instruments", Abbreviation: "TI"},
	0x01F: {Code: 0x01F, Name: "Atmel", Abbreviation: "Atmel"},
	0x020: {Code: 0x020, Name: "STMicroelectronics", Abbreviation: "STM"},
	0x23B: {Code: 0x23B, Name: "ARM Ltd", Abbreviation: "ARM"},
	0x244: {Code: 0x244, Name: "Nordic Semiconductor", Abbreviation: "Nordic"},
}

// LookupDesigner returns the JEP106 entry for code. Unknown codes yield a
// placeholder entry and false.
func LookupDesigner(code uint16) (Designer, bool) {
	d, ok := designers[code]
	if !ok {
		return Designer{
			Code:         code,
			Name:         fmt.Sprintf("Unknown (0x%03X)", code),
			Abbreviation: "Unknown",
		}, false
	}
	return d, true
}
