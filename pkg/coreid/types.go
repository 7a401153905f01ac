// Package coreid decodes the identifiers a debug probe reads from an ARM
// target: the debug port IDCODE returned by READCOREID and the STM32
// DBGMCU_IDCODE register.
package coreid

// IDCode is a parsed ARM debug port IDCODE (ADIv5 DPIDR layout).
type IDCode struct {
	Raw          uint32 // full IDCODE
	Version      uint8  // [31:28]
	PartNumber   uint16 // [27:12]
	DesignerCode uint16 // [11:1] JEP106, continuation count in [10:7]
	Valid        bool   // bit 0 == 1
}

// Designer is a JEP106 manufacturer entry.
type Designer struct {
	Code         uint16
	Name         string
	Abbreviation string
}

// Chip is an STM32 device line identified by the DEV_ID field of
// DBGMCU_IDCODE.
type Chip struct {
	DevID    uint16
	Revision uint16
	Name     string
	Family   string
	Core     string
	HasFPU   bool
}
