package coreid

// DBGMCU_IDCODE addresses. Cortex-M0/M0+ parts map it on the APB bus.
const (
	DBGMCUIDCode   = 0xE0042000
	DBGMCUIDCodeM0 = 0x40015800
)

var chips = map[uint16]Chip{
	// STM32F0
	0x440: {Name: "STM32F05x", Family: "STM32F0", Core: "Cortex-M0"},
	0x444: {Name: "STM32F03x", Family: "STM32F0", Core: "Cortex-M0"},
	0x448: {Name: "STM32F07x", Family: "STM32F0", Core: "Cortex-M0"},

	// STM32F1
	0x410: {Name: "STM32F10x (Medium-density)", Family: "STM32F1", Core: "Cortex-M3"},
	0x412: {Name: "STM32F10x (Low-density)", Family: "STM32F1", Core: "Cortex-M3"},
	0x414: {Name: "STM32F10x (High-density)", Family: "STM32F1", Core: "Cortex-M3"},
	0x418: {Name: "STM32F10x (Connectivity line)", Family: "STM32F1", Core: "Cortex-M3"},
	0x430: {Name: "STM32F10x (XL-density)", Family: "STM32F1", Core: "Cortex-M3"},

	// STM32F3 / F4 / F7
	0x422: {Name: "STM32F30x/31x", Family: "STM32F3", Core: "Cortex-M4", HasFPU: true},
	0x413: {Name: "STM32F40x/41x", Family: "STM32F4", Core: "Cortex-M4", HasFPU: true},
	0x419: {Name: "STM32F42x/43x", Family: "STM32F4", Core: "Cortex-M4", HasFPU: true},
	0x449: {Name: "STM32F74x/75x", Family: "STM32F7", Core: "Cortex-M7", HasFPU: true},

	// STM32L / G
	0x416: {Name: "STM32L1xx (Cat.1)", Family: "STM32L1", Core: "Cortex-M3"},
	0x415: {Name: "STM32L47x/48x", Family: "STM32L4", Core: "Cortex-M4", HasFPU: true},
	0x460: {Name: "STM32G07x/08x", Family: "STM32G0", Core: "Cortex-M0+"},
}

// LookupChip decodes a DBGMCU_IDCODE value: DEV_ID in [11:0], REV_ID in
// [31:16]. Unknown devices yield a placeholder entry and false.
func LookupChip(dbgmcu uint32) (Chip, bool) {
	devID := uint16(dbgmcu & 0xFFF)
	rev := uint16(dbgmcu >> 16)

	c, ok := chips[devID]
	if !ok {
		c = Chip{Name: "Unknown device", Family: "unknown"}
	}
	c.DevID = devID
	c.Revision = rev
	return c, ok
}

// ChipIDAddress returns where DBGMCU_IDCODE lives for a target with the
// given debug port.
func ChipIDAddress(dp IDCode) uint32 {
	if dp.IsCortexM0() {
		return DBGMCUIDCodeM0
	}
	return DBGMCUIDCode
}
