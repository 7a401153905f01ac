package stlink

import "time"

// USB identity of ST-Link probes.
const (
	VendorST = 0x0483

	ProductV1     = 0x3744 // ST-Link/V1, SCSI-wrapped commands
	ProductV2     = 0x3748 // ST-Link/V2
	ProductNucleo = 0x374b // ST-Link/V2-1 as found on Nucleo boards
)

// Endpoint numbers. The reply endpoint is IN 1 on every product; the request
// endpoint is OUT 2, except on the V2-1 which moved it to OUT 1.
const (
	replyEndpoint      = 1
	requestEndpoint    = 2
	requestEndpointV21 = 1
)

// Command buffer geometry.
const (
	legacyCommandSize = 31 // SCSI command block wrapper
	directCommandSize = 16

	legacyHeaderSize = 15
	legacyStatusSize = 13
	legacyCDBLength  = 0x0A
)

var legacyTag = [4]byte{'U', 'S', 'B', 'C'}

// TransferTimeout bounds every bulk sub-transfer of an exchange.
const TransferTimeout = 3000 * time.Millisecond

// Top level opcodes.
const (
	cmdGetVersion       = 0xF1
	cmdDebug            = 0xF2
	cmdDFU              = 0xF3
	cmdGetCurrentMode   = 0xF5
	cmdGetTargetVoltage = 0xF7
)

// DFU_COMMAND sub-opcodes.
const (
	dfuExit = 0x07
)

// DEBUG_COMMAND sub-opcodes.
const (
	debugGetStatus     = 0x01
	debugForceDebug    = 0x02
	debugResetSys      = 0x03
	debugReadAllRegs   = 0x04
	debugReadReg       = 0x05
	debugWriteReg      = 0x06
	debugReadMem32     = 0x07
	debugWriteMem32    = 0x08
	debugRunCore       = 0x09
	debugStepCore      = 0x0A
	debugWriteMem8     = 0x0D
	debugEnter         = 0x20
	debugExit          = 0x21
	debugReadCoreID    = 0x22
	debugWriteDebug32  = 0x35
	debugReadDebug32   = 0x36
	debugDriveNRST     = 0x3C
	debugSWDSetFreq    = 0x43
	debugEnterSWD      = 0xA3
	maxWriteMem8Length = 64
)

// Reply lengths of the fixed-size operations.
const (
	versionReplyLen  = 6
	voltageReplyLen  = 8
	debug32ReplyLen  = 8
	modeReplyLen     = 2
	coreIDReplyLen   = 4
	statusReplyLen   = 2
	ackReplyLen      = 2
	allRegsReplyLen  = 84
	oneRegReplyLen   = 4
	voltageScaleMv   = 2400
	lowVoltageWarnMv = 1500
)

// Wire values of GET_CURRENT_MODE.
const (
	modeCodeDFU   = 0x00
	modeCodeMass  = 0x01
	modeCodeDebug = 0x02
)

// Wire values of GETSTATUS.
const (
	statusCodeRunning = 0x80
	statusCodeHalted  = 0x81
)

// Cortex-M debug registers used to reach core registers that have no direct
// opcode (ARMv7-M ARM, C1.6).
const (
	RegDHCSR = 0xE000EDF0
	RegDCRSR = 0xE000EDF4
	RegDCRDR = 0xE000EDF8

	dcrsrWrite = 1 << 16
)

// Values accepted by DriveReset.
const (
	ResetLow   = 0x00
	ResetHigh  = 0x01
	ResetPulse = 0x02
)

// forcedResetSerial is reported by a batch of clone probes that only work
// after a target reset.
const forcedResetSerial = "000000000001"

// Variant is the command framing a probe speaks. It is fixed when the session
// is opened.
type Variant uint8

const (
	Legacy Variant = iota + 1
	Direct
)

func (v Variant) String() string {
	switch v {
	case Legacy:
		return "legacy"
	case Direct:
		return "direct"
	default:
		return "unknown"
	}
}

func (v Variant) commandSize() int {
	if v == Legacy {
		return legacyCommandSize
	}
	return directCommandSize
}

// Direction is the SCSI data direction flag of a legacy command block.
type Direction uint8

const (
	ToDevice   Direction = 0x00
	FromDevice Direction = 0x80
)

// Mode is the probe operating mode reported by GET_CURRENT_MODE.
type Mode uint8

const (
	ModeUnknown Mode = iota
	ModeDFU
	ModeMassStorage
	ModeDebug
)

func (m Mode) String() string {
	switch m {
	case ModeDFU:
		return "dfu"
	case ModeMassStorage:
		return "mass-storage"
	case ModeDebug:
		return "debug"
	default:
		return "unknown"
	}
}

func decodeMode(code byte) Mode {
	switch code {
	case modeCodeDFU:
		return ModeDFU
	case modeCodeMass:
		return ModeMassStorage
	case modeCodeDebug:
		return ModeDebug
	default:
		return ModeUnknown
	}
}

// CoreStatus is the target core state reported by GETSTATUS.
type CoreStatus uint8

const (
	CoreStatusUnknown CoreStatus = iota
	CoreRunning
	CoreHalted
)

func (c CoreStatus) String() string {
	switch c {
	case CoreRunning:
		return "running"
	case CoreHalted:
		return "halted"
	default:
		return "unknown"
	}
}

func decodeCoreStatus(code byte) CoreStatus {
	switch code {
	case statusCodeRunning:
		return CoreRunning
	case statusCodeHalted:
		return CoreHalted
	default:
		return CoreStatusUnknown
	}
}

type knownProbe struct {
	ProductID       uint16
	Description     string
	Variant         Variant
	RequestEndpoint int
}

var knownProbes = []knownProbe{
	{ProductID: ProductV1, Description: "ST-Link/V1", Variant: Legacy, RequestEndpoint: requestEndpoint},
	{ProductID: ProductV2, Description: "ST-Link/V2", Variant: Direct, RequestEndpoint: requestEndpoint},
	{ProductID: ProductNucleo, Description: "ST-Link/V2-1", Variant: Direct, RequestEndpoint: requestEndpointV21},
}

func lookupProbe(product uint16) (knownProbe, bool) {
	for _, p := range knownProbes {
		if p.ProductID == product {
			return p, true
		}
	}
	return knownProbe{}, false
}
