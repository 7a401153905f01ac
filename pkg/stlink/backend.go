package stlink

// Backend is the capability set a debugger front end drives a probe through.
// *Session is the USB implementation; other transports plug in behind the
// same interface.
type Backend interface {
	Info() ProbeInfo
	Close() error

	EnterSWD() error
	ExitDFU() error
	ExitDebugMode() error
	CurrentMode() (Mode, error)

	ReadVersion() (Version, error)
	TargetVoltage() (int, error)
	ReadCoreID() (uint32, error)
	ReadStatus() (CoreStatus, error)

	ForceDebug() error
	ResetSystem() error
	DriveReset(value byte) error
	Step() error
	Run() error
	SetSWDClock(divisor uint16) error

	ReadDebug32(addr uint32) (uint32, error)
	WriteDebug32(addr, value uint32) error
	ReadMem32(addr uint32, length uint16) ([]byte, error)
	WriteMem32(addr uint32, data []byte) error
	WriteMem8(addr uint32, data []byte) error

	ReadAllRegs(regs *RegisterFile) error
	ReadReg(idx int, regs *RegisterFile) (uint32, error)
	WriteReg(idx int, value uint32) error
	ReadUnsupportedReg(idx int, regs *RegisterFile) (uint32, error)
	ReadAllUnsupportedRegs(regs *RegisterFile) error
	WriteUnsupportedReg(idx int, value uint32, regs *RegisterFile) error
}

var _ Backend = (*Session)(nil)
