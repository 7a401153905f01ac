package stlink

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ReadVersion queries the firmware version and caches it on the session.
func (s *Session) ReadVersion() (Version, error) {
	s.buildHeader(FromDevice, versionReplyLen)
	s.cmd.put(cmdGetVersion)

	reply, err := s.roundTrip(versionReplyLen)
	if err != nil {
		return Version{}, fmt.Errorf("get version: %w", err)
	}
	v, err := ParseVersion(reply)
	if err != nil {
		return Version{}, err
	}
	s.version = v
	s.log.Debugf("firmware %s (usb %04x:%04x)", v, v.VendorID, v.ProductID)
	return v, nil
}

// TargetVoltage returns the target supply voltage in millivolts.
func (s *Session) TargetVoltage() (int, error) {
	s.buildHeader(FromDevice, voltageReplyLen)
	s.cmd.put(cmdGetTargetVoltage)

	reply, err := s.roundTrip(voltageReplyLen)
	if err != nil {
		return 0, fmt.Errorf("get target voltage: %w", err)
	}
	if err := expectReply("get target voltage", reply, voltageReplyLen); err != nil {
		return 0, err
	}
	return decodeVoltage(reply)
}

func decodeVoltage(reply []byte) (int, error) {
	factor := binary.LittleEndian.Uint32(reply[0:4])
	reading := binary.LittleEndian.Uint32(reply[4:8])
	if factor == 0 {
		return 0, fmt.Errorf("%w: target voltage reference factor is zero", ErrProtocol)
	}
	return int(uint64(voltageScaleMv) * uint64(reading) / uint64(factor)), nil
}

// ReadDebug32 reads one 32-bit word through the debug port.
func (s *Session) ReadDebug32(addr uint32) (uint32, error) {
	s.buildHeader(FromDevice, debug32ReplyLen)
	s.cmd.put(cmdDebug, debugReadDebug32)
	s.cmd.putUint32(addr)

	reply, err := s.roundTrip(debug32ReplyLen)
	if err != nil {
		return 0, fmt.Errorf("read debug32 0x%08x: %w", addr, err)
	}
	if err := expectReply("read debug32", reply, debug32ReplyLen); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(reply[4:8]), nil
}

// WriteDebug32 writes one 32-bit word through the debug port.
func (s *Session) WriteDebug32(addr, value uint32) error {
	s.buildHeader(FromDevice, ackReplyLen)
	s.cmd.put(cmdDebug, debugWriteDebug32)
	s.cmd.putUint32(addr)
	s.cmd.putUint32(value)

	if _, err := s.roundTrip(ackReplyLen); err != nil {
		return fmt.Errorf("write debug32 0x%08x: %w", addr, err)
	}
	return nil
}

// ReadMem32 reads length bytes of target memory using word accesses. The
// length must be a multiple of four. The returned slice is a copy.
func (s *Session) ReadMem32(addr uint32, length uint16) ([]byte, error) {
	if length%4 != 0 {
		return nil, fmt.Errorf("%w: 32-bit read of %d bytes", ErrInvalidLength, length)
	}
	s.buildHeader(FromDevice, uint32(length))
	s.cmd.put(cmdDebug, debugReadMem32)
	s.cmd.putUint32(addr)
	s.cmd.putUint16(length)

	reply, err := s.roundTrip(int(length))
	if err != nil {
		return nil, fmt.Errorf("read mem32 0x%08x: %w", addr, err)
	}
	if err := expectReply("read mem32", reply, int(length)); err != nil {
		return nil, err
	}
	return append([]byte(nil), reply...), nil
}

// WriteMem32 writes data to target memory using word accesses. The length
// must be a multiple of four.
func (s *Session) WriteMem32(addr uint32, data []byte) error {
	if len(data)%4 != 0 || len(data) > math.MaxUint16 {
		return fmt.Errorf("%w: 32-bit write of %d bytes", ErrInvalidLength, len(data))
	}
	if len(data) == 0 {
		return nil
	}
	s.buildHeader(ToDevice, uint32(len(data)))
	s.cmd.put(cmdDebug, debugWriteMem32)
	s.cmd.putUint32(addr)
	s.cmd.putUint16(uint16(len(data)))

	if err := s.sendWithData(data); err != nil {
		return fmt.Errorf("write mem32 0x%08x: %w", addr, err)
	}
	return nil
}

// WriteMem8 writes up to 64 bytes to target memory using byte accesses.
func (s *Session) WriteMem8(addr uint32, data []byte) error {
	if len(data) > maxWriteMem8Length {
		return fmt.Errorf("%w: 8-bit write of %d bytes, limit %d", ErrInvalidLength, len(data), maxWriteMem8Length)
	}
	if len(data) == 0 {
		return nil
	}
	s.buildHeader(ToDevice, 0)
	s.cmd.put(cmdDebug, debugWriteMem8)
	s.cmd.putUint32(addr)
	s.cmd.putUint16(uint16(len(data)))

	if err := s.sendWithData(data); err != nil {
		return fmt.Errorf("write mem8 0x%08x: %w", addr, err)
	}
	return nil
}

// CurrentMode reports the probe operating mode.
func (s *Session) CurrentMode() (Mode, error) {
	s.buildHeader(FromDevice, modeReplyLen)
	s.cmd.put(cmdGetCurrentMode)

	reply, err := s.roundTrip(modeReplyLen)
	if err != nil {
		return ModeUnknown, fmt.Errorf("get current mode: %w", err)
	}
	if len(reply) == 0 {
		return ModeUnknown, fmt.Errorf("%w: empty mode reply", ErrProtocol)
	}
	return decodeMode(reply[0]), nil
}

// ReadCoreID reads the debug port identifier of the target and caches it.
func (s *Session) ReadCoreID() (uint32, error) {
	s.buildHeader(FromDevice, coreIDReplyLen)
	s.cmd.put(cmdDebug, debugReadCoreID)

	reply, err := s.roundTrip(coreIDReplyLen)
	if err != nil {
		return 0, fmt.Errorf("read core id: %w", err)
	}
	if err := expectReply("read core id", reply, coreIDReplyLen); err != nil {
		return 0, err
	}
	s.coreID = binary.LittleEndian.Uint32(reply)
	return s.coreID, nil
}

// ReadStatus queries the core state and caches it.
func (s *Session) ReadStatus() (CoreStatus, error) {
	s.buildHeader(FromDevice, statusReplyLen)
	s.cmd.put(cmdDebug, debugGetStatus)

	reply, err := s.roundTrip(statusReplyLen)
	if err != nil {
		return CoreStatusUnknown, fmt.Errorf("get status: %w", err)
	}
	if err := expectReply("get status", reply, statusReplyLen); err != nil {
		return CoreStatusUnknown, err
	}
	copy(s.statusRaw[:], reply)
	s.coreStatus = decodeCoreStatus(reply[0])
	return s.coreStatus, nil
}

// ForceDebug halts the core.
func (s *Session) ForceDebug() error {
	return s.debugCommand("force debug", debugForceDebug)
}

// ResetSystem resets the target through the debug port.
func (s *Session) ResetSystem() error {
	return s.debugCommand("reset system", debugResetSys)
}

// DriveReset drives the target NRST line: ResetLow, ResetHigh or ResetPulse.
func (s *Session) DriveReset(value byte) error {
	return s.debugCommand("drive nrst", debugDriveNRST, value)
}

// Step single-steps the halted core.
func (s *Session) Step() error {
	return s.debugCommand("step core", debugStepCore)
}

// Run resumes the core.
func (s *Session) Run() error {
	return s.debugCommand("run core", debugRunCore)
}

func (s *Session) debugCommand(op string, sub byte, args ...byte) error {
	s.buildHeader(FromDevice, ackReplyLen)
	s.cmd.put(cmdDebug, sub)
	s.cmd.put(args...)

	if _, err := s.roundTrip(ackReplyLen); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// EnterSWD switches the probe into SWD debug mode. The probe does not reply.
func (s *Session) EnterSWD() error {
	s.buildHeader(FromDevice, 0)
	s.cmd.put(cmdDebug, debugEnter, debugEnterSWD)
	if err := s.sendOnly(); err != nil {
		return fmt.Errorf("enter swd: %w", err)
	}
	return nil
}

// ExitDFU leaves DFU mode. The probe does not reply.
func (s *Session) ExitDFU() error {
	s.buildHeader(FromDevice, 0)
	s.cmd.put(cmdDFU, dfuExit)
	if err := s.sendOnly(); err != nil {
		return fmt.Errorf("exit dfu: %w", err)
	}
	return nil
}

// ExitDebugMode leaves debug mode. The probe does not reply.
func (s *Session) ExitDebugMode() error {
	s.buildHeader(FromDevice, 0)
	s.cmd.put(cmdDebug, debugExit)
	if err := s.sendOnly(); err != nil {
		return fmt.Errorf("exit debug: %w", err)
	}
	return nil
}

// SetSWDClock programs the SWD clock divisor. Firmware before V2J22 has no
// such command and ErrUnsupportedFeature is returned without a transfer.
func (s *Session) SetSWDClock(divisor uint16) error {
	if s.version.Stlink < 2 || !s.version.Has(FeatureSWDSetFreq) {
		return fmt.Errorf("%w: swd clock needs V2J22 or later, probe is %s", ErrUnsupportedFeature, s.version)
	}
	s.buildHeader(FromDevice, ackReplyLen)
	s.cmd.put(cmdDebug, debugSWDSetFreq)
	s.cmd.putUint16(divisor)

	if _, err := s.roundTrip(ackReplyLen); err != nil {
		return fmt.Errorf("set swd clock: %w", err)
	}
	return nil
}
