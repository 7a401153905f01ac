package stlink

import (
	"encoding/binary"
	"fmt"
)

// Core register indices understood by READREG and WRITEREG. Indices 0..15
// are r0..r15.
const (
	RegXPSR      = 16
	RegMainSP    = 17
	RegProcessSP = 18
	RegRW        = 19
	RegRW2       = 20

	numCoreRegs = 21
)

// Indirect register selectors written to DCRSR (ARMv7-M ARM, C1.6).
const (
	// RegSpecial packs primask, basepri, faultmask and control in one word,
	// one byte each starting at the least significant byte.
	RegSpecial = 0x14
	RegFPSCR   = 0x21
	// RegS0 is the selector of s0; s_n is RegS0+n.
	RegS0 = 0x40

	// Write-only aliases of one byte of RegSpecial.
	RegControl   = 0x1C
	RegFaultMask = 0x1D
	RegBasePri   = 0x1E
	RegPriMask   = 0x1F

	numFPRegs = 32
)

// RegisterFile is a snapshot of the core registers. The special and
// floating-point fields are only filled by the indirect accessors.
type RegisterFile struct {
	R         [16]uint32
	XPSR      uint32
	MainSP    uint32
	ProcessSP uint32
	RW        uint32
	RW2       uint32

	Control   uint8
	FaultMask uint8
	BasePri   uint8
	PriMask   uint8

	FPSCR uint32
	S     [numFPRegs]uint32
}

func (r *RegisterFile) special() uint32 {
	return uint32(r.PriMask) | uint32(r.BasePri)<<8 | uint32(r.FaultMask)<<16 | uint32(r.Control)<<24
}

func (r *RegisterFile) setSpecial(v uint32) {
	r.PriMask = uint8(v)
	r.BasePri = uint8(v >> 8)
	r.FaultMask = uint8(v >> 16)
	r.Control = uint8(v >> 24)
}

func (r *RegisterFile) setCore(idx int, v uint32) {
	switch idx {
	case RegXPSR:
		r.XPSR = v
	case RegMainSP:
		r.MainSP = v
	case RegProcessSP:
		r.ProcessSP = v
	case RegRW:
		r.RW = v
	case RegRW2:
		r.RW2 = v
	default:
		r.R[idx] = v
	}
}

// ReadAllRegs reads r0..r15, xpsr, both stack pointers and the two rw words
// into regs, which must not be nil.
func (s *Session) ReadAllRegs(regs *RegisterFile) error {
	if regs == nil {
		return fmt.Errorf("read all regs: %w", errNilRegisterFile)
	}
	s.buildHeader(FromDevice, allRegsReplyLen)
	s.cmd.put(cmdDebug, debugReadAllRegs)

	reply, err := s.roundTrip(allRegsReplyLen)
	if err != nil {
		return fmt.Errorf("read all regs: %w", err)
	}
	if err := expectReply("read all regs", reply, allRegsReplyLen); err != nil {
		return err
	}
	for i := range numCoreRegs {
		regs.setCore(i, binary.LittleEndian.Uint32(reply[i*4:]))
	}
	return nil
}

// ReadReg reads one core register by index and stores it in regs.
func (s *Session) ReadReg(idx int, regs *RegisterFile) (uint32, error) {
	if idx < 0 || idx >= numCoreRegs {
		return 0, fmt.Errorf("%w: core register %d", ErrInvalidRegister, idx)
	}
	s.buildHeader(FromDevice, oneRegReplyLen)
	s.cmd.put(cmdDebug, debugReadReg, byte(idx))

	reply, err := s.roundTrip(oneRegReplyLen)
	if err != nil {
		return 0, fmt.Errorf("read reg %d: %w", idx, err)
	}
	if err := expectReply("read reg", reply, oneRegReplyLen); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(reply)
	s.log.Debugf("reg %2d = 0x%08x", idx, v)
	if regs != nil {
		regs.setCore(idx, v)
	}
	return v, nil
}

// WriteReg writes one core register by index.
func (s *Session) WriteReg(idx int, value uint32) error {
	if idx < 0 || idx >= numCoreRegs {
		return fmt.Errorf("%w: core register %d", ErrInvalidRegister, idx)
	}
	s.buildHeader(FromDevice, ackReplyLen)
	s.cmd.put(cmdDebug, debugWriteReg, byte(idx))
	s.cmd.putUint32(value)

	if _, err := s.roundTrip(ackReplyLen); err != nil {
		return fmt.Errorf("write reg %d: %w", idx, err)
	}
	return nil
}

func validIndirectRead(idx int) bool {
	return idx == RegSpecial || idx == RegFPSCR || (idx >= RegS0 && idx < RegS0+numFPRegs)
}

// ReadUnsupportedReg reads a register that has no direct opcode by selecting
// it in DCRSR and fetching DCRDR. RegSpecial fills the four packed byte
// fields of regs, RegFPSCR fills FPSCR and RegS0+n fills S[n].
func (s *Session) ReadUnsupportedReg(idx int, regs *RegisterFile) (uint32, error) {
	if !validIndirectRead(idx) {
		return 0, fmt.Errorf("%w: indirect register 0x%02x", ErrInvalidRegister, idx)
	}

	var sel [4]byte
	sel[0] = byte(idx)
	if err := s.WriteMem32(RegDCRSR, sel[:]); err != nil {
		return 0, fmt.Errorf("select reg 0x%02x: %w", idx, err)
	}
	data, err := s.ReadMem32(RegDCRDR, 4)
	if err != nil {
		return 0, fmt.Errorf("read reg 0x%02x: %w", idx, err)
	}
	v := binary.LittleEndian.Uint32(data)
	s.log.Debugf("reg 0x%02x = 0x%08x", idx, v)
	if regs == nil {
		return v, nil
	}

	switch {
	case idx == RegSpecial:
		regs.setSpecial(v)
	case idx == RegFPSCR:
		regs.FPSCR = v
	default:
		regs.S[idx-RegS0] = v
	}
	return v, nil
}

// ReadAllUnsupportedRegs reads the packed special word, fpscr and s0..s31
// into regs, which must not be nil.
func (s *Session) ReadAllUnsupportedRegs(regs *RegisterFile) error {
	if regs == nil {
		return fmt.Errorf("read unsupported regs: %w", errNilRegisterFile)
	}
	if _, err := s.ReadUnsupportedReg(RegSpecial, regs); err != nil {
		return err
	}
	if _, err := s.ReadUnsupportedReg(RegFPSCR, regs); err != nil {
		return err
	}
	for i := range numFPRegs {
		if _, err := s.ReadUnsupportedReg(RegS0+i, regs); err != nil {
			return err
		}
	}
	return nil
}

// WriteUnsupportedReg writes a register that has no direct opcode. The
// RegControl, RegFaultMask, RegBasePri and RegPriMask aliases replace one
// byte of the packed special word with the low byte of value; the other
// three bytes are read back first and preserved.
func (s *Session) WriteUnsupportedReg(idx int, value uint32, regs *RegisterFile) error {
	switch idx {
	case RegControl, RegFaultMask, RegBasePri, RegPriMask:
		if regs == nil {
			regs = &RegisterFile{}
		}
		if _, err := s.ReadUnsupportedReg(RegSpecial, regs); err != nil {
			return err
		}
		b := uint8(value)
		switch idx {
		case RegControl:
			regs.Control = b
		case RegFaultMask:
			regs.FaultMask = b
		case RegBasePri:
			regs.BasePri = b
		case RegPriMask:
			regs.PriMask = b
		}
		value = regs.special()
		idx = RegSpecial
	default:
		if !validIndirectRead(idx) {
			return fmt.Errorf("%w: indirect register 0x%02x", ErrInvalidRegister, idx)
		}
	}

	var word [4]byte
	binary.LittleEndian.PutUint32(word[:], value)
	if err := s.WriteMem32(RegDCRDR, word[:]); err != nil {
		return fmt.Errorf("stage reg 0x%02x: %w", idx, err)
	}
	binary.LittleEndian.PutUint32(word[:], uint32(idx)|dcrsrWrite)
	if err := s.WriteMem32(RegDCRSR, word[:]); err != nil {
		return fmt.Errorf("commit reg 0x%02x: %w", idx, err)
	}
	return nil
}
