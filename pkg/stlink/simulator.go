package stlink

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/gousb"
)

// CommandHook lets tests intercept a decoded command. op holds the bytes after
// the framing header. Returning a non-nil reply replaces the simulated answer;
// returning an error fails the request transfer.
type CommandHook func(op []byte) (reply []byte, err error)

// SimProbe emulates ST-Link firmware and an attached Cortex-M target well
// enough to drive sessions without hardware. It understands both framings,
// keeps a sparse target memory and implements the DCRSR/DCRDR handshake.
type SimProbe struct {
	USB    DeviceDesc
	Serial []byte

	// Injected failures.
	OpenErr   error
	SerialErr error
	ClaimErr  error
	OnCommand CommandHook

	Mode           Mode
	Stlink         int
	JTAG           int
	SWIM           int
	VoltageFactor  uint32
	VoltageReading uint32
	CoreID         uint32
	Status         CoreStatus
	Regs           RegisterFile

	mem        map[uint32]byte
	handles    int
	pipes      int
	commands   [][]byte
	sequences  []uint32
	resets     int
	nrst       []byte
	swdDivisor int
}

// NewSimProbe returns a probe of the given product at bus:addr whose serial
// descriptor is serialDesc. Firmware versions are typical for the product.
func NewSimProbe(product uint16, bus, addr int, serialDesc string) *SimProbe {
	p := &SimProbe{
		USB:            DeviceDesc{Bus: bus, Address: addr, Vendor: VendorST, Product: product},
		Serial:         []byte(serialDesc),
		Mode:           ModeMassStorage,
		VoltageFactor:  1490000,
		VoltageReading: 1430000,
		CoreID:         0x1BA01477,
		Status:         CoreRunning,
		mem:            make(map[uint32]byte),
		swdDivisor:     -1,
	}
	switch product {
	case ProductV1:
		p.Stlink, p.JTAG, p.SWIM = 1, 10, 0
	case ProductNucleo:
		p.Stlink, p.JTAG, p.SWIM = 2, 29, 18
	default:
		p.Stlink, p.JTAG, p.SWIM = 2, 27, 6
	}
	p.Regs.XPSR = 0x01000000
	p.Regs.MainSP = 0x20005000
	p.Regs.R[15] = 0x08000188
	return p
}

// Held reports open device handles plus claimed interfaces.
func (p *SimProbe) Held() int { return p.handles + p.pipes }

// Resets reports how many RESETSYS commands were received.
func (p *SimProbe) Resets() int { return p.resets }

// NRST returns the values of every DRIVE_NRST command received.
func (p *SimProbe) NRST() []byte { return append([]byte(nil), p.nrst...) }

// Sequences returns the tags of every legacy command block received.
func (p *SimProbe) Sequences() []uint32 { return append([]uint32(nil), p.sequences...) }

// SWDDivisor returns the last programmed SWD divisor.
func (p *SimProbe) SWDDivisor() (uint16, bool) {
	if p.swdDivisor < 0 {
		return 0, false
	}
	return uint16(p.swdDivisor), true
}

// Commands returns the opcode bytes of every command received, framing
// stripped and trailing padding kept.
func (p *SimProbe) Commands() [][]byte {
	out := make([][]byte, len(p.commands))
	for i, c := range p.commands {
		out[i] = append([]byte(nil), c...)
	}
	return out
}

// Poke stores data in target memory.
func (p *SimProbe) Poke(addr uint32, data []byte) {
	for i, b := range data {
		p.mem[addr+uint32(i)] = b
	}
}

// Peek reads n bytes of target memory; unwritten bytes read as zero.
func (p *SimProbe) Peek(addr uint32, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = p.mem[addr+uint32(i)]
	}
	return out
}

func (p *SimProbe) variant() Variant {
	if probe, ok := lookupProbe(p.USB.Product); ok {
		return probe.Variant
	}
	return Direct
}

// SimBackend is a USBBackend over a fixed set of simulated probes.
type SimBackend struct {
	Probes  []*SimProbe
	ListErr error

	scans  int
	closes int
}

// NewSimBackend returns a backend exposing probes in order.
func NewSimBackend(probes ...*SimProbe) *SimBackend {
	return &SimBackend{Probes: probes}
}

// DefaultSimProbes returns an ST-Link/V2 on 001:005 and an ST-Link/V2-1 on
// 002:007.
func DefaultSimProbes() []*SimProbe {
	return []*SimProbe{
		NewSimProbe(ProductV2, 1, 5, "066EFF555051897267233656"),
		NewSimProbe(ProductNucleo, 2, 7, "0670FF484957847167071621"),
	}
}

// Factory returns a backend factory for WithBackend.
func (b *SimBackend) Factory() func() (USBBackend, error) {
	return func() (USBBackend, error) { return b, nil }
}

// Held reports handles held across all probes.
func (b *SimBackend) Held() int {
	n := 0
	for _, p := range b.Probes {
		n += p.Held()
	}
	return n
}

// Scans reports how many enumeration passes were made.
func (b *SimBackend) Scans() int { return b.scans }

// Closes reports how many times the backend was closed.
func (b *SimBackend) Closes() int { return b.closes }

func (b *SimBackend) OpenDevices(match func(DeviceDesc) bool) ([]USBDevice, error) {
	b.scans++
	if b.ListErr != nil {
		return nil, b.ListErr
	}

	var (
		devs     []USBDevice
		firstErr error
	)
	for _, p := range b.Probes {
		if !match(p.USB) {
			continue
		}
		if p.OpenErr != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("open %s: %w", p.USB, p.OpenErr)
			}
			continue
		}
		p.handles++
		devs = append(devs, &simDevice{probe: p})
	}
	return devs, firstErr
}

func (b *SimBackend) Close() error {
	b.closes++
	return nil
}

type simDevice struct {
	probe  *SimProbe
	closed bool
}

func (d *simDevice) Desc() DeviceDesc { return d.probe.USB }

func (d *simDevice) SerialNumber() ([]byte, error) {
	if d.probe.SerialErr != nil {
		return nil, d.probe.SerialErr
	}
	return append([]byte(nil), d.probe.Serial...), nil
}

func (d *simDevice) Claim(out, in int) (Pipe, error) {
	if d.closed {
		return nil, errors.New("sim: claim on closed device")
	}
	if d.probe.ClaimErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrClaim, d.probe.ClaimErr)
	}
	probe, _ := lookupProbe(d.probe.USB.Product)
	if out != probe.RequestEndpoint || in != replyEndpoint {
		return nil, fmt.Errorf("%w: no bulk endpoints OUT %d / IN %d", ErrClaim, out, in)
	}
	d.probe.pipes++
	return &simPipe{probe: d.probe, variant: d.probe.variant()}, nil
}

func (d *simDevice) Close() error {
	if d.closed {
		return errors.New("sim: device closed twice")
	}
	d.closed = true
	d.probe.handles--
	return nil
}

// simPipe decodes command blocks written by a session and queues the replies
// the firmware would send.
type simPipe struct {
	probe   *SimProbe
	variant Variant
	closed  bool
	replies [][]byte

	// pending data phase of a memory write
	writeAddr uint32
	writeLeft int
	writeBuf  []byte
	writeSeq  uint32
}

func (p *simPipe) Write(_ context.Context, b []byte) (int, error) {
	if p.closed {
		return 0, errors.New("sim: write on released interface")
	}
	if p.writeLeft > 0 {
		p.dataPhase(b)
		return len(b), nil
	}

	op, seq, err := p.unwrap(b)
	if err != nil {
		return 0, err
	}
	p.probe.commands = append(p.probe.commands, append([]byte(nil), op...))

	if hook := p.probe.OnCommand; hook != nil {
		reply, err := hook(op)
		if err != nil {
			return 0, err
		}
		if reply != nil {
			p.queue(reply, seq)
			return len(b), nil
		}
	}

	reply, dataPhase, err := p.probe.execute(op)
	if err != nil {
		return 0, err
	}
	if dataPhase > 0 {
		p.writeAddr = binary.LittleEndian.Uint32(op[2:6])
		p.writeLeft = dataPhase
		p.writeBuf = p.writeBuf[:0]
		p.writeSeq = seq
		return len(b), nil
	}
	p.queue(reply, seq)
	return len(b), nil
}

// unwrap validates the framing and returns the opcode bytes.
func (p *simPipe) unwrap(b []byte) ([]byte, uint32, error) {
	if p.variant != Legacy {
		if len(b) != directCommandSize {
			return nil, 0, fmt.Errorf("sim: command block is %d bytes, want %d", len(b), directCommandSize)
		}
		return b, 0, nil
	}

	if len(b) != legacyCommandSize {
		return nil, 0, fmt.Errorf("sim: command block is %d bytes, want %d", len(b), legacyCommandSize)
	}
	if [4]byte(b[0:4]) != legacyTag {
		return nil, 0, fmt.Errorf("sim: bad command block signature % x", b[0:4])
	}
	if b[13] != 0 || b[14] != legacyCDBLength {
		return nil, 0, fmt.Errorf("sim: bad lun/cdb length % x", b[13:15])
	}
	seq := binary.LittleEndian.Uint32(b[4:8])
	p.probe.sequences = append(p.probe.sequences, seq)
	return b[legacyHeaderSize:], seq, nil
}

func (p *simPipe) dataPhase(b []byte) {
	n := min(len(b), p.writeLeft)
	p.writeBuf = append(p.writeBuf, b[:n]...)
	p.writeLeft -= n
	if p.writeLeft > 0 {
		return
	}
	p.probe.writeMem(p.writeAddr, p.writeBuf)
	p.queue(nil, p.writeSeq)
}

// queue stores a reply and, for legacy framing, the status block that
// follows it.
func (p *simPipe) queue(reply []byte, seq uint32) {
	if len(reply) > 0 {
		p.replies = append(p.replies, reply)
	}
	if p.variant == Legacy {
		status := make([]byte, legacyStatusSize)
		copy(status, "USBS")
		binary.LittleEndian.PutUint32(status[4:], seq)
		p.replies = append(p.replies, status)
	}
}

func (p *simPipe) Read(_ context.Context, b []byte) (int, error) {
	if p.closed {
		return 0, errors.New("sim: read on released interface")
	}
	if len(p.replies) == 0 {
		return 0, fmt.Errorf("sim: nothing to read: %w", gousb.ErrorTimeout)
	}
	next := p.replies[0]
	p.replies = p.replies[1:]
	return copy(b, next), nil
}

func (p *simPipe) Close() error {
	if p.closed {
		return errors.New("sim: interface released twice")
	}
	p.closed = true
	p.probe.pipes--
	return nil
}

var ack = []byte{0x80, 0x00}

// execute runs one command. A positive dataPhase means the command expects
// that many bytes of payload before it completes.
func (p *SimProbe) execute(op []byte) (reply []byte, dataPhase int, err error) {
	switch op[0] {
	case cmdGetVersion:
		reply = make([]byte, versionReplyLen)
		word := uint16(p.Stlink&0x0F)<<12 | uint16(p.JTAG&0x3F)<<6 | uint16(p.SWIM&0x3F)
		binary.BigEndian.PutUint16(reply[0:], word)
		binary.LittleEndian.PutUint16(reply[2:], p.USB.Vendor)
		binary.LittleEndian.PutUint16(reply[4:], p.USB.Product)
		return reply, 0, nil

	case cmdGetCurrentMode:
		code := map[Mode]byte{ModeDFU: modeCodeDFU, ModeMassStorage: modeCodeMass, ModeDebug: modeCodeDebug}[p.Mode]
		return []byte{code, 0}, 0, nil

	case cmdGetTargetVoltage:
		reply = make([]byte, voltageReplyLen)
		binary.LittleEndian.PutUint32(reply[0:], p.VoltageFactor)
		binary.LittleEndian.PutUint32(reply[4:], p.VoltageReading)
		return reply, 0, nil

	case cmdDFU:
		if op[1] == dfuExit {
			p.Mode = ModeMassStorage
			return nil, 0, nil
		}

	case cmdDebug:
		return p.debug(op)
	}
	return nil, 0, fmt.Errorf("sim: unsupported command % x", op[:2])
}

func (p *SimProbe) debug(op []byte) ([]byte, int, error) {
	u32 := func(off int) uint32 { return binary.LittleEndian.Uint32(op[off:]) }
	u16 := func(off int) int { return int(binary.LittleEndian.Uint16(op[off:])) }
	word := func(v uint32) []byte { return binary.LittleEndian.AppendUint32(nil, v) }

	switch op[1] {
	case debugEnter:
		if op[2] == debugEnterSWD {
			p.Mode = ModeDebug
			return nil, 0, nil
		}
	case debugExit:
		p.Mode = ModeMassStorage
		return nil, 0, nil
	case debugGetStatus:
		code := byte(0)
		switch p.Status {
		case CoreRunning:
			code = statusCodeRunning
		case CoreHalted:
			code = statusCodeHalted
		}
		return []byte{code, 0}, 0, nil
	case debugForceDebug:
		p.Status = CoreHalted
		return ack, 0, nil
	case debugRunCore:
		p.Status = CoreRunning
		return ack, 0, nil
	case debugStepCore:
		p.Regs.R[15] += 2
		p.Status = CoreHalted
		return ack, 0, nil
	case debugResetSys:
		p.resets++
		return ack, 0, nil
	case debugDriveNRST:
		p.nrst = append(p.nrst, op[2])
		return ack, 0, nil
	case debugReadCoreID:
		return word(p.CoreID), 0, nil
	case debugSWDSetFreq:
		p.swdDivisor = u16(2)
		return ack, 0, nil
	case debugReadDebug32:
		return append([]byte{0x80, 0, 0, 0}, p.Peek(u32(2), 4)...), 0, nil
	case debugWriteDebug32:
		p.writeMem(u32(2), word(u32(6)))
		return ack, 0, nil
	case debugReadMem32:
		return p.Peek(u32(2), u16(6)), 0, nil
	case debugWriteMem32, debugWriteMem8:
		return nil, u16(6), nil
	case debugReadAllRegs:
		reply := make([]byte, 0, allRegsReplyLen)
		for i := range numCoreRegs {
			reply = binary.LittleEndian.AppendUint32(reply, p.coreReg(i))
		}
		return reply, 0, nil
	case debugReadReg:
		return word(p.coreReg(int(op[2]))), 0, nil
	case debugWriteReg:
		p.Regs.setCore(int(op[2]), u32(3))
		return ack, 0, nil
	}
	return nil, 0, fmt.Errorf("sim: unsupported debug command % x", op[:2])
}

func (p *SimProbe) coreReg(idx int) uint32 {
	switch idx {
	case RegXPSR:
		return p.Regs.XPSR
	case RegMainSP:
		return p.Regs.MainSP
	case RegProcessSP:
		return p.Regs.ProcessSP
	case RegRW:
		return p.Regs.RW
	case RegRW2:
		return p.Regs.RW2
	default:
		return p.Regs.R[idx]
	}
}

// writeMem stores data and emulates a DCRSR write: a read request latches
// the selected register into DCRDR, a write request copies DCRDR into it.
// DCRSR selectors 0..18 are the core registers; 0x14 is the packed special
// word, not rw2.
func (p *SimProbe) writeMem(addr uint32, data []byte) {
	p.Poke(addr, data)
	if addr > RegDCRSR || addr+uint32(len(data)) < RegDCRSR+4 {
		return
	}

	sel := binary.LittleEndian.Uint32(p.Peek(RegDCRSR, 4))
	idx := int(sel & 0x7F)
	if sel&dcrsrWrite != 0 {
		p.setIndirect(idx, binary.LittleEndian.Uint32(p.Peek(RegDCRDR, 4)))
		return
	}
	p.Poke(RegDCRDR, binary.LittleEndian.AppendUint32(nil, p.indirect(idx)))
}

func (p *SimProbe) indirect(idx int) uint32 {
	switch {
	case idx == RegSpecial:
		return p.Regs.special()
	case idx <= RegProcessSP:
		return p.coreReg(idx)
	case idx == RegFPSCR:
		return p.Regs.FPSCR
	case idx >= RegS0 && idx < RegS0+numFPRegs:
		return p.Regs.S[idx-RegS0]
	}
	return 0
}

func (p *SimProbe) setIndirect(idx int, v uint32) {
	switch {
	case idx == RegSpecial:
		p.Regs.setSpecial(v)
	case idx <= RegProcessSP:
		p.Regs.setCore(idx, v)
	case idx == RegFPSCR:
		p.Regs.FPSCR = v
	case idx >= RegS0 && idx < RegS0+numFPRegs:
		p.Regs.S[idx-RegS0] = v
	}
}
