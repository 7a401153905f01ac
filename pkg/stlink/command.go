package stlink

import (
	"encoding/binary"
	"fmt"
)

// commandBuffer assembles one outgoing command block. Its length is the
// negotiated command size of the session; writes past it are rejected and the
// first error sticks until the next reset.
type commandBuffer struct {
	buf []byte
	n   int
	err error
}

func newCommandBuffer(size int) commandBuffer {
	return commandBuffer{buf: make([]byte, size)}
}

func (c *commandBuffer) reset() {
	clear(c.buf)
	c.n = 0
	c.err = nil
}

// Len returns the number of bytes written since the last reset.
func (c *commandBuffer) Len() int {
	return c.n
}

func (c *commandBuffer) put(b ...byte) {
	if c.err != nil {
		return
	}
	if c.n+len(b) > len(c.buf) {
		c.err = fmt.Errorf("%w: %d bytes at offset %d exceed %d-byte command", ErrCommandOverflow, len(b), c.n, len(c.buf))
		return
	}
	copy(c.buf[c.n:], b)
	c.n += len(b)
}

func (c *commandBuffer) putUint16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	c.put(b[:]...)
}

func (c *commandBuffer) putUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	c.put(b[:]...)
}

// bytes returns the whole zero padded block, or the first overflow error.
func (c *commandBuffer) bytes() ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.buf, nil
}

// buildHeader starts a new command. Legacy sessions get the 15-byte SCSI
// wrapper prefix; direct sessions start with the opcode at offset 0. The
// returned offset is where opcode bytes go.
func (s *Session) buildHeader(dir Direction, expected uint32) int {
	s.cmd.reset()
	if s.variant == Legacy {
		s.cmd.put(legacyTag[:]...)
		s.cmd.putUint32(s.seq)
		s.cmd.putUint32(expected)
		s.cmd.put(byte(dir), 0, legacyCDBLength)
	}
	return s.cmd.Len()
}
