package stlink

import (
	"bytes"
	"errors"
	"testing"
)

func TestCommandBufferOverflow(t *testing.T) {
	c := newCommandBuffer(directCommandSize)
	c.put(make([]byte, 12)...)
	c.putUint32(0xAABBCCDD)
	if _, err := c.bytes(); err != nil {
		t.Fatalf("bytes returned error for a full buffer: %v", err)
	}

	c.put(0x01)
	if _, err := c.bytes(); !errors.Is(err, ErrCommandOverflow) {
		t.Fatalf("bytes error = %v, want ErrCommandOverflow", err)
	}

	// the first error sticks, later writes do not land
	c.put(0x02)
	if c.Len() != directCommandSize {
		t.Fatalf("Len = %d after overflow, want %d", c.Len(), directCommandSize)
	}

	c.reset()
	if _, err := c.bytes(); err != nil {
		t.Fatalf("bytes after reset returned error: %v", err)
	}
	if c.Len() != 0 || !bytes.Equal(c.buf, make([]byte, directCommandSize)) {
		t.Fatalf("reset left %d bytes: % x", c.Len(), c.buf)
	}
}

func TestBuildHeader(t *testing.T) {
	tests := []struct {
		name    string
		product uint16
		want    int
	}{
		{"legacy", ProductV1, legacyHeaderSize},
		{"direct", ProductV2, 0},
		{"nucleo", ProductNucleo, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := openSim(t, NewSimProbe(tc.product, 1, 1, "0011"), NoReset)
			seq := s.SequenceNumber()

			if got := s.buildHeader(FromDevice, 0x1234); got != tc.want {
				t.Fatalf("buildHeader = %d, want %d", got, tc.want)
			}
			if tc.want == 0 {
				return
			}

			buf := s.cmd.buf
			if string(buf[0:4]) != "USBC" {
				t.Fatalf("tag = %q, want USBC", buf[0:4])
			}
			wantHeader := []byte{
				'U', 'S', 'B', 'C',
				byte(seq), byte(seq >> 8), byte(seq >> 16), byte(seq >> 24),
				0x34, 0x12, 0x00, 0x00,
				0x80, 0x00, 0x0A,
			}
			if !bytes.Equal(buf[:legacyHeaderSize], wantHeader) {
				t.Fatalf("header = % x, want % x", buf[:legacyHeaderSize], wantHeader)
			}
		})
	}
}

func TestCommandOverflowIssuesNoTransfer(t *testing.T) {
	p := NewSimProbe(ProductV2, 1, 1, "0011")
	s := openSim(t, p, NoReset)
	before := len(p.Commands())

	s.buildHeader(FromDevice, 2)
	s.cmd.put(make([]byte, directCommandSize+1)...)
	if _, err := s.roundTrip(2); !errors.Is(err, ErrCommandOverflow) {
		t.Fatalf("roundTrip error = %v, want ErrCommandOverflow", err)
	}
	if got := len(p.Commands()); got != before {
		t.Fatalf("%d commands reached the probe after overflow", got-before)
	}
}
