package stlink

import (
	"errors"
	"testing"

	"github.com/google/gousb"
)

func TestLegacySequenceIncrementsPerTerminatedExchange(t *testing.T) {
	p := NewSimProbe(ProductV1, 1, 1, "SERIAL000001")
	s := openSim(t, p, NoReset)

	start := s.SequenceNumber()
	for i := 1; i <= 2; i++ {
		if _, err := s.ReadStatus(); err != nil {
			t.Fatalf("ReadStatus returned error: %v", err)
		}
		if got := s.SequenceNumber(); got != start+uint32(i) {
			t.Fatalf("sequence after %d exchanges = %d, want %d", i, got, start+uint32(i))
		}
	}

	seqs := p.Sequences()
	last := seqs[len(seqs)-2:]
	if last[1] != last[0]+1 {
		t.Fatalf("probe saw tags %v, want consecutive", last)
	}
}

func TestLegacyWriteAdvancesSequenceOnce(t *testing.T) {
	s := openSim(t, NewSimProbe(ProductV1, 1, 1, "SERIAL000001"), NoReset)

	start := s.SequenceNumber()
	if err := s.WriteMem32(0x20000000, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("WriteMem32 returned error: %v", err)
	}
	if got := s.SequenceNumber(); got != start+1 {
		t.Fatalf("sequence = %d, want %d", got, start+1)
	}
}

func TestDirectSequenceUnused(t *testing.T) {
	s := openSim(t, NewSimProbe(ProductV2, 1, 1, "0011"), NoReset)
	if _, err := s.ReadStatus(); err != nil {
		t.Fatalf("ReadStatus returned error: %v", err)
	}
	if s.SequenceNumber() != 0 {
		t.Fatalf("direct session sequence = %d, want 0", s.SequenceNumber())
	}
}

func TestExchangeErrors(t *testing.T) {
	busy := errors.New("pipe error")

	tests := []struct {
		name  string
		reply []byte
		err   error
		want  error
	}{
		{name: "write fails", err: busy, want: ErrTransport},
		{name: "no reply", reply: []byte{}, want: gousb.ErrorTimeout},
		{name: "short reply", reply: []byte{0x81}, want: ErrProtocol},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := NewSimProbe(ProductV2, 1, 1, "0011")
			s := openSim(t, p, NoReset)

			p.OnCommand = func(op []byte) ([]byte, error) {
				if op[0] == cmdDebug && op[1] == debugGetStatus {
					return tc.reply, tc.err
				}
				return nil, nil
			}
			_, err := s.ReadStatus()
			if !errors.Is(err, tc.want) {
				t.Fatalf("ReadStatus error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestTimeoutIsTransportError(t *testing.T) {
	p := NewSimProbe(ProductV2, 1, 1, "0011")
	s := openSim(t, p, NoReset)
	p.OnCommand = func(op []byte) ([]byte, error) { return []byte{}, nil }

	_, err := s.ReadCoreID()
	if !errors.Is(err, ErrTransport) || !errors.Is(err, gousb.ErrorTimeout) {
		t.Fatalf("ReadCoreID error = %v, want ErrTransport wrapping a timeout", err)
	}
}

func TestClosedSessionIssuesNoTransfer(t *testing.T) {
	p := NewSimProbe(ProductV2, 1, 1, "0011")
	s := openSim(t, p, NoReset)
	if err := s.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	before := len(p.Commands())

	if _, err := s.ReadVersion(); !errors.Is(err, ErrClosed) {
		t.Fatalf("ReadVersion error = %v, want ErrClosed", err)
	}
	if got := len(p.Commands()); got != before {
		t.Fatalf("closed session sent %d commands", got-before)
	}
}
