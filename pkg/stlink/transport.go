package stlink

import (
	"context"
	"fmt"
)

// Pipe is a claimed probe interface: one bulk OUT endpoint for requests and
// one bulk IN endpoint for replies. Each call is a single bulk transfer bounded
// by ctx.
type Pipe interface {
	Write(ctx context.Context, p []byte) (int, error)
	Read(ctx context.Context, p []byte) (int, error)
	// Close releases the interface and configuration, not the device.
	Close() error
}

// exchange performs one request/response round trip. A reply of up to rxLen
// bytes is read into the session data buffer when rxLen > 0. Legacy sessions
// additionally consume the 13-byte status block when terminate is set. Errors
// are never retried here.
func (s *Session) exchange(terminate bool, tx []byte, rxLen int) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}

	n, err := s.transfer(s.pipe.Write, tx)
	if err != nil {
		return 0, fmt.Errorf("%w: send request: %w", ErrTransport, err)
	}
	if n != len(tx) {
		s.log.Warnf("send request wrote %d bytes (instead of %d)", n, len(tx))
	}

	received := 0
	if rxLen > 0 {
		reply := s.dataBuffer(rxLen)
		received, err = s.transfer(s.pipe.Read, reply)
		if err != nil {
			return 0, fmt.Errorf("%w: read reply: %w", ErrTransport, err)
		}
		s.dataLen = received
	}

	if s.variant == Legacy && terminate {
		var status [legacyStatusSize]byte
		if _, err := s.transfer(s.pipe.Read, status[:]); err != nil {
			return 0, fmt.Errorf("%w: read status: %w", ErrTransport, err)
		}
		// the probe ignores the tag, it only has to increase
		s.seq++
	}

	return received, nil
}

func (s *Session) transfer(fn func(context.Context, []byte) (int, error), buf []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), TransferTimeout)
	defer cancel()
	return fn(ctx, buf)
}

// dataBuffer returns the first n bytes of the session data buffer, growing it
// when needed.
func (s *Session) dataBuffer(n int) []byte {
	if cap(s.data) < n {
		s.data = make([]byte, n)
	}
	s.data = s.data[:cap(s.data)]
	return s.data[:n]
}

// roundTrip sends the command built so far and reads a reply of rxLen bytes.
func (s *Session) roundTrip(rxLen int) ([]byte, error) {
	frame, err := s.cmd.bytes()
	if err != nil {
		return nil, err
	}
	n, err := s.exchange(true, frame, rxLen)
	if err != nil {
		return nil, err
	}
	return s.data[:n], nil
}

// sendOnly sends the command built so far without reading a reply.
func (s *Session) sendOnly() error {
	frame, err := s.cmd.bytes()
	if err != nil {
		return err
	}
	_, err = s.exchange(true, frame, 0)
	return err
}

// sendWithData sends the command built so far followed by a data block.
func (s *Session) sendWithData(data []byte) error {
	frame, err := s.cmd.bytes()
	if err != nil {
		return err
	}
	if _, err := s.exchange(false, frame, 0); err != nil {
		return err
	}
	block := s.dataBuffer(len(data))
	copy(block, data)
	s.dataLen = len(data)
	_, err = s.exchange(true, block, 0)
	return err
}

func expectReply(op string, reply []byte, want int) error {
	if len(reply) != want {
		return fmt.Errorf("%w: %s replied %d bytes, want %d", ErrProtocol, op, len(reply), want)
	}
	return nil
}
