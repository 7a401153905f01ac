package stlink

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/theg4sh/stlink/pkg/serial"
)

// Session is one open probe. It is created by a Registry and owns the USB
// device until Close.
//
// A Session is not safe for concurrent use: the probe answers strictly in
// request order, so callers must serialize operations on one session.
// Distinct sessions are independent.
type Session struct {
	dev  USBDevice
	pipe Pipe
	desc DeviceDesc

	variant      Variant
	description  string
	reqEndpoint  int
	repEndpoint  int
	cmd          commandBuffer
	data         []byte
	dataLen      int
	seq          uint32
	version      Version
	coreStatus   CoreStatus
	statusRaw    [statusReplyLen]byte
	coreID       uint32
	serialNumber serial.Number

	log    *logrus.Entry
	closed bool
}

func newSession(dev USBDevice, pipe Pipe, probe knownProbe, sn serial.Number, log *logrus.Entry) *Session {
	desc := dev.Desc()
	return &Session{
		dev:          dev,
		pipe:         pipe,
		desc:         desc,
		variant:      probe.Variant,
		description:  probe.Description,
		reqEndpoint:  probe.RequestEndpoint,
		repEndpoint:  replyEndpoint,
		cmd:          newCommandBuffer(probe.Variant.commandSize()),
		serialNumber: sn,
		coreStatus:   CoreStatusUnknown,
		log: log.WithFields(logrus.Fields{
			"bus":     desc.Bus,
			"addr":    desc.Address,
			"product": fmt.Sprintf("%04x", desc.Product),
		}),
	}
}

// ProbeInfo summarizes an open session.
type ProbeInfo struct {
	Description string
	Bus         int
	Address     int
	VendorID    uint16
	ProductID   uint16
	Serial      serial.Number
	Variant     Variant
	Version     Version
}

// Label returns a one-line description of the probe.
func (i ProbeInfo) Label() string {
	return fmt.Sprintf("%s (%04X:%04X) on %03d:%03d serial %s", i.Description, i.VendorID, i.ProductID, i.Bus, i.Address, i.Serial)
}

// Info returns identity and cached firmware version of the probe.
func (s *Session) Info() ProbeInfo {
	return ProbeInfo{
		Description: s.description,
		Bus:         s.desc.Bus,
		Address:     s.desc.Address,
		VendorID:    s.desc.Vendor,
		ProductID:   s.desc.Product,
		Serial:      s.serialNumber,
		Variant:     s.variant,
		Version:     s.version,
	}
}

func (s *Session) Variant() Variant { return s.variant }
func (s *Session) Serial() serial.Number { return s.serialNumber }
func (s *Session) Version() Version { return s.version }
func (s *Session) CoreID() uint32 { return s.coreID }
func (s *Session) CoreStatus() CoreStatus { return s.coreStatus }
func (s *Session) SequenceNumber() uint32 { return s.seq }
func (s *Session) Endpoints() (req, rep int) { return s.reqEndpoint, s.repEndpoint }
func (s *Session) Closed() bool { return s.closed }

// Close runs the shutdown sequence of the framing variant and releases the USB
// device. Legacy probes are reset and taken out of debug mode first. Closing
// an already closed session is a no-op.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}

	var errs []error
	if s.variant == Legacy {
		if s.version.Stlink > 1 {
			errs = append(errs, s.DriveReset(ResetPulse))
		}
		errs = append(errs, s.ResetSystem(), s.ExitDebugMode())
	}
	errs = append(errs, s.release())

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close %s: %w", s.desc, err)
	}
	return nil
}

// release frees the interface and device handle without talking to the probe.
func (s *Session) release() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.pipe != nil {
		errs = append(errs, s.pipe.Close())
		s.pipe = nil
	}
	if s.dev != nil {
		errs = append(errs, s.dev.Close())
		s.dev = nil
	}
	return errors.Join(errs...)
}
