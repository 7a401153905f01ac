package stlink

import (
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/theg4sh/stlink/pkg/serial"
)

// DefaultSettleDelay is how long the target is given to come out of reset
// during bootstrap.
const DefaultSettleDelay = 10 * time.Millisecond

// ResetPolicy says whether opening a probe resets the target.
type ResetPolicy uint8

const (
	NoReset ResetPolicy = iota
	Reset
)

// MatchCriteria selects probes. Bus and Address are zero when unset and must
// be given together. Serial may be in any explicit format; it is
// normalized to binary before comparison. When both a position and a serial
// are given a probe must satisfy both.
type MatchCriteria struct {
	Bus     int
	Address int
	Serial  serial.Number
}

func (c MatchCriteria) hasPosition() bool {
	return c.Bus != 0 && c.Address != 0
}

// validate rejects a position with only one of bus and address set.
func (c MatchCriteria) validate() error {
	if c.Bus < 0 || c.Address < 0 {
		return fmt.Errorf("%w: negative position %d:%d", ErrInvalidCriteria, c.Bus, c.Address)
	}
	if (c.Bus == 0) != (c.Address == 0) {
		return fmt.Errorf("%w: position needs both bus and address, got %d:%d", ErrInvalidCriteria, c.Bus, c.Address)
	}
	return nil
}

func (c MatchCriteria) String() string {
	switch {
	case c.hasPosition() && !c.Serial.IsZero():
		return fmt.Sprintf("%03d:%03d serial %s", c.Bus, c.Address, c.Serial)
	case c.hasPosition():
		return fmt.Sprintf("%03d:%03d", c.Bus, c.Address)
	case !c.Serial.IsZero():
		return "serial " + c.Serial.String()
	default:
		return "any"
	}
}

// Option configures a Registry.
type Option func(*Registry)

// WithBackend replaces the libusb backend. The factory runs lazily at the
// start of every scan that has no live backend.
func WithBackend(factory func() (USBBackend, error)) Option {
	return func(r *Registry) {
		r.newBackend = factory
	}
}

// WithLogger sets the log entry used by the registry and its sessions.
func WithLogger(log *logrus.Entry) Option {
	return func(r *Registry) {
		r.log = log
	}
}

// WithSWDClock sets the SWD clock divisor programmed during bootstrap.
func WithSWDClock(divisor uint16) Option {
	return func(r *Registry) {
		r.swdDivisor = divisor
	}
}

// WithSettleDelay sets the wait after a bootstrap reset.
func WithSettleDelay(d time.Duration) Option {
	return func(r *Registry) {
		r.settleDelay = d
	}
}

// Registry discovers ST-Link probes and owns the sessions it opens.
//
// A Registry is not safe for concurrent use. Scans must be serialized by the
// caller; sessions it returns may be driven from separate goroutines.
type Registry struct {
	newBackend  func() (USBBackend, error)
	backend     USBBackend
	sessions    []*Session
	log         *logrus.Entry
	swdDivisor  uint16
	settleDelay time.Duration
}

// NewRegistry returns a registry using libusb unless WithBackend is given.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		newBackend:  func() (USBBackend, error) { return OpenUSB(), nil },
		log:         logrus.NewEntry(logrus.StandardLogger()),
		swdDivisor:  DefaultSWDClockDivisor,
		settleDelay: DefaultSettleDelay,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.WithField("component", "stlink")
	return r
}

// Probe opens every attached probe that satisfies criteria, resetting each
// target. Devices that cannot be opened are logged and skipped. It fails with
// ErrDeviceNotFound when no probe could be opened.
func (r *Registry) Probe(criteria MatchCriteria) ([]*Session, error) {
	cands, skipped, err := r.scan(criteria)
	if err != nil {
		return nil, err
	}

	var (
		sessions []*Session
		failures []error
	)
	if skipped != nil {
		failures = append(failures, skipped)
	}
	for _, c := range cands {
		s, err := r.openCandidate(c, Reset)
		if err != nil {
			r.log.Warnf("skipping %s: %v", c.desc, err)
			failures = append(failures, err)
			continue
		}
		sessions = append(sessions, s)
	}

	if len(sessions) == 0 {
		if len(failures) > 0 {
			return nil, fmt.Errorf("%w: %s: %w", ErrDeviceNotFound, criteria, errors.Join(failures...))
		}
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, criteria)
	}
	return sessions, nil
}

// Open opens the first attached probe that satisfies criteria. A claim or
// bootstrap failure is returned as is; every resource acquired for the
// failing probe is released first.
func (r *Registry) Open(criteria MatchCriteria, policy ResetPolicy) (*Session, error) {
	cands, skipped, err := r.scan(criteria)
	if err != nil {
		return nil, err
	}
	if len(cands) == 0 {
		if skipped != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrDeviceNotFound, criteria, skipped)
		}
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, criteria)
	}

	for _, c := range cands[1:] {
		if err := c.dev.Close(); err != nil {
			r.log.Debugf("close unused %s: %v", c.desc, err)
		}
	}
	return r.openCandidate(cands[0], policy)
}

// All yields the sessions opened by this registry that are still open.
func (r *Registry) All() iter.Seq[*Session] {
	return func(yield func(*Session) bool) {
		for _, s := range r.sessions {
			if s.closed {
				continue
			}
			if !yield(s) {
				return
			}
		}
	}
}

// CloseAll closes every session and then the USB backend. The next Probe or
// Open starts from a fresh device scan.
func (r *Registry) CloseAll() error {
	var errs []error
	for _, s := range r.sessions {
		errs = append(errs, s.Close())
	}
	r.sessions = nil

	if r.backend != nil {
		if err := r.backend.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close usb backend: %w", err))
		}
		r.backend = nil
	}
	return errors.Join(errs...)
}

type candidate struct {
	dev    USBDevice
	desc   DeviceDesc
	probe  knownProbe
	serial serial.Number
	rawSN  []byte
}

// scan opens every supported device matching criteria and returns them in
// enumeration order. Devices that were opened but do not match are closed.
// Devices the backend could not open are logged and reported through skipped;
// err is set only for invalid criteria or an unusable backend.
func (r *Registry) scan(criteria MatchCriteria) (cands []candidate, skipped, err error) {
	if err := criteria.validate(); err != nil {
		return nil, nil, err
	}
	want := criteria.Serial
	if !want.IsZero() {
		if want, err = serial.Convert(want, serial.Binary); err != nil {
			return nil, nil, err
		}
	}

	if r.backend == nil {
		backend, err := r.newBackend()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: init usb: %w", ErrTransport, err)
		}
		r.backend = backend
	}

	devs, openErr := r.backend.OpenDevices(r.filter(criteria))
	if openErr != nil {
		r.log.Warnf("enumeration incomplete: %v", openErr)
		skipped = openErr
	}

	for _, dev := range devs {
		c, ok := r.inspect(dev)
		if ok && (want.IsZero() || c.serial.Equal(want)) {
			cands = append(cands, c)
			continue
		}
		if err := dev.Close(); err != nil {
			r.log.Debugf("close %s: %v", dev.Desc(), err)
		}
	}
	return cands, skipped, nil
}

// filter accepts the supported ST-Link products at the requested position.
func (r *Registry) filter(criteria MatchCriteria) func(DeviceDesc) bool {
	return func(desc DeviceDesc) bool {
		if desc.Vendor != VendorST {
			return false
		}
		if _, ok := lookupProbe(desc.Product); !ok {
			r.log.Warnf("unsupported ST-Link product %04x:%04x at %03d:%03d", desc.Vendor, desc.Product, desc.Bus, desc.Address)
			return false
		}
		if criteria.hasPosition() {
			return desc.Bus == criteria.Bus && desc.Address == criteria.Address
		}
		return true
	}
}

// inspect reads and normalizes the serial of an opened device. The legacy
// probe reports raw bytes; the others report hex text.
func (r *Registry) inspect(dev USBDevice) (candidate, bool) {
	desc := dev.Desc()
	probe, ok := lookupProbe(desc.Product)
	if !ok {
		return candidate{}, false
	}

	raw, err := dev.SerialNumber()
	if err != nil {
		r.log.Warnf("skipping %s: %v", desc, err)
		return candidate{}, false
	}

	format := serial.Hex
	if probe.Variant == Legacy {
		format = serial.Binary
	}
	sn, err := serial.Convert(serial.New(format, raw), serial.Binary)
	if err != nil {
		r.log.Debugf("%s serial %q is not hex text, using raw bytes: %v", desc, raw, err)
		sn = serial.New(serial.Binary, raw)
	}

	return candidate{dev: dev, desc: desc, probe: probe, serial: sn, rawSN: raw}, true
}

// openCandidate claims the device, bootstraps the probe and records the
// session. On failure the device is released.
func (r *Registry) openCandidate(c candidate, policy ResetPolicy) (*Session, error) {
	pipe, err := c.dev.Claim(c.probe.RequestEndpoint, replyEndpoint)
	if err != nil {
		c.dev.Close()
		return nil, fmt.Errorf("open %s: %w", c.desc, err)
	}

	s := newSession(c.dev, pipe, c.probe, c.serial, r.log)

	reset := policy == Reset
	if string(c.rawSN) == forcedResetSerial {
		s.log.Debug("serial requires a target reset, forcing it")
		reset = true
	}

	if err := s.bootstrap(reset, r.swdDivisor, r.settleDelay); err != nil {
		if rerr := s.release(); rerr != nil {
			s.log.Debugf("release after failed bootstrap: %v", rerr)
		}
		return nil, fmt.Errorf("open %s: %w", c.desc, err)
	}

	r.sessions = append(r.sessions, s)
	return s, nil
}

// bootstrap brings a freshly claimed probe into SWD debug mode.
func (s *Session) bootstrap(reset bool, swdDivisor uint16, settle time.Duration) error {
	mode, err := s.CurrentMode()
	if err != nil {
		return err
	}
	s.log.Debugf("probe in %s mode", mode)

	if mode == ModeDFU {
		if err := s.ExitDFU(); err != nil {
			return err
		}
	}
	if mode != ModeDebug {
		if err := s.EnterSWD(); err != nil {
			return err
		}
	}

	v, err := s.ReadVersion()
	if err != nil {
		return err
	}

	if reset {
		if v.Stlink > 1 {
			if err := s.DriveReset(ResetPulse); err != nil {
				return err
			}
		}
		if err := s.ResetSystem(); err != nil {
			return err
		}
		time.Sleep(settle)
	}

	if _, err := s.ReadCoreID(); err != nil {
		return err
	}

	if v.Has(FeatureTargetVoltage) {
		switch mv, err := s.TargetVoltage(); {
		case err != nil:
			s.log.Warnf("target voltage unavailable: %v", err)
		case mv < lowVoltageWarnMv:
			s.log.Warnf("target voltage %d mV is too low, check the target supply", mv)
		default:
			s.log.Debugf("target voltage %d mV", mv)
		}
	}

	if err := s.SetSWDClock(swdDivisor); err != nil && !errors.Is(err, ErrUnsupportedFeature) {
		return err
	}
	return nil
}
