package stlink

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/gousb"
)

// DeviceDesc is the bus position and USB identity of an attached device.
type DeviceDesc struct {
	Bus     int
	Address int
	Vendor  uint16
	Product uint16
}

func (d DeviceDesc) String() string {
	return fmt.Sprintf("%03d:%03d %04x:%04x", d.Bus, d.Address, d.Vendor, d.Product)
}

// USBBackend lists and opens USB devices.
type USBBackend interface {
	// OpenDevices opens every device for which match returns true. Devices
	// that fail to open are skipped; the returned error then describes the
	// first failure while the opened devices are still returned.
	OpenDevices(match func(DeviceDesc) bool) ([]USBDevice, error)
	Close() error
}

// USBDevice is an opened but not yet claimed USB device.
type USBDevice interface {
	Desc() DeviceDesc
	SerialNumber() ([]byte, error)
	// Claim selects configuration 1, claims interface 0 and opens the bulk
	// endpoints. The kernel driver is detached when the platform allows it.
	Claim(out, in int) (Pipe, error)
	Close() error
}

// gousbBackend is the libusb implementation of USBBackend.
type gousbBackend struct {
	ctx *gousb.Context
}

// OpenUSB creates a libusb context.
func OpenUSB() USBBackend {
	return &gousbBackend{ctx: gousb.NewContext()}
}

func (b *gousbBackend) OpenDevices(match func(DeviceDesc) bool) ([]USBDevice, error) {
	devs, err := b.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return match(descFromGousb(desc))
	})

	out := make([]USBDevice, 0, len(devs))
	for _, dev := range devs {
		out = append(out, &gousbDevice{dev: dev})
	}
	if err != nil {
		return out, fmt.Errorf("%w: open devices: %w", ErrTransport, err)
	}
	return out, nil
}

func (b *gousbBackend) Close() error {
	if b.ctx == nil {
		return nil
	}
	err := b.ctx.Close()
	b.ctx = nil
	return err
}

func descFromGousb(desc *gousb.DeviceDesc) DeviceDesc {
	return DeviceDesc{
		Bus:     desc.Bus,
		Address: desc.Address,
		Vendor:  uint16(desc.Vendor),
		Product: uint16(desc.Product),
	}
}

type gousbDevice struct {
	dev *gousb.Device
}

func (d *gousbDevice) Desc() DeviceDesc {
	return descFromGousb(d.dev.Desc)
}

// SerialNumber returns the raw iSerial string descriptor bytes.
func (d *gousbDevice) SerialNumber() ([]byte, error) {
	s, err := d.dev.SerialNumber()
	if err != nil {
		return nil, fmt.Errorf("%w: read serial: %w", ErrTransport, err)
	}
	return []byte(s), nil
}

func (d *gousbDevice) Claim(out, in int) (Pipe, error) {
	if err := d.dev.SetAutoDetach(true); err != nil && !errors.Is(err, gousb.ErrorNotSupported) {
		return nil, fmt.Errorf("%w: detach kernel driver: %w", ErrClaim, err)
	}

	cfg, err := d.dev.Config(1)
	if err != nil {
		return nil, fmt.Errorf("%w: set configuration: %w", ErrClaim, err)
	}
	intf, err := cfg.Interface(0, 0)
	if err != nil {
		cfg.Close()
		return nil, fmt.Errorf("%w: claim interface: %w", ErrClaim, err)
	}

	epOut, err := intf.OutEndpoint(out)
	if err != nil {
		intf.Close()
		cfg.Close()
		return nil, fmt.Errorf("%w: open OUT endpoint %d: %w", ErrClaim, out, err)
	}
	epIn, err := intf.InEndpoint(in)
	if err != nil {
		intf.Close()
		cfg.Close()
		return nil, fmt.Errorf("%w: open IN endpoint %d: %w", ErrClaim, in, err)
	}

	return &gousbPipe{cfg: cfg, intf: intf, epOut: epOut, epIn: epIn}, nil
}

func (d *gousbDevice) Close() error {
	return d.dev.Close()
}

type gousbPipe struct {
	cfg   *gousb.Config
	intf  *gousb.Interface
	epOut *gousb.OutEndpoint
	epIn  *gousb.InEndpoint
}

func (p *gousbPipe) Write(ctx context.Context, b []byte) (int, error) {
	return p.epOut.WriteContext(ctx, b)
}

func (p *gousbPipe) Read(ctx context.Context, b []byte) (int, error) {
	return p.epIn.ReadContext(ctx, b)
}

func (p *gousbPipe) Close() error {
	if p.intf != nil {
		p.intf.Close()
		p.intf = nil
	}
	if p.cfg != nil {
		err := p.cfg.Close()
		p.cfg = nil
		return err
	}
	return nil
}
