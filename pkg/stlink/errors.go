package stlink

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport reports a failed, timed out or stack-level USB transfer.
	ErrTransport = errors.New("stlink: transport error")

	// ErrProtocol reports a reply whose length or content breaks the
	// operation's contract.
	ErrProtocol = errors.New("stlink: protocol error")

	// ErrUnsupportedFeature is returned, without any transfer, when the probe
	// firmware is too old for the requested operation.
	ErrUnsupportedFeature = errors.New("stlink: unsupported by probe firmware")

	// ErrDeviceNotFound means no attached probe satisfied the match criteria.
	ErrDeviceNotFound = errors.New("stlink: no matching device found")

	// ErrClaim covers kernel driver, configuration and interface claim
	// failures while opening a probe.
	ErrClaim = errors.New("stlink: unable to claim device")

	// ErrCommandOverflow is raised by the command builder when an operation
	// would write past the negotiated command length.
	ErrCommandOverflow = errors.New("stlink: command buffer overflow")

	// ErrInvalidCriteria rejects match criteria before any device is touched.
	ErrInvalidCriteria = errors.New("stlink: invalid match criteria")

	ErrInvalidRegister = errors.New("stlink: invalid register index")
	ErrInvalidLength   = errors.New("stlink: invalid transfer length")
	ErrClosed          = errors.New("stlink: session closed")

	errNilRegisterFile = fmt.Errorf("%w: nil register file", ErrInvalidRegister)
)
