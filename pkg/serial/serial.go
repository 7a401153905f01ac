// Package serial normalizes ST-Link USB serial numbers.
//
// A probe reports its serial through a USB string descriptor. Depending on the
// probe generation the descriptor holds either raw bytes or hex text, and users
// type serials as hex text. Every representation is converted to Binary before
// two serials are compared.
package serial

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
)

// Format identifies how the bytes of a Number are to be read.
type Format uint8

const (
	Unknown Format = iota
	Binary
	Hex
	Ascii
)

func (f Format) String() string {
	switch f {
	case Binary:
		return "binary"
	case Hex:
		return "hex"
	case Ascii:
		return "ascii"
	default:
		return "unknown"
	}
}

// ErrFormat reports malformed serial input: odd length text, invalid hex
// digits, or an unknown source or target format.
var ErrFormat = errors.New("serial: malformed serial number")

// Number is a serial in an explicitly stated representation.
type Number struct {
	Format Format
	Data   []byte
}

// New copies data into a Number of the given format.
func New(format Format, data []byte) Number {
	return Number{Format: format, Data: append([]byte(nil), data...)}
}

// FromHex wraps hex text, e.g. a serial typed by a user.
func FromHex(text string) Number {
	return Number{Format: Hex, Data: []byte(text)}
}

// IsZero reports whether n carries no serial at all.
func (n Number) IsZero() bool {
	return len(n.Data) == 0
}

// Convert returns n re-encoded as format. Converting to the same format returns
// a copy. Binary and Ascii share the raw byte representation.
func Convert(n Number, format Format) (Number, error) {
	if n.Format != Binary && len(n.Data)%2 != 0 {
		return Number{}, fmt.Errorf("%w: %s serial has odd length %d", ErrFormat, n.Format, len(n.Data))
	}
	if n.Format == format {
		return New(format, n.Data), nil
	}

	switch {
	case n.Format == Unknown || format == Unknown:
		return Number{}, fmt.Errorf("%w: cannot convert %s to %s", ErrFormat, n.Format, format)

	case n.Format == Hex:
		raw := make([]byte, hex.DecodedLen(len(n.Data)))
		if _, err := hex.Decode(raw, n.Data); err != nil {
			return Number{}, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		return Number{Format: format, Data: raw}, nil

	case format == Hex:
		text := make([]byte, hex.EncodedLen(len(n.Data)))
		hex.Encode(text, n.Data)
		return Number{Format: Hex, Data: text}, nil

	default:
		// binary <-> ascii
		return New(format, n.Data), nil
	}
}

// Equal compares two Binary serials. Comparing any other representation is a
// programming error and panics; normalize with Convert first.
func (n Number) Equal(other Number) bool {
	if n.Format != Binary || other.Format != Binary {
		panic(fmt.Sprintf("serial: Equal on %s and %s serials, both must be binary", n.Format, other.Format))
	}
	return bytes.Equal(n.Data, other.Data)
}

// String renders the serial for display: hex text for Binary, the text itself
// for Hex and Ascii.
func (n Number) String() string {
	switch n.Format {
	case Binary:
		return fmt.Sprintf("%X", n.Data)
	case Hex, Ascii:
		return string(n.Data)
	default:
		return fmt.Sprintf("%q", n.Data)
	}
}
