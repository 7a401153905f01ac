package selector

import (
	"errors"
	"testing"

	"github.com/theg4sh/stlink/pkg/serial"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		bus     int
		address int
		serial  string
	}{
		{"empty", "", 0, 0, ""},
		{"position", "1:5", 1, 5, ""},
		{"padded position", "001:012", 1, 12, ""},
		{"serial", "serial=066EFF555051897267233656", 0, 0, "066EFF555051897267233656"},
		{"serial keyword case", "SERIAL=0011", 0, 0, "0011"},
		{"both", " 2:7 , serial = 0670ff48 ", 2, 7, "0670ff48"},
		{"serial first", "serial=AB,3:4", 3, 4, "AB"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, err := Parse(tc.input)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tc.input, err)
			}
			if c.Bus != tc.bus || c.Address != tc.address {
				t.Fatalf("position = %d:%d, want %d:%d", c.Bus, c.Address, tc.bus, tc.address)
			}
			if string(c.Serial.Data) != tc.serial {
				t.Fatalf("serial = %q, want %q", c.Serial.Data, tc.serial)
			}
			if tc.serial != "" && c.Serial.Format != serial.Hex {
				t.Fatalf("serial format = %s, want hex", c.Serial.Format)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"zero bus", "0:5", ErrInvalid},
		{"huge address", "1:300", ErrInvalid},
		{"hex bus", "1a:5", ErrInvalid},
		{"two positions", "1:5,2:7", ErrInvalid},
		{"two serials", "serial=00,serial=11", ErrInvalid},
		{"odd serial", "serial=ABC", serial.ErrFormat},
		{"non hex serial", "serial=XYZW", serial.ErrFormat},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(tc.input); !errors.Is(err, tc.want) {
				t.Fatalf("Parse(%q) error = %v, want %v", tc.input, err, tc.want)
			}
		})
	}
}

func TestParseSyntaxErrors(t *testing.T) {
	for _, input := range []string{"1:", ":5", "serial", "1:5,", "bus=1"} {
		if _, err := Parse(input); err == nil {
			t.Errorf("Parse(%q) succeeded, want a syntax error", input)
		}
	}
}

func TestParseStringTree(t *testing.T) {
	p, err := NewParser()
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}
	sel, err := p.ParseString("4:2, serial=beef")
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	if len(sel.Terms) != 2 || sel.Terms[0].Position == nil || sel.Terms[1].Serial == nil {
		t.Fatalf("unexpected tree: %+v", sel.Terms)
	}
	if sel.Terms[1].Serial.Hex != "beef" {
		t.Errorf("Expected serial 'beef', got '%s'", sel.Terms[1].Serial.Hex)
	}
}
