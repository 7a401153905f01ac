// Package selector parses textual ST-Link match criteria.
//
// A selector is a comma separated list of at most one position term
// (BUS:ADDR, decimal) and at most one serial term (serial=HEX).
package selector

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/theg4sh/stlink/pkg/serial"
	"github.com/theg4sh/stlink/pkg/stlink"
)

// ErrInvalid reports a selector that parses but does not make sense.
var ErrInvalid = errors.New("selector: invalid device selector")

// Parser turns selector text into match criteria.
type Parser struct {
	parser *participle.Parser[Selector]
}

// NewParser creates a new selector parser instance
func NewParser() (*Parser, error) {
	parser, err := participle.Build[Selector](
		participle.Lexer(SelectorLexer),
		participle.Elide("Whitespace"),
		participle.UseLookahead(2),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build parser: %w", err)
	}

	return &Parser{parser: parser}, nil
}

// ParseString parses a selector into its syntax tree.
func (p *Parser) ParseString(input string) (*Selector, error) {
	sel, err := p.parser.ParseString("", input)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return sel, nil
}

// Criteria parses input and converts it to match criteria. An empty
// selector matches any probe.
func (p *Parser) Criteria(input string) (stlink.MatchCriteria, error) {
	sel, err := p.ParseString(input)
	if err != nil {
		return stlink.MatchCriteria{}, err
	}
	return sel.Criteria()
}

// Criteria validates the terms and converts them to match criteria.
func (s *Selector) Criteria() (stlink.MatchCriteria, error) {
	var (
		c         stlink.MatchCriteria
		havePos   bool
		haveSerNo bool
	)
	for _, t := range s.Terms {
		switch {
		case t.Position != nil:
			if havePos {
				return c, fmt.Errorf("%w: more than one BUS:ADDR term", ErrInvalid)
			}
			havePos = true
			bus, err := positionField("bus", t.Position.Bus)
			if err != nil {
				return c, err
			}
			addr, err := positionField("address", t.Position.Address)
			if err != nil {
				return c, err
			}
			c.Bus, c.Address = bus, addr

		case t.Serial != nil:
			if haveSerNo {
				return c, fmt.Errorf("%w: more than one serial term", ErrInvalid)
			}
			haveSerNo = true
			sn := serial.FromHex(t.Serial.Hex)
			if _, err := serial.Convert(sn, serial.Binary); err != nil {
				return c, err
			}
			c.Serial = sn
		}
	}
	return c, nil
}

func positionField(name, text string) (int, error) {
	n, err := strconv.ParseUint(text, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a number between 1 and 255", ErrInvalid, name, text)
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: %s must not be zero", ErrInvalid, name)
	}
	return int(n), nil
}

var defaultParser = func() *Parser {
	p, err := NewParser()
	if err != nil {
		panic(err)
	}
	return p
}()

// Parse converts selector text to match criteria using a shared parser.
func Parse(input string) (stlink.MatchCriteria, error) {
	return defaultParser.Criteria(input)
}
