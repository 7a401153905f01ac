package cmd

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/theg4sh/stlink/pkg/coreid"
	"github.com/theg4sh/stlink/pkg/selector"
	"github.com/theg4sh/stlink/pkg/stlink"
)

// simChipIDs are the DBGMCU_IDCODE values planted in the simulated targets:
// an STM32F40x rev Z behind the V2 and an STM32F30x behind the V2-1.
var simChipIDs = []uint32{0x10016413, 0x10036422}

func simulatedProbes() []*stlink.SimProbe {
	probes := stlink.DefaultSimProbes()
	for i, p := range probes {
		if i >= len(simChipIDs) {
			break
		}
		var word [4]byte
		binary.LittleEndian.PutUint32(word[:], simChipIDs[i])
		p.Poke(coreid.DBGMCUIDCode, word[:])
	}
	return probes
}

func newRegistry() *stlink.Registry {
	opts := []stlink.Option{
		stlink.WithLogger(logrus.NewEntry(logrus.StandardLogger())),
	}
	if swdKHz > 0 {
		div, khz := stlink.SWDClockDivisor(swdKHz)
		logrus.WithFields(logrus.Fields{
			"requested": swdKHz,
			"actual":    khz,
		}).Debug("selected SWD clock")
		opts = append(opts, stlink.WithSWDClock(div))
	}
	if useSim {
		opts = append(opts, stlink.WithBackend(stlink.NewSimBackend(simulatedProbes()...).Factory()))
	}
	return stlink.NewRegistry(opts...)
}

func criteria() (stlink.MatchCriteria, error) {
	text := deviceSel
	if serialSel != "" {
		if text != "" {
			text += ","
		}
		text += "serial=" + serialSel
	}
	c, err := selector.Parse(text)
	if err != nil {
		return c, fmt.Errorf("parse probe selector %q: %w", text, err)
	}
	return c, nil
}

// withSession opens the selected probe, runs fn and closes everything.
func withSession(fn func(s stlink.Backend) error) (err error) {
	c, err := criteria()
	if err != nil {
		return err
	}

	reg := newRegistry()
	defer func() {
		if cerr := reg.CloseAll(); cerr != nil && err == nil {
			err = fmt.Errorf("close probe: %w", cerr)
		}
	}()

	policy := stlink.NoReset
	if resetTarget {
		policy = stlink.Reset
	}
	s, err := reg.Open(c, policy)
	if err != nil {
		return fmt.Errorf("open probe %s: %w", c, err)
	}
	return fn(s)
}

func parseUint32(name, text string) (uint32, error) {
	v, err := strconv.ParseUint(text, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, text, err)
	}
	return uint32(v), nil
}
