package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/theg4sh/stlink/pkg/stlink"
)

var (
	showSpecial bool
	setRegs     []string
)

var regsCmd = &cobra.Command{
	Use:   "regs",
	Short: "Halt the core and dump its registers",
	Long: `Halt the target core and print r0-r15, xPSR and both stack pointers.
With --special the CONTROL, FAULTMASK, BASEPRI and PRIMASK registers and the
FPU registers are read through DCRSR/DCRDR as well.

Registers can be written before the dump with --set NAME=VALUE, e.g.
  stlink regs --set r0=0x20000000 --set primask=1`,
	Args: cobra.NoArgs,
	RunE: runRegs,
}

func init() {
	rootCmd.AddCommand(regsCmd)

	regsCmd.Flags().BoolVar(&showSpecial, "special", false,
		"also read special and floating-point registers")
	regsCmd.Flags().StringSliceVar(&setRegs, "set", nil,
		"write NAME=VALUE before reading (repeatable)")
}

func runRegs(cmd *cobra.Command, args []string) error {
	return withSession(func(s stlink.Backend) error {
		if err := s.ForceDebug(); err != nil {
			return err
		}

		var regs stlink.RegisterFile
		for _, assign := range setRegs {
			if err := writeRegister(s, assign, &regs); err != nil {
				return err
			}
		}

		if err := s.ReadAllRegs(&regs); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for i, v := range regs.R {
			fmt.Fprintf(out, "%-4s 0x%08x", fmt.Sprintf("r%d", i), v)
			if i%4 == 3 {
				fmt.Fprintln(out)
			} else {
				fmt.Fprint(out, "  ")
			}
		}
		fmt.Fprintf(out, "xpsr 0x%08x  msp  0x%08x  psp  0x%08x\n", regs.XPSR, regs.MainSP, regs.ProcessSP)

		if !showSpecial {
			return nil
		}
		if err := s.ReadAllUnsupportedRegs(&regs); err != nil {
			return err
		}
		fmt.Fprintf(out, "control 0x%02x  faultmask 0x%02x  basepri 0x%02x  primask 0x%02x\n",
			regs.Control, regs.FaultMask, regs.BasePri, regs.PriMask)
		fmt.Fprintf(out, "fpscr 0x%08x\n", regs.FPSCR)
		for i, v := range regs.S {
			fmt.Fprintf(out, "%-4s 0x%08x", fmt.Sprintf("s%d", i), v)
			if i%4 == 3 {
				fmt.Fprintln(out)
			} else {
				fmt.Fprint(out, "  ")
			}
		}
		return nil
	})
}

// registerNames maps the names accepted by --set to core register numbers
// (direct access) or DCRSR selectors (indirect access).
var registerNames = map[string]struct {
	idx      int
	indirect bool
}{
	"xpsr":      {stlink.RegXPSR, false},
	"msp":       {stlink.RegMainSP, false},
	"psp":       {stlink.RegProcessSP, false},
	"control":   {stlink.RegControl, true},
	"faultmask": {stlink.RegFaultMask, true},
	"basepri":   {stlink.RegBasePri, true},
	"primask":   {stlink.RegPriMask, true},
	"fpscr":     {stlink.RegFPSCR, true},
}

func lookupRegister(name string) (idx int, indirect bool, err error) {
	if r, ok := registerNames[name]; ok {
		return r.idx, r.indirect, nil
	}
	var n int
	switch {
	case parseIndexed(name, 'r', &n) && n < 16:
		return n, false, nil
	case name == "sp":
		return 13, false, nil
	case name == "lr":
		return 14, false, nil
	case name == "pc":
		return 15, false, nil
	case parseIndexed(name, 's', &n) && n < 32:
		return stlink.RegS0 + n, true, nil
	}
	return 0, false, fmt.Errorf("unknown register %q", name)
}

func parseIndexed(name string, prefix byte, n *int) bool {
	rest, ok := strings.CutPrefix(name, string(prefix))
	if !ok || rest == "" || rest[0] == '+' || rest[0] == '-' {
		return false
	}
	v, err := strconv.Atoi(rest)
	if err != nil {
		return false
	}
	*n = v
	return true
}

func writeRegister(s stlink.Backend, assign string, regs *stlink.RegisterFile) error {
	name, value, ok := strings.Cut(assign, "=")
	if !ok || name == "" {
		return fmt.Errorf("invalid --set %q, want NAME=VALUE", assign)
	}
	idx, indirect, err := lookupRegister(strings.ToLower(name))
	if err != nil {
		return err
	}
	v, err := parseUint32("value for "+name, value)
	if err != nil {
		return err
	}
	if indirect {
		return s.WriteUnsupportedReg(idx, v, regs)
	}
	return s.WriteReg(idx, v)
}
