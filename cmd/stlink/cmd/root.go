package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose     bool
	deviceSel   string
	serialSel   string
	resetTarget bool
	swdKHz      int
	useSim      bool
)

var rootCmd = &cobra.Command{
	Use:   "stlink",
	Short: "ST-Link probe tool",
	Long: `Talk to ST-Link/V1, V2 and V2-1 debug probes over USB: list attached
probes, read target registers and memory, and control the core.

A probe is picked with --device using a selector such as "1:5",
"serial=066EFF555051897267233656" or both joined by a comma; --serial HEX is
a shorthand for the serial term. The STLINK_DEVICE and STLINK_SERIAL
environment variables are used when the flags are not given.

Examples:
  stlink probe                                   # List every attached probe
  stlink info --device 1:5                       # Firmware, voltage and core
  stlink read 0x08000000 64 --device serial=0670FF48   # Dump flash
  stlink regs --sim                              # Use simulated probes`,
	Version:           "0.3.0",
	SilenceUsage:      true,
	PersistentPreRunE: configure,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&deviceSel, "device", "d", "",
		`probe selector: "BUS:ADDR", "serial=HEX" or both (env STLINK_DEVICE)`)
	rootCmd.PersistentFlags().StringVar(&serialSel, "serial", "",
		"probe serial number in hex (env STLINK_SERIAL)")
	rootCmd.PersistentFlags().BoolVar(&resetTarget, "reset", false,
		"reset the target when opening the probe")
	rootCmd.PersistentFlags().IntVar(&swdKHz, "swd-khz", 0,
		"SWD clock in kHz, rounded down to a supported rate (default 1800)")
	rootCmd.PersistentFlags().BoolVar(&useSim, "sim", false,
		"use simulated probes instead of USB")
}

func configure(cmd *cobra.Command, args []string) error {
	logrus.SetLevel(logrus.WarnLevel)
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	fromEnv(cmd, "device", "STLINK_DEVICE", &deviceSel)
	fromEnv(cmd, "serial", "STLINK_SERIAL", &serialSel)
	if swdKHz < 0 {
		return fmt.Errorf("--swd-khz must be positive, got %d", swdKHz)
	}
	return nil
}

func fromEnv(cmd *cobra.Command, flag, env string, dst *string) {
	if cmd.Flags().Changed(flag) {
		return
	}
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}
