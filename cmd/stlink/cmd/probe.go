package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "List attached ST-Link probes",
	Long: `Open every probe matching --device (all probes when it is empty), reset
each target and print its firmware version and target voltage. Probes that
cannot be opened are skipped with a warning.`,
	Args: cobra.NoArgs,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	c, err := criteria()
	if err != nil {
		return err
	}

	reg := newRegistry()
	defer reg.CloseAll()

	if _, err := reg.Probe(c); err != nil {
		return fmt.Errorf("probe %s: %w", c, err)
	}

	out := cmd.OutOrStdout()
	n := 0
	for s := range reg.All() {
		n++
		info := s.Info()
		fmt.Fprintf(out, "%d. %s\n", n, info.Label())
		fmt.Fprintf(out, "   Firmware: %s (%s framing)\n", info.Version, info.Variant)
		if mv, err := s.TargetVoltage(); err == nil {
			fmt.Fprintf(out, "   Target:   %d.%03d V\n", mv/1000, mv%1000)
		}
	}
	fmt.Fprintf(out, "Found %d probe(s)\n", n)
	return reg.CloseAll()
}
