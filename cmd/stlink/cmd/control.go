package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/theg4sh/stlink/pkg/stlink"
)

var hardReset bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the target",
	Long: `Reset the target through the core (SYSRESETREQ). With --hard the NRST
line is pulsed first on probes that drive it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return control(cmd, "reset", func(s stlink.Backend) error {
			if hardReset && s.Info().Version.Stlink > 1 {
				if err := s.DriveReset(stlink.ResetPulse); err != nil {
					return err
				}
			}
			return s.ResetSystem()
		})
	},
}

var haltCmd = &cobra.Command{
	Use:   "halt",
	Short: "Halt the core",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return control(cmd, "halt", stlink.Backend.ForceDebug)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Resume the core",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return control(cmd, "run", stlink.Backend.Run)
	},
}

var stepCmd = &cobra.Command{
	Use:   "step",
	Short: "Execute one instruction",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return control(cmd, "step", func(s stlink.Backend) error {
			if err := s.Step(); err != nil {
				return err
			}
			pc, err := s.ReadReg(15, nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pc 0x%08x\n", pc)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(haltCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(stepCmd)

	resetCmd.Flags().BoolVar(&hardReset, "hard", false, "pulse NRST before the system reset")
}

func control(cmd *cobra.Command, name string, fn func(stlink.Backend) error) error {
	return withSession(func(s stlink.Backend) error {
		if err := fn(s); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		status, err := s.ReadStatus()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Core %s\n", status)
		return nil
	})
}
