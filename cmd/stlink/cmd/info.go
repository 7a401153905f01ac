package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/theg4sh/stlink/pkg/coreid"
	"github.com/theg4sh/stlink/pkg/stlink"
)

var (
	outputJSON bool
)

// ProbeReport is the structured output of the info command.
type ProbeReport struct {
	Bus       int       `json:"bus"`
	Address   int       `json:"address"`
	Product   string    `json:"product"`
	Serial    string    `json:"serial"`
	Firmware  string    `json:"firmware"`
	Mode      string    `json:"mode"`
	VoltageMV int       `json:"target_voltage_mv,omitempty"`
	CoreID    string    `json:"core_id"`
	DebugPort string    `json:"debug_port,omitempty"`
	Designer  string    `json:"designer,omitempty"`
	Chip      *ChipInfo `json:"chip,omitempty"`
	Status    string    `json:"core_status"`
}

// ChipInfo describes the target MCU found through DBGMCU_IDCODE.
type ChipInfo struct {
	IDCode   string `json:"idcode"`
	Name     string `json:"name"`
	Family   string `json:"family"`
	Core     string `json:"core,omitempty"`
	Revision string `json:"revision"`
	HasFPU   bool   `json:"fpu"`
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show probe and target information",
	Long: `Open one probe and report its firmware, the target voltage, the debug
port IDCODE and, for STM32 targets, the device line read from DBGMCU_IDCODE.

Examples:
  stlink info --sim
  stlink info --json --device serial=0670FF484957847167071621 --sim`,
	Args: cobra.NoArgs,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)

	infoCmd.Flags().BoolVar(&outputJSON, "json", false,
		"output as JSON (for programmatic access)")
}

func runInfo(cmd *cobra.Command, args []string) error {
	return withSession(func(s stlink.Backend) error {
		report, err := buildReport(s)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if outputJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		fmt.Fprintf(out, "Probe:    %s\n", s.Info().Label())
		fmt.Fprintf(out, "Firmware: %s\n", report.Firmware)
		fmt.Fprintf(out, "Mode:     %s\n", report.Mode)
		if report.VoltageMV > 0 {
			fmt.Fprintf(out, "Voltage:  %d.%03d V\n", report.VoltageMV/1000, report.VoltageMV%1000)
		}
		fmt.Fprintf(out, "Core ID:  %s", report.CoreID)
		if report.DebugPort != "" {
			fmt.Fprintf(out, " (%s by %s)", report.DebugPort, report.Designer)
		}
		fmt.Fprintln(out)
		if report.Chip != nil {
			fmt.Fprintf(out, "Device:   %s [%s] rev %s (DBGMCU %s)\n",
				report.Chip.Name, report.Chip.Family, report.Chip.Revision, report.Chip.IDCode)
		}
		fmt.Fprintf(out, "Core:     %s\n", report.Status)
		return nil
	})
}

func buildReport(s stlink.Backend) (ProbeReport, error) {
	info := s.Info()
	r := ProbeReport{
		Bus:      info.Bus,
		Address:  info.Address,
		Product:  info.Description,
		Serial:   info.Serial.String(),
		Firmware: info.Version.String(),
	}

	mode, err := s.CurrentMode()
	if err != nil {
		return r, err
	}
	r.Mode = mode.String()

	if mv, err := s.TargetVoltage(); err == nil {
		r.VoltageMV = mv
	}

	raw, err := s.ReadCoreID()
	if err != nil {
		return r, err
	}
	id := coreid.Parse(raw)
	r.CoreID = fmt.Sprintf("0x%08X", raw)
	if dp, ok := id.DebugPort(); ok {
		r.DebugPort = dp
		if d, ok := coreid.LookupDesigner(id.DesignerCode); ok {
			r.Designer = d.Name
		} else {
			r.Designer = fmt.Sprintf("JEP106 0x%03X", id.DesignerCode)
		}

		dbgmcu, err := s.ReadDebug32(coreid.ChipIDAddress(id))
		if err != nil {
			return r, err
		}
		if dbgmcu != 0 {
			chip, _ := coreid.LookupChip(dbgmcu)
			r.Chip = &ChipInfo{
				IDCode:   fmt.Sprintf("0x%08X", dbgmcu),
				Name:     chip.Name,
				Family:   chip.Family,
				Core:     chip.Core,
				Revision: fmt.Sprintf("0x%04X", chip.Revision),
				HasFPU:   chip.HasFPU,
			}
		}
	}

	status, err := s.ReadStatus()
	if err != nil {
		return r, err
	}
	r.Status = status.String()
	return r, nil
}
