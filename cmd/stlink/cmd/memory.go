package cmd

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/theg4sh/stlink/pkg/stlink"
)

var readCmd = &cobra.Command{
	Use:   "read ADDR LENGTH",
	Short: "Read target memory",
	Long: `Read LENGTH bytes of target memory starting at ADDR with 32-bit
transfers and print a hex dump. LENGTH must be a multiple of 4.

Example:
  stlink read 0x08000000 64`,
	Args: cobra.ExactArgs(2),
	RunE: runRead,
}

var writeCmd = &cobra.Command{
	Use:   "write ADDR HEXDATA",
	Short: "Write target memory",
	Long: `Write the bytes given as hex text to target memory at ADDR. Data whose
length is a multiple of 4 uses 32-bit transfers; anything else is written
bytewise, at most 64 bytes at a time.

Example:
  stlink write 0x20000000 deadbeef`,
	Args: cobra.ExactArgs(2),
	RunE: runWrite,
}

var debug32Cmd = &cobra.Command{
	Use:   "debug32 ADDR [VALUE]",
	Short: "Read or write one word through the debug port",
	Long: `Read the 32-bit word at ADDR through the debug access port, or write
VALUE to it when given. Useful for core debug registers such as DHCSR.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runDebug32,
}

func init() {
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(debug32Cmd)
}

func runRead(cmd *cobra.Command, args []string) error {
	addr, err := parseUint32("address", args[0])
	if err != nil {
		return err
	}
	length, err := parseUint32("length", args[1])
	if err != nil {
		return err
	}
	if length > 0xFFFF {
		return fmt.Errorf("length %d exceeds 65535", length)
	}

	return withSession(func(s stlink.Backend) error {
		data, err := s.ReadMem32(addr, uint16(length))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for off := 0; off < len(data); off += 16 {
			end := min(off+16, len(data))
			fmt.Fprintf(out, "%08x: % x\n", addr+uint32(off), data[off:end])
		}
		return nil
	})
}

func runWrite(cmd *cobra.Command, args []string) error {
	addr, err := parseUint32("address", args[0])
	if err != nil {
		return err
	}
	data, err := hex.DecodeString(strings.TrimPrefix(args[1], "0x"))
	if err != nil {
		return fmt.Errorf("invalid data %q: %w", args[1], err)
	}

	return withSession(func(s stlink.Backend) error {
		if len(data)%4 == 0 {
			err = s.WriteMem32(addr, data)
		} else {
			err = s.WriteMem8(addr, data)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d byte(s) at 0x%08x\n", len(data), addr)
		return nil
	})
}

func runDebug32(cmd *cobra.Command, args []string) error {
	addr, err := parseUint32("address", args[0])
	if err != nil {
		return err
	}
	var value uint32
	if len(args) == 2 {
		if value, err = parseUint32("value", args[1]); err != nil {
			return err
		}
	}

	return withSession(func(s stlink.Backend) error {
		if len(args) == 2 {
			if err := s.WriteDebug32(addr, value); err != nil {
				return err
			}
		}
		v, err := s.ReadDebug32(addr)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "0x%08x: 0x%08x\n", addr, v)
		return nil
	})
}
