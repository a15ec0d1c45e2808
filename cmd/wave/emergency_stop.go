package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var emergencyStopCmd = &cobra.Command{
	Use:   "emergency-stop",
	Short: "Trip the process-wide operator kill switch",
	Long: `emergency-stop writes the sentinel file every wave serve driver
checks before a dispatch and between worker turns (spec §5/§6). It acts
directly on the filesystem rather than through the HTTP control surface,
so it works even if wave serve is unreachable — the sentinel is the
fail-safe of last resort.

To abort a single session instead, use "wave session abort" or
"wave session emergency-stop <id>".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.EmergencyStop.SentinelPath
		if err := os.WriteFile(path, []byte("emergency stop requested via wave emergency-stop\n"), 0o644); err != nil {
			return fmt.Errorf("write emergency stop sentinel: %w", err)
		}
		fmt.Printf("emergency stop sentinel written: %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(emergencyStopCmd)
}
