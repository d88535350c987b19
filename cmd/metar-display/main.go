// Metar-display drives a small aviation weather display: it joins the
// configured network, fetches METAR and TAF reports for one station and pages
// them across a 128x64 panel, falling back to a captive configuration portal
// when no network is available.
//
// Usage:
//
//	metar-display run
//	metar-display portal
//	metar-display fetch [STATION]
//	metar-display wrap [--width N] TEXT...
//
// Settings are read from the environment (and a .env file when present).
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/metar-display/internal/device"
)

// exitReset is the exit status after a hardware reset, so a supervisor can
// tell a requested restart from a crash.
const exitReset = 3

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, device.ErrReset) {
			os.Exit(exitReset)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "metar-display",
	Short: "METAR/TAF station display",
	Long: `Fetches the latest METAR observation and TAF forecast for one station and
pages them on a 128x64 monochrome display.

Network credentials and the station code are set through the captive portal
and stored under DATA_DIR. Everything else is configured from the environment.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(portalCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(wrapCmd)
}
