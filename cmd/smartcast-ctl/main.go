// Smartcast-ctl is a command line remote for SmartCast TVs and displays.
//
// It discovers devices on the local network, pairs with them using the
// on-screen PIN flow, and issues authenticated commands: virtual remote
// key presses, settings reads and writes, input switching, and state
// queries. Pairing tokens are stored in a local registry so pairing is a
// one-time step per device.
//
// Usage:
//
//	smartcast-ctl [command] [flags]
//
// See 'smartcast-ctl --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/calbright/smartcast/internal/logging"
	"github.com/calbright/smartcast/internal/version"
)

func main() {
	defer logging.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "smartcast-ctl",
	Short: "SmartCast device remote control",
	Long: `A command line remote for SmartCast TVs and displays.

Discovers devices on the local network, pairs using the on-screen PIN
flow, and issues remote key presses, settings changes, and state queries
over the device's control API.`,
	Version: version.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Silent unless SMARTCAST_LOG_LEVEL is set
		return logging.InitializeFromEnv()
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("smartcast-ctl %s\n", version.Full())
	},
}
