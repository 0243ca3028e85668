// unisync: peer-to-peer clipboard synchronization for trusted LAN devices.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go.klb.dev/unisync/internal/logging"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "unisync",
		Short: "Peer-to-peer clipboard sync for trusted LAN devices",
		Long: `unisync watches the local clipboard, encrypts every change under a
passphrase-derived key, and propagates it to devices you've paired on
the local network.

Run "unisync init" once to set a passphrase and "unisync serve" to start
the daemon. To trust another device, run "unisync serve --no-background"
on both and use the console's pair/accept commands.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(),
		newInitCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("unisync %s\n", Version)
		},
	}
}

// resolveLogging sets up the global slog logger after flags are parsed.
func resolveLogging(interactive bool, formatStr, levelStr string) {
	format := logging.ParseFormat(formatStr)
	level := logging.ParseLevel(levelStr)
	if levelStr == "" {
		if interactive {
			level = logging.ParseLevel("debug")
		} else {
			level = logging.ParseLevel("info")
		}
	}
	logging.Setup(format, level)
}

func setupLoggingFromViper(noBackground bool, logFormat, logLevel string) {
	interactive := noBackground || logging.IsTTY(os.Stderr)
	resolveLogging(interactive, logFormat, logLevel)
}
