package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/unisync/internal/app"
	"go.klb.dev/unisync/internal/config"
)

func newStatusCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show paired devices and recent clipboard history",
		Long: `Opens this device's data directory read-write just long enough to
report paired devices and recent clipboard events, then exits.

Run this against a data directory that isn't also open under a live
"unisync serve": SQLite's locking will make the two processes wait
on each other rather than corrupt anything, but it will look stuck.

Flags and their environment variables / config-file keys
  --data-dir   UNISYNC_DATA_DIR   data-dir
  --json       (no env/config equivalent)

Precedence: defaults → config file → UNISYNC_* env vars → CLI flags`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return config.BindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runStatus(v) },
	}

	config.AddDaemonFlags(cmd)
	config.AddLoggingFlags(cmd)
	config.AddConfigFlag(cmd)
	cmd.Flags().Bool("json", false, "output raw JSON")

	return cmd
}

func runStatus(v *viper.Viper) error {
	cfg := config.FromViper(v)
	setupLoggingFromViper(cfg.NoBackground, cfg.LogFormat, cfg.LogLevel)

	a, err := app.Bootstrap(context.Background(), cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer a.Close()

	devices, err := a.Devices().ListAll()
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}
	events, err := a.Events().ListEvents(10, 0)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}

	deviceSettings, err := a.Settings()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if v.GetBool("json") {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"device":         deviceSettings.DisplayName(),
			"session":        sessionLabel(a),
			"paired_devices": devices,
			"events":         events,
		})
	}

	w := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Device:\t%s\n", deviceSettings.DisplayName())
	fmt.Fprintf(w, "Session:\t%s\n", sessionLabel(a))
	fmt.Fprintln(w)
	_ = w.Flush()

	fmt.Println("Paired devices:")
	if len(devices) == 0 {
		fmt.Println("  none")
	} else {
		dw := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
		fmt.Fprintln(dw, "  PEER ID\tSTATE\tPAIRED\tLAST SEEN")
		for _, d := range devices {
			fmt.Fprintf(dw, "  %s\t%s\t%s\t%s\n",
				d.PeerID, d.PairingState, fmtAge(d.PairedAt), fmtAge(d.LastSeenAt))
		}
		_ = dw.Flush()
	}

	fmt.Println()
	fmt.Println("Recent clipboard history:")
	if len(events) == 0 {
		fmt.Println("  none")
		return nil
	}
	ew := tabwriter.NewWriter(os.Stdout, 1, 0, 2, ' ', 0)
	fmt.Fprintln(ew, "  EVENT ID\tDEVICE\tCAPTURED")
	for _, e := range events {
		fmt.Fprintf(ew, "  %s\t%s\t%s\n", e.EventID, e.DeviceID, fmtAge(time.UnixMilli(e.CapturedAtMS)))
	}
	return ew.Flush()
}

func sessionLabel(a *app.App) string {
	if a.Session().IsReady() {
		return "unlocked"
	}
	return "locked"
}

// fmtAge returns a human-readable age string like "5s ago", "2m ago", or a
// clock time for ages over an hour.
func fmtAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	age := time.Since(t).Round(time.Second)
	if age < time.Minute {
		return fmt.Sprintf("%ds ago", int(age.Seconds()))
	}
	if age < time.Hour {
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	}
	return t.Format("15:04:05")
}
