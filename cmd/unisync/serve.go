package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/unisync/internal/app"
	"go.klb.dev/unisync/internal/config"
)

func newServeCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the clipboard sync daemon",
		Long: `Starts unisync: watches the local clipboard, stores every change as
encrypted history, discovers other unisync instances on the LAN via
mDNS, and syncs clipboard updates with devices you've paired.

The daemon starts locked unless a profile was already initialized and
its key material auto-unlocks cleanly; run "unisync init" first if
this is a fresh data directory.

Flags, environment variables, and config-file keys
  Flag                       Env var                          Config key
  ─────────────────────────────────────────────────────────────────────
  --data-dir                 UNISYNC_DATA_DIR                 data-dir
  --device-name              UNISYNC_DEVICE_NAME              device-name
  --listen-addrs             UNISYNC_LISTEN_ADDRS              listen-addrs
  --blob-cache-max-entries   UNISYNC_BLOB_CACHE_MAX_ENTRIES   blob-cache-max-entries
  --blob-cache-max-bytes     UNISYNC_BLOB_CACHE_MAX_BYTES     blob-cache-max-bytes
  --retention-days           UNISYNC_RETENTION_DAYS           retention-days
  --log-level                UNISYNC_LOG_LEVEL                log-level    (debug|info|warn|error)
  --log-format               UNISYNC_LOG_FORMAT               log-format   (auto|text|json)
  --config                   (flag only)

Config file search order (first found wins; --config skips the search
and uses only the path it names)
  /etc/unisync/unisync.toml
  $HOME/.config/unisync/unisync.toml

Precedence: defaults → config file → UNISYNC_* env vars → CLI flags`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return config.BindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runServe(v) },
	}

	config.AddDaemonFlags(cmd)
	config.AddLoggingFlags(cmd)
	config.AddConfigFlag(cmd)

	return cmd
}

func runServe(v *viper.Viper) error {
	cfg := config.FromViper(v)
	setupLoggingFromViper(cfg.NoBackground, cfg.LogFormat, cfg.LogLevel)

	slog.Info("unisync serve starting",
		"version", Version,
		"data_dir", cfg.DataDir,
		"device_name", cfg.DeviceName,
		"listen_addrs", cfg.ListenAddrs,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Bootstrap(ctx, cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer a.Close()

	state, err := a.EncryptionState()
	if err != nil {
		slog.Warn("could not read encryption state", "err", err)
	} else if !a.Session().IsReady() {
		slog.Warn("starting locked: run \"unisync init\" to set a passphrase, or check key material", "encryption_state", state)
	}

	if cfg.NoBackground {
		go runPairingConsole(ctx, a)
	}

	return a.Run(ctx)
}
