// Package config loads unisync's configuration from defaults, a TOML config
// file, UNISYNC_* environment variables, and command-line flags, in that
// order of precedence, via spf13/viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the fully resolved set of values the daemon needs to boot.
type Config struct {
	// General
	DataDir  string `mapstructure:"data-dir"`
	DeviceName string `mapstructure:"device-name"`

	// Network
	ListenAddrs []string `mapstructure:"listen-addrs"`

	// Storage
	BlobCacheMaxEntries int   `mapstructure:"blob-cache-max-entries"`
	BlobCacheMaxBytes   int64 `mapstructure:"blob-cache-max-bytes"`
	RetentionDays       int   `mapstructure:"retention-days"`

	// Logging
	NoBackground bool   `mapstructure:"no-background"`
	LogFormat    string `mapstructure:"log-format"`
	LogLevel     string `mapstructure:"log-level"`
}

// BindViper wires a command's flags into a viper instance with the standard
// config file search order and UNISYNC_* env var prefix.
//
// Precedence (lowest -> highest): defaults -> config file -> UNISYNC_* env vars -> flags
func BindViper(cmd *cobra.Command, v *viper.Viper) error {
	configFlag, _ := cmd.Flags().GetString("config")
	if configFlag != "" {
		v.SetConfigFile(configFlag)
	} else {
		v.SetConfigName("unisync")
		v.SetConfigType("toml")
		for _, p := range ConfigPaths() {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("config: %w", err)
		}
	}

	v.SetEnvPrefix("UNISYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	return nil
}

// ConfigPaths returns the ordered list of directories to search for
// unisync.toml. Viper searches them in this order and uses the first
// unisync.toml it finds.
func ConfigPaths() []string {
	var paths []string

	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "unisync"))
		}
		if appdata := os.Getenv("APPDATA"); appdata != "" {
			paths = append(paths, filepath.Join(appdata, "unisync"))
		}
	} else {
		paths = append(paths, "/etc/unisync")
		if home, err := os.UserHomeDir(); err == nil {
			paths = append(paths, filepath.Join(home, ".config", "unisync"))
		}
	}

	return paths
}

// DefaultDataDir returns the directory that holds the SQLite database, blob
// store, identity key, and local keyring files when --data-dir is unset.
func DefaultDataDir() string {
	if runtime.GOOS == "windows" {
		if appdata := os.Getenv("APPDATA"); appdata != "" {
			return filepath.Join(appdata, "unisync")
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "unisync")
	}
	return ".unisync"
}

// AddDaemonFlags adds the flags runServe needs, with defaults matching
// DefaultDataDir and a sensible LAN listen address.
func AddDaemonFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("data-dir", DefaultDataDir(), "directory for the database, blob store, and key material")
	f.String("device-name", "", "name for this device shown to peers during pairing (default: hostname)")
	f.StringSlice("listen-addrs", []string{"/ip4/0.0.0.0/tcp/0"}, "libp2p listen multiaddrs")
	f.Int("blob-cache-max-entries", 256, "max representations held in the in-memory blob cache")
	f.Int64("blob-cache-max-bytes", 64<<20, "max total bytes held in the in-memory blob cache")
	f.Int("retention-days", 30, "delete clipboard history older than this many days (0 disables)")
}

// FromViper resolves a Config from a bound viper instance.
func FromViper(v *viper.Viper) Config {
	return Config{
		DataDir:             v.GetString("data-dir"),
		DeviceName:          v.GetString("device-name"),
		ListenAddrs:         v.GetStringSlice("listen-addrs"),
		BlobCacheMaxEntries: v.GetInt("blob-cache-max-entries"),
		BlobCacheMaxBytes:   v.GetInt64("blob-cache-max-bytes"),
		RetentionDays:       v.GetInt("retention-days"),
		NoBackground:        v.GetBool("no-background"),
		LogFormat:           v.GetString("log-format"),
		LogLevel:            v.GetString("log-level"),
	}
}

// AddLoggingFlags adds the standard logging flags to a command.
func AddLoggingFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("no-background", false, "run interactively: tinted logs + debug level")
	cmd.Flags().String("log-format", "auto", "log format: auto|text|json")
	cmd.Flags().String("log-level", "", "log level: debug|info|warn|error (default: info for service, debug for interactive)")
}

// AddConfigFlag adds the --config flag to a command.
func AddConfigFlag(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "path to config file (overrides auto-discovery)")
}
