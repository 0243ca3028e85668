package config

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func TestBindViperPrecedenceFlagsOverEnv(t *testing.T) {
	t.Setenv("UNISYNC_DEVICE_NAME", "from-env")

	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	AddDaemonFlags(cmd)
	AddConfigFlag(cmd)
	if err := cmd.Flags().Set("device-name", "from-flag"); err != nil {
		t.Fatalf("set flag: %v", err)
	}

	v := viper.New()
	if err := BindViper(cmd, v); err != nil {
		t.Fatalf("BindViper: %v", err)
	}

	if got := v.GetString("device-name"); got != "from-flag" {
		t.Fatalf("device-name = %q, want flag value to win over env", got)
	}
}

func TestBindViperFallsBackToEnvThenDefault(t *testing.T) {
	t.Setenv("UNISYNC_RETENTION_DAYS", "7")

	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	AddDaemonFlags(cmd)
	AddConfigFlag(cmd)

	v := viper.New()
	if err := BindViper(cmd, v); err != nil {
		t.Fatalf("BindViper: %v", err)
	}

	if got := v.GetInt("retention-days"); got != 7 {
		t.Fatalf("retention-days = %d, want env value 7", got)
	}
	if got := v.GetInt("blob-cache-max-entries"); got != 256 {
		t.Fatalf("blob-cache-max-entries = %d, want default 256", got)
	}
}

func TestFromViperResolvesEveryField(t *testing.T) {
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	AddDaemonFlags(cmd)
	AddLoggingFlags(cmd)
	AddConfigFlag(cmd)

	v := viper.New()
	if err := BindViper(cmd, v); err != nil {
		t.Fatalf("BindViper: %v", err)
	}

	cfg := FromViper(v)
	if cfg.DataDir == "" {
		t.Fatal("expected a non-empty default data dir")
	}
	if cfg.BlobCacheMaxEntries != 256 {
		t.Fatalf("BlobCacheMaxEntries = %d, want 256", cfg.BlobCacheMaxEntries)
	}
	if cfg.RetentionDays != 30 {
		t.Fatalf("RetentionDays = %d, want 30", cfg.RetentionDays)
	}
	if len(cfg.ListenAddrs) != 1 || cfg.ListenAddrs[0] != "/ip4/0.0.0.0/tcp/0" {
		t.Fatalf("ListenAddrs = %v, want the default LAN listen address", cfg.ListenAddrs)
	}
}

func TestConfigPathsNonEmpty(t *testing.T) {
	paths := ConfigPaths()
	if len(paths) == 0 {
		t.Fatal("expected at least one config search path")
	}
}

func TestDefaultDataDirNonEmpty(t *testing.T) {
	if DefaultDataDir() == "" {
		t.Fatal("expected a non-empty default data directory")
	}
}
