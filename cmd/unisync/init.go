package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"go.klb.dev/unisync/internal/app"
	"go.klb.dev/unisync/internal/config"
)

func newInitCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Set a passphrase and generate a master key for this device",
		Long: `Derives a key-encryption key from a passphrase, generates the master
key that will protect every clipboard representation and outbound
sync message, and persists the wrapped result.

Fails if this data directory was already initialized. Run this once
per device before "unisync serve".`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return config.BindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runInit(v) },
	}

	config.AddDaemonFlags(cmd)
	config.AddLoggingFlags(cmd)
	config.AddConfigFlag(cmd)
	cmd.Flags().String("passphrase", "", "passphrase (omit to be prompted interactively)")

	return cmd
}

func runInit(v *viper.Viper) error {
	cfg := config.FromViper(v)
	setupLoggingFromViper(cfg.NoBackground, cfg.LogFormat, cfg.LogLevel)

	passphrase := v.GetString("passphrase")
	if passphrase == "" {
		var err error
		passphrase, err = promptPassphrase("Passphrase: ")
		if err != nil {
			return fmt.Errorf("read passphrase: %w", err)
		}
		confirm, err := promptPassphrase("Confirm passphrase: ")
		if err != nil {
			return fmt.Errorf("read passphrase: %w", err)
		}
		if passphrase != confirm {
			return fmt.Errorf("passphrases do not match")
		}
	}
	if passphrase == "" {
		return fmt.Errorf("passphrase must not be empty")
	}

	a, err := app.Bootstrap(context.Background(), cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer a.Close()

	if err := a.Initialize(passphrase); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	fmt.Println("unisync initialized. Run \"unisync serve\" to start syncing.")
	return nil
}

// promptPassphrase reads a line from the terminal without echoing it, or
// falls back to a plain scanned line when stdin is not a terminal.
func promptPassphrase(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	r := bufio.NewReader(os.Stdin)
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line, nil
}
