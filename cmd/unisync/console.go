package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/libp2p/go-libp2p/core/peer"

	"go.klb.dev/unisync/internal/app"
)

// runPairingConsole reads line commands from stdin for the lifetime of ctx,
// driving the live pairing orchestrator inside this process. Pairing
// sessions are in-memory per orchestrator instance, so deciding a session
// must happen in the same process that started it: there is no separate
// "unisync pair" subcommand for that reason.
func runPairingConsole(ctx context.Context, a *app.App) {
	fmt.Println(`unisync interactive console (--no-background). Commands:
  peers                 list peers discovered on the LAN
  pair <peer-id>        start pairing with a discovered peer
  accept <session-id>   accept a request, or confirm a matching short code
  reject <session-id>   reject a short code that doesn't match
  cancel <session-id>   cancel an in-flight session
  settings              print the persisted device settings
  rename <name>         change this device's name and re-announce it
  quit                  stop the daemon`)

	scanner := bufio.NewScanner(os.Stdin)
	lines := make(chan string)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if err := handleConsoleLine(ctx, a, line); err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
			}
		}
	}
}

func handleConsoleLine(ctx context.Context, a *app.App, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "peers":
		peers := a.Network().DiscoveredPeers()
		if len(peers) == 0 {
			fmt.Println("no peers discovered yet")
			return nil
		}
		for _, p := range peers {
			fmt.Println(p.String())
		}
		return nil

	case "pair":
		if len(fields) != 2 {
			return fmt.Errorf("usage: pair <peer-id>")
		}
		if _, err := peer.Decode(fields[1]); err != nil {
			return fmt.Errorf("invalid peer id: %w", err)
		}
		sid, err := a.Orchestrator().StartPairing(ctx, fields[1])
		if err != nil {
			return err
		}
		fmt.Printf("pairing session %s started; compare the short code on both devices\n", sid)
		return nil

	case "accept":
		if len(fields) != 2 {
			return fmt.Errorf("usage: accept <session-id>")
		}
		return a.Orchestrator().UserAccept(ctx, fields[1])

	case "reject":
		if len(fields) != 2 {
			return fmt.Errorf("usage: reject <session-id>")
		}
		return a.Orchestrator().UserReject(ctx, fields[1])

	case "cancel":
		if len(fields) != 2 {
			return fmt.Errorf("usage: cancel <session-id>")
		}
		return a.Orchestrator().UserCancel(ctx, fields[1])

	case "settings":
		s, err := a.Settings()
		if err != nil {
			return err
		}
		fmt.Printf("device_name=%q step_timeout=%s user_verification_timeout=%s session_timeout=%s max_retries=%d protocol_version=%d\n",
			s.DisplayName(), s.Pairing.StepTimeout, s.Pairing.UserVerificationTimeout, s.Pairing.SessionTimeout, s.Pairing.MaxRetries, s.Pairing.ProtocolVersion)
		return nil

	case "rename":
		if len(fields) != 2 {
			return fmt.Errorf("usage: rename <name>")
		}
		return a.SetDeviceName(fields[1])

	case "quit":
		os.Exit(0)
		return nil

	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
}
