// Package network is the libp2p-backed adapter: it owns the node's
// identity, discovers peers on the LAN, and multiplexes the pairing and
// business protocol streams behind a connection policy.
package network

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	libp2pnet "github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"

	"go.klb.dev/unisync/internal/pairing"
	"go.klb.dev/unisync/internal/pairingstream"
)

const (
	mdnsServiceTag   = "unisync-lan"
	reconnectDelay   = time.Second
	maxReconnectWait = 30 * time.Second
	heartbeatEvery   = 20 * time.Second
)

// BusinessStreamHandler receives an opened, policy-approved business
// protocol stream. Defined here rather than importing internal/syncuc to
// keep the dependency one-directional (syncuc imports network, not the
// reverse).
type BusinessStreamHandler func(ctx context.Context, peerID peer.ID, stream libp2pnet.Stream)

// Adapter is the Network port: identity, discovery, and policy-gated
// protocol streams.
type Adapter struct {
	host     host.Host
	identity libp2pcrypto.PrivKey
	policy   *ConnectionPolicyResolver
	pairing  *pairingstream.Service
	log      *slog.Logger

	events chan Event

	mu          sync.Mutex
	businessFn  BusinessStreamHandler
	lastSeen    map[peer.ID]time.Time
	discoveredM map[peer.ID]struct{}
	mdnsSvc     mdns.Service
}

// New constructs and starts listening on an Adapter. dispatcher receives
// decoded pairing messages; policy gates business-stream admission.
func New(ctx context.Context, priv libp2pcrypto.PrivKey, listenAddrs []string, policy *ConnectionPolicyResolver, dispatcher pairingstream.Dispatcher, log *slog.Logger) (*Adapter, error) {
	if log == nil {
		log = slog.Default()
	}
	h, err := libp2p.New(
		libp2p.Identity(priv),
		libp2p.ListenAddrStrings(listenAddrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("network: create host: %w", err)
	}

	a := &Adapter{
		host:        h,
		identity:    priv,
		policy:      policy,
		pairing:     pairingstream.New(dispatcher, log),
		log:         log,
		events:      make(chan Event, 64),
		lastSeen:    make(map[peer.ID]time.Time),
		discoveredM: make(map[peer.ID]struct{}),
	}

	h.SetStreamHandler(protocol.ID(ProtocolPairing), a.handlePairingStream)
	h.SetStreamHandler(protocol.ID(ProtocolBusiness), a.handleBusinessStream)

	svc := mdns.NewMdnsService(h, mdnsServiceTag, a)
	if err := svc.Start(); err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("network: start mdns: %w", err)
	}
	a.mdnsSvc = svc

	go a.heartbeatLoop(ctx)
	return a, nil
}

// Reannounce restarts the mDNS advertisement, the only re-broadcast
// primitive the discovery service exposes; go-libp2p's mdns.Service carries
// no API for updating a TXT record in place, so a device-name change is
// republished by tearing the service down and bringing it back up under
// the same service tag.
func (a *Adapter) Reannounce() error {
	a.mu.Lock()
	svc := a.mdnsSvc
	a.mu.Unlock()
	if svc == nil {
		return fmt.Errorf("network: mdns service not running")
	}
	if err := svc.Close(); err != nil {
		return fmt.Errorf("network: stop mdns: %w", err)
	}
	newSvc := mdns.NewMdnsService(a.host, mdnsServiceTag, a)
	if err := newSvc.Start(); err != nil {
		return fmt.Errorf("network: restart mdns: %w", err)
	}
	a.mu.Lock()
	a.mdnsSvc = newSvc
	a.mu.Unlock()
	return nil
}

// Events returns the adapter's event feed; callers should drain it.
func (a *Adapter) Events() <-chan Event { return a.events }

// SetBusinessHandler registers the callback invoked for each accepted
// business-protocol stream.
func (a *Adapter) SetBusinessHandler(fn BusinessStreamHandler) {
	a.mu.Lock()
	a.businessFn = fn
	a.mu.Unlock()
}

// LocalPeerID returns this node's libp2p peer id.
func (a *Adapter) LocalPeerID() peer.ID { return a.host.ID() }

// DiscoveredPeers returns the peer ids currently known from mDNS discovery,
// for CLI tools that list pairing candidates.
func (a *Adapter) DiscoveredPeers() []peer.ID {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]peer.ID, 0, len(a.discoveredM))
	for id := range a.discoveredM {
		ids = append(ids, id)
	}
	return ids
}

// PublicKey returns this node's raw Ed25519 public key for pairing
// transcripts.
func (a *Adapter) PublicKey() ([]byte, error) { return PublicKeyBytes(a.identity) }

// HandlePeerFound implements mdns.Notifee: it is invoked once per
// discovered peer advertisement.
func (a *Adapter) HandlePeerFound(pi peer.AddrInfo) {
	a.mu.Lock()
	_, known := a.discoveredM[pi.ID]
	a.discoveredM[pi.ID] = struct{}{}
	a.mu.Unlock()

	if !known {
		a.emit(Event{Kind: EventPeerDiscovered, PeerID: pi.ID})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.host.Connect(ctx, pi); err != nil {
		a.log.Debug("network: connect failed, will retry via reconnect loop", "peer", pi.ID, "err", err)
		go a.reconnectWithBackoff(pi)
		return
	}
	a.markReady(pi.ID)
}

// reconnectWithBackoff retries a failed dial with exponential backoff,
// capped at maxReconnectWait, applied independently per discovered peer
// rather than a single upstream link.
func (a *Adapter) reconnectWithBackoff(pi peer.AddrInfo) {
	delay := reconnectDelay
	for {
		time.Sleep(delay)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := a.host.Connect(ctx, pi)
		cancel()
		if err == nil {
			a.markReady(pi.ID)
			return
		}
		if delay < maxReconnectWait {
			delay *= 2
			if delay > maxReconnectWait {
				delay = maxReconnectWait
			}
		}
		if a.host.Network().Connectedness(pi.ID) == libp2pnet.NotConnected && a.peerGone(pi.ID) {
			return
		}
	}
}

func (a *Adapter) peerGone(id peer.ID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.discoveredM[id]
	return !ok
}

func (a *Adapter) markReady(id peer.ID) {
	a.mu.Lock()
	a.lastSeen[id] = time.Now()
	a.mu.Unlock()
	a.emit(Event{Kind: EventPeerReady, PeerID: id})
}

// heartbeatLoop periodically marks stale peers not-ready, the supplement
// to discovery that detects peers which dropped off-LAN without a clean
// disconnect.
func (a *Adapter) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(heartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sweepStale()
		}
	}
}

func (a *Adapter) sweepStale() {
	cutoff := time.Now().Add(-3 * heartbeatEvery)
	a.mu.Lock()
	stale := make([]peer.ID, 0)
	for id, seen := range a.lastSeen {
		if seen.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		delete(a.lastSeen, id)
		delete(a.discoveredM, id)
	}
	a.mu.Unlock()

	for _, id := range stale {
		a.emit(Event{Kind: EventPeerNotReady, PeerID: id})
		a.emit(Event{Kind: EventPeerLost, PeerID: id})
	}
}

func (a *Adapter) handlePairingStream(s libp2pnet.Stream) {
	peerID := s.Conn().RemotePeer()
	decision, err := a.policy.Allow(peerID, ProtocolPairing)
	if err != nil || !decision.Allowed {
		a.denyProtocol(peerID, ProtocolPairing, DirectionInbound, decision, err)
		_ = s.Reset()
		return
	}
	if !a.pairing.Open(context.Background(), peerID.String(), s) {
		_ = s.Reset()
	}
}

func (a *Adapter) handleBusinessStream(s libp2pnet.Stream) {
	peerID := s.Conn().RemotePeer()
	decision, err := a.policy.Allow(peerID, ProtocolBusiness)
	if err != nil || !decision.Allowed {
		a.denyProtocol(peerID, ProtocolBusiness, DirectionInbound, decision, err)
		_ = s.Reset()
		return
	}

	a.mu.Lock()
	fn := a.businessFn
	a.mu.Unlock()
	if fn == nil {
		_ = s.Reset()
		return
	}
	a.markReady(peerID)
	fn(context.Background(), peerID, s)
}

// OpenBusinessStream dials peerID's business protocol for outbound sync,
// refusing the dial outright if policy would reject the peer anyway.
func (a *Adapter) OpenBusinessStream(ctx context.Context, peerID peer.ID) (libp2pnet.Stream, error) {
	decision, err := a.policy.Allow(peerID, ProtocolBusiness)
	if err != nil || !decision.Allowed {
		a.denyProtocol(peerID, ProtocolBusiness, DirectionOutbound, decision, err)
		if err != nil {
			return nil, fmt.Errorf("network: policy check: %w", err)
		}
		return nil, fmt.Errorf("network: business stream denied: %s", decision.Reason)
	}
	return a.host.NewStream(ctx, peerID, protocol.ID(ProtocolBusiness))
}

func (a *Adapter) denyProtocol(peerID peer.ID, protocolID string, dir Direction, decision Decision, err error) {
	reason := decision.Reason
	if err != nil {
		reason = DenyRepoError
	}
	a.emit(Event{
		Kind:         EventProtocolDenied,
		PeerID:       peerID,
		Protocol:     protocolID,
		PairingState: decision.PairingState,
		Direction:    dir,
		Reason:       reason,
	})
}

// Send implements pairing.NetworkPort by opening (or reusing) a pairing
// stream to peerID and handing the message to the pairing stream service.
func (a *Adapter) Send(ctx context.Context, peerIDStr string, msg pairing.Message) error {
	if err := a.pairing.Send(ctx, peerIDStr, msg); err == nil {
		return nil
	}

	pid, err := peer.Decode(peerIDStr)
	if err != nil {
		return fmt.Errorf("network: decode peer id: %w", err)
	}
	stream, err := a.host.NewStream(ctx, pid, protocol.ID(ProtocolPairing))
	if err != nil {
		return fmt.Errorf("network: open pairing stream: %w", err)
	}
	if !a.pairing.Open(ctx, peerIDStr, stream) {
		return fmt.Errorf("network: pairing stream rejected locally (concurrency limit)")
	}
	return a.pairing.Send(ctx, peerIDStr, msg)
}

func (a *Adapter) emit(ev Event) {
	select {
	case a.events <- ev:
	default:
		a.log.Warn("network: event channel full, dropping", "kind", ev.Kind)
	}
}

// Close shuts the host down.
func (a *Adapter) Close() error { return a.host.Close() }
