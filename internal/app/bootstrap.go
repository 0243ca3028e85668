// Package app is the composition root: it wires every repository, use
// case, and transport adapter into a running daemon, the way
// cmd/suffuse/server.go wired the hub, local peer, and federation link.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	libp2pnet "github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"

	"go.klb.dev/unisync/internal/blobworker"
	"go.klb.dev/unisync/internal/clip"
	"go.klb.dev/unisync/internal/clipboard"
	"go.klb.dev/unisync/internal/clipcache"
	"go.klb.dev/unisync/internal/config"
	"go.klb.dev/unisync/internal/network"
	"go.klb.dev/unisync/internal/pairing"
	"go.klb.dev/unisync/internal/repo/blobstore"
	"go.klb.dev/unisync/internal/repo/identitystore"
	"go.klb.dev/unisync/internal/repo/keymaterial"
	"go.klb.dev/unisync/internal/repo/sqlite"
	"go.klb.dev/unisync/internal/security"
	"go.klb.dev/unisync/internal/settings"
	"go.klb.dev/unisync/internal/syncuc"
	"go.klb.dev/unisync/internal/trust"
)

// App owns every long-lived collaborator started by Run and stopped by
// Close: a single struct gathering what a server command starts in
// sequence.
type App struct {
	cfg config.Config
	log *slog.Logger

	db       *sql.DB
	net      *network.Adapter
	orch     *pairing.Orchestrator
	session  *security.Session
	clipB    clip.Backend
	worker   *blobworker.Worker
	retainer *clipboard.RetentionSweeper
	repCache *clipcache.RepresentationCache
	spool    *clipcache.SpoolManager
	keyring  *keymaterial.LocalKeyring

	events    clipboard.EventRepository
	repsPlain *clipboard.EncryptingRepresentationRepository
	devices   trust.PairedDeviceRepository

	settingsPort settings.Port

	outbound *syncuc.Outbound
	tracker  *syncuc.OriginTracker

	peerWriters   map[peer.ID]libp2pnet.Stream
	peerWritersMu sync.Mutex

	cancel context.CancelFunc
}

// localIdentity adapts the network adapter's libp2p identity to
// pairing.Identity.
type localIdentity struct {
	deviceID   string
	deviceName string
	pubKey     []byte
}

func (i *localIdentity) DeviceID() string   { return i.deviceID }
func (i *localIdentity) DeviceName() string { return i.deviceName }
func (i *localIdentity) PublicKey() []byte  { return i.pubKey }

// clipWriter adapts clip.Backend.Write to syncuc.ClipboardWriter.
type clipWriter struct{ backend clip.Backend }

func (w *clipWriter) Write(text string) error {
	return w.backend.Write([]clip.Item{{MIME: "text/plain", Data: []byte(text)}})
}

// Bootstrap constructs an App from a resolved config, opening the database,
// loading or generating identity, and wiring every use case. It does not
// start any background loops; call Run for that.
func Bootstrap(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("app: create data dir: %w", err)
	}

	db, err := sqlite.Open(filepath.Join(cfg.DataDir, "unisync.db"))
	if err != nil {
		return nil, fmt.Errorf("app: open database: %w", err)
	}

	blobs, err := blobstore.New(filepath.Join(cfg.DataDir, "blobs"))
	if err != nil {
		return nil, fmt.Errorf("app: open blob store: %w", err)
	}

	ring, err := keymaterial.New(filepath.Join(cfg.DataDir, "keyring"))
	if err != nil {
		return nil, fmt.Errorf("app: open keyring: %w", err)
	}

	session := security.NewSession()
	keys := &keymaterial.Composite{Keyslots: &sqlite.KeyslotRepository{DB: db}, Keyring: ring}
	state := &sqlite.EncryptionStatePort{DB: db}

	unlocker := &security.AutoUnlocker{State: state, Keys: keys, Session: session}
	if unlocked, err := unlocker.AutoUnlock(); err != nil {
		log.Warn("app: auto-unlock failed, daemon starts locked", "err", err)
	} else if unlocked {
		log.Info("app: session unlocked from persisted key material")
	}

	idStore := identitystore.New(filepath.Join(cfg.DataDir, "identity.key"))
	priv, peerID, err := network.LoadOrCreateIdentity(idStore)
	if err != nil {
		return nil, fmt.Errorf("app: identity: %w", err)
	}
	pubKey, err := network.PublicKeyBytes(priv)
	if err != nil {
		return nil, fmt.Errorf("app: public key: %w", err)
	}

	settingsPort := &sqlite.SettingsRepository{DB: db}
	deviceSettings, err := settingsPort.Load()
	if err != nil {
		return nil, fmt.Errorf("app: load settings: %w", err)
	}
	if cfg.DeviceName != "" && cfg.DeviceName != deviceSettings.DeviceName {
		deviceSettings.DeviceName = cfg.DeviceName
		if err := settingsPort.Save(deviceSettings); err != nil {
			return nil, fmt.Errorf("app: save settings: %w", err)
		}
	}
	deviceName := deviceSettings.DeviceName
	if deviceName == "" {
		if h, err := os.Hostname(); err == nil {
			deviceName = h
		} else {
			deviceName = "unisync-device"
		}
	}
	identity := &localIdentity{deviceID: peerID.String(), deviceName: deviceName, pubKey: pubKey}

	devices := &sqlite.PairedDeviceRepository{DB: db}
	policy := &network.ConnectionPolicyResolver{Devices: devices}

	events := &sqlite.EventRepository{DB: db}
	repsInner := &sqlite.RepresentationRepository{DB: db}
	repsPlain := clipboard.NewEncryptingRepresentationRepository(repsInner, session)

	cache := clipcache.NewRepresentationCache(cfg.BlobCacheMaxEntries, cfg.BlobCacheMaxBytes)
	spool, err := clipcache.NewSpoolManager(filepath.Join(cfg.DataDir, "spool"))
	if err != nil {
		return nil, fmt.Errorf("app: spool: %w", err)
	}
	worker := blobworker.New(repsInner, cache, spool, session, blobs, 64)

	tracker := syncuc.NewOriginTracker()
	outbound := &syncuc.Outbound{DeviceID: identity.deviceID, DeviceName: identity.deviceName, Session: session}

	a := &App{
		cfg:          cfg,
		log:          log,
		db:           db,
		session:      session,
		worker:       worker,
		events:       events,
		repsPlain:    repsPlain,
		devices:      devices,
		settingsPort: settingsPort,
		outbound:     outbound,
		tracker:      tracker,
		repCache:     cache,
		spool:        spool,
		keyring:      ring,
		peerWriters:  make(map[peer.ID]libp2pnet.Stream),
	}

	orch := pairing.NewOrchestrator(devices, nil, identity, log, a.onVerificationNeeded, a.onPairingResult)
	a.orch = orch

	netAdapter, err := network.New(ctx, priv, cfg.ListenAddrs, policy, orch, log)
	if err != nil {
		return nil, fmt.Errorf("app: network: %w", err)
	}
	a.net = netAdapter
	// The orchestrator needs the adapter's Send capability, and the adapter
	// needs the orchestrator as its pairing dispatcher: constructed in this
	// order, the orchestrator's net field is patched in once the adapter
	// exists rather than restructuring both constructors around a cycle.
	orch.SetNetwork(netAdapter)
	netAdapter.SetBusinessHandler(a.handleBusinessStream)

	a.clipB = clip.New()
	a.retainer = &clipboard.RetentionSweeper{
		Events: events,
		MaxAge: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		Every:  time.Hour,
	}

	return a, nil
}

// onVerificationNeeded logs the short code a human must compare out of band.
// A real UI would subscribe to this instead.
func (a *App) onVerificationNeeded(sessionID, shortCode, peerFingerprint, peerName string) {
	a.log.Info("pairing: verify this code on both devices",
		"session", sessionID, "code", shortCode, "peer", peerName, "fingerprint", peerFingerprint)
}

// onPairingResult logs a session's terminal outcome.
func (a *App) onPairingResult(sessionID string, success bool, errMsg string) {
	if success {
		a.log.Info("pairing: completed", "session", sessionID)
		return
	}
	a.log.Warn("pairing: failed", "session", sessionID, "reason", errMsg)
}

// Run starts every background loop and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	go a.worker.Run(ctx)
	go a.retainer.Run(ctx)
	go a.watchClipboard(ctx)
	go a.watchNetworkEvents(ctx)
	go a.cleanupLoop(ctx)

	<-ctx.Done()
	return nil
}

// Close releases every resource opened by Bootstrap.
func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	a.clipB.Close()
	if a.net != nil {
		_ = a.net.Close()
	}
	return a.db.Close()
}

// watchClipboard drains clip.Backend.Watch, runs Capture on each change, and
// broadcasts any resulting text/plain representation to every peer with an
// open business stream.
func (a *App) watchClipboard(ctx context.Context) {
	capture := &clipboard.Capture{
		DeviceID: a.orch.LocalDeviceID(),
		Events:   a.events,
		Session:  a.session,
		Cache:    a.repCache,
		Spool:    a.spool,
		Blob:     a.worker,
	}

	watchCh := a.clipB.Watch()
	for {
		select {
		case <-ctx.Done():
			return
		case <-watchCh:
			items, err := a.clipB.Read()
			if err != nil {
				a.log.Warn("app: clipboard read failed", "err", err)
				continue
			}
			if origin := a.tracker.ConsumeOriginOrDefault(""); origin != "" {
				// This change just arrived from the network; Capture will
				// still record it locally (it is now part of history) but
				// it must not be re-broadcast as if it originated here.
				a.captureAndMaybeBroadcast(capture, items, false)
				continue
			}
			a.captureAndMaybeBroadcast(capture, items, true)
		}
	}
}

func (a *App) captureAndMaybeBroadcast(capture *clipboard.Capture, items []clip.Item, broadcast bool) {
	reps := make([]clipboard.ObservedRepresentation, 0, len(items))
	for i, it := range items {
		reps = append(reps, clipboard.ObservedRepresentation{
			RepID:    fmt.Sprintf("local-%d-%d", time.Now().UnixNano(), i),
			FormatID: it.MIME,
			MIME:     it.MIME,
			Bytes:    it.Data,
		})
	}
	result, err := capture.Run(clipboard.ClipboardSnapshot{TSMillis: time.Now().UnixMilli(), Reps: reps})
	if err != nil {
		a.log.Warn("app: capture failed", "err", err)
		return
	}
	if result == nil || !broadcast {
		return
	}
	for _, rep := range result.Reps {
		plain, err := a.repsPlain.GetRepresentation(rep.EventID, rep.RepID)
		if err != nil {
			continue
		}
		if err := a.broadcast(plain); err != nil {
			a.log.Warn("app: broadcast aborted", "err", err)
		}
	}
}

// broadcast sends rep to every peer with an open business stream. Failure
// on any peer aborts the broadcast immediately with an error naming that
// peer; peers not yet reached are left for the next capture's broadcast.
func (a *App) broadcast(rep clipboard.Representation) error {
	a.peerWritersMu.Lock()
	streams := make(map[peer.ID]libp2pnet.Stream, len(a.peerWriters))
	for id, s := range a.peerWriters {
		streams[id] = s
	}
	a.peerWritersMu.Unlock()

	for id, s := range streams {
		if err := a.outbound.Run(s, rep); err != nil {
			return fmt.Errorf("app: sync send to peer %s failed: %w", id, err)
		}
	}
	return nil
}

// handleBusinessStream is the network.BusinessStreamHandler: one stream per
// trusted peer, read loop in, this App's outbound writer registered out.
func (a *App) handleBusinessStream(ctx context.Context, peerID peer.ID, stream libp2pnet.Stream) {
	a.peerWritersMu.Lock()
	a.peerWriters[peerID] = stream
	a.peerWritersMu.Unlock()

	defer func() {
		a.peerWritersMu.Lock()
		delete(a.peerWriters, peerID)
		a.peerWritersMu.Unlock()
		_ = stream.Close()
	}()

	inbound := &syncuc.Inbound{
		DeviceID: a.orch.LocalDeviceID(),
		Session:  a.session,
		Tracker:  a.tracker,
		Writer:   &clipWriter{backend: a.clipB},
	}
	syncuc.ReadLoop(stream, inbound, a.log)
}

func (a *App) watchNetworkEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-a.net.Events():
			a.log.Debug("app: network event", "kind", ev.Kind, "peer", ev.PeerID)
			if ev.Kind == network.EventPeerReady {
				a.dialBusinessIfTrusted(ctx, ev.PeerID)
			}
		}
	}
}

func (a *App) dialBusinessIfTrusted(ctx context.Context, peerID peer.ID) {
	device, found, err := a.devices.GetByPeerID(peerID.String())
	if err != nil || !found || device.PairingState != trust.StateTrusted {
		return
	}
	a.peerWritersMu.Lock()
	_, already := a.peerWriters[peerID]
	a.peerWritersMu.Unlock()
	if already {
		return
	}
	stream, err := a.net.OpenBusinessStream(ctx, peerID)
	if err != nil {
		a.log.Debug("app: open business stream failed", "peer", peerID, "err", err)
		return
	}
	go a.handleBusinessStream(ctx, peerID, stream)
}

func (a *App) cleanupLoop(ctx context.Context) {
	t := time.NewTicker(5 * time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.orch.CleanupExpiredSessions(10 * time.Minute)
		}
	}
}

// Orchestrator exposes the pairing orchestrator for cmd/unisync's
// interactive pairing console.
func (a *App) Orchestrator() *pairing.Orchestrator { return a.orch }

// Session exposes the security session for cmd/unisync's serve and status
// subcommands.
func (a *App) Session() *security.Session { return a.session }

// Devices exposes the trust store for cmd/unisync's status subcommand.
func (a *App) Devices() trust.PairedDeviceRepository { return a.devices }

// Events exposes the clipboard event repository for cmd/unisync's status
// subcommand.
func (a *App) Events() clipboard.EventRepository { return a.events }

// Network exposes the network adapter for cmd/unisync's interactive
// pairing console.
func (a *App) Network() *network.Adapter { return a.net }

// EncryptionState exposes whether Initialize has ever run, for cmd/unisync
// serve to report without reaching into internal/repo/sqlite directly.
func (a *App) EncryptionState() (security.EncryptionState, error) {
	return (&sqlite.EncryptionStatePort{DB: a.db}).LoadState()
}

// Settings returns the persisted device settings document.
func (a *App) Settings() (settings.Settings, error) {
	return a.settingsPort.Load()
}

// SetDeviceName persists a new device display name and re-announces this
// device's presence on the local network under the new name.
func (a *App) SetDeviceName(name string) error {
	s, err := a.settingsPort.Load()
	if err != nil {
		return fmt.Errorf("app: load settings: %w", err)
	}
	s.DeviceName = name
	if err := a.settingsPort.Save(s); err != nil {
		return fmt.Errorf("app: save settings: %w", err)
	}
	if a.net != nil {
		if err := a.net.Reannounce(); err != nil {
			a.log.Warn("app: mdns reannounce failed", "err", err)
		}
	}
	return nil
}

// Initialize runs the Initialize use case against this App's repositories.
func (a *App) Initialize(passphrase string) error {
	initializer := &security.Initializer{
		State:   &sqlite.EncryptionStatePort{DB: a.db},
		Keys:    &keymaterial.Composite{Keyslots: &sqlite.KeyslotRepository{DB: a.db}, Keyring: a.keyring},
		Session: a.session,
	}
	return initializer.Initialize(passphrase)
}
