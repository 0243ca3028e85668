package pairingstream

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.klb.dev/unisync/internal/pairing"
)

const (
	// MaxConcurrency bounds the number of simultaneously open pairing
	// streams across all peers.
	MaxConcurrency = 16
	// PerPeerConcurrency bounds simultaneously open pairing streams to a
	// single peer.
	PerPeerConcurrency = 2
	// IdleTimeout closes a stream that has read nothing for this long.
	IdleTimeout = 30 * time.Second
	// OutboundQueueDepth is the size of each stream's outbound frame
	// buffer before Send blocks.
	OutboundQueueDepth = 16
	// DrainPhase is how long Close waits for queued outbound frames to
	// flush before forcing the underlying stream shut.
	DrainPhase = 250 * time.Millisecond
)

// Stream is the minimal capability pairingstream needs from a transport;
// both net.Conn and libp2p's network.Stream satisfy it.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
	SetReadDeadline(time.Time) error
}

// Dispatcher delivers a decoded inbound message to the pairing orchestrator.
type Dispatcher interface {
	HandleMessage(ctx context.Context, peerID string, msg pairing.Message) error
}

// Service owns every open pairing stream and enforces the protocol's
// concurrency and idle limits.
type Service struct {
	mu          sync.Mutex
	perPeer     map[string]int
	sessions    map[string]*session // keyed by peerID, most recently opened wins for Send
	totalActive int32

	dispatcher Dispatcher
	log        *slog.Logger
}

// New constructs a Service bound to dispatcher.
func New(dispatcher Dispatcher, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{perPeer: make(map[string]int), sessions: make(map[string]*session), dispatcher: dispatcher, log: log}
}

// Send enqueues msg on peerID's currently open stream, blocking until
// there is room in the outbound queue, the session closes, or ctx is
// canceled. It satisfies pairing.NetworkPort.
func (s *Service) Send(ctx context.Context, peerID string, msg pairing.Message) error {
	s.mu.Lock()
	sess, ok := s.sessions[peerID]
	s.mu.Unlock()
	if !ok {
		return errors.New("pairingstream: no open stream to peer " + peerID)
	}
	return sess.Send(ctx, msg)
}

// session is one open pairing stream to a peer; every admitted Open call
// creates a new one.
type session struct {
	svc    *Service
	peerID string
	stream Stream
	out    chan pairing.Message
	closed atomic.Bool
	done   chan struct{}
}

// Open admits a new pairing stream for peerID if doing so does not exceed
// MaxConcurrency or PerPeerConcurrency; it returns false and closes the
// stream immediately otherwise. No Busy message is sent: the network
// adapter resets a refused inbound stream and reports a refused outbound
// one as an error.
func (s *Service) Open(ctx context.Context, peerID string, stream Stream) bool {
	s.mu.Lock()
	if s.totalActive >= MaxConcurrency || s.perPeer[peerID] >= PerPeerConcurrency {
		s.mu.Unlock()
		_ = stream.Close()
		return false
	}
	s.perPeer[peerID]++
	s.totalActive++
	sess := &session{svc: s, peerID: peerID, stream: stream, out: make(chan pairing.Message, OutboundQueueDepth), done: make(chan struct{})}
	s.sessions[peerID] = sess
	s.mu.Unlock()

	go sess.writeLoop()
	go sess.readLoop(ctx)
	return true
}

// Send enqueues msg for delivery on this peer's outbound stream, blocking
// the caller while the queue is full rather than dropping the frame. It
// returns early if the session closes or ctx is canceled.
func (sess *session) Send(ctx context.Context, msg pairing.Message) error {
	select {
	case sess.out <- msg:
		return nil
	case <-sess.done:
		return errors.New("pairingstream: session closed for peer " + sess.peerID)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (sess *session) writeLoop() {
	for msg := range sess.out {
		if err := WriteFrame(sess.stream, msg); err != nil {
			sess.svc.log.Warn("pairingstream: write failed", "peer", sess.peerID, "err", err)
			sess.close()
			return
		}
	}
}

func (sess *session) readLoop(ctx context.Context) {
	defer sess.close()
	br := bufio.NewReaderSize(sess.stream, 4096)

	for {
		_ = sess.stream.SetReadDeadline(time.Now().Add(IdleTimeout))
		msg, err := ReadFrame(br)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				sess.svc.log.Debug("pairingstream: read ended", "peer", sess.peerID, "err", err)
			}
			return
		}
		if err := sess.svc.dispatcher.HandleMessage(ctx, sess.peerID, msg); err != nil {
			sess.svc.log.Warn("pairingstream: dispatch failed", "peer", sess.peerID, "err", err)
		}
	}
}

func (sess *session) close() {
	if !sess.closed.CompareAndSwap(false, true) {
		return
	}
	close(sess.done)
	time.AfterFunc(DrainPhase, func() {
		close(sess.out)
		_ = sess.stream.Close()

		sess.svc.mu.Lock()
		sess.svc.perPeer[sess.peerID]--
		if sess.svc.perPeer[sess.peerID] <= 0 {
			delete(sess.svc.perPeer, sess.peerID)
		}
		if sess.svc.sessions[sess.peerID] == sess {
			delete(sess.svc.sessions, sess.peerID)
		}
		sess.svc.totalActive--
		sess.svc.mu.Unlock()
	})
}
