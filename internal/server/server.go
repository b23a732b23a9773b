// Package server ties the RakNet listener, per-session state machine,
// and world/crypto collaborators together, mirroring the teacher's
// source/server/server.go Start/listen/updateLoop/sessionCleanupLoop
// shape but delegating the tick/cleanup loops to internal/raknet's own
// per-session worker goroutines (§5's cooperative-task model) instead
// of one global ticker touching every session.
package server

import (
	"net"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/voidworks/bedrockd/internal/bedrock"
	"github.com/voidworks/bedrockd/internal/bedrockcrypto"
	"github.com/voidworks/bedrockd/internal/config"
	"github.com/voidworks/bedrockd/internal/raknet"
	"github.com/voidworks/bedrockd/internal/world"
)

// GameHandler is re-exported so cmd/bedrockd can implement gameplay
// dispatch without importing internal/bedrock directly.
type GameHandler = bedrock.GameHandler

// Server owns the listener and the per-session wiring: every spawned
// session gets its own state machine, codec, and key exchange.
type Server struct {
	cfg     config.Config
	log     *logrus.Logger
	metrics *raknet.Metrics
	reader  world.WorldReader
	blobs   *world.BlobCache
	game    GameHandler

	listener *raknet.Listener
}

// New constructs a Server bound to cfg.BindAddress. reader may be nil if no
// world database is configured (blob cache remains usable for
// already-serialized content regardless).
func New(cfg config.Config, log *logrus.Logger, reg prometheus.Registerer, reader world.WorldReader, game GameHandler) (*Server, error) {
	addr, err := net.ResolveUDPAddr("udp", cfg.BindAddress)
	if err != nil {
		return nil, errors.Wrap(err, "server: resolve bind address")
	}

	s := &Server{
		cfg:     cfg,
		log:     log,
		metrics: raknet.NewMetrics(reg),
		reader:  reader,
		blobs:   world.NewBlobCache(),
		game:    game,
	}

	offline := newOfflineHandler("bedrockd", s.onOpenConnection)
	listener, err := raknet.Listen(raknet.ListenConfig{
		Addr:    addr,
		Offline: offline,
		Log:     log,
		Metrics: s.metrics,
	})
	if err != nil {
		return nil, err
	}
	s.listener = listener
	return s, nil
}

// onOpenConnection is invoked by the offline handshake once a client
// completes open-connection request 1/2; it spawns the session and
// attaches its game-packet state machine.
func (s *Server) onOpenConnection(addr net.Addr, guid uint64, mtu int) {
	session := s.listener.Spawn(addr, guid, mtu, s)

	kex, err := bedrockcrypto.NewSessionKeyExchange()
	if err != nil {
		s.log.WithError(err).Warn("server: failed to prepare key exchange, closing session")
		session.Close(err)
		return
	}

	sm := bedrock.NewStateMachine(session, s.cfg.StateMachineConfig(), bedrockcrypto.LoginAuthenticator{}, kex, s.game, s.log.WithField("addr", addr.String()))
	session.Deliver = func(payload []byte) {
		if err := sm.HandleBatch(payload); err != nil {
			s.log.WithError(err).WithField("addr", addr.String()).Debug("session closing on fatal protocol error")
		}
	}
}

// BudgetExceeded implements raknet.Notifier.
func (s *Server) BudgetExceeded(addr net.Addr) {
	s.log.WithField("addr", addr.String()).Warn("session exceeded packet budget")
}

// SessionClosed implements raknet.Notifier.
func (s *Server) SessionClosed(addr net.Addr, cause error) {
	s.log.WithField("addr", addr.String()).WithError(cause).Info("session closed")
}

// Blobs returns the server's shared blob cache, so a GameHandler can
// serve subchunk responses through it.
func (s *Server) Blobs() *world.BlobCache {
	return s.blobs
}

// WorldReader returns the server's configured world storage, or nil
// if none was opened.
func (s *Server) WorldReader() world.WorldReader {
	return s.reader
}

// Serve runs the listener's read loop until Close is called.
func (s *Server) Serve() error {
	s.log.WithField("addr", s.cfg.BindAddress).Info("listening")
	return s.listener.Serve()
}

// Close shuts down the listener and every session worker, plus the
// world reader if one is open.
func (s *Server) Close() error {
	err := s.listener.Close()
	if s.reader != nil {
		if cerr := s.reader.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
