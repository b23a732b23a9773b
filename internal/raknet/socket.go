package raknet

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// inboxSize bounds the per-session inbound datagram queue written by
// the listener's read loop and drained by the session's own worker
// goroutine — the multi-producer single-consumer channel from §5.
const inboxSize = 128

// OfflineHandler classifies and answers datagrams that precede a
// connected session: unconnected ping, open-connection request/reply.
// It is out of core scope per spec.md §1 and supplied by the host.
// IsOffline reports whether a first byte belongs to it, and Handle
// answers such a datagram; once a handshake completes, the handler
// (or the host behind it) calls Listener.Spawn with the negotiated MTU
// and client GUID to construct the Session.
type OfflineHandler interface {
	IsOffline(b byte) bool
	Handle(l *Listener, addr net.Addr, payload []byte) error
}

// Listener owns the UDP socket, classifies inbound datagrams, and
// routes connected-mode traffic to the right session's inbox. It
// implements the "Datagram I/O" component of §2.
type Listener struct {
	conn    *net.UDPConn
	sm      *SessionMap
	offline OfflineHandler
	log     *logrus.Logger
	metrics *Metrics

	closed int32
	wg     sync.WaitGroup

	// NewSession is a host-supplied session constructor hook. The
	// listener itself never calls it: sessions are created through
	// Spawn, and connected datagrams from unknown addresses are dropped.
	NewSession func(l *Listener, addr net.Addr, guid uint64, mtu int) *Session
}

// ListenConfig bundles the pieces a Listener needs at construction.
type ListenConfig struct {
	Addr    *net.UDPAddr
	Offline OfflineHandler
	Log     *logrus.Logger
	Metrics *Metrics
}

// Listen opens the UDP socket and returns a Listener ready to Serve.
func Listen(cfg ListenConfig) (*Listener, error) {
	conn, err := net.ListenUDP("udp", cfg.Addr)
	if err != nil {
		return nil, errors.Wrap(err, "raknet: bind UDP socket")
	}
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics()
	}
	return &Listener{
		conn:    conn,
		sm:      NewSessionMap(),
		offline: cfg.Offline,
		log:     log,
		metrics: metrics,
	}, nil
}

// Sessions returns the listener's session registry.
func (l *Listener) Sessions() *SessionMap {
	return l.sm
}

// LocalAddr returns the address the listener's UDP socket is bound
// to, mainly useful for tests that bind an ephemeral port.
func (l *Listener) LocalAddr() net.Addr {
	return l.conn.LocalAddr()
}

// Send writes a raw datagram to addr. Sessions use this (via their
// Outbound field) and so does the offline handshake handler.
func (l *Listener) Send(addr net.Addr, payload []byte) error {
	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok {
		return errors.New("raknet: address is not a *net.UDPAddr")
	}
	_, err := l.conn.WriteToUDP(payload, udpAddr)
	return err
}

// Serve runs the read loop until the socket is closed. Every inbound
// datagram is classified by its first byte: offline handshake bytes go
// to the OfflineHandler, ACK/NAK/frame-set bytes go to the owning
// session's inbox. Datagrams from an address with no session are
// dropped.
func (l *Listener) Serve() error {
	buf := make([]byte, MaxMTU+128)
	for {
		n, addr, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if atomic.LoadInt32(&l.closed) == 1 {
				return nil
			}
			return errors.Wrap(err, "raknet: read UDP")
		}
		if n == 0 {
			continue
		}
		payload := append([]byte(nil), buf[:n]...)
		l.route(addr, payload)
	}
}

func (l *Listener) route(addr *net.UDPAddr, payload []byte) {
	flag := payload[0]
	if l.offline != nil && l.offline.IsOffline(flag) {
		if err := l.offline.Handle(l, addr, payload); err != nil {
			l.log.WithError(err).WithField("addr", addr.String()).Debug("offline handshake error")
		}
		return
	}

	s, ok := l.sm.Get(addr)
	if !ok {
		l.log.WithField("addr", addr.String()).Debug("connected datagram from unknown session, dropping")
		return
	}
	s.inbox.enqueue(payload)
}

// Spawn constructs a Session for addr bound to this listener's Send
// method and metrics, registers it in the session map, and starts its
// worker goroutine. The caller supplies guid/mtu from the completed
// offline handshake.
func (l *Listener) Spawn(addr net.Addr, guid uint64, mtu int, notifier Notifier) *Session {
	s := NewSession(addr, guid, mtu, l.Send, notifier)
	s.SetMetrics(l.metrics)
	s.inbox = newInbox(inboxSize)
	l.sm.Insert(s)

	l.wg.Add(1)
	go l.runSession(s)
	return s
}

// runSession is the single logical worker task for one session: it
// selects between the inbound inbox, the broadcast subscription, and
// the tick timer, and is the only goroutine that ever touches the
// session's reliability state, per §5's single-writer discipline.
func (l *Listener) runSession(s *Session) {
	defer l.wg.Done()
	defer l.sm.Remove(s)

	ticker := time.NewTicker(Tick)
	defer ticker.Stop()

	broadcasts := l.sm.Subscription(s)
	var tickCount uint64

	for {
		select {
		case payload, ok := <-s.inbox.ch:
			if !ok {
				s.Close(ErrSessionClosed)
				return
			}
			if err := s.HandleDatagram(payload); err != nil {
				l.log.WithError(err).WithField("addr", s.Addr.String()).Debug("datagram handling error")
				if errors.Is(err, ErrSessionClosed) {
					s.Close(err)
					return
				}
			}
		case msg, ok := <-broadcasts:
			if !ok {
				s.Close(ErrSessionClosed)
				return
			}
			s.Enqueue(msg.payload, msg.reliability, msg.priority, msg.channel)
		case <-ticker.C:
			tickCount++
			if err := s.Tick(tickCount); err != nil {
				return
			}
		case <-s.Done():
			return
		}
	}
}

// Close shuts down the socket and every session worker.
func (l *Listener) Close() error {
	atomic.StoreInt32(&l.closed, 1)
	err := l.conn.Close()
	l.sm.Shutdown()
	l.wg.Wait()
	return err
}
