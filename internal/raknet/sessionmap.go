package raknet

import (
	"net"
	"sync"
)

// broadcastMsg is one message published through a SessionMap's fan-out
// channel: payload plus an optional sender address to exclude from
// delivery, so a session never receives its own broadcast echoed back.
type broadcastMsg struct {
	payload []byte
	exclude net.Addr
	reliability Reliability
	priority    Priority
	channel     uint8
}

// broadcastBuffer bounds how many outstanding broadcasts a session's
// worker will queue before the fan-out starts dropping from the tail,
// per §9's "bounded multi-consumer channel ... slow receivers drop
// from the tail" design note.
const broadcastBuffer = 256

// SessionMap is the concurrent, address-keyed registry of active
// RakNet sessions. A session is inserted once on first open-connection
// handshake (handled outside this package) and removed on timeout,
// explicit close, or map shutdown.
type SessionMap struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	broadcast chan broadcastMsg
	subsMu    sync.Mutex
	subs      map[*Session]chan broadcastMsg
}

// NewSessionMap returns an empty session map ready to accept inserts.
func NewSessionMap() *SessionMap {
	return &SessionMap{
		sessions: make(map[string]*Session),
		subs:     make(map[*Session]chan broadcastMsg),
	}
}

// Insert registers a new session keyed by its remote address, also
// subscribing it to the broadcast fan-out.
func (m *SessionMap) Insert(s *Session) {
	m.mu.Lock()
	m.sessions[s.Addr.String()] = s
	m.mu.Unlock()

	ch := make(chan broadcastMsg, broadcastBuffer)
	m.subsMu.Lock()
	m.subs[s] = ch
	m.subsMu.Unlock()
}

// Get looks up the session for a remote address, if any.
func (m *SessionMap) Get(addr net.Addr) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[addr.String()]
	return s, ok
}

// Remove drops a session from the map and unsubscribes it from the
// broadcast fan-out. Called on timeout, explicit close, or shutdown.
func (m *SessionMap) Remove(s *Session) {
	m.mu.Lock()
	delete(m.sessions, s.Addr.String())
	m.mu.Unlock()

	m.subsMu.Lock()
	if ch, ok := m.subs[s]; ok {
		delete(m.subs, s)
		close(ch)
	}
	m.subsMu.Unlock()
}

// Len reports the number of active sessions.
func (m *SessionMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Each calls fn for every currently registered session. fn must not
// call back into Insert/Remove on this map.
func (m *SessionMap) Each(fn func(*Session)) {
	m.mu.RLock()
	snapshot := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		snapshot = append(snapshot, s)
	}
	m.mu.RUnlock()
	for _, s := range snapshot {
		fn(s)
	}
}

// Broadcast publishes payload to every subscribed session except the
// one at exclude (if non-nil). Slow subscribers that can't keep up
// have the message dropped for them rather than blocking the sender,
// per the tail-drop fan-out design note.
func (m *SessionMap) Broadcast(payload []byte, exclude net.Addr, r Reliability, p Priority, channel uint8) {
	msg := broadcastMsg{payload: payload, exclude: exclude, reliability: r, priority: p, channel: channel}

	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for s, ch := range m.subs {
		if exclude != nil && s.Addr.String() == exclude.String() {
			continue
		}
		select {
		case ch <- msg:
		default:
			// tail-drop: the subscriber's worker hasn't drained fast
			// enough, so this broadcast is simply lost to it.
		}
	}
}

// Subscription returns the channel a session's worker should select on
// to receive broadcasts, or nil if the session isn't registered.
func (m *SessionMap) Subscription(s *Session) <-chan broadcastMsg {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	return m.subs[s]
}

// Shutdown closes every subscription channel and clears the map,
// causing every session worker's broadcast receive to unblock.
func (m *SessionMap) Shutdown() {
	m.mu.Lock()
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	m.subsMu.Lock()
	for s, ch := range m.subs {
		delete(m.subs, s)
		close(ch)
	}
	m.subsMu.Unlock()
}
