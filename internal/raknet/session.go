package raknet

import (
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Identity holds the player identity fields known once login completes.
type Identity struct {
	UUID string
	XUID string
	Name string
}

// Encryptor abstracts the AES-GCM encrypt/decrypt operations the game
// packet pipeline installs once a session finishes the login
// handshake; the concrete implementation lives outside this package.
type Encryptor interface {
	Encrypt(counter uint64, plaintext []byte) ([]byte, error)
	Decrypt(counter uint64, ciphertext []byte) ([]byte, error)
}

// Outbound is the function a Session uses to hand an encoded datagram
// to the network; supplied by the Datagram I/O layer.
type Outbound func(addr net.Addr, payload []byte) error

// Notifier receives session-level events the host may want to act on:
// budget exhaustion and close (a timeout is reported as a close whose
// cause is ErrSessionTimeout).
type Notifier interface {
	BudgetExceeded(addr net.Addr)
	SessionClosed(addr net.Addr, err error)
}

// recoveryEntry is one outstanding reliable frame-set awaiting ACK.
type recoveryEntry struct {
	payload []byte
}

// Session owns all reliability state for one remote peer. All mutable
// fields are only ever touched from the goroutine that calls Tick and
// HandleDatagram for this session — see sessionmap.go and socket.go
// for how that single-writer discipline is enforced.
type Session struct {
	Addr net.Addr
	GUID uint64
	MTU  int

	send Outbound
	log  Notifier

	inbox *inboxQueue

	mu sync.Mutex // guards only the fields touched by SetEncryptor/Close from other goroutines

	active       bool
	lastInbound  time.Time
	closeOnce    sync.Once
	closed       chan struct{}

	// outbound reliability state
	nextSequence   uint32
	nextReliable   uint32
	nextSequencedOut uint32
	nextOrderOut   [MaxOrderChannels]uint32
	nextCompoundID uint16
	recovery       map[uint32]recoveryEntry
	queues         *SendQueues

	// inbound reliability state
	highestSeen  uint32
	haveSeen     bool
	pendingAck   map[uint32]struct{}
	dedup        *dedupWindow
	compounds    *CompoundCollector
	orderIn      [MaxOrderChannels]*OrderChannel

	// negotiated / game state
	CompressionEnabled bool
	encryptor          Encryptor
	sendCounter        uint64
	recvCounter        uint64
	Identity           Identity

	budgetUsed            int
	budgetNotified        bool
	ticksSinceBudgetReset int

	metrics *Metrics

	// Deliver is invoked with each payload released by the
	// reliability core in delivery order, from the session's own
	// goroutine.
	Deliver func(payload []byte)
}

// NewSession constructs a Session ready to receive datagrams. mtu
// should be the value negotiated during the (out of scope) offline
// handshake.
func NewSession(addr net.Addr, guid uint64, mtu int, send Outbound, log Notifier) *Session {
	s := &Session{
		Addr:       addr,
		GUID:       guid,
		MTU:        mtu,
		send:       send,
		log:        log,
		active:     true,
		closed:     make(chan struct{}),
		recovery:   make(map[uint32]recoveryEntry),
		queues:     NewSendQueues(),
		pendingAck: make(map[uint32]struct{}),
		dedup:      newDedupWindow(),
		compounds:  NewCompoundCollector(),
		metrics:    noopMetrics(),
	}
	for i := range s.orderIn {
		s.orderIn[i] = NewOrderChannel()
	}
	s.touch()
	return s
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastInbound = time.Now()
	s.mu.Unlock()
}

// SetEncryptor installs the AES-GCM encryptor negotiated at the end
// of the login handshake.
func (s *Session) SetEncryptor(e Encryptor) {
	s.mu.Lock()
	s.encryptor = e
	s.mu.Unlock()
}

// SetMetrics attaches the counters this session bumps as it processes
// traffic. Safe to call once, before the session starts ticking.
func (s *Session) SetMetrics(m *Metrics) {
	if m != nil {
		s.metrics = m
	}
}

// Enqueue pushes a payload for outbound delivery at the given
// reliability and priority, on the given order channel (ignored
// unless the reliability is ordered).
func (s *Session) Enqueue(payload []byte, r Reliability, p Priority, channel uint8) {
	if len(payload) <= s.MTU {
		s.queues.Push(p, s.buildFrame(payload, r, channel))
		return
	}
	for _, frag := range s.splitCompound(payload, r, channel) {
		s.queues.Push(p, frag)
	}
}

func (s *Session) buildFrame(payload []byte, r Reliability, channel uint8) Frame {
	f := Frame{Reliability: r, Body: payload}
	if r.IsReliable() {
		f.ReliableIndex = s.nextReliable
		s.nextReliable++
	}
	if r.IsSequenced() {
		f.SequencedIndex = s.nextSequencedOut
		s.nextSequencedOut++
	}
	if r.IsOrdered() {
		f.OrderIndex = s.nextOrderOut[channel]
		s.nextOrderOut[channel]++
		f.OrderChannel = channel
	}
	return f
}

// splitCompound breaks a too-large payload into compound fragments
// sharing a fresh compound id and the same OrderIndex/SequencedIndex
// (they reassemble into one logical ordered/sequenced message), but
// each fragment still gets its own ascending ReliableIndex: every
// fragment is a physically distinct frame that must be independently
// ACKed and, on loss, independently retransmitted (invariant a).
//
// A fragment's body is bounded by MTU itself — Enqueue only reaches
// here once len(payload) > MTU, so a payload of exactly MTU is never
// split (one fragment) and MTU+1 always splits into exactly two.
func (s *Session) splitCompound(payload []byte, r Reliability, channel uint8) []Frame {
	maxBody := s.MTU
	if maxBody < 1 {
		maxBody = 1
	}
	n := (len(payload) + maxBody - 1) / maxBody

	sequencedIndex := uint32(0)
	orderIndex := uint32(0)
	if r.IsSequenced() {
		sequencedIndex = s.nextSequencedOut
		s.nextSequencedOut++
	}
	if r.IsOrdered() {
		orderIndex = s.nextOrderOut[channel]
		s.nextOrderOut[channel]++
	}

	id := s.nextCompoundID
	s.nextCompoundID++

	frames := make([]Frame, 0, n)
	for i := 0; i < n; i++ {
		start := i * maxBody
		end := start + maxBody
		if end > len(payload) {
			end = len(payload)
		}
		f := Frame{
			Reliability:    r,
			SequencedIndex: sequencedIndex,
			OrderIndex:     orderIndex,
			OrderChannel:   channel,
			IsCompound:     true,
			CompoundSize:   uint32(n),
			CompoundID:     id,
			CompoundIndex:  uint32(i),
			Body:           payload[start:end],
		}
		if r.IsReliable() {
			f.ReliableIndex = s.nextReliable
			s.nextReliable++
		}
		frames = append(frames, f)
	}
	return frames
}

// Tick advances the session by one tick: flushes due send-queue
// frames into batches, emits a coalesced ACK when due, and reports
// timeout. No NAKs are generated for gaps in received sequences.
// Callers drive this from a 50ms ticker.
func (s *Session) Tick(tickCount uint64) error {
	s.mu.Lock()
	elapsed := time.Since(s.lastInbound)
	s.mu.Unlock()
	if elapsed > SessionTimeout {
		s.Close(ErrSessionTimeout)
		return ErrSessionTimeout
	}

	s.ticksSinceBudgetReset++
	if s.ticksSinceBudgetReset >= ticksPerBudgetWindow {
		s.budgetUsed = 0
		s.budgetNotified = false
		s.ticksSinceBudgetReset = 0
	}

	due := s.queues.Tick()
	if len(due) > 0 {
		for _, set := range packFrames(due, s.MTU, &s.nextSequence) {
			payload := set.encode()
			if hasReliable(set.Frames) {
				s.recovery[set.Sequence] = recoveryEntry{payload: payload}
			}
			if s.send != nil {
				_ = s.send(s.Addr, payload)
			}
			s.metrics.PacketsOut.Inc()
		}
	}

	if tickCount%ackTicks == 0 && len(s.pendingAck) > 0 {
		s.flushAck()
	}

	return nil
}

func hasReliable(frames []Frame) bool {
	for _, f := range frames {
		if f.Reliability.IsReliable() {
			return true
		}
	}
	return false
}

func (s *Session) flushAck() {
	seqs := make([]uint32, 0, len(s.pendingAck))
	for seq := range s.pendingAck {
		seqs = append(seqs, seq)
	}
	s.pendingAck = make(map[uint32]struct{})
	records := coalesceSequences(seqs)
	if s.send != nil {
		_ = s.send(s.Addr, encodeAck(flagACK, records))
	}
	s.metrics.AcksSent.Inc()
}

// HandleDatagram processes one inbound UDP payload already classified
// by the Datagram I/O layer as belonging to this session: a connected
// frame-set, an ACK, or a NAK.
func (s *Session) HandleDatagram(payload []byte) error {
	if len(payload) == 0 {
		return malformed("empty datagram")
	}
	s.touch()
	s.metrics.PacketsIn.Inc()

	s.budgetUsed++
	if s.budgetUsed > PacketBudget {
		if !s.budgetNotified {
			s.budgetNotified = true
			if s.log != nil {
				s.log.BudgetExceeded(s.Addr)
			}
		}
		if s.budgetUsed == PacketBudget+1 {
			return ErrBudgetExceeded
		}
	}

	var err error
	switch {
	case payload[0] == flagACK:
		err = s.handleAck(payload[1:])
	case payload[0] == flagNAK:
		err = s.handleNak(payload[1:])
	case isConnectedDatagram(payload[0]):
		err = s.handleFrameSet(payload)
	default:
		err = malformed("unrecognized datagram flag")
	}
	if errors.Is(err, ErrMalformed) {
		s.metrics.Malformed.Inc()
	}
	return err
}

func (s *Session) handleFrameSet(payload []byte) error {
	fs, err := decodeFrameSet(payload)
	if err != nil {
		return err
	}

	if s.haveSeen && fs.Sequence <= s.highestSeen {
		return nil // already processed, ACK-eligible only on first receipt
	}
	s.haveSeen = true
	s.highestSeen = fs.Sequence
	s.pendingAck[fs.Sequence] = struct{}{}

	for _, f := range fs.Frames {
		s.handleFrame(f)
	}
	return nil
}

func (s *Session) handleFrame(f Frame) {
	if f.Reliability.IsSequenced() {
		ch := s.orderIn[f.OrderChannel]
		if !ch.AcceptSequenced(f.SequencedIndex) {
			return
		}
	}
	if f.Reliability.IsReliable() {
		if s.dedup.Test(f.ReliableIndex) {
			return
		}
	}

	if f.IsCompound {
		body, complete, err := s.compounds.Add(f)
		if err != nil {
			return
		}
		if !complete {
			return
		}
		f = Frame{Reliability: f.Reliability, OrderIndex: f.OrderIndex, OrderChannel: f.OrderChannel, Body: body}
	}

	if f.Reliability.IsOrdered() {
		ch := s.orderIn[f.OrderChannel]
		for _, ready := range ch.Accept(f) {
			s.deliver(ready.Body)
		}
		return
	}

	s.deliver(f.Body)
}

func (s *Session) deliver(payload []byte) {
	if s.Deliver != nil {
		s.Deliver(payload)
	}
}

func (s *Session) handleAck(payload []byte) error {
	records, err := decodeAck(payload)
	if err != nil {
		return err
	}
	for _, seq := range expandRecords(records) {
		delete(s.recovery, seq)
	}
	return nil
}

func (s *Session) handleNak(payload []byte) error {
	records, err := decodeAck(payload)
	if err != nil {
		return err
	}
	s.metrics.NaksReceived.Inc()
	for _, seq := range expandRecords(records) {
		entry, ok := s.recovery[seq]
		if !ok {
			continue
		}
		if s.send != nil {
			_ = s.send(s.Addr, entry.payload)
		}
		s.metrics.Retransmits.Inc()
	}
	return nil
}

// Close marks the session inactive, flushes pending ACKs and any
// queued outbound frames once, and notifies the host.
func (s *Session) Close(cause error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.active = false
		s.mu.Unlock()
		close(s.closed)

		if len(s.pendingAck) > 0 {
			s.flushAck()
		}
		var due []Frame
		for p := range s.queues.tiers {
			due = append(due, s.queues.tiers[p]...)
			s.queues.tiers[p] = nil
		}
		for _, set := range packFrames(due, s.MTU, &s.nextSequence) {
			if s.send != nil {
				_ = s.send(s.Addr, set.encode())
			}
		}

		if s.log != nil {
			s.log.SessionClosed(s.Addr, cause)
		}
	})
}

// Done returns a channel closed once the session has been closed.
func (s *Session) Done() <-chan struct{} {
	return s.closed
}

// Active reports whether the session is still accepting traffic.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}
