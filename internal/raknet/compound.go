package raknet

// compoundKey identifies a single in-progress fragmented message.
type compoundKey uint16

// compound tracks the fragments received so far for one compound id,
// keyed by CompoundIndex, until every fragment has arrived and the
// pieces can be concatenated into the original payload.
type compound struct {
	size     uint32
	received map[uint32]Frame
}

// CompoundCollector reassembles frames split across multiple compound
// fragments back into their original payload. Fragment validity is
// checked before a fragment is ever inserted into collector state, so
// a malformed fragment can never leave a partial compound stuck
// waiting for a piece that will never arrive.
type CompoundCollector struct {
	pending map[compoundKey]*compound
}

// NewCompoundCollector returns an empty collector.
func NewCompoundCollector() *CompoundCollector {
	return &CompoundCollector{pending: make(map[compoundKey]*compound)}
}

// Add inserts one fragment of a compound message. It returns the
// reassembled body and true once every fragment of that compound has
// been seen; otherwise it returns nil, false. An inconsistent
// CompoundSize for an id already in progress, or a CompoundIndex
// outside [0, CompoundSize), is rejected with ErrMalformed before any
// state is mutated.
func (c *CompoundCollector) Add(f Frame) ([]byte, bool, error) {
	if !f.IsCompound {
		return nil, false, malformed("Add called with non-compound frame")
	}
	if f.CompoundSize == 0 || f.CompoundIndex >= f.CompoundSize {
		return nil, false, malformed("compound index out of range")
	}

	key := compoundKey(f.CompoundID)
	cp, ok := c.pending[key]
	if ok && cp.size != f.CompoundSize {
		return nil, false, malformed("compound size mismatch for id")
	}
	if !ok {
		cp = &compound{size: f.CompoundSize, received: make(map[uint32]Frame, f.CompoundSize)}
		c.pending[key] = cp
	}

	cp.received[f.CompoundIndex] = f

	if uint32(len(cp.received)) < cp.size {
		return nil, false, nil
	}

	body := make([]byte, 0, bodyLenOf(cp))
	for i := uint32(0); i < cp.size; i++ {
		body = append(body, cp.received[i].Body...)
	}
	delete(c.pending, key)
	return body, true, nil
}

// Discard drops any in-progress compound with the given id, used when
// a session closes or a fragment is deemed unrecoverable.
func (c *CompoundCollector) Discard(id uint16) {
	delete(c.pending, compoundKey(id))
}

// Pending reports how many compound ids are currently incomplete.
func (c *CompoundCollector) Pending() int {
	return len(c.pending)
}

func bodyLenOf(cp *compound) int {
	total := 0
	for _, f := range cp.received {
		total += len(f.Body)
	}
	return total
}
