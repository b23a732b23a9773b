package raknet

import "github.com/bits-and-blooms/bitset"

// dedupWindowSize bounds how far behind the highest reliable index
// seen the dedup window still tracks; indexes older than this are
// assumed already retired and are rejected as out-of-window rather
// than tracked forever.
const dedupWindowSize = 1 << 16

// dedupWindow tracks which reliable indexes have already been
// delivered to the application, so a retransmitted frame (the sender
// did not see our ACK in time) is recognized and dropped rather than
// delivered twice.
type dedupWindow struct {
	bits    *bitset.BitSet
	highest uint32
	seen    bool
}

func newDedupWindow() *dedupWindow {
	return &dedupWindow{bits: bitset.New(dedupWindowSize)}
}

// slot maps a reliable index onto its position in the ring of bits.
func (w *dedupWindow) slot(index uint32) uint {
	return uint(index % dedupWindowSize)
}

// Test reports whether index has already been seen and marks it seen
// for future calls. An index older than the current window is
// reported as already seen (and thus dropped by the caller), matching
// the semantics of a frame that arrived too late to matter.
func (w *dedupWindow) Test(index uint32) (alreadySeen bool) {
	if !w.seen {
		w.seen = true
		w.highest = index
	} else if index > w.highest {
		w.advance(index)
	} else if w.highest-index >= dedupWindowSize {
		return true
	}

	slot := w.slot(index)
	if w.bits.Test(slot) {
		return true
	}
	w.bits.Set(slot)
	return false
}

// advance moves the window forward to a new highest index, clearing
// the bits that fall out of range so their slots can be reused.
func (w *dedupWindow) advance(newHighest uint32) {
	for i := w.highest + 1; i <= newHighest; i++ {
		w.bits.Clear(w.slot(i))
	}
	w.highest = newHighest
}
