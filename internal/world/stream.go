package world

import "context"

// SubChunk is an opaque serialized subchunk payload. The wire format
// itself is out of scope (spec.md's stated Non-goal for on-disk world
// format beyond the read path); the stream only moves bytes a
// WorldReader already produced.
type SubChunk struct {
	Data []byte
}

// IndexedSubChunk pairs a subchunk with the RegionIndex it was loaded
// for, grounded on original_source's stream.rs IndexedSubChunk.
type IndexedSubChunk struct {
	Index RegionIndex
	Data  SubChunk
}

// Loader produces one subchunk for a position, typically backed by a
// WorldReader plus the blob cache (caching is the loader's concern,
// not the stream's).
type Loader func(ctx context.Context, pos Position) (SubChunk, error)

// RegionStream is a bounded channel of IndexedSubChunk fed by a
// background loader goroutine, cancellation tied to the owning
// session's context, per spec.md §4.7. len() exposes the outstanding
// count so the consumer's tick loop can bound how many entries it
// drains per pass.
type RegionStream struct {
	ctx    context.Context
	cancel context.CancelFunc
	out    chan IndexedSubChunk
	done   chan struct{}
}

// NewRegionStream starts a background goroutine that loads every
// position in region via load, in order, and feeds the results into a
// channel of the given capacity. The stream (and its goroutine)
// terminate when the producer finishes or parent is cancelled.
func NewRegionStream(parent context.Context, region BoxRegion, load Loader, capacity int) *RegionStream {
	ctx, cancel := context.WithCancel(parent)
	s := &RegionStream{
		ctx:    ctx,
		cancel: cancel,
		out:    make(chan IndexedSubChunk, capacity),
		done:   make(chan struct{}),
	}

	go s.produce(region, load)
	return s
}

func (s *RegionStream) produce(region BoxRegion, load Loader) {
	defer close(s.done)
	defer close(s.out)

	for _, pos := range region.Positions() {
		idx, err := NewRegionIndex(pos)
		if err != nil {
			continue // out-of-range positions are skipped, not fatal to the whole stream
		}
		sub, err := load(s.ctx, pos)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			continue
		}

		select {
		case s.out <- IndexedSubChunk{Index: idx, Data: sub}:
		case <-s.ctx.Done():
			return
		}
	}
}

// Next blocks until the next subchunk is available, the producer has
// finished (ok=false), or the stream's context is cancelled.
func (s *RegionStream) Next() (IndexedSubChunk, bool) {
	item, ok := <-s.out
	return item, ok
}

// Len reports the number of subchunks currently buffered and waiting
// to be drained.
func (s *RegionStream) Len() int {
	return len(s.out)
}

// Close cancels the background loader and releases its goroutine.
// Safe to call multiple times.
func (s *RegionStream) Close() {
	s.cancel()
	<-s.done
}
