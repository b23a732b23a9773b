package raknet

// FrameSet is a batch of frames carried in a single connected UDP
// datagram, identified by its own sequence number for ACK/NAK
// purposes. The sequence number is independent of any reliable,
// sequenced or order index carried by the frames themselves.
type FrameSet struct {
	Sequence uint32
	Frames   []Frame
}

// encode writes the datagram flag byte, the 24-bit LE sequence number
// and every frame in order.
func (fs *FrameSet) encode() []byte {
	buf := make([]byte, 0, batchHeaderSize+fs.size())
	buf = append(buf, flagConnected)
	buf = appendUint24LE(buf, fs.Sequence)
	for i := range fs.Frames {
		buf = fs.Frames[i].encode(buf)
	}
	return buf
}

// size is the total encoded size of the frame set's frames, excluding
// the batchHeaderSize bytes of datagram header.
func (fs *FrameSet) size() int {
	total := 0
	for i := range fs.Frames {
		total += fs.Frames[i].size()
	}
	return total
}

// decodeFrameSet parses a connected datagram payload (flag byte
// already identified by the caller as flagConnected) into its
// sequence number and frames.
func decodeFrameSet(buf []byte) (FrameSet, error) {
	var fs FrameSet
	if len(buf) < batchHeaderSize {
		return fs, malformed("truncated frame set header")
	}
	fs.Sequence = readUint24LE(buf[1:])

	offset := batchHeaderSize
	for offset < len(buf) {
		f, next, err := decodeFrame(buf, offset)
		if err != nil {
			return fs, err
		}
		fs.Frames = append(fs.Frames, f)
		offset = next
	}
	return fs, nil
}

// isConnectedDatagram reports whether the first byte of a UDP payload
// marks it as a connected frame-set datagram, as opposed to an ACK,
// NAK, or offline-handshake datagram.
func isConnectedDatagram(b byte) bool {
	return b&flagConnected != 0 && b&flagACK != flagACK && b&flagNAK != flagNAK
}

// packFrames greedily packs frames into one or more frame sets so
// that no multi-frame datagram exceeds mtu bytes, assigning each frame
// set the next sequence numbers drawn from next (advanced in place). A
// frame that is larger than mtu on its own is placed alone in its
// frame set, and that datagram exceeds mtu.
func packFrames(frames []Frame, mtu int, next *uint32) []FrameSet {
	var sets []FrameSet
	budget := mtu - batchHeaderSize
	var cur FrameSet

	flush := func() {
		if len(cur.Frames) == 0 {
			return
		}
		cur.Sequence = *next
		*next++
		sets = append(sets, cur)
		cur = FrameSet{}
	}

	used := 0
	for _, f := range frames {
		fsz := f.size()
		if used > 0 && (used+fsz > budget || len(cur.Frames) >= maxFramesPerBatch) {
			flush()
			used = 0
		}
		cur.Frames = append(cur.Frames, f)
		used += fsz
	}
	flush()

	return sets
}
