package raknet

import (
	"bytes"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		f    Frame
	}{
		{"unreliable", Frame{Reliability: Unreliable, Body: []byte("hello")}},
		{"reliable", Frame{Reliability: Reliable, ReliableIndex: 42, Body: []byte("world")}},
		{"reliable-ordered", Frame{Reliability: ReliableOrdered, ReliableIndex: 1, OrderIndex: 7, OrderChannel: 3, Body: []byte("ordered")}},
		{"unreliable-sequenced", Frame{Reliability: UnreliableSequenced, SequencedIndex: 9, Body: []byte("seq")}},
		{"reliable-sequenced", Frame{Reliability: ReliableSequenced, ReliableIndex: 2, SequencedIndex: 2, Body: []byte("both")}},
		{"compound", Frame{
			Reliability: ReliableOrdered, ReliableIndex: 5, OrderIndex: 1, OrderChannel: 0,
			IsCompound: true, CompoundSize: 3, CompoundID: 0xBEEF, CompoundIndex: 1,
			Body: []byte("frag"),
		}},
		{"empty-body", Frame{Reliability: Unreliable, Body: nil}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf := tc.f.encode(nil)
			got, next, err := decodeFrame(buf, 0)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if next != len(buf) {
				t.Fatalf("expected to consume %d bytes, consumed %d", len(buf), next)
			}
			if got.Reliability != tc.f.Reliability {
				t.Errorf("reliability: got %v want %v", got.Reliability, tc.f.Reliability)
			}
			if !bytes.Equal(got.Body, tc.f.Body) {
				t.Errorf("body: got %q want %q", got.Body, tc.f.Body)
			}
			if got.Reliability.IsReliable() && got.ReliableIndex != tc.f.ReliableIndex {
				t.Errorf("reliable index: got %d want %d", got.ReliableIndex, tc.f.ReliableIndex)
			}
			if got.Reliability.IsSequenced() && got.SequencedIndex != tc.f.SequencedIndex {
				t.Errorf("sequenced index: got %d want %d", got.SequencedIndex, tc.f.SequencedIndex)
			}
			if got.Reliability.IsOrdered() {
				if got.OrderIndex != tc.f.OrderIndex || got.OrderChannel != tc.f.OrderChannel {
					t.Errorf("order: got (%d,%d) want (%d,%d)", got.OrderIndex, got.OrderChannel, tc.f.OrderIndex, tc.f.OrderChannel)
				}
			}
			if got.IsCompound != tc.f.IsCompound {
				t.Errorf("compound flag: got %v want %v", got.IsCompound, tc.f.IsCompound)
			}
			if tc.f.IsCompound {
				if got.CompoundSize != tc.f.CompoundSize || got.CompoundID != tc.f.CompoundID || got.CompoundIndex != tc.f.CompoundIndex {
					t.Errorf("compound header mismatch: got %+v want %+v", got, tc.f)
				}
			}
		})
	}
}

func TestDecodeFrameMalformedReliability(t *testing.T) {
	buf := []byte{7 << 5, 0, 0} // reliability discriminant 7 is out of range
	_, _, err := decodeFrame(buf, 0)
	if err == nil {
		t.Fatal("expected malformed error for out-of-range reliability")
	}
}

func TestDecodeFrameTruncated(t *testing.T) {
	f := Frame{Reliability: Reliable, ReliableIndex: 1, Body: []byte("x")}
	buf := f.encode(nil)
	_, _, err := decodeFrame(buf[:len(buf)-2], 0)
	if err == nil {
		t.Fatal("expected malformed error for truncated frame")
	}
}

func TestFrameSetRoundTrip(t *testing.T) {
	fs := FrameSet{
		Sequence: 123456,
		Frames: []Frame{
			{Reliability: Unreliable, Body: []byte("a")},
			{Reliability: ReliableOrdered, ReliableIndex: 0, OrderIndex: 0, OrderChannel: 0, Body: []byte("b")},
		},
	}
	buf := fs.encode()
	if !isConnectedDatagram(buf[0]) {
		t.Fatal("expected connected flag on frame-set datagram")
	}
	got, err := decodeFrameSet(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Sequence != fs.Sequence {
		t.Errorf("sequence: got %d want %d", got.Sequence, fs.Sequence)
	}
	if len(got.Frames) != len(fs.Frames) {
		t.Fatalf("frame count: got %d want %d", len(got.Frames), len(fs.Frames))
	}
	for i := range fs.Frames {
		if !bytes.Equal(got.Frames[i].Body, fs.Frames[i].Body) {
			t.Errorf("frame %d body mismatch", i)
		}
	}
}

func TestPackFramesBoundaryMTU(t *testing.T) {
	mtu := 200
	payload := bytes.Repeat([]byte{0xAB}, mtu-batchHeaderSize-3) // exactly fits one frame with no compound header
	f := Frame{Reliability: Unreliable, Body: payload}

	var next uint32
	sets := packFrames([]Frame{f}, mtu, &next)
	if len(sets) != 1 {
		t.Fatalf("expected 1 frame set, got %d", len(sets))
	}
	if len(sets[0].Frames) != 1 {
		t.Fatalf("expected 1 frame in the set, got %d", len(sets[0].Frames))
	}
}
