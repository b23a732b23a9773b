package bedrock

import "testing"

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{PacketID: IDLogin, SenderSubClient: 1, TargetSubClient: 2}
	buf := h.Encode(nil)
	got, next, err := DecodeHeader(buf, 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != h {
		t.Errorf("got %+v want %+v", got, h)
	}
	if next != len(buf) {
		t.Errorf("consumed %d of %d", next, len(buf))
	}
}

func TestDecodePacketsRoundTrip(t *testing.T) {
	packets := []Packet{
		{Header: Header{PacketID: IDRequestNetworkSettings}, Body: []byte{1, 2, 3, 4}},
		{Header: Header{PacketID: IDLogin}, Body: []byte("chain-data")},
	}
	var buf []byte
	for _, p := range packets {
		buf = EncodePacket(buf, p)
	}
	got, err := DecodePackets(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != len(packets) {
		t.Fatalf("got %d packets, want %d", len(got), len(packets))
	}
	for i := range packets {
		if got[i].Header.PacketID != packets[i].Header.PacketID {
			t.Errorf("packet %d id mismatch: got %d want %d", i, got[i].Header.PacketID, packets[i].Header.PacketID)
		}
		if string(got[i].Body) != string(packets[i].Body) {
			t.Errorf("packet %d body mismatch: got %q want %q", i, got[i].Body, packets[i].Body)
		}
	}
}

func TestDecodePacketsTruncated(t *testing.T) {
	buf := PutVarUint32(nil, 100) // claims 100 bytes follow but none do
	_, err := DecodePackets(buf)
	if err == nil {
		t.Fatal("expected malformed error for truncated packet body")
	}
}
