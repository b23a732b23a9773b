package server

import (
	"net"
	"testing"
	"time"

	"github.com/voidworks/bedrockd/internal/raknet"
)

func TestOfflineHandlerRespondsToUnconnectedPing(t *testing.T) {
	opened := make(chan struct{}, 1)
	h := newOfflineHandler("bedrockd test", func(net.Addr, uint64, int) { opened <- struct{}{} })

	l, err := raknet.Listen(raknet.ListenConfig{
		Addr:    &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0},
		Offline: h,
	})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	go func() { _ = l.Serve() }()

	client, err := net.DialUDP("udp", nil, l.LocalAddr().(*net.UDPAddr))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	ping := make([]byte, 9)
	ping[0] = idUnconnectedPing
	if _, err := client.Write(ping); err != nil {
		t.Fatalf("write ping: %v", err)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 256)
	n, err := client.Read(buf)
	if err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if n == 0 || buf[0] != idUnconnectedPong {
		t.Fatalf("expected unconnected pong, got %x", buf[:n])
	}
}

func TestOfflineHandlerCompletesOpenConnectionHandshake(t *testing.T) {
	opened := make(chan net.Addr, 1)
	h := newOfflineHandler("bedrockd test", func(addr net.Addr, guid uint64, mtu int) { opened <- addr })

	l, err := raknet.Listen(raknet.ListenConfig{
		Addr:    &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0},
		Offline: h,
	})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	go func() { _ = l.Serve() }()

	client, err := net.DialUDP("udp", nil, l.LocalAddr().(*net.UDPAddr))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	req1 := make([]byte, 18)
	req1[0] = idOpenConnectionRequest1
	if _, err := client.Write(req1); err != nil {
		t.Fatalf("write request1: %v", err)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 256)
	n, err := client.Read(buf)
	if err != nil {
		t.Fatalf("read reply1: %v", err)
	}
	if buf[0] != idOpenConnectionReply1 {
		t.Fatalf("expected reply1, got %x", buf[:n])
	}

	req2 := make([]byte, 34)
	req2[0] = idOpenConnectionRequest2
	if _, err := client.Write(req2); err != nil {
		t.Fatalf("write request2: %v", err)
	}

	n, err = client.Read(buf)
	if err != nil {
		t.Fatalf("read reply2: %v", err)
	}
	if buf[0] != idOpenConnectionReply2 {
		t.Fatalf("expected reply2, got %x", buf[:n])
	}

	select {
	case <-opened:
	case <-time.After(2 * time.Second):
		t.Fatal("onOpen callback was not invoked")
	}
}
