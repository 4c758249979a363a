package peer

import (
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/lnxk/noisexk/internal/noise"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func handshakeOverPipe(t *testing.T) (initConn, respConn net.Conn, initMachine, respMachine *noise.Machine) {
	t.Helper()

	lsInit, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate initiator static: %v", err)
	}
	lsResp, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate responder static: %v", err)
	}

	initMachine = noise.NewMachine(true, lsInit, lsResp.PubKey(), nil)
	respMachine = noise.NewMachine(false, lsResp, nil, nil)

	initConn, respConn = net.Pipe()

	errCh := make(chan error, 1)
	go func() { errCh <- respMachine.Handshake(respConn) }()
	if err := initMachine.Handshake(initConn); err != nil {
		t.Fatalf("initiator handshake: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("responder handshake: %v", err)
	}
	return initConn, respConn, initMachine, respMachine
}

func TestPeerSendReceiveRoundTrip(t *testing.T) {
	initConn, respConn, initMachine, respMachine := handshakeOverPipe(t)
	defer initConn.Close()
	defer respConn.Close()

	var initKey, respKey [33]byte
	copy(initKey[:], []byte("initiator-key-placeholder-000000"))
	copy(respKey[:], []byte("responder-key-placeholder-000000"))

	initPeer := NewPeer(initKey, initConn, discardLogger())
	initPeer.SetMachine(initMachine)

	respPeer := NewPeer(respKey, respConn, discardLogger())
	respPeer.SetMachine(respMachine)

	if !initPeer.IsConnected() || !respPeer.IsConnected() {
		t.Fatalf("expected both peers connected after SetMachine")
	}

	done := make(chan error, 1)
	go func() { done <- initPeer.SendMessage([]byte("ping")) }()

	got, err := respPeer.ReceiveMessage()
	if err != nil {
		t.Fatalf("receive message: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("send message: %v", err)
	}
	if string(got) != "ping" {
		t.Fatalf("got %q, want %q", got, "ping")
	}
}

func TestPeerNeedsKeepaliveOnlyWhenConnected(t *testing.T) {
	var key [33]byte
	p := NewPeer(key, nil, discardLogger())
	if p.NeedsKeepalive() {
		t.Fatalf("a peer with no machine must never need a keepalive")
	}
}

func TestManagerAddGetRemove(t *testing.T) {
	m := NewManager(discardLogger())
	var key [33]byte
	key[0] = 0x02

	p := NewPeer(key, nil, discardLogger())
	added := m.AddPeer(p)
	if added != p {
		t.Fatalf("expected AddPeer to return the same peer")
	}
	if m.AddPeer(NewPeer(key, nil, discardLogger())) != p {
		t.Fatalf("AddPeer must not replace an existing peer for the same key")
	}
	if m.GetPeer(key) != p {
		t.Fatalf("GetPeer should find the added peer")
	}

	m.RemovePeer(key)
	if m.GetPeer(key) != nil {
		t.Fatalf("expected peer to be removed")
	}
}

func TestManagerCleanDead(t *testing.T) {
	m := NewManager(discardLogger())
	var key [33]byte
	key[0] = 0x03

	p := NewPeer(key, nil, discardLogger())
	p.MarkDead()
	p.LastSeen = time.Now().Add(-2 * Timeout)
	m.AddPeer(p)

	if removed := m.CleanDead(); removed != 1 {
		t.Fatalf("expected 1 peer cleaned, got %d", removed)
	}
	if m.GetPeer(key) != nil {
		t.Fatalf("expected peer to be gone after CleanDead")
	}
}
