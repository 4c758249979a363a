package node

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lnxk/noisexk/internal/config"
	"github.com/lnxk/noisexk/internal/identity"
	"github.com/lnxk/noisexk/internal/peer"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newNodeConfig(t *testing.T) *config.NodeConfig {
	t.Helper()
	dir := t.TempDir()
	return &config.NodeConfig{
		IdentityPath: filepath.Join(dir, "identity.key"),
		ListenPort:   0,
	}
}

func TestNodeHandshakeOverLoopback(t *testing.T) {
	serverCfg := newNodeConfig(t)
	server, err := New(serverCfg, nil, discardLogger())
	if err != nil {
		t.Fatalf("new server node: %v", err)
	}
	if err := server.Start(); err != nil {
		t.Fatalf("start server node: %v", err)
	}
	defer server.Stop()

	received := make(chan []byte, 1)
	clientCfg := newNodeConfig(t)
	clientCfg.Peers = []config.PeerRef{{
		Address:      server.ln.LocalAddr().String(),
		StaticPubKey: server.Identity().PublicKeyHex(),
	}}

	client, err := New(clientCfg, func(p *peer.Peer, payload []byte) {
		received <- payload
	}, discardLogger())
	if err != nil {
		t.Fatalf("new client node: %v", err)
	}
	if err := client.Start(); err != nil {
		t.Fatalf("start client node: %v", err)
	}
	defer client.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(client.Peers().ConnectedPeers()) == 1 && len(server.Peers().ConnectedPeers()) == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	clientPeers := client.Peers().ConnectedPeers()
	serverPeers := server.Peers().ConnectedPeers()
	if len(clientPeers) != 1 || len(serverPeers) != 1 {
		t.Fatalf("expected one connected peer on each side, got client=%d server=%d", len(clientPeers), len(serverPeers))
	}

	if err := serverPeers[0].SendMessage([]byte("hello")); err != nil {
		t.Fatalf("send message: %v", err)
	}

	select {
	case payload := <-received:
		if string(payload) != "hello" {
			t.Fatalf("got %q, want %q", payload, "hello")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for message")
	}

	if serverPeers[0].PubKeyHex() != client.Identity().PublicKeyHex() {
		t.Fatalf("server should learn the client's static key from the handshake")
	}
}

func TestIdentityPersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "identity.key")
	id1, err := identity.LoadOrGenerate(path)
	if err != nil {
		t.Fatalf("load or generate: %v", err)
	}
	id2, err := identity.LoadOrGenerate(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if id1.PublicKeyHex() != id2.PublicKeyHex() {
		t.Fatalf("identity did not persist across reload")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected identity file to exist: %v", err)
	}
}
