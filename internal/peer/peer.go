// Package peer tracks remote nodes reachable over a noise.Machine-secured
// connection: connection lifecycle, liveness, and keepalive scheduling.
package peer

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/lnxk/noisexk/internal/noise"
)

// State represents the connection state of a peer.
type State int

const (
	StateNew         State = iota // discovered, no handshake yet
	StateHandshaking              // handshake in progress
	StateConnected                // handshake complete, exchanging records
	StateDead                     // connection lost
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateHandshaking:
		return "handshaking"
	case StateConnected:
		return "connected"
	case StateDead:
		return "dead"
	default:
		return "unknown"
	}
}

const (
	// KeepaliveInterval is how often to send a keepalive record.
	KeepaliveInterval = 15 * time.Second
	// Timeout is when a peer is considered dead.
	Timeout = 60 * time.Second
	// HandshakeTimeout bounds a full three-act exchange.
	HandshakeTimeout = 10 * time.Second
)

// Peer is a remote node reachable over one TCP connection carrying a
// Noise_XK_secp256k1_ChaChaPoly_SHA256 transport. A Peer owns exactly one
// noise.Machine and serializes access to it: SendMessage calls are
// serialized by sendMu, so several goroutines may send; ReceiveMessage
// takes no such lock and needs a single dedicated reader goroutine. The
// Machine thus has one writer and one reader at a time.
type Peer struct {
	PubKey [33]byte
	Conn   net.Conn

	state State

	machine *noise.Machine

	LastSeen time.Time
	LastSend time.Time

	mu     sync.RWMutex
	sendMu sync.Mutex
	log    *slog.Logger
}

// PubKeyHex returns the peer's compressed static key as a hex string, used
// as the PeerManager's map key.
func (p *Peer) PubKeyHex() string {
	return hex.EncodeToString(p.PubKey[:])
}

// NewPeer creates a peer in StateNew, wrapping an already-dialed or
// already-accepted connection. The noise handshake has not run yet.
func NewPeer(pubKey [33]byte, conn net.Conn, log *slog.Logger) *Peer {
	return &Peer{
		PubKey: pubKey,
		Conn:   conn,
		state:  StateNew,
		log:    log.With("peer", hex.EncodeToString(pubKey[:8])),
	}
}

// SetMachine installs the Machine produced by a completed handshake and
// transitions the peer to Connected.
func (p *Peer) SetMachine(m *noise.Machine) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.machine = m
	p.state = StateConnected
	p.LastSeen = time.Now()
	p.log.Info("peer connected", "remote", p.Conn.RemoteAddr())
}

// MarkHandshaking records that a handshake attempt is underway.
func (p *Peer) MarkHandshaking() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = StateHandshaking
}

// MarkDead records that the connection has been lost.
func (p *Peer) MarkDead() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = StateDead
}

// SendMessage encrypts and writes one record to the peer.
func (p *Peer) SendMessage(payload []byte) error {
	p.mu.RLock()
	machine := p.machine
	p.mu.RUnlock()
	if machine == nil {
		return fmt.Errorf("peer %s: not connected", p.PubKeyHex())
	}
	p.sendMu.Lock()
	err := machine.WriteMessage(p.Conn, payload)
	p.sendMu.Unlock()
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.LastSend = time.Now()
	p.mu.Unlock()
	return nil
}

// ReceiveMessage reads and decrypts one record from the peer.
func (p *Peer) ReceiveMessage() ([]byte, error) {
	p.mu.RLock()
	machine := p.machine
	p.mu.RUnlock()
	if machine == nil {
		return nil, fmt.Errorf("peer %s: not connected", p.PubKeyHex())
	}
	payload, err := machine.ReadMessage(p.Conn)
	if err != nil {
		return nil, err
	}
	p.Touch()
	return payload, nil
}

// IsConnected reports whether the handshake has completed.
func (p *Peer) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state == StateConnected && p.machine != nil
}

// IsAlive reports whether the peer has been seen recently.
func (p *Peer) IsAlive() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return time.Since(p.LastSeen) < Timeout
}

// Touch updates the last-seen timestamp.
func (p *Peer) Touch() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.LastSeen = time.Now()
}

// NeedsKeepalive reports whether it is time to send a keepalive record.
func (p *Peer) NeedsKeepalive() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state == StateConnected && time.Since(p.LastSend) > KeepaliveInterval
}

// State reports the peer's current connection state.
func (p *Peer) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Manager tracks every known peer, keyed by compressed static public key.
type Manager struct {
	peers map[string]*Peer
	mu    sync.RWMutex
	log   *slog.Logger
}

// NewManager creates an empty peer manager.
func NewManager(log *slog.Logger) *Manager {
	return &Manager{
		peers: make(map[string]*Peer),
		log:   log.With("component", "peer-manager"),
	}
}

// AddPeer registers a new peer, or returns the existing one for the same
// static key.
func (m *Manager) AddPeer(p *Peer) *Peer {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := p.PubKeyHex()
	if existing, ok := m.peers[key]; ok {
		return existing
	}
	m.peers[key] = p
	m.log.Info("peer added", "pubkey", key)
	return p
}

// GetPeer returns the peer for a compressed static key, or nil.
func (m *Manager) GetPeer(pubKey [33]byte) *Peer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.peers[hex.EncodeToString(pubKey[:])]
}

// RemovePeer removes a peer by its static key.
func (m *Manager) RemovePeer(pubKey [33]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := hex.EncodeToString(pubKey[:])
	delete(m.peers, key)
	m.log.Info("peer removed", "pubkey", key)
}

// ConnectedPeers returns every peer whose handshake has completed.
func (m *Manager) ConnectedPeers() []*Peer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*Peer
	for _, p := range m.peers {
		if p.IsConnected() {
			result = append(result, p)
		}
	}
	return result
}

// AllPeers returns every known peer.
func (m *Manager) AllPeers() []*Peer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*Peer, 0, len(m.peers))
	for _, p := range m.peers {
		result = append(result, p)
	}
	return result
}

// CleanDead removes peers marked dead and no longer alive.
func (m *Manager) CleanDead() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key, p := range m.peers {
		if p.State() == StateDead && !p.IsAlive() {
			delete(m.peers, key)
			removed++
		}
	}
	return removed
}
