// Package node is the per-peer daemon tying identity, transport, the noise
// Machine, and peer bookkeeping together: it listens for inbound
// connections, dials configured static peers, runs the Noise-XK handshake
// on each, and keeps every resulting Peer alive with keepalives and dead
// cleanup.
package node

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/lnxk/noisexk/internal/config"
	"github.com/lnxk/noisexk/internal/identity"
	"github.com/lnxk/noisexk/internal/noise"
	"github.com/lnxk/noisexk/internal/peer"
	"github.com/lnxk/noisexk/internal/transport"
)

// maintenanceInterval is how often the node checks for keepalives due and
// dead peers to clean up.
const maintenanceInterval = 5 * time.Second

// MessageHandler processes one decrypted record received from a peer.
type MessageHandler func(p *peer.Peer, payload []byte)

// Node is a single Noise-XK endpoint: one identity, one listening socket,
// and a set of peer connections each driven by its own noise.Machine.
type Node struct {
	config   *config.NodeConfig
	identity *identity.Identity
	peers    *peer.Manager
	onMsg    MessageHandler
	log      *slog.Logger

	ln *transport.TCP

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New loads or generates the node's identity and prepares its peer table.
// onMsg receives every successfully decrypted application payload; nil
// defaults to a no-op.
func New(cfg *config.NodeConfig, onMsg MessageHandler, log *slog.Logger) (*Node, error) {
	id, err := identity.LoadOrGenerate(cfg.IdentityPath)
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}
	log.Info("identity loaded", "pubkey", id.PublicKeyHex())

	if onMsg == nil {
		onMsg = func(*peer.Peer, []byte) {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Node{
		config:   cfg,
		identity: id,
		peers:    peer.NewManager(log),
		onMsg:    onMsg,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Identity returns the node's static identity.
func (n *Node) Identity() *identity.Identity { return n.identity }

// Peers returns the node's peer manager.
func (n *Node) Peers() *peer.Manager { return n.peers }

// Start binds the listening socket, dials every configured static peer,
// and begins the accept and maintenance loops.
func (n *Node) Start() error {
	ln, err := transport.Listen(n.config.ListenPort, n.log)
	if err != nil {
		return fmt.Errorf("start transport: %w", err)
	}
	n.ln = ln

	n.wg.Add(2)
	go n.acceptLoop()
	go n.maintenanceLoop()

	if n.config.ListenWS != "" {
		n.startWSListener(n.config.ListenWS)
	}

	for _, ref := range n.config.Peers {
		ref := ref
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			if err := n.connectToPeer(ref); err != nil {
				n.log.Error("connect to static peer failed", "addr", ref.Address, "err", err)
			}
		}()
	}

	n.registerWithDirectory(fmt.Sprintf("%s:%d", localHost(), ln.Port()))

	n.log.Info("node started", "port", ln.Port(), "static_peers", len(n.config.Peers))
	return nil
}

// localHost returns the hostname this node advertises to its directory
// service: os.Hostname, or "localhost" if that fails. NodeConfig has no
// setting for a different advertised address.
func localHost() string {
	host, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	return host
}

// Stop cancels all loops, closes the listener and every peer connection,
// and waits for goroutines to unwind; each read loop exits once its
// connection is closed.
func (n *Node) Stop() {
	n.log.Info("node stopping...")
	n.cancel()
	if n.ln != nil {
		n.ln.Close()
	}
	for _, p := range n.peers.AllPeers() {
		p.Conn.Close()
	}
	n.wg.Wait()
	n.log.Info("node stopped")
}

func (n *Node) acceptLoop() {
	defer n.wg.Done()
	for {
		conn, err := n.ln.Accept()
		if err != nil {
			if n.ctx.Err() != nil {
				return
			}
			n.log.Error("accept failed", "err", err)
			continue
		}
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.handleInbound(conn)
		}()
	}
}

// handleInbound runs the responder side of the handshake on a freshly
// accepted connection and, on success, starts the peer's read loop.
func (n *Node) handleInbound(conn net.Conn) {
	machine := noise.NewMachine(false, n.identity.SecpPrivateKey(), nil, nil)

	if err := transport.WithHandshakeDeadline(conn); err != nil {
		n.log.Error("set handshake deadline", "err", err)
		conn.Close()
		return
	}
	if err := machine.Handshake(conn); err != nil {
		n.log.Warn("inbound handshake failed", "remote", conn.RemoteAddr(), "err", err)
		conn.Close()
		return
	}
	transport.ClearDeadline(conn)

	var pubKey [33]byte
	copy(pubKey[:], machine.RemoteStatic().SerializeCompressed())

	p := peer.NewPeer(pubKey, conn, n.log)
	p = n.peers.AddPeer(p)
	p.SetMachine(machine)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.readPeerLoop(p)
	}()
}

// connectToPeer dials a statically configured peer, runs the initiator
// side of the handshake against its pre-known static key, and starts its
// read loop on success.
func (n *Node) connectToPeer(ref config.PeerRef) error {
	remoteStatic, err := decodeStaticKey(ref.StaticPubKey)
	if err != nil {
		return fmt.Errorf("decode static key: %w", err)
	}

	conn, err := transport.Dial(ref.Address)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	machine := noise.NewMachine(true, n.identity.SecpPrivateKey(), remoteStatic, nil)
	if err := transport.WithHandshakeDeadline(conn); err != nil {
		conn.Close()
		return fmt.Errorf("set handshake deadline: %w", err)
	}
	if err := machine.Handshake(conn); err != nil {
		conn.Close()
		return fmt.Errorf("handshake: %w", err)
	}
	transport.ClearDeadline(conn)

	var pubKey [33]byte
	copy(pubKey[:], remoteStatic.SerializeCompressed())

	p := peer.NewPeer(pubKey, conn, n.log)
	p = n.peers.AddPeer(p)
	p.SetMachine(machine)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.readPeerLoop(p)
	}()
	return nil
}

// readPeerLoop decrypts records from p until the connection fails, then
// marks the peer dead.
func (n *Node) readPeerLoop(p *peer.Peer) {
	for {
		payload, err := p.ReceiveMessage()
		if err != nil {
			if n.ctx.Err() == nil {
				n.log.Debug("peer read failed", "peer", p.PubKeyHex(), "err", err)
			}
			p.MarkDead()
			return
		}
		n.onMsg(p, payload)
	}
}

// maintenanceLoop periodically sends keepalives to peers that need one and
// reaps peers that have been dead too long.
func (n *Node) maintenanceLoop() {
	defer n.wg.Done()
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			for _, p := range n.peers.ConnectedPeers() {
				if p.NeedsKeepalive() {
					if err := p.SendMessage(nil); err != nil {
						n.log.Debug("keepalive failed", "peer", p.PubKeyHex(), "err", err)
					}
				}
			}
			if removed := n.peers.CleanDead(); removed > 0 {
				n.log.Debug("cleaned dead peers", "count", removed)
			}
		}
	}
}

// decodeStaticKey parses a hex-encoded compressed secp256k1 public key, the
// out-of-band "XK" pre-knowledge an initiator needs.
func decodeStaticKey(hexKey string) (*secp256k1.PublicKey, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	pub, err := secp256k1.ParsePubKey(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}
	return pub, nil
}
