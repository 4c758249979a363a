// Package relay forwards opaque Noise-XK record bytes between two peers
// that cannot reach each other directly. It never touches key material or
// plaintext: a relay only ever sees the already-encrypted wire format from
// spec.md §6, which it copies byte-for-byte between two accepted
// connections matched by a rendezvous token.
package relay

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"
)

// tokenSize is the width of the rendezvous token peers exchange
// out-of-band and each present as the first bytes on their relay
// connection to be paired up.
const tokenSize = 16

// pairTimeout bounds how long a connection waits for its counterpart to
// show up under the same token before the relay gives up on it.
const pairTimeout = 30 * time.Second

// Config holds the relay server configuration.
type Config struct {
	ListenAddr string // e.g., "0.0.0.0:9736"
}

// Server accepts TCP connections, reads a rendezvous token from each, and
// forwards bytes bidirectionally between the two connections sharing a
// token. This does not multiplex logical streams (spec.md Non-goals): each
// pairing forwards exactly one physical byte stream.
type Server struct {
	config Config
	ln     net.Listener
	log    *slog.Logger

	mu      sync.Mutex
	waiting map[[tokenSize]byte]net.Conn

	wg sync.WaitGroup
}

// New creates a new relay server.
func New(cfg Config, log *slog.Logger) *Server {
	return &Server{
		config:  cfg,
		log:     log.With("component", "relay"),
		waiting: make(map[[tokenSize]byte]net.Conn),
	}
}

// Start binds the listen socket and begins accepting connections in the
// background. It returns once the socket is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.ListenAddr, err)
	}
	s.ln = ln
	s.log.Info("relay listening", "addr", ln.Addr())

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop closes the listening socket and waits for in-flight accepts to
// unwind. Connections already paired and forwarding are left to finish or
// fail on their own; the relay does not tear down live forwards.
func (s *Server) Stop() error {
	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	s.wg.Wait()
	return err
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

// handleConn reads the rendezvous token prefixing a new connection, then
// either stashes it to wait for its counterpart or, if the counterpart is
// already waiting, splices the two connections together.
func (s *Server) handleConn(conn net.Conn) {
	conn.SetReadDeadline(time.Now().Add(pairTimeout))
	var token [tokenSize]byte
	if _, err := io.ReadFull(conn, token[:]); err != nil {
		s.log.Debug("rendezvous read failed", "err", err)
		conn.Close()
		return
	}
	conn.SetReadDeadline(time.Time{})

	s.mu.Lock()
	peerConn, ok := s.waiting[token]
	if ok {
		delete(s.waiting, token)
	} else {
		s.waiting[token] = conn
	}
	s.mu.Unlock()

	if !ok {
		// First side of the pair: wait for handleConn to find and splice us
		// in once the counterpart arrives, or clean us up on timeout.
		time.AfterFunc(pairTimeout, func() {
			s.mu.Lock()
			if s.waiting[token] == conn {
				delete(s.waiting, token)
				s.mu.Unlock()
				conn.Close()
				return
			}
			s.mu.Unlock()
		})
		return
	}

	s.log.Info("relay pair matched", "token", binary.BigEndian.Uint64(token[:8]))
	s.splice(conn, peerConn)
}

// splice forwards bytes between a and b in both directions until either
// side closes or errors. The relay treats both streams as opaque.
func (s *Server) splice(a, b net.Conn) {
	done := make(chan struct{}, 2)
	go func() {
		io.Copy(a, b)
		done <- struct{}{}
	}()
	go func() {
		io.Copy(b, a)
		done <- struct{}{}
	}()
	<-done
	a.Close()
	b.Close()
	<-done
}
