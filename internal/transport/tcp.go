// Package transport supplies the byte-stream collaborators the noise
// Machine needs: a plain TCP dial/listen pair, and a WebSocket-backed
// alternative stream for environments where raw TCP is filtered.
package transport

import (
	"fmt"
	"log/slog"
	"net"
	"time"
)

// HandshakeActTimeout is the per-act read/write deadline recommended for
// the handshake profile.
const HandshakeActTimeout = 5 * time.Second

// TCP binds a listening socket for incoming peer connections and dials
// outgoing ones, mirroring the bind/accept/dial shape of a UDP transport
// but over a connection-oriented stream.
type TCP struct {
	ln   net.Listener
	port int
	log  *slog.Logger
}

// Listen binds a TCP socket on the given port.
func Listen(port int, log *slog.Logger) (*TCP, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("bind TCP port %d: %w", port, err)
	}
	actualPort := ln.Addr().(*net.TCPAddr).Port
	log.Info("transport listening", "port", actualPort)
	return &TCP{ln: ln, port: actualPort, log: log}, nil
}

// Port returns the bound port number.
func (t *TCP) Port() int { return t.port }

// Accept blocks for the next incoming connection.
func (t *TCP) Accept() (net.Conn, error) {
	return t.ln.Accept()
}

// Dial connects to a remote peer's address.
func Dial(addr string) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, HandshakeActTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn, nil
}

// Close shuts down the listening socket.
func (t *TCP) Close() error {
	return t.ln.Close()
}

// LocalAddr returns the local address of the listening socket.
func (t *TCP) LocalAddr() net.Addr {
	return t.ln.Addr()
}

// WithHandshakeDeadline sets one read/write deadline HandshakeActTimeout
// from now. It is not re-armed between acts, so when set once before
// Machine.Handshake it bounds all three acts together.
func WithHandshakeDeadline(conn net.Conn) error {
	return conn.SetDeadline(time.Now().Add(HandshakeActTimeout))
}

// ClearDeadline removes any deadline, for use once the handshake completes
// and the record layer takes over with its own flow control.
func ClearDeadline(conn net.Conn) error {
	return conn.SetDeadline(time.Time{})
}
