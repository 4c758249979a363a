package transport

import (
	"bytes"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSConn adapts a gorilla/websocket connection to the plain io.Reader /
// io.Writer contract the noise Machine expects. WebSocket is message
// framed, not stream framed, so reads that ask for fewer bytes than one
// binary message holds are served out of an internal buffer.
type WSConn struct {
	conn *websocket.Conn
	buf  bytes.Buffer
}

// NewWSConn wraps an already-established WebSocket connection.
func NewWSConn(conn *websocket.Conn) *WSConn {
	return &WSConn{conn: conn}
}

// DialWS opens a WebSocket connection to a peer acting as an alternative
// stream when raw TCP is unavailable.
func DialWS(url string) (*WSConn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial websocket %s: %w", url, err)
	}
	return NewWSConn(conn), nil
}

// UpgradeWS upgrades an inbound HTTP request to a WebSocket stream.
func UpgradeWS(w http.ResponseWriter, r *http.Request) (*WSConn, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrade websocket: %w", err)
	}
	return NewWSConn(conn), nil
}

// Read fills p from buffered bytes, pulling in further binary messages
// from the underlying connection as needed.
func (w *WSConn) Read(p []byte) (int, error) {
	for w.buf.Len() == 0 {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			return 0, err
		}
		w.buf.Write(data)
	}
	return w.buf.Read(p)
}

// Write sends p as a single binary WebSocket message.
func (w *WSConn) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// SetDeadline arms both the read and write deadlines, matching net.Conn.
func (w *WSConn) SetDeadline(t time.Time) error {
	if err := w.conn.SetReadDeadline(t); err != nil {
		return err
	}
	return w.conn.SetWriteDeadline(t)
}

// SetReadDeadline arms the read deadline, matching net.Conn.
func (w *WSConn) SetReadDeadline(t time.Time) error { return w.conn.SetReadDeadline(t) }

// SetWriteDeadline arms the write deadline, matching net.Conn.
func (w *WSConn) SetWriteDeadline(t time.Time) error { return w.conn.SetWriteDeadline(t) }

// LocalAddr returns the underlying connection's local address.
func (w *WSConn) LocalAddr() net.Addr { return w.conn.LocalAddr() }

// RemoteAddr returns the underlying connection's remote address.
func (w *WSConn) RemoteAddr() net.Addr { return w.conn.RemoteAddr() }

// Close closes the underlying connection.
func (w *WSConn) Close() error {
	return w.conn.Close()
}
