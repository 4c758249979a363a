package transport

import (
	"io"
	"log/slog"
	"testing"
)

func TestListenDialRoundTrip(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	ln, err := Listen(0, log)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	acceptedCh := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			acceptedCh <- err
			return
		}
		defer conn.Close()
		buf := make([]byte, 5)
		if _, err := io.ReadFull(conn, buf); err != nil {
			acceptedCh <- err
			return
		}
		if string(buf) != "hello" {
			acceptedCh <- io.ErrUnexpectedEOF
			return
		}
		acceptedCh <- nil
	}()

	conn, err := Dial(ln.LocalAddr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := WithHandshakeDeadline(conn); err != nil {
		t.Fatalf("set handshake deadline: %v", err)
	}
	if _, err := conn.Write([]byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := <-acceptedCh; err != nil {
		t.Fatalf("accepted side failed: %v", err)
	}
}
