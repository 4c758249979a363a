package noise

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

type machineState int

const (
	stateNew machineState = iota
	stateReady
	stateFailed
)

// Machine is a single Noise_XK_secp256k1_ChaChaPoly_SHA256 connection: one
// handshake transcript plus, once Ready, a pair of independent record-layer
// CipherStates. A Machine is not safe for concurrent use; callers serialize
// access per connection (see peer for the one-writer/one-reader pattern).
type Machine struct {
	state machineState

	hs *handshakeState
	gen EphemeralGenerator

	sendCipher *CipherState
	recvCipher *CipherState
}

// NewMachine constructs a Machine for one connection. remoteStatic is the
// peer's known static key for an initiator, and must be nil for a
// responder (it is learned during the handshake). gen, if nil, defaults to
// a crypto/rand-backed generator.
func NewMachine(initiator bool, localStatic *secp256k1.PrivateKey, remoteStatic *secp256k1.PublicKey, gen EphemeralGenerator) *Machine {
	if gen == nil {
		gen = defaultEphemeralGenerator
	}
	return &Machine{
		state: stateNew,
		hs:    newHandshakeState(initiator, localStatic, remoteStatic),
		gen:   gen,
	}
}

// RemoteStatic reports the peer's static public key, known after a
// successful handshake (and, for an initiator, before it too).
func (m *Machine) RemoteStatic() *secp256k1.PublicKey {
	return m.hs.remoteStatic
}

// Handshake drives the three-act Noise XK exchange over rw. On any
// failure the Machine transitions to Failed and must not be reused.
func (m *Machine) Handshake(rw io.ReadWriter) error {
	if m.state != stateNew {
		return ErrNotInitialized
	}

	var err error
	if m.hs.initiator {
		err = m.handshakeInitiator(rw)
	} else {
		err = m.handshakeResponder(rw)
	}
	if err != nil {
		m.state = stateFailed
		return err
	}

	m.state = stateReady
	return nil
}

func (m *Machine) handshakeInitiator(rw io.ReadWriter) error {
	actOne, err := genActOne(m.hs, m.gen)
	if err != nil {
		return fmt.Errorf("act one: %w", err)
	}
	if err := writeAll(rw, actOne); err != nil {
		return fmt.Errorf("act one: %w", ErrIO)
	}

	actTwo, err := readExact(rw, actTwoSize)
	if err != nil {
		return fmt.Errorf("act two: %w", ErrIO)
	}
	if err := recvActTwo(m.hs, actTwo); err != nil {
		return fmt.Errorf("act two: %w", err)
	}

	actThree, err := genActThree(m.hs)
	if err != nil {
		return fmt.Errorf("act three: %w", err)
	}
	if err := writeAll(rw, actThree); err != nil {
		return fmt.Errorf("act three: %w", ErrIO)
	}

	m.sendCipher, m.recvCipher = split(m.hs)
	return nil
}

func (m *Machine) handshakeResponder(rw io.ReadWriter) error {
	actOne, err := readExact(rw, actOneSize)
	if err != nil {
		return fmt.Errorf("act one: %w", ErrIO)
	}
	if err := recvActOne(m.hs, actOne); err != nil {
		return fmt.Errorf("act one: %w", err)
	}

	actTwo, err := genActTwo(m.hs, m.gen)
	if err != nil {
		return fmt.Errorf("act two: %w", err)
	}
	if err := writeAll(rw, actTwo); err != nil {
		return fmt.Errorf("act two: %w", ErrIO)
	}

	actThree, err := readExact(rw, actThreeSize)
	if err != nil {
		return fmt.Errorf("act three: %w", ErrIO)
	}
	if err := recvActThree(m.hs, actThree); err != nil {
		return fmt.Errorf("act three: %w", err)
	}

	m.sendCipher, m.recvCipher = split(m.hs)
	return nil
}

// WriteMessage encrypts payload as a length-prefixed record and writes it
// to w: enc_len(2) || tag(16) || enc_payload(L) || tag(16).
func (m *Machine) WriteMessage(w io.Writer, payload []byte) error {
	if m.state != stateReady {
		return ErrNotInitialized
	}
	if len(payload) > MaxPayload {
		return ErrMaxMessageLength
	}

	var lenBE [LengthHeaderSize]byte
	binary.BigEndian.PutUint16(lenBE[:], uint16(len(payload)))

	lenCT, lenTag, err := m.sendCipher.Encrypt(nil, lenBE[:])
	if err != nil {
		m.state = stateFailed
		return err
	}
	msgCT, msgTag, err := m.sendCipher.Encrypt(nil, payload)
	if err != nil {
		m.state = stateFailed
		return err
	}

	record := make([]byte, 0, LengthHeaderSize+MACSize+len(payload)+MACSize)
	record = append(record, lenCT...)
	record = append(record, lenTag...)
	record = append(record, msgCT...)
	record = append(record, msgTag...)

	if err := writeAll(w, record); err != nil {
		m.state = stateFailed
		return fmt.Errorf("write message: %w", ErrIO)
	}
	return nil
}

// ReadMessage reads and decrypts one length-prefixed record from r.
func (m *Machine) ReadMessage(r io.Reader) ([]byte, error) {
	if m.state != stateReady {
		return nil, ErrNotInitialized
	}

	header, err := readExact(r, LengthHeaderSize+MACSize)
	if err != nil {
		m.state = stateFailed
		return nil, fmt.Errorf("read message: %w", ErrIO)
	}
	saved := *m.recvCipher
	lenBE, err := m.recvCipher.Decrypt(nil, header[:LengthHeaderSize], header[LengthHeaderSize:])
	if err != nil {
		m.state = stateFailed
		return nil, err
	}
	length := binary.BigEndian.Uint16(lenBE)

	body, err := readExact(r, int(length)+MACSize)
	if err != nil {
		m.state = stateFailed
		return nil, fmt.Errorf("read message: %w", ErrIO)
	}
	plaintext, err := m.recvCipher.Decrypt(nil, body[:length], body[length:])
	if err != nil {
		// Undo the header decrypt so a rejected record leaves recvCipher
		// exactly as it was before this call.
		*m.recvCipher = saved
		m.state = stateFailed
		return nil, err
	}
	return plaintext, nil
}

func writeAll(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

func readExact(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
