package noise

import (
	"bytes"
	"encoding/hex"
	"errors"
	"net"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// BOLT-8 known-answer literals, spec.md §8 scenario 1-2, fixed-key fixture
// (ls_initiator=0x11.., ls_responder=0x21.., e_initiator=0x12.., e_responder=0x22..).
// The act-two ephemeral-pubkey field as transcribed carries one stray extra
// hex digit past the compressed point's 33 bytes; trimmed here to the 33
// bytes the stated 50-byte act-two total requires.
const (
	vectorActOneHex = "00" +
		"036360e856310ce5d294e8be33fc807077dc56ac80d95d9cd4ddbd21325eff73f7" +
		"0df6086551151f58b8afe6c195782c6a"
	vectorActTwoHex = "00" +
		"02466d7fcae563e5cb09a0d1870bb580344804617879a14949cf22285f1bae3f27" +
		"b6b9a2be06e023bf9075aa41b05a2cb6"
	vectorSendKeyHex = "969ab31b4d288cedf6218839b27a3e2140827047f2c0f01bf5c04435d43511a9"
	vectorRecvKeyHex = "bb9020b8965f4df047e07f955f3c4b88418984aadc5cdb35096b9ea8fa5c3442"
	vectorHelloCiphertextHex = "cf2b30ddf0cf3f80e7c35a6e6730b59fe802473180f396d88a8fb0db8cbcf25d2f214cf9ea1d95"
)

func mustDecodeHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("decode hex vector: %v", err)
	}
	return b
}

// recordingConn wraps a net.Conn and accumulates every byte written to it,
// so a handshake run over it yields the exact wire bytes produced by each
// side for comparison against a published vector.
type recordingConn struct {
	net.Conn
	written bytes.Buffer
}

func (r *recordingConn) Write(p []byte) (int, error) {
	r.written.Write(p)
	return r.Conn.Write(p)
}

// fixedGenerator always returns the same scalar; it stands in for the
// ephemeral_generator injection point the spec requires for reproducible
// test vectors (§9).
func fixedGenerator(raw []byte) EphemeralGenerator {
	return func() (*secp256k1.PrivateKey, error) {
		return secp256k1.PrivKeyFromBytes(raw), nil
	}
}

func repeatedKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, 32)
}

// runFixedHandshake performs a full XK handshake over net.Pipe with the
// BOLT-8 fixed-key fixture (ls_initiator=0x11.., ls_responder=0x21..,
// e_initiator=0x12.., e_responder=0x22..) and returns both Machines ready
// for the record layer.
func runFixedHandshake(t *testing.T) (initiator, responder *Machine) {
	t.Helper()

	lsInit := secp256k1.PrivKeyFromBytes(repeatedKey(0x11))
	lsResp := secp256k1.PrivKeyFromBytes(repeatedKey(0x21))

	initiator = NewMachine(true, lsInit, lsResp.PubKey(), fixedGenerator(repeatedKey(0x12)))
	responder = NewMachine(false, lsResp, nil, fixedGenerator(repeatedKey(0x22)))

	initConn, respConn := net.Pipe()
	defer initConn.Close()
	defer respConn.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- responder.Handshake(respConn) }()

	if err := initiator.Handshake(initConn); err != nil {
		t.Fatalf("initiator handshake: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("responder handshake: %v", err)
	}
	return initiator, responder
}

// runFixedHandshakeRecording is runFixedHandshake but over connections that
// record every byte each side writes, so the raw act-one/act-two wire bytes
// can be checked against the published vector instead of just each side's
// agreement with the other.
func runFixedHandshakeRecording(t *testing.T) (initiator, responder *Machine, initiatorWritten, responderWritten []byte) {
	t.Helper()

	lsInit := secp256k1.PrivKeyFromBytes(repeatedKey(0x11))
	lsResp := secp256k1.PrivKeyFromBytes(repeatedKey(0x21))

	initiator = NewMachine(true, lsInit, lsResp.PubKey(), fixedGenerator(repeatedKey(0x12)))
	responder = NewMachine(false, lsResp, nil, fixedGenerator(repeatedKey(0x22)))

	initConn, respConn := net.Pipe()
	defer initConn.Close()
	defer respConn.Close()

	recInit := &recordingConn{Conn: initConn}
	recResp := &recordingConn{Conn: respConn}

	errCh := make(chan error, 1)
	go func() { errCh <- responder.Handshake(recResp) }()

	if err := initiator.Handshake(recInit); err != nil {
		t.Fatalf("initiator handshake: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("responder handshake: %v", err)
	}
	return initiator, responder, recInit.written.Bytes(), recResp.written.Bytes()
}

// Scenario 1: fixed-key handshake, pinned against the BOLT-8 known-answer
// vectors in spec.md §8 scenario 1 — act-one bytes, act-two bytes, and both
// derived cipher keys must match the published fixture exactly, not merely
// agree with each other. Self-consistency alone cannot catch a transcript
// or HKDF-ordering slip that still leaves both sides agreeing with each
// other but diverging from BOLT-8.
func TestVectorFixedKeyHandshake(t *testing.T) {
	initiator, responder, initiatorWritten, responderWritten := runFixedHandshakeRecording(t)

	if initiator.sendCipher.Key() != responder.recvCipher.Key() {
		t.Fatalf("initiator send key must equal responder recv key")
	}
	if initiator.recvCipher.Key() != responder.sendCipher.Key() {
		t.Fatalf("initiator recv key must equal responder send key")
	}
	if initiator.sendCipher.Key() == initiator.recvCipher.Key() {
		t.Fatalf("send and recv keys must differ")
	}

	wantInitiatorStatic := secp256k1.PrivKeyFromBytes(repeatedKey(0x11)).PubKey()
	if !bytes.Equal(responder.RemoteStatic().SerializeCompressed(), wantInitiatorStatic.SerializeCompressed()) {
		t.Fatalf("responder should learn the initiator's static key from act three")
	}

	wantActOne := mustDecodeHex(t, vectorActOneHex)
	if len(initiatorWritten) < actOneSize || !bytes.Equal(initiatorWritten[:actOneSize], wantActOne) {
		t.Fatalf("act one bytes do not match BOLT-8 vector:\n got  %x\n want %x", initiatorWritten[:min(len(initiatorWritten), actOneSize)], wantActOne)
	}

	wantActTwo := mustDecodeHex(t, vectorActTwoHex)
	if len(responderWritten) < actTwoSize || !bytes.Equal(responderWritten[:actTwoSize], wantActTwo) {
		t.Fatalf("act two bytes do not match BOLT-8 vector:\n got  %x\n want %x", responderWritten[:min(len(responderWritten), actTwoSize)], wantActTwo)
	}

	wantActThreeLen := actThreeSize
	if gotActThreeLen := len(initiatorWritten) - actOneSize; gotActThreeLen != wantActThreeLen {
		t.Fatalf("act three length = %d, want %d", gotActThreeLen, wantActThreeLen)
	}
	if initiatorWritten[actOneSize] != 0x00 {
		t.Fatalf("act three version byte = 0x%02x, want 0x00", initiatorWritten[actOneSize])
	}

	var wantSendKey, wantRecvKey [32]byte
	copy(wantSendKey[:], mustDecodeHex(t, vectorSendKeyHex))
	copy(wantRecvKey[:], mustDecodeHex(t, vectorRecvKeyHex))
	if initiator.sendCipher.Key() != wantSendKey {
		t.Fatalf("initiator send_cipher key = %x, want %x", initiator.sendCipher.Key(), wantSendKey)
	}
	if initiator.recvCipher.Key() != wantRecvKey {
		t.Fatalf("initiator recv_cipher key = %x, want %x", initiator.recvCipher.Key(), wantRecvKey)
	}
}

// Scenario 2: record round trip using the keys derived above, pinned
// against the BOLT-8 vector for a "hello" payload (spec.md §8 scenario 2):
// the exact ciphertext-on-the-wire, not just that it decrypts back to the
// original payload.
func TestVectorRecordRoundTrip(t *testing.T) {
	initiator, responder := runFixedHandshake(t)

	var wire bytes.Buffer
	payload := []byte("hello")
	if err := initiator.WriteMessage(&wire, payload); err != nil {
		t.Fatalf("write message: %v", err)
	}

	wantCiphertext := mustDecodeHex(t, vectorHelloCiphertextHex)
	if !bytes.Equal(wire.Bytes(), wantCiphertext) {
		t.Fatalf("record ciphertext does not match BOLT-8 vector:\n got  %x\n want %x", wire.Bytes(), wantCiphertext)
	}

	got, err := responder.ReadMessage(&wire)
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round trip mismatch: got %q want %q", got, payload)
	}
}

// Scenario 3: the 1000th record triggers rotation; the 1001st uses the
// rotated key, and the whole sequence still decrypts correctly.
func TestVectorRotationAtRecordBoundary(t *testing.T) {
	initiator, responder := runFixedHandshake(t)

	var wire bytes.Buffer
	const total = 1001

	var keyBeforeRotation, keyAfterRotation [32]byte
	for i := 0; i < total; i++ {
		if err := initiator.WriteMessage(&wire, []byte("abcde")); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		if i == 998 {
			keyBeforeRotation = responder.recvCipher.Key()
		}

		msg, err := responder.ReadMessage(&wire)
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if !bytes.Equal(msg, []byte("abcde")) {
			t.Fatalf("record %d corrupted", i)
		}
		if i == 999 {
			keyAfterRotation = responder.recvCipher.Key()
			if responder.recvCipher.Nonce() != 0 {
				t.Fatalf("expected nonce reset to 0 immediately after rotation, got %d", responder.recvCipher.Nonce())
			}
		}
	}
	if keyBeforeRotation == keyAfterRotation {
		t.Fatalf("expected key rotation across record #1000")
	}
}

// Scenario 4: flipping any bit in a record fails the peer's read with Auth,
// and the peer's cipher state is left unchanged.
func TestVectorBitFlipCausesAuthFailure(t *testing.T) {
	initiator, responder := runFixedHandshake(t)

	var wire bytes.Buffer
	if err := initiator.WriteMessage(&wire, []byte("abcde")); err != nil {
		t.Fatalf("write message: %v", err)
	}

	record := wire.Bytes()
	record[len(record)-1] ^= 0x01

	beforeKey := responder.recvCipher.Key()
	beforeNonce := responder.recvCipher.Nonce()

	_, err := responder.ReadMessage(bytes.NewReader(record))
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
	if responder.recvCipher.Key() != beforeKey || responder.recvCipher.Nonce() != beforeNonce {
		t.Fatalf("failed read must not mutate recv cipher state prior to the failing op")
	}
}

// Scenario 5: an initiator configured with the wrong responder static key
// cannot reproduce the responder's DH outputs, so the handshake fails with
// Auth. The mismatch is detected as soon as either side decrypts against a
// transcript the other could not have produced; which specific act trips
// it first is not load-bearing, only that Auth fires and the handshake
// never reaches Ready.
func TestVectorWrongResponderStaticKey(t *testing.T) {
	lsInit := secp256k1.PrivKeyFromBytes(repeatedKey(0x11))
	lsResp := secp256k1.PrivKeyFromBytes(repeatedKey(0x21))
	wrongResponderPub := secp256k1.PrivKeyFromBytes(repeatedKey(0x99)).PubKey()

	initiator := NewMachine(true, lsInit, wrongResponderPub, fixedGenerator(repeatedKey(0x12)))
	responder := NewMachine(false, lsResp, nil, fixedGenerator(repeatedKey(0x22)))

	initConn, respConn := net.Pipe()
	defer initConn.Close()

	errCh := make(chan error, 1)
	go func() {
		err := responder.Handshake(respConn)
		respConn.Close()
		errCh <- err
	}()

	initErr := initiator.Handshake(initConn)
	respErr := <-errCh

	if !errors.Is(respErr, ErrAuth) && !errors.Is(initErr, ErrAuth) {
		t.Fatalf("expected ErrAuth on at least one side, got responder=%v initiator=%v", respErr, initErr)
	}
}

// Scenario 6: a responder receiving act one with a bad version byte fails
// with HandshakeVersion before any DH is attempted.
func TestVectorWrongVersionByte(t *testing.T) {
	lsResp := secp256k1.PrivKeyFromBytes(repeatedKey(0x21))
	responder := NewMachine(false, lsResp, nil, fixedGenerator(repeatedKey(0x22)))

	initConn, respConn := net.Pipe()
	defer initConn.Close()
	defer respConn.Close()

	badActOne := make([]byte, actOneSize)
	badActOne[0] = 0x01
	go func() {
		_ = writeAll(initConn, badActOne)
	}()

	err := responder.Handshake(respConn)
	if !errors.Is(err, ErrHandshakeVersion) {
		t.Fatalf("expected ErrHandshakeVersion, got %v", err)
	}
}
