package noise

import (
	"bytes"
	"errors"
	"testing"
)

func TestCipherStateEncryptDecryptRoundTrip(t *testing.T) {
	var key [32]byte
	copy(key[:], bytes.Repeat([]byte{0x42}, 32))

	send := newCipherState([32]byte{}, key)
	recv := newCipherState([32]byte{}, key)

	plaintext := []byte("hello")
	ct, tag, err := send.Encrypt(nil, plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	got, err := recv.Decrypt(nil, ct, tag)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("roundtrip mismatch: got %q want %q", got, plaintext)
	}
}

func TestCipherStateAuthFailureOnBitFlip(t *testing.T) {
	var key [32]byte
	copy(key[:], bytes.Repeat([]byte{0x11}, 32))

	send := newCipherState([32]byte{}, key)
	recv := newCipherState([32]byte{}, key)

	ct, tag, err := send.Encrypt(nil, []byte("payload"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	ct[0] ^= 0x01

	before := recv.Key()
	if _, err := recv.Decrypt(nil, ct, tag); !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
	if recv.Key() != before || recv.Nonce() != 0 {
		t.Fatalf("failed decrypt must not mutate cipher state")
	}
}

func TestCipherStateRotatesAtInterval(t *testing.T) {
	var key [32]byte
	copy(key[:], bytes.Repeat([]byte{0x07}, 32))
	cs := newCipherState([32]byte{0x09}, key)

	var lastKey [32]byte
	for i := 0; i < KeyRotationInterval-1; i++ {
		if _, _, err := cs.Encrypt(nil, []byte("x")); err != nil {
			t.Fatalf("encrypt %d: %v", i, err)
		}
	}
	lastKey = cs.Key()
	if cs.Nonce() != KeyRotationInterval-1 {
		t.Fatalf("expected nonce %d, got %d", KeyRotationInterval-1, cs.Nonce())
	}

	if _, _, err := cs.Encrypt(nil, []byte("x")); err != nil {
		t.Fatalf("encrypt rotating op: %v", err)
	}
	if cs.Nonce() != 0 {
		t.Fatalf("expected nonce reset to 0 after rotation, got %d", cs.Nonce())
	}
	if cs.Key() == lastKey {
		t.Fatalf("expected key to change after rotation")
	}
}
