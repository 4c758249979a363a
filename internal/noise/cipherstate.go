package noise

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// CipherState holds one direction's AEAD key, the salt used only for key
// rotation, and a 64-bit counter nonce. It is deliberately not safe for
// concurrent use: callers own one CipherState per connection direction,
// exactly as spec.md §5 describes.
type CipherState struct {
	key  [32]byte
	salt [32]byte
	n    uint64
}

// newCipherState returns a CipherState with the given salt and key and a
// nonce reset to zero. The salt only matters once the key is rotated.
func newCipherState(salt, key [32]byte) *CipherState {
	return &CipherState{key: key, salt: salt}
}

// initializeKey replaces the cipher's key and resets the nonce, leaving
// salt untouched. Used by SymmetricState.mixKey, where only the temp key
// changes and the cipher's salt is not yet meaningful.
func (cs *CipherState) initializeKey(key [32]byte) {
	cs.key = key
	cs.n = 0
}

// initializeKeyWithSalt sets both salt and key and resets the nonce. Used
// once, at split(), to seed the two record-layer ciphers.
func (cs *CipherState) initializeKeyWithSalt(salt, key [32]byte) {
	cs.salt = salt
	cs.initializeKey(key)
}

func encodeNonce(n uint64) [chacha20poly1305.NonceSize]byte {
	var nonce [chacha20poly1305.NonceSize]byte
	binary.LittleEndian.PutUint64(nonce[4:], n)
	return nonce
}

// Encrypt seals plaintext under the current key and nonce, returning the
// ciphertext and its 16-byte tag separately. On success the nonce advances
// and, every KeyRotationInterval operations, the key and salt rotate.
func (cs *CipherState) Encrypt(ad, plaintext []byte) (ciphertext, tag []byte, err error) {
	aead, err := chacha20poly1305.New(cs.key[:])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: new aead: %v", ErrCrypto, err)
	}
	nonce := encodeNonce(cs.n)
	sealed := aead.Seal(nil, nonce[:], plaintext, ad)
	ciphertext = sealed[:len(plaintext)]
	tag = sealed[len(plaintext):]
	cs.advance()
	return ciphertext, tag, nil
}

// Decrypt opens ciphertext+tag under the current key and nonce. On tag
// mismatch it returns ErrAuth and leaves key, salt, and nonce untouched.
// On success the nonce advances (and may rotate) exactly as Encrypt does.
func (cs *CipherState) Decrypt(ad, ciphertext, tag []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(cs.key[:])
	if err != nil {
		return nil, fmt.Errorf("%w: new aead: %v", ErrCrypto, err)
	}
	nonce := encodeNonce(cs.n)
	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	plaintext, err := aead.Open(nil, nonce[:], sealed, ad)
	if err != nil {
		return nil, ErrAuth
	}
	cs.advance()
	return plaintext, nil
}

// advance increments the nonce and rotates the key once it reaches
// KeyRotationInterval.
func (cs *CipherState) advance() {
	cs.n++
	if cs.n == KeyRotationInterval {
		cs.rotate()
	}
}

// rotate ratchets key and salt forward via HKDF-SHA256(salt, key) and
// resets the nonce to zero.
func (cs *CipherState) rotate() {
	r := hkdf.New(sha256.New, cs.key[:], cs.salt[:], nil)
	var okm [64]byte
	if _, err := io.ReadFull(r, okm[:]); err != nil {
		// hkdf.Reader over SHA-256 never runs out of output at this
		// length; a failure here means something is badly wrong with
		// the runtime's crypto/sha256, not with our input.
		panic("noise: hkdf expand failed during key rotation: " + err.Error())
	}
	copy(cs.salt[:], okm[:32])
	copy(cs.key[:], okm[32:64])
	cs.n = 0
}

// Nonce reports the current counter value, for tests and diagnostics.
func (cs *CipherState) Nonce() uint64 { return cs.n }

// Key reports the current 32-byte key, for tests and diagnostics.
func (cs *CipherState) Key() [32]byte { return cs.key }
