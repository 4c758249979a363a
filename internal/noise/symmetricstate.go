package noise

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// SymmetricState wraps a CipherState with the running chaining key and
// transcript hash used during the handshake. It implements the Noise
// mix_key / mix_hash / encrypt_and_hash / decrypt_and_hash primitives.
type SymmetricState struct {
	cs *CipherState
	ck [32]byte
	h  [32]byte
}

// newSymmetricState returns a SymmetricState with ck = h = SHA256(protocol
// name), and an inner CipherState with an all-zero key (encryption is
// meaningless until the first mixKey call, which act one performs before
// the first encryption of the handshake).
func newSymmetricState(protocolName string) *SymmetricState {
	h := sha256.Sum256([]byte(protocolName))
	ss := &SymmetricState{
		ck: h,
		h:  h,
		cs: newCipherState([32]byte{}, [32]byte{}),
	}
	return ss
}

// mixHash folds data into the running transcript hash: h = SHA256(h || data).
func (ss *SymmetricState) mixHash(data []byte) {
	h := sha256.New()
	h.Write(ss.h[:])
	h.Write(data)
	copy(ss.h[:], h.Sum(nil))
}

// mixKey folds a DH output into the chaining key and reinitializes the
// inner cipher's key (and nonce) from the derived temp key.
func (ss *SymmetricState) mixKey(ikm []byte) {
	r := hkdf.New(sha256.New, ikm, ss.ck[:], nil)
	var okm [64]byte
	if _, err := io.ReadFull(r, okm[:]); err != nil {
		panic("noise: hkdf expand failed during mix_key: " + err.Error())
	}
	copy(ss.ck[:], okm[:32])
	var temp [32]byte
	copy(temp[:], okm[32:64])
	ss.cs.initializeKey(temp)
}

// hkdfExpand runs HKDF-SHA256 with the given salt and an empty input key
// material, producing the 64-byte output used by split().
func hkdfExpand(salt []byte) [64]byte {
	r := hkdf.New(sha256.New, nil, salt, nil)
	var okm [64]byte
	if _, err := io.ReadFull(r, okm[:]); err != nil {
		panic("noise: hkdf expand failed during split: " + err.Error())
	}
	return okm
}

// encryptAndHash encrypts plaintext under the current transcript hash as
// associated data, then mixes ciphertext||tag into the transcript.
func (ss *SymmetricState) encryptAndHash(plaintext []byte) (ciphertext, tag []byte, err error) {
	ciphertext, tag, err = ss.cs.Encrypt(ss.h[:], plaintext)
	if err != nil {
		return nil, nil, err
	}
	ss.mixHash(append(append([]byte{}, ciphertext...), tag...))
	return ciphertext, tag, nil
}

// decryptAndHash verifies and decrypts ciphertext||tag under the current
// transcript hash. On failure ErrAuth is returned and neither h nor ck
// (nor the inner cipher state) are mutated, since CipherState.Decrypt only
// advances its own nonce on success and mixHash is only called below that.
func (ss *SymmetricState) decryptAndHash(ciphertext, tag []byte) ([]byte, error) {
	plaintext, err := ss.cs.Decrypt(ss.h[:], ciphertext, tag)
	if err != nil {
		return nil, err
	}
	ss.mixHash(append(append([]byte{}, ciphertext...), tag...))
	return plaintext, nil
}
