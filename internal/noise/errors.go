// Package noise implements the Noise_XK_secp256k1_ChaChaPoly_SHA256
// handshake and post-handshake record layer used by the Lightning Network
// BOLT-8 transport profile.
package noise

import "errors"

// Sentinel errors forming the taxonomy from the BOLT-8 transport spec.
// Callers should use errors.Is against these; wrapped context (which act,
// which field) is added with fmt.Errorf("%w: ...").
var (
	// ErrAuth is returned when an AEAD tag fails to verify, during the
	// handshake or on the record layer. No state is mutated on this path.
	ErrAuth = errors.New("noise: auth failed")

	// ErrCrypto covers invalid public point parsing, invalid scalars, and
	// ECDH failures.
	ErrCrypto = errors.New("noise: crypto error")

	// ErrHandshakeVersion is returned when a handshake act's version byte
	// is not 0x00.
	ErrHandshakeVersion = errors.New("noise: unknown handshake version")

	// ErrNotInitialized is returned when a record-layer operation is
	// attempted before the handshake has completed, or after the Machine
	// has failed.
	ErrNotInitialized = errors.New("noise: not initialized")

	// ErrMaxMessageLength is returned by WriteMessage when the payload
	// exceeds MaxPayload bytes. The write is never partially performed.
	ErrMaxMessageLength = errors.New("noise: message exceeds maximum length")

	// ErrIO wraps failures from the underlying byte stream.
	ErrIO = errors.New("noise: io error")
)
