package noise

// ProtocolName is the exact Noise protocol instantiation mixed into the
// initial transcript hash. Initiator and responder must agree on this
// string byte-for-byte or the handshake fails at the very first
// authenticated step.
const ProtocolName = "Noise_XK_secp256k1_ChaChaPoly_SHA256"

// Prologue is mixed into the transcript hash immediately after the
// protocol name, ahead of any DH output. BOLT-8 fixes this to the ASCII
// bytes "lightning".
const Prologue = "lightning"

const (
	// MACSize is the length in bytes of a Poly1305 authentication tag.
	MACSize = 16

	// LengthHeaderSize is the width, in bytes, of the big-endian length
	// prefix on each post-handshake record.
	LengthHeaderSize = 2

	// KeyRotationInterval is the number of encrypt-or-decrypt operations
	// a single CipherState direction performs before its key and salt are
	// ratcheted forward and its nonce counter resets to zero.
	KeyRotationInterval = 1000

	// MaxPayload is the largest plaintext payload write_message accepts.
	MaxPayload = 65535

	// handshakeVersion is the only handshake version this profile speaks.
	handshakeVersion = 0x00

	// actOneSize is 1 (version) + 33 (compressed ephemeral pubkey) + 16 (tag).
	actOneSize = 1 + 33 + MACSize
	// actTwoSize mirrors actOneSize.
	actTwoSize = actOneSize
	// actThreeSize is 1 (version) + 33 (ciphertext of static pubkey) + 16*2 (two tags).
	actThreeSize = 1 + 33 + 2*MACSize
)
