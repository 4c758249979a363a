package noise

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// EphemeralGenerator produces a fresh ephemeral private key for one
// handshake act. The default implementation draws from crypto/rand;
// tests inject a deterministic generator to reproduce BOLT-8 vectors.
type EphemeralGenerator func() (*secp256k1.PrivateKey, error)

func defaultEphemeralGenerator() (*secp256k1.PrivateKey, error) {
	return secp256k1.GeneratePrivateKey()
}

// handshakeState tracks the running SymmetricState plus every static and
// ephemeral key involved in the Noise XK transcript. remoteStatic is known
// up front for the initiator (the "XK" pre-knowledge) and learned from act
// three for the responder.
type handshakeState struct {
	ss *SymmetricState

	initiator bool

	localStatic    *secp256k1.PrivateKey
	localStaticPub *secp256k1.PublicKey

	localEphemeral    *secp256k1.PrivateKey
	localEphemeralPub *secp256k1.PublicKey

	remoteStatic    *secp256k1.PublicKey
	remoteEphemeral *secp256k1.PublicKey
}

// newHandshakeState mixes the protocol name, prologue, and the responder's
// static public key into the transcript. For the responder, remoteStatic
// is not yet known; pass nil and it is learned from act three.
func newHandshakeState(initiator bool, localStatic *secp256k1.PrivateKey, remoteStatic *secp256k1.PublicKey) *handshakeState {
	hs := &handshakeState{
		ss:             newSymmetricState(ProtocolName),
		initiator:      initiator,
		localStatic:    localStatic,
		localStaticPub: localStatic.PubKey(),
		remoteStatic:   remoteStatic,
	}
	hs.ss.mixHash([]byte(Prologue))
	if initiator {
		hs.ss.mixHash(remoteStatic.SerializeCompressed())
	} else {
		hs.ss.mixHash(hs.localStaticPub.SerializeCompressed())
	}
	return hs
}

// genActOne produces the initiator's first handshake message: a fresh
// ephemeral key mixed into the transcript, an ECDH against the responder's
// known static key, and an empty authenticated payload.
func genActOne(hs *handshakeState, gen EphemeralGenerator) ([]byte, error) {
	priv, err := gen()
	if err != nil {
		return nil, ErrCrypto
	}
	hs.localEphemeral = priv
	hs.localEphemeralPub = priv.PubKey()
	ephemeral := hs.localEphemeralPub.SerializeCompressed()

	hs.ss.mixHash(ephemeral)
	s := ecdh(hs.remoteStatic, priv)
	hs.ss.mixKey(s[:])

	_, tag, err := hs.ss.encryptAndHash(nil)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, actOneSize)
	buf = append(buf, handshakeVersion)
	buf = append(buf, ephemeral...)
	buf = append(buf, tag...)
	return buf, nil
}

// recvActOne is the responder's side of act one.
func recvActOne(hs *handshakeState, msg []byte) error {
	if msg[0] != handshakeVersion {
		return ErrHandshakeVersion
	}
	pubBytes := msg[1:34]
	tag := msg[34:50]

	remoteEphemeral, err := parsePublicKey(pubBytes)
	if err != nil {
		return err
	}
	hs.remoteEphemeral = remoteEphemeral
	hs.ss.mixHash(pubBytes)

	s := ecdh(remoteEphemeral, hs.localStatic)
	hs.ss.mixKey(s[:])

	_, err = hs.ss.decryptAndHash(nil, tag)
	return err
}

// genActTwo is the responder's reply: a new responder ephemeral, mixed
// into the transcript, DH'd against the initiator's ephemeral from act one.
func genActTwo(hs *handshakeState, gen EphemeralGenerator) ([]byte, error) {
	priv, err := gen()
	if err != nil {
		return nil, ErrCrypto
	}
	hs.localEphemeral = priv
	hs.localEphemeralPub = priv.PubKey()
	ephemeral := hs.localEphemeralPub.SerializeCompressed()

	hs.ss.mixHash(ephemeral)
	s := ecdh(hs.remoteEphemeral, priv)
	hs.ss.mixKey(s[:])

	_, tag, err := hs.ss.encryptAndHash(nil)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, actTwoSize)
	buf = append(buf, handshakeVersion)
	buf = append(buf, ephemeral...)
	buf = append(buf, tag...)
	return buf, nil
}

// recvActTwo is the initiator's side of act two.
func recvActTwo(hs *handshakeState, msg []byte) error {
	if msg[0] != handshakeVersion {
		return ErrHandshakeVersion
	}
	pubBytes := msg[1:34]
	tag := msg[34:50]

	remoteEphemeral, err := parsePublicKey(pubBytes)
	if err != nil {
		return err
	}
	hs.remoteEphemeral = remoteEphemeral
	hs.ss.mixHash(pubBytes)

	if hs.localEphemeral == nil {
		return ErrNotInitialized
	}
	s := ecdh(remoteEphemeral, hs.localEphemeral)
	hs.ss.mixKey(s[:])

	_, err = hs.ss.decryptAndHash(nil, tag)
	return err
}

// genActThree is the initiator's final message: its static key, encrypted
// under the transcript, followed by a second DH and a closing tag.
func genActThree(hs *handshakeState) ([]byte, error) {
	ct, tag1, err := hs.ss.encryptAndHash(hs.localStaticPub.SerializeCompressed())
	if err != nil {
		return nil, err
	}

	s := ecdh(hs.remoteEphemeral, hs.localStatic)
	hs.ss.mixKey(s[:])

	_, tag2, err := hs.ss.encryptAndHash(nil)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, actThreeSize)
	buf = append(buf, handshakeVersion)
	buf = append(buf, ct...)
	buf = append(buf, tag1...)
	buf = append(buf, tag2...)
	return buf, nil
}

// recvActThree is the responder's side of act three. It learns the
// initiator's static public key from the decrypted payload.
func recvActThree(hs *handshakeState, msg []byte) error {
	if msg[0] != handshakeVersion {
		return ErrHandshakeVersion
	}
	ct := msg[1:34]
	tag1 := msg[34:50]
	tag2 := msg[50:66]

	remoteStaticBytes, err := hs.ss.decryptAndHash(ct, tag1)
	if err != nil {
		return err
	}
	remoteStatic, err := parsePublicKey(remoteStaticBytes)
	if err != nil {
		return err
	}
	hs.remoteStatic = remoteStatic

	s := ecdh(hs.remoteStatic, hs.localEphemeral)
	hs.ss.mixKey(s[:])

	_, err = hs.ss.decryptAndHash(nil, tag2)
	return err
}

// split derives the two record-layer CipherStates from the final chaining
// key. Directionality is fixed by spec: the initiator sends with
// okm[0..32] and receives with okm[32..64]; the responder is the mirror.
func split(hs *handshakeState) (send, recv *CipherState) {
	r := hkdfExpand(hs.ss.ck[:])
	var a, b [32]byte
	copy(a[:], r[:32])
	copy(b[:], r[32:64])

	send = newCipherState([32]byte{}, [32]byte{})
	recv = newCipherState([32]byte{}, [32]byte{})
	if hs.initiator {
		send.initializeKeyWithSalt(hs.ss.ck, a)
		recv.initializeKeyWithSalt(hs.ss.ck, b)
	} else {
		recv.initializeKeyWithSalt(hs.ss.ck, a)
		send.initializeKeyWithSalt(hs.ss.ck, b)
	}
	return send, recv
}
