package noise

import (
	"crypto/sha256"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// ecdh computes SHA256(compressed_point(sk · pk)), the DH primitive used
// throughout the handshake transcript. It never returns an error: any
// secp256k1.PublicKey or PrivateKey already decoded by this package is, by
// construction, a valid curve point / non-zero scalar.
func ecdh(pub *secp256k1.PublicKey, priv *secp256k1.PrivateKey) [32]byte {
	var pubJacobian secp256k1.JacobianPoint
	pub.AsJacobian(&pubJacobian)

	var resultJacobian secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(&priv.Key, &pubJacobian, &resultJacobian)
	resultJacobian.ToAffine()

	sharedPub := secp256k1.NewPublicKey(&resultJacobian.X, &resultJacobian.Y)
	return sha256.Sum256(sharedPub.SerializeCompressed())
}

// parsePublicKey decodes a 33-byte compressed secp256k1 point, returning
// ErrCrypto if it is not a valid point on the curve.
func parsePublicKey(compressed []byte) (*secp256k1.PublicKey, error) {
	pub, err := secp256k1.ParsePubKey(compressed)
	if err != nil {
		return nil, ErrCrypto
	}
	return pub, nil
}
