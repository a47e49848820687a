package crypto

import (
	"github.com/dchest/blake2b"
	"github.com/pkt-cash/pktd/btcec"
)

// DH computes an ECDH shared secret: priv*pub, returned as the compressed
// encoding of the resulting point. Used by the one-sided payment scanner
// to recover a spending secret from a known script's private key and an
// output's sender-offset public key.
func DH(priv *btcec.PrivateKey, pub *btcec.PublicKey) []byte {
	x, y := curve.ScalarMult(pub.X, pub.Y, priv.D.Bytes())
	shared := &btcec.PublicKey{Curve: curve, X: x, Y: y}
	return shared.SerializeCompressed()
}

// HashToScalar reduces data to a scalar mod the group order via blake2b,
// the domain-separation hash used throughout this package (H in the
// scanner's rewind-key derivation, and wherever a byte string needs to
// become a private key deterministically).
func HashToScalar(data []byte) *btcec.PrivateKey {
	sum := blake2b.Sum256(data)
	priv, _ := btcec.PrivKeyFromBytes(curve, sum[:])
	return priv
}
