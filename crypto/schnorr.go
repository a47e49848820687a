package crypto

import (
	"math/big"

	"github.com/dchest/blake2b"
	"github.com/pkt-cash/pktd/btcec"
	"github.com/pkt-cash/pktd/btcutil/er"
)

var n = curve.N

// MetadataSignature is a Schnorr-like signature binding an output's value,
// script, features and sender-offset public key. It is built up in two
// halves: the receiver contributes (pubNonce, partialSig) and the sender's
// offset key is folded in separately by the transaction builder, so the
// type itself only ever needs to carry the final aggregate.
type MetadataSignature struct {
	// PublicNonce is the commitment to the nonce used to produce Scalar.
	PublicNonce *btcec.PublicKey
	// Scalar is s = nonce + e*secret (mod n), the signature's response.
	Scalar *big.Int
}

// RandomScalar returns a uniformly random value mod n, used for nonces and
// blinding factors.
func RandomScalar() (*btcec.PrivateKey, er.R) {
	priv, err := btcec.NewPrivateKey(curve)
	if err != nil {
		return nil, err
	}
	return priv, nil
}

// challenge computes the Fiat-Shamir challenge e = H(R || P || message)
// reduced mod n.
func challenge(pubNonce, pubKey *btcec.PublicKey, message []byte) *big.Int {
	h := blake2b.New256()
	if pubNonce != nil {
		_, _ = h.Write(pubNonce.SerializeCompressed())
	}
	if pubKey != nil {
		_, _ = h.Write(pubKey.SerializeCompressed())
	}
	_, _ = h.Write(message)
	e := new(big.Int).SetBytes(h.Sum(nil))
	return e.Mod(e, n)
}

// SignPartial produces a single party's contribution to a metadata
// signature: s = nonce + e*secret (mod n), where e is the challenge bound
// to the aggregate public key and nonce supplied by the caller (so callers
// computing an aggregated or a solo signature share this routine).
func SignPartial(secret *btcec.PrivateKey, nonce *btcec.PrivateKey, aggPubKey, aggNonce *btcec.PublicKey, message []byte) *big.Int {
	e := challenge(aggNonce, aggPubKey, message)
	s := new(big.Int).Mul(e, secret.D)
	s.Add(s, nonce.D)
	return s.Mod(s, n)
}

// AggregatePublicKeys sums a set of public keys (used to build the
// effective output public key from the spend key and sender-offset key).
func AggregatePublicKeys(keys ...*btcec.PublicKey) *btcec.PublicKey {
	if len(keys) == 0 {
		return nil
	}
	x, y := keys[0].X, keys[0].Y
	for _, k := range keys[1:] {
		x, y = curve.Add(x, y, k.X, k.Y)
	}
	return &btcec.PublicKey{Curve: curve, X: x, Y: y}
}

// AggregateNonces sums a set of public nonces.
func AggregateNonces(nonces ...*btcec.PublicKey) *btcec.PublicKey {
	return AggregatePublicKeys(nonces...)
}

// AggregateScalars sums a set of partial signature scalars mod n.
func AggregateScalars(scalars ...*big.Int) *big.Int {
	s := big.NewInt(0)
	for _, x := range scalars {
		s.Add(s, x)
	}
	return s.Mod(s, n)
}

// Verify checks a metadata signature against the aggregate public key and
// message it was produced over: s*G == R + e*P.
func Verify(sig *MetadataSignature, aggPubKey *btcec.PublicKey, message []byte) bool {
	if sig == nil || sig.PublicNonce == nil || sig.Scalar == nil {
		return false
	}
	e := challenge(sig.PublicNonce, aggPubKey, message)
	sx, sy := curve.ScalarBaseMult(sig.Scalar.Bytes())
	ex, ey := curve.ScalarMult(aggPubKey.X, aggPubKey.Y, e.Bytes())
	rx, ry := curve.Add(sig.PublicNonce.X, sig.PublicNonce.Y, ex, ey)
	return sx.Cmp(rx) == 0 && sy.Cmp(ry) == 0
}
