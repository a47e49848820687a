// Package crypto implements the homomorphic commitment and signature
// primitives the output manager needs on top of the secp256k1 group: value
// commitments, sender-offset keys and aggregated metadata signatures. It is
// built directly on btcec curve arithmetic rather than a higher-level
// Bitcoin-style signature package, since the wallet's commitments and
// partial signatures have no equivalent in a plain UTXO/script model.
package crypto

import (
	"math/big"

	"github.com/dchest/blake2b"
	"github.com/pkt-cash/pktd/btcec"
	"github.com/pkt-cash/pktd/btcutil/er"
)

var curve = btcec.S256()

// H is the second generator used for the value term of a Pedersen
// commitment. It is derived deterministically by hashing a fixed label and
// a counter to a candidate x-coordinate until one lies on the curve, so
// nobody (including the wallet) knows its discrete log relative to G.
var H = deriveH()

func deriveH() *btcec.PublicKey {
	label := []byte("mwcore/pedersen/H")
	for ctr := 0; ; ctr++ {
		sum := blake2b.Sum256(append(label, byte(ctr)))
		x := new(big.Int).SetBytes(sum[:])
		if x.Cmp(curve.P) >= 0 {
			continue
		}
		// y^2 = x^3 + b (mod p)
		rhs := new(big.Int).Exp(x, big.NewInt(3), curve.P)
		rhs.Add(rhs, curve.B).Mod(rhs, curve.P)
		if y := new(big.Int).ModSqrt(rhs, curve.P); y != nil {
			return &btcec.PublicKey{Curve: curve, X: x, Y: y}
		}
	}
}

// Commitment is a Pedersen commitment v*H + r*G over secp256k1.
type Commitment struct {
	X, Y *big.Int
}

// Bytes returns the compressed SEC1 encoding of the commitment, used as the
// UDB persistence key.
func (c *Commitment) Bytes() []byte {
	return (&btcec.PublicKey{Curve: curve, X: c.X, Y: c.Y}).SerializeCompressed()
}

func (c *Commitment) String() string {
	return string(c.Bytes())
}

// Equal reports whether two commitments encode the same point.
func (c *Commitment) Equal(o *Commitment) bool {
	if c == nil || o == nil {
		return c == o
	}
	return c.X.Cmp(o.X) == 0 && c.Y.Cmp(o.Y) == 0
}

// Commit computes value*H + blinding*G.
func Commit(value uint64, blinding *btcec.PrivateKey) *Commitment {
	vx, vy := curve.ScalarMult(H.X, H.Y, new(big.Int).SetUint64(value).Bytes())
	rx, ry := curve.ScalarBaseMult(blinding.D.Bytes())
	x, y := curve.Add(vx, vy, rx, ry)
	return &Commitment{X: x, Y: y}
}

// ParseCommitment decodes a compressed-point commitment previously produced
// by Bytes.
func ParseCommitment(b []byte) (*Commitment, er.R) {
	pk, err := btcec.ParsePubKey(b, curve)
	if err != nil {
		return nil, err
	}
	return &Commitment{X: pk.X, Y: pk.Y}, nil
}
