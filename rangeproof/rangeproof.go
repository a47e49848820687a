// Package rangeproof implements construction and rewinding of the
// rewindable range proofs attached to unblinded outputs. A proof here is
// the committed value and blinding factor sealed with an authenticated
// stream cipher keyed off (rewind_sk, blinding_sk), so the holder of those
// two scalars can recover both. It attests to nothing publicly: no range
// check is made when a proof is built, and a proof cannot be checked
// without the rewind keys.
package rangeproof

import (
	"crypto/rand"

	"github.com/dchest/blake2b"
	"github.com/pkt-cash/pktd/btcec"
	"github.com/pkt-cash/pktd/btcutil/er"
	"golang.org/x/crypto/chacha20poly1305"
)

// RangeProof is the opaque, on-chain blob attached to an output.
type RangeProof struct {
	Bytes []byte
}

const nonceLen = chacha20poly1305.NonceSizeX

func rewindKey(rewindSk, blindingSk *btcec.PrivateKey) [32]byte {
	h := blake2b.New256()
	_, _ = h.Write(rewindSk.D.Bytes())
	_, _ = h.Write(blindingSk.D.Bytes())
	var key [32]byte
	copy(key[:], h.Sum(nil))
	return key
}

// Construct produces a rewindable range proof for value/blinding, using the
// wallet's rewind data so that the owner (or anyone later given the rewind
// keys) can recover them from the on-chain proof alone.
func Construct(value uint64, blinding *btcec.PrivateKey, rewindSk, blindingSk *btcec.PrivateKey) (*RangeProof, er.R) {
	key := rewindKey(rewindSk, blindingSk)
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, er.E(err)
	}
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, er.E(err)
	}
	plain := make([]byte, 8+32)
	putUint64(plain[:8], value)
	copy(plain[8:], blinding.D.Bytes())
	ct := aead.Seal(nil, nonce, plain, nil)
	return &RangeProof{Bytes: append(nonce, ct...)}, nil
}

// FullRewind recovers the committed value and blinding factor from proof
// using the rewind key pair. It fails (rather than panics) on any output
// not addressed to these keys, since AEAD authentication will reject it.
func FullRewind(proof *RangeProof, rewindSk, blindingSk *btcec.PrivateKey) (uint64, *btcec.PrivateKey, er.R) {
	if proof == nil || len(proof.Bytes) < nonceLen {
		return 0, nil, er.New("range proof too short to rewind")
	}
	key := rewindKey(rewindSk, blindingSk)
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return 0, nil, er.E(err)
	}
	nonce, ct := proof.Bytes[:nonceLen], proof.Bytes[nonceLen:]
	plain, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return 0, nil, er.Errorf("range proof does not belong to these rewind keys: %v", err)
	}
	if len(plain) != 8+32 {
		return 0, nil, er.New("corrupt range proof payload")
	}
	value := getUint64(plain[:8])
	blinding, _ := btcec.PrivKeyFromBytes(btcec.S256(), plain[8:])
	return value, blinding, nil
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (56 - 8*i))
	}
}

func getUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}
