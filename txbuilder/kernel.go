package txbuilder

import (
	"github.com/pkt-cash/pktd/btcec"
	"github.com/pkt-cash/pktd/btcutil/er"

	"github.com/pkt-cash/mwcore/coinselect"
	"github.com/pkt-cash/mwcore/crypto"
	"github.com/pkt-cash/mwcore/txo"
)

// kernelMessage binds a kernel's signature to the fee, lock height and
// feature flags it carries — the same three fields that make a kernel
// identifiable to the base node independent of its excess.
func kernelMessage(fee uint64, lockHeight int64, features txo.KernelFeatures) []byte {
	msg := make([]byte, 0, 17)
	msg = append(msg, uint64Bytes(fee)...)
	msg = append(msg, uint64Bytes(uint64(lockHeight))...)
	msg = append(msg, byte(features))
	return msg
}

// buildKernel signs the kernel for a transaction whose excess secret is
// the global offset scalar. Invariant 5 of the data model requires every
// kernel to carry at least one excess signature and lets the first
// kernel's excess signature stand in as the transaction's RPC identity;
// every construction mode here produces exactly one kernel, so that's
// automatically satisfied.
func buildKernel(
	offset *btcec.PrivateKey,
	inputs []*txo.DatabaseOutput,
	outputs []*txo.DatabaseOutput,
	feePerGram uint64,
	lockHeight int64,
	features txo.KernelFeatures,
) (*txo.Kernel, er.R) {
	fee := coinselect.Fee(feePerGram, len(inputs), len(outputs))
	nonce, err := crypto.RandomScalar()
	if err != nil {
		return nil, ErrBuild.New("deriving kernel nonce", err)
	}
	excess := crypto.Commit(0, offset)
	msg := kernelMessage(fee, lockHeight, features)
	sig := crypto.SignPartial(offset, nonce, offset.PubKey(), nonce.PubKey(), msg)
	return &txo.Kernel{
		ExcessSignature: &crypto.MetadataSignature{PublicNonce: nonce.PubKey(), Scalar: sig},
		Excess:          excess,
		Fee:             fee,
		LockHeight:      lockHeight,
		Features:        features,
	}, nil
}

// buildKernelWithFee is used by construction modes (coinbase) that already
// know their fee rather than deriving it from feePerGram and shape.
func buildKernelWithFee(
	offset *btcec.PrivateKey,
	fee uint64,
	lockHeight int64,
	features txo.KernelFeatures,
) (*txo.Kernel, er.R) {
	nonce, err := crypto.RandomScalar()
	if err != nil {
		return nil, ErrBuild.New("deriving kernel nonce", err)
	}
	excess := crypto.Commit(0, offset)
	msg := kernelMessage(fee, lockHeight, features)
	sig := crypto.SignPartial(offset, nonce, offset.PubKey(), nonce.PubKey(), msg)
	return &txo.Kernel{
		ExcessSignature: &crypto.MetadataSignature{PublicNonce: nonce.PubKey(), Scalar: sig},
		Excess:          excess,
		Fee:             fee,
		LockHeight:      lockHeight,
		Features:        features,
	}, nil
}
