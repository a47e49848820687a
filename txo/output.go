// Package txo holds the core data model: unblinded outputs, their
// persisted form, and the transaction envelope that groups them. These
// types are passed by value between the coin selector, the transaction
// builder and the output manager; none of them own a database connection.
package txo

import (
	"github.com/pkt-cash/pktd/btcec"
	"github.com/pkt-cash/pktd/btcutil"
	"github.com/pkt-cash/pktd/chaincfg/chainhash"

	"github.com/pkt-cash/mwcore/crypto"
	"github.com/pkt-cash/mwcore/pool"
	"github.com/pkt-cash/mwcore/rangeproof"
)

// TxId is the opaque local identifier of a transaction.
type TxId uint64

// OutputFlags are feature bits carried alongside OutputFeatures.
type OutputFlags uint8

const (
	// FlagCoinbase marks an output as a block reward.
	FlagCoinbase OutputFlags = 1 << iota
)

// OutputFeatures describes the consensus-visible attributes of an output.
type OutputFeatures struct {
	// Maturity is the minimum chain tip height at which this output may
	// be spent.
	Maturity int64
	Flags    OutputFlags
}

// IsCoinbase reports whether this output is a block reward.
func (f OutputFeatures) IsCoinbase() bool { return f.Flags&FlagCoinbase != 0 }

// Script is treated as an opaque byte string by the core; only the Nop
// script is currently produced or accepted, per §4.5 of the design.
type Script []byte

// Nop is the receiver script the wallet currently understands; anything
// else is rejected with InvalidScriptHash.
var Nop = Script{0x00}

// UnblindedOutput is the spendable record: everything needed to
// reconstruct and spend an output, before it has been persisted.
type UnblindedOutput struct {
	Value              uint64
	SpendingKey        *btcec.PrivateKey
	Features           OutputFeatures
	Script             Script
	ScriptInputWitness []byte
	ScriptKey          *btcec.PrivateKey
	SenderOffsetPubKey *btcec.PublicKey
	MetadataSignature  *crypto.MetadataSignature
}

// Commitment derives the Pedersen commitment v*H + r*G that identifies
// this output; it is the invariant UDB keys on.
func (u *UnblindedOutput) Commitment() *crypto.Commitment {
	return crypto.Commit(u.Value, u.SpendingKey)
}

// Hash is a content hash of the output, used by the validation task and
// the base-node RPC's hash-keyed lookups.
func (u *UnblindedOutput) Hash() chainhash.Hash {
	return chainhash.HashH(u.Commitment().Bytes())
}

// DatabaseOutput is an UnblindedOutput plus the bookkeeping UDB needs:
// its derived commitment/hash and which pool it currently occupies.
type DatabaseOutput struct {
	UnblindedOutput
	CommitmentBytes []byte
	Pool            pool.Pool
	// CoinbaseHeight is set when Pool == pool.PendingCoinbase.
	CoinbaseHeight int64
	// TxId is the transaction this output is encumbered against, if any.
	TxId TxId
}

// Amount is a convenience accessor returning the output's value as a
// btcutil.Amount for callers doing arithmetic against other wallet types.
func (d *DatabaseOutput) Amount() btcutil.Amount {
	return btcutil.Amount(d.Value)
}

// NewDatabaseOutput wraps an UnblindedOutput for persistence, computing and
// caching its commitment bytes.
func NewDatabaseOutput(uo UnblindedOutput, p pool.Pool) *DatabaseOutput {
	return &DatabaseOutput{
		UnblindedOutput: uo,
		CommitmentBytes: uo.Commitment().Bytes(),
		Pool:            p,
	}
}

// KernelFeatures mirrors OutputFlags for the transaction kernel.
type KernelFeatures uint8

const (
	// KernelCoinbase marks a kernel as belonging to a coinbase transaction.
	KernelCoinbase KernelFeatures = 1 << iota
)

// Kernel is the signed artifact binding a transaction's inputs, outputs,
// fee and lock height via an excess signature.
type Kernel struct {
	ExcessSignature *crypto.MetadataSignature
	Excess          *crypto.Commitment
	Fee             uint64
	LockHeight      int64
	Features        KernelFeatures
}

// Transaction is the first-class envelope describing a set of spent
// commitments, a set of new outputs and one or more kernels.
type Transaction struct {
	Inputs  []*crypto.Commitment
	Outputs []*DatabaseOutput
	Kernels []*Kernel
}

// ExcessSignature returns the identity of the transaction for RPC queries:
// the first kernel's excess signature, per invariant 5 of the data model.
func (t *Transaction) ExcessSignature() *crypto.MetadataSignature {
	if len(t.Kernels) == 0 {
		return nil
	}
	return t.Kernels[0].ExcessSignature
}

// KnownOneSidedPaymentScript is a script this wallet can recognize and
// recover funds from without prior negotiation with the sender.
type KnownOneSidedPaymentScript struct {
	Script             Script
	ScriptInputWitness []byte
	PrivateKey         *btcec.PrivateKey
}

// TransactionOutput is the shape the base node hands back for a
// chain-observed output; it is the scanner's and the validation task's raw
// material.
type TransactionOutput struct {
	Commitment         *crypto.Commitment
	Script             Script
	SenderOffsetPubKey *btcec.PublicKey
	RangeProof         *rangeproof.RangeProof
	Features           OutputFeatures
}
