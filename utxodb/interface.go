// Package utxodb defines the UTXO Database contract — persistence for
// outputs keyed by commitment, with transactional multi-set moves between
// pools — and ships an in-memory Store implementing it. Production
// deployments back Store with a real bucketed database the way the
// wallet's transaction manager does; the interface is identical either
// way, so the output manager never inspects the concrete type.
package utxodb

import (
	"github.com/pkt-cash/pktd/btcutil"
	"github.com/pkt-cash/pktd/btcutil/er"

	"github.com/pkt-cash/mwcore/crypto"
	"github.com/pkt-cash/mwcore/keymanager"
	"github.com/pkt-cash/mwcore/pool"
	"github.com/pkt-cash/mwcore/txo"
)

// Balance is the derived (never stored) summary defined in the data model.
type Balance struct {
	Available       btcutil.Amount
	TimeLocked      btcutil.Amount
	PendingIncoming btcutil.Amount
	PendingOutgoing btcutil.Amount
}

// Store is the persistence contract the output manager, coin selector and
// validation task all drive. Every operation is asynchronous in spirit
// (callers invoke it from a single-consumer dispatch loop, never
// concurrently against the same TxId) and every multi-output move is
// atomic: either every affected commitment changes pool, or none do.
type Store interface {
	keymanager.IndexPersister

	AddUnspent(uo txo.UnblindedOutput) er.R
	AddUnspentWithTx(id txo.TxId, uo txo.UnblindedOutput) er.R

	// AddOutputToBeReceived places uo in EncumberedToBeReceived, or in
	// PendingCoinbase(height) if height is non-nil.
	AddOutputToBeReceived(id txo.TxId, uo txo.UnblindedOutput, height *int64) er.R

	// EncumberOutputs atomically moves inputs from Unspent to
	// EncumberedToBeSpent and inserts changeOutputs as
	// ShortTermEncumbered, all under id.
	EncumberOutputs(id txo.TxId, inputs []*crypto.Commitment, changeOutputs []txo.UnblindedOutput) er.R

	// ConfirmEncumberedOutputs promotes every ShortTermEncumbered output
	// belonging to id to EncumberedToBeReceived.
	ConfirmEncumberedOutputs(id txo.TxId) er.R

	// CancelPendingTransactionOutputs returns id's EncumberedToBeSpent
	// inputs to Unspent and deletes its encumbered/short-term outputs.
	CancelPendingTransactionOutputs(id txo.TxId) er.R

	// ReinstateCancelledInboundOutput moves id's CancelledInbound
	// outputs back to EncumberedToBeReceived.
	ReinstateCancelledInboundOutput(id txo.TxId) er.R

	FetchSortedUnspentOutputs() ([]*txo.DatabaseOutput, er.R)
	FetchSpentOutputs() ([]*txo.DatabaseOutput, er.R)
	GetInvalidOutputs() ([]*txo.DatabaseOutput, er.R)

	// FetchOutputsInPool is the validation task's generic batch source:
	// it reads whichever of Unspent, EncumberedToBeSpent or
	// EncumberedToBeReceived is currently under review.
	FetchOutputsInPool(p pool.Pool) ([]*txo.DatabaseOutput, er.R)
	FetchUtxos(hashes []crypto.Commitment) ([]*txo.DatabaseOutput, er.R)
	FetchUtxosAndMinedInfo(hashes []crypto.Commitment) ([]*txo.DatabaseOutput, er.R)

	// ClearShortTermEncumberances drops every ShortTermEncumbered output
	// and returns its inputs to Unspent. Called once at startup.
	ClearShortTermEncumberances() er.R

	SetCoinbaseAbandoned(id txo.TxId, abandoned bool) er.R
	ClearPendingCoinbaseTransactionAtBlockHeight(height int64) er.R

	RemoveOutputByCommitment(c *crypto.Commitment) er.R
	UpdateOutputMetadataSignature(uo *txo.UnblindedOutput) er.R

	// ApplyEncryption re-keys all persisted secret material under a new
	// passphrase-derived cipher; RemoveEncryption reverts to plaintext.
	ApplyEncryption(passphrase []byte) er.R
	RemoveEncryption(passphrase []byte) er.R

	// GetBalance computes the derived balance. tipHeight is nil when the
	// current chain tip is unknown, in which case TimeLocked is left
	// zero (it is only defined relative to a known tip).
	GetBalance(tipHeight *int64) (Balance, er.R)

	// MoveOutput is a narrow escape hatch used by the validation task
	// to reclassify a single output (Unspent<->Spent<->Invalid) outside
	// of the TxId-scoped operations above.
	MoveOutput(c *crypto.Commitment, to pool.Pool) er.R

	// LookupByCommitment returns the current DatabaseOutput for c, or
	// ErrValueNotFound.
	LookupByCommitment(c *crypto.Commitment) (*txo.DatabaseOutput, er.R)

	// AddKnownOneSidedPaymentScript persists a script this wallet can
	// recognize and recover one-sided payments from, per persisted
	// state layout item (d).
	AddKnownOneSidedPaymentScript(s txo.KnownOneSidedPaymentScript) er.R

	// ListKnownOneSidedPaymentScripts returns every registered script,
	// the scanner's input set for ScanForRecoverableOutputs.
	ListKnownOneSidedPaymentScripts() ([]txo.KnownOneSidedPaymentScript, er.R)
}
