// Package pool enumerates the mutually-exclusive membership states a
// database output can occupy. A commitment appears in exactly one pool at
// any point in serial history (see txo.DatabaseOutput's Pool field).
package pool

import "fmt"

// Pool identifies where a DatabaseOutput currently lives in the ledger.
type Pool int

const (
	// Unspent outputs are confirmed and spendable.
	Unspent Pool = iota

	// EncumberedToBeReceived outputs are scheduled inbound: either a
	// receiver-side protocol is underway or a coinbase is awaiting its
	// first confirmation.
	EncumberedToBeReceived

	// EncumberedToBeSpent outputs are reserved as inputs of an
	// in-progress outbound transaction.
	EncumberedToBeSpent

	// ShortTermEncumbered outputs were selected as change but the
	// negotiation that created them hasn't been confirmed. Cleared on
	// startup.
	ShortTermEncumbered

	// PendingCoinbase outputs are coinbases awaiting maturity. At most
	// one exists per (height, commitment) pair; see
	// Store.AddOutputToBeReceived.
	PendingCoinbase

	// Spent outputs are inputs of a confirmed transaction.
	Spent

	// Invalid outputs failed the last chain validation.
	Invalid

	// CancelledInbound outputs were EncumberedToBeReceived but the
	// transaction that would have produced them was cancelled. They may
	// be reinstated.
	CancelledInbound
)

func (p Pool) String() string {
	switch p {
	case Unspent:
		return "Unspent"
	case EncumberedToBeReceived:
		return "EncumberedToBeReceived"
	case EncumberedToBeSpent:
		return "EncumberedToBeSpent"
	case ShortTermEncumbered:
		return "ShortTermEncumbered"
	case PendingCoinbase:
		return "PendingCoinbase"
	case Spent:
		return "Spent"
	case Invalid:
		return "Invalid"
	case CancelledInbound:
		return "CancelledInbound"
	default:
		return fmt.Sprintf("Pool(%d)", int(p))
	}
}
