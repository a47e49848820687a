package utxodb

import "github.com/pkt-cash/pktd/btcutil/er"

// Err identifies the UDB error category.
var Err er.ErrorType = er.NewErrorType("utxodb.Err")

var (
	// ErrValueNotFound is returned when an optional lookup or clear
	// found nothing matching the given key.
	ErrValueNotFound = Err.Code("ErrValueNotFound")

	// ErrDuplicateOutput is returned by add_unspent and friends when the
	// output's commitment already exists in the store.
	ErrDuplicateOutput = Err.Code("ErrDuplicateOutput")

	// ErrIncorrectPassword is returned when remove_encryption is given
	// the wrong password, and when apply_encryption is called on a store
	// that is already encrypted.
	ErrIncorrectPassword = Err.Code("ErrIncorrectPassword")

	// ErrNoPassword is returned when remove_encryption is called on an
	// already-unencrypted store.
	ErrNoPassword = Err.Code("ErrNoPassword")

	// ErrInconsistentState is a fatal invariant violation: two pools
	// disagree about who owns a commitment, or a transactional move was
	// asked to touch an output it can't find.
	ErrInconsistentState = Err.Code("ErrInconsistentState")

	// ErrStorage wraps an otherwise-uncategorized backend failure.
	ErrStorage = Err.Code("ErrStorage")
)
