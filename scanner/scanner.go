// Package scanner recovers one-sided payments: outputs a sender built for
// this wallet without any interactive round trip, addressed only by a
// known script and a Diffie-Hellman-derived spending secret.
package scanner

import (
	"github.com/pkt-cash/pktd/btcutil/er"

	"github.com/pkt-cash/mwcore/crypto"
	"github.com/pkt-cash/mwcore/rangeproof"
	"github.com/pkt-cash/mwcore/txo"
	"github.com/pkt-cash/mwcore/utxodb"
)

// Err identifies the scanner's error category.
var Err er.ErrorType = er.NewErrorType("scanner.Err")

// Scan attempts recovery of every output in observed whose script exactly
// matches one of knownScripts, per §4.7. It returns only the outputs it
// successfully recovered and persisted; a DH mismatch or a failed rewind
// for a given (output, script) pair is simply not a recovery, not an
// error. A recovered output already present in the UDB (DuplicateOutput)
// is treated as already-recovered and skipped rather than reported or
// re-inserted — a second scan of the same chain data is therefore
// idempotent, producing no new outputs.
func Scan(observed []*txo.TransactionOutput, knownScripts []txo.KnownOneSidedPaymentScript, store utxodb.Store) ([]*txo.UnblindedOutput, er.R) {
	recovered := make([]*txo.UnblindedOutput, 0)
	for _, out := range observed {
		for _, known := range knownScripts {
			if string(out.Script) != string(known.Script) {
				continue
			}
			uo, ok, err := tryRecover(out, known)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			if err := store.AddUnspent(*uo); err != nil {
				if utxodb.ErrDuplicateOutput.Is(err) {
					continue
				}
				return nil, err
			}
			recovered = append(recovered, uo)
			break
		}
	}
	return recovered, nil
}

// tryRecover performs the DH-recovery-then-rewind attempt for a single
// (output, known script) pair. A failed rewind (wrong keys) returns
// ok=false rather than an error: it just means this script didn't address
// this output.
func tryRecover(out *txo.TransactionOutput, known txo.KnownOneSidedPaymentScript) (*txo.UnblindedOutput, bool, er.R) {
	if out.SenderOffsetPubKey == nil {
		return nil, false, nil
	}
	shared := crypto.DH(known.PrivateKey, out.SenderOffsetPubKey)
	spendingSecret := crypto.HashToScalar(shared)
	rewindSk := crypto.HashToScalar(spendingSecret.D.Bytes())
	blindingSk := crypto.HashToScalar(rewindSk.D.Bytes())

	value, blinding, err := rangeproof.FullRewind(out.RangeProof, rewindSk, blindingSk)
	if err != nil {
		return nil, false, nil
	}

	commitment := crypto.Commit(value, blinding)
	if !commitment.Equal(out.Commitment) {
		return nil, false, nil
	}

	uo := &txo.UnblindedOutput{
		Value:              value,
		SpendingKey:        blinding,
		Features:           out.Features,
		Script:             out.Script,
		ScriptInputWitness: known.ScriptInputWitness,
		ScriptKey:          known.PrivateKey,
		SenderOffsetPubKey: out.SenderOffsetPubKey,
	}
	return uo, true, nil
}
