package scanner_test

import (
	"testing"

	"github.com/pkt-cash/mwcore/crypto"
	"github.com/pkt-cash/mwcore/rangeproof"
	"github.com/pkt-cash/mwcore/scanner"
	"github.com/pkt-cash/mwcore/txo"
	"github.com/pkt-cash/mwcore/utxodb"
)

// buildRecoverableOutput constructs a one-sided payment the way a sender
// would: it knows the recipient's known-script public key but not its
// private key, and derives the same (spendingSecret, rewindSk, blindingSk)
// chain the scanner will recompute from the other side of the DH exchange.
func buildRecoverableOutput(t *testing.T, value uint64, script txo.Script) (*txo.TransactionOutput, txo.KnownOneSidedPaymentScript) {
	t.Helper()
	knownSk, err := crypto.RandomScalar()
	if err != nil {
		t.Fatalf("RandomScalar: %v", err)
	}
	senderOffsetSk, err := crypto.RandomScalar()
	if err != nil {
		t.Fatalf("RandomScalar: %v", err)
	}

	shared := crypto.DH(senderOffsetSk, knownSk.PubKey())
	spendingSecret := crypto.HashToScalar(shared)
	rewindSk := crypto.HashToScalar(spendingSecret.D.Bytes())
	blindingSk := crypto.HashToScalar(rewindSk.D.Bytes())

	proof, err := rangeproof.Construct(value, spendingSecret, rewindSk, blindingSk)
	if err != nil {
		t.Fatalf("rangeproof.Construct: %v", err)
	}

	out := &txo.TransactionOutput{
		Commitment:         crypto.Commit(value, spendingSecret),
		Script:             script,
		SenderOffsetPubKey: senderOffsetSk.PubKey(),
		RangeProof:         proof,
		Features:           txo.OutputFeatures{},
	}
	known := txo.KnownOneSidedPaymentScript{Script: script, PrivateKey: knownSk}
	return out, known
}

func TestScanRecoversOneSidedPayment(t *testing.T) {
	script := txo.Script{0x01, 0x02}
	out, known := buildRecoverableOutput(t, 777, script)
	store := utxodb.NewMemStore()

	recovered, err := scanner.Scan([]*txo.TransactionOutput{out}, []txo.KnownOneSidedPaymentScript{known}, store)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(recovered) != 1 || recovered[0].Value != 777 {
		t.Fatalf("expected exactly one recovered output of value 777, got %+v", recovered)
	}

	balance, err := store.GetBalance(nil)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.Available != 777 {
		t.Fatalf("expected the recovered output to be Unspent and available, got balance %+v", balance)
	}

	recoveredAgain, err := scanner.Scan([]*txo.TransactionOutput{out}, []txo.KnownOneSidedPaymentScript{known}, store)
	if err != nil {
		t.Fatalf("second Scan: %v", err)
	}
	if len(recoveredAgain) != 0 {
		t.Fatalf("expected a repeat scan to recover nothing, got %+v", recoveredAgain)
	}
	balance2, err := store.GetBalance(nil)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance2 != balance {
		t.Fatalf("expected the UDB to be unchanged by a repeat scan: before %+v, after %+v", balance, balance2)
	}
}

func TestScanIgnoresNonMatchingScripts(t *testing.T) {
	out, known := buildRecoverableOutput(t, 100, txo.Script{0x01})
	known.Script = txo.Script{0x02}
	store := utxodb.NewMemStore()

	recovered, err := scanner.Scan([]*txo.TransactionOutput{out}, []txo.KnownOneSidedPaymentScript{known}, store)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(recovered) != 0 {
		t.Fatalf("expected no recovery when scripts differ, got %+v", recovered)
	}
}
