package utxodb_test

import (
	"math/big"
	"testing"

	"github.com/pkt-cash/pktd/btcec"

	"github.com/pkt-cash/mwcore/crypto"
	"github.com/pkt-cash/mwcore/pool"
	"github.com/pkt-cash/mwcore/txo"
	"github.com/pkt-cash/mwcore/utxodb"
)

func mustKey(t *testing.T) *btcec.PrivateKey {
	t.Helper()
	k, err := btcec.NewPrivateKey(btcec.S256())
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	return k
}

func unblinded(t *testing.T, value uint64) txo.UnblindedOutput {
	return txo.UnblindedOutput{
		Value:       value,
		SpendingKey: mustKey(t),
		ScriptKey:   mustKey(t),
		Script:      txo.Nop,
	}
}

func poolOf(t *testing.T, s *utxodb.MemStore, c *crypto.Commitment) pool.Pool {
	t.Helper()
	d, err := s.LookupByCommitment(c)
	if err != nil {
		t.Fatalf("LookupByCommitment: %v", err)
	}
	return d.Pool
}

func TestEncumberIsAtomicAndCancelReturnsInputs(t *testing.T) {
	s := utxodb.NewMemStore()
	uo := unblinded(t, 1000)
	if err := s.AddUnspent(uo); err != nil {
		t.Fatalf("AddUnspent: %v", err)
	}
	inputCommitment := uo.Commitment()
	change := unblinded(t, 400)

	const txID = txo.TxId(7)
	if err := s.EncumberOutputs(txID, []*crypto.Commitment{inputCommitment}, []txo.UnblindedOutput{change}); err != nil {
		t.Fatalf("EncumberOutputs: %v", err)
	}
	if p := poolOf(t, s, inputCommitment); p != pool.EncumberedToBeSpent {
		t.Fatalf("input pool = %v, want EncumberedToBeSpent", p)
	}
	if p := poolOf(t, s, change.Commitment()); p != pool.ShortTermEncumbered {
		t.Fatalf("change pool = %v, want ShortTermEncumbered", p)
	}

	if err := s.CancelPendingTransactionOutputs(txID); err != nil {
		t.Fatalf("CancelPendingTransactionOutputs: %v", err)
	}
	if p := poolOf(t, s, inputCommitment); p != pool.Unspent {
		t.Fatalf("input pool after cancel = %v, want Unspent", p)
	}
	if _, err := s.LookupByCommitment(change.Commitment()); err == nil {
		t.Fatalf("change output should have been deleted on cancel")
	}
}

func TestConfirmEncumberedOutputs(t *testing.T) {
	s := utxodb.NewMemStore()
	uo := unblinded(t, 1000)
	_ = s.AddUnspent(uo)
	change := unblinded(t, 400)
	const txID = txo.TxId(1)
	_ = s.EncumberOutputs(txID, []*crypto.Commitment{uo.Commitment()}, []txo.UnblindedOutput{change})

	if err := s.ConfirmEncumberedOutputs(txID); err != nil {
		t.Fatalf("ConfirmEncumberedOutputs: %v", err)
	}
	if p := poolOf(t, s, change.Commitment()); p != pool.EncumberedToBeReceived {
		t.Fatalf("change pool after confirm = %v, want EncumberedToBeReceived", p)
	}
}

func TestIdempotentCoinbase(t *testing.T) {
	s := utxodb.NewMemStore()
	first := unblinded(t, 5000)
	h := int64(42)
	if err := s.AddOutputToBeReceived(10, first, &h); err != nil {
		t.Fatalf("first coinbase: %v", err)
	}
	second := unblinded(t, 5000)
	if err := s.AddOutputToBeReceived(11, second, &h); err != nil {
		t.Fatalf("second coinbase: %v", err)
	}

	if _, err := s.LookupByCommitment(first.Commitment()); err == nil {
		t.Fatalf("first coinbase output should have been cleared")
	}
	if p := poolOf(t, s, second.Commitment()); p != pool.PendingCoinbase {
		t.Fatalf("second coinbase pool = %v, want PendingCoinbase", p)
	}
}

func TestDuplicateOutputRejected(t *testing.T) {
	s := utxodb.NewMemStore()
	uo := unblinded(t, 1000)
	if err := s.AddUnspent(uo); err != nil {
		t.Fatalf("AddUnspent: %v", err)
	}
	if err := s.AddUnspent(uo); err == nil || !utxodb.ErrDuplicateOutput.Is(err) {
		t.Fatalf("expected ErrDuplicateOutput, got %v", err)
	}
}

func TestApplyEncryptionReKeysAndRemoveEncryptionRestores(t *testing.T) {
	s := utxodb.NewMemStore()
	uo := unblinded(t, 1000)
	if err := s.AddUnspent(uo); err != nil {
		t.Fatalf("AddUnspent: %v", err)
	}
	spendD := new(big.Int).Set(uo.SpendingKey.D)

	if err := s.ApplyEncryption([]byte("correct passphrase")); err != nil {
		t.Fatalf("ApplyEncryption: %v", err)
	}

	sealed, err := s.LookupByCommitment(uo.Commitment())
	if err != nil {
		t.Fatalf("LookupByCommitment: %v", err)
	}
	if sealed.SpendingKey != nil {
		t.Fatalf("expected the plaintext spending key to be cleared while encrypted")
	}

	if err := s.RemoveEncryption([]byte("wrong passphrase")); err == nil || !utxodb.ErrIncorrectPassword.Is(err) {
		t.Fatalf("expected ErrIncorrectPassword for a wrong passphrase, got %v", err)
	}
	// A failed RemoveEncryption must not have torn down the sealed state.
	if sealed, err := s.LookupByCommitment(uo.Commitment()); err != nil || sealed.SpendingKey != nil {
		t.Fatalf("store should remain encrypted after a failed unlock, got key=%v err=%v", sealed.SpendingKey, err)
	}

	if err := s.RemoveEncryption([]byte("correct passphrase")); err != nil {
		t.Fatalf("RemoveEncryption: %v", err)
	}
	restored, err := s.LookupByCommitment(uo.Commitment())
	if err != nil {
		t.Fatalf("LookupByCommitment: %v", err)
	}
	if restored.SpendingKey == nil || restored.SpendingKey.D.Cmp(spendD) != 0 {
		t.Fatalf("expected the original spending key to be restored")
	}
}

func TestNextIndexNeverRepeats(t *testing.T) {
	s := utxodb.NewMemStore()
	seen := make(map[uint32]bool)
	for i := 0; i < 100; i++ {
		idx, err := s.NextIndex(0)
		if err != nil {
			t.Fatalf("NextIndex: %v", err)
		}
		if seen[idx] {
			t.Fatalf("index %d returned twice", idx)
		}
		seen[idx] = true
	}
}
