package txbuilder_test

import (
	"testing"

	"github.com/pkt-cash/pktd/chaincfg"

	"github.com/pkt-cash/mwcore/coinselect"
	"github.com/pkt-cash/mwcore/crypto"
	"github.com/pkt-cash/mwcore/keymanager"
	"github.com/pkt-cash/mwcore/txbuilder"
	"github.com/pkt-cash/mwcore/txo"
	"github.com/pkt-cash/mwcore/utxodb"
)

func newManager(t *testing.T) *keymanager.Manager {
	t.Helper()
	store := utxodb.NewMemStore()
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	mkm, err := keymanager.NewFromSeed(seed, &chaincfg.MainNetParams, store)
	if err != nil {
		t.Fatalf("NewFromSeed: %v", err)
	}
	return mkm
}

func TestSenderReceiverRoundTrip(t *testing.T) {
	senderMkm := newManager(t)
	receiverMkm := newManager(t)

	inputKey, err := crypto.RandomScalar()
	if err != nil {
		t.Fatalf("RandomScalar: %v", err)
	}
	input := &txo.DatabaseOutput{UnblindedOutput: txo.UnblindedOutput{Value: 1000, SpendingKey: inputKey}}
	selection := &coinselect.Result{Inputs: []*txo.DatabaseOutput{input}, Total: 1000, ChangeValue: 200}

	sender, err := txbuilder.PrepareToSendTransaction(1, 400, 5, 0, txo.Nop, "payment", selection, senderMkm)
	if err != nil {
		t.Fatalf("PrepareToSendTransaction: %v", err)
	}
	if sender.ChangeOutput == nil || sender.ChangeOutput.Value != 200 {
		t.Fatalf("expected a 200-value change output, got %+v", sender.ChangeOutput)
	}

	receiver, err := txbuilder.ReceiveRecipientTransaction(1, 400, txo.Nop, sender.Offset.PubKey(), sender.PublicNonce, receiverMkm)
	if err != nil {
		t.Fatalf("ReceiveRecipientTransaction: %v", err)
	}

	tx, err := txbuilder.FinalizeSent(sender, receiver)
	if err != nil {
		t.Fatalf("FinalizeSent: %v", err)
	}
	if len(tx.Outputs) != 2 {
		t.Fatalf("expected payment + change outputs, got %d", len(tx.Outputs))
	}
	if len(tx.Kernels) != 1 {
		t.Fatalf("expected exactly one kernel, got %d", len(tx.Kernels))
	}
	if tx.ExcessSignature() == nil {
		t.Fatalf("expected the first kernel's excess signature to be set")
	}
}

func TestReceiveRejectsForeignScript(t *testing.T) {
	mkm := newManager(t)
	foreign := txo.Script{0xFF}
	if _, err := txbuilder.ReceiveRecipientTransaction(1, 100, foreign, nil, nil, mkm); err == nil || !txbuilder.ErrInvalidScriptHash.Is(err) {
		t.Fatalf("expected ErrInvalidScriptHash, got %v", err)
	}
}

func TestCreateCoinbaseTransactionIsDeterministicInHeight(t *testing.T) {
	mkm := newManager(t)
	_, uo1, err := txbuilder.CreateCoinbaseTransaction(42, 5000, 0, mkm)
	if err != nil {
		t.Fatalf("CreateCoinbaseTransaction: %v", err)
	}
	_, uo2, err := txbuilder.CreateCoinbaseTransaction(42, 5000, 0, mkm)
	if err != nil {
		t.Fatalf("CreateCoinbaseTransaction: %v", err)
	}
	if uo1.SpendingKey.D.Cmp(uo2.SpendingKey.D) != 0 {
		t.Fatalf("coinbase spend key must be a deterministic function of height")
	}
	if !uo1.Features.IsCoinbase() {
		t.Fatalf("expected coinbase output features to be set")
	}
}

func TestCreatePayToSelfCoinSplit(t *testing.T) {
	mkm := newManager(t)
	inputKey, err := crypto.RandomScalar()
	if err != nil {
		t.Fatalf("RandomScalar: %v", err)
	}
	input := &txo.DatabaseOutput{UnblindedOutput: txo.UnblindedOutput{Value: 10000, SpendingKey: inputKey}}
	selection := &coinselect.Result{Inputs: []*txo.DatabaseOutput{input}, Total: 10000, ChangeValue: 4907}

	values := []uint64{1000, 1000, 1000, 1000, 1000}
	tx, outs, err := txbuilder.CreatePayToSelfTransaction(selection, values, 1, 0, mkm)
	if err != nil {
		t.Fatalf("CreatePayToSelfTransaction: %v", err)
	}
	if len(outs) != 6 {
		t.Fatalf("expected 5 split outputs + change, got %d", len(outs))
	}
	if len(tx.Outputs) != 6 || len(tx.Kernels) != 1 {
		t.Fatalf("unexpected transaction shape: %d outputs, %d kernels", len(tx.Outputs), len(tx.Kernels))
	}
}
