package outputmanager_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkt-cash/pktd/btcutil/er"
	"github.com/pkt-cash/pktd/chaincfg"
	"github.com/pkt-cash/pktd/chaincfg/chainhash"

	"github.com/pkt-cash/mwcore/basenode"
	"github.com/pkt-cash/mwcore/coinselect"
	"github.com/pkt-cash/mwcore/crypto"
	"github.com/pkt-cash/mwcore/events"
	"github.com/pkt-cash/mwcore/keymanager"
	"github.com/pkt-cash/mwcore/outputmanager"
	"github.com/pkt-cash/mwcore/txo"
	"github.com/pkt-cash/mwcore/utxodb"
)

// stubNode is a minimal basenode.Client: only the methods the validation
// task touches are implemented, since that's all ValidateUtxos exercises
// here; every other method panics if called.
type stubNode struct{}

func (stubNode) SubmitTransaction(context.Context, *txo.Transaction) (*basenode.SubmissionResponse, er.R) {
	panic("unused")
}
func (stubNode) TransactionQuery(context.Context, *crypto.MetadataSignature) (*basenode.TransactionQueryResponse, er.R) {
	panic("unused")
}
func (stubNode) TransactionBatchQuery(context.Context, []*crypto.MetadataSignature) (*basenode.BatchQueryResponse, er.R) {
	panic("unused")
}
func (stubNode) FetchMatchingUtxos(context.Context, []chainhash.Hash) ([]*txo.TransactionOutput, bool, er.R) {
	panic("unused")
}
func (stubNode) UtxoQuery(context.Context, []chainhash.Hash) (*basenode.UtxoQueryResponse, er.R) {
	return &basenode.UtxoQueryResponse{}, nil
}
func (stubNode) QueryDeleted(context.Context, basenode.DeletedQueryRequest) (*basenode.DeletedQueryResponse, er.R) {
	return &basenode.DeletedQueryResponse{}, nil
}
func (stubNode) GetTipInfo(context.Context) (*basenode.TipInfoResponse, er.R) {
	return &basenode.TipInfoResponse{IsSynced: true, Metadata: basenode.ChainMetadata{Height: 100}}, nil
}
func (stubNode) GetHeader(context.Context, int64) (*basenode.BlockHeader, er.R) { panic("unused") }
func (stubNode) GetHeaderByHeight(context.Context, int64) (*basenode.BlockHeader, er.R) {
	panic("unused")
}

func newTestManager(t *testing.T, b *events.Broadcaster) (*outputmanager.Manager, utxodb.Store) {
	t.Helper()
	store := utxodb.NewMemStore()
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i + 7)
	}
	mkm, err := keymanager.NewFromSeed(seed, &chaincfg.MainNetParams, store)
	if err != nil {
		t.Fatalf("NewFromSeed: %v", err)
	}
	if b == nil {
		b = events.NewBroadcaster()
	}
	m, err := outputmanager.New(store, mkm, stubNode{}, b, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.Start()
	t.Cleanup(m.Stop)
	return m, store
}

func unblinded(t *testing.T, value uint64) txo.UnblindedOutput {
	t.Helper()
	sk, err := crypto.RandomScalar()
	if err != nil {
		t.Fatalf("RandomScalar: %v", err)
	}
	return txo.UnblindedOutput{Value: value, SpendingKey: sk, Script: txo.Nop}
}

func TestPrepareToSendTransactionEncumbersInputsAndChange(t *testing.T) {
	m, store := newTestManager(t, nil)
	if err := store.AddUnspent(unblinded(t, 1000)); err != nil {
		t.Fatalf("AddUnspent: %v", err)
	}

	sender, err := m.PrepareToSendTransaction(1, 400, 5, 0, txo.Nop, "payment", nil)
	if err != nil {
		t.Fatalf("PrepareToSendTransaction: %v", err)
	}
	if sender.ChangeOutput == nil {
		t.Fatalf("expected a change output")
	}

	balance, err := m.GetBalance(nil)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance.Available != 0 {
		t.Fatalf("expected no Available balance once the only input is encumbered, got %v", balance.Available)
	}
}

func TestCreateCoinSplitProducesExpectedOutputs(t *testing.T) {
	m, store := newTestManager(t, nil)
	if err := store.AddUnspent(unblinded(t, 10000)); err != nil {
		t.Fatalf("AddUnspent: %v", err)
	}

	tx, err := m.CreateCoinSplit(1, 1000, 5, 1, 0)
	if err != nil {
		t.Fatalf("CreateCoinSplit: %v", err)
	}
	if len(tx.Outputs) != 6 {
		t.Fatalf("expected 5 split outputs + change, got %d", len(tx.Outputs))
	}
	wantFee := coinselect.Fee(1, len(tx.Inputs), len(tx.Outputs))
	if tx.Kernels[0].Fee != wantFee {
		t.Fatalf("kernel fee %d does not match coinselect.Fee(1, %d, %d) = %d", tx.Kernels[0].Fee, len(tx.Inputs), len(tx.Outputs), wantFee)
	}
	var outTotal uint64
	for _, o := range tx.Outputs {
		outTotal += o.Value
	}
	if outTotal+tx.Kernels[0].Fee != 10000 {
		t.Fatalf("value conservation broken: outputs %d + fee %d != input 10000", outTotal, tx.Kernels[0].Fee)
	}
	change := tx.Outputs[len(tx.Outputs)-1].Value
	if change != 10000-5*1000-wantFee {
		t.Fatalf("expected change %d, got %d", 10000-5*1000-wantFee, change)
	}
}

func TestCoinbaseSecondRequestAtSameHeightSucceeds(t *testing.T) {
	m, _ := newTestManager(t, nil)
	if _, err := m.GetCoinbaseTransaction(10, 42, 5000, 0); err != nil {
		t.Fatalf("GetCoinbaseTransaction(10): %v", err)
	}
	if _, err := m.GetCoinbaseTransaction(11, 42, 5000, 0); err != nil {
		t.Fatalf("GetCoinbaseTransaction(11): %v", err)
	}
}

type captureSink struct {
	events.EmptySink
	done chan struct{}
	code events.Code
}

func (c *captureSink) TxoValidationComplete(_ events.RequestKey, code events.Code) {
	c.code = code
	close(c.done)
}

func TestValidateUtxosEmitsTerminalEvent(t *testing.T) {
	b := events.NewBroadcaster()
	sink := &captureSink{done: make(chan struct{})}
	b.Subscribe(sink)
	m, _ := newTestManager(t, b)

	m.ValidateUtxos()
	select {
	case <-sink.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for validation to complete")
	}
	if sink.code != events.CodeSuccess {
		t.Fatalf("expected CodeSuccess, got %v", sink.code)
	}
}
