package validation_test

import (
	"context"
	"testing"

	"github.com/pkt-cash/pktd/btcutil/er"
	"github.com/pkt-cash/pktd/chaincfg/chainhash"

	"github.com/pkt-cash/mwcore/basenode"
	"github.com/pkt-cash/mwcore/crypto"
	"github.com/pkt-cash/mwcore/events"
	"github.com/pkt-cash/mwcore/txo"
	"github.com/pkt-cash/mwcore/utxodb"
	"github.com/pkt-cash/mwcore/validation"
)

// stubNode is a hand-wired basenode.Client test double: every method
// panics unless overridden by the test, so a test that calls an
// unexpected method fails loudly instead of silently returning a zero
// value.
type stubNode struct {
	tip        *basenode.TipInfoResponse
	tipErr     er.R
	utxoResp   *basenode.UtxoQueryResponse
	deletedSet map[uint64]bool
}

func (s *stubNode) SubmitTransaction(context.Context, *txo.Transaction) (*basenode.SubmissionResponse, er.R) {
	panic("not used in this test")
}
func (s *stubNode) TransactionQuery(context.Context, *crypto.MetadataSignature) (*basenode.TransactionQueryResponse, er.R) {
	panic("not used in this test")
}
func (s *stubNode) TransactionBatchQuery(context.Context, []*crypto.MetadataSignature) (*basenode.BatchQueryResponse, er.R) {
	panic("not used in this test")
}
func (s *stubNode) FetchMatchingUtxos(context.Context, []chainhash.Hash) ([]*txo.TransactionOutput, bool, er.R) {
	panic("not used in this test")
}
func (s *stubNode) UtxoQuery(context.Context, []chainhash.Hash) (*basenode.UtxoQueryResponse, er.R) {
	return s.utxoResp, nil
}
func (s *stubNode) QueryDeleted(_ context.Context, req basenode.DeletedQueryRequest) (*basenode.DeletedQueryResponse, er.R) {
	resp := &basenode.DeletedQueryResponse{}
	for _, pos := range req.MmrPositions {
		if s.deletedSet[pos] {
			resp.DeletedPositions = append(resp.DeletedPositions, pos)
		} else {
			resp.NotDeletedPositions = append(resp.NotDeletedPositions, pos)
		}
	}
	return resp, nil
}
func (s *stubNode) GetTipInfo(context.Context) (*basenode.TipInfoResponse, er.R) {
	return s.tip, s.tipErr
}
func (s *stubNode) GetHeader(context.Context, int64) (*basenode.BlockHeader, er.R) {
	panic("not used in this test")
}
func (s *stubNode) GetHeaderByHeight(context.Context, int64) (*basenode.BlockHeader, er.R) {
	panic("not used in this test")
}

func unblinded(t *testing.T, value uint64) txo.UnblindedOutput {
	t.Helper()
	sk, err := crypto.RandomScalar()
	if err != nil {
		t.Fatalf("RandomScalar: %v", err)
	}
	return txo.UnblindedOutput{Value: value, SpendingKey: sk, Script: txo.Nop}
}

func TestRunReportsBaseNodeNotInSync(t *testing.T) {
	store := utxodb.NewMemStore()
	node := &stubNode{tip: &basenode.TipInfoResponse{IsSynced: false}}
	b := events.NewBroadcaster()
	var got []events.Code
	b.Subscribe(recorder(&got))

	r := &validation.Runner{Store: store, Node: node, Events: b}
	_, outcome, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome != events.OutcomeBaseNodeNotInSync {
		t.Fatalf("expected OutcomeBaseNodeNotInSync, got %v", outcome)
	}
	if len(got) != 1 || got[0] != events.CodeBaseNodeNotInSync {
		t.Fatalf("expected a single BaseNodeNotInSync event, got %v", got)
	}
}

func TestRunMovesDeletedOutputToSpent(t *testing.T) {
	store := utxodb.NewMemStore()
	uo := unblinded(t, 500)
	if err := store.AddUnspent(uo); err != nil {
		t.Fatalf("AddUnspent: %v", err)
	}
	h := uo.Hash()

	node := &stubNode{
		tip: &basenode.TipInfoResponse{IsSynced: true, Metadata: basenode.ChainMetadata{Height: 100}},
		utxoResp: &basenode.UtxoQueryResponse{
			Responses: []basenode.UtxoQueryEntry{{MmrPosition: 7, OutputHash: h}},
		},
		deletedSet: map[uint64]bool{7: true},
	}
	b := events.NewBroadcaster()
	var got []events.Code
	b.Subscribe(recorder(&got))

	r := &validation.Runner{Store: store, Node: node, Events: b}
	_, outcome, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome != events.OutcomeSuccess {
		t.Fatalf("expected OutcomeSuccess, got %v", outcome)
	}

	spent, err := store.FetchSpentOutputs()
	if err != nil {
		t.Fatalf("FetchSpentOutputs: %v", err)
	}
	if len(spent) != 1 {
		t.Fatalf("expected the deleted output to move to Spent, got %d spent outputs", len(spent))
	}
	if len(got) != 1 || got[0] != events.CodeSuccess {
		t.Fatalf("expected a single Success event, got %v", got)
	}
}

type recorderSink struct {
	events.EmptySink
	codes *[]events.Code
}

func recorder(codes *[]events.Code) *recorderSink {
	return &recorderSink{codes: codes}
}

func (r *recorderSink) TxoValidationComplete(_ events.RequestKey, code events.Code) {
	*r.codes = append(*r.codes, code)
}
