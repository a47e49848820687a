// Package outputmanager implements the output manager service (OMS): a
// single-consumer request queue drives a dispatch loop that serializes
// every mutating operation against the master key manager's index
// counters and every read-modify-write sequence on a given TxId. It
// generalizes the wallet's txCreator/walletLocker pattern — one dedicated
// goroutine, a channel of requests, reply delivered on a per-call channel
// — into one reusable envelope, since the service enumerates two dozen
// operations rather than the handful a plain wallet exposes.
package outputmanager

import (
	"context"
	"sync"

	"github.com/pkt-cash/pktd/btcec"
	"github.com/pkt-cash/pktd/btcutil/er"

	"github.com/pkt-cash/mwcore/basenode"
	"github.com/pkt-cash/mwcore/coinselect"
	"github.com/pkt-cash/mwcore/crypto"
	"github.com/pkt-cash/mwcore/events"
	"github.com/pkt-cash/mwcore/keymanager"
	"github.com/pkt-cash/mwcore/scanner"
	"github.com/pkt-cash/mwcore/txbuilder"
	"github.com/pkt-cash/mwcore/txo"
	"github.com/pkt-cash/mwcore/utxodb"
	"github.com/pkt-cash/mwcore/validation"
	"github.com/pkt-cash/mwcore/walletlog"
)

// Err identifies the output manager's error category.
var Err er.ErrorType = er.NewErrorType("outputmanager.Err")

// ErrShutdown is returned to any caller whose request was still queued
// (or still in flight) when the service was asked to stop.
var ErrShutdown = Err.Code("ErrShutdown")

// Manager is the output manager service. Every exported operation except
// FeeEstimate and ValidateUtxos enqueues a closure onto the dispatch loop
// and blocks on a private reply channel; FeeEstimate is pure arithmetic,
// and ValidateUtxos starts a detached validation run on its own goroutine.
// The queued operations never touch Store, the key manager or the
// base-node client directly, so every one of the ordering guarantees in §5 (encumber
// strictly before confirm, no cross-TxId ordering) falls out of "one
// goroutine processes requests to completion, one at a time" rather than
// needing its own locking.
type Manager struct {
	store     utxodb.Store
	mkm       *keymanager.Manager
	node      basenode.Client
	events    *events.Broadcaster
	validator *validation.Runner

	tipEvents <-chan int64
	requests  chan func(*Manager)
	quit      chan struct{}
	wg        sync.WaitGroup

	lastSeenTipHeight *int64
}

// New performs OMS startup: clears any short-term encumberances left over
// from an unclean shutdown and wires the service to its dependencies. It
// does not start the dispatch loop; call Start for that.
func New(
	store utxodb.Store,
	mkm *keymanager.Manager,
	node basenode.Client,
	ev *events.Broadcaster,
	tipEvents <-chan int64,
) (*Manager, er.R) {
	if err := store.ClearShortTermEncumberances(); err != nil {
		return nil, err
	}
	m := &Manager{
		store:     store,
		mkm:       mkm,
		node:      node,
		events:    ev,
		validator: &validation.Runner{Store: store, Node: node, Events: ev},
		tipEvents: tipEvents,
		requests:  make(chan func(*Manager)),
		quit:      make(chan struct{}),
	}
	return m, nil
}

// Start launches the dispatch loop goroutine.
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.dispatchLoop()
}

// Stop signals the dispatch loop to unwind and waits for it to exit.
// Requests already queued but not yet processed receive ErrShutdown
// rather than being silently dropped.
func (m *Manager) Stop() {
	close(m.quit)
	m.wg.Wait()
}

func (m *Manager) dispatchLoop() {
	defer m.wg.Done()
	for {
		select {
		case req := <-m.requests:
			req(m)
		case height, ok := <-m.tipEvents:
			if !ok {
				m.tipEvents = nil
				continue
			}
			m.onTipHeight(height)
		case <-m.quit:
			return
		}
	}
}

// onTipHeight schedules a validation run unless height repeats the last
// one seen, per §4.5's last_seen_tip_height dedup.
func (m *Manager) onTipHeight(height int64) {
	if m.lastSeenTipHeight != nil && *m.lastSeenTipHeight == height {
		return
	}
	h := height
	m.lastSeenTipHeight = &h
	walletlog.Log.Debugf("output manager: tip height %d, scheduling validation", height)
	m.validator.RunAsync(context.Background())
}

// response is the single concrete reply shape every request uses; value
// is type-asserted back to its concrete type at the call site.
type response struct {
	value interface{}
	err   er.R
}

// do enqueues fn onto the dispatch loop and blocks for its result. It is
// the only thing every exported method has in common: the
// single-consumer request queue from §4.5.
func (m *Manager) do(fn func(*Manager) (interface{}, er.R)) (interface{}, er.R) {
	resp := make(chan response, 1)
	select {
	case m.requests <- func(mgr *Manager) {
		v, err := fn(mgr)
		resp <- response{v, err}
	}:
	case <-m.quit:
		return nil, ErrShutdown.Default()
	}
	select {
	case r := <-resp:
		return r.value, r.err
	case <-m.quit:
		return nil, ErrShutdown.Default()
	}
}

// AddOutput persists uo directly as Unspent (used for outputs already
// known-confirmed by the caller, e.g. imported from another wallet).
func (m *Manager) AddOutput(uo txo.UnblindedOutput) er.R {
	_, err := m.do(func(mgr *Manager) (interface{}, er.R) {
		return nil, mgr.store.AddUnspent(uo)
	})
	return err
}

// UpdateOutputMetadataSignature rewrites uo's persisted metadata
// signature, used once a partial signature is finalized out of band.
func (m *Manager) UpdateOutputMetadataSignature(uo *txo.UnblindedOutput) er.R {
	_, err := m.do(func(mgr *Manager) (interface{}, er.R) {
		return nil, mgr.store.UpdateOutputMetadataSignature(uo)
	})
	return err
}

// GetBalance computes the current derived balance.
func (m *Manager) GetBalance(tipHeight *int64) (utxodb.Balance, er.R) {
	v, err := m.do(func(mgr *Manager) (interface{}, er.R) {
		return mgr.store.GetBalance(tipHeight)
	})
	if err != nil {
		return utxodb.Balance{}, err
	}
	return v.(utxodb.Balance), nil
}

// GetRecipientTransaction implements the ReceiveRecipientTransaction flow
// of §4.5: validates the sender's script, derives the receiver's half of
// the protocol, persists it as EncumberedToBeReceived and returns the
// receiver protocol object for the caller to ship back to the sender.
func (m *Manager) GetRecipientTransaction(
	id txo.TxId,
	amount uint64,
	senderScript txo.Script,
	senderOffsetPubKey *btcec.PublicKey,
	senderPublicNonce *btcec.PublicKey,
) (*txbuilder.ReceiverState, er.R) {
	v, err := m.do(func(mgr *Manager) (interface{}, er.R) {
		receiver, err := txbuilder.ReceiveRecipientTransaction(id, amount, senderScript, senderOffsetPubKey, senderPublicNonce, mgr.mkm)
		if err != nil {
			return nil, err
		}
		if err := mgr.store.AddOutputToBeReceived(id, *receiver.Output, nil); err != nil {
			return nil, err
		}
		return receiver, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*txbuilder.ReceiverState), nil
}

// GetCoinbaseTransaction builds and persists a coinbase transaction for
// height. Requesting the same height twice under a different TxId leaves
// exactly one pending-coinbase record (the invariant §8 calls "idempotent
// coinbase"): AddOutputToBeReceived clears any prior pending coinbase at
// the same height before inserting the new one.
func (m *Manager) GetCoinbaseTransaction(id txo.TxId, height int64, reward, fees uint64) (*txo.Transaction, er.R) {
	v, err := m.do(func(mgr *Manager) (interface{}, er.R) {
		tx, uo, err := txbuilder.CreateCoinbaseTransaction(height, reward, fees, mgr.mkm)
		if err != nil {
			return nil, err
		}
		if err := mgr.store.AddOutputToBeReceived(id, *uo, &height); err != nil {
			return nil, err
		}
		return tx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*txo.Transaction), nil
}

// PrepareToSendTransaction runs coin selection, builds the sender's half
// of construction mode (a), and atomically encumbers the selected inputs
// and any change output under id.
func (m *Manager) PrepareToSendTransaction(
	id txo.TxId,
	amount, feePerGram uint64,
	lockHeight int64,
	recipientScript txo.Script,
	message string,
	strategy *coinselect.Strategy,
) (*txbuilder.SenderState, er.R) {
	v, err := m.do(func(mgr *Manager) (interface{}, er.R) {
		selection, err := mgr.selectCoins(amount, feePerGram, 1, strategy)
		if err != nil {
			return nil, err
		}
		sender, err := txbuilder.PrepareToSendTransaction(id, amount, feePerGram, lockHeight, recipientScript, message, selection, mgr.mkm)
		if err != nil {
			return nil, err
		}
		var changeOutputs []txo.UnblindedOutput
		if sender.ChangeOutput != nil {
			changeOutputs = []txo.UnblindedOutput{*sender.ChangeOutput}
		}
		if err := mgr.store.EncumberOutputs(id, commitmentsOf(selection.Inputs), changeOutputs); err != nil {
			return nil, err
		}
		return sender, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*txbuilder.SenderState), nil
}

// CreatePayToSelfTransaction builds and finalizes construction mode (b) in
// one step: every output belongs to this wallet, so there is no
// counterparty round trip to wait for.
func (m *Manager) CreatePayToSelfTransaction(
	id txo.TxId,
	amount, feePerGram uint64,
	lockHeight int64,
	strategy *coinselect.Strategy,
) (*txo.Transaction, er.R) {
	v, err := m.do(func(mgr *Manager) (interface{}, er.R) {
		selection, err := mgr.selectCoins(amount, feePerGram, 1, strategy)
		if err != nil {
			return nil, err
		}
		return mgr.finalizeSelfPayment(id, selection, []uint64{amount}, feePerGram, lockHeight)
	})
	if err != nil {
		return nil, err
	}
	return v.(*txo.Transaction), nil
}

// CreateCoinSplit implements §4.5's coin split: select with Largest,
// build splitCount equal outputs plus optional change, finalize
// in-process.
func (m *Manager) CreateCoinSplit(
	id txo.TxId,
	amountPerSplit uint64,
	splitCount int,
	feePerGram uint64,
	lockHeight int64,
) (*txo.Transaction, er.R) {
	v, err := m.do(func(mgr *Manager) (interface{}, er.R) {
		largest := coinselect.Largest
		total := amountPerSplit * uint64(splitCount)
		selection, err := mgr.selectCoins(total, feePerGram, splitCount, &largest)
		if err != nil {
			return nil, err
		}
		values := make([]uint64, splitCount)
		for i := range values {
			values[i] = amountPerSplit
		}
		return mgr.finalizeSelfPayment(id, selection, values, feePerGram, lockHeight)
	})
	if err != nil {
		return nil, err
	}
	return v.(*txo.Transaction), nil
}

// finalizeSelfPayment is the shared tail of CreatePayToSelfTransaction and
// CreateCoinSplit: build the transaction, encumber the inputs and new
// outputs together (they all share the same confirm-before-spendable
// fate), then immediately confirm since there is no counterparty to wait
// on — construction mode (b)'s "immediate finalization".
func (m *Manager) finalizeSelfPayment(
	id txo.TxId,
	selection *coinselect.Result,
	values []uint64,
	feePerGram uint64,
	lockHeight int64,
) (*txo.Transaction, er.R) {
	tx, outs, err := txbuilder.CreatePayToSelfTransaction(selection, values, feePerGram, lockHeight, m.mkm)
	if err != nil {
		return nil, err
	}
	unblinded := make([]txo.UnblindedOutput, len(outs))
	for i, o := range outs {
		unblinded[i] = *o
	}
	if err := m.store.EncumberOutputs(id, commitmentsOf(selection.Inputs), unblinded); err != nil {
		return nil, err
	}
	if err := m.store.ConfirmEncumberedOutputs(id); err != nil {
		return nil, err
	}
	return tx, nil
}

// selectCoins runs the coin selector against the currently tracked chain
// tip (nil until the first tip event arrives), so maturity filtering and
// the tip-aware strategy default in §4.3 step 2 behave the same way here
// as they would for a caller that knows the tip directly.
func (m *Manager) selectCoins(amount, feePerGram uint64, outputCount int, strategy *coinselect.Strategy) (*coinselect.Result, er.R) {
	candidates, err := m.store.FetchSortedUnspentOutputs()
	if err != nil {
		return nil, err
	}
	balance, err := m.store.GetBalance(nil)
	if err != nil {
		return nil, err
	}
	return coinselect.Select(candidates, amount, feePerGram, outputCount, strategy, m.lastSeenTipHeight, uint64(balance.PendingIncoming))
}

func commitmentsOf(outputs []*txo.DatabaseOutput) []*crypto.Commitment {
	out := make([]*crypto.Commitment, len(outputs))
	for i, d := range outputs {
		out[i] = d.Commitment()
	}
	return out
}

// FeeEstimate returns the wallet's fee for a transaction of the given
// shape, without touching the database or selecting any inputs.
func (m *Manager) FeeEstimate(feePerGram uint64, numInputs, numOutputs int) uint64 {
	return coinselect.CalculateWithMinimum(feePerGram, numInputs, numOutputs)
}

// ConfirmPendingTransaction promotes id's ShortTermEncumbered outputs to
// EncumberedToBeReceived, per the ordering guarantee in §5.
func (m *Manager) ConfirmPendingTransaction(id txo.TxId) er.R {
	_, err := m.do(func(mgr *Manager) (interface{}, er.R) {
		return nil, mgr.store.ConfirmEncumberedOutputs(id)
	})
	return err
}

// CancelTransaction returns id's inputs to Unspent and clears its pending
// outputs.
func (m *Manager) CancelTransaction(id txo.TxId) er.R {
	_, err := m.do(func(mgr *Manager) (interface{}, er.R) {
		return nil, mgr.store.CancelPendingTransactionOutputs(id)
	})
	return err
}

// GetSpentOutputs returns every output currently in the Spent pool.
func (m *Manager) GetSpentOutputs() ([]*txo.DatabaseOutput, er.R) {
	v, err := m.do(func(mgr *Manager) (interface{}, er.R) { return mgr.store.FetchSpentOutputs() })
	if err != nil {
		return nil, err
	}
	return v.([]*txo.DatabaseOutput), nil
}

// GetUnspentOutputs returns every output currently in the Unspent pool,
// sorted by value.
func (m *Manager) GetUnspentOutputs() ([]*txo.DatabaseOutput, er.R) {
	v, err := m.do(func(mgr *Manager) (interface{}, er.R) { return mgr.store.FetchSortedUnspentOutputs() })
	if err != nil {
		return nil, err
	}
	return v.([]*txo.DatabaseOutput), nil
}

// GetInvalidOutputs returns every output currently in the Invalid pool.
func (m *Manager) GetInvalidOutputs() ([]*txo.DatabaseOutput, er.R) {
	v, err := m.do(func(mgr *Manager) (interface{}, er.R) { return mgr.store.GetInvalidOutputs() })
	if err != nil {
		return nil, err
	}
	return v.([]*txo.DatabaseOutput), nil
}

// GetSeedWords serializes the master secret to a mnemonic in language.
func (m *Manager) GetSeedWords(language string) (string, er.R) {
	v, err := m.do(func(mgr *Manager) (interface{}, er.R) { return mgr.mkm.GetSeedWords(language) })
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// ValidateUtxos schedules a detached validation run; its outcome is
// reported asynchronously on the event broadcaster, not on this call.
func (m *Manager) ValidateUtxos() {
	m.validator.RunAsync(context.Background())
}

// ApplyEncryption re-keys persisted secret material under passphrase.
func (m *Manager) ApplyEncryption(passphrase []byte) er.R {
	_, err := m.do(func(mgr *Manager) (interface{}, er.R) {
		return nil, mgr.store.ApplyEncryption(passphrase)
	})
	return err
}

// RemoveEncryption reverts persisted secret material to plaintext.
func (m *Manager) RemoveEncryption(passphrase []byte) er.R {
	_, err := m.do(func(mgr *Manager) (interface{}, er.R) {
		return nil, mgr.store.RemoveEncryption(passphrase)
	})
	return err
}

// GetPublicRewindKeys exposes the wallet's rewind public key, for handing
// to a counterparty constructing a one-sided payment to this wallet.
func (m *Manager) GetPublicRewindKeys() (*btcec.PublicKey, er.R) {
	v, err := m.do(func(mgr *Manager) (interface{}, er.R) { return mgr.mkm.GetRewindPublicKeys() })
	if err != nil {
		return nil, err
	}
	return v.(*btcec.PublicKey), nil
}

// ScanForRecoverableOutputs scans observed against this wallet's
// persisted known-one-sided-payment-script table and persists every
// recovery.
func (m *Manager) ScanForRecoverableOutputs(observed []*txo.TransactionOutput) ([]*txo.UnblindedOutput, er.R) {
	v, err := m.do(func(mgr *Manager) (interface{}, er.R) {
		known, err := mgr.store.ListKnownOneSidedPaymentScripts()
		if err != nil {
			return nil, err
		}
		return scanner.Scan(observed, known, mgr.store)
	})
	if err != nil {
		return nil, err
	}
	return v.([]*txo.UnblindedOutput), nil
}

// ScanOutputs is ScanForRecoverableOutputs with a caller-supplied script
// list instead of the persisted table — used to probe a candidate script
// before committing it with AddKnownOneSidedPaymentScript.
func (m *Manager) ScanOutputs(observed []*txo.TransactionOutput, knownScripts []txo.KnownOneSidedPaymentScript) ([]*txo.UnblindedOutput, er.R) {
	v, err := m.do(func(mgr *Manager) (interface{}, er.R) {
		return scanner.Scan(observed, knownScripts, mgr.store)
	})
	if err != nil {
		return nil, err
	}
	return v.([]*txo.UnblindedOutput), nil
}

// AddKnownOneSidedPaymentScript registers a script this wallet should
// watch for in future scans.
func (m *Manager) AddKnownOneSidedPaymentScript(s txo.KnownOneSidedPaymentScript) er.R {
	_, err := m.do(func(mgr *Manager) (interface{}, er.R) {
		return nil, mgr.store.AddKnownOneSidedPaymentScript(s)
	})
	return err
}

// ReinstateCancelledInboundTx moves id's cancelled inbound outputs back to
// EncumberedToBeReceived.
func (m *Manager) ReinstateCancelledInboundTx(id txo.TxId) er.R {
	_, err := m.do(func(mgr *Manager) (interface{}, er.R) {
		return nil, mgr.store.ReinstateCancelledInboundOutput(id)
	})
	return err
}

// SetCoinbaseAbandoned marks id's pending coinbase as abandoned (or
// un-abandons it).
func (m *Manager) SetCoinbaseAbandoned(id txo.TxId, abandoned bool) er.R {
	_, err := m.do(func(mgr *Manager) (interface{}, er.R) {
		return nil, mgr.store.SetCoinbaseAbandoned(id, abandoned)
	})
	return err
}
