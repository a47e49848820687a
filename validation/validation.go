// Package validation implements the validation task (VT): given a
// snapshot of the chain tip, it reconciles the UTXO database's Unspent,
// EncumberedToBeSpent and EncumberedToBeReceived pools against what the
// base node actually reports, and emits exactly one terminal event per
// run.
package validation

import (
	"context"
	"crypto/rand"
	"encoding/binary"

	"github.com/pkt-cash/pktd/btcutil/er"
	"github.com/pkt-cash/pktd/chaincfg/chainhash"

	"github.com/pkt-cash/mwcore/basenode"
	"github.com/pkt-cash/mwcore/events"
	"github.com/pkt-cash/mwcore/pool"
	"github.com/pkt-cash/mwcore/txo"
	"github.com/pkt-cash/mwcore/utxodb"
	"github.com/pkt-cash/mwcore/walletlog"
)

// DefaultRetries is the bounded retry budget for base-node connectivity
// errors encountered mid-run, per §7.
const DefaultRetries = 2

// Runner drives one or more validation runs against a shared Store and
// base-node Client, reporting outcomes on Events.
type Runner struct {
	Store   utxodb.Store
	Node    basenode.Client
	Events  *events.Broadcaster
	Retries int
}

func (r *Runner) retries() int {
	if r.Retries > 0 {
		return r.Retries
	}
	return DefaultRetries
}

// batchPools is the fixed set of pools a validation run reconciles, per
// §4.6 step 2.
var batchPools = []pool.Pool{pool.Unspent, pool.EncumberedToBeSpent, pool.EncumberedToBeReceived}

// NewRequestKey draws a fresh random 64-bit validation run identifier.
func NewRequestKey() events.RequestKey {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return events.RequestKey(binary.BigEndian.Uint64(b[:]))
}

// Run executes one validation run synchronously and returns its terminal
// outcome, having already broadcast it on r.Events. Run never returns a Go
// error for an ordinary connectivity failure — that's represented as
// OutcomeFailure, the terminal outcome §4.6 specifies — only for a
// programming-level misuse (nil Store/Node) does it return one.
func (r *Runner) Run(ctx context.Context) (events.RequestKey, events.ValidationOutcome, er.R) {
	if r.Store == nil || r.Node == nil {
		return 0, 0, er.New("validation.Runner requires both Store and Node")
	}
	key := NewRequestKey()
	outcome := r.run(ctx)
	r.Events.TxoValidationComplete(key, outcome)
	return key, outcome, nil
}

// RunAsync spawns Run in its own goroutine, matching the "detached task"
// scheduling model of §5: validation runs obtain fresh handles and never
// block the output manager's dispatch loop.
func (r *Runner) RunAsync(ctx context.Context) {
	go func() {
		_, _, _ = r.Run(ctx)
	}()
}

func (r *Runner) run(ctx context.Context) events.ValidationOutcome {
	var tip *basenode.TipInfoResponse
	err := r.withRetries(func() (err er.R) {
		tip, err = r.Node.GetTipInfo(ctx)
		return err
	})
	if err != nil {
		walletlog.Log.Warnf("validation: fetching tip info: %v", err)
		return events.OutcomeFailure
	}
	if !tip.IsSynced {
		return events.OutcomeBaseNodeNotInSync
	}

	select {
	case <-ctx.Done():
		return events.OutcomeAborted
	default:
	}

	for _, p := range batchPools {
		outputs, err := r.Store.FetchOutputsInPool(p)
		if err != nil {
			walletlog.Log.Warnf("validation: fetching pool %s: %v", p, err)
			return events.OutcomeFailure
		}
		if len(outputs) == 0 {
			continue
		}
		if err := r.reconcileBatch(ctx, p, outputs, tip.Metadata.Height); err != nil {
			walletlog.Log.Warnf("validation: reconciling pool %s: %v", p, err)
			return events.OutcomeFailure
		}

		select {
		case <-ctx.Done():
			return events.OutcomeAborted
		default:
		}
	}

	return events.OutcomeSuccess
}

func (r *Runner) reconcileBatch(ctx context.Context, p pool.Pool, outputs []*txo.DatabaseOutput, tipHeight int64) er.R {
	hashes := make([]chainhash.Hash, len(outputs))
	byHash := make(map[chainhash.Hash]*txo.DatabaseOutput, len(outputs))
	for i, d := range outputs {
		h := d.Hash()
		hashes[i] = h
		byHash[h] = d
	}

	var utxoResp *basenode.UtxoQueryResponse
	if err := r.withRetries(func() (err er.R) {
		utxoResp, err = r.Node.UtxoQuery(ctx, hashes)
		return err
	}); err != nil {
		return err
	}

	present := make(map[chainhash.Hash]uint64, len(utxoResp.Responses))
	positions := make([]uint64, 0, len(utxoResp.Responses))
	for _, entry := range utxoResp.Responses {
		present[entry.OutputHash] = entry.MmrPosition
		positions = append(positions, entry.MmrPosition)
	}

	deleted := make(map[uint64]bool, len(positions))
	if len(positions) > 0 {
		if err := basenode.ValidatePositions(positions); err != nil {
			return err
		}
		var delResp *basenode.DeletedQueryResponse
		if err := r.withRetries(func() (err er.R) {
			delResp, err = r.Node.QueryDeleted(ctx, basenode.DeletedQueryRequest{MmrPositions: positions})
			return err
		}); err != nil {
			return err
		}
		for _, pos := range delResp.DeletedPositions {
			deleted[pos] = true
		}
	}

	for h, d := range byHash {
		mmrPos, isPresent := present[h]
		switch {
		case isPresent && deleted[mmrPos]:
			if err := r.Store.MoveOutput(d.Commitment(), pool.Spent); err != nil {
				return err
			}
		case isPresent:
			if p == pool.EncumberedToBeReceived {
				if err := r.Store.MoveOutput(d.Commitment(), pool.Unspent); err != nil {
					return err
				}
			}
		default:
			// Absent from the chain. Only treat this as invalidation once
			// the tip has advanced past the point this output should have
			// appeared by; an EncumberedToBeReceived output still inside
			// its expected confirmation window simply hasn't landed yet.
			if p != pool.EncumberedToBeReceived || tipHeight > d.Features.Maturity {
				if err := r.Store.MoveOutput(d.Commitment(), pool.Invalid); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// withRetries retries fn up to the runner's retry budget on a
// basenode.ErrNetwork failure; any other error, or a network error after
// the budget is exhausted, is returned immediately.
func (r *Runner) withRetries(fn func() er.R) er.R {
	var lastErr er.R
	for attempt := 0; attempt <= r.retries(); attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !basenode.ErrNetwork.Is(err) {
			return err
		}
	}
	return lastErr
}
