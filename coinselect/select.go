package coinselect

import (
	"bytes"
	"sort"

	"github.com/pkt-cash/pktd/btcutil/er"

	"github.com/pkt-cash/mwcore/txo"
)

// Err identifies the coin selector's error category.
var Err er.ErrorType = er.NewErrorType("coinselect.Err")

var (
	// ErrNotEnoughFunds is terminal: even counting everything currently
	// inbound, the wallet cannot satisfy the request.
	ErrNotEnoughFunds = Err.Code("ErrNotEnoughFunds")

	// ErrFundsPending is terminal for this attempt, but the caller may
	// retry once the pending incoming value confirms.
	ErrFundsPending = Err.Code("ErrFundsPending")
)

// Strategy selects the order candidate outputs are consumed in.
type Strategy int

const (
	// Smallest consumes outputs ascending by value, minimizing the
	// resulting UTXO set size at the cost of more fees.
	Smallest Strategy = iota

	// Largest consumes outputs descending by value; preferred when the
	// requested amount exceeds any single available output.
	Largest

	// MaturityThenSmallest orders primarily by ascending maturity
	// height and secondarily by ascending value. It's the default when
	// the chain tip isn't known, since maturity can't otherwise be
	// compared meaningfully against "now".
	MaturityThenSmallest
)

// Result is the outcome of a successful selection.
type Result struct {
	Inputs      []*txo.DatabaseOutput
	Total       uint64
	ChangeValue uint64
	Strategy    Strategy
}

// Select chooses a set of candidates satisfying amount+fee under strategy
// (or the spec's default strategy choice when nil), per §4.3. candidates
// must already be confirmed Unspent outputs; Select filters by maturity
// itself when tipHeight is known. pendingIncoming is consulted only to
// distinguish ErrFundsPending from ErrNotEnoughFunds on failure.
func Select(
	candidates []*txo.DatabaseOutput,
	amount uint64,
	feePerGram uint64,
	outputCount int,
	strategy *Strategy,
	tipHeight *int64,
	pendingIncoming uint64,
) (*Result, er.R) {
	eligible := make([]*txo.DatabaseOutput, 0, len(candidates))
	for _, d := range candidates {
		if tipHeight != nil && d.Features.Maturity > *tipHeight {
			continue
		}
		eligible = append(eligible, d)
	}

	chosen := chooseStrategy(strategy, eligible, amount, tipHeight)
	ordered := orderBy(chosen, eligible)

	var total uint64
	for i, d := range ordered {
		total += d.Value
		n := i + 1
		feeNoChange := Fee(feePerGram, n, outputCount)
		if total == amount+feeNoChange {
			return &Result{Inputs: ordered[:n], Total: total, Strategy: chosen}, nil
		}
		feeWithChange := Fee(feePerGram, n, outputCount+1)
		if total > amount+feeWithChange {
			return &Result{
				Inputs:      ordered[:n],
				Total:       total,
				ChangeValue: total - amount - feeWithChange,
				Strategy:    chosen,
			}, nil
		}
	}

	feeWithChange := Fee(feePerGram, len(ordered), outputCount+1)
	if total+pendingIncoming >= amount+feeWithChange {
		return nil, ErrFundsPending.Default()
	}
	return nil, ErrNotEnoughFunds.Default()
}

// chooseStrategy implements the default-selection logic of §4.3 step 2.
func chooseStrategy(explicit *Strategy, eligible []*txo.DatabaseOutput, amount uint64, tipHeight *int64) Strategy {
	if explicit != nil {
		return *explicit
	}
	if tipHeight == nil {
		return MaturityThenSmallest
	}
	var largest uint64
	for _, d := range eligible {
		if d.Value > largest {
			largest = d.Value
		}
	}
	if amount > largest {
		return Largest
	}
	return MaturityThenSmallest
}

func orderBy(s Strategy, eligible []*txo.DatabaseOutput) []*txo.DatabaseOutput {
	ordered := make([]*txo.DatabaseOutput, len(eligible))
	copy(ordered, eligible)
	switch s {
	case Largest:
		sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Value > ordered[j].Value })
	case MaturityThenSmallest:
		sort.SliceStable(ordered, func(i, j int) bool {
			if ordered[i].Features.Maturity != ordered[j].Features.Maturity {
				return ordered[i].Features.Maturity < ordered[j].Features.Maturity
			}
			return ordered[i].Value < ordered[j].Value
		})
	default: // Smallest
		sort.SliceStable(ordered, func(i, j int) bool {
			if ordered[i].Value != ordered[j].Value {
				return ordered[i].Value < ordered[j].Value
			}
			return bytes.Compare(ordered[i].CommitmentBytes, ordered[j].CommitmentBytes) < 0
		})
	}
	return ordered
}
