package coinselect_test

import (
	"testing"

	"github.com/pkt-cash/mwcore/coinselect"
	"github.com/pkt-cash/mwcore/txo"
)

func out(value uint64, maturity int64) *txo.DatabaseOutput {
	return &txo.DatabaseOutput{
		UnblindedOutput: txo.UnblindedOutput{
			Value:    value,
			Features: txo.OutputFeatures{Maturity: maturity},
		},
		CommitmentBytes: []byte{byte(value)},
	}
}

func TestSelectExactSingleInputWithChange(t *testing.T) {
	tip := int64(100)
	candidates := []*txo.DatabaseOutput{out(1000, 0)}
	res, err := coinselect.Select(candidates, 400, 5, 1, nil, &tip, 0)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(res.Inputs) != 1 || res.Inputs[0].Value != 1000 {
		t.Fatalf("expected single 1000-value input, got %+v", res.Inputs)
	}
	wantFee := coinselect.Fee(5, 1, 2)
	wantChange := 1000 - 400 - wantFee
	if res.ChangeValue != wantChange {
		t.Fatalf("ChangeValue = %d, want %d", res.ChangeValue, wantChange)
	}
}

func TestSelectInsufficientFundsVsPending(t *testing.T) {
	tip := int64(10)
	candidates := []*txo.DatabaseOutput{out(100, 0)}

	if _, err := coinselect.Select(candidates, 400, 5, 1, nil, &tip, 0); err == nil || !coinselect.ErrNotEnoughFunds.Is(err) {
		t.Fatalf("expected ErrNotEnoughFunds, got %v", err)
	}
	if _, err := coinselect.Select(candidates, 400, 5, 1, nil, &tip, 500); err == nil || !coinselect.ErrFundsPending.Is(err) {
		t.Fatalf("expected ErrFundsPending, got %v", err)
	}
}

func TestSelectPrefersLargestWhenAmountExceedsLargestUTXO(t *testing.T) {
	tip := int64(10)
	candidates := []*txo.DatabaseOutput{out(50, 0), out(5000, 0), out(200, 0)}
	res, err := coinselect.Select(candidates, 5100, 1, 1, nil, &tip, 0)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if res.Strategy != coinselect.Largest {
		t.Fatalf("Strategy = %v, want Largest", res.Strategy)
	}
	if res.Inputs[0].Value != 5000 {
		t.Fatalf("expected the 5000-value output to be selected first, got %+v", res.Inputs)
	}
}

// TestSelectUsesRawFeeBelowMinimumFloor guards against ChangeValue being
// computed against the fee-estimate floor (coinselect.CalculateWithMinimum)
// while the kernel records the raw fee (txbuilder.buildKernel always uses
// coinselect.Fee): at low fee rates the weight-fee falls under the relay
// floor, and the two numbers must still agree or value conservation breaks.
func TestSelectUsesRawFeeBelowMinimumFloor(t *testing.T) {
	tip := int64(10)
	candidates := []*txo.DatabaseOutput{out(10000, 0)}
	res, err := coinselect.Select(candidates, 5000, 1, 5, nil, &tip, 0)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	wantFee := coinselect.Fee(1, 1, 6)
	if wantFee >= 100 {
		t.Fatalf("test setup error: expected a fee below the minimum floor, got %d", wantFee)
	}
	wantChange := 10000 - 5000 - wantFee
	if res.ChangeValue != wantChange {
		t.Fatalf("ChangeValue = %d, want %d (raw fee %d, not the floored fee)", res.ChangeValue, wantChange, wantFee)
	}
}

func TestSelectSkipsImmatureOutputs(t *testing.T) {
	tip := int64(10)
	candidates := []*txo.DatabaseOutput{out(1000, 20)}
	if _, err := coinselect.Select(candidates, 100, 1, 1, nil, &tip, 0); err == nil || !coinselect.ErrNotEnoughFunds.Is(err) {
		t.Fatalf("expected immature output to be excluded, got %v", err)
	}
}
