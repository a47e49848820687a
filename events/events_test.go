package events_test

import (
	"testing"

	"github.com/pkt-cash/mwcore/events"
	"github.com/pkt-cash/mwcore/txo"
)

func TestValidationCodeMappingIsBijective(t *testing.T) {
	outcomes := []events.ValidationOutcome{
		events.OutcomeSuccess, events.OutcomeAborted, events.OutcomeFailure, events.OutcomeBaseNodeNotInSync,
	}
	seen := map[events.Code]bool{}
	for _, o := range outcomes {
		c := events.ToCode(o)
		if seen[c] {
			t.Fatalf("code %d produced by more than one outcome", c)
		}
		seen[c] = true
		back, ok := events.FromCode(c)
		if !ok || back != o {
			t.Fatalf("FromCode(%d) = %v, %v; want %v, true", c, back, ok, o)
		}
	}
	if len(seen) != 4 {
		t.Fatalf("expected 4 distinct codes, got %d", len(seen))
	}
}

type recordingSink struct {
	events.EmptySink
	validations []events.Code
}

func (r *recordingSink) TxoValidationComplete(key events.RequestKey, code events.Code) {
	r.validations = append(r.validations, code)
}

func TestBroadcasterDeliversToAllSubscribers(t *testing.T) {
	b := events.NewBroadcaster()
	a := &recordingSink{}
	c := &recordingSink{}
	subA := b.Subscribe(a)
	b.Subscribe(c)

	b.TxoValidationComplete(1, events.OutcomeSuccess)
	b.Unsubscribe(subA)
	b.TxoValidationComplete(1, events.OutcomeFailure)

	if len(a.validations) != 1 || a.validations[0] != events.CodeSuccess {
		t.Fatalf("expected subscriber a to see exactly one Success event, got %v", a.validations)
	}
	if len(c.validations) != 2 {
		t.Fatalf("expected subscriber c to still be receiving events, got %v", c.validations)
	}

	b.TransactionBroadcast(txo.TxId(42))
}
