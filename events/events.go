// Package events implements the event fan-out (EFO): the observer
// callback surface the output manager broadcasts on, and the stable
// bijective mapping between the validation task's internal outcomes and
// the wire-stable result codes external callers see.
package events

import (
	"sync"

	"github.com/pkt-cash/mwcore/txo"
)

// ValidationOutcome is the validation task's internal terminal result.
type ValidationOutcome int

const (
	OutcomeSuccess ValidationOutcome = iota
	OutcomeAborted
	OutcomeFailure
	OutcomeBaseNodeNotInSync
)

// Code is the external, wire-stable result code. The mapping from
// ValidationOutcome to Code is fixed by §4.6 and MUST never change: codes
// are observed by callers across process restarts and releases.
type Code int

const (
	CodeSuccess           Code = 0
	CodeAborted           Code = 1
	CodeFailure           Code = 2
	CodeBaseNodeNotInSync Code = 3
)

// outcomeToCode is the bijection §8's "Validation code mapping" invariant
// requires. ToCode and FromCode are each other's inverse over this table.
var outcomeToCode = map[ValidationOutcome]Code{
	OutcomeSuccess:           CodeSuccess,
	OutcomeAborted:           CodeAborted,
	OutcomeFailure:           CodeFailure,
	OutcomeBaseNodeNotInSync: CodeBaseNodeNotInSync,
}

var codeToOutcome = map[Code]ValidationOutcome{
	CodeSuccess:           OutcomeSuccess,
	CodeAborted:           OutcomeAborted,
	CodeFailure:           OutcomeFailure,
	CodeBaseNodeNotInSync: OutcomeBaseNodeNotInSync,
}

// ToCode maps an internal validation outcome to its stable external code.
func ToCode(o ValidationOutcome) Code { return outcomeToCode[o] }

// FromCode is the inverse of ToCode, provided so observers and tests can
// round-trip the mapping and so the bijection invariant is checkable
// directly rather than only by inspection.
func FromCode(c Code) (ValidationOutcome, bool) {
	o, ok := codeToOutcome[c]
	return o, ok
}

// RequestKey identifies which validation or txo-validation run an event
// refers to.
type RequestKey uint64

// Sink is the twelve-member observer callback surface from §6. Every
// method has a default no-op implementation via EmptySink, so observers
// only need to implement the sinks they care about.
type Sink interface {
	ReceivedTransaction(txId txo.TxId)
	ReceivedTransactionReply(txId txo.TxId)
	ReceivedFinalizedTransaction(txId txo.TxId)
	TransactionBroadcast(txId txo.TxId)
	TransactionMined(txId txo.TxId)
	TransactionMinedUnconfirmed(txId txo.TxId, confirmations int64)
	DirectSendResult(txId txo.TxId, success bool)
	StoreAndForwardSendResult(txId txo.TxId, success bool)
	TransactionCancellation(txId txo.TxId)
	TxoValidationComplete(requestKey RequestKey, code Code)
	TransactionValidationComplete(requestKey RequestKey, code Code)
	SafMessagesReceived()
}

// EmptySink is embedded by observers that only want a subset of Sink's
// methods; every method is a no-op.
type EmptySink struct{}

func (EmptySink) ReceivedTransaction(txo.TxId)                         {}
func (EmptySink) ReceivedTransactionReply(txo.TxId)                    {}
func (EmptySink) ReceivedFinalizedTransaction(txo.TxId)                {}
func (EmptySink) TransactionBroadcast(txo.TxId)                        {}
func (EmptySink) TransactionMined(txo.TxId)                            {}
func (EmptySink) TransactionMinedUnconfirmed(txo.TxId, int64)          {}
func (EmptySink) DirectSendResult(txo.TxId, bool)                      {}
func (EmptySink) StoreAndForwardSendResult(txo.TxId, bool)             {}
func (EmptySink) TransactionCancellation(txo.TxId)                     {}
func (EmptySink) TxoValidationComplete(RequestKey, Code)               {}
func (EmptySink) TransactionValidationComplete(RequestKey, Code)       {}
func (EmptySink) SafMessagesReceived()                                 {}

// Broadcaster fans every call out to its currently-registered observers.
// Registration/deregistration and delivery are both safe for concurrent
// use, and Subscribe/Unsubscribe only ever touch the registry, never a
// per-observer queue. Observers are called synchronously, one after
// another, so a slow observer delays delivery to the observers after it;
// callers that need backpressure isolation should wrap their Sink with
// their own buffering.
type Broadcaster struct {
	mu        sync.RWMutex
	observers map[int]Sink
	nextID    int
}

// NewBroadcaster returns a Broadcaster with no observers registered.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{observers: make(map[int]Sink)}
}

// Subscription is an opaque handle returned by Subscribe; pass it to
// Unsubscribe to stop receiving events.
type Subscription int

// Subscribe registers an observer and returns a handle to later remove it.
func (b *Broadcaster) Subscribe(s Sink) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.observers[id] = s
	return Subscription(id)
}

// Unsubscribe removes a previously registered observer. It is a no-op if
// the subscription was already removed.
func (b *Broadcaster) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.observers, int(sub))
}

func (b *Broadcaster) snapshot() []Sink {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Sink, 0, len(b.observers))
	for _, s := range b.observers {
		out = append(out, s)
	}
	return out
}

func (b *Broadcaster) ReceivedTransaction(txId txo.TxId) {
	for _, s := range b.snapshot() {
		s.ReceivedTransaction(txId)
	}
}

func (b *Broadcaster) ReceivedTransactionReply(txId txo.TxId) {
	for _, s := range b.snapshot() {
		s.ReceivedTransactionReply(txId)
	}
}

func (b *Broadcaster) ReceivedFinalizedTransaction(txId txo.TxId) {
	for _, s := range b.snapshot() {
		s.ReceivedFinalizedTransaction(txId)
	}
}

func (b *Broadcaster) TransactionBroadcast(txId txo.TxId) {
	for _, s := range b.snapshot() {
		s.TransactionBroadcast(txId)
	}
}

func (b *Broadcaster) TransactionMined(txId txo.TxId) {
	for _, s := range b.snapshot() {
		s.TransactionMined(txId)
	}
}

func (b *Broadcaster) TransactionMinedUnconfirmed(txId txo.TxId, confirmations int64) {
	for _, s := range b.snapshot() {
		s.TransactionMinedUnconfirmed(txId, confirmations)
	}
}

func (b *Broadcaster) DirectSendResult(txId txo.TxId, success bool) {
	for _, s := range b.snapshot() {
		s.DirectSendResult(txId, success)
	}
}

func (b *Broadcaster) StoreAndForwardSendResult(txId txo.TxId, success bool) {
	for _, s := range b.snapshot() {
		s.StoreAndForwardSendResult(txId, success)
	}
}

func (b *Broadcaster) TransactionCancellation(txId txo.TxId) {
	for _, s := range b.snapshot() {
		s.TransactionCancellation(txId)
	}
}

func (b *Broadcaster) TxoValidationComplete(requestKey RequestKey, outcome ValidationOutcome) {
	code := ToCode(outcome)
	for _, s := range b.snapshot() {
		s.TxoValidationComplete(requestKey, code)
	}
}

func (b *Broadcaster) TransactionValidationComplete(requestKey RequestKey, outcome ValidationOutcome) {
	code := ToCode(outcome)
	for _, s := range b.snapshot() {
		s.TransactionValidationComplete(requestKey, code)
	}
}

func (b *Broadcaster) SafMessagesReceived() {
	for _, s := range b.snapshot() {
		s.SafMessagesReceived()
	}
}
