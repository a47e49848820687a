// Package txbuilder drives the interactive sender/receiver transaction
// protocol, fee computation, change-output construction and finalization.
// It owns no persistent state: callers pass in already-selected inputs and
// derived keys, and get back either a Transaction ready to broadcast or a
// partial protocol state to exchange with a counterparty. Protocol state
// that must survive a request/reply round trip is a plain owned record
// (see SenderState / ReceiverState) rather than anything holding a
// reference back into the output manager.
package txbuilder

import (
	"math/big"

	"github.com/pkt-cash/pktd/btcec"
	"github.com/pkt-cash/pktd/btcutil/er"

	"github.com/pkt-cash/mwcore/coinselect"
	"github.com/pkt-cash/mwcore/crypto"
	"github.com/pkt-cash/mwcore/keymanager"
	"github.com/pkt-cash/mwcore/txo"
)

// Err identifies the transaction builder's error category.
var Err er.ErrorType = er.NewErrorType("txbuilder.Err")

var (
	// ErrBuild covers any failure constructing a transaction or
	// protocol message that isn't one of the more specific codes below.
	ErrBuild = Err.Code("ErrBuild")

	// ErrInvalidScriptHash is returned when a counterparty's proposal
	// uses a script other than the one this wallet understands.
	ErrInvalidScriptHash = Err.Code("ErrInvalidScriptHash")

	// ErrInvalidSenderMessage is returned when a sender's proposal is
	// structurally invalid: its offset public key or public nonce is
	// missing.
	ErrInvalidSenderMessage = Err.Code("ErrInvalidSenderMessage")
)

// SenderState is everything a sender needs to hold between proposing a
// transaction and receiving the counterparty's reply. It's a plain owned
// record: the caller is responsible for persisting/transporting it, this
// package never reaches back into a database or network connection.
type SenderState struct {
	TxId       txo.TxId
	Amount     uint64
	FeePerGram uint64
	LockHeight int64

	Inputs []*txo.DatabaseOutput

	// Offset is the sender's contribution to the transaction's global
	// excess offset; it's also the secret half of the sender-offset
	// keypair bound into the output's metadata signature.
	Offset *btcec.PrivateKey

	// Nonce is the sender's private nonce for the metadata signature.
	Nonce       *btcec.PrivateKey
	PublicNonce *btcec.PublicKey

	RecipientScript txo.Script
	Message         string

	// ChangeOutput is nil when the selection required no change.
	ChangeOutput   *txo.UnblindedOutput
	ChangeSpendSk  *btcec.PrivateKey
	ChangeScriptSk *btcec.PrivateKey
}

// ReceiverState is the receiver's half of the protocol, returned to the
// caller so it can be shipped back to the sender.
type ReceiverState struct {
	TxId             txo.TxId
	PublicNonce      *btcec.PublicKey
	PartialSignature *big.Int
	SpendPublicKey   *btcec.PublicKey
	Output           *txo.UnblindedOutput
}

// metadataMessage is the fixed binding for a metadata signature: value,
// script, features and the sender-offset public key, per the data model.
func metadataMessage(value uint64, script txo.Script, features txo.OutputFeatures, offsetPub *btcec.PublicKey) []byte {
	msg := make([]byte, 0, 8+len(script)+9+33)
	msg = append(msg, uint64Bytes(value)...)
	msg = append(msg, script...)
	msg = append(msg, byte(features.Flags))
	msg = append(msg, uint64Bytes(uint64(features.Maturity))...)
	if offsetPub != nil {
		msg = append(msg, offsetPub.SerializeCompressed()...)
	}
	return msg
}

func uint64Bytes(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (56 - 8*i))
	}
	return b
}

// PrepareToSendTransaction builds the sender's half of an interactive send
// to an external recipient (construction mode a). selection must already
// satisfy amount+fee (see coinselect.Select); this function only derives
// the protocol scalars and, if needed, the change output — it does not
// touch the database. The caller (the output manager) is responsible for
// atomically encumbering selection.Inputs and the change output under id.
func PrepareToSendTransaction(
	id txo.TxId,
	amount uint64,
	feePerGram uint64,
	lockHeight int64,
	recipientScript txo.Script,
	message string,
	selection *coinselect.Result,
	mkm *keymanager.Manager,
) (*SenderState, er.R) {
	offset, err := crypto.RandomScalar()
	if err != nil {
		return nil, ErrBuild.New("deriving sender offset key", err)
	}
	nonce, err := crypto.RandomScalar()
	if err != nil {
		return nil, ErrBuild.New("deriving sender nonce", err)
	}

	st := &SenderState{
		TxId:            id,
		Amount:          amount,
		FeePerGram:      feePerGram,
		LockHeight:      lockHeight,
		Inputs:          selection.Inputs,
		Offset:          offset,
		Nonce:           nonce,
		PublicNonce:     nonce.PubKey(),
		RecipientScript: recipientScript,
		Message:         message,
	}

	if selection.ChangeValue > 0 {
		spendSk, scriptSk, err := mkm.GetNextSpendAndScriptKey()
		if err != nil {
			return nil, ErrBuild.New("deriving change keys", err)
		}
		st.ChangeSpendSk = spendSk
		st.ChangeScriptSk = scriptSk
		st.ChangeOutput = &txo.UnblindedOutput{
			Value:       selection.ChangeValue,
			SpendingKey: spendSk,
			ScriptKey:   scriptSk,
			Script:      txo.Nop,
		}
	}
	return st, nil
}

// ReceiveRecipientTransaction builds the receiver's half of the protocol
// (§4.5's ReceiveRecipientTransaction flow). senderScript must equal the
// receiver's configured script (currently always txo.Nop); anything else
// is rejected with ErrInvalidScriptHash before any key material is
// derived.
func ReceiveRecipientTransaction(
	id txo.TxId,
	amount uint64,
	senderScript txo.Script,
	senderOffsetPubKey *btcec.PublicKey,
	senderPublicNonce *btcec.PublicKey,
	mkm *keymanager.Manager,
) (*ReceiverState, er.R) {
	if string(senderScript) != string(txo.Nop) {
		return nil, ErrInvalidScriptHash.New("receiver only accepts the Nop script", nil)
	}
	if senderOffsetPubKey == nil || senderPublicNonce == nil {
		return nil, ErrInvalidSenderMessage.New("sender proposal is missing its offset key or public nonce", nil)
	}

	spendSk, scriptSk, err := mkm.GetNextSpendAndScriptKey()
	if err != nil {
		return nil, ErrBuild.New("deriving receiver keys", err)
	}
	nonce, err := crypto.RandomScalar()
	if err != nil {
		return nil, ErrBuild.New("deriving receiver nonce", err)
	}

	features := txo.OutputFeatures{}
	aggPub := crypto.AggregatePublicKeys(spendSk.PubKey(), senderOffsetPubKey)
	aggNonce := crypto.AggregateNonces(nonce.PubKey(), senderPublicNonce)
	msg := metadataMessage(amount, txo.Nop, features, senderOffsetPubKey)
	partial := crypto.SignPartial(spendSk, nonce, aggPub, aggNonce, msg)

	out := &txo.UnblindedOutput{
		Value:              amount,
		SpendingKey:        spendSk,
		ScriptKey:          scriptSk,
		Features:           features,
		Script:             txo.Nop,
		SenderOffsetPubKey: senderOffsetPubKey,
		MetadataSignature: &crypto.MetadataSignature{
			PublicNonce: aggNonce,
			Scalar:      partial,
		},
	}

	return &ReceiverState{
		TxId:             id,
		PublicNonce:      nonce.PubKey(),
		PartialSignature: partial,
		SpendPublicKey:   spendSk.PubKey(),
		Output:           out,
	}, nil
}

// FinalizeSent combines the sender's offset-key signature share with the
// receiver's reply to produce the aggregate metadata signature on the
// payment output, and assembles the completed Transaction (one kernel,
// the selected inputs, the payment output plus change if any).
func FinalizeSent(sender *SenderState, receiver *ReceiverState) (*txo.Transaction, er.R) {
	features := txo.OutputFeatures{}
	senderOffsetPub := sender.Offset.PubKey()
	aggPub := crypto.AggregatePublicKeys(receiver.SpendPublicKey, senderOffsetPub)
	aggNonce := crypto.AggregateNonces(sender.PublicNonce, receiver.PublicNonce)
	msg := metadataMessage(sender.Amount, txo.Nop, features, senderOffsetPub)
	senderPartial := crypto.SignPartial(sender.Offset, sender.Nonce, aggPub, aggNonce, msg)
	finalScalar := crypto.AggregateScalars(senderPartial, receiver.PartialSignature)

	paymentOutput := receiver.Output
	paymentOutput.MetadataSignature = &crypto.MetadataSignature{
		PublicNonce: aggNonce,
		Scalar:      finalScalar,
	}

	outputs := []*txo.DatabaseOutput{txo.NewDatabaseOutput(*paymentOutput, 0)}
	if sender.ChangeOutput != nil {
		outputs = append(outputs, txo.NewDatabaseOutput(*sender.ChangeOutput, 0))
	}

	kernel, err := buildKernel(sender.Offset, sender.Inputs, outputs, sender.FeePerGram, sender.LockHeight, 0)
	if err != nil {
		return nil, err
	}

	inputs := make([]*crypto.Commitment, 0, len(sender.Inputs))
	for _, d := range sender.Inputs {
		inputs = append(inputs, d.Commitment())
	}
	return &txo.Transaction{Inputs: inputs, Outputs: outputs, Kernels: []*txo.Kernel{kernel}}, nil
}
