package txbuilder

import (
	"github.com/pkt-cash/pktd/btcutil/er"

	"github.com/pkt-cash/mwcore/coinselect"
	"github.com/pkt-cash/mwcore/crypto"
	"github.com/pkt-cash/mwcore/keymanager"
	"github.com/pkt-cash/mwcore/txo"
)

// CreatePayToSelfTransaction builds construction mode (b): every output
// belongs to this wallet, so both halves of each metadata signature are
// known locally and there is no counterparty round trip. It also backs
// CreateCoinSplit, which is structurally a pay-to-self with many equal
// outputs instead of one.
//
// outputValues lists the value of each non-change output to create (for a
// simple self-payment this is a single element; for a coin split it's
// split_count equal elements). Returns the finalized Transaction and the
// unblinded forms of every output it created, in the same order
// (outputValues..., then change if any), so the caller can persist them.
func CreatePayToSelfTransaction(
	selection *coinselect.Result,
	outputValues []uint64,
	feePerGram uint64,
	lockHeight int64,
	mkm *keymanager.Manager,
) (*txo.Transaction, []*txo.UnblindedOutput, er.R) {
	offset, err := crypto.RandomScalar()
	if err != nil {
		return nil, nil, ErrBuild.New("deriving offset key", err)
	}

	outs := make([]*txo.UnblindedOutput, 0, len(outputValues)+1)
	for _, v := range outputValues {
		uo, err := buildLocalOutput(v, mkm)
		if err != nil {
			return nil, nil, err
		}
		outs = append(outs, uo)
	}
	if selection.ChangeValue > 0 {
		uo, err := buildLocalOutput(selection.ChangeValue, mkm)
		if err != nil {
			return nil, nil, err
		}
		outs = append(outs, uo)
	}

	dbos := make([]*txo.DatabaseOutput, len(outs))
	for i, uo := range outs {
		dbos[i] = txo.NewDatabaseOutput(*uo, 0)
	}

	kernel, err := buildKernel(offset, selection.Inputs, dbos, feePerGram, lockHeight, 0)
	if err != nil {
		return nil, nil, err
	}

	inputs := make([]*crypto.Commitment, 0, len(selection.Inputs))
	for _, d := range selection.Inputs {
		inputs = append(inputs, d.Commitment())
	}
	return &txo.Transaction{Inputs: inputs, Outputs: dbos, Kernels: []*txo.Kernel{kernel}}, outs, nil
}

// buildLocalOutput derives a fresh spend/script keypair and computes the
// final (not partial) metadata signature for an output this wallet both
// sends and receives.
func buildLocalOutput(value uint64, mkm *keymanager.Manager) (*txo.UnblindedOutput, er.R) {
	spendSk, scriptSk, err := mkm.GetNextSpendAndScriptKey()
	if err != nil {
		return nil, ErrBuild.New("deriving output keys", err)
	}
	features := txo.OutputFeatures{}
	nonce, err := crypto.RandomScalar()
	if err != nil {
		return nil, ErrBuild.New("deriving output nonce", err)
	}
	msg := metadataMessage(value, txo.Nop, features, nil)
	sig := crypto.SignPartial(spendSk, nonce, spendSk.PubKey(), nonce.PubKey(), msg)
	return &txo.UnblindedOutput{
		Value:       value,
		SpendingKey: spendSk,
		ScriptKey:   scriptSk,
		Features:    features,
		Script:      txo.Nop,
		MetadataSignature: &crypto.MetadataSignature{
			PublicNonce: nonce.PubKey(),
			Scalar:      sig,
		},
	}, nil
}
