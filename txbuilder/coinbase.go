package txbuilder

import (
	"github.com/pkt-cash/pktd/btcutil/er"

	"github.com/pkt-cash/mwcore/crypto"
	"github.com/pkt-cash/mwcore/keymanager"
	"github.com/pkt-cash/mwcore/txo"
)

// CoinbaseLockBlocks is the consensus coinbase maturity offset: a coinbase
// output created at height h cannot be spent until the tip reaches
// h + CoinbaseLockBlocks.
const CoinbaseLockBlocks = 1000

// CreateCoinbaseTransaction builds construction mode (c): a single output
// with OutputFeatures.Flags carrying FlagCoinbase and a kernel whose
// Features carries KernelCoinbase. reward and fees are summed into the
// output's value; the coinbase keys are deterministic in the block height
// (see keymanager.Manager.GetCoinbaseSpendAndScriptKeyForHeight), so
// requesting the same height twice is idempotent at the key-derivation
// level — the caller (the output manager) is responsible for clearing any
// previous pending coinbase at the same height before persisting this one.
func CreateCoinbaseTransaction(height int64, reward, fees uint64, mkm *keymanager.Manager) (*txo.Transaction, *txo.UnblindedOutput, er.R) {
	spendSk, scriptSk, err := mkm.GetCoinbaseSpendAndScriptKeyForHeight(height)
	if err != nil {
		return nil, nil, ErrBuild.New("deriving coinbase keys", err)
	}

	value := reward + fees
	features := txo.OutputFeatures{
		Maturity: height + CoinbaseLockBlocks,
		Flags:    txo.FlagCoinbase,
	}
	nonce, err := crypto.RandomScalar()
	if err != nil {
		return nil, nil, ErrBuild.New("deriving coinbase output nonce", err)
	}
	msg := metadataMessage(value, txo.Nop, features, nil)
	sig := crypto.SignPartial(spendSk, nonce, spendSk.PubKey(), nonce.PubKey(), msg)

	uo := &txo.UnblindedOutput{
		Value:       value,
		SpendingKey: spendSk,
		ScriptKey:   scriptSk,
		Features:    features,
		Script:      txo.Nop,
		MetadataSignature: &crypto.MetadataSignature{
			PublicNonce: nonce.PubKey(),
			Scalar:      sig,
		},
	}

	offset, err := crypto.RandomScalar()
	if err != nil {
		return nil, nil, ErrBuild.New("deriving coinbase kernel offset", err)
	}
	kernel, err := buildKernelWithFee(offset, fees, 0, txo.KernelCoinbase)
	if err != nil {
		return nil, nil, err
	}

	dbo := txo.NewDatabaseOutput(*uo, 0)
	tx := &txo.Transaction{
		Outputs: []*txo.DatabaseOutput{dbo},
		Kernels: []*txo.Kernel{kernel},
	}
	return tx, uo, nil
}
