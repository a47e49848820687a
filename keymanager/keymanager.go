// Package keymanager implements the Master Key Manager: deterministic
// derivation of every key the wallet needs from a single master secret,
// across a small enumerated set of branches. It mirrors the wallet's
// hierarchical-deterministic address manager, but the branches here are
// protocol roles (spend, script, rewind...) rather than account/chain
// indices.
package keymanager

import (
	"sync"

	"github.com/pkt-cash/pktd/btcec"
	"github.com/pkt-cash/pktd/btcutil/er"
	"github.com/pkt-cash/pktd/btcutil/hdkeychain"
	"github.com/pkt-cash/pktd/chaincfg"
)

// Err identifies the keymanager error category.
var Err er.ErrorType = er.NewErrorType("keymanager.Err")

var (
	// ErrMasterKeyImmutable is raised if a caller attempts to replace an
	// already-initialized master secret.
	ErrMasterKeyImmutable = Err.CodeWithDetail("ErrMasterKeyImmutable",
		"master secret key cannot be changed for the life of a wallet instance")
)

// Branch enumerates the recognized derivation branches. Every key the
// wallet produces is a pure function of (master secret, branch, index).
type Branch uint32

const (
	BranchSpend Branch = iota
	BranchScript
	BranchCoinbaseSpend
	BranchCoinbaseScript
	BranchRewind
	BranchBlinding
)

// IndexPersister is the slice of UDB the key manager needs: a strictly
// serialized, monotonic counter per non-coinbase branch. Coinbase branches
// never call this — their index is the block height itself.
type IndexPersister interface {
	NextIndex(branch Branch) (uint32, er.R)
}

// RewindData is the constant-for-wallet-lifetime keypair used to build and
// later recover one-sided-payment range proofs.
type RewindData struct {
	RewindKey   *btcec.PrivateKey
	BlindingKey *btcec.PrivateKey
	RewindPub   *btcec.PublicKey
}

// Manager derives every key from an immutable master secret.
type Manager struct {
	master *hdkeychain.ExtendedKey
	seed   []byte
	store  IndexPersister

	rewindOnce sync.Once
	rewind     RewindData
}

// NewFromSeed derives the master extended key from raw seed bytes (as
// produced by a wallet's RandomSeed or recovered from a mnemonic) and
// builds a Manager over it. The seed is retained only so GetSeedWords can
// later re-encode it; all key derivation goes through the extended key.
func NewFromSeed(seed []byte, net *chaincfg.Params, store IndexPersister) (*Manager, er.R) {
	master, err := hdkeychain.NewMaster(seed, net)
	if err != nil {
		return nil, err
	}
	cp := make([]byte, len(seed))
	copy(cp, seed)
	return &Manager{master: master, seed: cp, store: store}, nil
}

// branchChild derives the branch-level extended key: master -> branch.
// Branches are hardened so that compromise of a branch key (or even the
// full set of per-branch private keys) never reveals the master secret or
// sibling branches.
func (m *Manager) branchChild(b Branch) (*hdkeychain.ExtendedKey, er.R) {
	return m.master.Child(hdkeychain.HardenedKeyStart + uint32(b))
}

func (m *Manager) deriveAt(b Branch, index uint32) (*btcec.PrivateKey, er.R) {
	branch, err := m.branchChild(b)
	if err != nil {
		return nil, err
	}
	child, err := branch.Child(index)
	if err != nil {
		return nil, err
	}
	return child.ECPrivKey()
}

// GetNextSpendAndScriptKey allocates the next (spend_sk, script_sk) pair.
// Index allocation is strictly serialized by store.NextIndex, so two
// concurrent callers never receive the same pair even though both derive
// from the same immutable master secret.
func (m *Manager) GetNextSpendAndScriptKey() (*btcec.PrivateKey, *btcec.PrivateKey, er.R) {
	idx, err := m.store.NextIndex(BranchSpend)
	if err != nil {
		return nil, nil, err
	}
	spendSk, err := m.deriveAt(BranchSpend, idx)
	if err != nil {
		return nil, nil, err
	}
	scriptSk, err := m.deriveAt(BranchScript, idx)
	if err != nil {
		return nil, nil, err
	}
	return spendSk, scriptSk, nil
}

// GetCoinbaseSpendAndScriptKeyForHeight derives the coinbase keypair for a
// given block height. Unlike GetNextSpendAndScriptKey, this never consults
// or advances a counter: the height itself is the index, so re-deriving
// the keys for height h is always deterministic and idempotent.
func (m *Manager) GetCoinbaseSpendAndScriptKeyForHeight(height int64) (*btcec.PrivateKey, *btcec.PrivateKey, er.R) {
	spendSk, err := m.deriveAt(BranchCoinbaseSpend, uint32(height))
	if err != nil {
		return nil, nil, err
	}
	scriptSk, err := m.deriveAt(BranchCoinbaseScript, uint32(height))
	if err != nil {
		return nil, nil, err
	}
	return spendSk, scriptSk, nil
}

// RewindData returns the wallet's constant rewind keypair, deriving it on
// first use and caching it for the life of the manager.
func (m *Manager) RewindData() (RewindData, er.R) {
	var derr er.R
	m.rewindOnce.Do(func() {
		rewindSk, err := m.deriveAt(BranchRewind, 0)
		if err != nil {
			derr = err
			return
		}
		blindingSk, err := m.deriveAt(BranchBlinding, 0)
		if err != nil {
			derr = err
			return
		}
		m.rewind = RewindData{
			RewindKey:   rewindSk,
			BlindingKey: blindingSk,
			RewindPub:   rewindSk.PubKey(),
		}
	})
	if derr != nil {
		return RewindData{}, derr
	}
	return m.rewind, nil
}

// GetRewindPublicKeys exposes only the public half of the rewind data, for
// handing to a counterparty who wants to construct a one-sided payment to
// this wallet.
func (m *Manager) GetRewindPublicKeys() (*btcec.PublicKey, er.R) {
	rd, err := m.RewindData()
	if err != nil {
		return nil, err
	}
	return rd.RewindPub, nil
}
