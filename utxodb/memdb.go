package utxodb

import (
	"bytes"
	"crypto/cipher"
	cryptorand "crypto/rand"
	"sort"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/pkt-cash/pktd/btcec"
	"github.com/pkt-cash/pktd/btcutil"
	"github.com/pkt-cash/pktd/btcutil/er"

	"github.com/pkt-cash/mwcore/crypto"
	"github.com/pkt-cash/mwcore/keymanager"
	"github.com/pkt-cash/mwcore/pool"
	"github.com/pkt-cash/mwcore/txo"
)

// Argon2id parameters for passphrase stretching. These match the
// "moderate" profile the argon2 RFC draft suggests for interactive use:
// expensive enough to slow down an offline guesser, cheap enough that a
// legitimate unlock doesn't stall the caller.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// sealedKeyPair is a DBO's secret key material once ApplyEncryption has
// re-keyed it: each ciphertext is a fresh nonce followed by the AEAD-sealed
// 32-byte scalar, the same nonce-prefixed layout rangeproof.go uses.
type sealedKeyPair struct {
	spendCT  []byte
	scriptCT []byte // nil if the output never had a script key
}

func sealScalar(aead cipher.AEAD, priv *btcec.PrivateKey) ([]byte, er.R) {
	if priv == nil {
		return nil, nil
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := cryptorand.Read(nonce); err != nil {
		return nil, er.E(err)
	}
	ct := aead.Seal(nonce, nonce, priv.D.Bytes(), nil)
	return ct, nil
}

func openScalar(aead cipher.AEAD, ct []byte) (*btcec.PrivateKey, er.R) {
	if ct == nil {
		return nil, nil
	}
	n := aead.NonceSize()
	if len(ct) < n {
		return nil, ErrIncorrectPassword.New("corrupt sealed key material", nil)
	}
	nonce, data := ct[:n], ct[n:]
	plain, err := aead.Open(nil, nonce, data, nil)
	if err != nil {
		return nil, ErrIncorrectPassword.New("wrong passphrase", nil)
	}
	priv, _ := btcec.PrivKeyFromBytes(btcec.S256(), plain)
	return priv, nil
}

func deriveCipher(passphrase, salt []byte) (cipher.AEAD, er.R) {
	key := argon2.IDKey(passphrase, salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, er.E(err)
	}
	return aead, nil
}

// MemStore is an in-memory Store. It exists for tests and for embedders
// who don't need outputs to survive a process restart; its locking models
// the same single-writer-at-a-time contract a bucketed on-disk store gives
// the rest of the core.
type MemStore struct {
	mu sync.Mutex

	byCommitment map[string]*txo.DatabaseOutput
	indices      map[keymanager.Branch]uint32
	knownScripts []txo.KnownOneSidedPaymentScript

	encrypted  bool
	cipherSalt []byte
	sealedKeys map[string]sealedKeyPair
}

// NewMemStore returns an empty, unencrypted store.
func NewMemStore() *MemStore {
	return &MemStore{
		byCommitment: make(map[string]*txo.DatabaseOutput),
		indices:      make(map[keymanager.Branch]uint32),
	}
}

// AddKnownOneSidedPaymentScript implements Store.
func (s *MemStore) AddKnownOneSidedPaymentScript(script txo.KnownOneSidedPaymentScript) er.R {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.knownScripts = append(s.knownScripts, script)
	return nil
}

// ListKnownOneSidedPaymentScripts implements Store.
func (s *MemStore) ListKnownOneSidedPaymentScripts() ([]txo.KnownOneSidedPaymentScript, er.R) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]txo.KnownOneSidedPaymentScript, len(s.knownScripts))
	copy(out, s.knownScripts)
	return out, nil
}

func key(c *crypto.Commitment) string {
	return string(c.Bytes())
}

// NextIndex implements keymanager.IndexPersister: a strictly serialized,
// monotonic counter per branch.
func (s *MemStore) NextIndex(branch keymanager.Branch) (uint32, er.R) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indices[branch]
	s.indices[branch] = idx + 1
	return idx, nil
}

func (s *MemStore) insert(id txo.TxId, uo txo.UnblindedOutput, p pool.Pool, coinbaseHeight int64) er.R {
	c := uo.Commitment()
	k := key(c)
	if _, exists := s.byCommitment[k]; exists {
		return ErrDuplicateOutput.New("output with this commitment already exists", nil)
	}
	d := txo.NewDatabaseOutput(uo, p)
	d.TxId = id
	d.CoinbaseHeight = coinbaseHeight
	s.byCommitment[k] = d
	return nil
}

// AddUnspent implements Store.
func (s *MemStore) AddUnspent(uo txo.UnblindedOutput) er.R {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(0, uo, pool.Unspent, 0)
}

// AddUnspentWithTx implements Store.
func (s *MemStore) AddUnspentWithTx(id txo.TxId, uo txo.UnblindedOutput) er.R {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(id, uo, pool.Unspent, 0)
}

// AddOutputToBeReceived implements Store.
func (s *MemStore) AddOutputToBeReceived(id txo.TxId, uo txo.UnblindedOutput, height *int64) er.R {
	s.mu.Lock()
	defer s.mu.Unlock()
	if height != nil {
		// Idempotent under re-request: an existing pending coinbase at
		// this height, or an output sharing the new commitment, is
		// cleared first.
		s.clearPendingCoinbaseAtHeightLocked(*height)
		if existing, ok := s.byCommitment[key(uo.Commitment())]; ok && existing.Pool == pool.PendingCoinbase {
			delete(s.byCommitment, key(uo.Commitment()))
		}
		return s.insert(id, uo, pool.PendingCoinbase, *height)
	}
	return s.insert(id, uo, pool.EncumberedToBeReceived, 0)
}

// EncumberOutputs implements Store.
func (s *MemStore) EncumberOutputs(id txo.TxId, inputs []*crypto.Commitment, changeOutputs []txo.UnblindedOutput) er.R {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate before mutating anything, so the move is all-or-nothing.
	for _, c := range inputs {
		d, ok := s.byCommitment[key(c)]
		if !ok {
			return ErrValueNotFound.New("input commitment not found", nil)
		}
		if d.Pool != pool.Unspent {
			return ErrInconsistentState.New("input is not Unspent", nil)
		}
	}
	for _, uo := range changeOutputs {
		if _, exists := s.byCommitment[key(uo.Commitment())]; exists {
			return ErrDuplicateOutput.New("change output commitment already exists", nil)
		}
	}

	for _, c := range inputs {
		d := s.byCommitment[key(c)]
		d.Pool = pool.EncumberedToBeSpent
		d.TxId = id
	}
	for _, uo := range changeOutputs {
		if err := s.insert(id, uo, pool.ShortTermEncumbered, 0); err != nil {
			return err
		}
	}
	return nil
}

// ConfirmEncumberedOutputs implements Store.
func (s *MemStore) ConfirmEncumberedOutputs(id txo.TxId) er.R {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.byCommitment {
		if d.TxId == id && d.Pool == pool.ShortTermEncumbered {
			d.Pool = pool.EncumberedToBeReceived
		}
	}
	return nil
}

// CancelPendingTransactionOutputs implements Store.
func (s *MemStore) CancelPendingTransactionOutputs(id txo.TxId) er.R {
	s.mu.Lock()
	defer s.mu.Unlock()
	var toDelete []string
	for k, d := range s.byCommitment {
		if d.TxId != id {
			continue
		}
		switch d.Pool {
		case pool.EncumberedToBeSpent:
			d.Pool = pool.Unspent
		case pool.ShortTermEncumbered:
			toDelete = append(toDelete, k)
		case pool.EncumberedToBeReceived:
			d.Pool = pool.CancelledInbound
		}
	}
	for _, k := range toDelete {
		delete(s.byCommitment, k)
	}
	return nil
}

// ReinstateCancelledInboundOutput implements Store.
func (s *MemStore) ReinstateCancelledInboundOutput(id txo.TxId) er.R {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := false
	for _, d := range s.byCommitment {
		if d.TxId == id && d.Pool == pool.CancelledInbound {
			d.Pool = pool.EncumberedToBeReceived
			found = true
		}
	}
	if !found {
		return ErrValueNotFound.New("no cancelled inbound output for this TxId", nil)
	}
	return nil
}

// FetchSortedUnspentOutputs implements Store.
func (s *MemStore) FetchSortedUnspentOutputs() ([]*txo.DatabaseOutput, er.R) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchPoolLocked(pool.Unspent, true), nil
}

// FetchSpentOutputs implements Store.
func (s *MemStore) FetchSpentOutputs() ([]*txo.DatabaseOutput, er.R) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchPoolLocked(pool.Spent, false), nil
}

// GetInvalidOutputs implements Store.
func (s *MemStore) GetInvalidOutputs() ([]*txo.DatabaseOutput, er.R) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchPoolLocked(pool.Invalid, false), nil
}

// FetchOutputsInPool implements Store.
func (s *MemStore) FetchOutputsInPool(p pool.Pool) ([]*txo.DatabaseOutput, er.R) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchPoolLocked(p, false), nil
}

func (s *MemStore) fetchPoolLocked(p pool.Pool, sorted bool) []*txo.DatabaseOutput {
	out := make([]*txo.DatabaseOutput, 0, len(s.byCommitment))
	for _, d := range s.byCommitment {
		if d.Pool == p {
			out = append(out, d)
		}
	}
	if sorted {
		sort.Slice(out, func(i, j int) bool {
			if out[i].Value != out[j].Value {
				return out[i].Value < out[j].Value
			}
			return bytes.Compare(out[i].CommitmentBytes, out[j].CommitmentBytes) < 0
		})
	}
	return out
}

// FetchUtxos implements Store.
func (s *MemStore) FetchUtxos(hashes []crypto.Commitment) ([]*txo.DatabaseOutput, er.R) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*txo.DatabaseOutput, 0, len(hashes))
	for i := range hashes {
		if d, ok := s.byCommitment[key(&hashes[i])]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// FetchUtxosAndMinedInfo implements Store; in this in-memory store mined
// info is not separately tracked, so it is equivalent to FetchUtxos.
func (s *MemStore) FetchUtxosAndMinedInfo(hashes []crypto.Commitment) ([]*txo.DatabaseOutput, er.R) {
	return s.FetchUtxos(hashes)
}

// ClearShortTermEncumberances implements Store.
func (s *MemStore) ClearShortTermEncumberances() er.R {
	s.mu.Lock()
	defer s.mu.Unlock()
	var toDelete []string
	for k, d := range s.byCommitment {
		if d.Pool != pool.ShortTermEncumbered {
			continue
		}
		toDelete = append(toDelete, k)
		for _, sib := range s.byCommitment {
			if sib.TxId == d.TxId && sib.Pool == pool.EncumberedToBeSpent {
				sib.Pool = pool.Unspent
			}
		}
	}
	for _, k := range toDelete {
		delete(s.byCommitment, k)
	}
	return nil
}

func (s *MemStore) clearPendingCoinbaseAtHeightLocked(height int64) {
	for k, d := range s.byCommitment {
		if d.Pool == pool.PendingCoinbase && d.CoinbaseHeight == height {
			delete(s.byCommitment, k)
		}
	}
}

// ClearPendingCoinbaseTransactionAtBlockHeight implements Store.
func (s *MemStore) ClearPendingCoinbaseTransactionAtBlockHeight(height int64) er.R {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearPendingCoinbaseAtHeightLocked(height)
	return nil
}

// SetCoinbaseAbandoned implements Store. The in-memory model represents
// "abandoned" as an immediate move to Invalid; a real backend would carry
// a distinct flag so a later reorg-reinstatement can tell the difference
// from a chain-disproved output, but the external behaviour is identical.
func (s *MemStore) SetCoinbaseAbandoned(id txo.TxId, abandoned bool) er.R {
	s.mu.Lock()
	defer s.mu.Unlock()
	target := pool.PendingCoinbase
	if abandoned {
		target = pool.Invalid
	}
	found := false
	for _, d := range s.byCommitment {
		if d.TxId == id && (d.Pool == pool.PendingCoinbase || d.Pool == pool.Invalid) {
			d.Pool = target
			found = true
		}
	}
	if !found {
		return ErrValueNotFound.New("no coinbase output for this TxId", nil)
	}
	return nil
}

// RemoveOutputByCommitment implements Store.
func (s *MemStore) RemoveOutputByCommitment(c *crypto.Commitment) er.R {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(c)
	if _, ok := s.byCommitment[k]; !ok {
		return ErrValueNotFound.New("no output with this commitment", nil)
	}
	delete(s.byCommitment, k)
	return nil
}

// UpdateOutputMetadataSignature implements Store.
func (s *MemStore) UpdateOutputMetadataSignature(uo *txo.UnblindedOutput) er.R {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(uo.Commitment())
	d, ok := s.byCommitment[k]
	if !ok {
		return ErrValueNotFound.New("no output with this commitment", nil)
	}
	d.MetadataSignature = uo.MetadataSignature
	return nil
}

// ApplyEncryption implements Store: it stretches passphrase with argon2id
// into an AEAD key, then re-keys every output's spending/script secret
// under that key and drops the plaintext scalars from memory. A fresh
// random salt is generated per call, so re-encrypting after RemoveEncryption
// never reuses a key even if the same passphrase is supplied again.
func (s *MemStore) ApplyEncryption(passphrase []byte) er.R {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.encrypted {
		return ErrIncorrectPassword.New("store is already encrypted", nil)
	}
	salt := make([]byte, 16)
	if _, err := cryptorand.Read(salt); err != nil {
		return er.E(err)
	}
	aead, err := deriveCipher(passphrase, salt)
	if err != nil {
		return err
	}

	sealed := make(map[string]sealedKeyPair, len(s.byCommitment))
	for k, d := range s.byCommitment {
		spendCT, err := sealScalar(aead, d.SpendingKey)
		if err != nil {
			return err
		}
		scriptCT, err := sealScalar(aead, d.ScriptKey)
		if err != nil {
			return err
		}
		sealed[k] = sealedKeyPair{spendCT: spendCT, scriptCT: scriptCT}
	}
	for _, d := range s.byCommitment {
		d.SpendingKey = nil
		d.ScriptKey = nil
	}
	s.sealedKeys = sealed
	s.cipherSalt = salt
	s.encrypted = true
	return nil
}

// RemoveEncryption implements Store: it re-derives the AEAD key from
// passphrase and the stored salt, opens every sealed secret (which fails
// with ErrIncorrectPassword if the passphrase is wrong, since AEAD
// authentication rejects a mismatched key), and restores the plaintext
// scalars only once every output has been verified to open correctly.
func (s *MemStore) RemoveEncryption(passphrase []byte) er.R {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.encrypted {
		return ErrNoPassword.New("store is not encrypted", nil)
	}
	aead, err := deriveCipher(passphrase, s.cipherSalt)
	if err != nil {
		return err
	}

	spendKeys := make(map[string]*btcec.PrivateKey, len(s.sealedKeys))
	scriptKeys := make(map[string]*btcec.PrivateKey, len(s.sealedKeys))
	for k, sk := range s.sealedKeys {
		spendKey, err := openScalar(aead, sk.spendCT)
		if err != nil {
			return err
		}
		scriptKey, err := openScalar(aead, sk.scriptCT)
		if err != nil {
			return err
		}
		spendKeys[k] = spendKey
		scriptKeys[k] = scriptKey
	}
	for k, d := range s.byCommitment {
		d.SpendingKey = spendKeys[k]
		d.ScriptKey = scriptKeys[k]
	}
	s.sealedKeys = nil
	s.cipherSalt = nil
	s.encrypted = false
	return nil
}

// GetBalance implements Store per the derived-balance formula in the data
// model: pending_outgoing nets out the change each in-flight spend expects
// to produce, since that value never really leaves the wallet.
func (s *MemStore) GetBalance(tipHeight *int64) (Balance, er.R) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var bal Balance
	changeByTx := make(map[txo.TxId]btcutil.Amount)
	for _, d := range s.byCommitment {
		if d.Pool == pool.ShortTermEncumbered {
			changeByTx[d.TxId] += d.Amount()
		}
	}
	for _, d := range s.byCommitment {
		switch d.Pool {
		case pool.Unspent:
			if tipHeight != nil && d.Features.Maturity > *tipHeight {
				bal.TimeLocked += d.Amount()
			} else {
				bal.Available += d.Amount()
			}
		case pool.EncumberedToBeReceived, pool.PendingCoinbase:
			bal.PendingIncoming += d.Amount()
		case pool.EncumberedToBeSpent:
			bal.PendingOutgoing += d.Amount()
		}
	}
	for _, change := range changeByTx {
		bal.PendingOutgoing -= change
	}
	return bal, nil
}

// MoveOutput implements Store.
func (s *MemStore) MoveOutput(c *crypto.Commitment, to pool.Pool) er.R {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.byCommitment[key(c)]
	if !ok {
		return ErrValueNotFound.New("no output with this commitment", nil)
	}
	d.Pool = to
	return nil
}

// LookupByCommitment implements Store.
func (s *MemStore) LookupByCommitment(c *crypto.Commitment) (*txo.DatabaseOutput, er.R) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.byCommitment[key(c)]
	if !ok {
		return nil, ErrValueNotFound.New("no output with this commitment", nil)
	}
	return d, nil
}
