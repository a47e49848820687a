package keymanager_test

import (
	"strings"
	"testing"

	"github.com/pkt-cash/pktd/btcutil/er"
	"github.com/pkt-cash/pktd/chaincfg"

	"github.com/pkt-cash/mwcore/keymanager"
)

type nullPersister struct{}

func (nullPersister) NextIndex(keymanager.Branch) (uint32, er.R) { panic("unused") }

func TestGetSeedWordsIsStableWithTheBundledEnglishList(t *testing.T) {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i * 7)
	}
	mkm, err := keymanager.NewFromSeed(seed, &chaincfg.MainNetParams, nullPersister{})
	if err != nil {
		t.Fatalf("NewFromSeed: %v", err)
	}

	words, err := mkm.GetSeedWords("english")
	if err != nil {
		t.Fatalf("GetSeedWords: %v", err)
	}
	split := strings.Fields(words)
	if len(split) != 24 {
		t.Fatalf("expected 24 words, got %d", len(split))
	}

	words2, err := mkm.GetSeedWords("english")
	if err != nil {
		t.Fatalf("GetSeedWords (second call): %v", err)
	}
	if words != words2 {
		t.Fatalf("expected a stable encoding for an immutable master secret, got %q then %q", words, words2)
	}
}

func TestGetSeedWordsRejectsUnregisteredLanguage(t *testing.T) {
	seed := make([]byte, 32)
	mkm, err := keymanager.NewFromSeed(seed, &chaincfg.MainNetParams, nullPersister{})
	if err != nil {
		t.Fatalf("NewFromSeed: %v", err)
	}
	if _, err := mkm.GetSeedWords("klingon"); err == nil || !keymanager.ErrUnsupportedLanguage.Is(err) {
		t.Fatalf("expected ErrUnsupportedLanguage, got %v", err)
	}
}
