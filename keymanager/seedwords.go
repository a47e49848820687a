package keymanager

import (
	"math/big"
	"strings"

	"github.com/pkt-cash/pktd/btcutil/er"
)

const wordListSize = 2048
const seedWordCount = 24

// wordList holds one language's 2048-entry mnemonic dictionary and its
// reverse lookup, used to turn 11-bit groups of the master secret into
// words and back.
type wordList struct {
	words  [wordListSize]string
	rwords map[string]int
}

// registeredWordLists is populated by RegisterWordList; unlike the address
// manager's key derivation, the mnemonic dictionaries are data tables, not
// something the master secret determines, so they're supplied by whoever
// wants to use them. wordlist_english.go registers "english" in its own
// init(), the same way chaincfg registers its default network parameters;
// an embedding application can register additional languages the same way.
var registeredWordLists = make(map[string]*wordList)

// RegisterWordList installs a language's 2048-word mnemonic dictionary.
func RegisterWordList(language string, words [wordListSize]string) {
	rw := make(map[string]int, wordListSize)
	for i, w := range words {
		rw[w] = i
	}
	registeredWordLists[language] = &wordList{words: words, rwords: rw}
}

// ErrUnsupportedLanguage is raised when no word list has been registered
// for the requested language, and also when the master seed is too long
// to fit in the fixed mnemonic word count.
var ErrUnsupportedLanguage = Err.Code("ErrUnsupportedLanguage")

// GetSeedWords serializes the master secret to a mnemonic in the
// requested language. The master secret never changes for the life of the
// wallet (invariant 4 of the data model), so the words returned here are
// stable across calls.
func (m *Manager) GetSeedWords(language string) (string, er.R) {
	wl, ok := registeredWordLists[language]
	if !ok {
		return "", ErrUnsupportedLanguage.New(language, nil)
	}
	b := new(big.Int).SetBytes(m.seed)
	// Guard bit so leading zero groups still round-trip through the
	// fixed word count.
	guard := new(big.Int).Lsh(big.NewInt(1), uint(seedWordCount*11))
	b.Add(b, guard)

	words := make([]string, seedWordCount)
	mask := big.NewInt(wordListSize - 1)
	cur := new(big.Int)
	for i := 0; i < seedWordCount; i++ {
		cur.And(b, mask)
		words[i] = wl.words[cur.Uint64()]
		b.Rsh(b, 11)
	}
	if b.Cmp(big.NewInt(1)) != 0 {
		return "", ErrUnsupportedLanguage.New("master seed is too long to encode", nil)
	}
	return strings.Join(words, " "), nil
}
