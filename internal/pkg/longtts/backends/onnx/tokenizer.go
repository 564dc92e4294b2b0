package onnx

import (
	"encoding/json"
	"fmt"
	"os"
	"unicode/utf8"
)

const (
	padID int64 = 0
	bosID int64 = 1
	eosID int64 = 2
	unkID int64 = 3
)

// Tokenizer maps text to vocabulary ids by greedy longest match.
type Tokenizer struct {
	tokenToID map[string]int64
	maxLen    int
}

func NewTokenizer(vocabPath string) (*Tokenizer, error) {
	data, err := os.ReadFile(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocab file: %w", err)
	}

	var vocab map[string]int64
	if err := json.Unmarshal(data, &vocab); err != nil {
		return nil, fmt.Errorf("failed to parse vocab JSON: %w", err)
	}

	return newTokenizer(vocab), nil
}

func newTokenizer(vocab map[string]int64) *Tokenizer {
	t := &Tokenizer{tokenToID: make(map[string]int64, len(vocab))}
	for token, id := range vocab {
		if token == "" {
			continue
		}
		t.tokenToID[token] = id
		if len(token) > t.maxLen {
			t.maxLen = len(token)
		}
	}
	return t
}

// Encode wraps the ids in BOS/EOS. Characters not covered by any token map
// to UNK one rune at a time.
func (t *Tokenizer) Encode(text string) []int64 {
	ids := make([]int64, 0, len(text)+2)
	ids = append(ids, bosID)

	for remaining := text; len(remaining) > 0; {
		n := min(t.maxLen, len(remaining))
		matched := false
		for ; n > 0; n-- {
			if id, ok := t.tokenToID[remaining[:n]]; ok {
				ids = append(ids, id)
				remaining = remaining[n:]
				matched = true
				break
			}
		}
		if !matched {
			_, size := utf8.DecodeRuneInString(remaining)
			ids = append(ids, unkID)
			remaining = remaining[size:]
		}
	}

	return append(ids, eosID)
}

func (t *Tokenizer) VocabSize() int {
	return len(t.tokenToID)
}
