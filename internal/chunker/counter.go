package chunker

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/helixir/paper-digest-service/internal/domain"
)

// TokenCounter estimates how many model tokens a text occupies. Counts must
// be monotonic: a prefix never counts more than the whole.
type TokenCounter interface {
	Count(text string) int
}

// Counter names accepted by NewCounter.
const (
	CounterAuto      = "auto"
	CounterHeuristic = "heuristic"
	CounterWords     = "words"
	CounterTiktoken  = "tiktoken"
)

// CounterFor resolves CounterAuto for an LLM provider: OpenAI models are
// measured with their own tokenizer, others with the heuristic. Any other
// name is returned unchanged.
func CounterFor(name, provider string) string {
	if name != CounterAuto {
		return name
	}
	if provider == "openai" {
		return CounterTiktoken
	}
	return CounterHeuristic
}

// NewCounter returns the counter registered under name. encoding selects the
// BPE for CounterTiktoken and is ignored otherwise.
func NewCounter(name, encoding string) (TokenCounter, error) {
	switch name {
	case "", CounterHeuristic:
		return HeuristicCounter{}, nil
	case CounterWords:
		return WordCounter{}, nil
	case CounterTiktoken:
		c, err := NewTiktokenCounter(encoding)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, domain.NewConfigurationError("chunker.counter", name,
			fmt.Sprintf("must be one of %s, %s, %s, %s", CounterAuto, CounterHeuristic, CounterWords, CounterTiktoken))
	}
}

// HeuristicCounter approximates BPE tokenizers: about four bytes per token
// for alphabetic scripts and one token per CJK character.
type HeuristicCounter struct{}

// Count implements TokenCounter.
func (HeuristicCounter) Count(text string) int {
	tokens, other := 0, 0
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if isCJK(r) {
			tokens++
		} else {
			other += size
		}
		i += size
	}
	return tokens + (other+3)/4
}

// WordCounter counts whitespace-separated words, each CJK character as one.
type WordCounter struct{}

// Count implements TokenCounter.
func (WordCounter) Count(text string) int {
	count := 0
	inWord := false
	for _, r := range text {
		switch {
		case isCJK(r):
			count++
			inWord = false
		case unicode.IsSpace(r):
			inWord = false
		case !inWord:
			count++
			inWord = true
		}
	}
	return count
}

func isCJK(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}
