// Package chunker splits normalized paper text into token-bounded chunks
// along sentence boundaries.
package chunker

import (
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/helixir/paper-digest-service/internal/domain"
)

// Chunker splits text with a fixed budget and counter.
type Chunker struct {
	MaxTokens int
	Counter   TokenCounter
}

// New returns a Chunker. maxTokens must be positive.
func New(maxTokens int, counter TokenCounter) (*Chunker, error) {
	if maxTokens < 1 {
		return nil, domain.NewConfigurationError("chunker.max_tokens", strconv.Itoa(maxTokens), "must be at least 1")
	}
	if counter == nil {
		counter = HeuristicCounter{}
	}
	return &Chunker{MaxTokens: maxTokens, Counter: counter}, nil
}

// Split is Chunk with the chunker's budget and counter.
func (c *Chunker) Split(text string) []domain.Chunk {
	return Chunk(text, c.MaxTokens, c.Counter)
}

// Chunk splits text into ordered chunks of at most maxTokens each, as
// measured by counter.
//
// Sentences are accumulated greedily. A sentence that alone exceeds the
// budget is split at the last word boundary that fits, or at a rune boundary
// when no word boundary does. A single rune over budget becomes its own chunk.
// Concatenating the chunk texts in order reproduces text exactly. Empty or
// whitespace-only text yields no chunks.
func Chunk(text string, maxTokens int, counter TokenCounter) []domain.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if maxTokens < 1 {
		maxTokens = 1
	}
	if counter == nil {
		counter = HeuristicCounter{}
	}

	var chunks []domain.Chunk
	emit := func(s string) {
		chunks = append(chunks, domain.Chunk{
			Index:  len(chunks),
			Text:   s,
			Tokens: counter.Count(s),
		})
	}

	current := ""
	for _, sentence := range Sentences(text) {
		if counter.Count(current+sentence) <= maxTokens {
			current += sentence
			continue
		}
		if current != "" {
			emit(current)
			current = ""
		}
		if counter.Count(sentence) <= maxTokens {
			current = sentence
			continue
		}

		pieces := hardSplit(sentence, maxTokens, counter)
		for _, p := range pieces[:len(pieces)-1] {
			emit(p)
		}
		current = pieces[len(pieces)-1]
	}
	if current != "" {
		emit(current)
	}
	return chunks
}

// splitWindowBytesPerToken bounds how far past a cut hardSplit looks. No
// supported counter yields fewer tokens than one per eight bytes of text.
const splitWindowBytesPerToken = 8

// hardSplit cuts an oversized sentence into pieces that each fit, except a
// lone rune that cannot. Each cut only scans a window of the remaining text,
// so a long run without terminators splits in linear time.
func hardSplit(s string, maxTokens int, counter TokenCounter) []string {
	window := maxTokens * splitWindowBytesPerToken
	var pieces []string
	for s != "" {
		head := s
		if len(head) > window {
			head = head[:runeFloor(head, window)]
		}
		if len(head) == len(s) && counter.Count(s) <= maxTokens {
			pieces = append(pieces, s)
			break
		}

		cut := largestFit(wordBoundaries(head), head, maxTokens, counter)
		if cut == 0 {
			runes := runeBoundaries(head)
			if len(head) < len(s) {
				runes = append(runes, len(head))
			}
			cut = largestFit(runes, head, maxTokens, counter)
		}
		if cut == 0 {
			_, cut = utf8.DecodeRuneInString(s)
		}
		pieces = append(pieces, s[:cut])
		s = s[cut:]
	}
	return pieces
}

// runeFloor moves i back to the start of the rune it falls in.
func runeFloor(s string, i int) int {
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// largestFit returns the largest candidate cut whose prefix fits, or 0.
// Candidates are ascending byte offsets.
func largestFit(candidates []int, s string, maxTokens int, counter TokenCounter) int {
	n := sort.Search(len(candidates), func(i int) bool {
		return counter.Count(s[:candidates[i]]) > maxTokens
	})
	if n == 0 {
		return 0
	}
	return candidates[n-1]
}

// wordBoundaries returns the offsets just after each whitespace run, short of
// the end of s.
func wordBoundaries(s string) []int {
	var cuts []int
	prevSpace := false
	for i, r := range s {
		space := unicode.IsSpace(r)
		if prevSpace && !space {
			cuts = append(cuts, i)
		}
		prevSpace = space
	}
	return cuts
}

func runeBoundaries(s string) []int {
	cuts := make([]int, 0, len(s))
	for i := range s {
		if i > 0 {
			cuts = append(cuts, i)
		}
	}
	return cuts
}
