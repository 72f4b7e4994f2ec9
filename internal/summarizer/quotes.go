package summarizer

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/helixir/paper-digest-service/internal/domain"
)

const (
	maxQuotesPerChunk = 3
	noQuotesFlag      = "NO_QUOTES"
)

const quoteTask = "After the notes, add a line `## Quotes` followed by at most three short passages " +
	"copied word for word from the excerpt that state the problem addressed, the proposed method " +
	"or a major finding, one per line as `> \"passage\"`. Keep the passages in the excerpt's " +
	"language. If the excerpt is an abstract, references, acknowledgements or otherwise " +
	"unimportant, write `" + noQuotesFlag + "` under the heading instead."

// quoteMarks are trimmed from both ends of a quote.
const quoteMarks = "\"'“”‘’«»「」"

var quotesHeading = regexp.MustCompile(`(?im)^[ \t]*#{1,4}[ \t]*quotes[ \t]*:?[ \t]*$`)

// splitQuotes separates the notes of a chunk answer from its quotes block.
// A quote is kept only when it occurs in source, compared with whitespace
// collapsed, so paraphrases never pass as quotes.
func splitQuotes(answer, source string) (notes string, quotes []string) {
	locs := quotesHeading.FindAllStringIndex(answer, -1)
	if len(locs) == 0 {
		return strings.TrimSpace(answer), nil
	}
	last := locs[len(locs)-1]
	notes = strings.TrimSpace(answer[:last[0]])
	if notes == "" {
		notes = strings.TrimSpace(answer)
	}

	haystack := collapseSpace(source)
	seen := make(map[string]bool)
	for _, line := range strings.Split(answer[last[1]:], "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, ">") {
			continue
		}
		q := strings.Trim(strings.TrimSpace(strings.TrimLeft(line, "> ")), quoteMarks)
		q = collapseSpace(q)
		if q == "" || q == noQuotesFlag || seen[q] || !strings.Contains(haystack, q) {
			continue
		}
		seen[q] = true
		quotes = append(quotes, q)
		if len(quotes) == maxQuotesPerChunk {
			break
		}
	}
	return notes, quotes
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// gatherQuotes lists the quotes of ordered partials, first occurrence wins,
// capped at limit.
func gatherQuotes(partials []domain.PartialSummary, limit int) []domain.Quote {
	var out []domain.Quote
	seen := make(map[string]bool)
	for _, p := range partials {
		for _, q := range p.Quotes {
			if seen[q] {
				continue
			}
			seen[q] = true
			out = append(out, domain.Quote{Text: q, ChunkIndex: p.ChunkIndex})
			if len(out) == limit {
				return out
			}
		}
	}
	return out
}

func translateQuotesPrompt(lang domain.Language, quotes []domain.Quote) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Task\nTranslate each numbered quote below into %s. ", lang.DisplayName())
	b.WriteString("Preserve the original meaning as closely as possible, use terminology common among " +
		"data scientists and AI researchers and avoid over-translation: keep terms intact where applicable. ")
	fmt.Fprintf(&b, "Answer with a single JSON object holding %d translations in the same order.\n\n", len(quotes))
	b.WriteString("## Response Format\n```json\n{\"translations\": [\"str\"]}\n```\n\n## Quotes\n")
	for i, q := range quotes {
		fmt.Fprintf(&b, "%d. %s\n", i+1, q.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

// parseTranslations decodes the translation answer. A count that does not
// match the quotes is malformed, since translations are matched by position.
func parseTranslations(answer string, want int) ([]string, error) {
	raw, ok := extractJSONObject(answer)
	if !ok {
		return nil, errMalformedSections
	}
	var obj struct {
		Translations []string `json:"translations"`
	}
	if err := json.Unmarshal([]byte(escapeBareNewlines(raw)), &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedSections, err)
	}
	if len(obj.Translations) != want {
		return nil, fmt.Errorf("%w: %d translations for %d quotes", errMalformedSections, len(obj.Translations), want)
	}
	out := make([]string, want)
	for i, t := range obj.Translations {
		out[i] = strings.Trim(strings.TrimSpace(t), quoteMarks)
	}
	return out, nil
}
