package summarizer

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-digest-service/internal/domain"
	"github.com/helixir/paper-digest-service/internal/llm"
)

const quoteSource = "Recurrent models preclude parallelization within training examples. " +
	"We propose the Transformer,   a model architecture eschewing recurrence. " +
	"It reaches 28.4 BLEU on WMT 2014."

func TestSplitQuotes(t *testing.T) {
	answer := "- Recurrence is slow\n- Transformer uses attention only\n\n## Quotes\n" +
		"> \"We propose the Transformer, a model architecture eschewing recurrence.\"\n" +
		"> “It reaches 28.4 BLEU on WMT 2014.”\n" +
		"> \"Transformers are the best model ever built.\"\n" +
		"> \"It reaches 28.4 BLEU on WMT 2014.\"\n"

	notes, quotes := splitQuotes(answer, quoteSource)

	assert.Equal(t, "- Recurrence is slow\n- Transformer uses attention only", notes)
	assert.Equal(t, []string{
		"We propose the Transformer, a model architecture eschewing recurrence.",
		"It reaches 28.4 BLEU on WMT 2014.",
	}, quotes, "paraphrases and duplicates are dropped")
}

func TestSplitQuotes_NoBlock(t *testing.T) {
	notes, quotes := splitQuotes("  - just notes  ", quoteSource)
	assert.Equal(t, "- just notes", notes)
	assert.Nil(t, quotes)

	notes, quotes = splitQuotes("- notes\n### Quotes:\nNO_QUOTES", quoteSource)
	assert.Equal(t, "- notes", notes)
	assert.Nil(t, quotes)
}

func TestSplitQuotes_CapsPerChunk(t *testing.T) {
	source := "One. Two. Three. Four."
	notes, quotes := splitQuotes("n\n## Quotes\n> One.\n> Two.\n> Three.\n> Four.", source)
	assert.Equal(t, "n", notes)
	assert.Equal(t, []string{"One.", "Two.", "Three."}, quotes)
}

func TestGatherQuotes(t *testing.T) {
	partials := []domain.PartialSummary{
		{ChunkIndex: 0, Quotes: []string{"a", "b"}},
		{ChunkIndex: 1, Quotes: []string{"b", "c", "d"}},
	}
	got := gatherQuotes(partials, 3)
	assert.Equal(t, []domain.Quote{
		{Text: "a", ChunkIndex: 0},
		{Text: "b", ChunkIndex: 0},
		{Text: "c", ChunkIndex: 1},
	}, got)
}

func TestParseTranslations(t *testing.T) {
	got, err := parseTranslations("```json\n{\"translations\": [\"“一”\", \" 二 \"]}\n```", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"一", "二"}, got)

	_, err = parseTranslations(`{"translations": ["一"]}`, 2)
	assert.ErrorIs(t, err, errMalformedSections)

	_, err = parseTranslations("no json", 1)
	assert.ErrorIs(t, err, errMalformedSections)
}

func isQuoteTranslation(req llm.Request) bool {
	return strings.Contains(req.Prompt, "Translate each numbered quote")
}

// quotingCompleter quotes each chunk body verbatim in detailed mode.
func quotingCompleter(translations string) *fakeCompleter {
	return &fakeCompleter{fn: func(_ context.Context, req llm.Request) (*llm.Completion, error) {
		switch {
		case isQuoteTranslation(req):
			return text(translations), nil
		case isSectionPass(req):
			return text(sectionsJSON), nil
		case chunkOf(req) >= 0:
			i := chunkOf(req)
			return text(fmt.Sprintf("summary %d\n\n## Quotes\n> \"chunk body %d.\"", i, i)), nil
		default:
			return text("merged narrative"), nil
		}
	}}
}

func TestSummarize_DetailedKeepsVerbatimQuotes(t *testing.T) {
	fc := quotingCompleter("")
	e := New(Config{}, fc, WithRetryPolicy(instantPolicy()))

	res, err := e.Summarize(context.Background(), makeChunks(2), domain.ModeDetailed, domain.LanguageEnglish)
	require.NoError(t, err)

	assert.Equal(t, []domain.Quote{
		{Text: "chunk body 0.", ChunkIndex: 0},
		{Text: "chunk body 1.", ChunkIndex: 1},
	}, res.Summary.Quotes)
	assert.Equal(t, "summary 0", res.Partials[0].Text, "quotes are cut from the notes")
	assert.Contains(t, fc.calls()[0].Prompt, quoteTask)
	for _, req := range fc.calls() {
		assert.False(t, isQuoteTranslation(req), "english reports need no translation")
	}
}

func TestSummarize_DetailedTranslatesQuotes(t *testing.T) {
	fc := quotingCompleter(`{"translations": ["块 0", "块 1"]}`)
	e := New(Config{}, fc, WithRetryPolicy(instantPolicy()))

	res, err := e.Summarize(context.Background(), makeChunks(2), domain.ModeDetailed, domain.LanguageChinese)
	require.NoError(t, err)

	require.Len(t, res.Summary.Quotes, 2)
	assert.Equal(t, "chunk body 0.", res.Summary.Quotes[0].Text)
	assert.Equal(t, "块 0", res.Summary.Quotes[0].Translation)
	assert.Equal(t, "块 1", res.Summary.Quotes[1].Translation)
	// chunks, merge, sections, translation
	assert.Equal(t, 5, res.Calls)
}

func TestSummarize_QuoteTranslationCountMismatchFails(t *testing.T) {
	fc := quotingCompleter(`{"translations": ["only one"]}`)
	e := New(Config{}, fc, WithRetryPolicy(instantPolicy()))

	_, err := e.Summarize(context.Background(), makeChunks(2), domain.ModeDetailed, domain.LanguageGerman)
	require.Error(t, err)

	var summErr *domain.SummarizationError
	require.ErrorAs(t, err, &summErr)
	assert.Equal(t, domain.RunStateConsolidating, summErr.Phase)

	translations := 0
	for _, req := range fc.calls() {
		if isQuoteTranslation(req) {
			translations++
		}
	}
	assert.Equal(t, instantPolicy().MaxAttempts, translations)
}

func TestSummarize_SimpleModeHasNoQuotes(t *testing.T) {
	fc := quotingCompleter("")
	e := New(Config{}, fc, WithRetryPolicy(instantPolicy()))

	res, err := e.Summarize(context.Background(), makeChunks(2), domain.ModeSimple, domain.LanguageChinese)
	require.NoError(t, err)

	assert.Empty(t, res.Summary.Quotes)
	assert.NotContains(t, fc.calls()[0].Prompt, quoteTask)
}
