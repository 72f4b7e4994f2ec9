package summarizer

import (
	"fmt"
	"strings"

	"github.com/helixir/paper-digest-service/internal/domain"
)

const systemPrompt = "You are an AI research assistant who writes accurate, well-organized notes " +
	"about machine learning and scientific papers. You never invent results that are not in the text."

// modeStrategy holds everything that differs between simple and detailed runs.
type modeStrategy struct {
	// chunkTask instructs the per-chunk call.
	chunkTask string
	// mergeTask instructs the consolidation call over several partials.
	mergeTask string
	// polishTask instructs the optional call over a single partial.
	polishTask string
	// outputShare scales the consolidation token budget.
	outputShare float64
	// sectionPass enables the labeled section extraction pass.
	sectionPass bool
	// quotes asks chunk calls for verbatim quotes and keeps them.
	quotes bool
}

var modeStrategies = map[domain.Mode]modeStrategy{
	domain.ModeSimple: {
		chunkTask: "Extract the essential points of this excerpt as terse bullet points. " +
			"Cover the problem, the proposed approach and any reported numbers. " +
			"Use at most six bullets of one sentence each.",
		mergeTask: "The notes below were taken over consecutive parts of one paper. " +
			"Merge them into a single short summary of one or two paragraphs without repetition. " +
			"Keep the order in which the paper presents its material.",
		polishTask: "Rewrite the notes below as a short, clean summary of one or two paragraphs. " +
			"Do not add information.",
		outputShare: 0.5,
	},
	domain.ModeDetailed: {
		chunkTask: "Write structured notes on this excerpt covering, where present: " +
			"the motivation and problem, the method and its theoretical basis, " +
			"experimental setup and results with numbers, and limitations or assumptions. " +
			"Use short headed bullet lists and skip headings the excerpt says nothing about.",
		mergeTask: "The notes below were taken over consecutive parts of one paper. " +
			"Merge them into one coherent, non-redundant narrative of several paragraphs. " +
			"Keep the order in which the paper presents its material and keep every concrete result.",
		polishTask: "Rewrite the notes below as one coherent narrative of several paragraphs. " +
			"Do not add information.",
		outputShare: 1.0,
		sectionPass: true,
		quotes:      true,
	},
}

// languageStrategy is the output language directive appended to every prompt.
type languageStrategy struct {
	directive string
}

const terminologyRule = "Preserve the original meaning as closely as possible, " +
	"use terminology common among AI researchers and keep technical terms, model names " +
	"and dataset names in English where translating them would be unusual."

var languageStrategies = map[domain.Language]languageStrategy{
	domain.LanguageEnglish: {directive: "Write your answer in English."},
	domain.LanguageChinese: {directive: "Write your answer in Simplified Chinese (简体中文). " + terminologyRule},
	domain.LanguageJapanese: {directive: "Write your answer in Japanese (日本語) using the plain style. " +
		terminologyRule},
	domain.LanguageKorean:  {directive: "Write your answer in Korean (한국어). " + terminologyRule},
	domain.LanguageGerman:  {directive: "Write your answer in German (Deutsch). " + terminologyRule},
	domain.LanguageFrench:  {directive: "Write your answer in French (Français). " + terminologyRule},
	domain.LanguageSpanish: {directive: "Write your answer in Spanish (Español). " + terminologyRule},
}

func strategiesFor(mode domain.Mode, lang domain.Language) (modeStrategy, languageStrategy, error) {
	ms, ok := modeStrategies[mode]
	if !ok {
		return modeStrategy{}, languageStrategy{}, domain.NewConfigurationError("mode", string(mode), "must be one of simple, detailed")
	}
	ls, ok := languageStrategies[lang]
	if !ok {
		return modeStrategy{}, languageStrategy{}, domain.NewConfigurationError("language", string(lang), "unsupported language")
	}
	return ms, ls, nil
}

func chunkPrompt(ms modeStrategy, ls languageStrategy, chunk domain.Chunk, total int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Task\n%s\n", ms.chunkTask)
	if ms.quotes {
		fmt.Fprintf(&b, "%s\n", quoteTask)
	}
	fmt.Fprintf(&b, "%s\n\n", ls.directive)
	fmt.Fprintf(&b, "## Excerpt %d of %d\n```\n%s\n```", chunk.Index+1, total, strings.TrimSpace(chunk.Text))
	return b.String()
}

func mergePrompt(ms modeStrategy, ls languageStrategy, partials []domain.PartialSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Task\n%s\n%s\n\n", ms.mergeTask, ls.directive)
	for i, p := range partials {
		fmt.Fprintf(&b, "### Part %d\n%s\n\n", i+1, strings.TrimSpace(p.Text))
	}
	return strings.TrimRight(b.String(), "\n")
}

func polishPrompt(ms modeStrategy, ls languageStrategy, text string) string {
	return fmt.Sprintf("## Task\n%s\n%s\n\n## Notes\n%s", ms.polishTask, ls.directive, text)
}

func sectionsPrompt(ls languageStrategy, labels []string, summary string) string {
	var b strings.Builder
	b.WriteString("## Task\nSplit the paper summary below into labeled sections. ")
	b.WriteString("Answer with a single JSON object whose keys are exactly the following labels, in this order:\n")
	for _, l := range labels {
		fmt.Fprintf(&b, "- %q\n", l)
	}
	b.WriteString("Each value is a string. Use an empty string when the summary says nothing about a label. ")
	b.WriteString("Keep the keys in English. ")
	b.WriteString(ls.directive)
	b.WriteString("\n\n## Response Format\n```json\n{")
	for i, l := range labels {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q: \"str\"", l)
	}
	b.WriteString("}\n```\n\n## Summary\n")
	b.WriteString(summary)
	return b.String()
}
