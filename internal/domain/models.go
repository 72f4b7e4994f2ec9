// Package domain provides the entities, enumerations and typed errors of the
// paper digest pipeline.
package domain

import (
	"strings"
)

// Mode selects summarization depth and report structure.
type Mode string

const (
	ModeSimple   Mode = "simple"
	ModeDetailed Mode = "detailed"
)

// Modes returns every supported mode.
func Modes() []Mode {
	return []Mode{ModeSimple, ModeDetailed}
}

// Valid reports whether m is a supported mode.
func (m Mode) Valid() bool {
	return m == ModeSimple || m == ModeDetailed
}

// ParseMode parses a mode selector. Matching is case-insensitive.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", NewConfigurationError("mode", s, "must be one of simple, detailed")
	}
	return m, nil
}

// Language is an output language from a closed set.
type Language string

const (
	LanguageEnglish  Language = "en"
	LanguageChinese  Language = "zh"
	LanguageJapanese Language = "ja"
	LanguageKorean   Language = "ko"
	LanguageGerman   Language = "de"
	LanguageFrench   Language = "fr"
	LanguageSpanish  Language = "es"
)

type languageInfo struct {
	name   string
	native string
}

var (
	languageOrder = []Language{
		LanguageEnglish, LanguageChinese, LanguageJapanese, LanguageKorean,
		LanguageGerman, LanguageFrench, LanguageSpanish,
	}
	languages = map[Language]languageInfo{
		LanguageEnglish:  {name: "English", native: "English"},
		LanguageChinese:  {name: "Chinese", native: "中文"},
		LanguageJapanese: {name: "Japanese", native: "日本語"},
		LanguageKorean:   {name: "Korean", native: "한국어"},
		LanguageGerman:   {name: "German", native: "Deutsch"},
		LanguageFrench:   {name: "French", native: "Français"},
		LanguageSpanish:  {name: "Spanish", native: "Español"},
	}
)

// Languages returns every supported language in a stable order.
func Languages() []Language {
	out := make([]Language, len(languageOrder))
	copy(out, languageOrder)
	return out
}

// Valid reports whether l is a supported language.
func (l Language) Valid() bool {
	_, ok := languages[l]
	return ok
}

// DisplayName returns the English name of the language.
func (l Language) DisplayName() string {
	return languages[l].name
}

// NativeName returns the language's name written in that language.
func (l Language) NativeName() string {
	return languages[l].native
}

// ParseLanguage accepts an ISO 639-1 code, an English name or a native name.
func ParseLanguage(s string) (Language, error) {
	key := strings.TrimSpace(s)
	for _, l := range languageOrder {
		info := languages[l]
		if strings.EqualFold(key, string(l)) || strings.EqualFold(key, info.name) || key == info.native {
			return l, nil
		}
	}
	return "", NewConfigurationError("language", s, "unsupported language")
}

// RunState is the state of a summarization run.
type RunState string

const (
	RunStatePending          RunState = "PENDING"
	RunStateChunkSummarizing RunState = "CHUNK_SUMMARIZING"
	RunStateConsolidating    RunState = "CONSOLIDATING"
	RunStateDone             RunState = "DONE"
	RunStateFailed           RunState = "FAILED"
)

// IsTerminal returns true if the state will not change.
func (s RunState) IsTerminal() bool {
	return s == RunStateDone || s == RunStateFailed
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s RunState) CanTransitionTo(next RunState) bool {
	switch s {
	case RunStatePending:
		return next == RunStateChunkSummarizing
	case RunStateChunkSummarizing:
		return next == RunStateConsolidating || next == RunStateFailed
	case RunStateConsolidating:
		return next == RunStateDone || next == RunStateFailed
	default:
		return false
	}
}

// Stage names a pipeline step. Used to label failures.
type Stage string

const (
	StageConfigure   Stage = "configure"
	StageResolve     Stage = "resolve"
	StageFetch       Stage = "fetch"
	StageExtract     Stage = "extract"
	StageChunk       Stage = "chunk"
	StageSummarize   Stage = "summarize"
	StageConsolidate Stage = "consolidate"
	StageAssemble    Stage = "assemble"
	StageUnknown     Stage = "unknown"
)

// FetchStage identifies which remote sub-fetch of the resolver failed.
type FetchStage string

const (
	FetchStageMetadata FetchStage = "metadata"
	FetchStageContent  FetchStage = "content"
)
