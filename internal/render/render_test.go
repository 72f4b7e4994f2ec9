package render

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/helixir/paper-digest-service/internal/domain"
)

func testReport(mode domain.Mode) *domain.Report {
	r := &domain.Report{
		ID: domain.ReportID("1706.03762", mode, domain.LanguageEnglish),
		Paper: domain.PaperMetadata{
			ID:              "1706.03762",
			Title:           "Attention Is All You Need",
			Authors:         []string{"Ashish Vaswani", "Noam Shazeer"},
			Published:       time.Date(2017, 6, 12, 0, 0, 0, 0, time.UTC),
			CanonicalURL:    "https://arxiv.org/abs/1706.03762",
			PrimaryCategory: "cs.CL",
		},
		Version: "v7",
		Summary: domain.ConsolidatedSummary{
			Text:     "The Transformer relies entirely on attention.",
			Mode:     mode,
			Language: domain.LanguageEnglish,
		},
		References: []string{"1409.0473"},
		Stats:      domain.RunStats{Chunks: 2, LLMCalls: 4, Model: "claude"},
		CreatedAt:  time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	if mode == domain.ModeDetailed {
		for _, l := range domain.SectionLabels(mode) {
			r.Summary.Sections = append(r.Summary.Sections, domain.Section{Label: l})
		}
		r.Summary.Sections[0].Text = "Recurrence is sequential."
	}
	return r
}

func TestNew(t *testing.T) {
	for format, want := range map[string]Renderer{
		"":         Markdown{},
		"Markdown": Markdown{},
		"md":       Markdown{},
		"json":     JSON{},
		"YAML":     YAML{},
		"yml":      YAML{},
	} {
		got, err := New(format)
		require.NoError(t, err, format)
		assert.Equal(t, want, got, format)
	}

	_, err := New("pdf")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestMarkdown_Simple(t *testing.T) {
	out, err := Markdown{}.Render(testReport(domain.ModeSimple))
	require.NoError(t, err)
	md := string(out)

	assert.True(t, strings.HasPrefix(md, "# Attention Is All You Need ([arXiv](https://arxiv.org/abs/1706.03762))\n"))
	assert.Contains(t, md, "- **Authors:** Ashish Vaswani, Noam Shazeer\n")
	assert.Contains(t, md, "- **Published:** 2017-06-12\n")
	assert.Contains(t, md, "- **arXiv:** 1706.03762v7\n")
	assert.Contains(t, md, "## Key Highlights\n\nThe Transformer relies entirely on attention.\n")
	assert.NotContains(t, md, "Comprehensive Analysis")
	assert.Contains(t, md, "- [1409.0473](https://arxiv.org/abs/1409.0473)\n")
	assert.True(t, strings.HasSuffix(md, "\n"))
	assert.False(t, strings.HasSuffix(md, "\n\n"))
}

func TestMarkdown_Detailed(t *testing.T) {
	out, err := Markdown{}.Render(testReport(domain.ModeDetailed))
	require.NoError(t, err)
	md := string(out)

	assert.Contains(t, md, "## Comprehensive Analysis\n")
	assert.Contains(t, md, "### Motivation\n\nRecurrence is sequential.\n")
	assert.Contains(t, md, "### Future Work\n\n_Not covered._\n")

	prev := 0
	for _, l := range domain.SectionLabels(domain.ModeDetailed) {
		i := strings.Index(md, "### "+l)
		require.Greater(t, i, prev, l)
		prev = i
	}
}

func TestMarkdown_LocalizedHeadings(t *testing.T) {
	tests := []struct {
		lang       domain.Language
		highlights string
		analysis   string
		section    string
		notCovered string
		references string
	}{
		{domain.LanguageChinese, "## 核心要点\n", "## 深度分析\n", "### 研究动机\n", "_未涉及。_", "## 引用的 arXiv 论文\n"},
		{domain.LanguageJapanese, "## 主なポイント\n", "## 詳細分析\n", "### 研究の動機\n", "_記載なし。_", "## 引用された arXiv 論文\n"},
		{domain.LanguageGerman, "## Kernpunkte\n", "## Ausführliche Analyse\n", "### Motivation\n", "_Nicht behandelt._", "## Zitierte arXiv-Arbeiten\n"},
	}

	for _, tt := range tests {
		t.Run(string(tt.lang), func(t *testing.T) {
			r := testReport(domain.ModeDetailed)
			r.Summary.Language = tt.lang

			out, err := Markdown{}.Render(r)
			require.NoError(t, err)
			md := string(out)

			assert.Contains(t, md, tt.highlights)
			assert.Contains(t, md, tt.analysis)
			assert.Contains(t, md, tt.section)
			assert.Contains(t, md, tt.notCovered)
			assert.Contains(t, md, tt.references)
			assert.NotContains(t, md, "Key Highlights")
			assert.NotContains(t, md, "Comprehensive Analysis")
			assert.NotContains(t, md, "Not covered")
			assert.NotContains(t, md, "Cited arXiv Papers")
		})
	}
}

func TestMarkdown_EveryLanguageHasHeadings(t *testing.T) {
	for _, l := range domain.Languages() {
		h, ok := headingTable[l]
		require.True(t, ok, l)
		assert.NotEmpty(t, h.highlights, l)
		assert.NotEmpty(t, h.quotes, l)
		for _, label := range domain.SectionLabels(domain.ModeDetailed) {
			assert.NotEmpty(t, h.section(label), l)
		}
	}
}

func TestMarkdown_Quotes(t *testing.T) {
	r := testReport(domain.ModeDetailed)
	r.Summary.Language = domain.LanguageChinese
	r.Summary.Quotes = []domain.Quote{
		{Text: "We propose the Transformer.", Translation: "我们提出了 Transformer。", ChunkIndex: 0},
		{Text: "28.4 BLEU", ChunkIndex: 1},
	}

	out, err := Markdown{}.Render(r)
	require.NoError(t, err)
	md := string(out)

	assert.Contains(t, md, "## 原文摘录\n\n> We propose the Transformer.\n>\n> 我们提出了 Transformer。\n\n> 28.4 BLEU\n\n")
	assert.Less(t, strings.Index(md, "## 深度分析"), strings.Index(md, "## 原文摘录"))
	assert.Less(t, strings.Index(md, "## 原文摘录"), strings.Index(md, "## 引用的 arXiv 论文"))

	r.Summary.Quotes = nil
	out, err = Markdown{}.Render(r)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "原文摘录")
}

func TestJSON_RoundTripsKeyFields(t *testing.T) {
	out, err := JSON{}.Render(testReport(domain.ModeDetailed))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(out, &got))
	paper := got["paper"].(map[string]any)
	assert.Equal(t, "1706.03762", paper["arxiv_id"])
	summary := got["summary"].(map[string]any)
	assert.Len(t, summary["sections"], 6)
	assert.Equal(t, "detailed", summary["mode"])
}

func TestYAML(t *testing.T) {
	r := testReport(domain.ModeSimple)
	out, err := YAML{}.Render(r)
	require.NoError(t, err)

	assert.Contains(t, string(out), "id: "+r.ID.String())
	assert.Contains(t, string(out), "  title: Attention Is All You Need")

	var got struct {
		Paper struct {
			ID string `yaml:"arxiv_id"`
		} `yaml:"paper"`
		Summary struct {
			Mode     string `yaml:"mode"`
			Sections []any  `yaml:"sections"`
		} `yaml:"summary"`
	}
	require.NoError(t, yaml.Unmarshal(out, &got))
	assert.Equal(t, "1706.03762", got.Paper.ID)
	assert.Equal(t, "simple", got.Summary.Mode)
	assert.Empty(t, got.Summary.Sections)
}

func TestOutputPath(t *testing.T) {
	r := testReport(domain.ModeDetailed)
	r.Summary.Language = domain.LanguageChinese

	// 2026-01-01 falls in ISO week 1 of 2026.
	got := OutputPath("papers", r, "md")
	assert.Equal(t, filepath.Join("papers", "2026", "week_01", "Attention_Is_All_You_Need_ZH_detailed.md"), got)

	r.CreatedAt = time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Contains(t, OutputPath("out", r, "json"), filepath.Join("2026", "week_53"))
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	r := testReport(domain.ModeSimple)

	path, err := WriteFile(dir, r, Markdown{})
	require.NoError(t, err)
	assert.Equal(t, OutputPath(dir, r, "md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Attention Is All You Need")

	// A rerun replaces the file.
	r.Summary.Text = "second run"
	_, err = WriteFile(dir, r, Markdown{})
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "second run")
}

func TestSafeTitle(t *testing.T) {
	assert.Equal(t, "BERT_Pre-training_of_Deep_Bidirectional_Transformers", safeTitle("BERT: Pre-training of Deep Bidirectional Transformers", "x"))
	assert.Equal(t, "hep-th_9901001", safeTitle("  ?? ", "hep-th/9901001"))
	assert.Len(t, []rune(safeTitle(strings.Repeat("a", 200), "x")), maxTitleLen)
	assert.Equal(t, "注意力机制", safeTitle("注意力机制!", "x"))
}
