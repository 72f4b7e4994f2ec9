package extract

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", " \n\t \n ", ""},
		{"collapses spaces", "a   b\t\tc", "a b c"},
		{"joins wrapped lines", "first line\nsecond line", "first line second line"},
		{"keeps paragraph breaks", "para one.\n\n\n  para two.", "para one.\n\npara two."},
		{"crlf", "one\r\n\r\ntwo", "one\n\ntwo"},
		{"dehyphenates wrap", "inter-\nnational results", "international results"},
		{"keeps compound before capital", "Transformer-\nBased", "Transformer- Based"},
		{"drops soft hyphen and zero width", "trans\u00adformer\u200b model", "transformer model"},
		{"drops control runes", "a\x00b\x07c", "abc"},
		{"form feed between pages", "page one\n\f\npage two", "page one\n\npage two"},
		{"cjk untouched", "注意力机制。\n\n实验结果。", "注意力机制。\n\n实验结果。"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"Deep  learning-\nbased methods.\n\n\nWe propose   a model.\r\nIt works.",
		"  leading and trailing  \n\n",
		"single",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once))
		assert.NotContains(t, strings.ReplaceAll(once, "\n\n", ""), "\n")
	}
}

func TestRuneCount(t *testing.T) {
	assert.Equal(t, 0, RuneCount(" \n\n "))
	assert.Equal(t, 5, RuneCount("ab c\n\nde"))
	assert.Equal(t, 3, RuneCount("注意 力"))
}

const arxivHTML = `<!DOCTYPE html>
<html lang="en"><head><title>Attention Is All You Need</title>
<script>var tracking = true;</script></head>
<body>
<nav><a href="/">arXiv</a> | <a href="/list">Listing</a></nav>
<article class="ltx_document">
<h1 class="ltx_title">Attention Is All You Need</h1>
<section>
<h2>1 Introduction</h2>
<p>Recurrent neural networks, long short-term memory and gated recurrent neural networks
in particular, have been firmly established as state of the art approaches in sequence
modeling and transduction problems such as language modeling and machine translation.</p>
<p>In this work we propose the Transformer, a model architecture eschewing recurrence and
instead relying entirely on an attention mechanism to draw global dependencies between input
and output.</p>
<ul><li>We introduce scaled dot-product attention.</li><li><p>We introduce multi-head attention.</p></li></ul>
<figure><img src="x.png"><figcaption>Figure 1: The Transformer model architecture.</figcaption></figure>
</section>
</article>
<footer>Footer links</footer>
</body></html>`

func TestHTMLExtractor_Extract(t *testing.T) {
	text, err := HTMLExtractor{BaseURL: "https://arxiv.org/html/1706.03762v7"}.Extract(context.Background(), []byte(arxivHTML))
	require.NoError(t, err)

	assert.Contains(t, text, "In this work we propose the Transformer")
	assert.Contains(t, text, "scaled dot-product attention")
	assert.NotContains(t, text, "tracking")
	assert.Equal(t, 1, strings.Count(text, "We introduce multi-head attention."))
	assert.Contains(t, text, "\n\n")
	assert.Equal(t, text, Normalize(text))
}

func TestHTMLExtractor_PlainBody(t *testing.T) {
	text, err := HTMLExtractor{}.Extract(context.Background(), []byte("<html><body>just some text</body></html>"))
	require.NoError(t, err)
	assert.Equal(t, "just some text", text)
}

func TestHTMLExtractor_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := HTMLExtractor{}.Extract(ctx, []byte(arxivHTML))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPDFExtractor_Unreadable(t *testing.T) {
	_, err := PDFExtractor{}.Extract(context.Background(), []byte("not a pdf"))
	assert.Error(t, err)
}

func TestLanguageDetector(t *testing.T) {
	d := NewLanguageDetector()

	tests := []struct {
		name string
		text string
		want string
	}{
		{"english", "We propose a new simple network architecture based solely on attention mechanisms, dispensing with recurrence and convolutions entirely.", "en"},
		{"german", "Wir schlagen eine neue, einfache Netzwerkarchitektur vor, die ausschließlich auf Aufmerksamkeitsmechanismen basiert.", "de"},
		{"french", "Nous proposons une nouvelle architecture de réseau simple, fondée uniquement sur des mécanismes d'attention.", "fr"},
		{"spanish", "Proponemos una nueva arquitectura de red simple, basada únicamente en mecanismos de atención.", "es"},
		{"japanese", "我々は注意機構のみに基づく新しいシンプルなネットワークアーキテクチャを提案する。", "ja"},
		{"korean", "우리는 어텐션 메커니즘에만 기반한 새로운 간단한 네트워크 구조를 제안한다.", "ko"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Detect(tt.text))
		})
	}
}

func TestLanguageDetector_Nil(t *testing.T) {
	var d *LanguageDetector
	assert.Equal(t, "", d.Detect("anything"))
}

func TestSampleRunes(t *testing.T) {
	assert.Equal(t, "ab", sampleRunes("abc", 2))
	assert.Equal(t, "注意", sampleRunes("注意力", 2))
	assert.Equal(t, "abc", sampleRunes("abc", 10))
}
