package summarizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-digest-service/internal/domain"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   string
		ok     bool
	}{
		{name: "fenced", answer: "Here you go:\n```json\n{\"a\": {\"b\": 1}}\n```\nDone.", want: `{"a": {"b": 1}}`, ok: true},
		{name: "unlabeled fence", answer: "```\n{\"a\": 1}\n```", want: `{"a": 1}`, ok: true},
		{name: "bare", answer: `Result: {"a": "x"} end`, want: `{"a": "x"}`, ok: true},
		{name: "none", answer: "no object", ok: false},
		{name: "reversed braces", answer: "} {", ok: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := extractJSONObject(tc.answer)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEscapeBareNewlines(t *testing.T) {
	in := "{\"a\": \"line one\nline two\", \"b\": \"quote \\\" then\r\nbreak\"}\n"
	want := "{\"a\": \"line one line two\", \"b\": \"quote \\\" then  break\"}\n"
	assert.Equal(t, want, escapeBareNewlines(in))
}

func TestParseSections(t *testing.T) {
	labels := domain.SectionLabels(domain.ModeDetailed)

	got, err := parseSections(`{"MOTIVATION": "why", "Results": 42, "Future Work": null, "Extra": "ignored"}`, labels)
	require.NoError(t, err)
	require.Len(t, got, len(labels))
	assert.Equal(t, domain.Section{Label: "Motivation", Text: "why"}, got[0])
	assert.Equal(t, "42", got[3].Text)
	assert.Equal(t, "", got[5].Text)

	_, err = parseSections(`{"Motivation": }`, labels)
	assert.ErrorIs(t, err, errMalformedSections)
}

func TestRunState(t *testing.T) {
	var seen []domain.RunState
	st := newRunState(func(_, to domain.RunState) { seen = append(seen, to) })
	assert.Equal(t, domain.RunStatePending, st.current())

	assert.Error(t, st.transition(domain.RunStateDone))
	st.fail()
	assert.Equal(t, domain.RunStatePending, st.current(), "FAILED is unreachable from PENDING")

	require.NoError(t, st.transition(domain.RunStateChunkSummarizing))
	st.fail()
	assert.Equal(t, domain.RunStateFailed, st.current())
	assert.Error(t, st.transition(domain.RunStateConsolidating))

	assert.Equal(t, []domain.RunState{domain.RunStateChunkSummarizing, domain.RunStateFailed}, seen)
}
