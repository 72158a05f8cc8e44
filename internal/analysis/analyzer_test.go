package analysis

import (
	"slices"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustAnalyzer(t *testing.T, props Properties) *Analyzer {
	t.Helper()
	a, err := New(props)
	require.NoError(t, err)
	return a
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name  string
		props func(p *Properties)
		text  string
		want  []Token
	}{
		{
			name: "simple words",
			text: "foo bar",
			want: []Token{{"foo", 0}, {"bar", 1}},
		},
		{
			name: "case and punctuation",
			text: "Hello, World! Hello?",
			want: []Token{{"hello", 0}, {"world", 1}, {"hello", 2}},
		},
		{
			name: "stop words and short words dropped",
			text: "the cat is on a mat x",
			want: []Token{{"cat", 0}, {"mat", 1}},
		},
		{
			name: "diacritics folded",
			text: "Café crème brûlée",
			want: []Token{{"cafe", 0}, {"creme", 1}, {"brulee", 2}},
		},
		{
			name:  "diacritics kept",
			props: func(p *Properties) { p.FoldDiacritics = false },
			text:  "Café",
			want:  []Token{{"café", 0}},
		},
		{
			name:  "case kept",
			props: func(p *Properties) { p.FoldCase = false },
			text:  "Go gopher",
			want:  []Token{{"Go", 0}, {"gopher", 1}},
		},
		{
			name:  "light stemming",
			props: func(p *Properties) { p.Stemming = StemLight },
			text:  "indexing documents",
			want:  []Token{{"index", 0}, {"document", 1}},
		},
		{
			name:  "snowball stemming",
			props: func(p *Properties) { p.Stemming = StemSnowball },
			text:  "running quickly",
			want:  []Token{{"run", 0}, {"quick", 1}},
		},
		{
			name:  "custom minimum length",
			props: func(p *Properties) { p.MinTermLength = 4 },
			text:  "tiny big enormous",
			want:  []Token{{"tiny", 0}, {"enormous", 1}},
		},
		{
			name: "digits are terms",
			text: "release 2024 notes",
			want: []Token{{"release", 0}, {"2024", 1}, {"notes", 2}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			props := DefaultProperties()
			if tt.props != nil {
				tt.props(&props)
			}
			a := mustAnalyzer(t, props)
			got := slices.Collect(a.Analyze(tt.text))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Analyze(%q) mismatch (-want +got):\n%s", tt.text, diff)
			}
		})
	}
}

func TestAnalyzeEmptyInputs(t *testing.T) {
	a := mustAnalyzer(t, DefaultProperties())

	for _, text := range []string{"", "   ", "the and of", "a b c", "!!! ..."} {
		assert.Empty(t, slices.Collect(a.Analyze(text)), "text %q", text)
	}
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	props := DefaultProperties()
	props.Stemming = StemSnowball
	a := mustAnalyzer(t, props)
	text := "Searching indexes, searched indexes, and more searching"

	first := slices.Collect(a.Analyze(text))
	second := slices.Collect(a.Analyze(text))
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated analysis differs (-first +second):\n%s", diff)
	}
}

func TestAnalyzeStopsEarly(t *testing.T) {
	a := mustAnalyzer(t, DefaultProperties())

	var got []string
	for tok := range a.Analyze("one two three four") {
		got = append(got, tok.Term)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"one", "two"}, got)
}

func TestStopWordsAreFolded(t *testing.T) {
	props := DefaultProperties()
	props.StopWords = []string{"ÉTÉ"}
	a := mustAnalyzer(t, props)

	assert.Equal(t, []string{"summer"}, a.Terms("été summer"))
}

func TestNewRejectsBadProperties(t *testing.T) {
	tests := []struct {
		name  string
		props Properties
	}{
		{"negative length", Properties{MinTermLength: -1}},
		{"unknown stemming", Properties{Stemming: "porter3"}},
		{"unsupported snowball language", Properties{Stemming: StemSnowball, Language: "tlh"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.props)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}
}

func TestLightStem(t *testing.T) {
	tests := map[string]string{
		"relational": "relate",
		"searching":  "search",
		"flies":      "fly",
		"class":      "class",
		"cats":       "cat",
		"go":         "go",
	}
	for in, want := range tests {
		assert.Equal(t, want, lightStem(in), "lightStem(%q)", in)
	}
}

func TestJapaneseSegmentation(t *testing.T) {
	if testing.Short() {
		t.Skip("loads the full japanese dictionary")
	}
	props := DefaultProperties()
	props.Language = "ja"
	props.StopWords = nil
	props.MinTermLength = 1
	a := mustAnalyzer(t, props)

	terms := a.Terms("東京都に住む。")
	assert.NotEmpty(t, terms)
	assert.NotContains(t, terms, "。")
	assert.NotContains(t, terms, "東京都に住む")
}

func BenchmarkAnalyze(b *testing.B) {
	a, err := New(DefaultProperties())
	require.NoError(b, err)
	text := "this is a benchmark document with several terms for testing the indexing performance of our analyzer"
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for range a.Analyze(text) {
		}
	}
}
