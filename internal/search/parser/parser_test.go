package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/analysis"
)

func newAnalyzer(t *testing.T) *analysis.Analyzer {
	t.Helper()
	a, err := analysis.New(analysis.DefaultProperties())
	require.NoError(t, err)
	return a
}

func terms(cs []Clause) [][]string {
	out := make([][]string, len(cs))
	for i, c := range cs {
		out[i] = c.Terms
	}
	return out
}

func TestParse(t *testing.T) {
	a := newAnalyzer(t)
	tests := []struct {
		name    string
		query   string
		opts    Options
		typ     QueryType
		clauses [][]string
		exclude [][]string
	}{
		{name: "empty", query: "   ", typ: QueryAND, clauses: [][]string{}, exclude: [][]string{}},
		{name: "bare words", query: "Search Engine", typ: QueryAND,
			clauses: [][]string{{"search"}, {"engine"}}, exclude: [][]string{}},
		{name: "space means or", query: "search engine", opts: Options{SpaceMeansOR: true}, typ: QueryOR,
			clauses: [][]string{{"search"}, {"engine"}}, exclude: [][]string{}},
		{name: "or keyword", query: "search OR engine", typ: QueryOR,
			clauses: [][]string{{"search"}, {"engine"}}, exclude: [][]string{}},
		{name: "not keyword", query: "search NOT engine", typ: QueryAND,
			clauses: [][]string{{"search"}}, exclude: [][]string{{"engine"}}},
		{name: "dash exclusion", query: "search -engine", typ: QueryAND,
			clauses: [][]string{{"search"}}, exclude: [][]string{{"engine"}}},
		{name: "phrase", query: `"the quick fox" jumps`, typ: QueryAND,
			clauses: [][]string{{"quick", "fox"}, {"jumps"}}, exclude: [][]string{}},
		{name: "excluded phrase", query: `fox -"lazy dog"`, typ: QueryAND,
			clauses: [][]string{{"fox"}}, exclude: [][]string{{"lazy", "dog"}}},
		{name: "stop words dropped", query: "the fox and a dog", typ: QueryAND,
			clauses: [][]string{{"fox"}, {"dog"}}, exclude: [][]string{}},
		{name: "unterminated quote", query: `"quick fox`, typ: QueryAND,
			clauses: [][]string{{"quick", "fox"}}, exclude: [][]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Parse(tt.query, a, tt.opts)
			assert.Equal(t, tt.typ, plan.Type)
			assert.Equal(t, tt.query, plan.RawQuery)
			if diff := cmp.Diff(tt.clauses, terms(plan.Clauses)); diff != "" {
				t.Errorf("clauses mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.exclude, terms(plan.Exclude)); diff != "" {
				t.Errorf("exclude mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParsePrefix(t *testing.T) {
	plan := Parse("Résu* *", newAnalyzer(t), Options{})
	require.Len(t, plan.Clauses, 1)
	assert.True(t, plan.Clauses[0].Prefix)
	assert.Equal(t, []string{"resu"}, plan.Clauses[0].Terms)
	assert.False(t, plan.Clauses[0].IsPhrase())
}

func TestParseSimilar(t *testing.T) {
	plan := ParseSimilar("fox dog fox the fox", newAnalyzer(t))
	assert.Equal(t, QueryOR, plan.Type)
	require.Len(t, plan.Clauses, 2)
	assert.Equal(t, Clause{Terms: []string{"fox"}, Weight: 3}, plan.Clauses[0])
	assert.Equal(t, Clause{Terms: []string{"dog"}, Weight: 1}, plan.Clauses[1])
	assert.Empty(t, plan.Exclude)
}

func TestParseOnlyStopWords(t *testing.T) {
	plan := Parse("the and of", newAnalyzer(t), Options{})
	assert.True(t, plan.Empty())
}
