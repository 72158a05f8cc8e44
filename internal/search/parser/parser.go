package parser

import (
	"strings"
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/analysis"
)

type QueryType int

const (
	QueryAND QueryType = iota
	QueryOR
)

func (t QueryType) String() string {
	if t == QueryOR {
		return "OR"
	}
	return "AND"
}

// Clause is one unit of a query. A clause with several terms is a phrase
// and matches only consecutive positions. A prefix clause holds a single
// folded term that is expanded against the dictionary.
type Clause struct {
	Terms  []string
	Prefix bool
	Weight float64
}

func (c Clause) IsPhrase() bool { return len(c.Terms) > 1 }

type QueryPlan struct {
	Clauses  []Clause
	Exclude  []Clause
	Type     QueryType
	RawQuery string
}

// Empty reports whether the plan can match nothing.
func (p *QueryPlan) Empty() bool { return len(p.Clauses) == 0 }

type Options struct {
	SpaceMeansOR bool
}

func Parse(query string, a *analysis.Analyzer, opts Options) *QueryPlan {
	plan := &QueryPlan{
		Clauses:  make([]Clause, 0),
		Exclude:  make([]Clause, 0),
		Type:     QueryAND,
		RawQuery: query,
	}
	if opts.SpaceMeansOR {
		plan.Type = QueryOR
	}
	if strings.TrimSpace(query) == "" {
		return plan
	}
	excludeNext := false
	for _, w := range split(query) {
		if !w.quoted {
			switch strings.ToUpper(w.text) {
			case "AND":
				plan.Type = QueryAND
				continue
			case "OR":
				plan.Type = QueryOR
				continue
			case "NOT":
				excludeNext = true
				continue
			}
		}
		exclude := excludeNext || w.negated
		excludeNext = false

		clause, ok := buildClause(w, a)
		if !ok {
			continue
		}
		if exclude {
			plan.Exclude = append(plan.Exclude, clause)
		} else {
			plan.Clauses = append(plan.Clauses, clause)
		}
	}
	return plan
}

// ParseSimilar treats text as an example document: every distinct term is an
// OR clause weighted by how often it occurs in text.
func ParseSimilar(text string, a *analysis.Analyzer) *QueryPlan {
	plan := &QueryPlan{
		Clauses:  make([]Clause, 0),
		Exclude:  make([]Clause, 0),
		Type:     QueryOR,
		RawQuery: text,
	}
	index := make(map[string]int)
	for tok := range a.Analyze(text) {
		if i, ok := index[tok.Term]; ok {
			plan.Clauses[i].Weight++
			continue
		}
		index[tok.Term] = len(plan.Clauses)
		plan.Clauses = append(plan.Clauses, Clause{Terms: []string{tok.Term}, Weight: 1})
	}
	return plan
}

func buildClause(w word, a *analysis.Analyzer) (Clause, bool) {
	if !w.quoted && strings.HasSuffix(w.text, "*") {
		stem := a.Normalize(strings.TrimRight(w.text, "*"))
		if !strings.ContainsFunc(stem, isWordRune) {
			return Clause{}, false
		}
		return Clause{Terms: []string{stem}, Prefix: true, Weight: 1}, true
	}
	terms := a.Terms(w.text)
	if len(terms) == 0 {
		return Clause{}, false
	}
	return Clause{Terms: terms, Weight: 1}, true
}

type word struct {
	text    string
	quoted  bool
	negated bool
}

// split breaks a query into bare words and double-quoted phrases. A leading
// '-' on either negates it. An unterminated quote runs to the end.
func split(query string) []word {
	var words []word
	rs := []rune(query)
	for i := 0; i < len(rs); {
		if unicode.IsSpace(rs[i]) {
			i++
			continue
		}
		negated := false
		if rs[i] == '-' && i+1 < len(rs) && !unicode.IsSpace(rs[i+1]) {
			negated = true
			i++
		}
		if rs[i] == '"' {
			j := i + 1
			for j < len(rs) && rs[j] != '"' {
				j++
			}
			words = append(words, word{text: string(rs[i+1 : j]), quoted: true, negated: negated})
			i = j + 1
			continue
		}
		j := i
		for j < len(rs) && !unicode.IsSpace(rs[j]) && rs[j] != '"' {
			j++
		}
		words = append(words, word{text: string(rs[i:j]), negated: negated})
		i = j
	}
	return words
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}
