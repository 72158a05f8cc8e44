// Package analysis turns raw text into index terms: word segmentation,
// case and diacritic folding, length and stop-word filtering, and optional
// stemming.
package analysis

import (
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/clipperhouse/uax29/v2/words"
	lru "github.com/hashicorp/golang-lru/v2"
	ipaneologd "github.com/ikawaha/kagome-dict-ipa-neologd"
	"github.com/ikawaha/kagome/v2/tokenizer"
	"github.com/kljensen/snowball"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const stemCacheSize = 4096

// Token is a single analyzed term and its ordinal position among the kept
// terms of the text.
type Token struct {
	Term     string
	Position int
}

type Analyzer struct {
	props     Properties
	stopWords map[string]struct{}
	stems     *lru.Cache[string, string]
	language  string
	logger    *slog.Logger
}

var (
	kagomeOnce sync.Once
	kagomeTok  *tokenizer.Tokenizer
	kagomeErr  error
)

func japaneseTokenizer() (*tokenizer.Tokenizer, error) {
	kagomeOnce.Do(func() {
		kagomeTok, kagomeErr = tokenizer.New(ipaneologd.Dict(), tokenizer.OmitBosEos())
	})
	return kagomeTok, kagomeErr
}

// New validates props and builds an Analyzer.
func New(props Properties) (*Analyzer, error) {
	if err := props.Validate(); err != nil {
		return nil, err
	}
	if props.Stemming == "" {
		props.Stemming = StemNone
	}
	stems, err := lru.New[string, string](stemCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating stem cache: %w", err)
	}
	a := &Analyzer{
		props:     props,
		stopWords: make(map[string]struct{}, len(props.StopWords)),
		stems:     stems,
		language:  snowballLanguages[strings.ToLower(props.Language)],
		logger:    slog.Default().With("component", "analyzer"),
	}
	if props.japanese() {
		if _, err := japaneseTokenizer(); err != nil {
			return nil, fmt.Errorf("loading japanese dictionary: %w", err)
		}
	}
	for _, w := range props.StopWords {
		if folded := a.Normalize(w); folded != "" {
			a.stopWords[folded] = struct{}{}
		}
	}
	return a, nil
}

func (a *Analyzer) Properties() Properties {
	return a.props
}

// Analyze yields the terms of text in order. The sequence is empty for
// empty text or text made only of stop words and short words.
func (a *Analyzer) Analyze(text string) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		pos := 0
		for word := range a.segments(text) {
			term, ok := a.term(word)
			if !ok {
				continue
			}
			if !yield(Token{Term: term, Position: pos}) {
				return
			}
			pos++
		}
	}
}

// Terms collects the analyzed terms of text.
func (a *Analyzer) Terms(text string) []string {
	var terms []string
	for tok := range a.Analyze(text) {
		terms = append(terms, tok.Term)
	}
	return terms
}

// Normalize applies folding only: no length, stop-word, or stemming step.
func (a *Analyzer) Normalize(word string) string {
	if a.props.FoldDiacritics {
		word = foldDiacritics(word)
	}
	if a.props.FoldCase {
		word = strings.ToLower(word)
	}
	return word
}

func (a *Analyzer) term(word string) (string, bool) {
	word = a.Normalize(word)
	if utf8.RuneCountInString(word) < a.props.MinTermLength || word == "" {
		return "", false
	}
	if _, stop := a.stopWords[word]; stop {
		return "", false
	}
	return a.stem(word), true
}

func (a *Analyzer) stem(word string) string {
	switch a.props.Stemming {
	case StemLight:
		return lightStem(word)
	case StemSnowball:
		if cached, ok := a.stems.Get(word); ok {
			return cached
		}
		stemmed, err := snowball.Stem(word, a.language, true)
		if err != nil || stemmed == "" {
			a.logger.Debug("snowball stem failed", "word", word, "error", err)
			stemmed = word
		}
		a.stems.Add(word, stemmed)
		return stemmed
	default:
		return word
	}
}

func (a *Analyzer) segments(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if text == "" {
			return
		}
		if a.props.japanese() {
			tok, err := japaneseTokenizer()
			if err != nil {
				return
			}
			for _, t := range tok.Analyze(text, tokenizer.Search) {
				features := t.Features()
				if len(features) > 0 && features[0] == "記号" {
					continue
				}
				if !hasWordRune(t.Surface) {
					continue
				}
				if !yield(t.Surface) {
					return
				}
			}
			return
		}
		seg := words.FromString(text)
		for seg.Next() {
			w := seg.Value()
			if !hasWordRune(w) {
				continue
			}
			if !yield(w) {
				return
			}
		}
	}
}

func hasWordRune(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}
