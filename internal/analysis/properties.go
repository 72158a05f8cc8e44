package analysis

import (
	"fmt"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/docindex/pkg/errors"
)

// Stemming selects how terms are reduced to a stem.
type Stemming string

const (
	StemNone     Stemming = "none"
	StemLight    Stemming = "light"
	StemSnowball Stemming = "snowball"
)

// Properties configure an Analyzer. They are stored with the index so an
// index is always queried with the analysis it was built with.
type Properties struct {
	MinTermLength  int      `yaml:"minTermLength" json:"min_term_length"`
	StopWords      []string `yaml:"stopWords" json:"stop_words,omitempty"`
	FoldCase       bool     `yaml:"foldCase" json:"fold_case"`
	FoldDiacritics bool     `yaml:"foldDiacritics" json:"fold_diacritics"`
	Language       string   `yaml:"language" json:"language,omitempty"`
	Stemming       Stemming `yaml:"stemming" json:"stemming,omitempty"`
}

// DefaultStopWords is the English stop-word list used by DefaultProperties.
var DefaultStopWords = []string{
	"a", "an", "and", "are", "as", "at",
	"be", "by", "for", "from", "has", "he",
	"in", "is", "it", "its", "of", "on",
	"or", "that", "the", "to", "was", "were",
	"will", "with", "this", "but", "they",
	"have", "had", "what", "when", "where",
	"who", "which", "their", "if", "each",
	"do", "not", "no", "so", "can",
}

func DefaultProperties() Properties {
	return Properties{
		MinTermLength:  2,
		StopWords:      append([]string(nil), DefaultStopWords...),
		FoldCase:       true,
		FoldDiacritics: true,
		Language:       "en",
		Stemming:       StemNone,
	}
}

var snowballLanguages = map[string]string{
	"":          "english",
	"en":        "english",
	"english":   "english",
	"es":        "spanish",
	"spanish":   "spanish",
	"fr":        "french",
	"french":    "french",
	"ru":        "russian",
	"russian":   "russian",
	"sv":        "swedish",
	"swedish":   "swedish",
	"no":        "norwegian",
	"nb":        "norwegian",
	"norwegian": "norwegian",
	"hu":        "hungarian",
	"hungarian": "hungarian",
}

// Validate reports configuration errors wrapped in ErrInvalidInput.
func (p Properties) Validate() error {
	if p.MinTermLength < 0 {
		return fmt.Errorf("min term length %d: %w", p.MinTermLength, apperrors.ErrInvalidInput)
	}
	switch p.Stemming {
	case "", StemNone, StemLight:
	case StemSnowball:
		if _, ok := snowballLanguages[strings.ToLower(p.Language)]; !ok {
			return fmt.Errorf("snowball stemming does not support language %q: %w", p.Language, apperrors.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("unknown stemming %q: %w", p.Stemming, apperrors.ErrInvalidInput)
	}
	return nil
}

func (p Properties) japanese() bool {
	lang := strings.ToLower(p.Language)
	return lang == "ja" || lang == "japanese"
}
