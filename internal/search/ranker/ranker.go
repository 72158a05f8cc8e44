package ranker

import (
	"math"
	"slices"
)

const (
	k1 = 1.2
	b  = 0.75
)

type ScoredDoc struct {
	Doc   uint32  `json:"doc"`
	URL   string  `json:"url"`
	Score float64 `json:"score"`
}

type RankParams struct {
	TotalDocs    int
	AvgDocLength float64
}

// IDF is the BM25 inverse document frequency of a term found in docFreq of
// totalDocs documents.
func (p RankParams) IDF(docFreq int) float64 {
	return computeIDF(int64(p.TotalDocs), int64(docFreq))
}

// TFNorm is the BM25 saturated term frequency for a document of docLength
// terms.
func (p RankParams) TFNorm(termFreq, docLength int) float64 {
	return computeTFNorm(float64(termFreq), float64(docLength), p.AvgDocLength)
}

func Round(score float64) float64 {
	return math.Round(score*10000) / 10000
}

// Sort orders docs by descending score, breaking ties by document number.
func Sort(docs []ScoredDoc) {
	slices.SortFunc(docs, func(x, y ScoredDoc) int {
		switch {
		case x.Score > y.Score:
			return -1
		case x.Score < y.Score:
			return 1
		case x.Doc < y.Doc:
			return -1
		case x.Doc > y.Doc:
			return 1
		}
		return 0
	})
}

func computeIDF(totalDocs int64, docFreq int64) float64 {
	numerator := float64(totalDocs) - float64(docFreq)
	denominator := float64(docFreq) + 0.5
	return math.Log(numerator/denominator + 1)
}

func computeTFNorm(termFreq float64, docLength float64, avgDocLength float64) float64 {
	if avgDocLength == 0 {
		return 0
	}
	lengthRatio := docLength / avgDocLength
	denominator := termFreq + k1*(1-b+b*lengthRatio)
	return (termFreq * (k1 + 1)) / denominator
}
