package stats

import "sort"

// DefaultTopKeywords is how many ranked terms a category report keeps.
const DefaultTopKeywords = 20

// Keyword is one scored term of a category.
type Keyword struct {
	Term        string
	Freq        int
	TFIDF       float64
	Exclusivity float64
}

// CategoryStats is the scored, ranked result for one industry.
type CategoryStats struct {
	Name           string
	SampleSize     int
	VocabularySize int
	Top            []Keyword
}

// Score ranks a category's terms against the global tables and keeps
// the top n. Ordering is TF-IDF descending, ties broken by frequency
// descending, then term ascending, so identical inputs always produce
// identical output. n <= 0 selects DefaultTopKeywords.
func (g *Global) Score(cc *CategoryCount, n int) *CategoryStats {
	if n <= 0 {
		n = DefaultTopKeywords
	}

	keywords := make([]Keyword, 0, len(cc.Freq))
	for term, freq := range cc.Freq {
		keywords = append(keywords, Keyword{
			Term:        term,
			Freq:        freq,
			TFIDF:       float64(freq) * g.idf(term),
			Exclusivity: g.exclusivity(term, freq),
		})
	}

	sort.Slice(keywords, func(i, j int) bool {
		if keywords[i].TFIDF != keywords[j].TFIDF {
			return keywords[i].TFIDF > keywords[j].TFIDF
		}
		if keywords[i].Freq != keywords[j].Freq {
			return keywords[i].Freq > keywords[j].Freq
		}
		return keywords[i].Term < keywords[j].Term
	})

	if len(keywords) > n {
		keywords = keywords[:n]
	}

	return &CategoryStats{
		Name:           cc.Name,
		SampleSize:     cc.SampleSize,
		VocabularySize: len(cc.Freq),
		Top:            keywords,
	}
}
