// Package stats computes per-industry term statistics: presence-based
// frequencies, TF-IDF against the industry collection, and an
// exclusivity ratio against the whole corpus.
//
// The flow is two-phase by construction. Per-category counting has no
// cross-category dependencies and can run in parallel; the global
// tables are then reduced single-threaded and become read-only, after
// which scoring is again embarrassingly parallel.
package stats

import (
	"math"

	"lexatlas/internal/corpus"
	"lexatlas/internal/tokenize"
)

// CategoryCount holds one industry's term table. Freq[term] is the
// number of companies in the sample whose text contains the term, so
// Freq[term] <= SampleSize always holds.
type CategoryCount struct {
	Name       string
	SampleSize int
	Freq       map[string]int
}

// CountCategory tokenizes every company in the category and counts, for
// each term, how many companies mention it. Duplicate mentions within
// one company collapse to a single occurrence.
func CountCategory(cat *corpus.Category) *CategoryCount {
	cc := &CategoryCount{
		Name:       cat.Name,
		SampleSize: len(cat.Companies),
		Freq:       make(map[string]int),
	}
	for _, company := range cat.Companies {
		for term := range tokenize.TermSet(company.Fields()...) {
			cc.Freq[term]++
		}
	}
	return cc
}

// Global aggregates the corpus-wide tables that scoring needs: how many
// companies mention each term anywhere, how many categories contain
// each term, and how many categories are non-empty.
//
// Build it by calling Add once per category count, single-threaded.
// After the last Add it is read-only and safe for concurrent Score
// calls.
type Global struct {
	CorpusFreq       map[string]int
	CategoryDF       map[string]int
	ActiveCategories int
}

// NewGlobal returns an empty aggregate.
func NewGlobal() *Global {
	return &Global{
		CorpusFreq: make(map[string]int),
		CategoryDF: make(map[string]int),
	}
}

// Add folds one category's counts into the global tables. Categories
// with an empty sample contribute nothing, not even to the category
// total, so they cannot dilute IDF.
func (g *Global) Add(cc *CategoryCount) {
	if cc.SampleSize == 0 {
		return
	}
	g.ActiveCategories++
	for term, freq := range cc.Freq {
		g.CorpusFreq[term] += freq
		g.CategoryDF[term]++
	}
}

// idf is the inverse category frequency: ln of the number of active
// categories over the number of categories containing the term. A term
// present in every category scores exactly zero.
func (g *Global) idf(term string) float64 {
	df := g.CategoryDF[term]
	if df == 0 {
		// Only possible if a count never went through Add; keep the
		// math finite rather than returning +Inf.
		df = 1
	}
	total := g.ActiveCategories
	if total < df {
		total = df
	}
	return math.Log(float64(total) / float64(df))
}

// exclusivity is the ratio of in-category occurrences to occurrences
// everywhere else. The +1 keeps a term unique to this category finite:
// it then scores its own frequency.
func (g *Global) exclusivity(term string, freq int) float64 {
	elsewhere := g.CorpusFreq[term] - freq
	if elsewhere < 0 {
		elsewhere = 0
	}
	return float64(freq) / float64(elsewhere+1)
}
