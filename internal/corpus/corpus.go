// Package corpus loads company metadata records and partitions them by
// industry. The loader accepts JSON Lines and CSV inputs, tolerates
// malformed records, and caps each industry at a fixed sample size so a
// single huge category cannot dominate a run.
package corpus

import (
	"sort"
	"strings"
)

// Company is one metadata record: the public-facing text a company
// publishes about itself plus the industry label it was filed under.
type Company struct {
	Name        string   `json:"name"`
	Domain      string   `json:"domain"`
	Headline    string   `json:"headline"`
	Specialties []string `json:"specialties"`
	Industry    string   `json:"industry"`
}

// Fields returns the free-text fields that contribute terms, in a fixed
// order: name, domain, headline, then each specialty.
func (c Company) Fields() []string {
	fields := make([]string, 0, 3+len(c.Specialties))
	fields = append(fields, c.Name, c.Domain, c.Headline)
	fields = append(fields, c.Specialties...)
	return fields
}

// hasText reports whether any text field carries content worth
// tokenizing. Records with an industry but no text at all are treated
// as malformed upstream.
func (c Company) hasText() bool {
	for _, f := range c.Fields() {
		if strings.TrimSpace(f) != "" {
			return true
		}
	}
	return false
}

// Category is one industry partition of the corpus.
type Category struct {
	Name      string
	Companies []Company
}

// SampleSize returns the number of companies retained for this
// category after the per-category cap was applied.
func (c *Category) SampleSize() int { return len(c.Companies) }

// LoadStats accounts for what happened during a load. Malformed and
// Truncated never abort a run; they are surfaced in logs so a noisy
// input is visible without being fatal.
type LoadStats struct {
	Records   int // lines/rows seen, blank lines excluded
	Loaded    int // companies accepted into a category
	Malformed int // records skipped: unparseable, no industry, or no text
	Truncated int // companies dropped by the per-category sample cap
}

// Corpus is the loaded, partitioned input. Categories are sorted by
// name so every downstream traversal is deterministic.
type Corpus struct {
	Source     string
	Categories []*Category
	Stats      LoadStats
}

// Category returns the named category, or nil if the corpus has none.
func (c *Corpus) Category(name string) *Category {
	for _, cat := range c.Categories {
		if cat.Name == name {
			return cat
		}
	}
	return nil
}

// sortCategories fixes the category traversal order (ascending name,
// bytewise).
func (c *Corpus) sortCategories() {
	sort.Slice(c.Categories, func(i, j int) bool {
		return c.Categories[i].Name < c.Categories[j].Name
	})
}
