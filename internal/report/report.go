// Package report renders run results into the canonical markdown
// report. The format is byte-stable: rendering the same results twice
// produces identical output, which is what makes reruns diffable.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"lexatlas/internal/stats"
)

// Section is one industry's slot in the report. Either Stats or Err is
// set; a failed category keeps its place in the report instead of
// silently vanishing.
type Section struct {
	Name  string
	Stats *stats.CategoryStats
	Err   error
}

// Report is the renderable result of one analysis run.
type Report struct {
	GeneratedAt time.Time
	Source      string
	TopN        int
	Sections    []Section
}

// Markdown renders the report. Sections are emitted in ascending name
// order regardless of the order they were appended in, so concurrent
// production upstream cannot perturb the output.
func (r *Report) Markdown() string {
	sections := make([]Section, len(r.Sections))
	copy(sections, r.Sections)
	sort.Slice(sections, func(i, j int) bool {
		return sections[i].Name < sections[j].Name
	})

	topN := r.TopN
	if topN <= 0 {
		topN = stats.DefaultTopKeywords
	}

	var sb strings.Builder
	sb.WriteString("# Industry Vocabulary Report (Metadata-Based)\n\n")
	sb.WriteString(fmt.Sprintf("**Generated:** %s\n", r.GeneratedAt.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("**Source:** %s\n", r.Source))
	sb.WriteString(fmt.Sprintf("**Industries:** %d\n", len(sections)))

	for _, sec := range sections {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("## %s\n\n", sec.Name))

		if sec.Err != nil {
			sb.WriteString(fmt.Sprintf("**Analysis failed:** %s\n\n", sec.Err))
			sb.WriteString("---\n")
			continue
		}

		sb.WriteString(fmt.Sprintf("**Sample size:** %d companies\n", sec.Stats.SampleSize))
		sb.WriteString(fmt.Sprintf("**Vocabulary size:** %d terms\n\n", sec.Stats.VocabularySize))
		sb.WriteString(fmt.Sprintf("**Top %d Keywords:**\n", topN))
		for i, kw := range sec.Stats.Top {
			sb.WriteString(fmt.Sprintf("%d. **%s** (freq: %d, tfidf: %.2f, exclusivity: %.2f)\n",
				i+1, kw.Term, kw.Freq, kw.TFIDF, kw.Exclusivity))
		}
		sb.WriteString("\n---\n")
	}

	return sb.String()
}
