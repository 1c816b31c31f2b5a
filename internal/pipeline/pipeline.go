// Package pipeline orchestrates one analysis run end to end: corpus
// load, parallel per-category counting, the single-threaded global
// reduce, parallel scoring, report assembly, and optional persistence.
//
// Concurrency contract: a category is an atomic unit of work. A failed
// category keeps its slot in the report with an error marker and never
// poisons its siblings; cancellation aborts the whole run and discards
// all partial results.
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/rcrowley/go-metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"lexatlas/internal/config"
	"lexatlas/internal/corpus"
	"lexatlas/internal/report"
	"lexatlas/internal/stats"
	"lexatlas/internal/store"
)

var (
	recordsParsed  = metrics.NewRegisteredMeter("corpus_records", nil)
	countTimer     = metrics.NewRegisteredTimer("category_count", nil)
	scoreTimer     = metrics.NewRegisteredTimer("category_score", nil)
	vocabularySize = metrics.NewRegisteredHistogram("category_vocabulary", nil, metrics.NewUniformSample(512))
)

// metricsSnapshot is a point-in-time read of the process-lifetime
// instruments above, taken for the run-end summary.
type metricsSnapshot struct {
	Records       int64
	AvgCount      time.Duration
	AvgScore      time.Duration
	AvgVocabulary float64
}

func snapshotMetrics() metricsSnapshot {
	return metricsSnapshot{
		Records:       recordsParsed.Count(),
		AvgCount:      time.Duration(countTimer.Mean()),
		AvgScore:      time.Duration(scoreTimer.Mean()),
		AvgVocabulary: vocabularySize.Mean(),
	}
}

// Result is what one run produced.
type Result struct {
	RunID    string
	Report   *report.Report
	Markdown string
	Stats    corpus.LoadStats
	Failed   int
	Empty    int
	Duration time.Duration
}

// Engine runs analyses. The store is optional; a nil store disables
// persistence.
type Engine struct {
	cfg    *config.Config
	store  *store.RunStore
	logger *zap.Logger
}

// NewEngine creates an engine. A nil logger is replaced with a no-op
// one.
func NewEngine(cfg *config.Config, st *store.RunStore, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:    cfg,
		store:  st,
		logger: logger.Named("pipeline"),
	}
}

// Run executes one full analysis of the configured corpus. generatedAt
// is stamped into the report header; passing a fixed date makes reruns
// byte-identical.
func (e *Engine) Run(ctx context.Context, generatedAt time.Time) (*Result, error) {
	loader := corpus.NewLoader(e.cfg.Corpus.MaxPerCategory, e.logger)
	c, err := loader.Load(e.cfg.Corpus.Path)
	if err != nil {
		return nil, err
	}
	return e.RunCorpus(ctx, c, generatedAt)
}

// RunCorpus analyzes an already-loaded corpus. Most callers want Run;
// this entry point exists for callers that assemble or reuse a corpus
// themselves.
func (e *Engine) RunCorpus(ctx context.Context, c *corpus.Corpus, generatedAt time.Time) (*Result, error) {
	start := time.Now()
	recordsParsed.Mark(int64(c.Stats.Records))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	counts, errs, err := e.countAll(ctx, c)
	if err != nil {
		return nil, err
	}

	// The one cross-category dependency: fold every successful count
	// into the global tables before any scoring starts. Empty
	// categories are dropped here with a warning.
	global := stats.NewGlobal()
	empty := 0
	for i, cc := range counts {
		if cc == nil {
			continue
		}
		if cc.SampleSize == 0 {
			empty++
			e.logger.Warn("skipping empty category", zap.String("category", cc.Name))
			counts[i] = nil
			continue
		}
		global.Add(cc)
	}

	sections, err := e.scoreAll(ctx, counts, errs, c, global)
	if err != nil {
		return nil, err
	}

	failed := 0
	for _, sec := range sections {
		if sec.Err != nil {
			failed++
		}
	}

	rep := &report.Report{
		GeneratedAt: generatedAt,
		Source:      c.Source,
		TopN:        e.cfg.Analysis.TopKeywords,
		Sections:    sections,
	}

	result := &Result{
		RunID:    uuid.NewString(),
		Report:   rep,
		Markdown: rep.Markdown(),
		Stats:    c.Stats,
		Failed:   failed,
		Empty:    empty,
		Duration: time.Since(start),
	}

	if e.store != nil {
		if err := e.persist(result, generatedAt); err != nil {
			return nil, err
		}
	}

	m := snapshotMetrics()
	e.logger.Info("run complete",
		zap.String("run_id", result.RunID),
		zap.Int("industries", len(sections)),
		zap.Int("failed", failed),
		zap.Int("empty", empty),
		zap.Int("records", c.Stats.Records),
		zap.Int("malformed", c.Stats.Malformed),
		zap.Int("truncated", c.Stats.Truncated),
		zap.Duration("took", result.Duration),
		zap.Int64("lifetime_records", m.Records),
		zap.Duration("avg_count", m.AvgCount),
		zap.Duration("avg_score", m.AvgScore),
		zap.Float64("avg_vocabulary", m.AvgVocabulary))
	return result, nil
}

// Workers returns the effective fan-out width.
func (e *Engine) Workers() int {
	if w := e.cfg.Analysis.Workers; w > 0 {
		return w
	}
	return runtime.NumCPU()
}

// countAll runs phase one: per-category term counting, in parallel.
// counts[i] and errs[i] line up with c.Categories[i]; exactly one of
// them is set per category. Only cancellation makes countAll itself
// fail.
func (e *Engine) countAll(ctx context.Context, c *corpus.Corpus) ([]*stats.CategoryCount, []error, error) {
	counts := make([]*stats.CategoryCount, len(c.Categories))
	errs := make([]error, len(c.Categories))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(e.Workers())

	for i, cat := range c.Categories {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("count worker panic: %v", r)
				}
			}()

			begin := time.Now()
			counts[i] = stats.CountCategory(cat)
			countTimer.UpdateSince(begin)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}
	return counts, errs, nil
}

// scoreAll runs phase two: scoring and ranking every surviving count
// against the now read-only global tables, in parallel. Failed
// categories from phase one keep their report slot with the error.
func (e *Engine) scoreAll(ctx context.Context, counts []*stats.CategoryCount, errs []error, c *corpus.Corpus, global *stats.Global) ([]report.Section, error) {
	sections := make([]report.Section, len(counts))
	topN := e.cfg.Analysis.TopKeywords

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(e.Workers())

	for i, cc := range counts {
		if cc == nil {
			if errs[i] != nil {
				// errs[i] can mean the category pointer itself was
				// bad; fall back to a positional name for the slot.
				name := fmt.Sprintf("category #%d", i)
				if cat := c.Categories[i]; cat != nil {
					name = cat.Name
				}
				sections[i] = report.Section{Name: name, Err: errs[i]}
				e.logger.Warn("category failed",
					zap.String("category", name),
					zap.Error(errs[i]))
			}
			continue
		}

		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			defer func() {
				if r := recover(); r != nil {
					sections[i] = report.Section{
						Name: cc.Name,
						Err:  fmt.Errorf("score worker panic: %v", r),
					}
				}
			}()

			begin := time.Now()
			cs := global.Score(cc, topN)
			scoreTimer.UpdateSince(begin)
			vocabularySize.Update(int64(cs.VocabularySize))

			sections[i] = report.Section{Name: cs.Name, Stats: cs}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	// Compact the empty slots left by skipped categories.
	out := sections[:0]
	for _, sec := range sections {
		if sec.Name != "" {
			out = append(out, sec)
		}
	}
	return out, nil
}

// persist writes the run to the store.
func (e *Engine) persist(result *Result, generatedAt time.Time) error {
	record := &store.RunRecord{
		ID:          result.RunID,
		Source:      result.Report.Source,
		GeneratedAt: generatedAt,
		Duration:    result.Duration,
		Records:     result.Stats.Records,
		Malformed:   result.Stats.Malformed,
		Truncated:   result.Stats.Truncated,
	}
	for _, sec := range result.Report.Sections {
		cr := store.CategoryRecord{Name: sec.Name}
		if sec.Err != nil {
			cr.Err = sec.Err.Error()
		} else {
			cr.SampleSize = sec.Stats.SampleSize
			cr.VocabularySize = sec.Stats.VocabularySize
			cr.Keywords = sec.Stats.Top
		}
		record.Categories = append(record.Categories, cr)
	}

	if err := e.store.SaveRun(record); err != nil {
		return fmt.Errorf("failed to persist run: %w", err)
	}
	return nil
}
