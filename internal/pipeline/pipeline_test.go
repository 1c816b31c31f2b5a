package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"lexatlas/internal/config"
	"lexatlas/internal/corpus"
	"lexatlas/internal/store"
)

// TestMain ensures run workers never leak. The go-metrics arbiter runs
// for the life of the process and is expected.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/rcrowley/go-metrics.(*meterArbiter).tick"))
}

var fixture = `
{"name":"BrewDog","domain":"brewdog.com","headline":"Craft beer brewery","specialties":["beer","brewing","kerb appeal"],"industry":"Breweries"}
{"name":"Hop House","domain":"hophouse.io","headline":"Small batch brewery","specialties":["ales","kerb appeal"],"industry":"Breweries"}
{"name":"Silva Advogados","domain":"silva.br","headline":"Advocacia","specialties":["direito"],"industry":"Law Practice"}
`

func testConfig(t *testing.T, corpusContent string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "companies.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(corpusContent), 0o644))

	cfg := config.DefaultConfig()
	cfg.Corpus.Path = path
	cfg.Report.Path = filepath.Join(dir, "report.md")
	cfg.Store.Enabled = false
	return cfg
}

var fixedDate = time.Date(2025, 8, 25, 0, 0, 0, 0, time.UTC)

func TestRun_EndToEnd(t *testing.T) {
	cfg := testConfig(t, fixture)
	eng := NewEngine(cfg, nil, nil)

	result, err := eng.Run(context.Background(), fixedDate)
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 3, result.Stats.Records)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 0, result.Empty)

	md := result.Markdown
	assert.Contains(t, md, "# Industry Vocabulary Report (Metadata-Based)")
	assert.Contains(t, md, "**Generated:** 2025-08-25")
	assert.Contains(t, md, "**Industries:** 2")
	assert.Contains(t, md, "## Breweries")
	assert.Contains(t, md, "## Law Practice")
	assert.Contains(t, md, "**Sample size:** 2 companies")

	// Two of two brewery companies mention "kerb"; nobody else does.
	// TFIDF = 2·ln(2/1), exclusivity = 2/(2-2+1).
	assert.Contains(t, md, "**kerb** (freq: 2, tfidf: 1.39, exclusivity: 2.00)")

	// Breweries renders before Law Practice.
	assert.Less(t, strings.Index(md, "## Breweries"), strings.Index(md, "## Law Practice"))
}

func TestRun_ByteIdenticalReruns(t *testing.T) {
	cfg := testConfig(t, fixture)

	first, err := NewEngine(cfg, nil, nil).Run(context.Background(), fixedDate)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		again, err := NewEngine(cfg, nil, nil).Run(context.Background(), fixedDate)
		require.NoError(t, err)
		require.Equal(t, first.Markdown, again.Markdown, "rerun %d diverged", i+1)
	}
}

func TestRun_FrequencyBoundedBySampleSize(t *testing.T) {
	cfg := testConfig(t, fixture)

	result, err := NewEngine(cfg, nil, nil).Run(context.Background(), fixedDate)
	require.NoError(t, err)

	for _, sec := range result.Report.Sections {
		require.NotNil(t, sec.Stats)
		for _, kw := range sec.Stats.Top {
			assert.LessOrEqual(t, kw.Freq, sec.Stats.SampleSize,
				"term %q in %s", kw.Term, sec.Name)
		}
		for i := 1; i < len(sec.Stats.Top); i++ {
			assert.LessOrEqual(t, sec.Stats.Top[i].TFIDF, sec.Stats.Top[i-1].TFIDF,
				"tfidf increased at rank %d in %s", i+1, sec.Name)
		}
	}
}

func TestRun_MalformedRecordsDoNotAbort(t *testing.T) {
	content := fixture + "{broken json\n" + `{"name":"No Industry"}` + "\n"
	cfg := testConfig(t, content)

	result, err := NewEngine(cfg, nil, nil).Run(context.Background(), fixedDate)
	require.NoError(t, err)

	assert.Equal(t, 5, result.Stats.Records)
	assert.Equal(t, 2, result.Stats.Malformed)
	assert.Contains(t, result.Markdown, "**Industries:** 2")
}

func TestRun_CorpusWithOnlyMalformedRecords(t *testing.T) {
	cfg := testConfig(t, "{broken\n{also broken\n")

	result, err := NewEngine(cfg, nil, nil).Run(context.Background(), fixedDate)
	require.NoError(t, err)
	assert.Contains(t, result.Markdown, "**Industries:** 0")
}

func TestRun_MissingCorpusFails(t *testing.T) {
	cfg := testConfig(t, fixture)
	cfg.Corpus.Path = filepath.Join(t.TempDir(), "absent.jsonl")

	_, err := NewEngine(cfg, nil, nil).Run(context.Background(), fixedDate)
	require.Error(t, err)
}

func TestRun_CancelledContext(t *testing.T) {
	cfg := testConfig(t, fixture)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine(cfg, nil, nil).Run(ctx, fixedDate)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunCorpus_SkipsEmptyCategories(t *testing.T) {
	cfg := testConfig(t, fixture)
	c := &corpus.Corpus{
		Source: "inline",
		Categories: []*corpus.Category{
			{Name: "Ghost Town"},
			{Name: "Breweries", Companies: []corpus.Company{
				{Name: "BrewDog", Headline: "craft beer"},
			}},
		},
	}

	result, err := NewEngine(cfg, nil, nil).RunCorpus(context.Background(), c, fixedDate)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Empty)
	assert.NotContains(t, result.Markdown, "Ghost Town")
	assert.Contains(t, result.Markdown, "**Industries:** 1")
}

func TestRunCorpus_FailedCategoryKeepsSlot(t *testing.T) {
	cfg := testConfig(t, fixture)
	c := &corpus.Corpus{
		Source: "inline",
		Categories: []*corpus.Category{
			nil,
			{Name: "Breweries", Companies: []corpus.Company{
				{Name: "BrewDog", Headline: "craft beer"},
			}},
		},
	}

	result, err := NewEngine(cfg, nil, nil).RunCorpus(context.Background(), c, fixedDate)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	assert.Contains(t, result.Markdown, "## Breweries")
	assert.Contains(t, result.Markdown, "## category #0")
	assert.Contains(t, result.Markdown, "**Analysis failed:** count worker panic")
	assert.Contains(t, result.Markdown, "**Industries:** 2")
}

func TestRun_SummarizesMetrics(t *testing.T) {
	before := snapshotMetrics()

	core, logs := observer.New(zap.InfoLevel)
	cfg := testConfig(t, fixture)
	result, err := NewEngine(cfg, nil, zap.New(core)).Run(context.Background(), fixedDate)
	require.NoError(t, err)

	after := snapshotMetrics()
	assert.Equal(t, int64(result.Stats.Records), after.Records-before.Records)
	assert.Positive(t, after.AvgVocabulary)

	entries := logs.FilterMessage("run complete").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.EqualValues(t, after.Records, fields["lifetime_records"])
	assert.Contains(t, fields, "avg_count")
	assert.Contains(t, fields, "avg_score")
	assert.Contains(t, fields, "avg_vocabulary")
}

func TestRun_PersistsToStore(t *testing.T) {
	st, err := store.NewRunStore(":memory:", nil)
	require.NoError(t, err)
	defer st.Close()

	cfg := testConfig(t, fixture)
	result, err := NewEngine(cfg, st, nil).Run(context.Background(), fixedDate)
	require.NoError(t, err)

	latest, err := st.LatestRunID()
	require.NoError(t, err)
	assert.Equal(t, result.RunID, latest)

	cats, err := st.ListCategories(result.RunID)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "Breweries", cats[0].Name)
	assert.Equal(t, 2, cats[0].SampleSize)

	kws, err := st.TopKeywords(result.RunID, "Breweries")
	require.NoError(t, err)
	require.NotEmpty(t, kws)
	// Stored rank order matches the report's rank order.
	assert.Equal(t, result.Report.Sections[0].Stats.Top, kws)
}

func TestEngine_Workers(t *testing.T) {
	cfg := testConfig(t, fixture)

	cfg.Analysis.Workers = 3
	assert.Equal(t, 3, NewEngine(cfg, nil, nil).Workers())

	cfg.Analysis.Workers = 0
	assert.Positive(t, NewEngine(cfg, nil, nil).Workers())
}
