package corpus

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// DefaultMaxPerCategory is the per-category sample cap. The first N
// companies in input order are kept; the rest are counted as truncated.
const DefaultMaxPerCategory = 1000

// csvColumns are the required header columns for CSV input, matched
// case-insensitively in any order.
var csvColumns = []string{"name", "domain", "headline", "specialties", "industry"}

// Loader reads a corpus file into partitioned form.
type Loader struct {
	maxPerCategory int
	logger         *zap.Logger
}

// NewLoader creates a loader. maxPerCategory <= 0 selects
// DefaultMaxPerCategory; a nil logger is replaced with a no-op one.
func NewLoader(maxPerCategory int, logger *zap.Logger) *Loader {
	if maxPerCategory <= 0 {
		maxPerCategory = DefaultMaxPerCategory
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		maxPerCategory: maxPerCategory,
		logger:         logger.Named("corpus"),
	}
}

// Load reads the corpus at path. The format is chosen by extension:
// .jsonl/.ndjson for JSON Lines, .csv for CSV. Malformed records are
// skipped with a warning and counted in Stats; only I/O and format
// errors are fatal.
func (l *Loader) Load(path string) (*Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	c := &Corpus{Source: filepath.Base(path)}
	buckets := make(map[string]*Category)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".jsonl", ".ndjson":
		err = l.readJSONL(f, c, buckets)
	case ".csv":
		err = l.readCSV(f, c, buckets)
	default:
		return nil, fmt.Errorf("unsupported corpus format %q (want .jsonl, .ndjson or .csv)", ext)
	}
	if err != nil {
		return nil, err
	}

	c.sortCategories()

	l.logger.Info("corpus loaded",
		zap.String("source", c.Source),
		zap.Int("records", c.Stats.Records),
		zap.Int("loaded", c.Stats.Loaded),
		zap.Int("malformed", c.Stats.Malformed),
		zap.Int("truncated", c.Stats.Truncated),
		zap.Int("categories", len(c.Categories)))
	return c, nil
}

// readJSONL decodes one JSON object per line. Blank lines are ignored.
func (l *Loader) readJSONL(r io.Reader, c *Corpus, buckets map[string]*Category) error {
	scanner := bufio.NewScanner(r)
	// Increase buffer size for long lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		c.Stats.Records++

		var rec Company
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			l.skip(c, line, fmt.Sprintf("invalid JSON: %v", err))
			continue
		}
		l.accept(c, buckets, rec, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read corpus: %w", err)
	}
	return nil
}

// readCSV expects a header row naming the five record columns in any
// order. Ragged rows are malformed, not fatal.
func (l *Loader) readCSV(r io.Reader, c *Corpus, buckets map[string]*Category) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("read csv header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, want := range csvColumns {
		if _, ok := cols[want]; !ok {
			return fmt.Errorf("csv header missing column %q", want)
		}
	}

	line := 1 // header consumed
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			c.Stats.Records++
			l.skip(c, line, fmt.Sprintf("invalid CSV row: %v", err))
			continue
		}
		c.Stats.Records++
		if len(row) != len(header) {
			l.skip(c, line, fmt.Sprintf("want %d fields, got %d", len(header), len(row)))
			continue
		}

		rec := Company{
			Name:     row[cols["name"]],
			Domain:   row[cols["domain"]],
			Headline: row[cols["headline"]],
			Industry: row[cols["industry"]],
		}
		if raw := strings.TrimSpace(row[cols["specialties"]]); raw != "" {
			for _, s := range strings.Split(raw, ";") {
				if s = strings.TrimSpace(s); s != "" {
					rec.Specialties = append(rec.Specialties, s)
				}
			}
		}
		l.accept(c, buckets, rec, line)
	}
	return nil
}

// accept validates one decoded record and files it into its category,
// honoring the sample cap.
func (l *Loader) accept(c *Corpus, buckets map[string]*Category, rec Company, line int) {
	industry := strings.TrimSpace(rec.Industry)
	if industry == "" {
		l.skip(c, line, "missing industry")
		return
	}
	if !rec.hasText() {
		l.skip(c, line, "no text fields")
		return
	}
	rec.Industry = industry

	cat, ok := buckets[industry]
	if !ok {
		cat = &Category{Name: industry}
		buckets[industry] = cat
		c.Categories = append(c.Categories, cat)
	}
	if len(cat.Companies) >= l.maxPerCategory {
		c.Stats.Truncated++
		return
	}
	cat.Companies = append(cat.Companies, rec)
	c.Stats.Loaded++
}

func (l *Loader) skip(c *Corpus, line int, reason string) {
	c.Stats.Malformed++
	l.logger.Warn("skipping malformed record",
		zap.Int("line", line),
		zap.String("reason", reason))
}
