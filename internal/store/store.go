// Package store persists analysis runs to SQLite so ranked vocabularies
// can be queried later without re-reading the corpus. Each run is
// immutable once saved: reruns insert new rows under a fresh run ID.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"lexatlas/internal/stats"
)

// ErrNoRuns is returned when a query needs a run but none were saved.
var ErrNoRuns = errors.New("no runs recorded")

// ErrNotFound is returned when a run or category does not exist.
var ErrNotFound = errors.New("not found")

// RunRecord is one persisted analysis run.
type RunRecord struct {
	ID          string
	Source      string
	GeneratedAt time.Time
	Duration    time.Duration
	Records     int
	Malformed   int
	Truncated   int
	Categories  []CategoryRecord
}

// CategoryRecord is one industry's persisted result within a run. Err
// is non-empty when the category's worker failed; its keyword list is
// then empty.
type CategoryRecord struct {
	Name           string
	SampleSize     int
	VocabularySize int
	Err            string
	Keywords       []stats.Keyword
}

// RunSummary is the run listing row.
type RunSummary struct {
	ID          string
	Source      string
	GeneratedAt time.Time
	Industries  int
}

// RunStore wraps the SQLite database holding saved runs.
type RunStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
	logger *zap.Logger
}

// NewRunStore initializes the SQLite database at the given path.
func NewRunStore(path string, logger *zap.Logger) (*RunStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("store")

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logger.Debug("failed to set sqlite busy_timeout", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logger.Debug("failed to set sqlite journal_mode=WAL", zap.Error(err))
	}
	// synchronous=NORMAL is safe under WAL and much faster than FULL.
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logger.Debug("failed to set sqlite synchronous=NORMAL", zap.Error(err))
	}

	s := &RunStore{db: db, dbPath: path, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("run store ready", zap.String("path", path))
	return s, nil
}

// initialize creates the required tables.
func (s *RunStore) initialize() error {
	runsTable := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		generated_at TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		records INTEGER NOT NULL,
		malformed INTEGER NOT NULL,
		truncated INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	categoriesTable := `
	CREATE TABLE IF NOT EXISTS run_categories (
		run_id TEXT NOT NULL,
		name TEXT NOT NULL,
		sample_size INTEGER NOT NULL,
		vocabulary_size INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		PRIMARY KEY(run_id, name)
	);
	CREATE INDEX IF NOT EXISTS idx_run_categories_run ON run_categories(run_id);
	`

	keywordsTable := `
	CREATE TABLE IF NOT EXISTS run_keywords (
		run_id TEXT NOT NULL,
		category TEXT NOT NULL,
		rank INTEGER NOT NULL,
		term TEXT NOT NULL,
		freq INTEGER NOT NULL,
		tfidf REAL NOT NULL,
		exclusivity REAL NOT NULL,
		PRIMARY KEY(run_id, category, rank)
	);
	CREATE INDEX IF NOT EXISTS idx_run_keywords_category ON run_keywords(run_id, category);
	`

	for _, table := range []string{runsTable, categoriesTable, keywordsTable} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *RunStore) Close() error {
	return s.db.Close()
}

// SaveRun persists a run with all its categories and keywords in one
// transaction.
func (s *RunStore) SaveRun(run *RunRecord) error {
	if run.ID == "" {
		return fmt.Errorf("run has no ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO runs (id, source, generated_at, duration_ms, records, malformed, truncated)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.GeneratedAt.UTC().Format(time.RFC3339),
		run.Duration.Milliseconds(), run.Records, run.Malformed, run.Truncated)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	catStmt, err := tx.Prepare(`INSERT INTO run_categories (run_id, name, sample_size, vocabulary_size, error)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare category insert: %w", err)
	}
	defer catStmt.Close()

	kwStmt, err := tx.Prepare(`INSERT INTO run_keywords (run_id, category, rank, term, freq, tfidf, exclusivity)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare keyword insert: %w", err)
	}
	defer kwStmt.Close()

	for _, cat := range run.Categories {
		if _, err := catStmt.Exec(run.ID, cat.Name, cat.SampleSize, cat.VocabularySize, cat.Err); err != nil {
			return fmt.Errorf("failed to insert category %q: %w", cat.Name, err)
		}
		for rank, kw := range cat.Keywords {
			if _, err := kwStmt.Exec(run.ID, cat.Name, rank+1, kw.Term, kw.Freq, kw.TFIDF, kw.Exclusivity); err != nil {
				return fmt.Errorf("failed to insert keyword %q: %w", kw.Term, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	s.logger.Info("run saved",
		zap.String("run_id", run.ID),
		zap.String("source", run.Source),
		zap.Int("categories", len(run.Categories)))
	return nil
}

// LatestRunID returns the most recently saved run.
func (s *RunStore) LatestRunID() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var id string
	err := s.db.QueryRow(`SELECT id FROM runs ORDER BY rowid DESC LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", ErrNoRuns
	}
	if err != nil {
		return "", fmt.Errorf("failed to query latest run: %w", err)
	}
	return id, nil
}

// ResolveRunID resolves a full run ID or an unambiguous ID prefix.
func (s *RunStore) ResolveRunID(idOrPrefix string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id FROM runs WHERE id = ? OR id LIKE ? || '%'
		ORDER BY rowid DESC LIMIT 2`, idOrPrefix, idOrPrefix)
	if err != nil {
		return "", fmt.Errorf("failed to resolve run id: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("failed to scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	switch len(ids) {
	case 0:
		return "", fmt.Errorf("run %q: %w", idOrPrefix, ErrNotFound)
	case 1:
		return ids[0], nil
	default:
		// An exact ID beats other runs sharing it as a prefix.
		for _, id := range ids {
			if id == idOrPrefix {
				return id, nil
			}
		}
		return "", fmt.Errorf("run prefix %q is ambiguous", idOrPrefix)
	}
}

// ListRuns returns up to limit runs, newest first.
func (s *RunStore) ListRuns(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT r.id, r.source, r.generated_at,
		       (SELECT COUNT(*) FROM run_categories c WHERE c.run_id = r.id)
		FROM runs r ORDER BY r.rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var rs RunSummary
		var generated string
		if err := rows.Scan(&rs.ID, &rs.Source, &generated, &rs.Industries); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if t, perr := time.Parse(time.RFC3339, generated); perr == nil {
			rs.GeneratedAt = t
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

// ListCategories returns a run's categories in name order.
func (s *RunStore) ListCategories(runID string) ([]CategoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT name, sample_size, vocabulary_size, error
		FROM run_categories WHERE run_id = ? ORDER BY name`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var out []CategoryRecord
	for rows.Next() {
		var cr CategoryRecord
		if err := rows.Scan(&cr.Name, &cr.SampleSize, &cr.VocabularySize, &cr.Err); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		out = append(out, cr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return out, nil
}

// TopKeywords returns a category's ranked keywords from a run.
func (s *RunStore) TopKeywords(runID, category string) ([]stats.Keyword, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out, err := s.topKeywordsLocked(runID, category)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("category %q in run %s: %w", category, runID, ErrNotFound)
	}
	return out, nil
}

// GetRun loads a full run back, categories and keywords included.
func (s *RunStore) GetRun(runID string) (*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run := &RunRecord{ID: runID}
	var generated string
	var durationMS int64
	err := s.db.QueryRow(`
		SELECT source, generated_at, duration_ms, records, malformed, truncated
		FROM runs WHERE id = ?`, runID).
		Scan(&run.Source, &generated, &durationMS, &run.Records, &run.Malformed, &run.Truncated)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	run.Duration = time.Duration(durationMS) * time.Millisecond
	if t, perr := time.Parse(time.RFC3339, generated); perr == nil {
		run.GeneratedAt = t
	}

	catRows, err := s.db.Query(`
		SELECT name, sample_size, vocabulary_size, error
		FROM run_categories WHERE run_id = ? ORDER BY name`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	defer catRows.Close()

	for catRows.Next() {
		var cr CategoryRecord
		if err := catRows.Scan(&cr.Name, &cr.SampleSize, &cr.VocabularySize, &cr.Err); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		run.Categories = append(run.Categories, cr)
	}
	if err := catRows.Err(); err != nil {
		return nil, err
	}

	for i := range run.Categories {
		kws, err := s.topKeywordsLocked(runID, run.Categories[i].Name)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		run.Categories[i].Keywords = kws
	}
	return run, nil
}

// topKeywordsLocked is TopKeywords without re-locking, for callers that
// already hold the read lock. A category with no keywords returns nil
// rather than ErrNotFound.
func (s *RunStore) topKeywordsLocked(runID, category string) ([]stats.Keyword, error) {
	rows, err := s.db.Query(`
		SELECT term, freq, tfidf, exclusivity
		FROM run_keywords WHERE run_id = ? AND category = ? ORDER BY rank`, runID, category)
	if err != nil {
		return nil, fmt.Errorf("failed to query keywords: %w", err)
	}
	defer rows.Close()

	var out []stats.Keyword
	for rows.Next() {
		var kw stats.Keyword
		if err := rows.Scan(&kw.Term, &kw.Freq, &kw.TFIDF, &kw.Exclusivity); err != nil {
			return nil, fmt.Errorf("failed to scan keyword: %w", err)
		}
		out = append(out, kw)
	}
	return out, rows.Err()
}
