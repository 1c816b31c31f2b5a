package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fsnotify/fsnotify"
)

// CorpusWatcher watches the corpus file for changes and reruns the
// analysis after writes settle. It watches the parent directory rather
// than the file itself so editors that save via rename keep triggering
// events.
type CorpusWatcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	engine      *Engine
	corpusPath  string
	reportPath  string
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	logger      *zap.Logger

	stats WatcherStats
}

// WatcherStats tracks watcher activity for debugging.
type WatcherStats struct {
	Changes       int
	Runs          int
	Errors        int
	LastEventTime time.Time
	LastRunID     string
}

// NewCorpusWatcher creates a watcher for the engine's configured
// corpus. Each settled change rewrites the configured report file.
func NewCorpusWatcher(engine *Engine, debounce time.Duration, logger *zap.Logger) (*CorpusWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	corpusPath, err := filepath.Abs(engine.cfg.Corpus.Path)
	if err != nil {
		corpusPath = engine.cfg.Corpus.Path
	}

	return &CorpusWatcher{
		watcher:     watcher,
		engine:      engine,
		corpusPath:  corpusPath,
		reportPath:  engine.cfg.Report.Path,
		debounceMap: make(map[string]time.Time),
		debounceDur: debounce,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		logger:      logger.Named("watcher"),
	}, nil
}

// Start begins watching the corpus directory. Non-blocking; the event
// loop runs in a goroutine until Stop is called or ctx is cancelled.
func (w *CorpusWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	dir := filepath.Dir(w.corpusPath)
	if err := w.watcher.Add(dir); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		_ = w.watcher.Close()
		return err
	}
	w.logger.Info("Watching corpus",
		zap.String("file", w.corpusPath),
		zap.Duration("debounce", w.debounceDur))

	go w.run(ctx)

	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *CorpusWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		w.logger.Error("Error closing watcher", zap.Error(err))
	}
	w.logger.Info("Watcher stopped")
}

// run is the watcher's event loop.
func (w *CorpusWatcher) run(ctx context.Context) {
	defer close(w.doneCh)

	// Settled changes are flushed on this cadence.
	debounceTicker := time.NewTicker(100 * time.Millisecond)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Watcher context cancelled")
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watch error", zap.Error(err))
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-debounceTicker.C:
			w.processSettled(ctx)
		}
	}
}

// handleEvent records a corpus-file event for debounced processing.
func (w *CorpusWatcher) handleEvent(event fsnotify.Event) {
	// Only the corpus file matters; the parent directory sees events
	// for every sibling.
	if filepath.Base(event.Name) != filepath.Base(w.corpusPath) {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}

	w.logger.Debug("Corpus changed", zap.String("op", event.Op.String()))

	w.mu.Lock()
	w.stats.Changes++
	w.stats.LastEventTime = time.Now()
	w.debounceMap[event.Name] = time.Now()
	w.mu.Unlock()
}

// processSettled reruns the analysis once pending changes have been
// quiet for the debounce window. Rapid saves collapse into one run.
func (w *CorpusWatcher) processSettled(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	settled := false
	for path, eventTime := range w.debounceMap {
		if now.Sub(eventTime) >= w.debounceDur {
			delete(w.debounceMap, path)
			settled = true
		}
	}
	w.mu.Unlock()

	if settled {
		w.RunNow(ctx)
	}
}

// RunNow runs one analysis immediately and writes the report file.
// Used for the initial run at watch startup and by the event loop for
// settled changes.
func (w *CorpusWatcher) RunNow(ctx context.Context) {
	result, err := w.engine.Run(ctx, time.Now().UTC())
	if err != nil {
		w.logger.Error("Analysis failed", zap.Error(err))
		w.mu.Lock()
		w.stats.Errors++
		w.mu.Unlock()
		return
	}

	if err := writeReport(w.reportPath, result.Markdown); err != nil {
		w.logger.Error("Failed to write report", zap.Error(err))
		w.mu.Lock()
		w.stats.Errors++
		w.mu.Unlock()
		return
	}

	w.mu.Lock()
	w.stats.Runs++
	w.stats.LastRunID = result.RunID
	w.mu.Unlock()

	w.logger.Info("Report refreshed",
		zap.String("run_id", result.RunID),
		zap.String("path", w.reportPath),
		zap.Int("industries", len(result.Report.Sections)),
		zap.Duration("duration", result.Duration))
}

// Stats returns a copy of the watcher statistics.
func (w *CorpusWatcher) Stats() WatcherStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// IsWatching reports whether the event loop is running.
func (w *CorpusWatcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// writeReport writes rendered markdown, creating parent directories as
// needed.
func writeReport(path, markdown string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(markdown), 0644)
}
