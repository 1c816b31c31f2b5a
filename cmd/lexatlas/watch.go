package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"lexatlas/internal/pipeline"
	"lexatlas/internal/store"

	"github.com/spf13/cobra"
)

// runWatch watches the corpus file and refreshes the report whenever
// a change settles. Blocks until interrupted.
func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var st *store.RunStore
	if cfg.Store.Enabled {
		st, err = openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()
	}

	engine := pipeline.NewEngine(cfg, st, logger)
	watcher, err := pipeline.NewCorpusWatcher(engine, cfg.GetWatchDebounce(), logger)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to watch %s: %w", cfg.Corpus.Path, err)
	}

	// First run at startup so the report reflects the current corpus.
	watcher.RunNow(ctx)

	fmt.Printf("Watching %s (debounce %s). Press Ctrl+C to stop.\n",
		cfg.Corpus.Path, cfg.GetWatchDebounce())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nStopping")
	cancel()
	watcher.Stop()

	stats := watcher.Stats()
	fmt.Printf("✓ %d runs, %d changes seen, %d errors\n", stats.Runs, stats.Changes, stats.Errors)
	return nil
}
