package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"lexatlas/internal/config"
	"lexatlas/internal/pipeline"
	"lexatlas/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// runAnalyze executes one corpus analysis and writes the report file.
func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyAnalyzeFlags(cmd, cfg)

	generatedAt := time.Now().UTC()
	if date, _ := cmd.Flags().GetString("date"); date != "" {
		generatedAt, err = time.Parse("2006-01-02", date)
		if err != nil {
			return fmt.Errorf("invalid --date %q (want YYYY-MM-DD): %w", date, err)
		}
	}

	var st *store.RunStore
	if noStore, _ := cmd.Flags().GetBool("no-store"); cfg.Store.Enabled && !noStore {
		st, err = openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()
	}

	logger.Info("Starting analysis",
		zap.String("corpus", cfg.Corpus.Path),
		zap.String("output", cfg.Report.Path))

	engine := pipeline.NewEngine(cfg, st, logger)
	result, err := engine.Run(ctx, generatedAt)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	outPath := cfg.Report.Path
	if dir := filepath.Dir(outPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := os.WriteFile(outPath, []byte(result.Markdown), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	fmt.Printf("✓ Report written: %s\n", outPath)
	fmt.Printf("  Industries: %d (%d failed, %d empty skipped)\n",
		len(result.Report.Sections), result.Failed, result.Empty)
	fmt.Printf("  Records:    %d of %d loaded (%d malformed, %d over cap)\n",
		result.Stats.Loaded, result.Stats.Records, result.Stats.Malformed, result.Stats.Truncated)
	fmt.Printf("  Duration:   %s\n", result.Duration.Round(time.Millisecond))
	if st != nil {
		fmt.Printf("  Saved as:   run %s\n", result.RunID)
	}
	return nil
}

// applyAnalyzeFlags folds command-line overrides into the config.
func applyAnalyzeFlags(cmd *cobra.Command, cfg *config.Config) {
	if corpusPath, _ := cmd.Flags().GetString("corpus"); corpusPath != "" {
		cfg.Corpus.Path = corpusPath
	}
	if output, _ := cmd.Flags().GetString("output"); output != "" {
		cfg.Report.Path = output
	}
	if top, _ := cmd.Flags().GetInt("top"); top > 0 {
		cfg.Analysis.TopKeywords = top
	}
	if maxPerCat, _ := cmd.Flags().GetInt("max-per-category"); maxPerCat > 0 {
		cfg.Corpus.MaxPerCategory = maxPerCat
	}
	if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
		cfg.Analysis.Workers = workers
	}
}
