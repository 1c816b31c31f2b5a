package main

import (
	"fmt"
	"os"
	"time"

	"lexatlas/internal/config"
	"lexatlas/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const appVersion = "0.1.0"

var (
	// Global flags
	verbose bool
	cfgPath string
	timeout time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "lexatlas",
	Short: "lexatlas - industry vocabulary mapper",
	Long: `lexatlas maps the vocabulary of industries from company metadata.

It ingests a corpus of company records (JSONL or CSV), groups them by
industry, and ranks each industry's distinctive terms by TF-IDF and
exclusivity. Results land in a markdown report and, optionally, in a
local SQLite database for later querying.

Start with 'lexatlas analyze' to build a report from your corpus.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// analyzeCmd runs one full corpus analysis
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze the corpus and write the vocabulary report",
	Long: `Runs the full analysis pipeline:
  1. Ingest: parse company records and partition them by industry
  2. Count:  tally per-industry term presence in parallel
  3. Score:  rank terms by TF-IDF and exclusivity against the corpus
  4. Report: render the markdown report (and persist the run)

Example:
  lexatlas analyze --corpus companies.jsonl --output vocab.md`,
	RunE: runAnalyze,
}

// topCmd shows an industry's ranked keywords from a saved run
var topCmd = &cobra.Command{
	Use:   "top [industry]",
	Short: "Show an industry's top keywords from a saved run",
	Long: `Prints the ranked keyword list for one industry.

Reads the most recent saved run unless --run selects another.

Example:
  lexatlas top "Law Practice"
  lexatlas top Breweries --run 4f7c21aa`,
	Args: cobra.ExactArgs(1),
	RunE: showTop,
}

// industriesCmd lists the industries of a saved run
var industriesCmd = &cobra.Command{
	Use:   "industries",
	Short: "List the industries of a saved run",
	Args:  cobra.NoArgs,
	RunE:  showIndustries,
}

// runsCmd lists saved runs
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List saved analysis runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  showRuns,
}

// viewCmd renders the markdown report in the terminal
var viewCmd = &cobra.Command{
	Use:   "view [report-file]",
	Short: "Render a vocabulary report in the terminal",
	Long: `Renders a markdown report with terminal styling.

Without an argument the configured report path is shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runView,
}

// watchCmd reruns the analysis whenever the corpus changes
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the corpus and refresh the report on changes",
	Long: `Watches the corpus file and reruns the analysis after each change
settles. Rapid saves are debounced into a single run. An initial run
fires at startup so the report is never stale.

Stop with Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

// versionCmd prints the version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the lexatlas version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("lexatlas %s\n", appVersion)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", config.DefaultPath, "Config file path")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "Analysis timeout")

	// Analyze flags
	analyzeCmd.Flags().String("corpus", "", "Corpus file (.jsonl, .ndjson or .csv); overrides config")
	analyzeCmd.Flags().StringP("output", "o", "", "Report output path; overrides config")
	analyzeCmd.Flags().Int("top", 0, "Keywords kept per industry; overrides config")
	analyzeCmd.Flags().Int("max-per-category", 0, "Per-industry sample cap; overrides config")
	analyzeCmd.Flags().Int("workers", 0, "Parallel category workers (0 = one per CPU)")
	analyzeCmd.Flags().String("date", "", "Report date as YYYY-MM-DD (default: today, UTC)")
	analyzeCmd.Flags().Bool("no-store", false, "Skip saving the run to the database")

	// Query flags
	topCmd.Flags().String("run", "", "Run ID (default: most recent run)")
	industriesCmd.Flags().String("run", "", "Run ID (default: most recent run)")
	runsCmd.Flags().Int("limit", 10, "Maximum runs to list")

	// View flags
	viewCmd.Flags().Bool("raw", false, "Print the report without terminal styling")

	// Add commands to root
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(topCmd)
	rootCmd.AddCommand(industriesCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, falling back to defaults when it
// does not exist.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openStore opens the run database, or errors when persistence is
// disabled.
func openStore(cfg *config.Config) (*store.RunStore, error) {
	if !cfg.Store.Enabled {
		return nil, fmt.Errorf("run persistence is disabled (set store.enabled in %s)", cfgPath)
	}
	st, err := store.NewRunStore(cfg.Store.DatabasePath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open run database: %w", err)
	}
	return st, nil
}
