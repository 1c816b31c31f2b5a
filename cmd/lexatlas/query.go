package main

import (
	"errors"
	"fmt"

	"lexatlas/internal/store"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// Query output styling
var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#2196F3")). // Blue
			Bold(true)

	termStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8BC34A")). // Lime Green
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")) // Grey

	failedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e53935")). // Red
			Bold(true)
)

// showTop prints one industry's ranked keywords from a saved run.
func showTop(cmd *cobra.Command, args []string) error {
	industry := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	runID, err := resolveRunID(st, cmd)
	if err != nil {
		return err
	}

	keywords, err := st.TopKeywords(runID, industry)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no keywords for %q in run %s (see 'lexatlas industries')", industry, shortID(runID))
		}
		return err
	}

	fmt.Printf("%s %s\n", titleStyle.Render(industry), mutedStyle.Render("run "+shortID(runID)))
	for i, kw := range keywords {
		fmt.Printf("%4d. %s %s\n",
			i+1,
			termStyle.Render(fmt.Sprintf("%-24s", kw.Term)),
			mutedStyle.Render(fmt.Sprintf("freq %-6d tfidf %-9.2f excl %.2f", kw.Freq, kw.TFIDF, kw.Exclusivity)))
	}
	return nil
}

// showIndustries lists a run's industries with their sample and
// vocabulary sizes.
func showIndustries(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	runID, err := resolveRunID(st, cmd)
	if err != nil {
		return err
	}

	categories, err := st.ListCategories(runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("run %s has no industries", shortID(runID))
		}
		return err
	}

	fmt.Println(titleStyle.Render("Industries") + " " + mutedStyle.Render("run "+shortID(runID)))
	for _, c := range categories {
		if c.Err != "" {
			fmt.Printf("  %-32s %s\n", c.Name, failedStyle.Render("analysis failed: "+c.Err))
			continue
		}
		fmt.Printf("  %-32s %s\n", c.Name,
			mutedStyle.Render(fmt.Sprintf("%6d companies %8d terms", c.SampleSize, c.VocabularySize)))
	}
	fmt.Println(mutedStyle.Render(fmt.Sprintf("%d industries", len(categories))))
	return nil
}

// showRuns lists saved runs, newest first.
func showRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := st.ListRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No saved runs. Run 'lexatlas analyze' first.")
		return nil
	}

	fmt.Println(titleStyle.Render("Saved runs"))
	for _, r := range runs {
		fmt.Printf("  %s  %s  %s\n",
			termStyle.Render(shortID(r.ID)),
			r.GeneratedAt.Format("2006-01-02 15:04"),
			mutedStyle.Render(fmt.Sprintf("%d industries  %s", r.Industries, r.Source)))
	}
	return nil
}

// resolveRunID picks the run to query: the --run flag if given
// (full ID or unambiguous prefix), otherwise the most recent run.
func resolveRunID(st *store.RunStore, cmd *cobra.Command) (string, error) {
	if runID, _ := cmd.Flags().GetString("run"); runID != "" {
		id, err := st.ResolveRunID(runID)
		if err != nil {
			return "", err
		}
		return id, nil
	}
	id, err := st.LatestRunID()
	if err != nil {
		if errors.Is(err, store.ErrNoRuns) {
			return "", fmt.Errorf("no saved runs yet; run 'lexatlas analyze' first")
		}
		return "", err
	}
	return id, nil
}

// shortID abbreviates a run ID for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
