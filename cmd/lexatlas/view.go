package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

// runView renders a markdown report for the terminal.
func runView(cmd *cobra.Command, args []string) error {
	var path string
	if len(args) > 0 {
		path = args[0]
	} else {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path = cfg.Report.Path
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no report at %s; run 'lexatlas analyze' first", path)
		}
		return fmt.Errorf("failed to read report: %w", err)
	}

	if raw, _ := cmd.Flags().GetBool("raw"); raw {
		fmt.Print(string(content))
		return nil
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return fmt.Errorf("failed to build renderer: %w", err)
	}

	out, err := renderer.Render(string(content))
	if err != nil {
		// If rendering fails, show plain text
		fmt.Print(string(content))
		return nil
	}
	fmt.Print(out)
	return nil
}
