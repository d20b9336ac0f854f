package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conneroisu/motiondeck/internal/registry"
)

var validateCmd = &cobra.Command{
	Use:     "validate",
	Aliases: []string{"v"},
	Short:   "Check the manifest against the registered demos",
	Long: `Resolve the manifest against every registered demo implementation and
report all inconsistencies at once: orphan metadata, duplicate ids,
metadata whose id differs from its key, group references to unknown
animations, and undocumented components.

Undocumented components are warnings unless --strict is given.

Examples:
  motiondeck validate                  # Validate the configured manifest
  motiondeck validate --strict         # Undocumented components fail too
  motiondeck validate -f json          # Machine-readable report`,
	Args: cobra.NoArgs,
	RunE: runValidateCommand,
}

var (
	validateStrict bool
	validateFormat string
)

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "Treat undocumented components as fatal")
	validateCmd.Flags().StringVarP(&validateFormat, "format", "f", "text", "Output format (text, json)")
	AddFlagValidation(validateCmd, "format", func(format string) error {
		return ValidateFormat(format, []string{"text", FormatJSON})
	})
}

// ValidationSummary is the outcome of validating a manifest.
type ValidationSummary struct {
	Valid        bool     `json:"valid"`
	Strict       bool     `json:"strict"`
	Entries      int      `json:"entries"`
	Warnings     []string `json:"warnings,omitempty"`
	Orphans      []string `json:"orphans,omitempty"`
	Undocumented []string `json:"undocumented,omitempty"`
	Duplicates   []string `json:"duplicates,omitempty"`
	Mismatched   []string `json:"mismatched,omitempty"`
	Dangling     []string `json:"dangling,omitempty"`
	Structural   []string `json:"structural,omitempty"`
}

func runValidateCommand(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close(cmd.Context())

	if cmd.Flags().Changed("strict") {
		a.source.Strict = validateStrict
	}

	table, err := a.source.Load(cmd.Context())
	summary, err := summarize(table, err, a.source.Strict)
	if err != nil {
		return err
	}

	switch validateFormat {
	case FormatJSON:
		if err := outputValidationJSON(cmd.OutOrStdout(), summary); err != nil {
			return err
		}
	default:
		if err := outputValidationText(cmd.OutOrStdout(), summary); err != nil {
			return err
		}
	}

	if !summary.Valid {
		return fmt.Errorf("registry inconsistent")
	}
	return nil
}

// summarize folds a resolve outcome into a summary. Errors that are not a
// registry report, such as an unreadable manifest, are returned as is.
func summarize(table *registry.Table, err error, strict bool) (ValidationSummary, error) {
	summary := ValidationSummary{Strict: strict}
	if err == nil {
		summary.Valid = true
		summary.Entries = table.Len()
		summary.Warnings = table.Warnings()
		return summary, nil
	}

	var report *registry.Report
	if !errors.As(err, &report) {
		return summary, err
	}
	summary.Orphans = report.OrphanIDs()
	summary.Undocumented = report.UndocumentedIDs()
	summary.Duplicates = report.Duplicates
	summary.Mismatched = report.Mismatched
	summary.Dangling = report.Dangling
	summary.Structural = report.Structural
	return summary, nil
}

func outputValidationText(w io.Writer, summary ValidationSummary) error {
	if summary.Valid {
		fmt.Fprintf(w, "✓ Registry consistent: %d entries\n", summary.Entries)
		for _, warning := range summary.Warnings {
			fmt.Fprintf(w, "  ⚠ %s\n", warning)
		}
		return nil
	}

	fmt.Fprintln(w, "✗ Registry inconsistent")
	sections := []struct {
		title string
		ids   []string
	}{
		{"Orphan metadata", summary.Orphans},
		{"Undocumented components", summary.Undocumented},
		{"Duplicate ids", summary.Duplicates},
		{"Metadata id mismatch", summary.Mismatched},
		{"Dangling group references", summary.Dangling},
		{"Structural", summary.Structural},
	}
	for _, section := range sections {
		if len(section.ids) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s (%d):\n", section.title, len(section.ids))
		for _, id := range section.ids {
			fmt.Fprintf(w, "  - %s\n", id)
		}
	}
	return nil
}

func outputValidationJSON(w io.Writer, summary ValidationSummary) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(summary)
}
