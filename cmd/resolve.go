package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/motiondeck/internal/navigation"
	"github.com/conneroisu/motiondeck/internal/types"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <groupId>",
	Short: "Show where a requested group id canonicalizes to",
	Long: `Canonicalize a requested group id against the catalog of one variant,
the same way the server does before rendering a page.

Examples:
  motiondeck resolve countdown-motion    # Exact match, no redirect
  motiondeck resolve countdown           # Tries countdown-motion, then countdown-css
  motiondeck resolve nope                # Falls back to the first group
  motiondeck resolve countdown -f json`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

var resolveFlags *StandardFlags

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveFlags = AddStandardFlags(resolveCmd, "output", "variant")
}

// resolveOutput is what resolve prints.
type resolveOutput struct {
	Requested string        `json:"requested" yaml:"requested"`
	Variant   types.Variant `json:"variant" yaml:"variant"`
	navigation.Result `yaml:",inline"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close(cmd.Context())

	cat, err := a.catalog.Load(cmd.Context(), resolveFlags.VariantOr(a.cfg.Variant()))
	if err != nil {
		return err
	}

	out := resolveOutput{
		Requested: args[0],
		Variant:   cat.Variant,
		Result:    navigation.Canonicalize(args[0], cat.GroupIDs()),
	}
	return writeResolve(cmd.OutOrStdout(), out, resolveFlags.OutputFormat)
}

func writeResolve(w io.Writer, out resolveOutput, format string) error {
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(out)
	case FormatYAML:
		return yaml.NewEncoder(w).Encode(out)
	}

	switch {
	case out.ResolvedID == "":
		_, err := fmt.Fprintln(w, "no groups in the catalog")
		return err
	case out.ShouldRedirect:
		_, err := fmt.Fprintf(w, "%s -> %s (redirect)\n", out.Requested, out.ResolvedID)
		return err
	default:
		_, err := fmt.Fprintf(w, "%s (canonical)\n", out.ResolvedID)
		return err
	}
}
