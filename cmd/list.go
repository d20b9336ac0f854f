package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/motiondeck/internal/catalog"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"l"},
	Short:   "Print the catalog of one variant",
	Long: `Resolve the manifest and print the catalog of one variant:
every category, its groups and the animations in each group.

Examples:
  motiondeck list                     # Table of the default variant
  motiondeck list --variant css       # The CSS catalog
  motiondeck list -f json             # Output as JSON
  motiondeck list -f yaml             # Output as YAML`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var listFlags *StandardFlags

func init() {
	rootCmd.AddCommand(listCmd)

	listFlags = AddStandardFlags(listCmd, "output", "variant")
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close(cmd.Context())

	cat, err := a.catalog.Load(cmd.Context(), listFlags.VariantOr(a.cfg.Variant()))
	if err != nil {
		return err
	}

	return writeCatalog(cmd.OutOrStdout(), cat, listFlags.OutputFormat)
}

func writeCatalog(w io.Writer, cat *catalog.Catalog, format string) error {
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(cat)
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		defer encoder.Close()
		return encoder.Encode(cat)
	case FormatTable, "":
		return writeCatalogTable(w, cat)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func writeCatalogTable(w io.Writer, cat *catalog.Catalog) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tGROUP\tANIMATION\tTITLE\tTAGS")
	fmt.Fprintln(tw, "--------\t-----\t---------\t-----\t----")
	for _, category := range cat.Categories {
		for _, group := range category.Groups {
			for _, ref := range group.Animations {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					category.ID, group.ID, ref.ID, ref.Title, strings.Join(ref.Tags, ","))
			}
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d animations in %d groups (%s)\n", cat.Len(), len(cat.GroupIDs()), cat.Variant)
	return err
}
