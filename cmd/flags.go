package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/conneroisu/motiondeck/internal/types"
)

// Output formats understood by the read-only commands.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// StandardFlags provides consistent flag definitions across commands
type StandardFlags struct {
	// Output flags
	OutputFormat string `flag:"format,f" desc:"Output format (table|json|yaml)" default:"table"`

	// Catalog flags
	Variant VariantValue `flag:"variant" desc:"Variant to use (motion|css)" default:""`
}

// AddStandardFlags adds standard flags to a command
func AddStandardFlags(cmd *cobra.Command, flagTypes ...string) *StandardFlags {
	flags := &StandardFlags{}

	for _, flagType := range flagTypes {
		switch flagType {
		case "output":
			addOutputFlags(cmd, flags)
		case "variant":
			addVariantFlags(cmd, flags)
		}
	}

	return flags
}

func addOutputFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().StringVarP(&flags.OutputFormat, "format", "f", FormatTable, "Output format (table|json|yaml)")
	AddFlagValidation(cmd, "format", func(format string) error {
		return ValidateFormat(format, []string{FormatTable, FormatJSON, FormatYAML})
	})
}

func addVariantFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().Var(&flags.Variant, "variant", "Variant to use (motion|css); defaults to catalog.default_variant")
}

// VariantOr returns the --variant value, or fallback when the flag was not given.
func (f *StandardFlags) VariantOr(fallback types.Variant) types.Variant {
	if f.Variant == "" {
		return fallback
	}
	return types.Variant(f.Variant)
}

// VariantValue is a pflag.Value that only accepts known variants.
type VariantValue types.Variant

// String implements pflag.Value.
func (v *VariantValue) String() string {
	return string(*v)
}

// Set implements pflag.Value.
func (v *VariantValue) Set(s string) error {
	parsed, err := types.ParseVariant(s)
	if err != nil {
		return err
	}
	*v = VariantValue(parsed)
	return nil
}

// Type implements pflag.Value.
func (v *VariantValue) Type() string {
	return "variant"
}

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:       flag.Value,
		validator:   validator,
		originalSet: flag.Value.Set,
	}
}

type validatingValue struct {
	pflag.Value
	validator   func(string) error
	originalSet func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.originalSet(val)
}

// ValidateFormat checks format against the allowed formats.
func ValidateFormat(format string, allowed []string) error {
	for _, a := range allowed {
		if format == a {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q, must be one of: %s", format, strings.Join(allowed, ", "))
}
