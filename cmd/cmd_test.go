package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/motiondeck/internal/catalog"
	"github.com/conneroisu/motiondeck/internal/testutils"
	"github.com/conneroisu/motiondeck/internal/types"
)

// execute runs the root command in an empty working directory with every
// flag back at its default.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	testutils.CreateTempProject(t, "")
	resetFlags(rootCmd)
	listFlags.Variant, resolveFlags.Variant = "", ""
	cfgFile = ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func TestList(t *testing.T) {
	t.Run("table", func(t *testing.T) {
		out, err := execute(t, "list")
		require.NoError(t, err)
		assert.Contains(t, out, "CATEGORY")
		assert.Contains(t, out, "countdown-motion")
		assert.NotContains(t, out, "countdown-css")
		assert.Contains(t, out, "7 animations in 4 groups (motion)")
	})

	t.Run("json css", func(t *testing.T) {
		out, err := execute(t, "list", "--variant", "CSS", "-f", "json")
		require.NoError(t, err)

		var cat catalog.Catalog
		require.NoError(t, json.Unmarshal([]byte(out), &cat))
		assert.Equal(t, types.VariantCSS, cat.Variant)
		assert.Equal(t, []string{"fade-css", "countdown-css", "toast-css"}, cat.GroupIDs())
	})

	t.Run("yaml", func(t *testing.T) {
		out, err := execute(t, "list", "-f", "yaml")
		require.NoError(t, err)
		assert.Contains(t, out, "variant: motion")
		assert.Contains(t, out, "group_id: orbit-motion")
	})

	t.Run("rejects unknown variant and format", func(t *testing.T) {
		_, err := execute(t, "list", "--variant", "svg")
		assert.ErrorContains(t, err, "unknown variant")

		_, err = execute(t, "list", "-f", "csv")
		assert.ErrorContains(t, err, "invalid format")
	})
}

func TestValidate(t *testing.T) {
	t.Run("built-in manifest is consistent under strict", func(t *testing.T) {
		out, err := execute(t, "validate", "--strict")
		require.NoError(t, err)
		assert.Contains(t, out, "Registry consistent")
	})

	t.Run("undocumented components only warn", func(t *testing.T) {
		out, err := execute(t, "validate", "--manifest", testutils.WriteManifest(t, testutils.PartialManifest))
		require.NoError(t, err)
		assert.Contains(t, out, "7 entries")
		assert.Contains(t, out, "⚠")
	})

	t.Run("strict fails on undocumented components", func(t *testing.T) {
		out, err := execute(t, "validate", "--strict", "-f", "json",
			"--manifest", testutils.WriteManifest(t, testutils.PartialManifest))
		require.Error(t, err)

		var summary ValidationSummary
		require.NoError(t, json.Unmarshal([]byte(out), &summary))
		assert.False(t, summary.Valid)
		assert.True(t, summary.Strict)
		assert.Contains(t, summary.Undocumented, "css:fade-in")
		assert.Contains(t, summary.Undocumented, "motion:orbit")
	})

	t.Run("orphan metadata always fails", func(t *testing.T) {
		manifest := testutils.PartialManifest + "  css:\n    ghost:\n      title: Ghost\n"
		out, err := execute(t, "validate", "--manifest", testutils.WriteManifest(t, manifest))
		require.Error(t, err)
		assert.Contains(t, out, "Orphan metadata (1)")
		assert.Contains(t, out, "css:ghost")
	})

	t.Run("unreadable manifest", func(t *testing.T) {
		_, err := execute(t, "validate", "--manifest", filepath.Join(t.TempDir(), "missing.yml"))
		require.Error(t, err)
	})
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"exact", []string{"countdown-motion"}, "countdown-motion (canonical)"},
		{"bare id", []string{"countdown"}, "countdown -> countdown-motion (redirect)"},
		{"bare id css", []string{"countdown", "--variant", "css"}, "countdown -> countdown-css (redirect)"},
		{"other variant", []string{"countdown-css"}, "countdown-css -> fade-motion (redirect)"},
		{"unknown", []string{"nope"}, "nope -> fade-motion (redirect)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, append([]string{"resolve"}, tt.args...)...)
			require.NoError(t, err)
			assert.Equal(t, tt.want+"\n", out)
		})
	}

	t.Run("json", func(t *testing.T) {
		out, err := execute(t, "resolve", "toast", "-f", "json")
		require.NoError(t, err)
		assert.JSONEq(t,
			`{"requested":"toast","variant":"motion","resolvedId":"toast-motion","shouldRedirect":true}`, out)
	})

	t.Run("requires a group id", func(t *testing.T) {
		_, err := execute(t, "resolve")
		assert.Error(t, err)
	})
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "motiondeck ")
	assert.Contains(t, out, "Platform: ")

	out, err = execute(t, "version", "-f", "json")
	require.NoError(t, err)
	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Contains(t, info, "go_version")

	_, err = execute(t, "version", "-f", "xml")
	assert.Error(t, err)
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	manifest := testutils.WriteManifest(t, testutils.PartialManifest)
	cfg := filepath.Join(dir, "deck-config.yml")
	require.NoError(t, os.WriteFile(cfg, []byte("catalog:\n  manifest: "+manifest+"\n"), 0o644))

	out, err := execute(t, "list", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "1 animations in 1 groups (motion)")
}

func TestVariantValue(t *testing.T) {
	var v VariantValue
	assert.Equal(t, "variant", v.Type())
	require.NoError(t, v.Set(" Motion "))
	assert.Equal(t, "motion", v.String())
	assert.Error(t, v.Set("svg"))
	assert.Equal(t, "motion", v.String(), "failed Set keeps the old value")

	flags := &StandardFlags{}
	assert.Equal(t, types.VariantCSS, flags.VariantOr(types.VariantCSS))
	flags.Variant = VariantValue(types.VariantMotion)
	assert.Equal(t, types.VariantMotion, flags.VariantOr(types.VariantCSS))
}
