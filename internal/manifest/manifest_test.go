package manifest

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/conneroisu/motiondeck/internal/errors"
	"github.com/conneroisu/motiondeck/internal/registry"
	"github.com/conneroisu/motiondeck/internal/types"
)

const small = `
version: 1
categories:
  - id: timers
    groups:
      - id: stop-watch-motion
        animations: [stop-watch]
      - id: legacy
        variant: CSS
        animations: [stop-watch]
metadata:
  motion:
    stop-watch:
      description: "  ticks  "
      tags: [Timer, timer]
  css:
    stop-watch:
      title: Stopwatch
`

func TestParse_DefaultsAndTitles(t *testing.T) {
	m, err := Parse([]byte(small))
	require.NoError(t, err)
	d := m.Declarations()

	require.Len(t, d.Categories, 1)
	assert.Equal(t, "Timers", d.Categories[0].Title)
	groups := d.Categories[0].Groups
	require.Len(t, groups, 2)
	assert.Equal(t, "Stop Watch", groups[0].Title, "derived from the id stem")
	assert.Equal(t, types.VariantCSS, groups[1].Variant)

	require.Len(t, d.Metadata, 2)
	assert.Equal(t, types.VariantCSS, d.Metadata[0].Variant, "variants are sorted")
	assert.Equal(t, "Stopwatch", d.Metadata[0].Metadata.Title)
	motion := d.Metadata[1].Metadata
	assert.Equal(t, "stop-watch", motion.ID)
	assert.Equal(t, "Stop Watch", motion.Title)
	assert.Equal(t, "ticks", motion.Description)
	assert.Empty(t, d.Components)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", "version: 1\nextras: []\n"},
		{"future version", "version: 2\n"},
		{"unknown variant", "metadata:\n  svg:\n    a: {}\n"},
		{"malformed", "categories: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.NewValidationError(apperrors.ErrCodeManifestInvalid, ""))
		})
	}
}

func TestParse_Empty(t *testing.T) {
	m, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, m.Version)
}

func TestDeclarations_IDMismatchIsReported(t *testing.T) {
	m, err := Parse([]byte("metadata:\n  motion:\n    a:\n      id: b\n"))
	require.NoError(t, err)

	_, err = registry.Resolve(m.Declarations(), registry.Options{})
	var report *registry.Report
	require.ErrorAs(t, err, &report)
	assert.NotEmpty(t, report.Mismatched)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.yml")
	require.NoError(t, os.WriteFile(path, []byte(small), 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, m.Categories, 1)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(bad, []byte("version: 9\n"), 0o644))
	_, err = Load(bad)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, bad, appErr.Context["path"])
}

func TestLoad_DefaultManifest(t *testing.T) {
	m, err := Load("")
	require.NoError(t, err)
	assert.NotEmpty(t, m.Categories)
	assert.Equal(t, Default(), defaultManifest)

	var buf bytes.Buffer
	require.NoError(t, m.Encode(&buf))
	again, err := Parse(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, m, again)
}

type nopUnit struct{}

func (nopUnit) Render(ctx context.Context, w io.Writer) error { return nil }

func TestSource_ResolvesAgainstComponents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.yml")
	require.NoError(t, os.WriteFile(path, []byte(small), 0o644))

	components := []registry.ComponentDecl{
		{ID: "stop-watch", Variant: types.VariantMotion, Factory: func() types.Unit { return nopUnit{} }},
		{ID: "stop-watch", Variant: types.VariantCSS, Factory: func() types.Unit { return nopUnit{} }},
	}
	src := &Source{Path: path, Components: func() []registry.ComponentDecl { return components }, Strict: true}

	table, err := src.Load(context.Background())
	require.NoError(t, err)
	entry, ok := table.Entry("stop-watch")
	require.True(t, ok)
	assert.ElementsMatch(t, []types.Variant{types.VariantMotion, types.VariantCSS}, entry.Variants())

	// Edits on disk are picked up by the next Load.
	require.NoError(t, os.WriteFile(path, []byte(small+"    extra-one: {}\n"), 0o644))
	_, err = src.Load(context.Background())
	var report *registry.Report
	require.ErrorAs(t, err, &report)
	assert.Equal(t, []string{"css:extra-one"}, report.OrphanIDs())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
