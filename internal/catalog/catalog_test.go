package catalog

import (
	"context"
	"io"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/conneroisu/motiondeck/internal/errors"
	"github.com/conneroisu/motiondeck/internal/registry"
	"github.com/conneroisu/motiondeck/internal/types"
)

type stubUnit struct{ id string }

func (u stubUnit) Render(ctx context.Context, w io.Writer) error {
	_, err := io.WriteString(w, u.id)
	return err
}

// fixture declares two categories, each with a motion and a css group.
type fixture struct {
	built atomic.Int32
}

func (f *fixture) factory(id string) types.UnitFactory {
	return func() types.Unit {
		f.built.Add(1)
		return stubUnit{id: id}
	}
}

func (f *fixture) declarations() registry.Declarations {
	var d registry.Declarations
	d.Categories = []registry.CategoryDecl{
		{ID: "basics", Title: "Basics", Groups: []registry.GroupDecl{
			{ID: "fade-motion", Title: "Fade", Animations: []string{"fade", "slide"}},
			{ID: "fade-css", Title: "Fade", Animations: []string{"fade"}},
		}},
		{ID: "timers", Title: "Timers", Groups: []registry.GroupDecl{
			{ID: "countdown-motion", Title: "Countdown", TechHint: "setInterval", Animations: []string{"countdown"}},
			{ID: "countdown-css", Title: "Countdown", Animations: []string{"countdown"}},
		}},
	}
	add := func(v types.Variant, ids ...string) {
		for _, id := range ids {
			d.Metadata = append(d.Metadata, registry.MetadataDecl{
				Variant:  v,
				Metadata: types.Metadata{ID: id, Title: id + " " + string(v)},
			})
			d.Components = append(d.Components, registry.ComponentDecl{ID: id, Variant: v, Factory: f.factory(id)})
		}
	}
	add(types.VariantMotion, "fade", "slide", "countdown")
	add(types.VariantCSS, "fade", "countdown")
	return d
}

func (f *fixture) table(t *testing.T) *registry.Table {
	t.Helper()
	table, err := registry.Resolve(f.declarations(), registry.Options{Strict: true})
	require.NoError(t, err)
	return table
}

func TestBuild_ProjectsOneVariant(t *testing.T) {
	f := &fixture{}
	table := f.table(t)

	motion, err := Build(table, types.VariantMotion)
	require.NoError(t, err)
	assert.Equal(t, []string{"fade-motion", "countdown-motion"}, motion.GroupIDs())
	assert.Equal(t, 3, motion.Len())

	css, err := Build(table, types.VariantCSS)
	require.NoError(t, err)
	assert.Equal(t, []string{"fade-css", "countdown-css"}, css.GroupIDs())

	g, ok := css.Group("fade-css")
	require.True(t, ok)
	require.Len(t, g.Animations, 1)
	assert.Equal(t, "fade css", g.Animations[0].Title)
	assert.Equal(t, "basics", g.Animations[0].CategoryID)

	assert.Equal(t, int32(0), f.built.Load(), "projection never instantiates units")

	_, ok = css.Unit("slide")
	assert.False(t, ok, "motion-only unit is not part of the css view")
	factory, ok := css.Unit("fade")
	require.True(t, ok)
	factory()
	assert.Equal(t, int32(1), f.built.Load())
}

func TestBuild_Errors(t *testing.T) {
	_, err := Build(nil, types.VariantMotion)
	assert.Error(t, err)

	f := &fixture{}
	_, err = Build(f.table(t), types.Variant("svg"))
	assert.Error(t, err)
}

func TestBuild_OmitsEmptyCategories(t *testing.T) {
	f := &fixture{}
	decls := f.declarations()
	decls.Categories = append(decls.Categories, registry.CategoryDecl{
		ID: "labs", Title: "Labs", Groups: []registry.GroupDecl{
			{ID: "glow-motion", Animations: []string{"slide"}},
		},
	})
	table, err := registry.Resolve(decls, registry.Options{})
	require.NoError(t, err)

	css, err := Build(table, types.VariantCSS)
	require.NoError(t, err)
	_, ok := css.Category("labs")
	assert.False(t, ok)
}

func TestCatalog_Lookups(t *testing.T) {
	f := &fixture{}
	cat, err := Build(f.table(t), types.VariantMotion)
	require.NoError(t, err)

	ref, ok := cat.Animation("countdown")
	require.True(t, ok)
	assert.Equal(t, "countdown-motion", ref.GroupID)

	_, ok = cat.Animation("missing")
	assert.False(t, ok)
	_, ok = cat.Group("missing")
	assert.False(t, ok)

	var nilCat *Catalog
	assert.Nil(t, nilCat.GroupIDs())
	assert.Zero(t, nilCat.Len())
	_, ok = nilCat.Unit("fade")
	assert.False(t, ok)
}

func TestCatalog_WithExtraClones(t *testing.T) {
	f := &fixture{}
	cat, err := Build(f.table(t), types.VariantMotion)
	require.NoError(t, err)

	extra := Extra{
		CategoryID: "basics",
		GroupID:    "fade-motion",
		Metadata:   types.Metadata{ID: "flip", Title: "Flip"},
		Factory:    f.factory("flip"),
	}
	next, ref, err := cat.withExtra(extra)
	require.NoError(t, err)
	assert.Equal(t, "fade-motion", ref.GroupID)

	orig, _ := cat.Group("fade-motion")
	grown, _ := next.Group("fade-motion")
	assert.Len(t, orig.Animations, 2, "original is untouched")
	assert.Len(t, grown.Animations, 3)
	_, ok := cat.Unit("flip")
	assert.False(t, ok)
	_, ok = next.Unit("flip")
	assert.True(t, ok)

	_, _, err = next.withExtra(extra)
	assert.ErrorIs(t, err, apperrors.NewValidationError(apperrors.ErrCodeDuplicateAnimation, ""))

	extra.GroupID = "nope"
	_, _, err = cat.withExtra(extra)
	assert.ErrorIs(t, err, apperrors.ErrGroupNotFound("nope"))

	extra.CategoryID = "nope"
	_, _, err = cat.withExtra(extra)
	assert.ErrorIs(t, err, apperrors.ErrCategoryNotFound("nope"))
}
