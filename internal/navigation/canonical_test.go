package navigation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/conneroisu/motiondeck/internal/monitoring"
)

func TestCanonicalize(t *testing.T) {
	groups := []string{"fade-motion", "alpha-motion", "beta-css", "gamma-motion", "gamma-css"}

	tests := []struct {
		name      string
		requested string
		groups    []string
		want      Result
	}{
		{"exact match", "beta-css", groups, Result{ResolvedID: "beta-css"}},
		{"bare id prefers motion", "gamma", groups, Result{ResolvedID: "gamma-motion", ShouldRedirect: true}},
		{"bare id falls back to css", "beta", groups, Result{ResolvedID: "beta-css", ShouldRedirect: true}},
		{"only motion exists", "alpha", groups, Result{ResolvedID: "alpha-motion", ShouldRedirect: true}},
		{"suffixed but missing", "alpha-css", groups, Result{ResolvedID: "fade-motion", ShouldRedirect: true}},
		{"empty", "", groups, Result{ResolvedID: "fade-motion", ShouldRedirect: true}},
		{"unknown", "zeta", groups, Result{ResolvedID: "fade-motion", ShouldRedirect: true}},
		{"suffix is not retried", "gamma-motion-css", groups, Result{ResolvedID: "fade-motion", ShouldRedirect: true}},
		{"empty catalog", "alpha", nil, Result{}},
		{"empty catalog and route", "", []string{}, Result{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Canonicalize(tt.requested, tt.groups))
		})
	}
}

// Request /alpha where only alpha-motion exists.
func TestCanonicalize_BareIDPrefersMotion(t *testing.T) {
	res := Canonicalize("alpha", []string{"intro-motion", "alpha-motion"})
	assert.Equal(t, Result{ResolvedID: "alpha-motion", ShouldRedirect: true}, res)
}

// Request /alpha-css where only alpha-motion exists.
func TestCanonicalize_IDMissingInModeFallsBackToFirstGroup(t *testing.T) {
	res := Canonicalize("alpha-css", []string{"intro-motion", "alpha-motion"})
	assert.Equal(t, Result{ResolvedID: "intro-motion", ShouldRedirect: true}, res)
}

func TestCanonicalize_DoesNotMutateInput(t *testing.T) {
	groups := []string{"b-css", "a-css"}
	Canonicalize("a", groups)
	assert.Equal(t, []string{"b-css", "a-css"}, groups)
}

type recordingRouter struct {
	replaced []string
}

func (r *recordingRouter) Replace(groupID string) {
	r.replaced = append(r.replaced, groupID)
}

func TestMachine_Navigate(t *testing.T) {
	router := &recordingRouter{}
	m := NewMachine(router, []string{"fade-motion", "alpha-motion"})

	state := m.Navigate("alpha")
	assert.Equal(t, State{RequestedGroupID: "alpha", ResolvedGroupID: "alpha-motion", NeedsRedirect: true}, state)
	assert.Equal(t, []string{"alpha-motion"}, router.replaced)
	assert.Equal(t, "alpha-motion", m.Route())

	state = m.Navigate("fade-motion")
	assert.False(t, state.NeedsRedirect)
	assert.Len(t, router.replaced, 1, "no redirect for a canonical route")
	assert.Equal(t, state, m.State())
}

func TestMachine_CatalogChangedRecomputes(t *testing.T) {
	router := &recordingRouter{}
	collector := monitoring.NewMetricsCollector("")
	m := NewMachine(router, []string{"fade-motion", "alpha-motion"},
		WithMetrics(monitoring.NewApplicationMetrics(collector)))

	m.Navigate("alpha-motion")
	assert.Empty(t, router.replaced)

	// Variant switch: the css catalog has no alpha-motion.
	state := m.CatalogChanged([]string{"fade-css", "alpha-css"})
	assert.Equal(t, "fade-css", state.ResolvedGroupID)
	assert.Equal(t, []string{"fade-css"}, router.replaced,
		"suffixed ids are not retried; the first group wins")

	// Same catalog again: the route is already canonical.
	state = m.CatalogChanged([]string{"fade-css", "alpha-css"})
	assert.False(t, state.NeedsRedirect)
	assert.Len(t, router.replaced, 1)
	assert.Equal(t, int64(1), collector.CounterValue("navigation_redirects_total", nil))
}

func TestMachine_EmptyCatalogNeverRedirects(t *testing.T) {
	router := &recordingRouter{}
	m := NewMachine(router, nil)

	state := m.Navigate("anything")
	assert.Equal(t, State{RequestedGroupID: "anything"}, state)
	assert.Empty(t, router.replaced)
}

func TestMachine_NilRouter(t *testing.T) {
	m := NewMachine(nil, []string{"a-css"})
	state := m.Navigate("")
	assert.True(t, state.NeedsRedirect)
	assert.Equal(t, "a-css", m.Route())
}
