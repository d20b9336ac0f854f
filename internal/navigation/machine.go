package navigation

import (
	"context"
	"sync"

	"github.com/conneroisu/motiondeck/internal/logging"
	"github.com/conneroisu/motiondeck/internal/monitoring"
)

// Router performs an in-place route replacement that adds no history entry.
type Router interface {
	Replace(groupID string)
}

// RouterFunc adapts a function to Router.
type RouterFunc func(groupID string)

// Replace implements Router.
func (f RouterFunc) Replace(groupID string) { f(groupID) }

// State is derived on every event and never persisted.
type State struct {
	RequestedGroupID string `json:"requestedGroupId"`
	ResolvedGroupID  string `json:"resolvedGroupId"`
	NeedsRedirect    bool   `json:"needsRedirect"`
}

// Machine tracks the route of one session and keeps it canonical as the
// route or the catalog changes.
type Machine struct {
	mu      sync.Mutex
	router  Router
	route   string
	groups  []string
	state   State
	logger  logging.Logger
	metrics *monitoring.ApplicationMetrics
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithLogger sets the machine's logger.
func WithLogger(logger logging.Logger) MachineOption {
	return func(m *Machine) { m.logger = logger.WithComponent("navigation") }
}

// WithMetrics counts redirects.
func WithMetrics(metrics *monitoring.ApplicationMetrics) MachineOption {
	return func(m *Machine) { m.metrics = metrics }
}

// NewMachine creates a machine over groups, in catalog order. router may be
// nil when redirects only need to be reported through State.
func NewMachine(router Router, groups []string, opts ...MachineOption) *Machine {
	m := &Machine{
		router: router,
		groups: append([]string(nil), groups...),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Navigate handles a route change to requested.
func (m *Machine) Navigate(requested string) State {
	m.mu.Lock()
	m.route = requested
	state, replace := m.recomputeLocked()
	m.mu.Unlock()

	m.redirect(state, replace)
	return state
}

// CatalogChanged re-evaluates the current route against a new group list,
// for example after a variant switch.
func (m *Machine) CatalogChanged(groups []string) State {
	m.mu.Lock()
	m.groups = append([]string(nil), groups...)
	state, replace := m.recomputeLocked()
	m.mu.Unlock()

	m.redirect(state, replace)
	return state
}

// State returns the last derived state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Route returns the route as it stands after any redirect.
func (m *Machine) Route() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.route
}

func (m *Machine) recomputeLocked() (State, bool) {
	res := Canonicalize(m.route, m.groups)
	m.state = State{
		RequestedGroupID: m.route,
		ResolvedGroupID:  res.ResolvedID,
		NeedsRedirect:    res.ShouldRedirect,
	}
	if res.ShouldRedirect {
		m.route = res.ResolvedID
	}
	return m.state, res.ShouldRedirect
}

// redirect issues at most one replacement per event.
func (m *Machine) redirect(state State, replace bool) {
	if !replace {
		return
	}
	m.metrics.NavigationRedirect()
	m.logger.Debug(context.Background(), "Canonical redirect",
		"requested", state.RequestedGroupID, "resolved", state.ResolvedGroupID)
	if m.router != nil {
		m.router.Replace(state.ResolvedGroupID)
	}
}
