// Package server serves the deck: the shell page for the canonical group,
// the card and catalog APIs, and a WebSocket hub that pushes catalog
// commits, redirects and card transitions to the browser.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/conneroisu/motiondeck/internal/catalog"
	"github.com/conneroisu/motiondeck/internal/config"
	apperrors "github.com/conneroisu/motiondeck/internal/errors"
	"github.com/conneroisu/motiondeck/internal/lifecycle"
	"github.com/conneroisu/motiondeck/internal/logging"
	"github.com/conneroisu/motiondeck/internal/monitoring"
	"github.com/conneroisu/motiondeck/internal/navigation"
	"github.com/conneroisu/motiondeck/internal/types"
	"github.com/conneroisu/motiondeck/internal/watcher"
)

// goroutineThreshold is where the health check starts reporting degraded.
const goroutineThreshold = 1000

// UnitLookup finds a registered unit factory by animation id and variant.
type UnitLookup func(id string, variant types.Variant) (types.UnitFactory, bool)

// Deps are the collaborators a Server is built from.
type Deps struct {
	Catalog *catalog.Service
	// Units backs POST /api/extras, which reuses a registered unit under a
	// new animation id.
	Units   UnitLookup
	Logger  logging.Logger
	Metrics *monitoring.ApplicationMetrics
	Faults  *apperrors.FaultLog
	// Clock drives demo timers. Defaults to the real clock.
	Clock lifecycle.Clock
	// Dispatch schedules visibility notifications. Defaults to one
	// goroutine per notification.
	Dispatch func(func())
}

// Server serves the animation deck
type Server struct {
	config     *config.Config
	catalog    *catalog.Service
	units      UnitLookup
	logger     logging.Logger
	metrics    *monitoring.ApplicationMetrics
	faults     *apperrors.FaultLog
	errHandler *apperrors.ErrorHandler
	clock      lifecycle.Clock
	dispatch   func(func())

	sessions *SessionStore
	hub      *Hub
	health   *monitoring.HealthMonitor
	watcher  *watcher.ManifestWatcher
	started  time.Time

	serverMutex sync.RWMutex
	httpServer  *http.Server
	ctx         context.Context
	cancel      context.CancelFunc

	shutdownOnce sync.Once
}

// New creates a server. Nothing runs until Start.
func New(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Catalog == nil {
		return nil, fmt.Errorf("server requires a catalog service")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	faults := deps.Faults
	if faults == nil {
		faults = apperrors.NewFaultLog(100)
	}
	clock := deps.Clock
	if clock == nil {
		clock = lifecycle.RealClock()
	}

	s := &Server{
		config:     cfg,
		catalog:    deps.Catalog,
		units:      deps.Units,
		logger:     logger.WithComponent("server"),
		metrics:    deps.Metrics,
		faults:     faults,
		errHandler: apperrors.NewErrorHandler(logger.WithComponent("server")),
		clock:      clock,
		dispatch:   deps.Dispatch,
		started:    time.Now(),
	}
	s.hub = NewHub(logger, deps.Metrics, s.handleClientMessage)
	s.sessions = NewSessionStore(cfg.Sessions.TTL, cfg.Sessions.Cleanup, s.newSession, logger, deps.Metrics)
	if collector := deps.Metrics.Collector(); collector != nil {
		collector.RegisterCollector(liveCollector{s: s})
	}
	s.health = monitoring.NewHealthMonitor(logger)
	s.health.RegisterCheck(monitoring.NewHealthCheckFunc("catalog", true, s.checkCatalog))
	s.health.RegisterCheck(monitoring.GoroutineHealthChecker(goroutineThreshold))
	return s, nil
}

// liveCollector reports figures read from the server at gather time.
type liveCollector struct {
	s *Server
}

func (liveCollector) Name() string { return "live" }

func (c liveCollector) Collect() []monitoring.Metric {
	now := time.Now()
	return []monitoring.Metric{
		{Name: "websocket_clients", Type: monitoring.MetricTypeGauge, Value: float64(c.s.hub.Len()), Timestamp: now},
		{Name: "demo_faults_recorded", Type: monitoring.MetricTypeGauge, Value: float64(c.s.faults.Len()), Timestamp: now},
	}
}

// checkCatalog fails on a registry inconsistency and degrades on a
// retryable load failure.
func (s *Server) checkCatalog(ctx context.Context) monitoring.HealthCheck {
	check := monitoring.HealthCheck{
		Status:   monitoring.HealthStatusHealthy,
		Metadata: map[string]interface{}{"generation": s.catalog.Generation()},
	}
	switch err := s.catalog.Err(); {
	case apperrors.IsRegistryError(err):
		check.Status = monitoring.HealthStatusUnhealthy
		check.Message = err.Error()
	case err != nil:
		check.Status = monitoring.HealthStatusDegraded
		check.Message = err.Error()
	case s.catalog.Current() == nil:
		check.Message = "loading"
	default:
		check.Metadata["animations"] = s.catalog.Current().Len()
	}
	return check
}

// newSession wires a stage and a navigation machine for one session. The
// machine's redirects and the stage's card transitions go to the
// session's WebSocket clients.
func (s *Server) newSession(id string) *Session {
	stage := lifecycle.NewStage(lifecycle.CardOptions{
		Clock:  s.clock,
		Logger: s.logger.With("session", id),
		Faults: s.faults,
		OnChange: func(snap lifecycle.Snapshot) {
			s.metrics.CardTransition(string(snap.State))
			s.hub.SendTo(id, UpdateMessage{Type: MessageCard, Card: &snap})
		},
	}, s.dispatch)

	var groups []string
	if cat := s.catalog.Current(); cat != nil {
		groups = cat.GroupIDs()
	}
	router := navigation.RouterFunc(func(groupID string) {
		s.hub.SendTo(id, UpdateMessage{Type: MessageRedirect, Group: groupID})
	})
	machine := navigation.NewMachine(router, groups,
		navigation.WithLogger(s.logger.With("session", id)),
		navigation.WithMetrics(s.metrics))

	return &Session{ID: id, Stage: stage, Machine: machine}
}

// Handler returns the routed handler wrapped in middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /api/catalog", s.handleCatalog)
	mux.HandleFunc("POST /api/catalog/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/mode", s.handleGetMode)
	mux.HandleFunc("POST /api/mode", s.handleSetMode)
	mux.HandleFunc("GET /api/navigate", s.handleNavigate)
	mux.HandleFunc("POST /api/extras", s.handleAddExtra)
	mux.HandleFunc("GET /api/cards", s.handleCards)
	mux.HandleFunc("POST /api/cards/{id}/visible", s.handleCardVisible)
	mux.HandleFunc("POST /api/cards/{id}/replay", s.handleCardReplay)
	mux.HandleFunc("DELETE /api/cards/{id}", s.handleCardUnmount)
	mux.HandleFunc("GET /api/metrics", s.handleMetrics)
	mux.HandleFunc("GET /api/faults", s.handleFaults)
	mux.HandleFunc("DELETE /api/faults", s.handleClearFaults)
	mux.HandleFunc("GET /render/{id}", s.handleRender)

	mux.HandleFunc("GET /{$}", s.handleShell)
	mux.HandleFunc("GET /{group}", s.handleShell)

	return s.addMiddleware(mux)
}

// Start loads the initial catalog, starts the hub, the catalog listener
// and, when configured, the manifest watcher, then serves HTTP until
// Shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	runCtx, cancel := context.WithCancel(ctx)

	s.serverMutex.Lock()
	s.ctx, s.cancel = runCtx, cancel
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	if _, err := s.catalog.Load(runCtx, s.config.Variant()); err != nil {
		// The shell reports the failure and offers a retry.
		s.logger.Error(runCtx, err, "Initial catalog load failed", "variant", s.config.Variant())
	}

	go s.hub.Run(runCtx)
	go s.listenCatalog(runCtx)

	if s.config.Catalog.Watch && s.config.Catalog.Manifest != "" {
		mw, err := watcher.NewManifestWatcher(s.config.Catalog.Manifest, s.catalog, s.Variant,
			watcher.DefaultDebounce, s.logger, s.metrics)
		if err != nil {
			s.logger.Warn(runCtx, err, "Manifest watcher disabled", "path", s.config.Catalog.Manifest)
		} else if err := mw.Start(runCtx); err == nil {
			s.serverMutex.Lock()
			s.watcher = mw
			s.serverMutex.Unlock()
		}
	}

	s.logger.Info(runCtx, "Serving deck", "addr", ln.Addr().String(), "variant", s.Variant())
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// runCtx is the context of the running server, used by long-lived
// connections.
func (s *Server) runCtx() context.Context {
	s.serverMutex.RLock()
	defer s.serverMutex.RUnlock()
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

// Variant returns the code mode of the committed catalog, or the configured
// default before the first commit.
func (s *Server) Variant() types.Variant {
	if cat := s.catalog.Current(); cat != nil {
		return cat.Variant
	}
	return s.config.Variant()
}

// listenCatalog keeps every session and browser in step with committed
// catalog state.
func (s *Server) listenCatalog(ctx context.Context) {
	events := s.catalog.Subscribe()
	defer s.catalog.Unsubscribe(events)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.onCatalogEvent(ev)
		}
	}
}

func (s *Server) onCatalogEvent(ev types.CatalogEvent) {
	switch ev.Type {
	case types.EventTypeFailed:
		msg := UpdateMessage{Type: MessageCatalogError, Variant: ev.Variant.String(), Generation: ev.Generation,
			Retry: apperrors.IsRecoverable(ev.Err)}
		if ev.Err != nil {
			msg.Error = ev.Err.Error()
		}
		s.hub.Broadcast(msg)
	default:
		cat := s.catalog.Current()
		if cat == nil {
			return
		}
		s.applyCatalog(cat)
		s.hub.Broadcast(UpdateMessage{Type: MessageCatalog, Variant: cat.Variant.String(), Generation: cat.Generation})
	}
}

// applyCatalog re-canonicalizes every session against cat and reshows its
// stage.
func (s *Server) applyCatalog(cat *catalog.Catalog) {
	s.sessions.Each(func(sess *Session) {
		state := sess.Machine.CatalogChanged(cat.GroupIDs())
		show(sess, cat, state.ResolvedGroupID)
	})
}

// show puts the cards of groupID on the session's stage. An unknown or
// empty group clears the stage.
func show(sess *Session, cat *catalog.Catalog, groupID string) {
	group, _ := cat.Group(groupID)
	sess.Stage.Show(group.ID, group.Animations, cat.Unit)
}

func (s *Server) handleClientMessage(ctx context.Context, sessionID string, msg ClientMessage) error {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return fmt.Errorf("session expired")
	}
	switch msg.Type {
	case "visible":
		return sess.Stage.Visible(msg.ID)
	case "replay":
		_, accepted, err := sess.Stage.Replay(msg.ID)
		if err == nil {
			s.metrics.CardReplay(accepted)
		}
		return err
	case "unmount":
		return sess.Stage.Unmount(msg.ID)
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
}

// Shutdown gracefully shuts down the server and cleans up resources
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down server")

		s.serverMutex.RLock()
		server, cancel, mw := s.httpServer, s.cancel, s.watcher
		s.serverMutex.RUnlock()

		if mw != nil {
			if err := mw.Stop(); err != nil {
				s.logger.Warn(ctx, err, "Stopping manifest watcher")
			}
		}
		if cancel != nil {
			cancel()
		}
		if server != nil {
			shutdownErr = server.Shutdown(ctx)
		}
		s.sessions.Close()
	})

	return shutdownErr
}
