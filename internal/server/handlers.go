package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/conneroisu/motiondeck/internal/catalog"
	apperrors "github.com/conneroisu/motiondeck/internal/errors"
	"github.com/conneroisu/motiondeck/internal/monitoring"
	"github.com/conneroisu/motiondeck/internal/navigation"
	"github.com/conneroisu/motiondeck/internal/registry"
	"github.com/conneroisu/motiondeck/internal/types"
	"github.com/conneroisu/motiondeck/internal/version"
)

// retryAfter is the hint sent with recoverable catalog failures.
const retryAfter = 2 * time.Second

// lookupSession returns the session named by the request's cookie or
// "session" query parameter.
func (s *Server) lookupSession(r *http.Request) (*Session, bool) {
	id := r.URL.Query().Get("session")
	if c, err := r.Cookie(sessionCookie); err == nil {
		id = c.Value
	}
	return s.sessions.Get(id)
}

// session returns the caller's session, creating one and setting the
// cookie when there is none.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *Session {
	if sess, ok := s.lookupSession(r); ok {
		return sess
	}
	sess := s.sessions.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sess
}

// currentCatalog returns the committed catalog, loading the current
// variant when nothing is committed yet. Page views never take a new token
// once a catalog exists, so they cannot supersede a mode switch in flight.
func (s *Server) currentCatalog(r *http.Request) (*catalog.Catalog, error) {
	if err := s.catalog.Err(); err != nil {
		return nil, err
	}
	if cat := s.catalog.Current(); cat != nil {
		return cat, nil
	}
	return s.catalog.Load(r.Context(), s.Variant())
}

func (s *Server) handleShell(w http.ResponseWriter, r *http.Request) {
	requested := r.PathValue("group")

	cat, err := s.currentCatalog(r)
	if err != nil {
		s.writeShellError(w, r, err)
		return
	}

	sess := s.session(w, r)
	state := sess.Machine.Navigate(requested)
	show(sess, cat, state.ResolvedGroupID)

	if state.NeedsRedirect {
		w.Header().Set("X-Canonical-Group", state.ResolvedGroupID)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Add("Vary", fragmentHeader)
	data := shellData{
		Catalog:   cat,
		State:     state,
		Cards:     sess.Stage.Cards(),
		SessionID: sess.ID,
	}
	page := shellPage(data)
	if r.Header.Get(fragmentHeader) != "" {
		page = shellView(data)
	}
	if err := page.Render(r.Context(), w); err != nil {
		s.logger.Error(r.Context(), err, "Shell render failed", "group", state.ResolvedGroupID)
	}
}

func (s *Server) writeShellError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if apperrors.IsRecoverable(err) {
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = errorPage(err, apperrors.IsRecoverable(err)).Render(r.Context(), w)
}

type catalogResponse struct {
	*catalog.Catalog
	Len int `json:"animationCount"`
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	cat, err := s.currentCatalog(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, catalogResponse{Catalog: cat, Len: cat.Len()})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	cat, err := s.catalog.Refresh(r.Context(), s.Variant())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, catalogResponse{Catalog: cat, Len: cat.Len()})
}

type modeRequest struct {
	Variant string `json:"variant"`
}

type modeResponse struct {
	Variant    types.Variant `json:"variant"`
	Generation uint64        `json:"generation"`
}

func (s *Server) handleGetMode(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, modeResponse{Variant: s.Variant(), Generation: s.catalog.Generation()})
}

// handleSetMode switches the code mode. Sessions follow through the
// catalog's commit event; the response carries whatever is committed once
// this request settles, which may be a newer request's catalog.
func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apperrors.NewValidationError(apperrors.ErrCodeValidationFailed, "invalid request body"))
		return
	}
	variant, err := types.ParseVariant(req.Variant)
	if err != nil {
		s.writeError(w, r, apperrors.NewValidationError(apperrors.ErrCodeValidationFailed, err.Error()))
		return
	}

	cat, err := s.catalog.Load(r.Context(), variant)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.applyCatalog(cat)
	writeJSON(w, http.StatusOK, modeResponse{Variant: cat.Variant, Generation: cat.Generation})
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	cat, err := s.currentCatalog(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, navigation.Canonicalize(r.URL.Query().Get("group"), cat.GroupIDs()))
}

type extraRequest struct {
	CategoryID string         `json:"categoryId"`
	GroupID    string         `json:"groupId"`
	Unit       string         `json:"unit"`
	Metadata   types.Metadata `json:"metadata"`
}

// handleAddExtra appends a new animation backed by an already registered
// unit.
func (s *Server) handleAddExtra(w http.ResponseWriter, r *http.Request) {
	var req extraRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apperrors.NewValidationError(apperrors.ErrCodeValidationFailed, "invalid request body"))
		return
	}
	variant := s.Variant()
	if s.units == nil {
		s.writeError(w, r, apperrors.NewValidationError(apperrors.ErrCodeValidationFailed, "extras are disabled"))
		return
	}
	factory, ok := s.units(req.Unit, variant)
	if !ok {
		s.writeError(w, r, apperrors.ErrAnimationNotFound(req.Unit).WithContext("variant", variant))
		return
	}

	ref, err := s.catalog.AddExtra(r.Context(), catalog.Extra{
		CategoryID: req.CategoryID,
		GroupID:    req.GroupID,
		Variant:    variant,
		Metadata:   req.Metadata,
		Factory:    factory,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if cat := s.catalog.Current(); cat != nil {
		s.applyCatalog(cat)
	}
	writeJSON(w, http.StatusCreated, ref)
}

func (s *Server) sessionOrError(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	sess, ok := s.lookupSession(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "no session", Code: "ERR_NO_SESSION"})
	}
	return sess, ok
}

type cardsResponse struct {
	Group string `json:"group"`
	Cards any    `json:"cards"`
}

func (s *Server) handleCards(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionOrError(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, cardsResponse{Group: sess.Stage.GroupID(), Cards: sess.Stage.Snapshot()})
}

func (s *Server) handleCardVisible(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionOrError(w, r)
	if !ok {
		return
	}
	if err := sess.Stage.Visible(r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleCardReplay(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionOrError(w, r)
	if !ok {
		return
	}
	snap, accepted, err := sess.Stage.Replay(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.CardReplay(accepted)
	writeJSON(w, http.StatusOK, map[string]any{"replayed": accepted, "card": snap})
}

func (s *Server) handleCardUnmount(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionOrError(w, r)
	if !ok {
		return
	}
	if err := sess.Stage.Unmount(r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRender renders one card behind its error boundary.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionOrError(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	card, ok := sess.Stage.Card(id)
	if !ok {
		s.writeError(w, r, apperrors.ErrAnimationNotFound(id))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := card.Render(r.Context(), w); err != nil {
		s.logger.Warn(r.Context(), err, "Card render failed", "animation", id)
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	collector := s.metrics.Collector()
	if collector == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := collector.WriteJSON(w); err != nil {
		s.logger.Warn(r.Context(), err, "Writing metrics")
	}
}

func (s *Server) handleFaults(w http.ResponseWriter, r *http.Request) {
	if id := r.URL.Query().Get("animation"); id != "" {
		writeJSON(w, http.StatusOK, s.faults.ByAnimation(id))
		return
	}
	writeJSON(w, http.StatusOK, s.faults.Faults())
}

func (s *Server) handleClearFaults(w http.ResponseWriter, r *http.Request) {
	cleared := s.faults.Len()
	s.faults.Clear()
	s.logger.Info(r.Context(), "Cleared demo faults", "count", cleared)
	writeJSON(w, http.StatusOK, map[string]int{"cleared": cleared})
}

type healthResponse struct {
	Status     string                            `json:"status"`
	Version    string                            `json:"version"`
	Uptime     string                            `json:"uptime"`
	Variant    types.Variant                     `json:"variant"`
	Generation uint64                            `json:"generation"`
	Catalog    string                            `json:"catalog"`
	Sessions   int                               `json:"sessions"`
	Clients    int                               `json:"clients"`
	Error      string                            `json:"error,omitempty"`
	Checks     map[string]monitoring.HealthCheck `json:"checks"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	resp := healthResponse{
		Status:     string(report.Status),
		Version:    version.GetShortVersion(),
		Uptime:     time.Since(s.started).Round(time.Second).String(),
		Variant:    s.Variant(),
		Generation: s.catalog.Generation(),
		Catalog:    "ready",
		Sessions:   s.sessions.Len(),
		Clients:    s.hub.Len(),
		Checks:     report.Checks,
	}
	switch err := s.catalog.Err(); {
	case err != nil:
		resp.Catalog = "failed"
		resp.Error = err.Error()
	case s.catalog.Current() == nil:
		resp.Catalog = "loading"
	}

	status := http.StatusOK
	if report.Status != monitoring.HealthStatusHealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

type errorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Retry   bool           `json:"retry,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// writeError maps an error to a status and a JSON body. Recoverable
// catalog failures get 503 with a retry hint.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse{Error: err.Error(), Retry: apperrors.IsRecoverable(err)}
	var ae *apperrors.AppError
	if errors.As(err, &ae) {
		resp.Code = ae.Code
		resp.Context = ae.Context
	}
	var report *registry.Report
	if errors.As(err, &report) {
		resp.Code = apperrors.ErrCodeRegistryInconsistent
		resp.Context = map[string]any{
			"orphans":      report.OrphanIDs(),
			"undocumented": report.UndocumentedIDs(),
			"duplicates":   report.Duplicates,
			"mismatched":   report.Mismatched,
			"dangling":     report.Dangling,
		}
	}
	if resp.Retry {
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	}
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.errHandler.Handle(r.Context(), err)
	}
	writeJSON(w, status, resp)
}

func statusFor(err error) int {
	var ae *apperrors.AppError
	switch {
	case errors.Is(err, apperrors.ErrSuperseded):
		return http.StatusConflict
	case apperrors.IsRecoverable(err):
		return http.StatusServiceUnavailable
	case apperrors.IsRegistryError(err):
		return http.StatusInternalServerError
	case errors.As(err, &ae) && ae.Type == apperrors.ErrorTypeValidation:
		switch ae.Code {
		case apperrors.ErrCodeGroupNotFound, apperrors.ErrCodeCategoryNotFound, apperrors.ErrCodeAnimationNotFound:
			return http.StatusNotFound
		case apperrors.ErrCodeDuplicateAnimation:
			return http.StatusConflict
		}
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
