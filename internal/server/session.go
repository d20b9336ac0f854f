package server

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/conneroisu/motiondeck/internal/lifecycle"
	"github.com/conneroisu/motiondeck/internal/logging"
	"github.com/conneroisu/motiondeck/internal/monitoring"
	"github.com/conneroisu/motiondeck/internal/navigation"
)

// sessionCookie carries the session id.
const sessionCookie = "motiondeck_session"

// Session is one browser tab's view of the deck: its route and the cards it
// shows.
type Session struct {
	ID      string
	Stage   *lifecycle.Stage
	Machine *navigation.Machine
}

// SessionFactory builds the stage and machine for a new session id.
type SessionFactory func(id string) *Session

// SessionStore keeps sessions with idle expiry. Evicting a session closes
// its stage, which disposes every timer its demos still own.
type SessionStore struct {
	cache   *cache.Cache
	ttl     time.Duration
	factory SessionFactory
	logger  logging.Logger
	metrics *monitoring.ApplicationMetrics
}

// NewSessionStore creates a store whose sessions expire after ttl without
// use.
func NewSessionStore(ttl, cleanup time.Duration, factory SessionFactory, logger logging.Logger, metrics *monitoring.ApplicationMetrics) *SessionStore {
	if logger == nil {
		logger = logging.NewNop()
	}
	st := &SessionStore{
		cache:   cache.New(ttl, cleanup),
		ttl:     ttl,
		factory: factory,
		logger:  logger.WithComponent("sessions"),
		metrics: metrics,
	}
	st.cache.OnEvicted(func(id string, v interface{}) {
		sess, ok := v.(*Session)
		if !ok {
			return
		}
		sess.Stage.Close()
		st.metrics.Sessions(st.cache.ItemCount())
		st.logger.Debug(context.Background(), "Session evicted", "session", id)
	})
	return st
}

// Get returns the session for id and renews its expiry.
func (st *SessionStore) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	v, ok := st.cache.Get(id)
	if !ok {
		return nil, false
	}
	st.cache.Set(id, v, st.ttl)
	return v.(*Session), true
}

// Create starts a new session with a fresh id.
func (st *SessionStore) Create() *Session {
	sess := st.factory(uuid.NewString())
	st.cache.Set(sess.ID, sess, st.ttl)
	st.metrics.Sessions(st.cache.ItemCount())
	return sess
}

// Delete ends a session and closes its stage.
func (st *SessionStore) Delete(id string) {
	st.cache.Delete(id)
}

// Each calls fn for every live session.
func (st *SessionStore) Each(fn func(*Session)) {
	for _, item := range st.cache.Items() {
		if sess, ok := item.Object.(*Session); ok {
			fn(sess)
		}
	}
}

// Len returns the number of live sessions.
func (st *SessionStore) Len() int {
	return st.cache.ItemCount()
}

// Close ends every session.
func (st *SessionStore) Close() {
	for id := range st.cache.Items() {
		st.cache.Delete(id)
	}
}
