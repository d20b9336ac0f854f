package lifecycle

import "sync"

// VisibilitySource notifies when a card region becomes visible. Observe must
// never call onVisible synchronously; notifications arrive on a later turn.
type VisibilitySource interface {
	Observe(cardID string, onVisible func()) (stop func())
}

// Signals is a VisibilitySource fed by explicit Report calls, typically from
// the browser's intersection observer relayed over HTTP or WebSocket.
type Signals struct {
	mu        sync.Mutex
	next      uint64
	observers map[string]map[uint64]func()
	dispatch  func(func())
}

// NewSignals creates a Signals hub. dispatch schedules a notification on a
// later turn; nil runs each notification on its own goroutine.
func NewSignals(dispatch func(func())) *Signals {
	if dispatch == nil {
		dispatch = func(fn func()) { go fn() }
	}
	return &Signals{
		observers: make(map[string]map[uint64]func()),
		dispatch:  dispatch,
	}
}

// Observe implements VisibilitySource.
func (s *Signals) Observe(cardID string, onVisible func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	token := s.next
	if s.observers[cardID] == nil {
		s.observers[cardID] = make(map[uint64]func())
	}
	s.observers[cardID][token] = onVisible

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.observers[cardID], token)
			if len(s.observers[cardID]) == 0 {
				delete(s.observers, cardID)
			}
		})
	}
}

// Report signals that cardID is in view and returns how many observers were
// notified.
func (s *Signals) Report(cardID string) int {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.observers[cardID]))
	for _, fn := range s.observers[cardID] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		s.dispatch(fn)
	}
	return len(fns)
}

// Observed returns the number of cards currently observed.
func (s *Signals) Observed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.observers)
}

// Queue is a dispatcher that holds notifications until Flush. It gives tests
// and single-threaded hosts an explicit "later turn".
type Queue struct {
	mu      sync.Mutex
	pending []func()
}

// Dispatch enqueues fn. Pass it to NewSignals.
func (q *Queue) Dispatch(fn func()) {
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	q.mu.Unlock()
}

// Flush runs queued notifications, including ones queued while flushing,
// and returns how many ran.
func (q *Queue) Flush() int {
	n := 0
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.mu.Unlock()
			return n
		}
		fn := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()
		fn()
		n++
	}
}

// Len returns the number of queued notifications.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
