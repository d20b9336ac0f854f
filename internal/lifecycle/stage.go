package lifecycle

import (
	"context"
	"sync"

	apperrors "github.com/conneroisu/motiondeck/internal/errors"
	"github.com/conneroisu/motiondeck/internal/logging"
	"github.com/conneroisu/motiondeck/internal/types"
)

// UnitLookup resolves the unit factory of an animation in the active variant.
type UnitLookup func(animationID string) (types.UnitFactory, bool)

// Stage holds the cards of the group currently shown in one session. Cards
// share nothing mutable; the stage only routes signals to them.
type Stage struct {
	mu      sync.RWMutex
	groupID string
	order   []string
	cards   map[string]*Card
	opts    CardOptions
	signals *Signals
	logger  logging.Logger
	closed  bool
}

// NewStage creates an empty stage. Visibility for its cards is reported
// through the stage's own Signals hub built with dispatch.
func NewStage(opts CardOptions, dispatch func(func())) *Stage {
	signals := NewSignals(dispatch)
	opts.Signals = signals
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Stage{
		cards:   make(map[string]*Card),
		opts:    opts,
		signals: signals,
		logger:  opts.Logger.WithComponent("stage"),
	}
}

// GroupID returns the group currently shown.
func (s *Stage) GroupID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.groupID
}

// Show makes the stage display refs for groupID. Switching group replaces
// every card. Within the same group cards are diffed by id: cards whose
// animation is still listed keep their state, removed ones are unmounted and
// new ones start Pending.
func (s *Stage) Show(groupID string, refs []types.AnimationRef, lookup UnitLookup) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if groupID == s.groupID && sameIDs(s.order, refs) {
		s.mu.Unlock()
		return
	}
	kept := s.cards
	if groupID != s.groupID {
		kept = nil
	}

	cards := make(map[string]*Card, len(refs))
	order := make([]string, 0, len(refs))
	created := 0
	for _, ref := range refs {
		if _, dup := cards[ref.ID]; dup {
			continue
		}
		if c, ok := kept[ref.ID]; ok {
			cards[ref.ID] = c
		} else {
			var factory types.UnitFactory
			if lookup != nil {
				factory, _ = lookup(ref.ID)
			}
			cards[ref.ID] = NewCard(ref, factory, s.opts)
			created++
		}
		order = append(order, ref.ID)
	}

	var removed []*Card
	for _, id := range s.order {
		if c := s.cards[id]; cards[id] != c {
			removed = append(removed, c)
		}
	}
	s.groupID = groupID
	s.cards = cards
	s.order = order
	s.mu.Unlock()

	for _, c := range removed {
		c.Unmount()
	}
	s.logger.Debug(context.Background(), "Stage shows group",
		"group", groupID, "cards", len(refs), "created", created, "unmounted", len(removed))
}

// Card returns the card hosting animationID.
func (s *Stage) Card(animationID string) (*Card, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cards[animationID]
	return c, ok
}

// Cards returns the cards in display order.
func (s *Stage) Cards() []*Card {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Card, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.cards[id])
	}
	return out
}

// Visible reports that the card for animationID entered the viewport. The
// mount happens on a later turn.
func (s *Stage) Visible(animationID string) error {
	if _, ok := s.Card(animationID); !ok {
		return apperrors.ErrAnimationNotFound(animationID)
	}
	s.signals.Report(animationID)
	return nil
}

// Replay replays one card and returns its state right after. Siblings are
// untouched.
func (s *Stage) Replay(animationID string) (Snapshot, bool, error) {
	c, ok := s.Card(animationID)
	if !ok {
		return Snapshot{}, false, apperrors.ErrAnimationNotFound(animationID)
	}
	replayed := c.Replay()
	return c.Snapshot(), replayed, nil
}

// Unmount unmounts and removes one card.
func (s *Stage) Unmount(animationID string) error {
	s.mu.Lock()
	c, ok := s.cards[animationID]
	if ok {
		delete(s.cards, animationID)
		for i, id := range s.order {
			if id == animationID {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()
	if !ok {
		return apperrors.ErrAnimationNotFound(animationID)
	}
	c.Unmount()
	return nil
}

// Snapshot returns the DemoState of every card in display order.
func (s *Stage) Snapshot() []Snapshot {
	cards := s.Cards()
	out := make([]Snapshot, 0, len(cards))
	for _, c := range cards {
		out = append(out, c.Snapshot())
	}
	return out
}

// PendingTimers sums the timers owned by every card.
func (s *Stage) PendingTimers() int {
	n := 0
	for _, c := range s.Cards() {
		n += c.PendingTimers()
	}
	return n
}

// Close unmounts every card. A closed stage ignores Show.
func (s *Stage) Close() {
	s.mu.Lock()
	s.closed = true
	old := s.detachLocked()
	s.groupID = ""
	s.mu.Unlock()
	for _, c := range old {
		c.Unmount()
	}
}

func (s *Stage) detachLocked() []*Card {
	old := make([]*Card, 0, len(s.order))
	for _, id := range s.order {
		old = append(old, s.cards[id])
	}
	s.cards = make(map[string]*Card)
	s.order = nil
	return old
}

func sameIDs(order []string, refs []types.AnimationRef) bool {
	if len(order) != len(refs) {
		return false
	}
	for i, ref := range refs {
		if order[i] != ref.ID {
			return false
		}
	}
	return true
}
