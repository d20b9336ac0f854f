// Package lifecycle runs demo cards: visibility-gated mounting, replay by
// full remount, and strict ownership of every timer a demo schedules.
package lifecycle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/a-h/templ"
	"github.com/google/uuid"

	apperrors "github.com/conneroisu/motiondeck/internal/errors"
	"github.com/conneroisu/motiondeck/internal/logging"
	"github.com/conneroisu/motiondeck/internal/types"
)

// State is the lifecycle state of a card.
type State string

const (
	StatePending   State = "pending"
	StateMounted   State = "mounted"
	StateFaulted   State = "faulted"
	StateUnmounted State = "unmounted"
)

var errNoUnit = errors.New("no renderable unit for this variant")

// CardOptions carries the collaborators shared by the cards of one stage.
type CardOptions struct {
	Clock   Clock
	Signals VisibilitySource
	Logger  logging.Logger
	Faults  *apperrors.FaultLog
	// OnChange is called after every state transition, outside the card lock.
	OnChange func(Snapshot)
}

// Snapshot is a read-only view of a card's DemoState.
type Snapshot struct {
	InstanceID    string `json:"instanceId"`
	MountID       string `json:"mountId,omitempty"`
	AnimationID   string `json:"animationId"`
	GroupID       string `json:"groupId"`
	State         State  `json:"state"`
	Visible       bool   `json:"visible"`
	MountKey      int    `json:"mountKey"`
	PendingTimers int    `json:"pendingTimers"`
	DisableReplay bool   `json:"disableReplay"`
	Fault         string `json:"fault,omitempty"`
}

// Card hosts one AnimationRef. It starts Pending, mounts on the first
// visibility signal, remounts on Replay and tears everything down on Unmount.
type Card struct {
	mu sync.Mutex

	instanceID string
	ref        types.AnimationRef
	factory    types.UnitFactory
	opts       CardOptions
	logger     logging.Logger

	stopObserve func()

	state    State
	visible  bool
	mountKey int
	mountID  string
	owner    *Owner
	unit     types.Unit
	fault    error
}

var _ templ.Component = (*Card)(nil)

// NewCard creates a Pending card and starts observing its visibility.
func NewCard(ref types.AnimationRef, factory types.UnitFactory, opts CardOptions) *Card {
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	c := &Card{
		instanceID: uuid.NewString(),
		ref:        ref,
		factory:    factory,
		opts:       opts,
		logger:     opts.Logger.With("animation", ref.ID),
		state:      StatePending,
	}
	if opts.Signals != nil {
		c.stopObserve = opts.Signals.Observe(ref.ID, c.onVisible)
	}
	return c
}

// Ref returns the animation this card hosts.
func (c *Card) Ref() types.AnimationRef {
	return c.ref
}

// State returns the current lifecycle state.
func (c *Card) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// MountKey returns the number of replays performed.
func (c *Card) MountKey() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mountKey
}

// PendingTimers returns the number of timers the current mount still owns.
func (c *Card) PendingTimers() int {
	c.mu.Lock()
	owner := c.owner
	c.mu.Unlock()
	if owner == nil {
		return 0
	}
	return owner.Pending()
}

// Snapshot returns the current DemoState.
func (c *Card) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Card) snapshotLocked() Snapshot {
	s := Snapshot{
		InstanceID:    c.instanceID,
		MountID:       c.mountID,
		AnimationID:   c.ref.ID,
		GroupID:       c.ref.GroupID,
		State:         c.state,
		Visible:       c.visible,
		MountKey:      c.mountKey,
		DisableReplay: c.ref.DisableReplay,
	}
	if c.owner != nil {
		s.PendingTimers = c.owner.Pending()
	}
	if c.fault != nil {
		s.Fault = c.fault.Error()
	}
	return s
}

func (c *Card) notify(s Snapshot) {
	if c.opts.OnChange != nil {
		c.opts.OnChange(s)
	}
}

// onVisible is the only path from Pending to Mounted.
func (c *Card) onVisible() {
	c.mu.Lock()
	if c.state != StatePending {
		c.mu.Unlock()
		return
	}
	c.visible = true
	if c.stopObserve != nil {
		c.stopObserve()
		c.stopObserve = nil
	}
	c.mountLocked()
	s := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Debug(context.Background(), "Card mounted", "state", s.State, "mount_key", s.MountKey)
	c.notify(s)
}

// Replay remounts the demo with a fresh unit and a fresh timer owner. It is a
// no-op returning false when replay is disabled or the card is not mounted
// (or faulted) yet.
func (c *Card) Replay() bool {
	if c.ref.DisableReplay {
		return false
	}
	c.mu.Lock()
	if c.state != StateMounted && c.state != StateFaulted {
		c.mu.Unlock()
		return false
	}
	cancelled := c.teardownLocked()
	c.mountKey++
	c.mountLocked()
	s := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Debug(context.Background(), "Card replayed", "mount_key", s.MountKey, "cancelled_timers", cancelled)
	c.notify(s)
	return true
}

// Unmount cancels every owned timer and releases the unit. It is idempotent.
func (c *Card) Unmount() {
	c.mu.Lock()
	if c.state == StateUnmounted {
		c.mu.Unlock()
		return
	}
	if c.stopObserve != nil {
		c.stopObserve()
		c.stopObserve = nil
	}
	cancelled := c.teardownLocked()
	c.state = StateUnmounted
	s := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Debug(context.Background(), "Card unmounted", "cancelled_timers", cancelled)
	c.notify(s)
}

func (c *Card) mountLocked() {
	owner := NewOwner(c.opts.Clock)
	owner.OnFault(func(err error) { c.callbackFault(owner, err) })

	unit, err := build(c.factory)
	if err == nil {
		if starter, ok := unit.(types.Starter); ok {
			err = start(starter, owner)
		}
	}

	c.mountID = uuid.NewString()
	if err != nil {
		owner.Dispose()
		c.owner = nil
		c.unit = nil
		c.faultLocked("mount", err)
		return
	}

	c.owner = owner
	c.unit = unit
	c.fault = nil
	c.state = StateMounted
}

// teardownLocked disposes the current owner before releasing the unit, so no
// cancelled callback can observe a stopped unit.
func (c *Card) teardownLocked() int {
	cancelled := 0
	if c.owner != nil {
		cancelled = c.owner.Dispose()
		c.owner = nil
	}
	if stopper, ok := c.unit.(types.Stopper); ok {
		if err := stop(stopper); err != nil {
			c.logger.Warn(context.Background(), err, "Demo stop failed")
		}
	}
	c.unit = nil
	return cancelled
}

func (c *Card) faultLocked(phase string, cause error) {
	c.state = StateFaulted
	c.fault = apperrors.NewDemoFaultError(c.ref.ID, cause)
	c.logger.Warn(context.Background(), cause, "Demo faulted", "phase", phase, "mount_key", c.mountKey)
	if c.opts.Faults != nil {
		c.opts.Faults.Add(apperrors.DemoFault{
			CardID:      c.instanceID,
			AnimationID: c.ref.ID,
			MountKey:    c.mountKey,
			Phase:       phase,
			Message:     cause.Error(),
		})
	}
}

// callbackFault handles a panic inside a timer callback of owner. It is
// ignored when owner no longer belongs to the current mount.
func (c *Card) callbackFault(owner *Owner, err error) {
	c.mu.Lock()
	if c.owner != owner || c.state != StateMounted {
		c.mu.Unlock()
		return
	}
	c.teardownLocked()
	c.faultLocked("timer", err)
	s := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(s)
}

func (c *Card) renderFault(owner *Owner, err error) {
	c.mu.Lock()
	if c.owner != owner || c.state != StateMounted {
		c.mu.Unlock()
		return
	}
	c.teardownLocked()
	c.faultLocked("render", err)
	s := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(s)
}

// Render implements templ.Component. A failing unit never breaks the page:
// its output is buffered and replaced by a local fallback.
func (c *Card) Render(ctx context.Context, w io.Writer) error {
	c.mu.Lock()
	state := c.state
	owner := c.owner
	unit := c.unit
	fault := c.fault
	mountKey := c.mountKey
	c.mu.Unlock()

	var body bytes.Buffer
	switch state {
	case StatePending:
		body.WriteString(`<div class="demo-placeholder" aria-busy="true"></div>`)
	case StateUnmounted:
		body.WriteString(`<div class="demo-placeholder"></div>`)
	case StateFaulted:
		writeFallback(&body, fault)
	case StateMounted:
		var out bytes.Buffer
		var err error
		ran := owner.Do(func() { err = renderUnit(ctx, unit, &out) })
		switch {
		case !ran:
			body.WriteString(`<div class="demo-placeholder"></div>`)
		case err != nil:
			c.renderFault(owner, err)
			c.mu.Lock()
			fault = c.fault
			c.mu.Unlock()
			writeFallback(&body, fault)
		default:
			body.Write(out.Bytes())
		}
	}

	_, err := fmt.Fprintf(w,
		`<section class="demo-card" id="card-%s" data-animation="%s" data-state="%s" data-mount-key="%s" data-replay="%t">%s</section>`,
		templ.EscapeString(c.ref.ID),
		templ.EscapeString(c.ref.ID),
		templ.EscapeString(string(state)),
		strconv.Itoa(mountKey),
		!c.ref.DisableReplay,
		body.String(),
	)
	return err
}

func writeFallback(w *bytes.Buffer, fault error) {
	msg := "This demo failed to load."
	if fault != nil {
		msg = fault.Error()
	}
	w.WriteString(`<div class="demo-fallback" role="alert">`)
	w.WriteString(templ.EscapeString(msg))
	w.WriteString(`</div>`)
}

func build(factory types.UnitFactory) (unit types.Unit, err error) {
	if factory == nil {
		return nil, errNoUnit
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unit constructor panicked: %v", r)
		}
	}()
	unit = factory()
	if unit == nil {
		return nil, errNoUnit
	}
	return unit, nil
}

func start(s types.Starter, sched types.Scheduler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unit start panicked: %v", r)
		}
	}()
	return s.Start(sched)
}

func stop(s types.Stopper) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unit stop panicked: %v", r)
		}
	}()
	s.Stop()
	return nil
}

func renderUnit(ctx context.Context, unit types.Unit, w io.Writer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unit render panicked: %v", r)
		}
	}()
	return unit.Render(ctx, w)
}
