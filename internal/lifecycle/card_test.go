package lifecycle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	apperrors "github.com/conneroisu/motiondeck/internal/errors"
	"github.com/conneroisu/motiondeck/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countdownUnit ticks every second from 60 down to 0.
type countdownUnit struct {
	remaining int
	stopped   bool
}

func (u *countdownUnit) Start(s types.Scheduler) error {
	u.remaining = 60
	var h types.TimerHandle
	h = s.Every(time.Second, func() {
		u.remaining--
		if u.remaining == 0 {
			s.Cancel(h)
		}
	})
	return nil
}

func (u *countdownUnit) Stop() { u.stopped = true }

func (u *countdownUnit) Render(ctx context.Context, w io.Writer) error {
	_, err := fmt.Fprintf(w, "<span>%d</span>", u.remaining)
	return err
}

type staticUnit struct{ text string }

func (u staticUnit) Render(ctx context.Context, w io.Writer) error {
	_, err := io.WriteString(w, u.text)
	return err
}

type failingRender struct{}

func (failingRender) Render(ctx context.Context, w io.Writer) error {
	_, _ = io.WriteString(w, "<partial")
	return errors.New("render exploded")
}

type harness struct {
	clock  *ManualClock
	queue  *Queue
	sig    *Signals
	faults *apperrors.FaultLog
	built  []*countdownUnit
}

func newHarness() *harness {
	h := &harness{clock: NewManualClock(epoch), queue: &Queue{}, faults: apperrors.NewFaultLog(10)}
	h.sig = NewSignals(h.queue.Dispatch)
	return h
}

func (h *harness) opts() CardOptions {
	return CardOptions{Clock: h.clock, Signals: h.sig, Faults: h.faults}
}

func (h *harness) countdown() types.UnitFactory {
	return func() types.Unit {
		u := &countdownUnit{}
		h.built = append(h.built, u)
		return u
	}
}

func ref(id string) types.AnimationRef {
	return types.AnimationRef{ID: id, Title: id, GroupID: "timers-motion", CategoryID: "timers"}
}

func render(t *testing.T, c *Card) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	return buf.String()
}

func TestCard_MountsOnlyAfterVisibility(t *testing.T) {
	h := newHarness()
	card := NewCard(ref("countdown"), h.countdown(), h.opts())

	assert.Equal(t, StatePending, card.State())
	assert.Empty(t, h.built, "no eager mount")
	assert.Contains(t, render(t, card), `data-state="pending"`)

	assert.Equal(t, 1, h.sig.Report("countdown"))
	assert.Equal(t, StatePending, card.State(), "signal is delivered on a later turn")

	assert.Equal(t, 1, h.queue.Flush())
	assert.Equal(t, StateMounted, card.State())
	require.Len(t, h.built, 1)
	assert.Equal(t, 1, card.PendingTimers())
	assert.Equal(t, 0, h.sig.Observed(), "observation stops after mount")

	h.clock.Advance(3 * time.Second)
	assert.Contains(t, render(t, card), "<span>57</span>")
}

func TestCard_UnmountCancelsEverything(t *testing.T) {
	h := newHarness()
	card := NewCard(ref("countdown"), h.countdown(), h.opts())
	h.sig.Report("countdown")
	h.queue.Flush()

	h.clock.Advance(10 * time.Second)
	card.Unmount()

	assert.Equal(t, StateUnmounted, card.State())
	assert.Equal(t, 0, card.PendingTimers())
	assert.Equal(t, 0, h.clock.Pending(), "zero timers remain anywhere")
	assert.True(t, h.built[0].stopped)

	h.clock.Advance(time.Minute)
	assert.Equal(t, 50, h.built[0].remaining)

	card.Unmount()
	assert.Equal(t, StateUnmounted, card.State())
}

func TestCard_UnmountWhilePendingStopsObserving(t *testing.T) {
	h := newHarness()
	card := NewCard(ref("countdown"), h.countdown(), h.opts())
	card.Unmount()

	assert.Equal(t, 0, h.sig.Report("countdown"))
	h.queue.Flush()
	assert.Equal(t, StateUnmounted, card.State())
	assert.Empty(t, h.built)
}

func TestCard_ReplayRemountsWithFreshUnit(t *testing.T) {
	h := newHarness()
	card := NewCard(ref("countdown"), h.countdown(), h.opts())
	h.sig.Report("countdown")
	h.queue.Flush()
	first := card.Snapshot()

	h.clock.Advance(5 * time.Second)
	require.True(t, card.Replay())

	second := card.Snapshot()
	assert.Equal(t, 1, second.MountKey)
	assert.NotEqual(t, first.MountID, second.MountID)
	assert.Equal(t, first.InstanceID, second.InstanceID)
	require.Len(t, h.built, 2)
	assert.True(t, h.built[0].stopped)
	assert.Equal(t, 1, h.clock.Pending(), "only the new mount's interval remains")

	h.clock.Advance(2 * time.Second)
	assert.Equal(t, 55, h.built[0].remaining, "old unit frozen")
	assert.Equal(t, 58, h.built[1].remaining)
	assert.Contains(t, render(t, card), `data-mount-key="1"`)
}

func TestCard_ReplayNoops(t *testing.T) {
	h := newHarness()

	t.Run("disabled", func(t *testing.T) {
		r := ref("pulse")
		r.DisableReplay = true
		card := NewCard(r, h.countdown(), h.opts())
		h.sig.Report("pulse")
		h.queue.Flush()

		assert.False(t, card.Replay())
		assert.Equal(t, 0, card.MountKey())
		assert.Contains(t, render(t, card), `data-replay="false"`)
	})

	t.Run("pending", func(t *testing.T) {
		card := NewCard(ref("later"), h.countdown(), h.opts())
		assert.False(t, card.Replay())
		assert.Equal(t, StatePending, card.State())
	})
}

func TestCard_FaultsStayAtTheBoundary(t *testing.T) {
	h := newHarness()

	t.Run("constructor panic", func(t *testing.T) {
		card := NewCard(ref("boom"), func() types.Unit { panic("kaput") }, h.opts())
		h.sig.Report("boom")
		h.queue.Flush()

		assert.Equal(t, StateFaulted, card.State())
		out := render(t, card)
		assert.Contains(t, out, `class="demo-fallback"`)
		assert.Contains(t, out, "kaput")
		assert.Equal(t, 0, h.clock.Pending())
		assert.Len(t, h.faults.ByAnimation("boom"), 1)
	})

	t.Run("missing unit", func(t *testing.T) {
		card := NewCard(ref("ghost"), nil, h.opts())
		h.sig.Report("ghost")
		h.queue.Flush()
		assert.Equal(t, StateFaulted, card.State())
	})

	t.Run("render error replaces partial output", func(t *testing.T) {
		card := NewCard(ref("broken"), func() types.Unit { return failingRender{} }, h.opts())
		h.sig.Report("broken")
		h.queue.Flush()
		require.Equal(t, StateMounted, card.State())

		out := render(t, card)
		assert.NotContains(t, out, "<partial")
		assert.Contains(t, out, "render exploded")
		assert.Equal(t, StateFaulted, card.State())
	})

	t.Run("timer panic", func(t *testing.T) {
		factory := func() types.Unit { return &panicky{} }
		card := NewCard(ref("panicky"), factory, h.opts())
		h.sig.Report("panicky")
		h.queue.Flush()

		h.clock.Advance(time.Second)
		assert.Equal(t, StateFaulted, card.State())
		assert.Equal(t, 0, card.PendingTimers())

		require.True(t, card.Replay(), "replaying a faulted card retries the mount")
		assert.Equal(t, StateMounted, card.State())
	})
}

type panicky struct{}

func (p *panicky) Start(s types.Scheduler) error {
	s.After(time.Second, func() { panic("tick") })
	s.Every(time.Minute, func() {})
	return nil
}

func (p *panicky) Render(ctx context.Context, w io.Writer) error {
	_, err := io.WriteString(w, "ok")
	return err
}

func TestCard_StartErrorFaults(t *testing.T) {
	h := newHarness()
	card := NewCard(ref("nostart"), func() types.Unit { return &startErr{} }, h.opts())
	h.sig.Report("nostart")
	h.queue.Flush()

	assert.Equal(t, StateFaulted, card.State())
	assert.Equal(t, 0, h.clock.Pending(), "timers scheduled before the error are disposed")
}

type startErr struct{ staticUnit }

func (s *startErr) Start(sched types.Scheduler) error {
	sched.Every(time.Second, func() {})
	return errors.New("cannot start")
}

func TestCard_OnChangeReportsTransitions(t *testing.T) {
	h := newHarness()
	var states []State
	opts := h.opts()
	opts.OnChange = func(s Snapshot) { states = append(states, s.State) }

	card := NewCard(ref("countdown"), h.countdown(), opts)
	h.sig.Report("countdown")
	h.queue.Flush()
	card.Replay()
	card.Unmount()

	assert.Equal(t, []State{StateMounted, StateMounted, StateUnmounted}, states)
}

func TestCard_EscapesIdentifiers(t *testing.T) {
	h := newHarness()
	card := NewCard(ref(`x"><script>`), func() types.Unit { return staticUnit{text: "hi"} }, h.opts())
	out := render(t, card)
	assert.NotContains(t, out, "<script>")
}
