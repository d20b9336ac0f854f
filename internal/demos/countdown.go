package demos

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/conneroisu/motiondeck/internal/types"
)

// CountdownFrom is where the countdown starts, in seconds.
const CountdownFrom = 60

func init() {
	Register("countdown", types.VariantMotion, func() types.Unit { return &Countdown{variant: types.VariantMotion} })
	Register("countdown", types.VariantCSS, func() types.Unit { return &Countdown{variant: types.VariantCSS} })
}

// Countdown ticks once per second from CountdownFrom down to zero.
type Countdown struct {
	variant   types.Variant
	remaining int
	handle    types.TimerHandle
}

// Start implements types.Starter.
func (c *Countdown) Start(s types.Scheduler) error {
	c.remaining = CountdownFrom
	c.handle = s.Every(time.Second, func() {
		c.remaining--
		if c.remaining <= 0 {
			c.remaining = 0
			s.Cancel(c.handle)
		}
	})
	return nil
}

// Remaining returns the seconds left.
func (c *Countdown) Remaining() int {
	return c.remaining
}

// Render implements templ.Component.
func (c *Countdown) Render(ctx context.Context, w io.Writer) error {
	minutes, seconds := c.remaining/60, c.remaining%60
	switch c.variant {
	case types.VariantCSS:
		// The key changes every second so the swap keyframes replay.
		_, err := fmt.Fprintf(w,
			`<div class="countdown countdown--css"><span class="countdown__digit countdown__digit--swap" data-key="%d">%d:%02d</span></div>`,
			c.remaining, minutes, seconds)
		return err
	default:
		// Scale pulses on each tick; the last ten seconds turn urgent.
		scale := 1.0
		if c.remaining%2 == 1 {
			scale = 1.08
		}
		urgent := c.remaining <= 10
		_, err := fmt.Fprintf(w,
			`<div class="countdown" data-urgent="%t"><span class="countdown__digit" style="transform:scale(%.2f)">%d:%02d</span></div>`,
			urgent, scale, minutes, seconds)
		return err
	}
}
