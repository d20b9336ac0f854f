package demos

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/conneroisu/motiondeck/internal/types"
)

const (
	orbitTick   = 50 * time.Millisecond
	orbitStep   = 9.0
	orbitRadius = 32.0
)

func init() {
	Register("orbit", types.VariantMotion, func() types.Unit { return &Orbit{} })
}

// Orbit rotates a dot around a center point. It only exists as a motion
// demo.
type Orbit struct {
	angle float64
}

// Start implements types.Starter.
func (o *Orbit) Start(s types.Scheduler) error {
	s.Every(orbitTick, func() {
		o.angle = math.Mod(o.angle+orbitStep, 360)
	})
	return nil
}

// Angle returns the current angle in degrees.
func (o *Orbit) Angle() float64 {
	return o.angle
}

// Render implements templ.Component.
func (o *Orbit) Render(ctx context.Context, w io.Writer) error {
	rad := o.angle * math.Pi / 180
	_, err := fmt.Fprintf(w,
		`<div class="orbit"><span class="orbit__dot" style="transform:translate(%.1fpx,%.1fpx)"></span></div>`,
		math.Cos(rad)*orbitRadius, math.Sin(rad)*orbitRadius)
	return err
}
