package demos

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/a-h/templ"

	"github.com/conneroisu/motiondeck/internal/types"
)

const (
	toastEnter   = 300 * time.Millisecond
	toastDismiss = 3 * time.Second
	pulseEvery   = 600 * time.Millisecond
)

func init() {
	Register("toast", types.VariantMotion, func() types.Unit { return &Toast{variant: types.VariantMotion} })
	Register("toast", types.VariantCSS, func() types.Unit { return &Toast{variant: types.VariantCSS} })
	Register("pulse", types.VariantMotion, func() types.Unit { return &Pulse{} })
	Register("pulse", types.VariantCSS, func() types.Unit { return pulseCSS })
}

// ToastPhase is where a toast is in its life.
type ToastPhase string

const (
	ToastHidden    ToastPhase = "hidden"
	ToastShown     ToastPhase = "shown"
	ToastDismissed ToastPhase = "dismissed"
)

// Toast slides in after toastEnter and dismisses itself toastDismiss later.
type Toast struct {
	variant types.Variant
	phase   ToastPhase
}

// Start implements types.Starter.
func (t *Toast) Start(s types.Scheduler) error {
	t.phase = ToastHidden
	s.After(toastEnter, func() {
		t.phase = ToastShown
		s.After(toastDismiss, func() { t.phase = ToastDismissed })
	})
	return nil
}

// Phase returns the current phase.
func (t *Toast) Phase() ToastPhase {
	return t.phase
}

// Render implements templ.Component.
func (t *Toast) Render(ctx context.Context, w io.Writer) error {
	if t.variant == types.VariantCSS {
		_, err := fmt.Fprintf(w, `<div class="toast toast--css toast--%s" role="status">Saved</div>`, t.phase)
		return err
	}
	offset := map[ToastPhase]int{ToastHidden: 24, ToastShown: 0, ToastDismissed: -24}[t.phase]
	opacity := 1
	if t.phase != ToastShown {
		opacity = 0
	}
	_, err := fmt.Fprintf(w,
		`<div class="toast" role="status" style="opacity:%d;transform:translateY(%dpx)">Saved</div>`,
		opacity, offset)
	return err
}

// Pulse beats for as long as it is mounted.
type Pulse struct {
	beats int
}

// Start implements types.Starter.
func (p *Pulse) Start(s types.Scheduler) error {
	s.Every(pulseEvery, func() { p.beats++ })
	return nil
}

// Beats returns the number of beats so far.
func (p *Pulse) Beats() int {
	return p.beats
}

// Render implements templ.Component.
func (p *Pulse) Render(ctx context.Context, w io.Writer) error {
	scale := 1.0
	if p.beats%2 == 1 {
		scale = 1.15
	}
	_, err := fmt.Fprintf(w, `<div class="pulse" style="transform:scale(%.2f)" data-beats="%d"></div>`, scale, p.beats)
	return err
}

var pulseCSS = templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
	_, err := io.WriteString(w, `<div class="pulse pulse--css"></div>`)
	return err
})
