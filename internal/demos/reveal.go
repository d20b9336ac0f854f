package demos

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/conneroisu/motiondeck/internal/types"
)

const (
	fadeFrames   = 30
	frameEvery   = 16 * time.Millisecond
	revealStep   = 120 * time.Millisecond
	revealPrefix = "Item"
)

var revealItems = []string{"Plan", "Build", "Ship", "Measure", "Repeat"}

func init() {
	Register("fade-in", types.VariantMotion, func() types.Unit { return &FadeIn{} })
	Register("fade-in", types.VariantCSS, func() types.Unit { return fadeInCSS })
	Register("stagger-reveal", types.VariantMotion, func() types.Unit { return &StaggerReveal{variant: types.VariantMotion} })
	Register("stagger-reveal", types.VariantCSS, func() types.Unit { return &StaggerReveal{variant: types.VariantCSS} })
}

// FadeIn steps opacity and offset over fadeFrames frames.
type FadeIn struct {
	frame  int
	handle types.TimerHandle
}

// Start implements types.Starter.
func (f *FadeIn) Start(s types.Scheduler) error {
	f.handle = s.Every(frameEvery, func() {
		f.frame++
		if f.frame >= fadeFrames {
			f.frame = fadeFrames
			s.Cancel(f.handle)
		}
	})
	return nil
}

// Progress returns the eased progress in [0, 1].
func (f *FadeIn) Progress() float64 {
	t := float64(f.frame) / fadeFrames
	return 1 - (1-t)*(1-t)*(1-t)
}

// Render implements templ.Component.
func (f *FadeIn) Render(ctx context.Context, w io.Writer) error {
	p := f.Progress()
	_, err := fmt.Fprintf(w,
		`<div class="fade-in" style="opacity:%.3f;transform:translateY(%.1fpx)">Hello</div>`,
		p, (1-p)*16)
	return err
}

// fadeInCSS has no time-based logic; the browser runs the keyframes.
var fadeInCSS = templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
	_, err := io.WriteString(w, `<div class="fade-in fade-in--css">Hello</div>`)
	return err
})

// StaggerReveal reveals items one by one. Each reveal schedules the next,
// so the chain of timers is nested rather than scheduled up front.
type StaggerReveal struct {
	variant  types.Variant
	revealed int
}

// Start implements types.Starter.
func (r *StaggerReveal) Start(s types.Scheduler) error {
	var next func()
	next = func() {
		r.revealed++
		if r.revealed < len(revealItems) {
			s.After(revealStep, next)
		}
	}
	s.After(revealStep, next)
	return nil
}

// Revealed returns how many items are visible.
func (r *StaggerReveal) Revealed() int {
	return r.revealed
}

// Render implements templ.Component.
func (r *StaggerReveal) Render(ctx context.Context, w io.Writer) error {
	var b strings.Builder
	b.WriteString(`<ul class="stagger">`)
	for i, item := range revealItems {
		shown := i < r.revealed
		switch r.variant {
		case types.VariantCSS:
			fmt.Fprintf(&b, `<li class="stagger__item%s" style="animation-delay:%dms">%s</li>`,
				visibleClass(shown), i*int(revealStep/time.Millisecond), templ.EscapeString(item))
		default:
			opacity := 0.0
			if shown {
				opacity = 1
			}
			fmt.Fprintf(&b, `<li class="stagger__item" style="opacity:%.0f" aria-label="%s %d">%s</li>`,
				opacity, revealPrefix, i+1, templ.EscapeString(item))
		}
	}
	b.WriteString(`</ul>`)
	_, err := io.WriteString(w, b.String())
	return err
}

func visibleClass(shown bool) string {
	if shown {
		return " is-visible"
	}
	return ""
}
