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
	typewriterText  = "Every timer has an owner."
	typewriterDelay = 80 * time.Millisecond
)

func init() {
	Register("typewriter", types.VariantMotion, func() types.Unit { return &Typewriter{text: []rune(typewriterText)} })
	Register("typewriter", types.VariantCSS, func() types.Unit { return typewriterCSS(typewriterText) })
}

// Typewriter types its text one rune per tick.
type Typewriter struct {
	text   []rune
	typed  int
	handle types.TimerHandle
}

// Start implements types.Starter.
func (t *Typewriter) Start(s types.Scheduler) error {
	t.handle = s.Every(typewriterDelay, func() {
		t.typed++
		if t.typed >= len(t.text) {
			t.typed = len(t.text)
			s.Cancel(t.handle)
		}
	})
	return nil
}

// Typed returns the visible prefix.
func (t *Typewriter) Typed() string {
	return string(t.text[:t.typed])
}

// Render implements templ.Component.
func (t *Typewriter) Render(ctx context.Context, w io.Writer) error {
	_, err := fmt.Fprintf(w,
		`<p class="typewriter" aria-label="%s"><span>%s</span><span class="typewriter__caret" aria-hidden="true">|</span></p>`,
		templ.EscapeString(string(t.text)), templ.EscapeString(t.Typed()))
	return err
}

// typewriterCSS reveals the text with a steps() width animation.
func typewriterCSS(text string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		n := len([]rune(text))
		_, err := fmt.Fprintf(w,
			`<p class="typewriter typewriter--css" style="--chars:%d;animation-timing-function:steps(%d)">%s</p>`,
			n, n, templ.EscapeString(text))
		return err
	})
}
