package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/a-h/templ"

	"github.com/conneroisu/motiondeck/internal/catalog"
	"github.com/conneroisu/motiondeck/internal/lifecycle"
	"github.com/conneroisu/motiondeck/internal/navigation"
	"github.com/conneroisu/motiondeck/internal/types"
)

type shellData struct {
	Catalog   *catalog.Catalog
	State     navigation.State
	Cards     []*lifecycle.Card
	SessionID string
}

const shellStyle = `
#deck { display: contents; }
body { font-family: system-ui, -apple-system, sans-serif; margin: 0; display: grid; grid-template-columns: 260px 1fr; min-height: 100vh; }
nav { background: #111827; color: #e5e7eb; padding: 16px; }
nav a { color: inherit; text-decoration: none; display: block; padding: 4px 8px; border-radius: 4px; }
nav a[aria-current="page"] { background: #2563eb; }
nav h2 { font-size: 12px; text-transform: uppercase; opacity: .6; margin: 16px 0 4px; }
main { padding: 24px; background: #f9fafb; }
.mode { display: flex; gap: 8px; margin-bottom: 16px; }
.mode button[aria-pressed="true"] { background: #2563eb; color: white; }
.cards { display: grid; grid-template-columns: repeat(auto-fill, minmax(280px, 1fr)); gap: 16px; }
.card { background: white; border-radius: 8px; box-shadow: 0 1px 4px rgba(0,0,0,.1); padding: 16px; }
.card header { display: flex; justify-content: space-between; align-items: center; }
.demo-fallback { color: #b91c1c; }
.tech-hint { font-size: 12px; opacity: .7; }
`

// fragmentHeader asks the shell route for the #deck contents only.
const fragmentHeader = "X-Deck-Fragment"

// shellScript reports card visibility, handles replay buttons and keeps
// mounted cards rendered. Redirects and catalog changes swap the #deck
// contents in place; the URL is only ever replaced, never navigated.
const shellScript = `
(function () {
  var boot = JSON.parse(document.getElementById("deck-boot").textContent);
  if (boot.redirect) { history.replaceState(null, "", "/" + boot.group); }

  var ws = null;
  var observer = null;
  function signal(type, id) {
    if (ws && ws.readyState === 1) { ws.send(JSON.stringify({type: type, id: id})); return; }
    var method = type === "unmount" ? "DELETE" : "POST";
    var path = "/api/cards/" + encodeURIComponent(id) + (type === "unmount" ? "" : "/" + type);
    fetch(path, {method: method, credentials: "same-origin"});
  }
  function refresh(id) {
    fetch("/render/" + encodeURIComponent(id), {credentials: "same-origin"})
      .then(function (r) { return r.text(); })
      .then(function (html) {
        var slot = document.querySelector('[data-slot="' + CSS.escape(id) + '"]');
        if (slot) { slot.innerHTML = html; }
      });
  }
  function bind(root) {
    if (observer) { observer.disconnect(); }
    observer = new IntersectionObserver(function (entries) {
      entries.forEach(function (e) {
        if (!e.isIntersecting) { return; }
        observer.unobserve(e.target);
        if (e.target.querySelector('[data-state="pending"]')) { signal("visible", e.target.dataset.slot); }
      });
    });
    root.querySelectorAll("[data-slot]").forEach(function (el) { observer.observe(el); });
    root.querySelectorAll("[data-replay-for]").forEach(function (b) {
      b.addEventListener("click", function () { signal("replay", b.dataset.replayFor); });
    });
    root.querySelectorAll("[data-mode]").forEach(function (b) {
      b.addEventListener("click", function () {
        fetch("/api/mode", {method: "POST", headers: {"Content-Type": "application/json"},
          body: JSON.stringify({variant: b.dataset.mode}), credentials: "same-origin"});
      });
    });
    var main = root.querySelector("main[data-title]");
    if (main) { document.title = main.dataset.title; }
  }
  function load(group) {
    var headers = {};
    headers["` + fragmentHeader + `"] = "1";
    return fetch("/" + encodeURIComponent(group), {headers: headers, credentials: "same-origin"})
      .then(function (r) {
        var canonical = r.headers.get("X-Canonical-Group");
        if (canonical !== null) { history.replaceState(null, "", "/" + canonical); }
        return r.text();
      })
      .then(function (html) {
        var deck = document.getElementById("deck");
        deck.innerHTML = html;
        bind(deck);
      });
  }
  function currentGroup() { return decodeURIComponent(location.pathname.replace(/^\//, "")); }

  bind(document.getElementById("deck"));

  setInterval(function () {
    document.querySelectorAll('[data-slot] > [data-state="mounted"]').forEach(function (el) {
      refresh(el.dataset.animation);
    });
  }, 100);

  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var backoff = 500;
  function connect(resync) {
    ws = new WebSocket(proto + location.host + "/ws");
    ws.onopen = function () {
      backoff = 500;
      if (resync) { load(currentGroup()); }
    };
    ws.onmessage = function (ev) {
      var msg = JSON.parse(ev.data);
      if (msg.type === "redirect") {
        history.replaceState(null, "", "/" + msg.group);
        load(msg.group);
      }
      else if (msg.type === "catalog") { load(currentGroup()); }
      else if (msg.type === "card" && msg.card) { refresh(msg.card.animationId); }
      else if (msg.type === "catalog_error") { console.warn("catalog failed", msg.error); }
    };
    ws.onclose = function () {
      ws = null;
      setTimeout(function () { connect(true); }, backoff);
      backoff = Math.min(backoff * 2, 10000);
    };
  }
  connect(false);
})();
`

type shellBoot struct {
	Group    string `json:"group"`
	Redirect bool   `json:"redirect"`
	Session  string `json:"session"`
}

// shellPage renders the page for the resolved group. It never renders a
// group that is not in the catalog.
func shellPage(d shellData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		group, _ := d.Catalog.Group(d.State.ResolvedGroupID)

		var b strings.Builder
		b.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>`)
		b.WriteString(templ.EscapeString(pageTitle(group)))
		b.WriteString(`</title><style>`)
		b.WriteString(shellStyle)
		b.WriteString(`</style></head><body><div id="deck">`)
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}

		if err := shellView(d).Render(ctx, w); err != nil {
			return err
		}

		boot, err := json.Marshal(shellBoot{Group: group.ID, Redirect: d.State.NeedsRedirect, Session: d.SessionID})
		if err != nil {
			return err
		}
		// JSON inside a script element must not close it early.
		safeBoot := strings.ReplaceAll(string(boot), "</", `<\/`)
		_, err = fmt.Fprintf(w,
			`</div><script type="application/json" id="deck-boot">%s</script><script>%s</script></body></html>`,
			safeBoot, shellScript)
		return err
	})
}

// shellView renders the navigation and the group's cards. It is the
// contents of #deck, served alone when the script swaps views in place.
func shellView(d shellData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		cat := d.Catalog
		group, _ := cat.Group(d.State.ResolvedGroupID)

		var b strings.Builder
		writeNav(&b, cat, group.ID)

		fmt.Fprintf(&b, `<main data-title="%s">`, templ.EscapeString(pageTitle(group)))
		writeModeToggle(&b, cat.Variant)
		if group.ID == "" {
			b.WriteString(`<p class="empty">No demos are available in this mode.</p>`)
		} else {
			fmt.Fprintf(&b, `<h1>%s</h1>`, templ.EscapeString(group.Title))
			if group.TechHint != "" {
				fmt.Fprintf(&b, `<p class="tech-hint">%s</p>`, templ.EscapeString(group.TechHint))
			}
		}
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}

		if err := writeCards(ctx, w, d.Cards); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</main>`)
		return err
	})
}

func pageTitle(group catalog.Group) string {
	if group.Title == "" {
		return "motiondeck"
	}
	return group.Title + " | motiondeck"
}

func writeNav(b *strings.Builder, cat *catalog.Catalog, current string) {
	b.WriteString(`<nav aria-label="Demos">`)
	for _, category := range cat.Categories {
		fmt.Fprintf(b, `<h2>%s</h2><ul>`, templ.EscapeString(category.Title))
		for _, g := range category.Groups {
			aria := ""
			if g.ID == current {
				aria = ` aria-current="page"`
			}
			fmt.Fprintf(b, `<li><a href="/%s"%s>%s</a></li>`,
				templ.EscapeString(url.PathEscape(g.ID)), aria, templ.EscapeString(g.Title))
		}
		b.WriteString(`</ul>`)
	}
	b.WriteString(`</nav>`)
}

func writeModeToggle(b *strings.Builder, active types.Variant) {
	b.WriteString(`<div class="mode" role="group" aria-label="Code mode">`)
	for _, v := range types.Variants {
		fmt.Fprintf(b, `<button type="button" data-mode="%s" aria-pressed="%t">%s</button>`,
			v, v == active, templ.EscapeString(strings.ToUpper(v.String())))
	}
	b.WriteString(`</div>`)
}

func writeCards(ctx context.Context, w io.Writer, cards []*lifecycle.Card) error {
	if _, err := io.WriteString(w, `<div class="cards">`); err != nil {
		return err
	}
	for _, c := range cards {
		ref := c.Ref()
		id := templ.EscapeString(ref.ID)
		if _, err := fmt.Fprintf(w, `<article class="card"><header><h3>%s</h3>`, templ.EscapeString(ref.Title)); err != nil {
			return err
		}
		if !ref.DisableReplay {
			if _, err := fmt.Fprintf(w, `<button type="button" data-replay-for="%s">Replay</button>`, id); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, `</header>`); err != nil {
			return err
		}
		if ref.Description != "" {
			if _, err := fmt.Fprintf(w, `<p>%s</p>`, templ.EscapeString(ref.Description)); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, `<div data-slot="%s">`, id); err != nil {
			return err
		}
		if err := c.Render(ctx, w); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `</div></article>`); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, `</div>`)
	return err
}

// errorPage is shown when no catalog can be served.
func errorPage(err error, retry bool) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hint := "Fix the registry and restart the server."
		if retry {
			hint = `<button type="button" onclick="fetch('/api/catalog/refresh',{method:'POST'}).then(function(){location.reload()})">Retry</button>`
		} else {
			hint = templ.EscapeString(hint)
		}
		_, werr := fmt.Fprintf(w,
			`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>motiondeck unavailable</title></head><body><main role="alert"><h1>Demos are unavailable</h1><pre>%s</pre><p>%s</p></main></body></html>`,
			templ.EscapeString(err.Error()), hint)
		return werr
	})
}
