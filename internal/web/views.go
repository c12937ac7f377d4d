package web

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
	"github.com/caffeineduck/loxpad/render"
	"github.com/caffeineduck/loxpad/session"
)

const (
	outputID    = "output-display"
	shareLinkID = "share-link"
	datastarURL = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0/bundles/datastar.js"
)

type pageData struct {
	Title   string
	Source  string
	Sharing bool
	Backend string
}

var modeLabels = map[session.Mode]string{
	session.ModeExecute:  "Run",
	session.ModeParse:    "Syntax tree",
	session.ModeBytecode: "Bytecode",
}

// Page renders the playground page.
func Page(data pageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<!doctype html><html lang="en"><head><meta charset="utf-8">`)
		b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		b.WriteString(`<title>` + templ.EscapeString(data.Title) + ` - loxpad</title>`)
		b.WriteString(`<link rel="stylesheet" href="/static/style.css">`)
		b.WriteString(`<script type="module" src="` + datastarURL + `"></script>`)
		b.WriteString(`<script type="module" src="/static/app.js"></script>`)
		b.WriteString(`</head><body><main class="playground">`)

		b.WriteString(`<header><h1>loxpad</h1><span class="backend">` + templ.EscapeString(data.Backend) + `</span></header>`)
		b.WriteString(`<textarea id="editor" data-bind:source spellcheck="false" autofocus>`)
		b.WriteString(templ.EscapeString(data.Source))
		b.WriteString(`</textarea>`)

		b.WriteString(`<div class="actions">`)
		for _, mode := range session.Modes() {
			b.WriteString(`<button data-mode="` + mode.String() + `" data-on:click="@post('/play/` + mode.String() + `')">`)
			b.WriteString(modeLabels[mode])
			b.WriteString(`</button>`)
		}
		if data.Sharing {
			b.WriteString(`<button class="share" data-on:click="@post('/play/share')">Share</button>`)
			b.WriteString(`<span id="` + shareLinkID + `"></span>`)
		}
		b.WriteString(`</div>`)

		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
		if err := OutputRegion("", false).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</main></body></html>`)
		return err
	})
}

// OutputRegion renders the output area. The fragment must already be safe
// HTML; failures arrive as escaped literal text.
func OutputRegion(f render.Fragment, failed bool) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		class := "output"
		if failed {
			class += " error"
		}
		_, err := io.WriteString(w, `<div id="`+outputID+`" class="`+class+`">`+string(f)+`</div>`)
		return err
	})
}

// ShareLink renders the link to a saved snippet.
func ShareLink(url string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		u := templ.EscapeString(url)
		_, err := io.WriteString(w, `<span id="`+shareLinkID+`"><a href="`+u+`">`+u+`</a></span>`)
		return err
	})
}

// ShareError renders a failed share attempt.
func ShareError(msg string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<span id="`+shareLinkID+`" class="error">`+templ.EscapeString(msg)+`</span>`)
		return err
	})
}
