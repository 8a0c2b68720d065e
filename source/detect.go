package source

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// spaShells are empty mount points and noscript warnings left by
// client-rendered applications.
var spaShells = []string{
	`<div id="root"></div>`,
	`<div id="app"></div>`,
	`<div id="__next"></div>`,
	`<noscript>you need to enable javascript`,
	`<noscript>enable javascript`,
}

// IsSufficient reports whether a plainly fetched document already carries
// its content, so no browser rendering is needed. A document is considered
// an unrendered shell when it is tiny, has less than 10% visible text, fewer
// than 200 visible characters, or contains a known SPA mount point.
func IsSufficient(doc []byte) bool {
	if len(doc) < 256 {
		return false
	}

	text, markup := textMarkupRatio(doc)
	total := text + markup
	if total == 0 {
		return false
	}
	if float64(text)/float64(total) < 0.10 {
		return false
	}
	if text < 200 {
		return false
	}

	lower := bytes.ToLower(doc)
	for _, s := range spaShells {
		if bytes.Contains(lower, []byte(s)) {
			return false
		}
	}
	return true
}

// textMarkupRatio counts visible non-whitespace text bytes against every
// other byte (tags, attributes, script and style bodies).
func textMarkupRatio(doc []byte) (text, markup int) {
	z := html.NewTokenizer(bytes.NewReader(doc))
	skip := 0 // depth inside <script>/<style>
	for {
		tt := z.Next()
		raw := len(z.Raw())
		switch tt {
		case html.ErrorToken:
			return text, markup
		case html.StartTagToken:
			markup += raw
			if isInvisible(z) {
				skip++
			}
		case html.EndTagToken:
			markup += raw
			if isInvisible(z) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip > 0 {
				markup += raw
				continue
			}
			visible := len(strings.Join(strings.Fields(string(z.Text())), ""))
			text += visible
			markup += raw - visible
		default:
			markup += raw
		}
	}
}

func isInvisible(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	a := atom.Lookup(name)
	return a == atom.Script || a == atom.Style
}
