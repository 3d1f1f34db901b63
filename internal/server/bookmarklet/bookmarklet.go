// Package bookmarklet renders the javascript: URLs users drag to their
// bookmarks bar.
package bookmarklet

import (
	"bytes"
	"embed"
	"regexp"
	"strings"
	"text/template"
)

//go:embed *.js.tmpl
var sources embed.FS

var templates = template.Must(template.ParseFS(sources, "*.js.tmpl"))

var (
	commentedLines = regexp.MustCompile(`(?m)^\s*//.*\n`)
	leadingSpace   = regexp.MustCompile(`(?m)^\s+`)
	lineEndings    = regexp.MustCompile(`\s*\n`)
	spaceRuns      = regexp.MustCompile(`\s{2,}`)
)

type params struct {
	Origin string
	Token  string
}

// Mark renders the bookmarklet that updates dogears using token.
func Mark(origin, token string) (string, error) {
	return render("mark.js.tmpl", params{Origin: strings.TrimRight(origin, "/"), Token: token})
}

// WhereWasI renders the bookmarklet that resumes reading on the current site.
// It carries no credential; the session cookie authenticates the jump.
func WhereWasI(origin string) (string, error) {
	return render("where.js.tmpl", params{Origin: strings.TrimRight(origin, "/")})
}

func render(name string, p params) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, p); err != nil {
		return "", err
	}
	return "javascript:" + EncodeURIComponent(minify(buf.String())), nil
}

// minify expects line comments on their own lines only, no block comments,
// and explicit semicolons.
func minify(js string) string {
	js = commentedLines.ReplaceAllString(js, "")
	js = leadingSpace.ReplaceAllString(js, "")
	js = lineEndings.ReplaceAllString(js, "")
	return spaceRuns.ReplaceAllString(js, " ")
}

// componentSet holds the printable ASCII bytes that must be escaped in a URL
// component. Controls and non-ASCII bytes are always escaped.
const componentSet = "$%&+,/:;=@[\\]^|?`{} \"#<>"

// EncodeURIComponent percent-encodes s with the WHATWG component set.
func EncodeURIComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c >= 0x7f || strings.IndexByte(componentSet, c) >= 0 {
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0f])
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
