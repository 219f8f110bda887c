// Package sanitize turns admin-written Markdown into the HTML subset accepted
// by Telegram's HTML parse mode.
package sanitize

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

var (
	paragraphOpen  = regexp.MustCompile(`<p>`)
	paragraphClose = regexp.MustCompile(`</p>`)
	lineBreak      = regexp.MustCompile(`<br\s*/?>\n?`)
	headingOpen    = regexp.MustCompile(`<h[1-6][^>]*>`)
	headingClose   = regexp.MustCompile(`</h[1-6]>`)
	listItem       = regexp.MustCompile(`<li>`)
	listMarkup     = regexp.MustCompile(`</li>|</?[uo]l[^>]*>|<hr\s*/?>`)
	blankLines     = regexp.MustCompile(`\n{3,}`)
	codeLanguage   = regexp.MustCompile(`^language-[\w+-]+$`)
)

// Policy renders Markdown to Telegram HTML.
type Policy struct {
	policy   *bluemonday.Policy
	markdown goldmark.Markdown
}

// NewTelegramPolicy creates a Policy allowing only the tags Telegram renders.
func NewTelegramPolicy() *Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("b", "strong", "i", "em", "u", "ins", "s", "strike", "del", "code", "pre", "blockquote")
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "tg")
	p.RequireParseableURLs(true)
	p.AllowAttrs("class").Matching(codeLanguage).OnElements("code")

	return &Policy{
		policy:   p,
		markdown: goldmark.New(),
	}
}

// Render converts Markdown to Telegram HTML. Raw HTML in the input is dropped.
// If conversion fails the input is returned escaped.
func (p *Policy) Render(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := p.markdown.Convert([]byte(text), &buf); err != nil {
		return html.EscapeString(text)
	}

	out := buf.String()
	out = paragraphOpen.ReplaceAllString(out, "")
	out = paragraphClose.ReplaceAllString(out, "\n")
	out = lineBreak.ReplaceAllString(out, "\n")
	out = headingOpen.ReplaceAllString(out, "<b>")
	out = headingClose.ReplaceAllString(out, "</b>\n")
	out = listItem.ReplaceAllString(out, "• ")
	out = listMarkup.ReplaceAllString(out, "")

	out = p.policy.Sanitize(out)
	out = blankLines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
