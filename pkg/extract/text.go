package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// blockElements introduce a line boundary before and after their content,
// approximating how a browser's innerText lays out rendered markup.
var blockElements = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true,
	atom.Fieldset: true, atom.Figcaption: true, atom.Figure: true, atom.Footer: true,
	atom.Form: true, atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.H5: true, atom.H6: true, atom.Header: true,
	atom.Hr: true, atom.Li: true, atom.Main: true, atom.Nav: true,
	atom.Ol: true, atom.P: true, atom.Pre: true, atom.Section: true,
	atom.Table: true, atom.Tr: true, atom.Ul: true,
}

var lineBreaks = strings.NewReplacer("\r", " ", "\n", " ")

var hiddenElements = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Noscript: true,
	atom.Template: true, atom.Head: true, atom.Title: true,
}

// InnerText returns the rendered text of a selection: <br> and block
// boundaries become newlines, whitespace runs inside a line collapse to a
// single space and every line is trimmed. Empty lines are dropped.
func InnerText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		writeText(n, &b)
	}
	return normalizeLines(b.String())
}

func writeText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		// source line breaks are plain whitespace once rendered
		b.WriteString(lineBreaks.Replace(n.Data))
		return
	case html.ElementNode:
		if hiddenElements[n.DataAtom] {
			return
		}
		if n.DataAtom == atom.Br {
			b.WriteByte('\n')
			return
		}
	}

	block := n.Type == html.ElementNode && blockElements[n.DataAtom]
	if block {
		b.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(c, b)
	}
	if block {
		b.WriteByte('\n')
	}
}

func normalizeLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// FieldValue reads a labeled input-like field the way a form would submit it:
// input value attribute, textarea content, the selected option of a select,
// otherwise the element's text. The result is trimmed.
func FieldValue(sel *goquery.Selection) string {
	switch goquery.NodeName(sel) {
	case "input":
		return strings.TrimSpace(sel.AttrOr("value", ""))
	case "textarea":
		return strings.TrimSpace(sel.Text())
	case "select":
		opt := sel.Find("option[selected]").First()
		if opt.Length() == 0 {
			opt = sel.Find("option").First()
		}
		return strings.TrimSpace(opt.AttrOr("value", opt.Text()))
	default:
		return InnerText(sel)
	}
}
