package extract

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
	nethtml "golang.org/x/net/html"
)

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "br": true,
	"dd": true, "div": true, "dl": true, "dt": true, "footer": true, "h1": true,
	"h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "header": true,
	"hr": true, "li": true, "ol": true, "p": true, "pre": true, "section": true,
	"table": true, "td": true, "th": true, "tr": true, "ul": true,
}

var spaceReplacer = strings.NewReplacer(
	"\u00a0", " ",
	"\u2007", " ",
	"\u202f", " ",
	"\u2009", " ",
	"\u2013", "-",
	"\u2014", "-",
	"\u2015", "-",
	"\u2212", "-",
)

// CleanText turns an HTML-escaped description into one line of plain text.
// Entities are decoded and tags stripped; non-breaking spaces and dash
// variants fold to their ASCII forms.
func CleanText(description string) string {
	if description == "" {
		return ""
	}

	unescaped := html.UnescapeString(description)
	return Normalize(plainText(unescaped))
}

// CleanLines is CleanText split at line breaks and block elements, with
// blank lines dropped.
func CleanLines(description string) []string {
	var lines []string
	for _, line := range strings.Split(plainText(html.UnescapeString(description)), "\n") {
		if line = Normalize(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func plainText(unescaped string) string {
	if !strings.ContainsAny(unescaped, "<&") {
		return unescaped
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(unescaped))
	if err != nil {
		return unescaped
	}

	var b strings.Builder
	for _, n := range doc.Nodes {
		writeText(&b, n)
	}
	return b.String()
}

func writeText(b *strings.Builder, n *nethtml.Node) {
	switch n.Type {
	case nethtml.TextNode:
		b.WriteString(n.Data)
		return
	case nethtml.ElementNode:
		if n.Data == "script" || n.Data == "style" {
			return
		}
	}

	block := n.Type == nethtml.ElementNode && blockElements[n.Data]
	if block {
		b.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
	if block {
		b.WriteByte('\n')
	}
}

// Normalize folds whitespace and dash variants and collapses runs of space.
func Normalize(text string) string {
	return strings.Join(strings.Fields(spaceReplacer.Replace(text)), " ")
}
