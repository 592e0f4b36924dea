package reducer

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// StripMode names the path that produced the plain text.
type StripMode string

const (
	StripStructural StripMode = "structural"
	StripPattern    StripMode = "pattern"
)

// paragraphBreak marks block boundaries until normalize turns them into blank lines.
const paragraphBreak = "\u2029"

// minStructuralText is the shortest structural result trusted before falling
// back to pattern stripping.
const minStructuralText = 10

// Non-content elements removed with their children.
var removedElements = []string{
	"head", "script", "style", "nav", "header", "footer", "aside",
	"iframe", "noscript", "template", "svg", "meta", "link",
}

var blockElements = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Blockquote: true, atom.Br: true,
	atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true,
	atom.Fieldset: true, atom.Figcaption: true, atom.Figure: true, atom.Form: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Hr: true, atom.Li: true, atom.Main: true, atom.Ol: true, atom.P: true,
	atom.Pre: true, atom.Section: true, atom.Table: true, atom.Td: true, atom.Th: true,
	atom.Tr: true, atom.Ul: true,
}

// stripStructural parses the markup and walks the remaining nodes, emitting
// text and a paragraph break around every block element.
func stripStructural(raw string) (text, title string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return "", "", fmt.Errorf("parsing HTML: %w", err)
	}

	title = doc.Find("title").First().Text()
	if strings.TrimSpace(title) == "" {
		title = doc.Find("h1").First().Text()
	}

	doc.Find(strings.Join(removedElements, ", ")).Remove()

	var b strings.Builder
	for _, n := range doc.Nodes {
		walk(&b, n)
	}
	return normalize(b.String()), collapse(title), nil
}

func walk(b *strings.Builder, n *xhtml.Node) {
	switch n.Type {
	case xhtml.TextNode:
		b.WriteString(n.Data)
		return
	case xhtml.CommentNode, xhtml.DoctypeNode:
		return
	}

	block := n.Type == xhtml.ElementNode && blockElements[n.DataAtom]
	if block {
		b.WriteString(paragraphBreak)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(b, c)
	}
	if block {
		b.WriteString(paragraphBreak)
	}
}

var (
	commentPattern   = regexp.MustCompile(`(?s)<!--.*?-->`)
	voidPattern      = regexp.MustCompile(`(?i)<(?:meta|link)\b[^>]*>`)
	blockTagPattern  = regexp.MustCompile(`(?i)</?(?:address|article|blockquote|br|dd|div|dl|dt|fieldset|figcaption|figure|form|h[1-6]|hr|li|main|ol|p|pre|section|table|td|th|tr|ul)\b[^>]*>`)
	anyTagPattern    = regexp.MustCompile(`<[^>]*>`)
	titlePattern     = regexp.MustCompile(`(?is)<title\b[^>]*>(.*?)</title\s*>`)
	headingPattern   = regexp.MustCompile(`(?is)<h1\b[^>]*>(.*?)</h1\s*>`)
	containerPattern = compileContainers()
)

// compileContainers builds one pattern per paired element; RE2 has no
// backreferences to match an arbitrary closing tag.
func compileContainers() []*regexp.Regexp {
	var patterns []*regexp.Regexp
	for _, name := range removedElements {
		if name == "meta" || name == "link" {
			continue
		}
		patterns = append(patterns, regexp.MustCompile(`(?is)<`+name+`\b[^>]*>.*?</`+name+`\s*>`))
	}
	return patterns
}

// stripPattern removes markup with regular expressions. It produces the same
// paragraph structure as stripStructural for well-formed input.
func stripPattern(raw string) (text, title string) {
	if m := titlePattern.FindStringSubmatch(raw); m != nil {
		title = m[1]
	}
	if strings.TrimSpace(title) == "" {
		if m := headingPattern.FindStringSubmatch(raw); m != nil {
			title = anyTagPattern.ReplaceAllString(m[1], "")
		}
	}

	s := commentPattern.ReplaceAllString(raw, "")
	for _, p := range containerPattern {
		s = p.ReplaceAllString(s, "")
	}
	s = voidPattern.ReplaceAllString(s, "")
	s = blockTagPattern.ReplaceAllString(s, paragraphBreak)
	s = anyTagPattern.ReplaceAllString(s, "")
	s = html.UnescapeString(s)

	return normalize(s), collapse(html.UnescapeString(title))
}

// normalize collapses whitespace inside each paragraph and joins paragraphs
// with a blank line.
func normalize(s string) string {
	parts := strings.Split(s, paragraphBreak)
	paragraphs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = collapse(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return strings.Join(paragraphs, "\n\n")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
