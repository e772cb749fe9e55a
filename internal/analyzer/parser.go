package analyzer

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// UnknownHTMLVersion is reported when the document carries no doctype declaration.
const UnknownHTMLVersion = "Unknown"

// Page is a parsed HTML document
type Page struct {
	doc *goquery.Document
}

// ParsePage builds a queryable document from raw HTML. Malformed markup is
// tolerated; the underlying parser constructs a best-effort tree.
func ParsePage(content string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &Page{doc: doc}, nil
}

// HTMLVersion returns the literal text of the document's doctype declaration,
// or UnknownHTMLVersion when none is present.
func (p *Page) HTMLVersion() string {
	for _, root := range p.doc.Nodes {
		for n := root.FirstChild; n != nil; n = n.NextSibling {
			if n.Type == html.DoctypeNode {
				return doctypeText(n)
			}
		}
	}
	return UnknownHTMLVersion
}

// doctypeText reconstructs the declaration content, e.g. "html" for HTML5 or
// `html PUBLIC "-//W3C//DTD HTML 4.01//EN" "http://..."` for legacy documents.
func doctypeText(n *html.Node) string {
	var b strings.Builder
	b.WriteString(n.Data)
	var public, system string
	for _, attr := range n.Attr {
		switch attr.Key {
		case "public":
			public = attr.Val
		case "system":
			system = attr.Val
		}
	}
	if public != "" {
		fmt.Fprintf(&b, " PUBLIC %q", public)
		if system != "" {
			fmt.Fprintf(&b, " %q", system)
		}
	} else if system != "" {
		fmt.Fprintf(&b, " SYSTEM %q", system)
	}
	return b.String()
}

// Title returns the text of the first title element, or "" if none exists.
func (p *Page) Title() string {
	return strings.TrimSpace(p.doc.Find("title").First().Text())
}

// HeadingCounts counts h1..h6 elements anywhere in the document.
func (p *Page) HeadingCounts() map[string]int {
	counts := make(map[string]int, 6)
	for i := 1; i <= 6; i++ {
		tag := fmt.Sprintf("h%d", i)
		counts[tag] = p.doc.Find(tag).Length()
	}
	return counts
}

// AnchorHrefs returns the href of every anchor element that carries the
// attribute, in document order. Anchors without an href are excluded entirely.
func (p *Page) AnchorHrefs() []string {
	var hrefs []string
	p.doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		hrefs = append(hrefs, href)
	})
	return hrefs
}

// HasLoginForm reports whether any form contains a password-type input.
// The scan short-circuits on the first match.
func (p *Page) HasLoginForm() bool {
	found := false
	p.doc.Find("form").EachWithBreak(func(_ int, form *goquery.Selection) bool {
		if form.Find("input[type='password']").Length() > 0 {
			found = true
			return false
		}
		return true
	})
	return found
}
