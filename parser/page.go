package parser

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Page is a fetched HTML document that supports CSS and XPath queries
// and resolves links against the URL it was fetched from.
type Page struct {
	URL *url.URL
	Doc *goquery.Document
}

// NewPage parses body as HTML fetched from pageURL.
func NewPage(body []byte, pageURL *url.URL) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	doc.Url = pageURL
	return &Page{URL: pageURL, Doc: doc}, nil
}

// ParsePage is NewPage for string input and a raw URL.
func ParsePage(body, rawURL string) (*Page, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	return NewPage([]byte(body), pageURL)
}

// XPath returns the nodes matching expr in document order.
// An invalid expression matches nothing.
func (p *Page) XPath(expr string) []*html.Node {
	if len(p.Doc.Nodes) == 0 {
		return nil
	}
	nodes, err := htmlquery.QueryAll(p.Doc.Nodes[0], expr)
	if err != nil {
		return nil
	}
	return nodes
}

// Select wraps XPath results so CSS queries can continue from them.
func (p *Page) Select(nodes []*html.Node) *goquery.Selection {
	return p.Doc.FindNodes(nodes...)
}

// AbsoluteURL resolves href against the page URL. Empty or unparseable
// hrefs yield "".
func (p *Page) AbsoluteURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if p.URL == nil || ref.IsAbs() {
		return ref.String()
	}
	return p.URL.ResolveReference(ref).String()
}

// directText joins the element's own text nodes, ignoring nested markup
// such as result counts. It falls back to the full text when the element
// has no direct text.
func directText(s *goquery.Selection) string {
	var b strings.Builder
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			b.WriteString(c.Text())
		}
	})
	if text := strings.TrimSpace(b.String()); text != "" {
		return text
	}
	return strings.TrimSpace(s.Text())
}

// textParts returns the trimmed, non-empty direct text of each element.
func textParts(s *goquery.Selection) []string {
	var parts []string
	s.Each(func(_ int, el *goquery.Selection) {
		if text := directText(el); text != "" {
			parts = append(parts, text)
		}
	})
	return parts
}
