package parser

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	resultSectionXPath  = `//section[contains(@id, 'browse-search-pod')]`
	productCardSelector = `div[data-type='product']`
	productLinkSelector = "a.product-pod--ie-fix"
	cardBrandSelector   = "span.product-pod__title__brand--bold"
	nextPageSelector    = `a[aria-label='Next']`
	pageIndexQueryKey   = "nao"
)

// ResultPage is what one brand search-results page yields.
type ResultPage struct {
	// Brand is the brand label of the first product card, for reporting.
	Brand    string
	Products []string

	// Next is the absolute URL of the following results page, or "" on the
	// last page. NextOffset is its Nao item offset.
	Next       string
	NextOffset int
}

// HasNext reports whether another results page should be fetched.
func (r ResultPage) HasNext() bool {
	return r.Next != ""
}

// ExtractResultPage collects product links from every results section in
// document order and resolves the next-page link. A "Next" control without
// a Nao page index marks the last page.
func ExtractResultPage(page *Page) ResultPage {
	var out ResultPage

	sections := page.XPath(resultSectionXPath)
	page.Select(sections).Find(productCardSelector).Each(func(i int, card *goquery.Selection) {
		if i == 0 {
			out.Brand = strings.TrimSpace(card.Find(cardBrandSelector).Text())
		}
		href, _ := card.Find(productLinkSelector).First().Attr("href")
		if link := page.AbsoluteURL(href); link != "" {
			out.Products = append(out.Products, link)
		}
	})

	href, ok := page.Doc.Find(nextPageSelector).First().Attr("href")
	if !ok {
		return out
	}
	offset, ok := pageIndex(href)
	if !ok {
		return out
	}
	if next := page.AbsoluteURL(href); next != "" {
		out.Next = next
		out.NextOffset = offset
	}
	return out
}

// pageIndex reads the Nao offset from href's query string. The key match is
// case-insensitive; an unreadable value still counts as a marker.
func pageIndex(href string) (int, bool) {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return 0, false
	}
	for key, values := range u.Query() {
		if !strings.EqualFold(key, pageIndexQueryKey) {
			continue
		}
		if len(values) == 0 {
			return 0, true
		}
		offset, err := strconv.Atoi(values[0])
		if err != nil {
			return 0, true
		}
		return offset, true
	}
	return 0, false
}
