package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Layout selects how the brand filter panel of a listing page is located.
type Layout string

const (
	// LayoutNav is the appliance layout: a nav heading followed by a list.
	LayoutNav Layout = "nav"
	// LayoutDimension is the furniture layout: a "dimension" block of refinement links.
	LayoutDimension Layout = "dimension"
)

const (
	navHeadingSelector  = "div nav p.customNav__heading"
	dimensionXPath      = `//div[@class='dimension' and contains(., 'Brand')]`
	refinementSelector  = "a.refinement__link"
	brandHeadingKeyword = "brand"
)

// ParseLayout validates a layout name.
func ParseLayout(name string) (Layout, error) {
	switch Layout(strings.ToLower(strings.TrimSpace(name))) {
	case LayoutNav:
		return LayoutNav, nil
	case LayoutDimension:
		return LayoutDimension, nil
	default:
		return "", fmt.Errorf("unknown listing layout %q", name)
	}
}

// BrandLink is an allow-listed brand filter entry.
type BrandLink struct {
	Label string
	URL   string
}

type brandEntry struct {
	label string
	href  string
}

// ExtractBrandLinks returns the brand filter links whose label is in allow,
// in document order. A label seen twice keeps its first position and its
// last link.
func ExtractBrandLinks(page *Page, layout Layout, allow BrandSet) ([]BrandLink, error) {
	var (
		entries []brandEntry
		err     error
	)
	switch layout {
	case LayoutNav:
		entries, err = navBrandEntries(page)
	case LayoutDimension:
		entries, err = dimensionBrandEntries(page)
	default:
		return nil, fmt.Errorf("unknown listing layout %q", layout)
	}
	if err != nil {
		return nil, err
	}

	// A repeated label keeps its first position and takes the later link.
	links := make([]BrandLink, 0, len(entries))
	index := make(map[string]int, len(entries))
	for _, entry := range entries {
		if !allow.Contains(entry.label) {
			continue
		}
		link := page.AbsoluteURL(entry.href)
		if link == "" {
			continue
		}
		if i, dup := index[entry.label]; dup {
			links[i].URL = link
			continue
		}
		index[entry.label] = len(links)
		links = append(links, BrandLink{Label: entry.label, URL: link})
	}
	return links, nil
}

// BrandLinkMap keys brand links by their displayed label.
func BrandLinkMap(links []BrandLink) map[string]string {
	out := make(map[string]string, len(links))
	for _, link := range links {
		out[link.Label] = link.URL
	}
	return out
}

func navBrandEntries(page *Page) ([]brandEntry, error) {
	var heading *goquery.Selection
	page.Doc.Find(navHeadingSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(strings.ToLower(s.Text()), brandHeadingKeyword) {
			heading = s
			return false
		}
		return true
	})
	if heading == nil {
		return nil, ErrBrandSectionNotFound
	}

	var entries []brandEntry
	heading.NextAllFiltered("ul").First().Find("li").Each(func(_ int, li *goquery.Selection) {
		a := li.Find("a").First()
		href, _ := a.Attr("href")
		entries = append(entries, brandEntry{label: directText(a), href: href})
	})
	return entries, nil
}

func dimensionBrandEntries(page *Page) ([]brandEntry, error) {
	sections := page.XPath(dimensionXPath)
	if len(sections) == 0 {
		return nil, ErrBrandSectionNotFound
	}

	var entries []brandEntry
	page.Select(sections).Find(refinementSelector).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		entries = append(entries, brandEntry{label: directText(a), href: href})
	})
	return entries, nil
}
