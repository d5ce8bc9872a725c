// Package catalog holds the departments the scraper can crawl and the brands
// kept for each one.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/aluiziolira/go-scrape-homedepot/parser"
)

// ErrUnknownCategory is returned by Resolve for a key the catalog does not hold.
var ErrUnknownCategory = errors.New("unknown category")

// Category is one department listing page and the raw brand names kept from it.
type Category struct {
	Key    string        `json:"key"`
	URL    string        `json:"url"`
	Layout parser.Layout `json:"layout"`
	Brands []string      `json:"brands"`
}

// Target is a resolved category ready to crawl. Allow holds the normalized
// brand tokens.
type Target struct {
	Category
	Allow parser.BrandSet
}

// Catalog is an immutable set of categories keyed by lowercase name.
type Catalog struct {
	categories map[string]Category
}

// New builds a catalog, validating every entry. Keys are matched
// case-insensitively, so two entries differing only in case conflict.
func New(categories ...Category) (*Catalog, error) {
	c := &Catalog{categories: make(map[string]Category, len(categories))}
	for _, cat := range categories {
		key := strings.ToLower(strings.TrimSpace(cat.Key))
		if key == "" {
			return nil, fmt.Errorf("category key is required")
		}
		if _, dup := c.categories[key]; dup {
			return nil, fmt.Errorf("duplicate category %q", key)
		}
		u, err := url.Parse(cat.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("category %q: invalid url %q", key, cat.URL)
		}
		layout, err := parser.ParseLayout(string(cat.Layout))
		if err != nil {
			return nil, fmt.Errorf("category %q: %w", key, err)
		}
		if len(parser.NewBrandSet(cat.Brands...)) == 0 {
			return nil, fmt.Errorf("category %q: at least one brand is required", key)
		}

		cat.Key = key
		cat.Layout = layout
		cat.Brands = append([]string(nil), cat.Brands...)
		c.categories[key] = cat
	}
	return c, nil
}

// Default returns the built-in departments.
func Default() *Catalog {
	c, err := New(
		Category{
			Key:    "dishwasher",
			URL:    "https://www.homedepot.com/b/Appliances-Dishwashers/N-5yc1vZc3po",
			Layout: parser.LayoutNav,
			Brands: []string{"LG", "Samsung"},
		},
		Category{
			Key:    "refrigerator",
			URL:    "https://www.homedepot.com/b/Appliances-Refrigerators/N-5yc1vZc3pi",
			Layout: parser.LayoutNav,
			Brands: []string{"Whirlpool", "GE Appliances"},
		},
		Category{
			Key:    "mattress",
			URL:    "https://www.homedepot.com/b/Furniture-Bedroom-Furniture-Mattresses/N-5yc1vZc7oe",
			Layout: parser.LayoutDimension,
			Brands: []string{"Sealy"},
		},
	)
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads a catalog from a JSON array of categories.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}

	var categories []Category
	if err := json.Unmarshal(data, &categories); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog JSON from %s: %w", path, err)
	}

	c, err := New(categories...)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Resolve looks up a category by key, ignoring case and surrounding space.
func (c *Catalog) Resolve(key string) (Target, error) {
	cat, ok := c.categories[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return Target{}, fmt.Errorf("%w: %q", ErrUnknownCategory, key)
	}
	cat.Brands = append([]string(nil), cat.Brands...)
	return Target{Category: cat, Allow: parser.NewBrandSet(cat.Brands...)}, nil
}

// Keys returns the category keys in sorted order.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.categories))
	for key := range c.categories {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
