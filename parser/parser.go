// Package parser turns fetched retailer pages into brand links, result-page
// links and product records. Every function here is a pure transformation
// of one page.
package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-scrape-homedepot/models"
)

// ValidateProduct ensures the record carries the fields the pipeline keys on.
func ValidateProduct(p *models.Product) error {
	if p == nil {
		return fmt.Errorf("product is nil")
	}
	if strings.TrimSpace(p.URL) == "" {
		return fmt.Errorf("product missing url")
	}
	if p.Price <= 0 {
		return fmt.Errorf("product missing price for %s", p.URL)
	}
	return nil
}

// ParsePrice joins a price split across elements, e.g. ["$", "549", "00"]
// or ["$", "649", ".", "00"], into a number. Currency symbols and thousands
// separators are dropped.
func ParsePrice(parts []string) (float64, error) {
	raw := strings.Join(parts, " ")

	var (
		cleaned  []string
		hasPoint bool
	)
	for _, part := range parts {
		part = strings.Map(func(r rune) rune {
			if (r >= '0' && r <= '9') || r == '.' {
				return r
			}
			return -1
		}, part)
		if part == "" {
			continue
		}
		if strings.Contains(part, ".") {
			hasPoint = true
		}
		cleaned = append(cleaned, part)
	}

	sep := "."
	if hasPoint {
		sep = ""
	}
	value, err := strconv.ParseFloat(strings.Join(cleaned, sep), 64)
	if err != nil {
		return 0, PriceParseError{Raw: raw, Err: err}
	}
	return value, nil
}

// ComputeDiscount returns the absolute and percentage discount of current
// against original, rounded to cents. A non-positive original yields zeros.
func ComputeDiscount(current, original float64) (amount, percentage float64) {
	if original <= 0 {
		return 0, 0
	}
	diff := original - current
	return round2(diff), round2(diff / original * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
