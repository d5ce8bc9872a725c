package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-homedepot/models"
)

const (
	brandSelector     = "span.product-details__brand--link"
	titleSelector     = "h1.product-details__title"
	infoBarSelector   = "h2[class*='product-info-bar__detail']"
	mainPriceSelector = "div.price-format__large.price-format__main-price span"
	wasPriceSelector  = "div.price-detailed__was-price span.u__strike span"

	// ModelLabel precedes the model number in the info bar. It is also the
	// model value when the label is missing.
	ModelLabel = "Model #"
)

// ExtractProduct builds the product record for a detail page. Only the
// current price is required: a PriceParseError means the record should be
// skipped. Every other field falls back to its default independently.
func ExtractProduct(page *Page) (*models.Product, error) {
	price, err := ParsePrice(textParts(page.Doc.Find(mainPriceSelector)))
	if err != nil {
		return nil, err
	}

	product := &models.Product{
		Brand:         strings.TrimSpace(page.Doc.Find(brandSelector).First().Text()),
		Title:         strings.TrimSpace(page.Doc.Find(titleSelector).First().Text()),
		Model:         extractModel(page.Doc.Find(infoBarSelector)),
		Price:         price,
		PriceOriginal: price,
	}
	if page.URL != nil {
		product.URL = page.URL.String()
	}

	if parts := textParts(page.Doc.Find(wasPriceSelector)); len(parts) > 0 {
		if original, err := ParsePrice(parts); err == nil && original > 0 {
			product.PriceOriginal = original
			product.Discount, product.DiscountPercentage = ComputeDiscount(price, original)
		}
	}

	ExtractRatings(stateScript(page)).Apply(product)
	return product, nil
}

// extractModel finds the "Model #" label among the info bar text tokens and
// joins it with the token that follows.
func extractModel(infoBar *goquery.Selection) string {
	var tokens []string
	infoBar.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) != "#text" {
			return
		}
		if text := strings.TrimSpace(c.Text()); text != "" {
			tokens = append(tokens, text)
		}
	})

	for i, token := range tokens {
		if token != ModelLabel {
			continue
		}
		end := min(i+2, len(tokens))
		return strings.Join(tokens[i:end], " ")
	}
	return ModelLabel
}
