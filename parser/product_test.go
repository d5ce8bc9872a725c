package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productURL = "https://www.homedepot.com/p/LG-24-in-Top-Control-Dishwasher-LDF5545ST/301744698"

const productState = `window.__APOLLO_STATE__ = {"ROOT_QUERY":{"product({\"itemId\":\"301744698\"})":{"__typename":"BaseProduct","reviews":{"ratingsReviews":{"AverageOverallRating":"4.6154","TotalReviewCount":130}},"ratingDistribution":[{"RatingValue":5,"Count":100},{"RatingValue":4,"Count":20},{"RatingValue":3,"Count":5},{"RatingValue":2,"Count":3},{"RatingValue":1,"Count":2}]}}};`

func productHTML(state, wasPrice string) string {
	return `<html><head>
<script>window.dataLayer = [];</script>
<script>` + state + `</script>
</head><body>
<span class="product-details__brand--link">LG</span>
<h1 class="product-details__title"> 24 in. Top Control Dishwasher </h1>
<div class="product-info-bar">
	<h2 class="product-info-bar__detail--7va8o">Internet #<!-- --> <!-- -->301744698</h2>
	<h2 class="product-info-bar__detail--7va8o">Model #<!-- --> <!-- -->LDF5545ST</h2>
</div>
<div class="price-format__large price-format__main-price"><span>$</span><span>549</span><span>00</span></div>
` + wasPrice + `
</body></html>`
}

const wasPriceHTML = `<div class="price-detailed__was-price"><span class="u__strike"><span>$</span><span>649</span><span>.</span><span>00</span></span></div>`

func TestExtractProductFullRecord(t *testing.T) {
	page, err := ParsePage(productHTML(productState, wasPriceHTML), productURL)
	require.NoError(t, err)

	product, err := ExtractProduct(page)
	require.NoError(t, err)

	assert.Equal(t, "LG", product.Brand)
	assert.Equal(t, "24 in. Top Control Dishwasher", product.Title)
	assert.Equal(t, "Model # LDF5545ST", product.Model)
	assert.Equal(t, productURL, product.URL)
	assert.InDelta(t, 549.00, product.Price, 0.001)
	assert.InDelta(t, 649.00, product.PriceOriginal, 0.001)
	assert.InDelta(t, 100.00, product.Discount, 0.001)
	assert.InDelta(t, 15.41, product.DiscountPercentage, 0.001)
	assert.InDelta(t, 4.62, product.RatingAverage, 0.001)
	assert.Equal(t, 130, product.ReviewsNumber)
	assert.Equal(t, []int{2, 3, 5, 20, 100}, []int{product.Rating1, product.Rating2, product.Rating3, product.Rating4, product.Rating5})
}

func TestExtractProductWithoutWasPrice(t *testing.T) {
	page, err := ParsePage(productHTML(productState, ""), productURL)
	require.NoError(t, err)

	product, err := ExtractProduct(page)
	require.NoError(t, err)

	assert.Equal(t, product.Price, product.PriceOriginal)
	assert.Zero(t, product.Discount)
	assert.Zero(t, product.DiscountPercentage)
}

func TestExtractProductUnreadableWasPrice(t *testing.T) {
	broken := `<div class="price-detailed__was-price"><span class="u__strike"><span>$</span><span>--</span></span></div>`
	page, err := ParsePage(productHTML(productState, broken), productURL)
	require.NoError(t, err)

	product, err := ExtractProduct(page)
	require.NoError(t, err)

	assert.InDelta(t, 549.00, product.PriceOriginal, 0.001)
	assert.Zero(t, product.Discount)
}

func TestExtractProductDefaults(t *testing.T) {
	html := `<html><body>
<div class="price-format__large price-format__main-price"><span>$</span><span>99</span><span>97</span></div>
</body></html>`
	page, err := ParsePage(html, productURL)
	require.NoError(t, err)

	product, err := ExtractProduct(page)
	require.NoError(t, err)

	assert.Empty(t, product.Brand)
	assert.Empty(t, product.Title)
	assert.Equal(t, ModelLabel, product.Model)
	assert.InDelta(t, 99.97, product.Price, 0.001)
	assert.Zero(t, product.RatingAverage)
	assert.Zero(t, product.ReviewsNumber)
	for star := 1; star <= 5; star++ {
		assert.Zero(t, product.RatingCount(star), "star %d", star)
	}
}

func TestExtractProductMissingPrice(t *testing.T) {
	html := `<html><body><h1 class="product-details__title">Out of stock</h1></body></html>`
	page, err := ParsePage(html, productURL)
	require.NoError(t, err)

	product, err := ExtractProduct(page)
	assert.Nil(t, product)

	var priceErr PriceParseError
	require.True(t, errors.As(err, &priceErr), "expected PriceParseError, got %v", err)
}

func TestExtractModel(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected string
	}{
		{
			name:     "label followed by value",
			html:     `<h2 class="product-info-bar__detail--a1">Model #<!-- --> <!-- -->WDT730PAHZ</h2>`,
			expected: "Model # WDT730PAHZ",
		},
		{
			name:     "label is last token",
			html:     `<h2 class="product-info-bar__detail--a1">Store SKU #</h2><h2 class="product-info-bar__detail--a1">Model #</h2>`,
			expected: "Model #",
		},
		{
			name:     "no label",
			html:     `<h2 class="product-info-bar__detail--a1">Internet #<!-- -->123</h2>`,
			expected: ModelLabel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := ParsePage("<html><body>"+tt.html+"</body></html>", productURL)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, extractModel(page.Doc.Find(infoBarSelector)))
		})
	}
}
