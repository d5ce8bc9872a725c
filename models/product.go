// Package models defines data structures for the scraper.
package models

import "time"

// Product is the record extracted from one product detail page.
type Product struct {
	Category           string    `csv:"category" json:"category"`
	Brand              string    `csv:"brand" json:"brand"`
	Title              string    `csv:"title" json:"title"`
	Model              string    `csv:"model" json:"model"`
	URL                string    `csv:"url" json:"url"`
	Price              float64   `csv:"price" json:"price"`
	PriceOriginal      float64   `csv:"price_original" json:"price_original"`
	Discount           float64   `csv:"discount" json:"discount"`
	DiscountPercentage float64   `csv:"discount_percentage" json:"discount_percentage"`
	RatingAverage      float64   `csv:"rating_average" json:"rating_average"`
	ReviewsNumber      int       `csv:"reviews_number" json:"reviews_number"`
	Rating5            int       `csv:"rating_5" json:"rating_5"`
	Rating4            int       `csv:"rating_4" json:"rating_4"`
	Rating3            int       `csv:"rating_3" json:"rating_3"`
	Rating2            int       `csv:"rating_2" json:"rating_2"`
	Rating1            int       `csv:"rating_1" json:"rating_1"`
	ScrapedAt          time.Time `csv:"scraped_at" json:"scraped_at"`
}

// SetRatingCount stores the count for a 1-5 star bucket. Other stars are ignored.
func (p *Product) SetRatingCount(star, count int) {
	switch star {
	case 1:
		p.Rating1 = count
	case 2:
		p.Rating2 = count
	case 3:
		p.Rating3 = count
	case 4:
		p.Rating4 = count
	case 5:
		p.Rating5 = count
	}
}

// RatingCount returns the count for a 1-5 star bucket.
func (p *Product) RatingCount(star int) int {
	switch star {
	case 1:
		return p.Rating1
	case 2:
		return p.Rating2
	case 3:
		return p.Rating3
	case 4:
		return p.Rating4
	case 5:
		return p.Rating5
	}
	return 0
}

// ScraperResult holds the overall result of a scraping operation
type ScraperResult struct {
	Category        string
	StartTime       time.Time
	EndTime         time.Time
	TotalCount      int
	ErrorCount      int
	FailedURLs      []string
	ErrorsByType    map[string]int
	RetryCount      int
	RequestCount    int
	PageCount       int
	BrandLinks      int
	ProductLinks    int
	SkippedProducts int
}
