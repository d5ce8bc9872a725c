package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-scrape-homedepot/models"
	"github.com/antchfx/htmlquery"
)

const (
	stateScriptXPath = `//script[contains(text(), 'APOLLO_STATE')]`

	averageKey     = "AverageOverallRating"
	reviewCountKey = "TotalReviewCount"
	ratingValueKey = "RatingValue"
	countKey       = "Count"
)

var (
	// A rating is a single digit with an optional fraction; null or
	// out-of-range values do not match.
	averagePattern = regexp.MustCompile(`"AverageOverallRating":\s*"?(\d(?:\.\d+)?)\b`)
	reviewsPattern = regexp.MustCompile(`"TotalReviewCount":\s*(\d+)`)
	bucketPatterns = func() [5]*regexp.Regexp {
		var out [5]*regexp.Regexp
		for star := 1; star <= 5; star++ {
			out[star-1] = regexp.MustCompile(fmt.Sprintf(`(?s)"RatingValue":\s*%d\b.*?"Count":\s*(\d*)`, star))
		}
		return out
	}()
)

// Ratings is the review summary of a product. Counts[0] holds one-star reviews.
type Ratings struct {
	Average float64
	Reviews int
	Counts  [5]int
}

// Apply copies the ratings onto a product record.
func (r Ratings) Apply(p *models.Product) {
	p.RatingAverage = r.Average
	p.ReviewsNumber = r.Reviews
	for star := 1; star <= 5; star++ {
		p.SetRatingCount(star, r.Counts[star-1])
	}
}

// ExtractRatings reads the rating summary from the page's embedded client
// state. The blob is decoded as JSON when possible; otherwise each value is
// pattern-matched from the raw text. Anything not found is zero.
func ExtractRatings(blob string) Ratings {
	if r, ok := ratingsFromState(blob); ok {
		return r
	}
	return ratingsFromPatterns(blob)
}

func stateScript(page *Page) string {
	nodes := page.XPath(stateScriptXPath)
	if len(nodes) == 0 {
		return ""
	}
	return htmlquery.InnerText(nodes[0])
}

func ratingsFromPatterns(blob string) Ratings {
	var r Ratings
	if m := averagePattern.FindStringSubmatch(blob); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			r.Average = round2(v)
		}
	}
	if m := reviewsPattern.FindStringSubmatch(blob); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			r.Reviews = v
		}
	}
	for i, pattern := range bucketPatterns {
		if m := pattern.FindStringSubmatch(blob); m != nil {
			if v, err := strconv.Atoi(m[1]); err == nil {
				r.Counts[i] = v
			}
		}
	}
	return r
}

// ratingsFromState decodes the object assigned in a script such as
// `window.__APOLLO_STATE__ = {...};` and walks it for rating fields in
// document order, so the first product in the blob wins. ok is false when
// the blob is not JSON or carries no rating field at all.
func ratingsFromState(blob string) (Ratings, bool) {
	start := strings.Index(blob, "{")
	end := strings.LastIndex(blob, "}")
	if start < 0 || end <= start {
		return Ratings{}, false
	}

	dec := json.NewDecoder(strings.NewReader(blob[start : end+1]))
	state, err := decodeOrdered(dec)
	if err != nil {
		return Ratings{}, false
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Ratings{}, false
	}

	w := &stateWalker{}
	w.walk(state)
	return w.ratings, w.found
}

// member is one key/value pair of a decoded object. Objects decode to
// []member so their keys keep the order they had in the source text.
type member struct {
	key   string
	value any
}

func decodeOrdered(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch delim {
	case '{':
		var obj []member
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("object key %v is not a string", keyTok)
			}
			value, err := decodeOrdered(dec)
			if err != nil {
				return nil, err
			}
			obj = append(obj, member{key: key, value: value})
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return obj, nil
	case '[':
		var arr []any
		for dec.More() {
			item, err := decodeOrdered(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, item)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return arr, nil
	}
	return nil, fmt.Errorf("unexpected delimiter %v", delim)
}

type stateWalker struct {
	ratings     Ratings
	found       bool
	haveAverage bool
	haveReviews bool
	haveBucket  [5]bool
}

func (w *stateWalker) walk(node any) {
	switch v := node.(type) {
	case []member:
		for _, m := range v {
			w.visitMember(v, m)
			w.walk(m.value)
		}
	case []any:
		for _, item := range v {
			w.walk(item)
		}
	}
}

func (w *stateWalker) visitMember(obj []member, m member) {
	switch m.key {
	case averageKey:
		if v, ok := number(m.value); ok && !w.haveAverage {
			w.ratings.Average = round2(v)
			w.haveAverage, w.found = true, true
		}
	case reviewCountKey:
		if v, ok := number(m.value); ok && !w.haveReviews {
			w.ratings.Reviews = int(v)
			w.haveReviews, w.found = true, true
		}
	case ratingValueKey:
		star, okStar := number(m.value)
		count, okCount := number(lookup(obj, countKey))
		if !okStar || !okCount {
			return
		}
		idx := int(star) - 1
		if idx < 0 || idx >= len(w.ratings.Counts) || w.haveBucket[idx] {
			return
		}
		w.ratings.Counts[idx] = int(count)
		w.haveBucket[idx], w.found = true, true
	}
}

func lookup(obj []member, key string) any {
	for _, m := range obj {
		if m.key == key {
			return m.value
		}
	}
	return nil
}

// number accepts JSON numbers and numeric strings.
func number(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}
