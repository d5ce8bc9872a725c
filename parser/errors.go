package parser

import (
	"errors"
	"fmt"
)

// ErrBrandSectionNotFound means the listing page has no recognisable brand
// filter. Callers must stop processing the category rather than guess.
var ErrBrandSectionNotFound = errors.New("brand filter section not found")

// PriceParseError indicates the current price could not be read. The
// product record is unusable without it.
type PriceParseError struct {
	Raw string
	Err error
}

func (e PriceParseError) Error() string {
	return fmt.Errorf("price parse %q: %w", e.Raw, e.Err).Error()
}

func (e PriceParseError) Unwrap() error {
	return e.Err
}
