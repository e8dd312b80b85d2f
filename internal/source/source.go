// Package source fetches raw product records from live product-data
// collaborators: a JSON marketplace API and Amazon-style product pages.
package source

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Source returns the raw record for one product id.
type Source interface {
	FetchProduct(ctx context.Context, id string) (RawProduct, error)
}

// Field names shared by every source.
const (
	FieldName           = "name"
	FieldVendor         = "vendor"
	FieldCategory       = "category"
	FieldGravity        = "gravity"
	FieldCommission     = "commission"
	FieldRefundRate     = "refund_rate"
	FieldAvgEarnings    = "avg_earnings"
	FieldRating         = "rating"
	FieldReviewCount    = "review_count"
	FieldConversionRate = "conversion_rate"
)

var (
	ErrUnexpectedStatus  = errors.New("unexpected status")
	ErrIncompleteProduct = errors.New("incomplete product record")
)

// FetchError reports a failed lookup against a live source.
type FetchError struct {
	Source     string
	ProductID  string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s product %q: status %d: %v", e.Source, e.ProductID, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s product %q: %v", e.Source, e.ProductID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// RawProduct is an untyped product record as a source returned it.
type RawProduct map[string]any

// String returns the trimmed string at key, or "".
func (r RawProduct) String(key string) string {
	switch v := r[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return ""
	}
}

// Number returns the value at key as a float. Strings such as "1,234",
// "$42.50", "12%" and "4.5 out of 5 stars" are accepted.
func (r RawProduct) Number(key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case interface{ Float64() (float64, error) }:
		f, err := v.Float64()
		return f, err == nil
	case string:
		return ParseNumber(v)
	default:
		return 0, false
	}
}

// ParseNumber extracts the first decimal number from s.
func ParseNumber(s string) (float64, bool) {
	start := strings.IndexFunc(s, func(r rune) bool { return r >= '0' && r <= '9' })
	if start < 0 {
		return 0, false
	}
	if start > 0 && s[start-1] == '-' {
		start--
	}

	var b strings.Builder
	seenDot := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			b.WriteByte(c)
		case c == '-' && i == start:
			b.WriteByte(c)
		case c == ',':
			// thousands separator
		case c == '.' && !seenDot:
			seenDot = true
			b.WriteByte(c)
		default:
			i = len(s)
		}
	}

	f, err := strconv.ParseFloat(strings.TrimSuffix(b.String(), "."), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
