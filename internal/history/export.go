package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/raysh454/offerlens/internal/model"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// CSVHeader is the fixed first row of a CSV export.
const CSVHeader = "URL,Network,Product Name,Score,Grade,Commission,Recommendation,Timestamp"

// Export serializes results as "json" (indented array) or "csv".
func Export(results []*model.ValidationResult, format string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON:
		if results == nil {
			results = []*model.ValidationResult{}
		}
		out, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal export: %w", err)
		}
		return out, nil
	case FormatCSV:
		return []byte(exportCSV(results)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// SupportedFormat reports whether Export accepts format.
func SupportedFormat(format string) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON, FormatCSV:
		return true
	}
	return false
}

// ContentType returns the MIME type of an export format.
func ContentType(format string) string {
	if strings.ToLower(strings.TrimSpace(format)) == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/json"
}

// exportCSV quotes every data cell and joins rows with "\n", without a
// trailing newline. encoding/csv only quotes when needed, so rows are
// built by hand.
func exportCSV(results []*model.ValidationResult) string {
	rows := make([]string, 0, len(results)+1)
	rows = append(rows, CSVHeader)
	for _, r := range results {
		if r == nil {
			continue
		}
		commission := "N/A"
		if v, ok := r.ProductInfo.Metric(model.MetricCommission); ok {
			commission = strconv.FormatFloat(v, 'f', -1, 64)
		}
		cells := []string{
			r.URL,
			r.Network,
			r.ProductInfo.Name,
			strconv.Itoa(r.Score.Overall),
			r.Score.Grade,
			commission,
			r.Score.Recommendation.Action,
			r.Timestamp.UTC().Format(time.RFC3339),
		}
		for i, c := range cells {
			cells[i] = `"` + strings.ReplaceAll(c, `"`, `""`) + `"`
		}
		rows = append(rows, strings.Join(cells, ","))
	}
	return strings.Join(rows, "\n")
}
