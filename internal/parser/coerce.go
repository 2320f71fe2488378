package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/ThiagoRGoveia/market-data-loader/internal/models"
)

var (
	leadingInt   = regexp.MustCompile(`^[+-]?\d+`)
	leadingFloat = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
)

// dateLayouts are tried in order for DATE columns.
var dateLayouts = []string{
	"2006-01-02",
	"20060102",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006",
	"2006/01/02",
}

// ParseLeadingInt parses the integer at the start of s, ignoring anything after
// it. "12.9" gives 12 and "42abc" gives 42.
func ParseLeadingInt(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	prefix := leadingInt.FindString(s)
	if prefix == "" {
		return 0, fmt.Errorf("%w: %q is not an integer", models.ErrRowParse, s)
	}
	v, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", models.ErrRowParse, s, err)
	}
	return v, nil
}

// ParseLeadingFloat parses the decimal number at the start of s, ignoring
// anything after it.
func ParseLeadingFloat(s string) (float64, error) {
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, nil
	}
	prefix := leadingFloat.FindString(s)
	if prefix == "" {
		return 0, fmt.Errorf("%w: %q is not a number", models.ErrRowParse, s)
	}
	v, err := strconv.ParseFloat(prefix, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", models.ErrRowParse, s, err)
	}
	return v, nil
}

// ParseDate is permissive: a value matching none of the known layouts yields nil
// rather than an error.
func ParseDate(s string) any {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return nil
}

// ConvertValue coerces an already trimmed cell to the Go value stored for
// columnType. Unknown types are kept as text.
func ConvertValue(columnType models.ColumnType, value string) (any, error) {
	switch columnType {
	case models.ColumnTypeInt:
		return ParseLeadingInt(value)
	case models.ColumnTypeFloat:
		return ParseLeadingFloat(value)
	case models.ColumnTypeDate:
		return ParseDate(value), nil
	default:
		return value, nil
	}
}
