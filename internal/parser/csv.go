package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

const utf8BOM = "\ufeff"

// ReadSummary counts what ReadRows saw in a stream.
type ReadSummary struct {
	Rows      int
	Malformed int
}

// ReadRows streams a CSV file that starts with a header row and calls fn once per
// data row, keyed by header name. Short rows only carry the columns they have.
// Malformed rows are counted and skipped; any other read error stops the stream
// and is returned.
func ReadRows(r io.Reader, comma rune, fn func(row map[string]string)) (ReadSummary, error) {
	var summary ReadSummary

	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return summary, nil
		}
		return summary, fmt.Errorf("failed to read header: %w", err)
	}
	header = normalizeHeader(header)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				summary.Malformed++
				continue // Skip corrupted records
			}
			return summary, fmt.Errorf("failed to read record: %w", err)
		}

		summary.Rows++
		row := make(map[string]string, len(header))
		for i, value := range record {
			if i >= len(header) {
				break
			}
			row[header[i]] = value
		}
		fn(row)
	}

	return summary, nil
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		out[i] = strings.TrimSpace(h)
	}
	return out
}

// Delimiter returns the first rune of s, or ',' when s is empty.
func Delimiter(s string) rune {
	for _, r := range s {
		return r
	}
	return ','
}
