package parser

import (
	"strings"
	"time"

	"github.com/ThiagoRGoveia/market-data-loader/internal/models"
)

// ExtractDateFromFileName reads the date token at index of fileName split by
// separator. Only the first 8 characters of the token are used, so a trailing
// extension does not matter. It reports false for unknown formats, missing
// tokens and impossible dates.
func ExtractDateFromFileName(fileName string, index int, format, separator string) (time.Time, bool) {
	if separator == "" || index < 0 {
		return time.Time{}, false
	}

	parts := strings.Split(fileName, separator)
	if index >= len(parts) {
		return time.Time{}, false
	}

	token := parts[index]
	if len(token) < 8 || !isDigits(token[:8]) {
		return time.Time{}, false
	}
	token = token[:8]

	var year, month, day string
	switch format {
	case models.DateFormatYYYYMMDD:
		year, month, day = token[0:4], token[4:6], token[6:8]
	case models.DateFormatDDMMYYYY:
		day, month, year = token[0:2], token[2:4], token[4:8]
	case models.DateFormatMMDDYYYY:
		month, day, year = token[0:2], token[2:4], token[4:8]
	default:
		return time.Time{}, false
	}

	date, err := time.Parse("2006-01-02", year+"-"+month+"-"+day)
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
