// Package filter evaluates the row filters declared per folder in the data
// configuration.
package filter

import (
	"log"
	"math"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/ThiagoRGoveia/market-data-loader/internal/models"
	"github.com/ThiagoRGoveia/market-data-loader/internal/parser"
)

const (
	OpEqual        = "="
	OpNotEqual     = "!="
	OpGreater      = ">"
	OpGreaterEqual = ">="
	OpLess         = "<"
	OpLessEqual    = "<="
	OpStartsWith   = "STARTSWITH"
	OpEndsWith     = "ENDSWITH"
	OpContains     = "CONTAINS"
	OpEquals       = "EQUALS"
	OpIn           = "IN"
	OpBetween      = "BETWEEN"
	OpRegex        = "REGEX"
)

// Operations lists every supported operator.
var Operations = []string{
	OpEqual, OpNotEqual, OpGreater, OpGreaterEqual, OpLess, OpLessEqual,
	OpStartsWith, OpEndsWith, OpContains, OpEquals, OpIn, OpBetween, OpRegex,
}

// Evaluate reports whether row passes every condition. No conditions means the
// row passes.
func Evaluate(row map[string]string, conditions []models.Condition) bool {
	for _, condition := range conditions {
		if !EvaluateCondition(row, condition) {
			return false
		}
	}
	return true
}

// EvaluateCondition is false when the referenced field is not in the row.
func EvaluateCondition(row map[string]string, condition models.Condition) bool {
	fieldValue, ok := row[condition.Field]
	if !ok {
		return false
	}

	switch condition.Operation {
	case OpEqual:
		value, ok := models.FormatNumber(condition.Value)
		return ok && fieldValue == value
	case OpNotEqual:
		value, ok := models.FormatNumber(condition.Value)
		return !ok || fieldValue != value
	case OpGreater:
		return compare(fieldValue, condition.Value, func(a, b float64) bool { return a > b })
	case OpGreaterEqual:
		return compare(fieldValue, condition.Value, func(a, b float64) bool { return a >= b })
	case OpLess:
		return compare(fieldValue, condition.Value, func(a, b float64) bool { return a < b })
	case OpLessEqual:
		return compare(fieldValue, condition.Value, func(a, b float64) bool { return a <= b })
	case OpStartsWith:
		value, ok := condition.Value.(string)
		return ok && strings.HasPrefix(fieldValue, value)
	case OpEndsWith:
		value, ok := condition.Value.(string)
		return ok && strings.HasSuffix(fieldValue, value)
	case OpContains:
		value, ok := condition.Value.(string)
		return ok && strings.Contains(fieldValue, value)
	case OpEquals:
		value, ok := condition.Value.(string)
		return ok && strings.TrimSpace(fieldValue) == value
	case OpIn:
		values, ok := condition.Value.([]any)
		if !ok {
			return false
		}
		return slices.ContainsFunc(values, func(v any) bool {
			s, ok := models.FormatNumber(v)
			return ok && s == fieldValue
		})
	case OpBetween:
		bounds, ok := condition.Value.([]any)
		if !ok || len(bounds) != 2 {
			return false
		}
		n := toNumber(fieldValue)
		return n >= toNumber(bounds[0]) && n <= toNumber(bounds[1])
	case OpRegex:
		pattern, _ := models.FormatNumber(condition.Value)
		re, ok := compileRegex(pattern)
		return ok && re.MatchString(fieldValue)
	default:
		log.Printf("WARN: Unknown filter operation: %s", condition.Operation)
		return false
	}
}

// compare is false whenever either side is not a number, since NaN never
// compares true.
func compare(fieldValue string, value any, op func(a, b float64) bool) bool {
	return op(toNumber(fieldValue), toNumber(value))
}

func toNumber(v any) float64 {
	s, ok := models.FormatNumber(v)
	if !ok {
		return math.NaN()
	}
	n, err := parser.ParseLeadingFloat(strings.TrimSpace(s))
	if err != nil {
		return math.NaN()
	}
	return n
}

type compiled struct {
	re *regexp.Regexp
	ok bool
}

var regexCache sync.Map

func compileRegex(pattern string) (*regexp.Regexp, bool) {
	if c, found := regexCache.Load(pattern); found {
		entry := c.(compiled)
		return entry.re, entry.ok
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		log.Printf("ERROR: Invalid regex pattern %q: %v", pattern, err)
	}
	entry, _ := regexCache.LoadOrStore(pattern, compiled{re: re, ok: err == nil})
	c := entry.(compiled)
	return c.re, c.ok
}
