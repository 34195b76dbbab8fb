package recordstore

import (
	"fmt"
	"strings"
)

// Condition is a single field equality.
type Condition struct {
	Field string
	Value any
}

// Filter is a conjunction of equality conditions.
type Filter []Condition

// Eq starts a filter with field = value.
func Eq(field string, value any) Filter {
	return Filter{{Field: field, Value: value}}
}

// And appends field = value.
func (f Filter) And(field string, value any) Filter {
	out := make(Filter, len(f), len(f)+1)
	copy(out, f)
	return append(out, Condition{Field: field, Value: value})
}

// String renders the filter in the hosted API's predicate syntax,
// e.g. lesson = "abc" && user = "xyz". String literals are escaped.
func (f Filter) String() string {
	parts := make([]string, 0, len(f))
	for _, cond := range f {
		parts = append(parts, fmt.Sprintf("%s = %s", cond.Field, literal(cond.Value)))
	}
	return strings.Join(parts, " && ")
}

// Match reports whether rec satisfies every condition.
func (f Filter) Match(rec Record) bool {
	for _, cond := range f {
		if !equalValues(rec[cond.Field], cond.Value) {
			return false
		}
	}
	return true
}

var literalEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func literal(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int, int32, int64, float32, float64:
		return fmt.Sprintf("%v", val)
	default:
		return `"` + literalEscaper.Replace(fmt.Sprint(val)) + `"`
	}
}

func equalValues(a, b any) bool {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf
		}
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
