package templating

import (
	"fmt"
	"strconv"
	"strings"
)

// Group operators.
const (
	GroupAnd = "AND"
	GroupOr  = "OR"
)

// Condition is a single field comparison. The same type backs both places
// conditions appear: the condition groups deciding whether a template applies
// (operators = and != only) and the inline {{if ...}} dialect inside template
// bodies (==, !=, >, <, >= and <=, with numeric coercion for the ordering
// operators). "==" is normalized to "=" at parse time.
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// Group is an AND/OR clause of conditions. A template applies when at least
// one of its groups evaluates true.
type Group struct {
	Operator   string      `json:"operator"`
	Conditions []Condition `json:"conditions"`
}

// Evaluate resolves the condition's field against the data and applies the
// operator. Unknown operators and non-numeric operands of an ordering
// operator evaluate to false rather than erroring.
func (c Condition) Evaluate(data map[string]any) bool {
	value, _ := Resolve(data, c.Field)

	switch c.Operator {
	case "=", "==":
		return looseEqual(value, c.Value)
	case "!=":
		return !looseEqual(value, c.Value)
	case ">", "<", ">=", "<=":
		left, okLeft := toFloat(value)
		right, err := strconv.ParseFloat(c.Value, 64)
		if !okLeft || err != nil {
			return false
		}
		switch c.Operator {
		case ">":
			return left > right
		case "<":
			return left < right
		case ">=":
			return left >= right
		default:
			return left <= right
		}
	default:
		return false
	}
}

// Evaluate applies the group operator over its conditions.
// AND is true when every condition holds (vacuously true when empty),
// OR when at least one does.
func (g Group) Evaluate(data map[string]any) bool {
	if strings.EqualFold(g.Operator, GroupOr) {
		for _, cond := range g.Conditions {
			if cond.Evaluate(data) {
				return true
			}
		}
		return false
	}

	for _, cond := range g.Conditions {
		if !cond.Evaluate(data) {
			return false
		}
	}
	return true
}

// EvaluateGroups returns true when at least one group evaluates true.
// An empty group list means the template applies unconditionally.
func EvaluateGroups(groups []Group, data map[string]any) bool {
	if len(groups) == 0 {
		return true
	}
	for _, group := range groups {
		if group.Evaluate(data) {
			return true
		}
	}
	return false
}

// inlineOperators are tried longest-first so ">=" is not read as ">".
var inlineOperators = []string{"==", "!=", ">=", "<=", ">", "<"}

// ParseComparison parses the inline condition dialect "field OP value".
// The value may be single- or double-quoted. A malformed expression is an
// error; callers treat it as an unmet condition.
func ParseComparison(expr string) (Condition, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return Condition{}, fmt.Errorf("empty condition")
	}

	for _, op := range inlineOperators {
		idx := strings.Index(trimmed, op)
		if idx < 0 {
			continue
		}
		field := strings.TrimSpace(trimmed[:idx])
		value := strings.TrimSpace(trimmed[idx+len(op):])
		if field == "" {
			return Condition{}, fmt.Errorf("condition %q has no field", expr)
		}
		operator := op
		if operator == "==" {
			operator = "="
		}
		return Condition{Field: field, Operator: operator, Value: unquote(value)}, nil
	}

	return Condition{}, fmt.Errorf("condition %q has no comparison operator", expr)
}

func unquote(value string) string {
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if (first == '\'' && last == '\'') || (first == '"' && last == '"') {
			return value[1 : len(value)-1]
		}
	}
	return value
}

// looseEqual compares a resolved value against a string literal the way the
// template language does: booleans against "true"/"false", everything else
// by string form. A missing value compares as the empty string.
func looseEqual(value any, literal string) bool {
	if b, ok := value.(bool); ok {
		if parsed, err := strconv.ParseBool(strings.ToLower(literal)); err == nil {
			return b == parsed
		}
	}
	return stringify(value) == literal
}

func stringify(value any) string {
	if value == nil {
		return ""
	}
	return fmt.Sprintf("%v", value)
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
