// Package templating implements the conditional email template engine:
// dotted-path field resolution, condition evaluation and template rendering
// with {{if}}/{{else if}}/{{else}}/{{endif}} blocks and {{path}} placeholders.
package templating

import "strings"

// Resolve walks the dotted path through nested map[string]any values.
// It returns (nil, false) when any segment is missing or the intermediate
// value is not a map. It never panics; missing data renders as an empty
// string or an unmet condition downstream.
func Resolve(data map[string]any, path string) (any, bool) {
	if data == nil || path == "" {
		return nil, false
	}

	segments := strings.Split(path, ".")
	var current any = data
	for _, segment := range segments {
		record, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		value, ok := record[segment]
		if !ok {
			return nil, false
		}
		current = value
	}
	return current, true
}
