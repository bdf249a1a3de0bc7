package validate

import (
	"github.com/tidwall/gjson"
)

// findJSONPath looks up path with gjson, accepting both $.field and field.
func findJSONPath(body, path string) (string, bool) {
	if len(path) > 0 && path[0] == '$' {
		switch {
		case len(path) == 1:
			path = "@this"
		case path[1] == '.':
			path = path[2:]
		}
	}
	if !gjson.Valid(body) {
		return "", false
	}
	result := gjson.Get(body, path)
	if !result.Exists() {
		return "", false
	}
	return result.String(), true
}
