package resolver

import (
	"fmt"
	"strings"
)

// fixCutset holds the characters trimmed from both ends of each fix
// line: whitespace plus the bullet markers models like to emit.
const fixCutset = " -•\t\r"

// NormalizeFix coerces the model's recommended_fix payload into a flat
// list of non-empty steps. Lists are stringified and trimmed; a single
// string is split into lines with bullet markers stripped; when
// stripping consumes every line, the whole trimmed string is kept as
// the single step. Anything else is stringified into one element.
func NormalizeFix(value any) []string {
	switch v := value.(type) {
	case nil:
		return []string{}

	case []string:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s := strings.TrimSpace(item); s != "" {
				out = append(out, s)
			}
		}
		return out

	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				out = append(out, s)
			}
		}
		return out

	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return []string{}
		}
		var lines []string
		for _, line := range strings.Split(v, "\n") {
			if cleaned := strings.Trim(line, fixCutset); cleaned != "" {
				lines = append(lines, cleaned)
			}
		}
		if len(lines) == 0 {
			return []string{trimmed}
		}
		return lines

	default:
		return []string{fmt.Sprint(v)}
	}
}
