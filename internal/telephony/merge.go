package telephony

import "strings"

// Merge interpolates template merge fields against a data map.
//
// Both {{field}} and {field} spellings are supported (legacy templates use
// the single-brace form). Unresolved placeholders are left verbatim, never
// blanked: a template author should see the miss, not silently lose text.
func Merge(template string, data map[string]string) string {
	if template == "" || len(data) == 0 {
		return template
	}

	var b strings.Builder
	b.Grow(len(template))

	i := 0
	for i < len(template) {
		if template[i] != '{' {
			b.WriteByte(template[i])
			i++
			continue
		}

		double := i+1 < len(template) && template[i+1] == '{'
		start := i + 1
		if double {
			start = i + 2
		}

		end := -1
		for j := start; j < len(template); j++ {
			c := template[j]
			if c == '}' {
				end = j
				break
			}
			// Placeholders never span braces or newlines.
			if c == '{' || c == '\n' {
				break
			}
		}
		if end == -1 {
			b.WriteByte(template[i])
			i++
			continue
		}

		if double {
			// {{field}} needs the closing pair.
			if end+1 >= len(template) || template[end+1] != '}' {
				b.WriteByte(template[i])
				i++
				continue
			}
		}

		field := strings.TrimSpace(template[start:end])
		val, ok := data[field]
		if !ok {
			b.WriteByte(template[i])
			i++
			continue
		}

		b.WriteString(val)
		if double {
			i = end + 2
		} else {
			i = end + 1
		}
	}
	return b.String()
}
