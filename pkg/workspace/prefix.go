package workspace

import "strings"

// maxPrefixLen bounds generated and user-supplied project prefixes.
const maxPrefixLen = 20

// ValidPrefix reports whether s is a legal project prefix: 1-20 uppercase
// alphanumerics plus - and _.
func ValidPrefix(s string) bool {
	if len(s) == 0 || len(s) > maxPrefixLen {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

// GeneratePrefix derives a project prefix from a free-form project name.
// Short names (<= 4 chars) are uppercased as-is; multi-token names take the
// first letter of up to four tokens; otherwise the first four characters are
// used. A leading dot is always stripped first.
func GeneratePrefix(name string) string {
	name = strings.TrimPrefix(name, ".")
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	if len(name) <= 4 {
		return sanitizePrefix(strings.ToUpper(name))
	}

	tokens := strings.FieldsFunc(name, func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	})
	if len(tokens) > 1 {
		var b strings.Builder
		for i, token := range tokens {
			if i == 4 {
				break
			}
			b.WriteByte(token[0])
		}
		return sanitizePrefix(strings.ToUpper(b.String()))
	}

	return sanitizePrefix(strings.ToUpper(name[:4]))
}

// sanitizePrefix drops any character the prefix grammar does not allow.
func sanitizePrefix(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) > maxPrefixLen {
		out = out[:maxPrefixLen]
	}
	return out
}
