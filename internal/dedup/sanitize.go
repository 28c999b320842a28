package dedup

import "strings"

// sanitizeKey reduces free text to the canonical token set used for
// prefixes, groups and job names: lowercase ascii letters, digits,
// underscore, dash and dot. Anything else becomes an underscore.
func sanitizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z',
			r >= '0' && r <= '9',
			r == '_', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
