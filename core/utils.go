package core

import "strings"

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// ParseEmailList splits a free-text block of email addresses on commas and
// newlines, trims each token and drops anything that does not look like an
// address. Order is preserved; duplicates are not removed here.
func ParseEmailList(block string) []string {
	if block == "" {
		return nil
	}
	split := strings.FieldsFunc(block, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})
	emails := make([]string, 0, len(split))
	for _, tok := range split {
		tok = CleanString(tok)
		if tok == "" || !strings.Contains(tok, "@") {
			continue
		}
		emails = append(emails, tok)
	}
	return emails
}
