package database

import (
	"regexp"
	"strings"

	"github.com/techsoc/clubhub/core"
)

var identRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// orderBy renders an ORDER BY clause from the requested orderings, falling
// back to the given default. Field names that are not plain identifiers are
// dropped rather than interpolated.
func orderBy(def string, ord []core.DBOrdering) string {
	parts := make([]string, 0, len(ord))
	for _, o := range ord {
		if !identRegex.MatchString(o.Field) {
			continue
		}
		parts = append(parts, o.String())
	}
	if len(parts) == 0 {
		if def == "" {
			return ""
		}
		return " ORDER BY " + def
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}
