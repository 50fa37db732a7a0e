package domain

import (
	"regexp"
	"strings"
)

var fieldToken = regexp.MustCompile(`\{field:([^{}]+)\}`)

// ResolveTemplate expands the path template tokens {postname}, {slug},
// {sku} and {field:<key>} against the entity's slug and attribute bag,
// then normalizes the result. Absent attributes resolve to empty segments
// rather than failing; callers must validate non-emptiness before
// persisting.
func ResolveTemplate(entity Entity, template string) string {
	out := strings.ReplaceAll(template, "{postname}", entity.Slug)
	out = strings.ReplaceAll(out, "{slug}", entity.Slug)
	out = strings.ReplaceAll(out, "{sku}", Slugify(entity.Attributes["sku"]))
	out = fieldToken.ReplaceAllStringFunc(out, func(token string) string {
		key := fieldToken.FindStringSubmatch(token)[1]
		return Slugify(entity.Attributes[key])
	})
	return NormalizePath(out)
}
