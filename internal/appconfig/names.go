package appconfig

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Words splits an identifier on case changes, digit runs and underscores.
// "startsAt" yields ["starts", "At"]; "blog_post" yields ["blog", "post"].
func Words(s string) []string {
	var out []string
	var cur []rune
	runes := []rune(s)

	flush := func() {
		if len(cur) > 0 {
			out = append(out, string(cur))
			cur = cur[:0]
		}
	}

	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || unicode.IsSpace(r):
			flush()
			continue
		case unicode.IsUpper(r) && i > 0:
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()

	return out
}

func joinLower(s, sep string) string {
	caser := cases.Lower(language.Und)
	return caser.String(strings.Join(Words(s), sep))
}

// SnakeCase converts "BlogPost" to "blog_post".
func SnakeCase(s string) string { return joinLower(s, "_") }

// KebabCase converts "BlogPost" to "blog-post".
func KebabCase(s string) string { return joinLower(s, "-") }

// Plural applies English pluralization rules good enough for entity labels.
func Plural(s string) string {
	lower := strings.ToLower(s)
	switch {
	case len(lower) > 1 && strings.HasSuffix(lower, "y") && !strings.ContainsRune("aeiou", rune(lower[len(lower)-2])):
		return s[:len(s)-1] + "ies"
	case strings.HasSuffix(lower, "s"), strings.HasSuffix(lower, "x"), strings.HasSuffix(lower, "z"),
		strings.HasSuffix(lower, "ch"), strings.HasSuffix(lower, "sh"):
		return s + "es"
	default:
		return s + "s"
	}
}

// TableName is the SQL table generated for an entity.
func TableName(entity string) string {
	return SnakeCase(entity)
}

// RouteName is the API path segment generated for an entity.
func RouteName(entity string) string {
	return KebabCase(Plural(entity))
}
