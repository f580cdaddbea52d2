package templates

import (
	"encoding/json"
	"strings"
	"text/template"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/appforge/cli/internal/appconfig"
)

// funcMap returns the functions available in every template.
func funcMap() template.FuncMap {
	return template.FuncMap{
		"jsonString": jsonString,
		"sqlIdent":   sqlIdent,
		"sqlString":  sqlString,
		"label":      label,
	}
}

// jsonString renders s as a JSON (and TypeScript) string literal.
func jsonString(s string) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// sqlIdent quotes s as an SQL identifier.
func sqlIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// sqlString quotes s as an SQL string literal.
func sqlString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// label turns an identifier into a human-readable title: "startsAt"
// becomes "Starts At".
func label(s string) string {
	// Casers are stateful; build one per call.
	caser := cases.Title(language.English, cases.NoLower)
	return caser.String(strings.Join(appconfig.Words(s), " "))
}

// lowerFirst lower-cases the first letter and keeps the rest.
func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

var tsTypes = map[appconfig.FieldType]string{
	appconfig.Text:      "string",
	appconfig.Integer:   "number",
	appconfig.Boolean:   "boolean",
	appconfig.Timestamp: "string",
}
