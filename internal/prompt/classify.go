// Package prompt turns a free-text app description into an app config
// document using keyword rules. The result is a loose document and goes
// through the normalizer like any other input.
package prompt

import (
	"strings"
	"unicode"

	"github.com/appforge/cli/internal/appconfig"
)

// keywords matches whole words. A trailing '*' matches any word with that
// prefix, so "pay*" matches "payments" but "ai" does not match "email".
type keywords []string

func (k keywords) match(words []string) bool {
	for _, kw := range k {
		stem, prefix := strings.CutSuffix(kw, "*")
		for _, w := range words {
			if w == stem || (prefix && strings.HasPrefix(w, stem)) {
				return true
			}
		}
	}
	return false
}

type field struct {
	name     string
	typ      appconfig.FieldType
	optional bool
}

type entity struct {
	name   string
	fields []field
}

// archetype is one canned kind of app. The first archetype whose keywords
// match names the app and supplies its entities.
type archetype struct {
	appName  string
	keywords keywords
	entities []entity
}

var archetypes = []archetype{
	{
		appName:  "My Shop",
		keywords: keywords{"shop*", "store*", "commerce", "ecommerce", "e-commerce"},
		entities: []entity{
			{name: "Product", fields: []field{
				{"name", appconfig.Text, false},
				{"price", appconfig.Integer, false},
				{"description", appconfig.Text, true},
				{"stock", appconfig.Integer, false},
			}},
			{name: "Order", fields: []field{
				{"total", appconfig.Integer, false},
				{"status", appconfig.Text, false},
				{"customerEmail", appconfig.Text, true},
			}},
		},
	},
	{
		appName:  "My Blog",
		keywords: keywords{"blog*", "news*"},
		entities: []entity{
			{name: "Post", fields: []field{
				{"title", appconfig.Text, false},
				{"content", appconfig.Text, false},
				{"published", appconfig.Boolean, false},
			}},
			{name: "Comment", fields: []field{
				{"text", appconfig.Text, false},
				{"author", appconfig.Text, true},
			}},
		},
	},
	{
		appName:  "Task Manager",
		keywords: keywords{"task*", "todo*", "to-do*"},
		entities: []entity{
			{name: "Task", fields: []field{
				{"title", appconfig.Text, false},
				{"done", appconfig.Boolean, false},
				{"dueDate", appconfig.Timestamp, true},
			}},
			{name: "Project", fields: []field{
				{"name", appconfig.Text, false},
				{"description", appconfig.Text, true},
			}},
		},
	},
}

// generic is used when no archetype matches.
var generic = archetype{
	appName: "My App",
	entities: []entity{
		{name: "Item", fields: []field{{"name", appconfig.Text, false}}},
	},
}

// namesOnly rename the app without bringing entities of their own.
var namesOnly = []archetype{
	{appName: "Task Manager", keywords: keywords{"project*"}},
	{appName: "My CRM", keywords: keywords{"crm"}},
}

var featureRules = []struct {
	feature  appconfig.Feature
	keywords keywords
}{
	{appconfig.FeaturePayments, keywords{"pay*", "buy*", "money", "checkout*", "subscription*"}},
	{appconfig.FeatureFileStorage, keywords{"image*", "file*", "upload*", "photo*"}},
	{appconfig.FeatureAdminPanel, keywords{"admin*", "dashboard*"}},
	{appconfig.FeatureAIChat, keywords{"chat*", "ai", "chatbot*", "assistant*"}},
}

// Classify derives an app config document from text. Authentication is
// always enabled. The identity entity is left to the normalizer.
func Classify(text string) map[string]any {
	words := tokenize(text)

	chosen := generic
	for _, a := range archetypes {
		if a.keywords.match(words) {
			chosen = a
			break
		}
	}

	appName := chosen.appName
	if chosen.appName == generic.appName {
		for _, a := range namesOnly {
			if a.keywords.match(words) {
				appName = a.appName
				break
			}
		}
	}

	features := []any{string(appconfig.FeatureAuthentication)}
	for _, r := range featureRules {
		if r.keywords.match(words) {
			features = append(features, string(r.feature))
		}
	}

	entities := make([]any, 0, len(chosen.entities))
	for _, e := range chosen.entities {
		fields := make([]any, 0, len(e.fields))
		for _, f := range e.fields {
			fields = append(fields, map[string]any{
				"name":     f.name,
				"type":     string(f.typ),
				"optional": f.optional,
			})
		}
		entities = append(entities, map[string]any{"name": e.name, "fields": fields})
	}

	return map[string]any{
		"appName":  appName,
		"features": features,
		"entities": entities,
	}
}

// tokenize lower-cases text and splits it into words. Hyphens stay inside
// words so "e-commerce" is one token.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
}
