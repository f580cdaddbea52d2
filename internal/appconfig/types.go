// Package appconfig turns a loosely typed app description into the
// canonical, closed AppConfig every later generation stage consumes.
package appconfig

import "strings"

// FieldType is the closed set of field types an entity may declare.
type FieldType string

const (
	Text      FieldType = "Text"
	Integer   FieldType = "Integer"
	Boolean   FieldType = "Boolean"
	Timestamp FieldType = "Timestamp"
)

// fieldTypeAliases maps lower-cased input spellings to their canonical type.
var fieldTypeAliases = map[string]FieldType{
	"text":      Text,
	"string":    Text,
	"integer":   Integer,
	"int":       Integer,
	"boolean":   Boolean,
	"bool":      Boolean,
	"timestamp": Timestamp,
	"datetime":  Timestamp,
}

// FieldTypes returns every FieldType in declaration order.
func FieldTypes() []FieldType {
	return []FieldType{Text, Integer, Boolean, Timestamp}
}

// ParseFieldType resolves an input spelling, case-insensitively, to a
// FieldType. The second result is false for anything outside the set.
func ParseFieldType(s string) (FieldType, bool) {
	t, ok := fieldTypeAliases[strings.ToLower(strings.TrimSpace(s))]
	return t, ok
}

// Feature is an optional capability tag such as "Payments".
type Feature string

// Known feature tags. Other tags are accepted by the normalizer and
// ignored during composition.
const (
	FeatureAuthentication Feature = "Authentication"
	FeaturePayments       Feature = "Payments"
	FeatureFileStorage    Feature = "File Storage"
	FeatureAdminPanel     Feature = "Admin Panel"
	FeatureAIChat         Feature = "AI Chat"
)

// Field is one typed attribute of an entity.
type Field struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Optional bool      `json:"optional,omitempty"`
}

// Entity is one data-model unit. Generated output always gives it a
// leading "id" field that is not listed in Fields.
type Entity struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`

	// Identity marks the canonical identity entity injected by Normalize.
	Identity bool `json:"identity,omitempty"`
}

// AppConfig is the validated description of the application to generate.
type AppConfig struct {
	AppName  string    `json:"appName"`
	Features []Feature `json:"features"`
	Entities []Entity  `json:"entities"`
}

// HasFeature reports whether f is enabled.
func (c *AppConfig) HasFeature(f Feature) bool {
	for _, have := range c.Features {
		if have == f {
			return true
		}
	}
	return false
}

// Document returns the loose input form of c. Normalizing it under the
// merge policy yields c again. The identity entity is only listed when it
// carries fields beyond the canonical ones or is the sole entity.
func (c *AppConfig) Document() map[string]any {
	features := make([]any, len(c.Features))
	for i, f := range c.Features {
		features[i] = string(f)
	}

	canonical := len(IdentityEntity().Fields)
	entities := make([]any, 0, len(c.Entities))
	for _, e := range c.Entities {
		if e.Identity && len(e.Fields) <= canonical && len(c.Entities) > 1 {
			continue
		}

		fields := make([]any, len(e.Fields))
		for i, f := range e.Fields {
			fields[i] = map[string]any{"name": f.Name, "type": string(f.Type), "optional": f.Optional}
		}
		entities = append(entities, map[string]any{"name": e.Name, "fields": fields})
	}

	return map[string]any{
		"appName":  c.AppName,
		"features": features,
		"entities": entities,
	}
}

// Owner is the operator who owns the generated application's data. It is
// passed explicitly with every generation request.
type Owner struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// IdentityPolicy decides what Normalize does when the input already
// declares the identity entity.
type IdentityPolicy string

const (
	// PolicyMerge folds a declared identity entity into the canonical one.
	PolicyMerge IdentityPolicy = "merge"

	// PolicyReject treats a declared identity entity as a validation error.
	PolicyReject IdentityPolicy = "reject"
)

// ParseIdentityPolicy parses a policy name. Empty means PolicyMerge.
func ParseIdentityPolicy(s string) (IdentityPolicy, bool) {
	switch IdentityPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyMerge:
		return PolicyMerge, true
	case PolicyReject:
		return PolicyReject, true
	default:
		return "", false
	}
}
