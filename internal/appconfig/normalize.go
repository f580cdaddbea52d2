package appconfig

import (
	"fmt"
	"regexp"
	"strings"

	oerrors "github.com/appforge/cli/internal/errors"
	"github.com/appforge/cli/internal/output"
)

// IdentityEntityName is the name of the canonical identity entity.
const IdentityEntityName = "User"

// reservedFieldName is the implicit identity field every entity receives.
const reservedFieldName = "id"

var identifierRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// IdentityEntity returns a fresh copy of the canonical identity entity.
func IdentityEntity() Entity {
	return Entity{
		Name:     IdentityEntityName,
		Identity: true,
		Fields: []Field{
			{Name: "email", Type: Text},
			{Name: "name", Type: Text, Optional: true},
		},
	}
}

// Normalizer validates loose input documents and produces AppConfigs.
// It never touches storage or the filesystem, and is safe for concurrent use.
type Normalizer struct {
	policy IdentityPolicy
	gate   *schemaGate
}

// NewNormalizer creates a Normalizer applying the given identity policy.
// An empty policy means PolicyMerge.
func NewNormalizer(policy IdentityPolicy) (*Normalizer, error) {
	if policy == "" {
		policy = PolicyMerge
	}
	if _, ok := ParseIdentityPolicy(string(policy)); !ok {
		return nil, fmt.Errorf("unknown identity policy %q", policy)
	}

	gate, err := newSchemaGate()
	if err != nil {
		return nil, err
	}

	return &Normalizer{policy: policy, gate: gate}, nil
}

// Policy returns the identity policy in effect.
func (n *Normalizer) Policy() IdentityPolicy {
	return n.policy
}

// Normalize validates doc and returns the canonical AppConfig with the
// identity entity at index 0.
func (n *Normalizer) Normalize(doc map[string]any) (*AppConfig, error) {
	if doc == nil {
		return nil, oerrors.NewValidationError("config is empty", "", "", "Provide appName and at least one entity")
	}

	if err := n.gate.check(doc); err != nil {
		return nil, err
	}

	cfg := &AppConfig{}

	appName, _ := doc["appName"].(string)
	cfg.AppName = strings.TrimSpace(appName)
	if cfg.AppName == "" {
		return nil, oerrors.NewValidationError("app name is missing", "appName", "appName", "Set appName to a non-empty string")
	}

	features, err := normalizeFeatures(doc["features"])
	if err != nil {
		return nil, err
	}
	cfg.Features = features

	entities, err := normalizeEntities(doc["entities"])
	if err != nil {
		return nil, err
	}

	cfg.Entities, err = n.injectIdentity(entities)
	if err != nil {
		return nil, err
	}

	output.Debug("normalized app config",
		"app", cfg.AppName,
		"entities", len(cfg.Entities),
		"features", len(cfg.Features),
	)

	return cfg, nil
}

// normalizeFeatures trims tags and collapses duplicates to their first
// occurrence, preserving order.
func normalizeFeatures(raw any) ([]Feature, error) {
	list, _ := raw.([]any)
	features := make([]Feature, 0, len(list))
	seen := make(map[Feature]bool, len(list))

	for i, item := range list {
		s, _ := item.(string)
		tag := Feature(strings.TrimSpace(s))
		if tag == "" {
			return nil, oerrors.NewValidationError("feature tag is empty",
				fmt.Sprintf("features[%d]", i), "features", "")
		}
		if seen[tag] {
			continue
		}
		seen[tag] = true
		features = append(features, tag)
	}

	return features, nil
}

func normalizeEntities(raw any) ([]Entity, error) {
	list, _ := raw.([]any)
	if len(list) == 0 {
		return nil, oerrors.NewValidationError("entity list is empty", "entities", "entities",
			"Declare at least one entity")
	}

	entities := make([]Entity, 0, len(list))
	seen := make(map[string]int, len(list))
	tables := make(map[string]int, len(list))
	routes := make(map[string]int, len(list))

	for i, item := range list {
		obj, _ := item.(map[string]any)
		loc := fmt.Sprintf("entities[%d]", i)

		name, _ := obj["name"].(string)
		name = strings.TrimSpace(name)
		if err := checkIdentifier(name, loc+".name", "entity"); err != nil {
			return nil, err
		}

		if prev, dup := seen[name]; dup {
			return nil, &oerrors.DetailError{
				Type:     "validation failed",
				Message:  fmt.Sprintf("duplicate entity name %q", name),
				Location: loc + ".name",
				Field:    "name",
				Context:  map[string]string{"First declared at": fmt.Sprintf("entities[%d]", prev)},
				Cause:    oerrors.ErrValidation,
			}
		}
		seen[name] = i

		// Distinct names may still generate the same table or route,
		// e.g. "BlogPost" and "Blog_post".
		for _, gen := range []struct {
			what  string
			value string
			index map[string]int
		}{
			{"table", TableName(name), tables},
			{"route", "/api/" + RouteName(name), routes},
		} {
			if prev, clash := gen.index[gen.value]; clash {
				return nil, &oerrors.DetailError{
					Type:     "validation failed",
					Message:  fmt.Sprintf("entity %q generates the same %s %q as %q", name, gen.what, gen.value, entities[prev].Name),
					Location: loc + ".name",
					Field:    "name",
					Context:  map[string]string{"First declared at": fmt.Sprintf("entities[%d]", prev)},
					Hint:     "Rename one of the entities",
					Cause:    oerrors.ErrValidation,
				}
			}
			gen.index[gen.value] = i
		}

		fields, err := normalizeFields(obj["fields"], loc)
		if err != nil {
			return nil, err
		}

		entities = append(entities, Entity{Name: name, Fields: fields})
	}

	return entities, nil
}

func normalizeFields(raw any, entityLoc string) ([]Field, error) {
	list, _ := raw.([]any)
	fields := make([]Field, 0, len(list))
	seen := make(map[string]bool, len(list))

	for i, item := range list {
		obj, _ := item.(map[string]any)
		loc := fmt.Sprintf("%s.fields[%d]", entityLoc, i)

		name, _ := obj["name"].(string)
		name = strings.TrimSpace(name)
		if err := checkIdentifier(name, loc+".name", "field"); err != nil {
			return nil, err
		}
		if strings.EqualFold(name, reservedFieldName) {
			return nil, oerrors.NewValidationError(
				fmt.Sprintf("field name %q is reserved for the generated identity field", name),
				loc+".name", "name", "Remove the field; every entity gets an id automatically")
		}
		if seen[name] {
			return nil, oerrors.NewValidationError(
				fmt.Sprintf("duplicate field name %q", name), loc+".name", "name", "")
		}
		seen[name] = true

		rawType, _ := obj["type"].(string)
		ft, ok := ParseFieldType(rawType)
		if !ok {
			return nil, oerrors.NewValidationError(
				fmt.Sprintf("unknown field type %q", rawType), loc+".type", "type",
				"Use one of Text, Integer, Boolean, Timestamp")
		}

		optional, _ := obj["optional"].(bool)

		fields = append(fields, Field{Name: name, Type: ft, Optional: optional})
	}

	return fields, nil
}

func checkIdentifier(name, loc, what string) error {
	if name == "" {
		return oerrors.NewValidationError(what+" name is missing", loc, "name", "")
	}
	if !identifierRegex.MatchString(name) {
		return oerrors.NewValidationError(
			fmt.Sprintf("%s name %q is not an identifier", what, name), loc, "name",
			"Start with a letter and use only letters, digits and underscores")
	}
	return nil
}

// injectIdentity places the canonical identity entity at index 0 and
// applies the identity policy to any declared entity of the same name.
func (n *Normalizer) injectIdentity(declared []Entity) ([]Entity, error) {
	identity := IdentityEntity()
	out := make([]Entity, 0, len(declared)+1)
	out = append(out, identity)

	for i, e := range declared {
		if !strings.EqualFold(e.Name, IdentityEntityName) {
			out = append(out, e)
			continue
		}

		loc := fmt.Sprintf("entities[%d].name", i)
		if n.policy == PolicyReject {
			return nil, oerrors.NewValidationError(
				fmt.Sprintf("entity %q duplicates the built-in identity entity", e.Name),
				loc, "name", "Rename the entity or set identity.policy to merge")
		}

		merged, err := mergeIdentityFields(out[0].Fields, e.Fields, i)
		if err != nil {
			return nil, err
		}
		out[0].Fields = merged

		output.Warn("merged declared entity into identity entity",
			"entity", e.Name, "location", loc, "fields", len(e.Fields))
	}

	return out, nil
}

func mergeIdentityFields(canonical, extra []Field, entityIndex int) ([]Field, error) {
	merged := append([]Field(nil), canonical...)
	byName := make(map[string]Field, len(canonical))
	for _, f := range canonical {
		byName[f.Name] = f
	}

	for j, f := range extra {
		if have, ok := byName[f.Name]; ok {
			if have.Type != f.Type {
				return nil, oerrors.NewValidationError(
					fmt.Sprintf("field %q has type %s but the identity entity declares %s", f.Name, f.Type, have.Type),
					fmt.Sprintf("entities[%d].fields[%d].type", entityIndex, j), "type", "")
			}
			continue
		}
		// The seeded owner row only sets the canonical fields, so extra
		// identity fields cannot be NOT NULL.
		if !f.Optional {
			return nil, oerrors.NewValidationError(
				fmt.Sprintf("field %q added to the identity entity must be optional", f.Name),
				fmt.Sprintf("entities[%d].fields[%d].optional", entityIndex, j), "optional",
				"Set optional: true on the field")
		}
		merged = append(merged, f)
	}

	return merged, nil
}
