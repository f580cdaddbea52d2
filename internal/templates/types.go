package templates

import "github.com/appforge/cli/internal/appconfig"

// VirtualFile is one generated file held in memory until materialization.
type VirtualFile struct {
	// Path is slash-separated and relative to the project root.
	Path string

	Content []byte
}

// FieldData is the template view of one field.
type FieldData struct {
	Name     string
	Type     appconfig.FieldType
	Optional bool

	// Storage, Form and Display come from the type mapper.
	Storage string
	Form    string
	Display string

	// TSType is the TypeScript type of the field.
	TSType string
}

// EntityData is the template view of one entity.
type EntityData struct {
	// Name is the declared entity name, also used in file paths.
	Name string

	// Var is Name with a lower-case first letter.
	Var string

	// Plural is the pluralized Name, e.g. "Categories".
	Plural string

	// Route is the kebab-case plural used in URLs, e.g. "blog-posts".
	Route string

	// Table is the snake-case name, e.g. "blog_post".
	Table string

	Identity bool
	Fields   []FieldData
}

// FeatureData is the template view of one enabled, known feature.
type FeatureData struct {
	Name      appconfig.Feature
	Fragments []Fragment
}

// ModuleRef is one module imported by the generated entry point.
type ModuleRef struct {
	// Ident is the import alias in src/main.ts.
	Ident string

	// Import is the specifier relative to src/, e.g. "./api/Product".
	Import string

	// Path is the generated file path.
	Path string
}

// TemplateData is the data every project-level template receives.
type TemplateData struct {
	AppName string
	Slug    string
	Owner   appconfig.Owner

	// Identity is the canonical identity entity; it is also Entities[0].
	Identity EntityData

	Entities []EntityData
	Features []FeatureData

	// Modules lists entity and feature modules in generation order.
	Modules []ModuleRef
}

// EntityTemplateData is the data per-entity templates receive.
type EntityTemplateData struct {
	AppName string
	Entity  EntityData
}
