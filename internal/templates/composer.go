package templates

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"

	"github.com/appforge/cli/internal/appconfig"
	oerrors "github.com/appforge/cli/internal/errors"
	"github.com/appforge/cli/internal/output"
	"github.com/appforge/cli/internal/typemap"
)

// entityFile is one file generated for every entity.
type entityFile struct {
	template string
	// pattern receives the entity name.
	pattern string
	// kind prefixes the entry-point import alias; empty means not imported.
	kind string
	// importPattern is the entry-point specifier, relative to src/.
	importPattern string
}

var entityFiles = []entityFile{
	{template: "files/entity/schema.sql.tmpl", pattern: "db/schema/%s.sql"},
	{template: "files/entity/api.ts.tmpl", pattern: "src/api/%s.ts", kind: "api", importPattern: "./api/%s"},
	{template: "files/entity/ui.tsx.tmpl", pattern: "src/ui/%s.tsx", kind: "ui", importPattern: "./ui/%s"},
}

// rootFile is one project-level file rendered from TemplateData.
type rootFile struct {
	template string
	path     string
}

var (
	supportFiles = []rootFile{
		{template: "files/root/seed.sql.tmpl", path: "db/seed.sql"},
		{template: "files/root/db.ts.tmpl", path: "src/db.ts"},
		{template: "files/root/format.ts.tmpl", path: "src/format.ts"},
		{template: "files/root/main.ts.tmpl", path: "src/main.ts"},
	}
	projectFiles = []rootFile{
		{template: "files/root/package.json.tmpl", path: "package.json"},
		{template: "files/root/README.md.tmpl", path: "README.md"},
	}
)

// ManifestPath is the generated manifest's path.
const ManifestPath = "appforge.json"

// Manifest is the content of appforge.json.
type Manifest struct {
	Generator string   `json:"generator"`
	AppName   string   `json:"appName"`
	Owner     string   `json:"owner"`
	Entities  []string `json:"entities"`
	Features  []string `json:"features"`
	Modules   []string `json:"modules"`
}

// Composer expands an AppConfig into an ordered virtual file tree. It does
// no I/O and is safe for concurrent use.
type Composer struct {
	renderer *Renderer
}

// NewComposer creates a Composer over the embedded templates.
func NewComposer() (*Composer, error) {
	return newComposer(templateFS)
}

func newComposer(fsys fs.FS) (*Composer, error) {
	r, err := NewRenderer(fsys)
	if err != nil {
		return nil, err
	}

	required := []string{}
	for _, f := range entityFiles {
		required = append(required, f.template)
	}
	for _, f := range append(append([]rootFile(nil), supportFiles...), projectFiles...) {
		required = append(required, f.template)
	}
	for _, frags := range featureFragments {
		for _, f := range frags {
			required = append(required, f.Template)
		}
	}
	for _, name := range required {
		if !r.Has(name) {
			return nil, fmt.Errorf("template %s is missing", name)
		}
	}

	return &Composer{renderer: r}, nil
}

// Compose returns the files of the generated application: per-entity
// files (identity entity first), then feature fragments in feature order,
// then project-level files. Identical input yields identical output.
func (c *Composer) Compose(cfg *appconfig.AppConfig, owner appconfig.Owner) ([]VirtualFile, error) {
	data, err := BuildTemplateData(cfg, owner)
	if err != nil {
		return nil, err
	}

	t := newTree()

	for _, e := range data.Entities {
		view := EntityTemplateData{AppName: data.AppName, Entity: e}
		for _, f := range entityFiles {
			if err := c.renderInto(t, f.template, fmt.Sprintf(f.pattern, e.Name), view); err != nil {
				return nil, err
			}
		}
	}

	for _, feat := range data.Features {
		for _, frag := range feat.Fragments {
			if err := c.renderInto(t, frag.Template, frag.Path, data); err != nil {
				return nil, err
			}
		}
	}

	for _, f := range supportFiles {
		if err := c.renderInto(t, f.template, f.path, data); err != nil {
			return nil, err
		}
	}

	manifest, err := buildManifest(data)
	if err != nil {
		return nil, err
	}
	if err := t.add(ManifestPath, manifest); err != nil {
		return nil, err
	}

	for _, f := range projectFiles {
		if err := c.renderInto(t, f.template, f.path, data); err != nil {
			return nil, err
		}
	}

	output.Debug("composed file tree", "app", data.AppName, "files", len(t.files))

	return t.files, nil
}

func (c *Composer) renderInto(t *tree, name, path string, data any) error {
	content, err := c.renderer.Render(name, data)
	if err != nil {
		return err
	}
	return t.add(path, content)
}

// BuildTemplateData derives the template view of cfg. Unknown features
// are dropped here.
func BuildTemplateData(cfg *appconfig.AppConfig, owner appconfig.Owner) (*TemplateData, error) {
	if cfg == nil || len(cfg.Entities) == 0 || !cfg.Entities[0].Identity {
		return nil, oerrors.NewCompositionError("app config was not normalized: identity entity missing", "entities[0]")
	}

	data := &TemplateData{
		AppName: cfg.AppName,
		Slug:    appconfig.Slug(cfg.AppName),
		Owner:   owner,
	}

	for _, e := range cfg.Entities {
		ed, err := buildEntityData(e)
		if err != nil {
			return nil, err
		}
		data.Entities = append(data.Entities, ed)

		for _, f := range entityFiles {
			if f.kind == "" {
				continue
			}
			data.Modules = append(data.Modules, ModuleRef{
				Ident:  f.kind + "_" + e.Name,
				Import: fmt.Sprintf(f.importPattern, e.Name),
				Path:   fmt.Sprintf(f.pattern, e.Name),
			})
		}
	}
	data.Identity = data.Entities[0]

	for _, feat := range cfg.Features {
		frags, ok := Fragments(feat)
		if !ok {
			output.Debug("ignoring unknown feature", "feature", string(feat))
			continue
		}
		data.Features = append(data.Features, FeatureData{Name: feat, Fragments: frags})

		for _, frag := range frags {
			data.Modules = append(data.Modules, ModuleRef{
				Ident:  frag.Ident,
				Import: "./" + strings.TrimSuffix(strings.TrimSuffix(strings.TrimPrefix(frag.Path, "src/"), ".ts"), ".tsx"),
				Path:   frag.Path,
			})
		}
	}

	return data, nil
}

func buildEntityData(e appconfig.Entity) (EntityData, error) {
	ed := EntityData{
		Name:     e.Name,
		Var:      lowerFirst(e.Name),
		Plural:   appconfig.Plural(e.Name),
		Route:    appconfig.RouteName(e.Name),
		Table:    appconfig.TableName(e.Name),
		Identity: e.Identity,
	}

	for _, f := range e.Fields {
		m, err := typemap.For(f.Type)
		if err != nil {
			return EntityData{}, oerrors.NewCompositionError(err.Error(), e.Name+"."+f.Name)
		}
		ed.Fields = append(ed.Fields, FieldData{
			Name:     f.Name,
			Type:     f.Type,
			Optional: f.Optional,
			Storage:  m.Storage,
			Form:     m.Form,
			Display:  m.Display,
			TSType:   tsTypes[f.Type],
		})
	}

	return ed, nil
}

func buildManifest(data *TemplateData) ([]byte, error) {
	m := Manifest{
		Generator: "appforge",
		AppName:   data.AppName,
		Owner:     data.Owner.Email,
		Entities:  make([]string, 0, len(data.Entities)),
		Features:  make([]string, 0, len(data.Features)),
		Modules:   make([]string, 0, len(data.Modules)),
	}
	for _, e := range data.Entities {
		m.Entities = append(m.Entities, e.Name)
	}
	for _, f := range data.Features {
		m.Features = append(m.Features, string(f.Name))
	}
	for _, mod := range data.Modules {
		m.Modules = append(m.Modules, mod.Path)
	}

	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, oerrors.NewCompositionError(fmt.Sprintf("encoding manifest: %v", err), ManifestPath)
	}
	return append(b, '\n'), nil
}
