package templates

import (
	"bytes"
	"fmt"
	"io/fs"
	"strings"
	"text/template"

	oerrors "github.com/appforge/cli/internal/errors"
)

// Renderer executes pre-parsed templates in strict mode. It is safe for
// concurrent use once constructed.
type Renderer struct {
	templates map[string]*template.Template
}

// NewRenderer parses every *.tmpl file in fsys. Template names are the
// file paths within fsys.
func NewRenderer(fsys fs.FS) (*Renderer, error) {
	r := &Renderer{templates: make(map[string]*template.Template)}

	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".tmpl") {
			return nil
		}

		content, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		tmpl, err := template.New(path).
			Funcs(funcMap()).
			Option("missingkey=error").
			Parse(string(content))
		if err != nil {
			return fmt.Errorf("parsing template %s: %w", path, err)
		}

		r.templates[path] = tmpl
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	return r, nil
}

// Has reports whether a template with the given name was loaded.
func (r *Renderer) Has(name string) bool {
	_, ok := r.templates[name]
	return ok
}

// Render executes the named template with data. Failures are composition
// errors: templates and their data are both produced by this package.
func (r *Renderer) Render(name string, data any) ([]byte, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return nil, oerrors.NewCompositionError(fmt.Sprintf("template %q not found", name), name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, oerrors.NewCompositionError(fmt.Sprintf("executing template: %v", err), name)
	}

	return buf.Bytes(), nil
}
