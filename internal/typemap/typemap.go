// Package typemap translates field types into the representations each
// generated layer needs: a storage column type, a form control and a
// display formatter.
package typemap

import (
	"fmt"

	"github.com/appforge/cli/internal/appconfig"
	oerrors "github.com/appforge/cli/internal/errors"
)

// Mapping holds the per-layer tags for one field type.
type Mapping struct {
	// Storage is the SQL column type.
	Storage string

	// Form is the HTML input type used by edit forms.
	Form string

	// Display names the formatter used by read-only views.
	Display string
}

var mappings = map[appconfig.FieldType]Mapping{
	appconfig.Text:      {Storage: "TEXT", Form: "text", Display: "plain"},
	appconfig.Integer:   {Storage: "INTEGER", Form: "number", Display: "number"},
	appconfig.Boolean:   {Storage: "BOOLEAN", Form: "checkbox", Display: "yesNo"},
	appconfig.Timestamp: {Storage: "TIMESTAMP", Form: "datetime-local", Display: "datetime"},
}

// Types returns the field types this package maps.
func Types() []appconfig.FieldType {
	return appconfig.FieldTypes()
}

// For returns the mapping for t. An unmapped type means a value bypassed
// the normalizer; the error wraps ErrComposition.
func For(t appconfig.FieldType) (Mapping, error) {
	m, ok := mappings[t]
	if !ok {
		return Mapping{}, fmt.Errorf("no type mapping for field type %q: %w", t, oerrors.ErrComposition)
	}
	return m, nil
}

// MustFor is like For but panics on an unmapped type.
func MustFor(t appconfig.FieldType) Mapping {
	m, err := For(t)
	if err != nil {
		panic(err)
	}
	return m
}
