package appconfig

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	oerrors "github.com/appforge/cli/internal/errors"
)

//go:embed schema.cue
var schemaSource []byte

// schemaGate checks the shape and primitive types of an input document
// against the embedded #AppConfig definition.
type schemaGate struct {
	// cue.Context is not safe for concurrent use.
	mu     sync.Mutex
	ctx    *cue.Context
	schema cue.Value
}

func newSchemaGate() (*schemaGate, error) {
	ctx := cuecontext.New()

	v := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if v.Err() != nil {
		return nil, fmt.Errorf("compiling schema: %w", v.Err())
	}

	def := v.LookupPath(cue.ParsePath("#AppConfig"))
	if !def.Exists() {
		return nil, fmt.Errorf("schema has no #AppConfig definition")
	}

	return &schemaGate{ctx: ctx, schema: def}, nil
}

// check returns a validation error for the first schema violation in doc.
func (g *schemaGate) check(doc map[string]any) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	data := g.ctx.Encode(doc)
	if data.Err() != nil {
		return oerrors.NewValidationError(
			"config is not a valid document: "+data.Err().Error(), "", "", "")
	}

	err := g.schema.Unify(data).Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return oerrors.NewValidationError(err.Error(), "", "", "")
	}

	first := errs[0]
	format, args := first.Msg()
	return oerrors.NewValidationError(
		fmt.Sprintf(format, args...),
		formatCUEPath(first.Path()),
		"",
		"Expected shape: {appName: string, features: [string], entities: [{name: string, fields: [{name, type, optional?}]}]}",
	)
}

// formatCUEPath renders ["entities", "0", "name"] as "entities[0].name".
func formatCUEPath(path []string) string {
	var b strings.Builder
	for _, p := range path {
		if strings.HasPrefix(p, "#") {
			continue
		}
		if p != "" && p[0] >= '0' && p[0] <= '9' {
			b.WriteString("[" + p + "]")
			continue
		}
		if b.Len() > 0 {
			b.WriteString(".")
		}
		b.WriteString(p)
	}
	return b.String()
}
