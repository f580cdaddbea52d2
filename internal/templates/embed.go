// Package templates composes the virtual file tree of a generated
// application from embedded text/template sources.
package templates

import "embed"

// templateFS holds every template under files/. Paths inside it are the
// template names used by the Composer, e.g. "files/entity/api.ts.tmpl".
//
//go:embed files
var templateFS embed.FS
