package templates

import (
	"fmt"
	"path"
	"strings"

	oerrors "github.com/appforge/cli/internal/errors"
)

// ValidatePath checks that p is a clean, relative, slash-separated path
// that stays inside the project root.
func ValidatePath(p string) error {
	switch {
	case p == "":
		return oerrors.NewCompositionError("empty file path", p)
	case strings.HasPrefix(p, "/"):
		return oerrors.NewCompositionError("file path must be relative", p)
	case strings.Contains(p, `\`):
		return oerrors.NewCompositionError("file path must use forward slashes", p)
	case path.Clean(p) != p:
		return oerrors.NewCompositionError("file path is not clean", p)
	}

	for _, seg := range strings.Split(p, "/") {
		if seg == ".." || seg == "." {
			return oerrors.NewCompositionError(fmt.Sprintf("file path contains %q segment", seg), p)
		}
	}

	return nil
}

// tree accumulates virtual files in emission order and rejects invalid or
// duplicate paths.
type tree struct {
	files []VirtualFile
	seen  map[string]bool
}

func newTree() *tree {
	return &tree{seen: make(map[string]bool)}
}

func (t *tree) add(p string, content []byte) error {
	if err := ValidatePath(p); err != nil {
		return err
	}
	if t.seen[p] {
		return oerrors.NewCompositionError("duplicate file path", p)
	}
	t.seen[p] = true
	t.files = append(t.files, VirtualFile{Path: p, Content: content})
	return nil
}
