package appconfig

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	oerrors "github.com/appforge/cli/internal/errors"
)

// Decode parses a YAML or JSON document into the loose form Normalize
// accepts.
func Decode(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, oerrors.NewValidationError(
			fmt.Sprintf("config is not valid YAML or JSON: %v", err), "", "", "")
	}
	if doc == nil {
		return nil, oerrors.NewValidationError("config is empty", "", "", "Provide appName and at least one entity")
	}
	return doc, nil
}

// Load reads and decodes the app config file at path.
func Load(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading app config %s: %w", path, err)
	}

	doc, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}
