// Package testutil provides fixtures and helpers shared by appforge tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// ShopYAML is a minimal valid app config file: one entity and one
// feature.
const ShopYAML = `appName: My Shop
features: [Payments]
entities:
  - name: Product
    fields:
      - name: price
        type: Integer
`

// ShopDoc returns the raw document form of ShopYAML named appName.
func ShopDoc(appName string) map[string]any {
	return map[string]any{
		"appName":  appName,
		"features": []any{"Payments"},
		"entities": []any{
			map[string]any{
				"name": "Product",
				"fields": []any{
					map[string]any{"name": "price", "type": "Integer", "optional": false},
				},
			},
		},
	}
}

// WriteFile creates a file with the given content in the specified directory.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create parent dirs for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
	return path
}
