package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"
)

func TestShopYAMLMatchesShopDoc(t *testing.T) {
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(ShopYAML), &doc))

	want := ShopDoc("My Shop")
	assert.Equal(t, want["appName"], doc["appName"])
	assert.Equal(t, want["features"], doc["features"])
	assert.Len(t, doc["entities"], 1)
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()

	path := WriteFile(t, dir, "nested/app.yaml", ShopYAML)
	assert.Equal(t, filepath.Join(dir, "nested", "app.yaml"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ShopYAML, string(data))
}
