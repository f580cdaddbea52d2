package cmdutil

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gonvenience/ytbx"
	"github.com/homeport/dyff/pkg/dyff"

	"github.com/appforge/cli/internal/templates"
	"github.com/appforge/cli/internal/workspace"
)

// ReadManifest returns the manifest of the project's current tree, or nil
// when the project has not been generated yet.
func ReadManifest(m *workspace.Materializer, projectID string) ([]byte, error) {
	dir, err := m.Dir(projectID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, templates.ManifestPath))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

// ManifestDiff renders the differences between two manifests. It returns
// an empty string when they are equal.
func ManifestDiff(before, after []byte, useColor bool) (string, error) {
	from, err := parseManifest("previous", before)
	if err != nil {
		return "", fmt.Errorf("parsing previous manifest: %w", err)
	}
	to, err := parseManifest("generated", after)
	if err != nil {
		return "", fmt.Errorf("parsing generated manifest: %w", err)
	}

	report, err := dyff.CompareInputFiles(from, to)
	if err != nil {
		return "", fmt.Errorf("comparing manifests: %w", err)
	}
	if len(report.Diffs) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	w := &dyff.HumanReport{
		Report:            report,
		DoNotInspectCerts: true,
		NoTableStyle:      !useColor,
		OmitHeader:        true,
	}
	if err := w.WriteReport(&buf); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}

	lines := strings.Split(buf.String(), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

// parseManifest loads a JSON manifest as a dyff input. JSON is valid YAML.
func parseManifest(name string, data []byte) (ytbx.InputFile, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ytbx.InputFile{Location: name}, nil
	}

	docs, err := ytbx.LoadYAMLDocuments(data)
	if err != nil {
		return ytbx.InputFile{}, err
	}
	return ytbx.InputFile{Location: name, Documents: docs}, nil
}
