package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Find returns the path of the manifest inside dir, or an error when the
// directory holds none.
func Find(dir string) (string, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("no manifest (%s) in %s", strings.Join(FileNames, ", "), dir)
}

// Parse reads, validates and decodes the manifest at path.
func Parse(path string) (*Manifest, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	m, err := ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

// ParseBytes validates and decodes manifest data. JSON is accepted as a
// subset of YAML.
func ParseBytes(data []byte) (*Manifest, error) {
	result, err := Validate(data)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, result
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &m, nil
}

// ParseDir finds and parses the manifest of the mod package in dir.
func ParseDir(dir string) (*Manifest, error) {
	path, err := Find(dir)
	if err != nil {
		return nil, err
	}
	return Parse(path)
}

// readFile reads the contents of a file at the given path.
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	return data, nil
}
