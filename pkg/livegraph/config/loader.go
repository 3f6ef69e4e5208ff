package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DecodeFile decodes a YAML or JSON file into out, choosing the format by
// extension. Supported extensions: .yaml, .yml, .json
func DecodeFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return DecodeYAML(data, out)
	case ".json":
		return DecodeJSON(data, out)
	default:
		return fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// DecodeYAML decodes YAML data into out. Unknown fields are rejected.
func DecodeYAML(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

// DecodeJSON decodes JSON data into out. Unknown fields are rejected.
func DecodeJSON(data []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("parse json: %w", err)
	}
	return nil
}

// FromFile loads a node config map from a YAML or JSON file.
func FromFile(path string) (Config, error) {
	var m map[string]any
	if err := DecodeFile(path, &m); err != nil {
		return Config{}, err
	}
	return New(m), nil
}
