package schema

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadYAML reads a schema snapshot from a YAML file and validates it.
func LoadYAML(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}
	s := &Schema{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing schema: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// WriteYAML writes the schema snapshot to a YAML file at the given path.
func (s *Schema) WriteYAML(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling schema: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// ToYAML returns the schema as a YAML byte slice.
func (s *Schema) ToYAML() ([]byte, error) {
	return yaml.Marshal(s)
}

// Summary returns a human-readable one-line summary of the schema.
func (s *Schema) Summary() string {
	var cols, keys, fks int
	for i := range s.Tables {
		cols += len(s.Tables[i].Columns)
		keys += len(s.Tables[i].Keys)
		fks += len(s.Tables[i].ForeignKeys)
	}
	return fmt.Sprintf("%d tables, %d columns, %d keys, %d foreign keys",
		len(s.Tables), cols, keys, fks)
}
