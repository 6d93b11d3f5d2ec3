package introspect

import (
	"context"

	"github.com/mydiff/mydiff/internal/schema"
)

// Snapshot reads a schema from a YAML model file written by a previous
// introspection.
type Snapshot struct {
	path string
}

// NewSnapshot returns a Snapshot backed by the file at path.
func NewSnapshot(path string) *Snapshot {
	return &Snapshot{path: path}
}

func (s *Snapshot) Connect(_ context.Context) error { return nil }

func (s *Snapshot) Read(_ context.Context) (*schema.Schema, error) {
	return schema.LoadYAML(s.path)
}

func (s *Snapshot) Close() error { return nil }
