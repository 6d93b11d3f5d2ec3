package schema

import (
	"errors"
	"path/filepath"
	"testing"
)

func strptr(s string) *string { return &s }

func validSchema() *Schema {
	return &Schema{
		Engine: "mysql",
		Name:   "shop",
		Tables: []Table{
			{
				Name: "users",
				Columns: []Column{
					{Name: "id", Type: "int(11)", AutoIncrement: true},
					{Name: "name", Type: "varchar(32)", Nullable: true},
				},
				Keys: []Key{
					{Kind: KeyPrimary, Columns: []string{"id"}},
					{Kind: KeyUnique, Name: "uq_users_name", Columns: []string{"name"}},
				},
			},
			{
				Name: "orders",
				Columns: []Column{
					{Name: "id", Type: "int(11)", AutoIncrement: true},
					{Name: "user_id", Type: "int(11)"},
					{Name: "note", Type: "varchar(64)", Nullable: true, Default: strptr("none")},
				},
				Keys: []Key{
					{Kind: KeyPrimary, Columns: []string{"id"}},
					{Kind: KeyIndex, Name: "idx_orders_user", Columns: []string{"user_id"}},
				},
				ForeignKeys: []ForeignKey{
					{
						Name:              "fk_orders_user",
						Columns:           []string{"user_id"},
						ReferencedTable:   "users",
						ReferencedColumns: []string{"id"},
					},
				},
			},
		},
	}
}

func TestValidateOK(t *testing.T) {
	if err := validSchema().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Schema)
	}{
		{"duplicate table", func(s *Schema) {
			s.Tables = append(s.Tables, s.Tables[0])
		}},
		{"duplicate column", func(s *Schema) {
			t := s.Table("users")
			t.Columns = append(t.Columns, t.Columns[0])
		}},
		{"two primary keys", func(s *Schema) {
			t := s.Table("users")
			t.Keys = append(t.Keys, Key{Kind: KeyPrimary, Columns: []string{"name"}})
		}},
		{"named primary key", func(s *Schema) {
			s.Table("users").Keys[0].Name = "pk"
		}},
		{"key on unknown column", func(s *Schema) {
			t := s.Table("users")
			t.Keys = append(t.Keys, Key{Kind: KeyIndex, Name: "idx_bad", Columns: []string{"ghost"}})
		}},
		{"duplicate key name", func(s *Schema) {
			t := s.Table("orders")
			t.Keys = append(t.Keys, Key{Kind: KeyIndex, Name: "idx_orders_user", Columns: []string{"id"}})
		}},
		{"two auto-increment columns", func(s *Schema) {
			s.Table("users").Columns[1].AutoIncrement = true
		}},
		{"auto-increment not keyed", func(s *Schema) {
			t := s.Table("users")
			t.Keys = []Key{{Kind: KeyIndex, Name: "idx_id", Columns: []string{"id"}}}
		}},
		{"fk length mismatch", func(s *Schema) {
			fk := &s.Table("orders").ForeignKeys[0]
			fk.ReferencedColumns = []string{"id", "name"}
		}},
		{"fk unknown local column", func(s *Schema) {
			s.Table("orders").ForeignKeys[0].Columns = []string{"ghost"}
		}},
		{"fk unknown target table", func(s *Schema) {
			s.Table("orders").ForeignKeys[0].ReferencedTable = "ghosts"
		}},
		{"fk target columns not keyed", func(s *Schema) {
			fk := &s.Table("orders").ForeignKeys[0]
			fk.ReferencedColumns = []string{"name"}
			s.Table("users").Keys = s.Table("users").Keys[:1]
			s.Table("users").Columns[0].AutoIncrement = false
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSchema()
			tt.mutate(s)
			err := s.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			var ise *InvalidSchemaError
			if !errors.As(err, &ise) {
				t.Fatalf("expected *InvalidSchemaError, got %T", err)
			}
		})
	}
}

func TestEqualIgnoresUnorderedMembers(t *testing.T) {
	a := validSchema()
	b := validSchema()

	// Table order and key order are set semantics.
	b.Tables[0], b.Tables[1] = b.Tables[1], b.Tables[0]
	u := b.Table("users")
	u.Keys[0], u.Keys[1] = u.Keys[1], u.Keys[0]

	if !a.Equal(b) {
		t.Error("schemas differing only in table/key order should be equal")
	}
}

func TestEqualRespectsColumnOrder(t *testing.T) {
	a := validSchema()
	b := validSchema()
	u := b.Table("users")
	u.Columns[0], u.Columns[1] = u.Columns[1], u.Columns[0]

	if a.Equal(b) {
		t.Error("schemas with reordered columns should not be equal")
	}
}

func TestEqualCompositeKeyOrder(t *testing.T) {
	a := &Key{Kind: KeyPrimary, Columns: []string{"a", "b"}}
	b := &Key{Kind: KeyPrimary, Columns: []string{"b", "a"}}
	if a.Equal(b) {
		t.Error("composite keys with different column order should not be equal")
	}
}

func TestEqualDefaults(t *testing.T) {
	a := validSchema()
	b := validSchema()
	b.Table("orders").Columns[2].Default = strptr("other")
	if a.Equal(b) {
		t.Error("differing defaults should not be equal")
	}
	b.Table("orders").Columns[2].Default = nil
	if a.Equal(b) {
		t.Error("nil vs set default should not be equal")
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	s := validSchema()
	path := filepath.Join(t.TempDir(), "schema.yaml")

	if err := s.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	loaded, err := LoadYAML(path)
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}
	if !s.Equal(loaded) {
		t.Error("schema not structurally equal after YAML round trip")
	}
	if loaded.Table("orders").Columns[2].Default == nil {
		t.Error("default value lost in round trip")
	}
}

func TestLoadYAMLRejectsInvalid(t *testing.T) {
	s := validSchema()
	s.Table("orders").ForeignKeys[0].ReferencedTable = "ghosts"
	path := filepath.Join(t.TempDir(), "schema.yaml")
	if err := s.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	if _, err := LoadYAML(path); err == nil {
		t.Error("LoadYAML should reject an invalid snapshot")
	}
}
