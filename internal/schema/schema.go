package schema

// KeyKind distinguishes the three kinds of key a table can carry.
type KeyKind string

const (
	KeyPrimary KeyKind = "primary"
	KeyUnique  KeyKind = "unique"
	KeyIndex   KeyKind = "index"
)

// Schema is the structural definition of a database: tables, columns, keys
// and constraints, never row data. Table order is preserved so statement
// emission is deterministic, but comparison ignores it.
type Schema struct {
	Engine string  `yaml:"engine,omitempty"` // mysql, postgres, sqlite
	Name   string  `yaml:"name,omitempty"`
	Tables []Table `yaml:"tables"`
}

// Table is a single table definition.
type Table struct {
	Name        string       `yaml:"name"`
	Columns     []Column     `yaml:"columns"`
	Keys        []Key        `yaml:"keys,omitempty"`
	ForeignKeys []ForeignKey `yaml:"foreign_keys,omitempty"`
}

// Column is a table column. Type holds the full engine type descriptor
// including size and precision, e.g. "int(11)" or "varchar(32)".
type Column struct {
	Name          string  `yaml:"name"`
	Type          string  `yaml:"type"`
	Nullable      bool    `yaml:"nullable"`
	AutoIncrement bool    `yaml:"auto_increment,omitempty"`
	Default       *string `yaml:"default,omitempty"`
}

// Key is a primary key, unique key or plain index. Column order is
// significant. The primary key carries no name.
type Key struct {
	Name    string   `yaml:"name,omitempty"`
	Columns []string `yaml:"columns"`
	Kind    KeyKind  `yaml:"kind"`
}

// ForeignKey is a foreign key constraint. Columns and ReferencedColumns
// are positionally paired and must have equal length.
type ForeignKey struct {
	Name              string   `yaml:"name"`
	Columns           []string `yaml:"columns"`
	ReferencedTable   string   `yaml:"referenced_table"`
	ReferencedColumns []string `yaml:"referenced_columns"`
}

// Table returns the named table, or nil if the schema has no such table.
func (s *Schema) Table(name string) *Table {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i]
		}
	}
	return nil
}

// TableNames returns table names in declaration order.
func (s *Schema) TableNames() []string {
	names := make([]string, len(s.Tables))
	for i := range s.Tables {
		names[i] = s.Tables[i].Name
	}
	return names
}

// Column returns the named column, or nil.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// Key returns the named key, or nil. The primary key is unnamed; use
// PrimaryKey to look it up.
func (t *Table) Key(name string) *Key {
	if name == "" {
		return nil
	}
	for i := range t.Keys {
		if t.Keys[i].Name == name {
			return &t.Keys[i]
		}
	}
	return nil
}

// PrimaryKey returns the table's primary key, or nil.
func (t *Table) PrimaryKey() *Key {
	for i := range t.Keys {
		if t.Keys[i].Kind == KeyPrimary {
			return &t.Keys[i]
		}
	}
	return nil
}

// ForeignKey returns the named foreign key, or nil.
func (t *Table) ForeignKey(name string) *ForeignKey {
	for i := range t.ForeignKeys {
		if t.ForeignKeys[i].Name == name {
			return &t.ForeignKeys[i]
		}
	}
	return nil
}

// HasColumns reports whether every name in cols exists in the table.
func (t *Table) HasColumns(cols []string) bool {
	for _, c := range cols {
		if t.Column(c) == nil {
			return false
		}
	}
	return true
}
