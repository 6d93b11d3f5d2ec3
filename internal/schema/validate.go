package schema

import "fmt"

// InvalidSchemaError reports a schema that violates a structural invariant.
// Table and Object pinpoint the offending definition.
type InvalidSchemaError struct {
	Table  string
	Object string // column, key or constraint name; empty for table-level faults
	Reason string
}

func (e *InvalidSchemaError) Error() string {
	if e.Object != "" {
		return fmt.Sprintf("invalid schema: table %q, %s: %s", e.Table, e.Object, e.Reason)
	}
	if e.Table != "" {
		return fmt.Sprintf("invalid schema: table %q: %s", e.Table, e.Reason)
	}
	return "invalid schema: " + e.Reason
}

// Validate checks every structural invariant. It is run once at
// construction so the differ can assume well-formed input.
func (s *Schema) Validate() error {
	seen := make(map[string]bool, len(s.Tables))
	for i := range s.Tables {
		t := &s.Tables[i]
		if seen[t.Name] {
			return &InvalidSchemaError{Table: t.Name, Reason: "duplicate table name"}
		}
		seen[t.Name] = true

		if err := t.validate(); err != nil {
			return err
		}
	}

	// Cross-table: every foreign key whose target exists in this schema
	// must reference columns that form a primary or unique key there.
	for i := range s.Tables {
		t := &s.Tables[i]
		for j := range t.ForeignKeys {
			fk := &t.ForeignKeys[j]
			ref := s.Table(fk.ReferencedTable)
			if ref == nil {
				return &InvalidSchemaError{
					Table:  t.Name,
					Object: fk.Name,
					Reason: fmt.Sprintf("references unknown table %q", fk.ReferencedTable),
				}
			}
			if !ref.keyedBy(fk.ReferencedColumns) {
				return &InvalidSchemaError{
					Table:  t.Name,
					Object: fk.Name,
					Reason: fmt.Sprintf("referenced columns %v are not a primary or unique key of %q", fk.ReferencedColumns, fk.ReferencedTable),
				}
			}
		}
	}

	return nil
}

func (t *Table) validate() error {
	if t.Name == "" {
		return &InvalidSchemaError{Reason: "table with empty name"}
	}
	if len(t.Columns) == 0 {
		return &InvalidSchemaError{Table: t.Name, Reason: "table has no columns"}
	}

	cols := make(map[string]bool, len(t.Columns))
	autoInc := ""
	for i := range t.Columns {
		c := &t.Columns[i]
		if c.Name == "" {
			return &InvalidSchemaError{Table: t.Name, Reason: "column with empty name"}
		}
		if cols[c.Name] {
			return &InvalidSchemaError{Table: t.Name, Object: c.Name, Reason: "duplicate column name"}
		}
		cols[c.Name] = true
		if c.AutoIncrement {
			if autoInc != "" {
				return &InvalidSchemaError{Table: t.Name, Object: c.Name, Reason: "more than one auto-increment column"}
			}
			autoInc = c.Name
		}
	}

	primary := false
	keyNames := make(map[string]bool, len(t.Keys))
	for i := range t.Keys {
		k := &t.Keys[i]
		switch k.Kind {
		case KeyPrimary:
			if primary {
				return &InvalidSchemaError{Table: t.Name, Reason: "more than one primary key"}
			}
			primary = true
			if k.Name != "" {
				return &InvalidSchemaError{Table: t.Name, Object: k.Name, Reason: "primary key must be unnamed"}
			}
		case KeyUnique, KeyIndex:
			if k.Name == "" {
				return &InvalidSchemaError{Table: t.Name, Reason: string(k.Kind) + " key with empty name"}
			}
			if keyNames[k.Name] {
				return &InvalidSchemaError{Table: t.Name, Object: k.Name, Reason: "duplicate key name"}
			}
			keyNames[k.Name] = true
		default:
			return &InvalidSchemaError{Table: t.Name, Object: k.Name, Reason: fmt.Sprintf("unknown key kind %q", k.Kind)}
		}
		if len(k.Columns) == 0 {
			return &InvalidSchemaError{Table: t.Name, Object: k.Name, Reason: "key with no columns"}
		}
		for _, col := range k.Columns {
			if !cols[col] {
				return &InvalidSchemaError{Table: t.Name, Object: k.Name, Reason: fmt.Sprintf("key references unknown column %q", col)}
			}
		}
	}

	// The target engine requires an auto-increment column to be covered by
	// a primary or unique key.
	if autoInc != "" && !t.autoIncKeyed(autoInc) {
		return &InvalidSchemaError{Table: t.Name, Object: autoInc, Reason: "auto-increment column is not part of a primary or unique key"}
	}

	fkNames := make(map[string]bool, len(t.ForeignKeys))
	for i := range t.ForeignKeys {
		fk := &t.ForeignKeys[i]
		if fk.Name == "" {
			return &InvalidSchemaError{Table: t.Name, Reason: "foreign key with empty name"}
		}
		if fkNames[fk.Name] {
			return &InvalidSchemaError{Table: t.Name, Object: fk.Name, Reason: "duplicate foreign key name"}
		}
		fkNames[fk.Name] = true
		if len(fk.Columns) == 0 {
			return &InvalidSchemaError{Table: t.Name, Object: fk.Name, Reason: "foreign key with no columns"}
		}
		if len(fk.Columns) != len(fk.ReferencedColumns) {
			return &InvalidSchemaError{Table: t.Name, Object: fk.Name, Reason: "local and referenced column lists differ in length"}
		}
		for _, col := range fk.Columns {
			if !cols[col] {
				return &InvalidSchemaError{Table: t.Name, Object: fk.Name, Reason: fmt.Sprintf("foreign key references unknown column %q", col)}
			}
		}
	}

	return nil
}

// autoIncKeyed reports whether col is covered by a primary or unique key.
func (t *Table) autoIncKeyed(col string) bool {
	for i := range t.Keys {
		k := &t.Keys[i]
		if k.Kind == KeyIndex {
			continue
		}
		for _, c := range k.Columns {
			if c == col {
				return true
			}
		}
	}
	return false
}

// keyedBy reports whether cols exactly match a primary or unique key of
// the table, in order.
func (t *Table) keyedBy(cols []string) bool {
	for i := range t.Keys {
		k := &t.Keys[i]
		if k.Kind == KeyIndex {
			continue
		}
		if columnsEqual(k.Columns, cols) {
			return true
		}
	}
	return false
}

func columnsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
