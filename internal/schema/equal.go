package schema

// Equal reports structural equality: every table matches by name and
// attributes. Table order and the order of keys and foreign keys within a
// table are ignored; column order and key column order are significant.
func (s *Schema) Equal(other *Schema) bool {
	if len(s.Tables) != len(other.Tables) {
		return false
	}
	for i := range s.Tables {
		t := &s.Tables[i]
		o := other.Table(t.Name)
		if o == nil || !t.Equal(o) {
			return false
		}
	}
	return true
}

// Equal reports structural equality of two tables.
func (t *Table) Equal(other *Table) bool {
	if t.Name != other.Name {
		return false
	}
	if len(t.Columns) != len(other.Columns) {
		return false
	}
	for i := range t.Columns {
		if !t.Columns[i].Equal(&other.Columns[i]) {
			return false
		}
	}

	if len(t.Keys) != len(other.Keys) {
		return false
	}
	for i := range t.Keys {
		k := &t.Keys[i]
		var o *Key
		if k.Kind == KeyPrimary {
			o = other.PrimaryKey()
		} else {
			o = other.Key(k.Name)
		}
		if o == nil || !k.Equal(o) {
			return false
		}
	}

	if len(t.ForeignKeys) != len(other.ForeignKeys) {
		return false
	}
	for i := range t.ForeignKeys {
		fk := &t.ForeignKeys[i]
		o := other.ForeignKey(fk.Name)
		if o == nil || !fk.Equal(o) {
			return false
		}
	}
	return true
}

// Equal compares every column attribute, including ordered position being
// handled by the caller.
func (c *Column) Equal(other *Column) bool {
	if c.Name != other.Name || c.Type != other.Type {
		return false
	}
	if c.Nullable != other.Nullable || c.AutoIncrement != other.AutoIncrement {
		return false
	}
	if (c.Default == nil) != (other.Default == nil) {
		return false
	}
	if c.Default != nil && *c.Default != *other.Default {
		return false
	}
	return true
}

// Equal compares kind and the ordered column list. Two composite keys with
// the same columns in different order are not equal.
func (k *Key) Equal(other *Key) bool {
	if k.Kind != other.Kind || k.Name != other.Name {
		return false
	}
	return columnsEqual(k.Columns, other.Columns)
}

// SameColumns reports whether two keys of the same kind cover the same
// ordered column list, regardless of name. Used for renamed-index
// detection.
func (k *Key) SameColumns(other *Key) bool {
	return k.Kind == other.Kind && columnsEqual(k.Columns, other.Columns)
}

// Equal compares name, target table and both ordered column lists.
func (fk *ForeignKey) Equal(other *ForeignKey) bool {
	return fk.Name == other.Name && fk.SameStructure(other)
}

// SameStructure reports whether two foreign keys constrain the same
// columns against the same target, regardless of name. A renamed but
// structurally identical foreign key is treated as unchanged.
func (fk *ForeignKey) SameStructure(other *ForeignKey) bool {
	return fk.ReferencedTable == other.ReferencedTable &&
		columnsEqual(fk.Columns, other.Columns) &&
		columnsEqual(fk.ReferencedColumns, other.ReferencedColumns)
}
