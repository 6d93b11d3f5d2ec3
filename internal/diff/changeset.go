package diff

import "github.com/mydiff/mydiff/internal/schema"

// ChangeSet is the structured delta between two schemas. It preserves the
// new schema's iteration order for added and modified tables and the old
// schema's order for dropped tables, so statement emission is
// deterministic. A ChangeSet is produced once per diff run and never
// mutated afterward.
type ChangeSet struct {
	Added    []schema.Table
	Dropped  []schema.Table
	Modified []TableDiff
}

// TableDiff holds the column, key and foreign-key level changes of a table
// present in both schemas.
type TableDiff struct {
	Name string

	// Column changes, in new-schema order for additions and old-schema
	// order for drops.
	AddedColumns    []schema.Column
	DroppedColumns  []schema.Column
	ModifiedColumns []ColumnChange

	AddedKeys   []schema.Key
	DroppedKeys []schema.Key

	AddedForeignKeys   []schema.ForeignKey
	DroppedForeignKeys []ForeignKeyDrop
}

// ColumnChange is an attribute-level column modification. The column keeps
// its identity; it is never expressed as drop+add.
type ColumnChange struct {
	Old schema.Column
	New schema.Column
}

// ForeignKeyDrop is a foreign key to be removed. DependentDrop marks a key
// whose referenced table is itself dropped in the same change set; the
// generator must order it before that table's drop.
type ForeignKeyDrop struct {
	ForeignKey    schema.ForeignKey
	DependentDrop bool
}

// Empty reports whether the table diff carries no changes.
func (td *TableDiff) Empty() bool {
	return len(td.AddedColumns) == 0 &&
		len(td.DroppedColumns) == 0 &&
		len(td.ModifiedColumns) == 0 &&
		len(td.AddedKeys) == 0 &&
		len(td.DroppedKeys) == 0 &&
		len(td.AddedForeignKeys) == 0 &&
		len(td.DroppedForeignKeys) == 0
}

// Empty reports whether the change set carries no changes at all.
func (cs *ChangeSet) Empty() bool {
	return len(cs.Added) == 0 && len(cs.Dropped) == 0 && len(cs.Modified) == 0
}

// Invert returns the change set transforming new back into old: every
// addition becomes a drop and vice versa, and every modification swaps its
// before and after sides.
func (cs *ChangeSet) Invert() *ChangeSet {
	inv := &ChangeSet{
		Added:   append([]schema.Table(nil), cs.Dropped...),
		Dropped: append([]schema.Table(nil), cs.Added...),
	}

	droppedNow := make(map[string]bool, len(cs.Added))
	for i := range cs.Added {
		droppedNow[cs.Added[i].Name] = true
	}

	for i := range cs.Modified {
		td := &cs.Modified[i]
		itd := TableDiff{
			Name:           td.Name,
			AddedColumns:   append([]schema.Column(nil), td.DroppedColumns...),
			DroppedColumns: append([]schema.Column(nil), td.AddedColumns...),
			AddedKeys:      append([]schema.Key(nil), td.DroppedKeys...),
			DroppedKeys:    append([]schema.Key(nil), td.AddedKeys...),
		}
		for _, cc := range td.ModifiedColumns {
			itd.ModifiedColumns = append(itd.ModifiedColumns, ColumnChange{Old: cc.New, New: cc.Old})
		}
		for _, fkd := range td.DroppedForeignKeys {
			itd.AddedForeignKeys = append(itd.AddedForeignKeys, fkd.ForeignKey)
		}
		for _, fk := range td.AddedForeignKeys {
			itd.DroppedForeignKeys = append(itd.DroppedForeignKeys, ForeignKeyDrop{
				ForeignKey:    fk,
				DependentDrop: droppedNow[fk.ReferencedTable],
			})
		}
		inv.Modified = append(inv.Modified, itd)
	}

	return inv
}
