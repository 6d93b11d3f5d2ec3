// Package diff compares two schema models and produces a structured change
// set at table, column, key and foreign-key granularity.
package diff

import "github.com/mydiff/mydiff/internal/schema"

// Diff computes the change set transforming old into new. Both schemas are
// assumed validated; Diff itself never fails. Matching is by name with a
// structure fallback for renamed keys and foreign keys, so renames that
// leave the structure intact produce no churn. A table rename is seen as
// drop+add; there is no rename inference.
func Diff(old, new *schema.Schema) *ChangeSet {
	cs := &ChangeSet{}

	droppedTables := make(map[string]bool)
	for i := range old.Tables {
		if new.Table(old.Tables[i].Name) == nil {
			droppedTables[old.Tables[i].Name] = true
		}
	}

	// Dropped tables, old-schema order.
	for i := range old.Tables {
		if droppedTables[old.Tables[i].Name] {
			cs.Dropped = append(cs.Dropped, old.Tables[i])
		}
	}

	// Added and modified tables, new-schema order.
	for i := range new.Tables {
		nt := &new.Tables[i]
		ot := old.Table(nt.Name)
		if ot == nil {
			cs.Added = append(cs.Added, *nt)
			continue
		}
		td := diffTable(ot, nt, droppedTables)
		if !td.Empty() {
			cs.Modified = append(cs.Modified, td)
		}
	}

	return cs
}

func diffTable(old, new *schema.Table, droppedTables map[string]bool) TableDiff {
	td := TableDiff{Name: new.Name}

	diffColumns(old, new, &td)
	diffKeys(old, new, &td)
	diffForeignKeys(old, new, &td, droppedTables)

	return td
}

// diffColumns matches columns by name. A column present on both sides with
// a differing type, nullability, default or auto-increment flag becomes an
// attribute-level modification, preserving row data across the migration.
func diffColumns(old, new *schema.Table, td *TableDiff) {
	for i := range old.Columns {
		oc := &old.Columns[i]
		if new.Column(oc.Name) == nil {
			td.DroppedColumns = append(td.DroppedColumns, *oc)
		}
	}
	for i := range new.Columns {
		nc := &new.Columns[i]
		oc := old.Column(nc.Name)
		switch {
		case oc == nil:
			td.AddedColumns = append(td.AddedColumns, *nc)
		case !oc.Equal(nc):
			td.ModifiedColumns = append(td.ModifiedColumns, ColumnChange{Old: *oc, New: *nc})
		}
	}
}

// diffKeys matches the primary key structurally (column order significant)
// and named keys by name first, then by identical column list for renamed-
// index detection. A key matched either way with identical structure is a
// no-op; anything else is an independent drop and add.
func diffKeys(old, new *schema.Table, td *TableDiff) {
	opk, npk := old.PrimaryKey(), new.PrimaryKey()
	switch {
	case opk != nil && npk == nil:
		td.DroppedKeys = append(td.DroppedKeys, *opk)
	case opk == nil && npk != nil:
		td.AddedKeys = append(td.AddedKeys, *npk)
	case opk != nil && npk != nil && !opk.Equal(npk):
		td.DroppedKeys = append(td.DroppedKeys, *opk)
		td.AddedKeys = append(td.AddedKeys, *npk)
	}

	matchedOld := make(map[string]bool)
	matchedNew := make(map[string]bool)

	// Pass 1: name matches.
	for i := range old.Keys {
		ok := &old.Keys[i]
		if ok.Kind == schema.KeyPrimary {
			continue
		}
		nk := new.Key(ok.Name)
		if nk == nil || nk.Kind == schema.KeyPrimary {
			continue
		}
		matchedOld[ok.Name] = true
		matchedNew[nk.Name] = true
		if !ok.Equal(nk) {
			td.DroppedKeys = append(td.DroppedKeys, *ok)
			td.AddedKeys = append(td.AddedKeys, *nk)
		}
	}

	// Pass 2: structure matches among the leftovers (renamed indexes).
	for i := range old.Keys {
		ok := &old.Keys[i]
		if ok.Kind == schema.KeyPrimary || matchedOld[ok.Name] {
			continue
		}
		for j := range new.Keys {
			nk := &new.Keys[j]
			if nk.Kind == schema.KeyPrimary || matchedNew[nk.Name] {
				continue
			}
			if ok.SameColumns(nk) {
				matchedOld[ok.Name] = true
				matchedNew[nk.Name] = true
				break
			}
		}
	}

	for i := range old.Keys {
		ok := &old.Keys[i]
		if ok.Kind != schema.KeyPrimary && !matchedOld[ok.Name] {
			td.DroppedKeys = append(td.DroppedKeys, *ok)
		}
	}
	for i := range new.Keys {
		nk := &new.Keys[i]
		if nk.Kind != schema.KeyPrimary && !matchedNew[nk.Name] {
			td.AddedKeys = append(td.AddedKeys, *nk)
		}
	}
}

// diffForeignKeys matches by name, falling back to structure so a renamed
// but otherwise identical constraint produces no churn. A structural
// change is expressed as drop+add since no engine alters a foreign key in
// place.
func diffForeignKeys(old, new *schema.Table, td *TableDiff, droppedTables map[string]bool) {
	matchedOld := make(map[string]bool)
	matchedNew := make(map[string]bool)

	for i := range old.ForeignKeys {
		ofk := &old.ForeignKeys[i]
		nfk := new.ForeignKey(ofk.Name)
		if nfk == nil {
			continue
		}
		matchedOld[ofk.Name] = true
		matchedNew[nfk.Name] = true
		if !ofk.SameStructure(nfk) {
			td.DroppedForeignKeys = append(td.DroppedForeignKeys, ForeignKeyDrop{
				ForeignKey:    *ofk,
				DependentDrop: droppedTables[ofk.ReferencedTable],
			})
			td.AddedForeignKeys = append(td.AddedForeignKeys, *nfk)
		}
	}

	for i := range old.ForeignKeys {
		ofk := &old.ForeignKeys[i]
		if matchedOld[ofk.Name] {
			continue
		}
		for j := range new.ForeignKeys {
			nfk := &new.ForeignKeys[j]
			if matchedNew[nfk.Name] {
				continue
			}
			if ofk.SameStructure(nfk) {
				matchedOld[ofk.Name] = true
				matchedNew[nfk.Name] = true
				break
			}
		}
	}

	for i := range old.ForeignKeys {
		ofk := &old.ForeignKeys[i]
		if !matchedOld[ofk.Name] {
			td.DroppedForeignKeys = append(td.DroppedForeignKeys, ForeignKeyDrop{
				ForeignKey:    *ofk,
				DependentDrop: droppedTables[ofk.ReferencedTable],
			})
		}
	}
	for i := range new.ForeignKeys {
		nfk := &new.ForeignKeys[i]
		if !matchedNew[nfk.Name] {
			td.AddedForeignKeys = append(td.AddedForeignKeys, *nfk)
		}
	}
}
