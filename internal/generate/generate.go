// Package generate turns a change set into an ordered DDL statement
// sequence. The ordering encodes hard dependency constraints: foreign keys
// drop before anything they constrain changes, tables are created in
// referenced-before-referencing order, and foreign keys are added last,
// once every referenced table and key exists.
package generate

import (
	"github.com/mydiff/mydiff/internal/diff"
	"github.com/mydiff/mydiff/internal/schema"
)

// Generator converts change sets into statements for one target engine.
type Generator struct {
	Engine string
}

// New returns a Generator for the given engine identity.
func New(engine string) *Generator {
	return &Generator{Engine: engine}
}

// Generate emits the full ordered statement sequence for the change set:
//
//  1. drop foreign keys (with engine quirk compensation)
//  2. drop tables
//  3. alter surviving tables: drop keys and columns, change and add
//     columns, add keys, as clauses of one statement per table
//  4. create new tables, referenced tables first
//  5. add foreign keys
//
// A reference cycle among new tables fails with
// *UnresolvableDependencyError.
func (g *Generator) Generate(cs *diff.ChangeSet) ([]Statement, error) {
	var stmts []Statement

	compensate := DropCompensation(g.Engine)

	// Phase 1: foreign key drops. Dependent drops come from modified
	// tables whose constraint targets a table dropped below; dropping
	// them here keeps phase 2 unordered.
	for i := range cs.Modified {
		td := &cs.Modified[i]
		for j := range td.DroppedForeignKeys {
			fkd := &td.DroppedForeignKeys[j]
			stmts = append(stmts, Statement{
				SQL:   renderDropForeignKey(td.Name, &fkd.ForeignKey),
				Table: td.Name,
				Kind:  KindDropForeignKey,
			})
			// When the new schema was introspected live, the orphaned
			// index is already visible as an added key and phase 3
			// recreates it; compensating again would double it.
			if compensate != nil && !addsKeyNamed(td, fkd.ForeignKey.Name) {
				stmts = append(stmts, compensate(td.Name, &fkd.ForeignKey)...)
			}
		}
	}
	for i := range cs.Dropped {
		t := &cs.Dropped[i]
		for j := range t.ForeignKeys {
			// No compensation: the orphaned index disappears with the
			// table itself.
			stmts = append(stmts, Statement{
				SQL:   renderDropForeignKey(t.Name, &t.ForeignKeys[j]),
				Table: t.Name,
				Kind:  KindDropForeignKey,
			})
		}
	}

	// Phase 2: table drops, old-schema order. Safe in any order now that
	// no foreign key constrains them.
	for i := range cs.Dropped {
		stmts = append(stmts, Statement{
			SQL:   renderDropTable(cs.Dropped[i].Name),
			Table: cs.Dropped[i].Name,
			Kind:  KindDropTable,
		})
	}

	// Phase 3: alterations within surviving tables.
	for i := range cs.Modified {
		td := &cs.Modified[i]
		clauses := alterClauses(td)
		if len(clauses) == 0 {
			continue
		}
		stmts = append(stmts, Statement{
			SQL:   renderAlterTable(td.Name, clauses),
			Table: td.Name,
			Kind:  KindAlterTable,
		})
	}

	// Phase 4: new tables in topological reference order.
	created, err := newTableGraph(cs.Added).topoSort()
	if err != nil {
		return nil, err
	}
	added := make(map[string]*schema.Table, len(cs.Added))
	for i := range cs.Added {
		added[cs.Added[i].Name] = &cs.Added[i]
	}
	for _, name := range created {
		stmts = append(stmts, Statement{
			SQL:   renderCreateTable(added[name]),
			Table: name,
			Kind:  KindCreateTable,
		})
	}

	// Phase 5: foreign keys, after every referenced table and key exists.
	for i := range cs.Modified {
		td := &cs.Modified[i]
		for j := range td.AddedForeignKeys {
			stmts = append(stmts, Statement{
				SQL:   renderAddForeignKey(td.Name, &td.AddedForeignKeys[j]),
				Table: td.Name,
				Kind:  KindAddForeignKey,
			})
		}
	}
	for _, name := range created {
		t := added[name]
		for j := range t.ForeignKeys {
			stmts = append(stmts, Statement{
				SQL:   renderAddForeignKey(t.Name, &t.ForeignKeys[j]),
				Table: t.Name,
				Kind:  KindAddForeignKey,
			})
		}
	}

	return stmts, nil
}

func addsKeyNamed(td *diff.TableDiff, name string) bool {
	for i := range td.AddedKeys {
		if td.AddedKeys[i].Name == name {
			return true
		}
	}
	return false
}

// alterClauses renders a table's modifications in dependency-safe clause
// order: obsolete keys and columns go first, columns change and appear
// before any key that references them.
func alterClauses(td *diff.TableDiff) []string {
	var clauses []string
	for i := range td.DroppedKeys {
		clauses = append(clauses, keyDropClause(&td.DroppedKeys[i]))
	}
	for i := range td.DroppedColumns {
		clauses = append(clauses, "drop column "+td.DroppedColumns[i].Name)
	}
	for i := range td.ModifiedColumns {
		c := &td.ModifiedColumns[i].New
		clauses = append(clauses, "change "+c.Name+" "+columnDef(c))
	}
	for i := range td.AddedColumns {
		clauses = append(clauses, "add column "+columnDef(&td.AddedColumns[i]))
	}
	for i := range td.AddedKeys {
		clauses = append(clauses, keyAddClause(&td.AddedKeys[i]))
	}
	return clauses
}
