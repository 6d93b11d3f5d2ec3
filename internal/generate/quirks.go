package generate

import "github.com/mydiff/mydiff/internal/schema"

// CompensationPolicy returns the extra statements a target engine needs
// emitted alongside a foreign key drop to reproduce the engine's own side
// effects. Policies are keyed by engine identity so new engine quirks can
// be added without touching the ordering algorithm.
type CompensationPolicy func(table string, fk *schema.ForeignKey) []Statement

// DropCompensation returns the foreign-key-drop compensation policy for
// the given engine. Engines without documented quirks get a nil policy.
func DropCompensation(engine string) CompensationPolicy {
	if engine == "mysql" {
		return mysqlOrphanedIndex
	}
	return nil
}

// mysqlOrphanedIndex reproduces a documented MySQL behavior: dropping a
// composite foreign key does not remove the secondary index that was
// implicitly created to back it. The index named after the constraint
// survives on the live table, so the generated sequence must carry an
// explicit index creation or verification would report a residual diff.
func mysqlOrphanedIndex(table string, fk *schema.ForeignKey) []Statement {
	if len(fk.Columns) < 2 {
		return nil
	}
	return []Statement{{
		SQL:   renderAddIndex(table, fk.Name, fk.Columns),
		Table: table,
		Kind:  KindAddIndex,
	}}
}
