package generate

import (
	"strings"

	"github.com/mydiff/mydiff/internal/schema"
)

// DDL rendering. One statement per line, lower-case keywords, terminated
// with a semicolon, matching the fixture format.

func columnDef(c *schema.Column) string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteString(" ")
	b.WriteString(c.Type)
	if !c.Nullable {
		b.WriteString(" not null")
	}
	if c.AutoIncrement {
		b.WriteString(" auto_increment")
	}
	if c.Default != nil {
		b.WriteString(" default ")
		b.WriteString(defaultLiteral(*c.Default))
	}
	return b.String()
}

// defaultLiteral quotes a default value unless it is numeric, a call like
// now(), or one of the literals the engine accepts bare.
func defaultLiteral(v string) string {
	lower := strings.ToLower(v)
	switch lower {
	case "null", "true", "false", "current_timestamp":
		return lower
	}
	if strings.HasSuffix(v, ")") {
		return v
	}
	if isNumeric(v) {
		return v
	}
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

func isNumeric(v string) bool {
	if v == "" {
		return false
	}
	dot := false
	for i, r := range v {
		switch {
		case r >= '0' && r <= '9':
		case r == '-' && i == 0:
		case r == '.' && !dot:
			dot = true
		default:
			return false
		}
	}
	return true
}

func keyClause(k *schema.Key) string {
	cols := strings.Join(k.Columns, ",")
	switch k.Kind {
	case schema.KeyPrimary:
		return "primary key (" + cols + ")"
	case schema.KeyUnique:
		return "unique key " + k.Name + " (" + cols + ")"
	default:
		return "key " + k.Name + " (" + cols + ")"
	}
}

func keyAddClause(k *schema.Key) string {
	cols := strings.Join(k.Columns, ",")
	switch k.Kind {
	case schema.KeyPrimary:
		return "add primary key (" + cols + ")"
	case schema.KeyUnique:
		return "add unique key " + k.Name + " (" + cols + ")"
	default:
		return "add index " + k.Name + " (" + cols + ")"
	}
}

func keyDropClause(k *schema.Key) string {
	if k.Kind == schema.KeyPrimary {
		return "drop primary key"
	}
	return "drop key " + k.Name
}

func renderCreateTable(t *schema.Table) string {
	parts := make([]string, 0, len(t.Columns)+len(t.Keys))
	for i := range t.Columns {
		parts = append(parts, columnDef(&t.Columns[i]))
	}
	for i := range t.Keys {
		parts = append(parts, keyClause(&t.Keys[i]))
	}
	return "create table " + t.Name + " (" + strings.Join(parts, ", ") + ");"
}

func renderDropTable(name string) string {
	return "drop table " + name + ";"
}

func renderAlterTable(name string, clauses []string) string {
	return "alter table " + name + " " + strings.Join(clauses, ", ") + ";"
}

func renderDropForeignKey(table string, fk *schema.ForeignKey) string {
	return "alter table " + table + " drop foreign key " + fk.Name + ";"
}

func renderAddForeignKey(table string, fk *schema.ForeignKey) string {
	return "alter table " + table +
		" add constraint " + fk.Name +
		" foreign key (" + strings.Join(fk.Columns, ",") + ")" +
		" references " + fk.ReferencedTable +
		" (" + strings.Join(fk.ReferencedColumns, ",") + ");"
}

func renderAddIndex(table, name string, cols []string) string {
	return "alter table " + table + " add index " + name + " (" + strings.Join(cols, ",") + ");"
}
