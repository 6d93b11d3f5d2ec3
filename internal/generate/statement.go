package generate

// StatementKind classifies a generated DDL statement by its ordering phase.
type StatementKind string

const (
	KindDropForeignKey StatementKind = "drop_foreign_key"
	KindAddIndex       StatementKind = "add_index"
	KindDropTable      StatementKind = "drop_table"
	KindAlterTable     StatementKind = "alter_table"
	KindCreateTable    StatementKind = "create_table"
	KindAddForeignKey  StatementKind = "add_foreign_key"
)

// Statement is a single ordered DDL statement.
type Statement struct {
	SQL   string
	Table string
	Kind  StatementKind
}

func (s Statement) String() string { return s.SQL }

// SQLLines returns just the statement text, one line per statement.
func SQLLines(stmts []Statement) []string {
	lines := make([]string, len(stmts))
	for i, s := range stmts {
		lines[i] = s.SQL
	}
	return lines
}
