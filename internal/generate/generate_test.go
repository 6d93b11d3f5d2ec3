package generate

import (
	"errors"
	"strings"
	"testing"

	"github.com/mydiff/mydiff/internal/diff"
	"github.com/mydiff/mydiff/internal/schema"
)

// compositeFKSchemas builds the documented orphaned-index scenario: table
// b with a composite primary key, table c constraining (a,b) against it.
func compositeFKSchemas() (*schema.Schema, *schema.Schema) {
	old := &schema.Schema{
		Engine: "mysql",
		Tables: []schema.Table{
			{
				Name: "b",
				Columns: []schema.Column{
					{Name: "a", Type: "int(11)"},
					{Name: "b", Type: "int(11)"},
				},
				Keys: []schema.Key{{Kind: schema.KeyPrimary, Columns: []string{"a", "b"}}},
			},
			{
				Name: "c",
				Columns: []schema.Column{
					{Name: "id", Type: "int(11)"},
					{Name: "a", Type: "int(11)"},
					{Name: "b", Type: "int(11)"},
				},
				Keys: []schema.Key{{Kind: schema.KeyPrimary, Columns: []string{"id"}}},
				ForeignKeys: []schema.ForeignKey{
					{
						Name:              "fk_c_b",
						Columns:           []string{"a", "b"},
						ReferencedTable:   "b",
						ReferencedColumns: []string{"a", "b"},
					},
				},
			},
		},
	}

	new := &schema.Schema{
		Engine: "mysql",
		Tables: []schema.Table{
			old.Tables[0],
			{
				Name:    "c",
				Columns: old.Tables[1].Columns,
				Keys:    old.Tables[1].Keys,
			},
		},
	}
	return old, new
}

func TestCompositeForeignKeyDropCompensation(t *testing.T) {
	old, new := compositeFKSchemas()
	stmts, err := New("mysql").Generate(diff.Diff(old, new))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	want := []string{
		"alter table c drop foreign key fk_c_b;",
		"alter table c add index fk_c_b (a,b);",
	}
	got := SQLLines(stmts)
	if len(got) != len(want) {
		t.Fatalf("got %d statements %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("statement[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSingleColumnForeignKeyDropNoCompensation(t *testing.T) {
	old, new := compositeFKSchemas()
	old.Tables[1].ForeignKeys[0] = schema.ForeignKey{
		Name:              "fk_c_b",
		Columns:           []string{"a"},
		ReferencedTable:   "b",
		ReferencedColumns: []string{"a"},
	}
	// Single-column target needs its own key on b.
	old.Tables[0].Keys = append(old.Tables[0].Keys,
		schema.Key{Kind: schema.KeyUnique, Name: "uq_b_a", Columns: []string{"a"}})
	new.Tables[0] = old.Tables[0]

	stmts, err := New("mysql").Generate(diff.Diff(old, new))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(stmts) != 1 {
		t.Fatalf("got %v, want only the foreign key drop", SQLLines(stmts))
	}
	if stmts[0].Kind != KindDropForeignKey {
		t.Errorf("kind = %q, want %q", stmts[0].Kind, KindDropForeignKey)
	}
}

func TestCompensationIsEngineKeyed(t *testing.T) {
	old, new := compositeFKSchemas()
	stmts, err := New("postgres").Generate(diff.Diff(old, new))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for _, s := range stmts {
		if s.Kind == KindAddIndex {
			t.Errorf("postgres generated a compensation statement: %q", s.SQL)
		}
	}
}

func TestAddColumnIsSingleStatement(t *testing.T) {
	old := &schema.Schema{Tables: []schema.Table{{
		Name: "a",
		Columns: []schema.Column{
			{Name: "id", Type: "int(11)"},
			{Name: "name", Type: "varchar(32)", Nullable: true},
		},
		Keys: []schema.Key{{Kind: schema.KeyPrimary, Columns: []string{"id"}}},
	}}}
	now := "now()"
	new := &schema.Schema{Tables: []schema.Table{{
		Name: "a",
		Columns: []schema.Column{
			{Name: "id", Type: "int(11)"},
			{Name: "name", Type: "varchar(32)", Nullable: true},
			{Name: "created_at", Type: "datetime", Nullable: true, Default: &now},
		},
		Keys: []schema.Key{{Kind: schema.KeyPrimary, Columns: []string{"id"}}},
	}}}

	stmts, err := New("mysql").Generate(diff.Diff(old, new))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(stmts) != 1 {
		t.Fatalf("got %v, want a single alter", SQLLines(stmts))
	}
	want := "alter table a add column created_at datetime default now();"
	if stmts[0].SQL != want {
		t.Errorf("got %q, want %q", stmts[0].SQL, want)
	}
}

func TestCreateTablesTopologicalOrder(t *testing.T) {
	old := &schema.Schema{}
	new := &schema.Schema{Tables: []schema.Table{
		{
			Name: "child",
			Columns: []schema.Column{
				{Name: "id", Type: "int(11)"},
				{Name: "parent_id", Type: "int(11)"},
			},
			Keys: []schema.Key{{Kind: schema.KeyPrimary, Columns: []string{"id"}}},
			ForeignKeys: []schema.ForeignKey{{
				Name:              "fk_child_parent",
				Columns:           []string{"parent_id"},
				ReferencedTable:   "parent",
				ReferencedColumns: []string{"id"},
			}},
		},
		{
			Name:    "parent",
			Columns: []schema.Column{{Name: "id", Type: "int(11)"}},
			Keys:    []schema.Key{{Kind: schema.KeyPrimary, Columns: []string{"id"}}},
		},
	}}

	stmts, err := New("mysql").Generate(diff.Diff(old, new))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	var creates []string
	fkIndex := -1
	for i, s := range stmts {
		switch s.Kind {
		case KindCreateTable:
			creates = append(creates, s.Table)
		case KindAddForeignKey:
			fkIndex = i
		}
	}
	if len(creates) != 2 || creates[0] != "parent" || creates[1] != "child" {
		t.Errorf("create order = %v, want [parent child]", creates)
	}
	if fkIndex != len(stmts)-1 {
		t.Errorf("foreign key addition at index %d, want last (%d)", fkIndex, len(stmts)-1)
	}
	// Create statements never carry inline foreign key clauses.
	for _, s := range stmts {
		if s.Kind == KindCreateTable && strings.Contains(s.SQL, "foreign key") {
			t.Errorf("create table carries inline foreign key: %q", s.SQL)
		}
	}
}

func TestCycleAmongNewTables(t *testing.T) {
	new := &schema.Schema{Tables: []schema.Table{
		{
			Name: "x",
			Columns: []schema.Column{
				{Name: "id", Type: "int(11)"},
				{Name: "y_id", Type: "int(11)"},
			},
			Keys: []schema.Key{{Kind: schema.KeyPrimary, Columns: []string{"id"}}},
			ForeignKeys: []schema.ForeignKey{{
				Name: "fk_x_y", Columns: []string{"y_id"},
				ReferencedTable: "y", ReferencedColumns: []string{"id"},
			}},
		},
		{
			Name: "y",
			Columns: []schema.Column{
				{Name: "id", Type: "int(11)"},
				{Name: "x_id", Type: "int(11)"},
			},
			Keys: []schema.Key{{Kind: schema.KeyPrimary, Columns: []string{"id"}}},
			ForeignKeys: []schema.ForeignKey{{
				Name: "fk_y_x", Columns: []string{"x_id"},
				ReferencedTable: "x", ReferencedColumns: []string{"id"},
			}},
		},
	}}

	_, err := New("mysql").Generate(diff.Diff(&schema.Schema{}, new))
	var ude *UnresolvableDependencyError
	if !errors.As(err, &ude) {
		t.Fatalf("expected *UnresolvableDependencyError, got %v", err)
	}
	if len(ude.Tables) == 0 {
		t.Error("cycle error should name the tables involved")
	}
}

func TestSelfReferenceIsNotACycle(t *testing.T) {
	new := &schema.Schema{Tables: []schema.Table{{
		Name: "employees",
		Columns: []schema.Column{
			{Name: "id", Type: "int(11)"},
			{Name: "manager_id", Type: "int(11)", Nullable: true},
		},
		Keys: []schema.Key{{Kind: schema.KeyPrimary, Columns: []string{"id"}}},
		ForeignKeys: []schema.ForeignKey{{
			Name: "fk_employees_manager", Columns: []string{"manager_id"},
			ReferencedTable: "employees", ReferencedColumns: []string{"id"},
		}},
	}}}

	stmts, err := New("mysql").Generate(diff.Diff(&schema.Schema{}, new))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(stmts) != 2 {
		t.Fatalf("got %v, want create + add constraint", SQLLines(stmts))
	}
	if stmts[0].Kind != KindCreateTable || stmts[1].Kind != KindAddForeignKey {
		t.Errorf("kinds = %q,%q", stmts[0].Kind, stmts[1].Kind)
	}
}

func TestAlterClauseOrder(t *testing.T) {
	old := &schema.Schema{Tables: []schema.Table{{
		Name: "t",
		Columns: []schema.Column{
			{Name: "id", Type: "int(11)"},
			{Name: "legacy", Type: "varchar(16)", Nullable: true},
			{Name: "amount", Type: "int(11)"},
		},
		Keys: []schema.Key{
			{Kind: schema.KeyPrimary, Columns: []string{"id"}},
			{Kind: schema.KeyIndex, Name: "idx_legacy", Columns: []string{"legacy"}},
		},
	}}}
	new := &schema.Schema{Tables: []schema.Table{{
		Name: "t",
		Columns: []schema.Column{
			{Name: "id", Type: "int(11)"},
			{Name: "amount", Type: "bigint(20)"},
			{Name: "status", Type: "varchar(8)"},
		},
		Keys: []schema.Key{
			{Kind: schema.KeyPrimary, Columns: []string{"id"}},
			{Kind: schema.KeyIndex, Name: "idx_status", Columns: []string{"status"}},
		},
	}}}

	stmts, err := New("mysql").Generate(diff.Diff(old, new))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(stmts) != 1 {
		t.Fatalf("got %v, want one alter", SQLLines(stmts))
	}
	want := "alter table t drop key idx_legacy, drop column legacy, " +
		"change amount amount bigint(20) not null, " +
		"add column status varchar(8) not null, " +
		"add index idx_status (status);"
	if stmts[0].SQL != want {
		t.Errorf("got  %q\nwant %q", stmts[0].SQL, want)
	}
}

// TestOrderingSafety replays generated sequences against a simulated
// catalog and fails if any statement touches an object that does not exist
// yet or no longer exists at that point.
func TestOrderingSafety(t *testing.T) {
	old, _ := compositeFKSchemas()
	// New state: drop b and the constraint, add two fresh linked tables.
	new := &schema.Schema{
		Engine: "mysql",
		Tables: []schema.Table{
			{
				Name: "c",
				Columns: []schema.Column{
					{Name: "id", Type: "int(11)"},
					{Name: "a", Type: "int(11)"},
					{Name: "b", Type: "int(11)"},
				},
				Keys: []schema.Key{{Kind: schema.KeyPrimary, Columns: []string{"id"}}},
			},
			{
				Name:    "parent",
				Columns: []schema.Column{{Name: "id", Type: "int(11)"}},
				Keys:    []schema.Key{{Kind: schema.KeyPrimary, Columns: []string{"id"}}},
			},
			{
				Name: "child",
				Columns: []schema.Column{
					{Name: "id", Type: "int(11)"},
					{Name: "parent_id", Type: "int(11)"},
				},
				Keys: []schema.Key{{Kind: schema.KeyPrimary, Columns: []string{"id"}}},
				ForeignKeys: []schema.ForeignKey{{
					Name: "fk_child_parent", Columns: []string{"parent_id"},
					ReferencedTable: "parent", ReferencedColumns: []string{"id"},
				}},
			},
		},
	}

	stmts, err := New("mysql").Generate(diff.Diff(old, new))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	exists := make(map[string]bool)
	// Live constraints keyed "owner/name" -> referenced table.
	fks := make(map[string]string)
	for i := range old.Tables {
		exists[old.Tables[i].Name] = true
		for j := range old.Tables[i].ForeignKeys {
			fk := &old.Tables[i].ForeignKeys[j]
			fks[old.Tables[i].Name+"/"+fk.Name] = fk.ReferencedTable
		}
	}

	fkName := func(sql string) string {
		fields := strings.Fields(strings.TrimSuffix(sql, ";"))
		return fields[len(fields)-1]
	}

	for _, s := range stmts {
		switch s.Kind {
		case KindDropForeignKey:
			if !exists[s.Table] {
				t.Fatalf("%q drops a constraint on missing table", s.SQL)
			}
			key := s.Table + "/" + fkName(s.SQL)
			if _, ok := fks[key]; !ok {
				t.Fatalf("%q drops a missing constraint", s.SQL)
			}
			delete(fks, key)
		case KindDropTable:
			if !exists[s.Table] {
				t.Fatalf("%q drops a missing table", s.SQL)
			}
			for key, ref := range fks {
				if ref == s.Table {
					t.Fatalf("%q drops a table still referenced by %s", s.SQL, key)
				}
				if strings.HasPrefix(key, s.Table+"/") {
					t.Fatalf("%q drops a table that still owns constraint %s", s.SQL, key)
				}
			}
			delete(exists, s.Table)
		case KindAlterTable, KindAddIndex:
			if !exists[s.Table] {
				t.Fatalf("%q alters a missing table", s.SQL)
			}
		case KindCreateTable:
			if exists[s.Table] {
				t.Fatalf("%q creates an existing table", s.SQL)
			}
			exists[s.Table] = true
		case KindAddForeignKey:
			if !exists[s.Table] {
				t.Fatalf("%q constrains a missing table", s.SQL)
			}
			rest := s.SQL[strings.Index(s.SQL, " references ")+len(" references "):]
			ref := strings.Fields(rest)[0]
			if !exists[ref] {
				t.Fatalf("%q references missing table %q", s.SQL, ref)
			}
		}
	}
	if !exists["parent"] || !exists["child"] || exists["b"] {
		t.Errorf("final simulated catalog wrong: %v", exists)
	}
}

func TestEmptyChangeSet(t *testing.T) {
	stmts, err := New("mysql").Generate(&diff.ChangeSet{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(stmts) != 0 {
		t.Errorf("empty change set generated %v", SQLLines(stmts))
	}
}
