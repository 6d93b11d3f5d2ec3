package fixture

import (
	"errors"
	"strings"
	"testing"
)

func TestParseSections(t *testing.T) {
	f, err := Parse("sample", `
# leading comment
<both>
    create table t (id int not null, primary key (id));
<old>
    alter table t add column removed int;
<new>
    alter table t add column added int;
<expected>
    alter table t drop column removed, add column added int;
`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !strings.Contains(f.Both, "create table t") {
		t.Errorf("both = %q", f.Both)
	}
	if !strings.Contains(f.OldScript(), "create table t") || !strings.Contains(f.OldScript(), "removed") {
		t.Errorf("old script = %q", f.OldScript())
	}
	if strings.Contains(f.NewScript(), "removed") {
		t.Errorf("new script includes old-only SQL: %q", f.NewScript())
	}
	want := []string{"alter table t drop column removed, add column added int;"}
	if got := f.ExpectedLines(); len(got) != 1 || got[0] != want[0] {
		t.Errorf("expected lines = %q, want %q", got, want)
	}
}

func TestParseExpectedDefaultsToNew(t *testing.T) {
	f, err := Parse("sample", `
<both>
    create table t (id int not null, primary key (id));
<new>
    alter table t add column added int;
`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := f.ExpectedLines()
	if len(got) != 1 || got[0] != "alter table t add column added int;" {
		t.Errorf("expected lines = %q", got)
	}
}

func TestParseRejectsStraySQL(t *testing.T) {
	if _, err := Parse("bad", "create table t (id int);\n<new>\nselect 1;\n"); err == nil {
		t.Error("SQL before a section directive not rejected")
	}
}

func TestParseRequiresNewOrExpected(t *testing.T) {
	if _, err := Parse("bad", "<both>\ncreate table t (id int not null, primary key (id));\n"); err == nil {
		t.Error("fixture without <new> or <expected> not rejected")
	}
}

func TestRunTestdata(t *testing.T) {
	paths, err := Glob("testdata")
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	if len(paths) == 0 {
		t.Fatal("no fixtures under testdata")
	}

	r := NewRunner("mysql")
	for _, path := range paths {
		f, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%s): %v", path, err)
		}
		t.Run(f.Name, func(t *testing.T) {
			if err := r.Run(f); err != nil {
				t.Errorf("%v", err)
			}
		})
	}
}

func TestRunMismatch(t *testing.T) {
	f, err := Parse("mismatch", `
<both>
    create table t (id int not null, primary key (id));
<new>
    alter table t add column added int;
<expected>
    alter table t add column wrong int;
`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	err = NewRunner("mysql").Run(f)
	var ferr *FailError
	if !errors.As(err, &ferr) {
		t.Fatalf("got %v, want FailError", err)
	}
	if len(ferr.Actual) != 1 || ferr.Actual[0] != "alter table t add column added int;" {
		t.Errorf("actual = %q", ferr.Actual)
	}
}
