package apply

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/mydiff/mydiff/internal/generate"
)

// recorder is a minimal sql driver that records executed statements and
// fails on any statement containing the word "boom". failures counts how
// many more times such a statement errors; -1 means always.
type recorder struct {
	mu        sync.Mutex
	executed  []string
	rollbacks int
	commits   int
	failures  int
}

type recorderConn struct{ r *recorder }
type recorderTx struct{ r *recorder }
type recorderStmt struct {
	r     *recorder
	query string
}

func (r *recorder) Open(string) (driver.Conn, error) { return &recorderConn{r}, nil }

func (c *recorderConn) Prepare(query string) (driver.Stmt, error) {
	return &recorderStmt{c.r, query}, nil
}
func (c *recorderConn) Close() error              { return nil }
func (c *recorderConn) Begin() (driver.Tx, error) { return &recorderTx{c.r}, nil }

func (t *recorderTx) Commit() error {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	t.r.commits++
	return nil
}
func (t *recorderTx) Rollback() error {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	t.r.rollbacks++
	return nil
}

func (s *recorderStmt) Close() error  { return nil }
func (s *recorderStmt) NumInput() int { return 0 }
func (s *recorderStmt) Exec([]driver.Value) (driver.Result, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	if strings.Contains(s.query, "boom") && s.r.failures != 0 {
		if s.r.failures > 0 {
			s.r.failures--
		}
		return nil, errors.New("syntax error")
	}
	s.r.executed = append(s.r.executed, s.query)
	return driver.RowsAffected(0), nil
}
func (s *recorderStmt) Query([]driver.Value) (driver.Rows, error) {
	return nil, io.EOF
}

func openRecorder(t *testing.T) (*sql.DB, *recorder) {
	t.Helper()
	r := &recorder{failures: -1}
	name := "recorder_" + t.Name()
	sql.Register(name, r)
	db, err := sql.Open(name, "")
	if err != nil {
		t.Fatalf("opening recorder driver: %v", err)
	}
	return db, r
}

func plan(sqls ...string) []generate.Statement {
	stmts := make([]generate.Statement, len(sqls))
	for i, s := range sqls {
		stmts[i] = generate.Statement{SQL: s, Kind: generate.KindAlterTable}
	}
	return stmts
}

func TestApplyTransactional(t *testing.T) {
	db, r := openRecorder(t)
	a := NewApplier("postgres", db)

	err := a.Apply(context.Background(), plan(
		"alter table t add column a int;",
		"alter table t add column b int;",
	))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(r.executed) != 2 || r.commits != 1 {
		t.Errorf("executed %d statements, %d commits", len(r.executed), r.commits)
	}
}

func TestApplyTransactionalRollsBack(t *testing.T) {
	db, r := openRecorder(t)
	a := NewApplier("postgres", db)

	err := a.Apply(context.Background(), plan(
		"alter table t add column a int;",
		"alter table boom;",
		"alter table t add column b int;",
	))
	var aerr *ApplyError
	if !errors.As(err, &aerr) {
		t.Fatalf("got %v, want ApplyError", err)
	}
	if aerr.Index != 1 {
		t.Errorf("failed index = %d, want 1", aerr.Index)
	}
	if r.rollbacks != 1 || r.commits != 0 {
		t.Errorf("rollbacks = %d, commits = %d", r.rollbacks, r.commits)
	}
	if len(r.executed) != 1 {
		t.Errorf("executed %d statements after failure, want 1", len(r.executed))
	}
}

func TestResumeAfterPartialApply(t *testing.T) {
	db, r := openRecorder(t)
	r.failures = 1
	stmts := plan(
		"alter table t add column a int;",
		"alter table t add column boom int;",
		"alter table t add column b int;",
	)
	jpath := filepath.Join(t.TempDir(), "journal.yaml")
	j := NewJournal(jpath, "mysql://localhost/app", generate.SQLLines(stmts))

	err := NewApplier("mysql", db).WithJournal(j).Apply(context.Background(), stmts)
	var aerr *ApplyError
	if !errors.As(err, &aerr) {
		t.Fatalf("got %v, want ApplyError", err)
	}
	if aerr.Index != 1 {
		t.Fatalf("failed index = %d, want 1", aerr.Index)
	}
	if got := len(r.executed); got != 1 {
		t.Fatalf("executed %d statements before resume, want 1", got)
	}

	// The journal on disk must point at the failed statement.
	loaded, err := LoadJournal(jpath)
	if err != nil {
		t.Fatalf("LoadJournal: %v", err)
	}
	if loaded == nil || loaded.NextIndex != 1 || loaded.Done {
		t.Fatalf("journal after failure = %+v", loaded)
	}

	// The database already absorbed statement 0, so a plan recomputed
	// from it would hold only the residual two statements. The resume
	// replays the journal's own list, starting where it stopped.
	start, err := loaded.Resume("mysql://localhost/app")
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if start != 1 {
		t.Fatalf("resume index = %d, want 1", start)
	}

	replay := make([]generate.Statement, len(loaded.Statements))
	for i, s := range loaded.Statements {
		replay[i] = generate.Statement{SQL: s}
	}
	if err := NewApplier("mysql", db).WithJournal(loaded).Apply(context.Background(), replay); err != nil {
		t.Fatalf("resumed Apply: %v", err)
	}

	want := generate.SQLLines(stmts)
	if len(r.executed) != len(want) {
		t.Fatalf("executed %v, want all of %v exactly once", r.executed, want)
	}
	for i := range want {
		if r.executed[i] != want[i] {
			t.Errorf("executed[%d] = %q, want %q", i, r.executed[i], want[i])
		}
	}

	final, err := LoadJournal(jpath)
	if err != nil {
		t.Fatalf("LoadJournal after resume: %v", err)
	}
	if final == nil || !final.Done {
		t.Errorf("journal not marked done after resume: %+v", final)
	}
}

func TestApplyJournaledCompletes(t *testing.T) {
	db, r := openRecorder(t)
	stmts := plan(
		"alter table t add column a int;",
		"alter table t add column b int;",
	)
	jpath := filepath.Join(t.TempDir(), "journal.yaml")
	j := NewJournal(jpath, "mysql://localhost/app", generate.SQLLines(stmts))

	if err := NewApplier("mysql", db).WithJournal(j).Apply(context.Background(), stmts); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(r.executed) != 2 {
		t.Errorf("executed %d statements, want 2", len(r.executed))
	}
	loaded, err := LoadJournal(jpath)
	if err != nil {
		t.Fatalf("LoadJournal: %v", err)
	}
	if loaded == nil || !loaded.Done {
		t.Errorf("journal not marked done: %+v", loaded)
	}
}

func TestJournalResumeChecksTarget(t *testing.T) {
	jpath := filepath.Join(t.TempDir(), "journal.yaml")
	j := NewJournal(jpath, "mysql://localhost/app", []string{
		"alter table t add column a int;",
		"alter table t add column b int;",
	})
	j.NextIndex = 1

	if _, err := j.Resume("mysql://localhost/other"); err == nil {
		t.Error("different target not rejected")
	}
	if start, err := j.Resume("mysql://localhost/app"); err != nil || start != 1 {
		t.Errorf("Resume = %d, %v", start, err)
	}
	j.Done = true
	if start, err := j.Resume("mysql://localhost/app"); err != nil || start != 2 {
		t.Errorf("Resume on done journal = %d, %v", start, err)
	}
}

func TestApplyEmptyPlan(t *testing.T) {
	db, r := openRecorder(t)
	if err := NewApplier("mysql", db).Apply(context.Background(), nil); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(r.executed) != 0 {
		t.Errorf("executed %d statements for empty plan", len(r.executed))
	}
}
