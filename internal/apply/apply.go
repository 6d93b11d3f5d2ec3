// Package apply executes a generated statement sequence against a live
// database. Engines with transactional DDL run the whole sequence in one
// transaction; engines without it run statement by statement behind a
// resumable journal.
package apply

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mydiff/mydiff/internal/generate"
)

// Execer runs one SQL statement. *sql.DB and *sql.Tx both satisfy it.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ApplyError reports the statement that failed and its position in the
// sequence.
type ApplyError struct {
	Index     int
	Statement string
	Err       error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("applying statement %d (%s): %v", e.Index+1, e.Statement, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// Applier runs statement sequences against one target database.
type Applier struct {
	engine  string
	db      *sql.DB
	journal *Journal
}

// NewApplier returns an Applier for the given engine and open connection.
func NewApplier(engine string, db *sql.DB) *Applier {
	return &Applier{engine: engine, db: db}
}

// WithJournal attaches a progress journal. The caller validates a loaded
// journal's target with Resume before attaching it. Only
// non-transactional engines checkpoint to it; transactional engines roll
// back wholesale on failure and have nothing to resume.
func (a *Applier) WithJournal(j *Journal) *Applier {
	a.journal = j
	return a
}

// transactionalDDL reports whether the engine rolls DDL back with the
// enclosing transaction. MySQL commits implicitly before each DDL
// statement, so a transaction would be theater.
func transactionalDDL(engine string) bool {
	return engine == "postgres" || engine == "sqlite"
}

// Apply executes the sequence in order. When a journal is attached and
// holds progress for this same sequence, execution resumes after the last
// checkpointed statement.
func (a *Applier) Apply(ctx context.Context, stmts []generate.Statement) error {
	if len(stmts) == 0 {
		return nil
	}
	if transactionalDDL(a.engine) {
		return a.applyTx(ctx, stmts)
	}
	return a.applyJournaled(ctx, stmts)
}

func (a *Applier) applyTx(ctx context.Context, stmts []generate.Statement) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	if err := runAll(ctx, tx, stmts, 0); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration: %w", err)
	}
	return nil
}

func (a *Applier) applyJournaled(ctx context.Context, stmts []generate.Statement) error {
	start := 0
	if a.journal != nil {
		start = a.journal.NextIndex
	}
	for i := start; i < len(stmts); i++ {
		if _, err := a.db.ExecContext(ctx, stmts[i].SQL); err != nil {
			return &ApplyError{Index: i, Statement: stmts[i].SQL, Err: err}
		}
		if a.journal != nil {
			if err := a.journal.Advance(i); err != nil {
				return err
			}
		}
	}
	if a.journal != nil {
		return a.journal.Finish()
	}
	return nil
}

func runAll(ctx context.Context, ex Execer, stmts []generate.Statement, start int) error {
	for i := start; i < len(stmts); i++ {
		if _, err := ex.ExecContext(ctx, stmts[i].SQL); err != nil {
			return &ApplyError{Index: i, Statement: stmts[i].SQL, Err: err}
		}
	}
	return nil
}
