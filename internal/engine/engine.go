// Package engine wires the pipeline together: introspect both sources,
// diff, generate, apply, verify. Commands and tests drive this one
// orchestrator instead of assembling the pieces themselves.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mydiff/mydiff/internal/apply"
	"github.com/mydiff/mydiff/internal/diff"
	"github.com/mydiff/mydiff/internal/generate"
	"github.com/mydiff/mydiff/internal/introspect"
	"github.com/mydiff/mydiff/internal/schema"
	"github.com/mydiff/mydiff/internal/verify"
)

// Engine runs diff pipelines.
type Engine struct {
	Logger *slog.Logger
}

// New creates an Engine. A nil logger gets the slog default.
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{Logger: logger}
}

// Plan is one computed migration: both schema models, the change set
// between them, and the ordered statements that realize it.
type Plan struct {
	Old        *schema.Schema
	New        *schema.Schema
	Changes    *diff.ChangeSet
	Statements []generate.Statement
	Engine     string
}

// Empty reports whether the plan has nothing to do.
func (p *Plan) Empty() bool { return len(p.Statements) == 0 }

// ReadSource introspects one schema source.
func (e *Engine) ReadSource(ctx context.Context, src string) (*schema.Schema, error) {
	in, err := introspect.Resolve(src)
	if err != nil {
		return nil, err
	}
	if err := in.Connect(ctx); err != nil {
		return nil, err
	}
	defer in.Close()

	sch, err := in.Read(ctx)
	if err != nil {
		return nil, err
	}
	e.Logger.Debug("read schema source", "source", src, "tables", len(sch.Tables))
	return sch, nil
}

// Plan introspects both sources and computes the ordered statement
// sequence that migrates old to new. The quirk policy follows the old
// source's engine, since that is the database the statements will run
// against.
func (e *Engine) Plan(ctx context.Context, oldSrc, newSrc string) (*Plan, error) {
	oldSchema, err := e.ReadSource(ctx, oldSrc)
	if err != nil {
		return nil, fmt.Errorf("old source: %w", err)
	}
	newSchema, err := e.ReadSource(ctx, newSrc)
	if err != nil {
		return nil, fmt.Errorf("new source: %w", err)
	}

	target := targetEngine(oldSchema, newSchema)
	cs := diff.Diff(oldSchema, newSchema)
	stmts, err := generate.New(target).Generate(cs)
	if err != nil {
		return nil, err
	}

	e.Logger.Info("computed migration plan",
		"engine", target,
		"added", len(cs.Added),
		"dropped", len(cs.Dropped),
		"modified", len(cs.Modified),
		"statements", len(stmts))

	return &Plan{
		Old:        oldSchema,
		New:        newSchema,
		Changes:    cs,
		Statements: stmts,
		Engine:     target,
	}, nil
}

// Apply executes the plan's statements against the old source, which
// must be a live database. A non-nil journal makes non-transactional
// runs resumable.
func (e *Engine) Apply(ctx context.Context, oldSrc string, plan *Plan, journal *apply.Journal) error {
	if plan.Empty() {
		e.Logger.Info("nothing to apply; schemas already match")
		return nil
	}

	db, dbEngine, err := OpenTarget(oldSrc)
	if err != nil {
		return err
	}
	defer db.Close()

	e.Logger.Info("applying migration", "statements", len(plan.Statements), "engine", dbEngine)
	return apply.NewApplier(dbEngine, db).WithJournal(journal).Apply(ctx, plan.Statements)
}

// Resume replays the statements recorded in an interrupted journal
// against the old source, continuing at the first unexecuted statement.
// The journal carries the full original sequence; the live schema has
// already absorbed a prefix of it, so a freshly computed plan holds only
// the residual statements and cannot stand in for it.
func (e *Engine) Resume(ctx context.Context, oldSrc string, journal *apply.Journal) error {
	start, err := journal.Resume(oldSrc)
	if err != nil {
		return err
	}
	stmts := make([]generate.Statement, len(journal.Statements))
	for i, s := range journal.Statements {
		stmts[i] = generate.Statement{SQL: s}
	}

	db, dbEngine, err := OpenTarget(oldSrc)
	if err != nil {
		return err
	}
	defer db.Close()

	e.Logger.Info("resuming migration",
		"remaining", len(stmts)-start,
		"total", len(stmts),
		"engine", dbEngine)
	return apply.NewApplier(dbEngine, db).WithJournal(journal).Apply(ctx, stmts)
}

// Verify re-reads the old source and checks it now matches the desired
// schema. Returns *verify.MismatchError with the residual change set
// when it does not.
func (e *Engine) Verify(ctx context.Context, oldSrc string, desired *schema.Schema) error {
	actual, err := e.ReadSource(ctx, oldSrc)
	if err != nil {
		return fmt.Errorf("re-reading migrated schema: %w", err)
	}
	return verify.Verify(actual, desired)
}

// OpenTarget opens a database/sql handle for a live DSN source.
func OpenTarget(src string) (*sql.DB, string, error) {
	switch {
	case strings.HasPrefix(src, "mysql://"):
		dsn, err := mysqlDSN(src)
		if err != nil {
			return nil, "", err
		}
		db, err := sql.Open("mysql", dsn)
		return db, "mysql", err
	case strings.HasPrefix(src, "postgres://"), strings.HasPrefix(src, "postgresql://"):
		db, err := sql.Open("pgx", src)
		return db, "postgres", err
	case strings.HasPrefix(src, "sqlite://"):
		db, err := sql.Open("sqlite3", strings.TrimPrefix(src, "sqlite://"))
		return db, "sqlite", err
	case strings.HasSuffix(src, ".db"), strings.HasSuffix(src, ".sqlite"):
		db, err := sql.Open("sqlite3", src)
		return db, "sqlite", err
	default:
		return nil, "", fmt.Errorf("cannot apply statements to %q: not a live database source", src)
	}
}

// mysqlDSN converts a mysql:// URL into the driver's DSN form.
func mysqlDSN(src string) (string, error) {
	u, err := url.Parse(src)
	if err != nil {
		return "", fmt.Errorf("parsing source URL: %w", err)
	}
	dsn := ""
	if u.User != nil {
		dsn = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			dsn += ":" + pw
		}
		dsn += "@"
	}
	host := u.Host
	if u.Port() == "" {
		host += ":3306"
	}
	return dsn + fmt.Sprintf("tcp(%s)%s", host, u.Path), nil
}

// targetEngine picks the quirk-policy engine for a plan: a live old
// source wins, then a live new source, then mysql, the engine the
// fixture corpus documents.
func targetEngine(oldSchema, newSchema *schema.Schema) string {
	if oldSchema.Engine != "" {
		return oldSchema.Engine
	}
	if newSchema.Engine != "" {
		return newSchema.Engine
	}
	return "mysql"
}
