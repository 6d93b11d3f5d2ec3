// Package introspect converts a schema source (a live database catalog, a
// DDL script or a saved snapshot) into a schema model. The rest of the
// system depends only on the Introspector contract; it never parses SQL or
// speaks a wire protocol itself.
package introspect

import (
	"context"
	"fmt"
	"strings"

	"github.com/mydiff/mydiff/internal/schema"
)

// Introspector reads one schema source.
type Introspector interface {
	// Connect establishes the connection or loads the file behind the
	// source. Reading before a successful Connect fails.
	Connect(ctx context.Context) error

	// Read produces a validated schema model from the source.
	Read(ctx context.Context) (*schema.Schema, error)

	// Close releases the underlying connection, if any.
	Close() error
}

// ConnectError reports an unreachable database.
type ConnectError struct {
	Engine string
	Addr   string
	Err    error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connecting to %s at %s: %v", e.Engine, e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// ParseError reports malformed DDL in a script source.
type ParseError struct {
	Line   int
	Stmt   string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parsing DDL at line %d: %s", e.Line, e.Reason)
	}
	return "parsing DDL: " + e.Reason
}

// UnsupportedConstructError reports a DDL feature with no model
// representation.
type UnsupportedConstructError struct {
	Construct string
	Stmt      string
}

func (e *UnsupportedConstructError) Error() string {
	return fmt.Sprintf("unsupported DDL construct %q in %q", e.Construct, truncate(e.Stmt, 60))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Resolve builds an Introspector from a source argument: a mysql://,
// postgres:// or sqlite:// DSN, a .sql DDL script, or a .yaml schema
// snapshot.
func Resolve(src string) (Introspector, error) {
	switch {
	case strings.HasPrefix(src, "mysql://"):
		return NewMySQL(src), nil
	case strings.HasPrefix(src, "postgres://"), strings.HasPrefix(src, "postgresql://"):
		return NewPostgres(src), nil
	case strings.HasPrefix(src, "sqlite://"):
		return NewSQLite(strings.TrimPrefix(src, "sqlite://")), nil
	case strings.HasSuffix(src, ".sql"):
		return NewScriptFile(src), nil
	case strings.HasSuffix(src, ".yaml"), strings.HasSuffix(src, ".yml"):
		return NewSnapshot(src), nil
	case strings.HasSuffix(src, ".db"), strings.HasSuffix(src, ".sqlite"):
		return NewSQLite(src), nil
	default:
		return nil, fmt.Errorf("unrecognized schema source %q: want a mysql://, postgres:// or sqlite:// DSN, a .sql script, or a .yaml snapshot", src)
	}
}
