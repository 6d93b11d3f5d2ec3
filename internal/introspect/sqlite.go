package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mydiff/mydiff/internal/schema"
)

// SQLite reads a schema from an SQLite database file.
type SQLite struct {
	path string
	db   *sql.DB
}

// NewSQLite returns an SQLite introspector for the database file at path.
func NewSQLite(path string) *SQLite {
	return &SQLite{path: path}
}

func (s *SQLite) Connect(ctx context.Context) error {
	db, err := sql.Open("sqlite3", s.path)
	if err != nil {
		return &ConnectError{Engine: "sqlite", Addr: s.path, Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return &ConnectError{Engine: "sqlite", Addr: s.path, Err: err}
	}
	s.db = db
	return nil
}

func (s *SQLite) Read(ctx context.Context) (*schema.Schema, error) {
	if s.db == nil {
		return nil, fmt.Errorf("not connected; call Connect first")
	}

	names, err := s.tableNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading tables: %w", err)
	}

	var tables []schema.Table
	for _, name := range names {
		t, err := s.readTable(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("reading table %s: %w", name, err)
		}
		tables = append(tables, *t)
	}

	sch := &schema.Schema{
		Engine: "sqlite",
		Name:   strings.TrimSuffix(filepath.Base(s.path), filepath.Ext(s.path)),
		Tables: tables,
	}
	if err := resolveImplicitRefs(sch); err != nil {
		return nil, err
	}
	if err := sch.Validate(); err != nil {
		return nil, err
	}
	return sch, nil
}

// resolveImplicitRefs fills in referenced columns for constraints declared
// without them ("references parent"), which target the parent's primary
// key.
func resolveImplicitRefs(sch *schema.Schema) error {
	for ti := range sch.Tables {
		t := &sch.Tables[ti]
		for fi := range t.ForeignKeys {
			fk := &t.ForeignKeys[fi]
			implicit := false
			for _, c := range fk.ReferencedColumns {
				if c == "" {
					implicit = true
					break
				}
			}
			if !implicit {
				continue
			}
			ref := sch.Table(fk.ReferencedTable)
			if ref == nil {
				// Validate reports the unknown table.
				continue
			}
			pk := ref.PrimaryKey()
			if pk == nil || len(pk.Columns) != len(fk.Columns) {
				return fmt.Errorf("foreign key %s on %s references the primary key of %s, which does not match its column count", fk.Name, t.Name, fk.ReferencedTable)
			}
			fk.ReferencedColumns = append([]string(nil), pk.Columns...)
		}
	}
	return nil
}

func (s *SQLite) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

func (s *SQLite) tableNames(ctx context.Context) ([]string, error) {
	query := `
		SELECT name FROM sqlite_master
		WHERE type = 'table'
		  AND name NOT LIKE 'sqlite_%'
		ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (s *SQLite) readTable(ctx context.Context, name string) (*schema.Table, error) {
	t := &schema.Table{Name: name}

	if err := s.readColumns(ctx, t); err != nil {
		return nil, err
	}
	if err := s.readKeys(ctx, t); err != nil {
		return nil, err
	}
	if err := s.readForeignKeys(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *SQLite) readColumns(ctx context.Context, t *schema.Table) error {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", t.Name))
	if err != nil {
		return err
	}
	defer rows.Close()

	var pkCols []struct {
		name string
		rank int
	}
	for rows.Next() {
		var (
			cid, notNull, pk int
			colName, colType string
			defaultVal       *string
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &defaultVal, &pk); err != nil {
			return err
		}
		col := schema.Column{
			Name:     colName,
			Type:     strings.ToLower(colType),
			Nullable: notNull == 0,
			Default:  defaultVal,
		}
		if defaultVal != nil {
			v := strings.Trim(*defaultVal, "'")
			col.Default = &v
		}
		// A single-column integer primary key is the rowid alias and
		// auto-assigns values.
		if pk == 1 && strings.EqualFold(colType, "integer") {
			col.AutoIncrement = true
			col.Nullable = false
		}
		t.Columns = append(t.Columns, col)
		if pk > 0 {
			pkCols = append(pkCols, struct {
				name string
				rank int
			}{colName, pk})
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(pkCols) > 0 {
		key := schema.Key{Kind: schema.KeyPrimary}
		for rank := 1; rank <= len(pkCols); rank++ {
			for _, pc := range pkCols {
				if pc.rank == rank {
					key.Columns = append(key.Columns, pc.name)
				}
			}
		}
		if len(pkCols) > 1 {
			for i := range t.Columns {
				// Multi-column primary keys do not alias the rowid.
				t.Columns[i].AutoIncrement = false
			}
		}
		t.Keys = append(t.Keys, key)
	}
	return nil
}

func (s *SQLite) readKeys(ctx context.Context, t *schema.Table) error {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%q)", t.Name))
	if err != nil {
		return err
	}

	type indexEntry struct {
		name   string
		unique bool
	}
	var indexes []indexEntry
	for rows.Next() {
		var (
			seq, unique, partial int
			name, origin         string
		)
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			rows.Close()
			return err
		}
		// Autoindexes back primary key and inline unique declarations.
		if origin != "c" {
			continue
		}
		indexes = append(indexes, indexEntry{name: name, unique: unique == 1})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, ix := range indexes {
		cols, err := s.indexColumns(ctx, ix.name)
		if err != nil {
			return err
		}
		kind := schema.KeyIndex
		if ix.unique {
			kind = schema.KeyUnique
		}
		t.Keys = append(t.Keys, schema.Key{Name: ix.name, Kind: kind, Columns: cols})
	}
	return nil
}

func (s *SQLite) indexColumns(ctx context.Context, index string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(%q)", index))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			seqno, cid int
			name       string
		)
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

// readForeignKeys reads the constraint list. SQLite does not name foreign
// keys, so each gets the conventional generated name for its position.
func (s *SQLite) readForeignKeys(ctx context.Context, t *schema.Table) error {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%q)", t.Name))
	if err != nil {
		return err
	}
	defer rows.Close()

	byID := map[int]*schema.ForeignKey{}
	var order []int
	for rows.Next() {
		var (
			id, seq                       int
			refTable, from                string
			to                            *string
			onUpdate, onDelete, matchType string
		)
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &matchType); err != nil {
			return err
		}
		fk, ok := byID[id]
		if !ok {
			fk = &schema.ForeignKey{ReferencedTable: refTable}
			byID[id] = fk
			order = append(order, id)
		}
		fk.Columns = append(fk.Columns, from)
		// to is NULL when the constraint targets the parent's implicit
		// primary key; resolved once every table has been read.
		refCol := ""
		if to != nil {
			refCol = *to
		}
		fk.ReferencedColumns = append(fk.ReferencedColumns, refCol)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	// foreign_key_list reports constraints newest first; reverse to get
	// declaration order before assigning positional names.
	for i := len(order) - 1; i >= 0; i-- {
		fk := byID[order[i]]
		fk.Name = fmt.Sprintf("%s_ibfk_%d", t.Name, len(t.ForeignKeys)+1)
		t.ForeignKeys = append(t.ForeignKeys, *fk)
	}
	return nil
}
