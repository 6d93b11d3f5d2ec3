package introspect

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mydiff/mydiff/internal/schema"
)

// Postgres reads a schema from a live PostgreSQL catalog. Only the public
// schema is read unless the source URL carries a search_path option.
type Postgres struct {
	src      string
	database string
	pgSchema string
	pool     *pgxpool.Pool
}

// NewPostgres returns a Postgres introspector for a postgres:// source URL.
func NewPostgres(src string) *Postgres {
	return &Postgres{src: src, pgSchema: "public"}
}

func (p *Postgres) Connect(ctx context.Context) error {
	u, err := url.Parse(p.src)
	if err != nil {
		return &ConnectError{Engine: "postgres", Addr: p.src, Err: err}
	}
	p.database = strings.TrimPrefix(u.Path, "/")
	if s := u.Query().Get("search_path"); s != "" {
		p.pgSchema = s
	}

	poolCfg, err := pgxpool.ParseConfig(p.src)
	if err != nil {
		return &ConnectError{Engine: "postgres", Addr: u.Host, Err: err}
	}
	// A catalog read never benefits from more than one connection.
	poolCfg.MaxConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return &ConnectError{Engine: "postgres", Addr: u.Host, Err: err}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return &ConnectError{Engine: "postgres", Addr: u.Host, Err: err}
	}
	p.pool = pool
	return nil
}

func (p *Postgres) Read(ctx context.Context) (*schema.Schema, error) {
	if p.pool == nil {
		return nil, fmt.Errorf("not connected; call Connect first")
	}

	tables, err := p.readTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading tables: %w", err)
	}

	tableMap := make(map[string]*schema.Table, len(tables))
	for i := range tables {
		tableMap[tables[i].Name] = &tables[i]
	}

	if err := p.readColumns(ctx, tableMap); err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}
	if err := p.readKeys(ctx, tableMap); err != nil {
		return nil, fmt.Errorf("reading keys: %w", err)
	}
	if err := p.readForeignKeys(ctx, tableMap); err != nil {
		return nil, fmt.Errorf("reading foreign keys: %w", err)
	}

	sch := &schema.Schema{
		Engine: "postgres",
		Name:   p.database,
		Tables: tables,
	}
	if err := sch.Validate(); err != nil {
		return nil, err
	}
	return sch, nil
}

func (p *Postgres) Close() error {
	if p.pool != nil {
		p.pool.Close()
		p.pool = nil
	}
	return nil
}

func (p *Postgres) readTables(ctx context.Context) ([]schema.Table, error) {
	query := `
		SELECT c.relname
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1
		  AND c.relkind = 'r'
		ORDER BY c.relname`

	rows, err := p.pool.Query(ctx, query, p.pgSchema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []schema.Table
	for rows.Next() {
		var t schema.Table
		if err := rows.Scan(&t.Name); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func (p *Postgres) readColumns(ctx context.Context, tableMap map[string]*schema.Table) error {
	query := `
		SELECT table_name, column_name, data_type, is_nullable, column_default
		FROM information_schema.columns
		WHERE table_schema = $1
		ORDER BY table_name, ordinal_position`

	rows, err := p.pool.Query(ctx, query, p.pgSchema)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			tableName, colName, dataType, nullable string
			defaultVal                             *string
		)
		if err := rows.Scan(&tableName, &colName, &dataType, &nullable, &defaultVal); err != nil {
			return err
		}
		t, ok := tableMap[tableName]
		if !ok {
			continue
		}
		col := schema.Column{
			Name:     colName,
			Type:     strings.ToLower(dataType),
			Nullable: nullable == "YES",
			Default:  defaultVal,
		}
		// Sequence-backed defaults are the serial idiom, the closest
		// relative of auto increment.
		if defaultVal != nil && strings.HasPrefix(*defaultVal, "nextval(") {
			col.AutoIncrement = true
			col.Default = nil
		}
		t.Columns = append(t.Columns, col)
	}
	return rows.Err()
}

// readKeys fetches primary keys, unique constraints and plain indexes in
// one pass over pg_index.
func (p *Postgres) readKeys(ctx context.Context, tableMap map[string]*schema.Table) error {
	query := `
		SELECT
			t.relname AS table_name,
			ic.relname AS index_name,
			ix.indisprimary,
			ix.indisunique,
			a.attname
		FROM pg_index ix
		JOIN pg_class t ON t.oid = ix.indrelid
		JOIN pg_class ic ON ic.oid = ix.indexrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN unnest(ix.indkey) WITH ORDINALITY AS k(attnum, ord) ON true
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
		WHERE n.nspname = $1
		  AND t.relkind = 'r'
		ORDER BY t.relname, ic.relname, k.ord`

	rows, err := p.pool.Query(ctx, query, p.pgSchema)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			tableName, indexName, col string
			isPrimary, isUnique       bool
		)
		if err := rows.Scan(&tableName, &indexName, &isPrimary, &isUnique, &col); err != nil {
			return err
		}
		t, ok := tableMap[tableName]
		if !ok {
			continue
		}

		name := indexName
		kind := schema.KeyIndex
		switch {
		case isPrimary:
			name = ""
			kind = schema.KeyPrimary
		case isUnique:
			kind = schema.KeyUnique
		}

		var key *schema.Key
		for i := range t.Keys {
			if t.Keys[i].Name == name && t.Keys[i].Kind == kind {
				key = &t.Keys[i]
				break
			}
		}
		if key == nil {
			t.Keys = append(t.Keys, schema.Key{Name: name, Kind: kind})
			key = &t.Keys[len(t.Keys)-1]
		}
		key.Columns = append(key.Columns, col)
	}
	return rows.Err()
}

func (p *Postgres) readForeignKeys(ctx context.Context, tableMap map[string]*schema.Table) error {
	query := `
		SELECT
			t.relname AS table_name,
			con.conname,
			a.attname,
			rt.relname AS referenced_table,
			ra.attname AS referenced_column
		FROM pg_constraint con
		JOIN pg_class t ON t.oid = con.conrelid
		JOIN pg_class rt ON rt.oid = con.confrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN unnest(con.conkey) WITH ORDINALITY AS k(attnum, ord) ON true
		JOIN unnest(con.confkey) WITH ORDINALITY AS fk(attnum, ord) ON fk.ord = k.ord
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
		JOIN pg_attribute ra ON ra.attrelid = rt.oid AND ra.attnum = fk.attnum
		WHERE con.contype = 'f'
		  AND n.nspname = $1
		ORDER BY t.relname, con.conname, k.ord`

	rows, err := p.pool.Query(ctx, query, p.pgSchema)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, name, col, refTable, refCol string
		if err := rows.Scan(&tableName, &name, &col, &refTable, &refCol); err != nil {
			return err
		}
		t, ok := tableMap[tableName]
		if !ok {
			continue
		}
		fk := t.ForeignKey(name)
		if fk == nil {
			t.ForeignKeys = append(t.ForeignKeys, schema.ForeignKey{
				Name:            name,
				ReferencedTable: refTable,
			})
			fk = &t.ForeignKeys[len(t.ForeignKeys)-1]
		}
		fk.Columns = append(fk.Columns, col)
		fk.ReferencedColumns = append(fk.ReferencedColumns, refCol)
	}
	return rows.Err()
}
