package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"github.com/mydiff/mydiff/internal/schema"
)

// MySQL reads a schema from a live MySQL catalog.
type MySQL struct {
	src      string
	database string
	db       *sql.DB
}

// NewMySQL returns a MySQL introspector for a mysql:// source URL.
func NewMySQL(src string) *MySQL {
	return &MySQL{src: src}
}

func (m *MySQL) Connect(ctx context.Context) error {
	u, err := url.Parse(m.src)
	if err != nil {
		return &ConnectError{Engine: "mysql", Addr: m.src, Err: err}
	}
	m.database = strings.TrimPrefix(u.Path, "/")
	if m.database == "" {
		return &ConnectError{Engine: "mysql", Addr: u.Host, Err: fmt.Errorf("source URL names no database")}
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
	dsn += fmt.Sprintf("tcp(%s)/%s", host, m.database)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return &ConnectError{Engine: "mysql", Addr: u.Host, Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return &ConnectError{Engine: "mysql", Addr: u.Host, Err: err}
	}
	m.db = db
	return nil
}

func (m *MySQL) Read(ctx context.Context) (*schema.Schema, error) {
	if m.db == nil {
		return nil, fmt.Errorf("not connected; call Connect first")
	}

	tables, err := m.readTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading tables: %w", err)
	}

	tableMap := make(map[string]*schema.Table, len(tables))
	for i := range tables {
		tableMap[tables[i].Name] = &tables[i]
	}

	if err := m.readColumns(ctx, tableMap); err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}
	if err := m.readForeignKeys(ctx, tableMap); err != nil {
		return nil, fmt.Errorf("reading foreign keys: %w", err)
	}
	if err := m.readKeys(ctx, tableMap); err != nil {
		return nil, fmt.Errorf("reading keys: %w", err)
	}

	sch := &schema.Schema{
		Engine: "mysql",
		Name:   m.database,
		Tables: tables,
	}
	if err := sch.Validate(); err != nil {
		return nil, err
	}
	return sch, nil
}

func (m *MySQL) Close() error {
	if m.db != nil {
		err := m.db.Close()
		m.db = nil
		return err
	}
	return nil
}

func (m *MySQL) readTables(ctx context.Context) ([]schema.Table, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ?
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	rows, err := m.db.QueryContext(ctx, query, m.database)
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

func (m *MySQL) readColumns(ctx context.Context, tableMap map[string]*schema.Table) error {
	query := `
		SELECT table_name, column_name, column_type, is_nullable, column_default, extra
		FROM information_schema.columns
		WHERE table_schema = ?
		ORDER BY table_name, ordinal_position`

	rows, err := m.db.QueryContext(ctx, query, m.database)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			tableName, colName, colType, nullable, extra string
			defaultVal                                   *string
		)
		if err := rows.Scan(&tableName, &colName, &colType, &nullable, &defaultVal, &extra); err != nil {
			return err
		}
		t, ok := tableMap[tableName]
		if !ok {
			continue
		}
		t.Columns = append(t.Columns, schema.Column{
			Name:          colName,
			Type:          strings.ToLower(colType),
			Nullable:      nullable == "YES",
			Default:       defaultVal,
			AutoIncrement: strings.Contains(extra, "auto_increment"),
		})
	}
	return rows.Err()
}

func (m *MySQL) readForeignKeys(ctx context.Context, tableMap map[string]*schema.Table) error {
	query := `
		SELECT table_name, constraint_name, column_name,
		       referenced_table_name, referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ?
		  AND referenced_table_name IS NOT NULL
		ORDER BY table_name, constraint_name, ordinal_position`

	rows, err := m.db.QueryContext(ctx, query, m.database)
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

// readKeys fetches indexes. Indexes named after a foreign key on the same
// table back that constraint and stay out of the model; they only surface
// once the constraint itself is gone, which is how a dropped composite
// foreign key leaves its index behind.
func (m *MySQL) readKeys(ctx context.Context, tableMap map[string]*schema.Table) error {
	query := `
		SELECT table_name, index_name, non_unique, column_name
		FROM information_schema.statistics
		WHERE table_schema = ?
		ORDER BY table_name, index_name, seq_in_index`

	rows, err := m.db.QueryContext(ctx, query, m.database)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			tableName, indexName, col string
			nonUnique                 int
		)
		if err := rows.Scan(&tableName, &indexName, &nonUnique, &col); err != nil {
			return err
		}
		t, ok := tableMap[tableName]
		if !ok {
			continue
		}
		if indexName != "PRIMARY" && t.ForeignKey(indexName) != nil {
			continue
		}

		name := indexName
		kind := schema.KeyIndex
		switch {
		case indexName == "PRIMARY":
			name = ""
			kind = schema.KeyPrimary
		case nonUnique == 0:
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
