// Package sqldb loads a dataset schema from a table in SQLite, SQL Server or
// MySQL through database/sql. Fields follow column order; display names come
// from column comments where the engine has them.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"
	_ "modernc.org/sqlite"

	"datasync/internal/schema"
)

// dialect describes how one engine lists the columns of a table. The query
// takes (schema, table) and returns (name, type, comment) rows.
type dialect struct {
	driver        string
	defaultSchema string
	query         string
	checkDSN      func(string) error
}

var dialects = map[string]dialect{
	"sqlite": {
		driver:        "sqlite",
		defaultSchema: "main",
		query:         `SELECT name, type, '' FROM pragma_table_info(?2, ?1) ORDER BY cid`,
	},
	"sqlserver": {
		driver:        "sqlserver",
		defaultSchema: "dbo",
		query: `
SELECT c.COLUMN_NAME, c.DATA_TYPE, COALESCE(CAST(ep.value AS nvarchar(4000)), '')
FROM INFORMATION_SCHEMA.COLUMNS c
LEFT JOIN sys.extended_properties ep
  ON ep.major_id = OBJECT_ID(QUOTENAME(c.TABLE_SCHEMA) + '.' + QUOTENAME(c.TABLE_NAME))
 AND ep.minor_id = COLUMNPROPERTY(ep.major_id, c.COLUMN_NAME, 'ColumnId')
 AND ep.class = 1
 AND ep.name = 'MS_Description'
WHERE c.TABLE_SCHEMA = @p1 AND c.TABLE_NAME = @p2
ORDER BY c.ORDINAL_POSITION`,
		checkDSN: func(dsn string) error {
			_, err := msdsn.Parse(dsn)
			return err
		},
	},
	"mysql": {
		driver: "mysql",
		query: `
SELECT COLUMN_NAME, DATA_TYPE, COLUMN_COMMENT
FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) AND TABLE_NAME = ?
ORDER BY ORDINAL_POSITION`,
		checkDSN: func(dsn string) error {
			_, err := mysql.ParseDSN(dsn)
			return err
		},
	},
}

func init() {
	for kind := range dialects {
		kind := kind
		schema.Register(kind, func(_ context.Context, cfg schema.Config) (schema.Provider, error) {
			return NewProvider(kind, cfg.DSN, cfg.Table)
		})
	}
}

// Provider reads the columns of one table.
type Provider struct {
	kind   string
	d      dialect
	dsn    string
	db     *sql.DB
	schema string
	table  string
}

// NewProvider validates the kind, DSN and table ("name" or "schema.name").
// The database is opened on each Dataset call.
func NewProvider(kind, dsn, table string) (*Provider, error) {
	d, ok := dialects[kind]
	if !ok {
		return nil, fmt.Errorf("schema/sqldb: unknown kind %q", kind)
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("schema/sqldb: %s: dsn must not be empty", kind)
	}
	if d.checkDSN != nil {
		if err := d.checkDSN(dsn); err != nil {
			return nil, fmt.Errorf("schema/sqldb: %s dsn: %w", kind, err)
		}
	}
	sch, tbl, err := splitTable(table, d.defaultSchema)
	if err != nil {
		return nil, err
	}
	return &Provider{kind: kind, d: d, dsn: dsn, schema: sch, table: tbl}, nil
}

// NewWithDB builds a provider over an already open database. The caller
// keeps ownership of db.
func NewWithDB(kind string, db *sql.DB, table string) (*Provider, error) {
	d, ok := dialects[kind]
	if !ok {
		return nil, fmt.Errorf("schema/sqldb: unknown kind %q", kind)
	}
	sch, tbl, err := splitTable(table, d.defaultSchema)
	if err != nil {
		return nil, err
	}
	return &Provider{kind: kind, d: d, db: db, schema: sch, table: tbl}, nil
}

func splitTable(table, defaultSchema string) (string, string, error) {
	parts := strings.Split(strings.TrimSpace(table), ".")
	for i, p := range parts {
		parts[i] = strings.Trim(p, "\"`[]")
	}
	switch {
	case len(parts) == 1 && parts[0] != "":
		return defaultSchema, parts[0], nil
	case len(parts) == 2 && parts[0] != "" && parts[1] != "":
		return parts[0], parts[1], nil
	}
	return "", "", fmt.Errorf("schema/sqldb: invalid table %q", table)
}

// Dataset implements schema.Provider.
func (p *Provider) Dataset(ctx context.Context) (schema.Dataset, error) {
	db := p.db
	if db == nil {
		var err error
		db, err = sql.Open(p.d.driver, p.dsn)
		if err != nil {
			return schema.Dataset{}, fmt.Errorf("schema/sqldb: %s: open: %w", p.kind, err)
		}
		defer db.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			return schema.Dataset{}, fmt.Errorf("schema/sqldb: %s: ping: %w", p.kind, err)
		}
	}

	rows, err := db.QueryContext(ctx, p.d.query, p.schema, p.table)
	if err != nil {
		return schema.Dataset{}, fmt.Errorf("schema/sqldb: %s: query columns: %w", p.kind, err)
	}
	defer rows.Close()

	ds := schema.Dataset{ID: p.table, Name: p.table}
	if p.schema != "" && p.schema != p.d.defaultSchema {
		ds.ID = p.schema + "." + p.table
	}
	for rows.Next() {
		var name, typ string
		var comment sql.NullString
		if err := rows.Scan(&name, &typ, &comment); err != nil {
			return schema.Dataset{}, fmt.Errorf("schema/sqldb: %s: scan: %w", p.kind, err)
		}
		human := strings.TrimSpace(comment.String)
		if human == "" {
			human = schema.Humanize(name)
		}
		ds.Fields = append(ds.Fields, schema.Field{FieldName: name, HumanName: human, DataType: strings.ToLower(typ)})
	}
	if err := rows.Err(); err != nil {
		return schema.Dataset{}, fmt.Errorf("schema/sqldb: %s: rows: %w", p.kind, err)
	}
	if len(ds.Fields) == 0 {
		return schema.Dataset{}, errors.New("schema/sqldb: " + p.kind + ": table " + p.table + " has no columns or does not exist")
	}
	return ds, nil
}
