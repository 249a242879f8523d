// Package postgres loads a dataset schema from a Postgres table using pgx v5.
// Fields follow the table's column order; the display name is the column
// comment when one is set.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"datasync/internal/schema"
)

// querier is the subset of *pgxpool.Pool the provider uses.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// connect opens a pool and returns it with its close function. Tests replace
// it to avoid a real database.
var connect = func(ctx context.Context, dsn string) (querier, func(), error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	return pool, pool.Close, nil
}

func init() {
	schema.Register("postgres", func(_ context.Context, cfg schema.Config) (schema.Provider, error) {
		return NewProvider(cfg.DSN, cfg.Table)
	})
}

const columnsSQL = `
SELECT c.column_name,
       c.data_type,
       COALESCE(col_description(format('%I.%I', c.table_schema, c.table_name)::regclass, c.ordinal_position::int), '')
FROM information_schema.columns c
WHERE c.table_schema = $1 AND c.table_name = $2
ORDER BY c.ordinal_position`

// Provider reads the columns of one table.
type Provider struct {
	dsn    string
	schema string
	table  string
}

// NewProvider validates dsn and table ("name" or "schema.name"; the schema
// defaults to public).
func NewProvider(dsn, table string) (*Provider, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("schema/postgres: dsn must not be empty")
	}
	sch, tbl, err := splitTable(table)
	if err != nil {
		return nil, err
	}
	return &Provider{dsn: dsn, schema: sch, table: tbl}, nil
}

func splitTable(table string) (string, string, error) {
	parts := strings.Split(strings.TrimSpace(table), ".")
	for i, p := range parts {
		parts[i] = strings.Trim(p, `"`)
	}
	switch {
	case len(parts) == 1 && parts[0] != "":
		return "public", parts[0], nil
	case len(parts) == 2 && parts[0] != "" && parts[1] != "":
		return parts[0], parts[1], nil
	}
	return "", "", fmt.Errorf("schema/postgres: invalid table %q", table)
}

// Dataset implements schema.Provider. The dataset id is "schema.table".
func (p *Provider) Dataset(ctx context.Context) (schema.Dataset, error) {
	q, closeFn, err := connect(ctx, p.dsn)
	if err != nil {
		return schema.Dataset{}, fmt.Errorf("schema/postgres: %w", err)
	}
	defer closeFn()

	rows, err := q.Query(ctx, columnsSQL, p.schema, p.table)
	if err != nil {
		return schema.Dataset{}, fmt.Errorf("schema/postgres: query columns: %w", err)
	}
	defer rows.Close()

	ds := schema.Dataset{ID: p.schema + "." + p.table, Name: p.table}
	for rows.Next() {
		var name, typ, comment string
		if err := rows.Scan(&name, &typ, &comment); err != nil {
			return schema.Dataset{}, fmt.Errorf("schema/postgres: scan: %w", err)
		}
		human := strings.TrimSpace(comment)
		if human == "" {
			human = schema.Humanize(name)
		}
		ds.Fields = append(ds.Fields, schema.Field{FieldName: name, HumanName: human, DataType: typ})
	}
	if err := rows.Err(); err != nil {
		return schema.Dataset{}, fmt.Errorf("schema/postgres: rows: %w", err)
	}
	if len(ds.Fields) == 0 {
		return schema.Dataset{}, fmt.Errorf("schema/postgres: table %s.%s has no columns or does not exist", p.schema, p.table)
	}
	return ds, nil
}
