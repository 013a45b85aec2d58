package sdata

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go"
)

// postgresTablesQuery lists every table, view and materialized view outside
// the system schemas, with its schema, name and kind. A table only
// participates in the schema when it carries a JSONB projection column
// (checked separately by introspectColumns).
const postgresTablesQuery = `
SELECT n.nspname AS schema, c.relname AS name,
       CASE c.relkind
         WHEN 'r' THEN 'table'
         WHEN 'v' THEN 'view'
         WHEN 'm' THEN 'materialized_view'
       END AS kind
FROM pg_catalog.pg_class c
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE c.relkind IN ('r', 'v', 'm')
  AND n.nspname NOT IN ('pg_catalog', 'information_schema')
ORDER BY 1, 2`

const postgresColumnsQuery = `
SELECT table_schema, table_name, column_name, data_type,
       (data_type = 'ARRAY') AS is_array
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`

const postgresPrimaryKeyQuery = `
SELECT a.attname
FROM pg_index i
JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
WHERE i.indrelid = ($1 || '.' || $2)::regclass AND i.indisprimary`

const postgresForeignKeyQuery = `
SELECT
  kcu.column_name,
  ccu.table_schema AS ref_schema,
  ccu.table_name   AS ref_table,
  ccu.column_name  AS ref_column
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
JOIN information_schema.constraint_column_usage ccu
  ON tc.constraint_name = ccu.constraint_name AND tc.table_schema = ccu.table_schema
WHERE tc.constraint_type = 'FOREIGN KEY'
  AND tc.table_schema = $1 AND tc.table_name = $2`

// DataColumnName is the convention every bound view/table must follow: one
// JSONB column carrying the full projection for that GraphQL type.
const DataColumnName = "data"

// Introspect discovers the tables, columns and foreign-key relationships of
// a Postgres database and returns them as a DBInfo ready for the schema
// compiler. Connection attempts are retried with backoff (introspection
// happens at boot, never at request time, so a transient connection blip
// shouldn't fail the whole process).
func Introspect(ctx context.Context, db *sql.DB) (*DBInfo, error) {
	err := retry.Do(func() error {
		return db.PingContext(ctx)
	}, retry.Attempts(3), retry.Delay(200*time.Millisecond), retry.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("sdata: introspection connection failed: %w", err)
	}

	rows, err := db.QueryContext(ctx, postgresTablesQuery)
	if err != nil {
		return nil, fmt.Errorf("sdata: listing tables: %w", err)
	}
	defer rows.Close()

	var tables []DBTable
	for rows.Next() {
		var t DBTable
		if err := rows.Scan(&t.Schema, &t.Name, &t.Type); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var bound []DBTable
	var rels []Rel
	byName := make(map[string]DBTable)

	for _, t := range tables {
		cols, hasData, err := introspectColumns(ctx, db, t.Schema, t.Name)
		if err != nil {
			return nil, err
		}
		if !hasData {
			continue // not a GraphQL-bound type
		}
		t.Columns = cols
		t.DataCol = DataColumnName
		bound = append(bound, t)
		byName[t.Name] = t
	}

	for _, t := range bound {
		fks, err := introspectForeignKeys(ctx, db, t.Schema, t.Name)
		if err != nil {
			return nil, err
		}
		for _, fk := range fks {
			right, ok := byName[fk.refTable]
			if !ok {
				continue
			}
			rels = append(rels, Rel{
				Type:     RelOneToMany,
				Left:     right,
				LeftCol:  fk.refColumn,
				Right:    t,
				RightCol: fk.column,
			})
			rels = append(rels, Rel{
				Type:     RelOneToOne,
				Left:     t,
				LeftCol:  fk.column,
				Right:    right,
				RightCol: fk.refColumn,
			})
		}
	}

	return NewDBInfo("postgres", bound, rels), nil
}

func introspectColumns(ctx context.Context, db *sql.DB, schema, table string) ([]DBColumn, bool, error) {
	rows, err := db.QueryContext(ctx, postgresColumnsQuery, schema, table)
	if err != nil {
		return nil, false, fmt.Errorf("sdata: columns of %s.%s: %w", schema, table, err)
	}
	defer rows.Close()

	pk := make(map[string]bool)
	pkRows, err := db.QueryContext(ctx, postgresPrimaryKeyQuery, schema, table)
	if err == nil {
		defer pkRows.Close()
		for pkRows.Next() {
			var name string
			if err := pkRows.Scan(&name); err == nil {
				pk[name] = true
			}
		}
	}

	var cols []DBColumn
	hasData := false
	for rows.Next() {
		var c DBColumn
		var isArray bool
		if err := rows.Scan(&schema, &table, &c.Name, &c.Type, &isArray); err != nil {
			return nil, false, err
		}
		c.Array = isArray
		c.Primary = pk[c.Name]
		if c.Name == DataColumnName && strings.Contains(c.Type, "json") {
			hasData = true
		}
		cols = append(cols, c)
	}
	return cols, hasData, rows.Err()
}

type foreignKey struct {
	column    string
	refTable  string
	refColumn string
}

func introspectForeignKeys(ctx context.Context, db *sql.DB, schema, table string) ([]foreignKey, error) {
	rows, err := db.QueryContext(ctx, postgresForeignKeyQuery, schema, table)
	if err != nil {
		return nil, fmt.Errorf("sdata: foreign keys of %s.%s: %w", schema, table, err)
	}
	defer rows.Close()

	var out []foreignKey
	for rows.Next() {
		var fk foreignKey
		var refSchema string
		if err := rows.Scan(&fk.column, &refSchema, &fk.refTable, &fk.refColumn); err != nil {
			return nil, err
		}
		out = append(out, fk)
	}
	return out, rows.Err()
}
