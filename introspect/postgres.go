package introspect

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ridoystarlord/tplgen/schema"
)

// PgQuerier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type PgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const pgTablesQuery = `
	SELECT
		t.table_name,
		COALESCE(obj_description(format('%I.%I', t.table_schema, t.table_name)::regclass, 'pg_class'), '')
	FROM information_schema.tables t
	WHERE t.table_schema = $1 AND t.table_type = 'BASE TABLE'
	ORDER BY t.table_name;
	`

const pgColumnsQuery = `
	SELECT
		c.column_name,
		c.data_type,
		EXISTS (
			SELECT 1
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
				ON tc.constraint_name = kcu.constraint_name
				AND tc.table_schema = kcu.table_schema
				AND tc.table_name = kcu.table_name
			WHERE tc.constraint_type = 'PRIMARY KEY'
				AND tc.table_schema = c.table_schema
				AND tc.table_name = c.table_name
				AND kcu.column_name = c.column_name
		) AS is_primary,
		COALESCE(col_description(format('%I.%I', c.table_schema, c.table_name)::regclass, c.ordinal_position::int), '')
	FROM information_schema.columns c
	WHERE c.table_schema = $1 AND c.table_name = $2
	ORDER BY c.ordinal_position;
	`

// Postgres reads the base tables of schemaName. Table and column comments
// become descriptions and captions.
func Postgres(ctx context.Context, db PgQuerier, schemaName string) ([]schema.Table, error) {
	rows, err := db.Query(ctx, pgTablesQuery, schemaName)
	if err != nil {
		return nil, fmt.Errorf("querying tables: %v", err)
	}

	var existing []ExistingTable
	for rows.Next() {
		var et ExistingTable
		if err := rows.Scan(&et.TableName, &et.Comment); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning table name: %v", err)
		}
		existing = append(existing, et)
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterating table rows: %v", rows.Err())
	}

	for i := range existing {
		columns, err := pgColumns(ctx, db, schemaName, existing[i].TableName)
		if err != nil {
			return nil, fmt.Errorf("getting columns for table %s: %v", existing[i].TableName, err)
		}
		existing[i].Columns = columns
	}

	return ToTables(existing)
}

func pgColumns(ctx context.Context, db PgQuerier, schemaName, tableName string) ([]ExistingColumn, error) {
	rows, err := db.Query(ctx, pgColumnsQuery, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("querying columns: %v", err)
	}
	defer rows.Close()

	var columns []ExistingColumn
	for rows.Next() {
		var col ExistingColumn
		if err := rows.Scan(&col.ColumnName, &col.DataType, &col.IsPrimaryKey, &col.Comment); err != nil {
			return nil, fmt.Errorf("scanning column: %v", err)
		}
		columns = append(columns, col)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterating column rows: %v", rows.Err())
	}

	return columns, nil
}
