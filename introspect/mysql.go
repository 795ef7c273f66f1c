package introspect

import (
	"context"
	"fmt"

	"github.com/ridoystarlord/tplgen/schema"
)

const mysqlTablesQuery = `SELECT TABLE_NAME, TABLE_COMMENT FROM information_schema.TABLES WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`

const mysqlColumnsQuery = `SELECT TABLE_NAME, COLUMN_NAME, COLUMN_TYPE, COLUMN_KEY, COLUMN_COMMENT FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = ? ORDER BY TABLE_NAME, ORDINAL_POSITION`

// MySQL reads the base tables of database with two catalog queries.
func MySQL(ctx context.Context, db SQLQuerier, database string) ([]schema.Table, error) {
	if database == "" {
		return nil, fmt.Errorf("mysql introspection needs a database name")
	}

	rows, err := db.QueryContext(ctx, mysqlTablesQuery, database)
	if err != nil {
		return nil, fmt.Errorf("querying tables: %v", err)
	}

	var existing []ExistingTable
	index := make(map[string]int)
	for rows.Next() {
		var et ExistingTable
		if err := rows.Scan(&et.TableName, &et.Comment); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning table name: %v", err)
		}
		index[et.TableName] = len(existing)
		existing = append(existing, et)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating table rows: %v", err)
	}

	rows, err = db.QueryContext(ctx, mysqlColumnsQuery, database)
	if err != nil {
		return nil, fmt.Errorf("querying columns: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var table, key string
		var col ExistingColumn
		if err := rows.Scan(&table, &col.ColumnName, &col.DataType, &key, &col.Comment); err != nil {
			return nil, fmt.Errorf("scanning column: %v", err)
		}
		i, ok := index[table]
		if !ok {
			continue // view columns
		}
		col.IsPrimaryKey = key == "PRI"
		existing[i].Columns = append(existing[i].Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating column rows: %v", err)
	}

	return ToTables(existing)
}
