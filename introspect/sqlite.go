package introspect

import (
	"context"
	"fmt"

	"github.com/ridoystarlord/tplgen/schema"
)

const sqliteTablesQuery = `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`

const sqliteColumnsQuery = `SELECT name, type, pk FROM pragma_table_info(?) ORDER BY cid`

// SQLite reads every user table. SQLite has no comments, so captions stay
// empty.
func SQLite(ctx context.Context, db SQLQuerier) ([]schema.Table, error) {
	rows, err := db.QueryContext(ctx, sqliteTablesQuery)
	if err != nil {
		return nil, fmt.Errorf("querying tables: %v", err)
	}

	var existing []ExistingTable
	for rows.Next() {
		var et ExistingTable
		if err := rows.Scan(&et.TableName); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning table name: %v", err)
		}
		existing = append(existing, et)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating table rows: %v", err)
	}

	for i := range existing {
		columns, err := sqliteColumns(ctx, db, existing[i].TableName)
		if err != nil {
			return nil, fmt.Errorf("getting columns for table %s: %v", existing[i].TableName, err)
		}
		existing[i].Columns = columns
	}

	return ToTables(existing)
}

func sqliteColumns(ctx context.Context, db SQLQuerier, table string) ([]ExistingColumn, error) {
	rows, err := db.QueryContext(ctx, sqliteColumnsQuery, table)
	if err != nil {
		return nil, fmt.Errorf("querying columns: %v", err)
	}
	defer rows.Close()

	var columns []ExistingColumn
	for rows.Next() {
		var col ExistingColumn
		var pk int
		if err := rows.Scan(&col.ColumnName, &col.DataType, &pk); err != nil {
			return nil, fmt.Errorf("scanning column: %v", err)
		}
		// pk is the 1-based position within the primary key
		if pk == 1 {
			col.IsPrimaryKey = true
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating column rows: %v", err)
	}

	return columns, nil
}
