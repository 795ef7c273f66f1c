package introspect

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ridoystarlord/tplgen/database"
	"github.com/ridoystarlord/tplgen/schema"
)

// ExistingTable is a table as read from a database catalog.
type ExistingTable struct {
	TableName string
	Comment   string
	Columns   []ExistingColumn
}

type ExistingColumn struct {
	ColumnName   string
	DataType     string
	IsPrimaryKey bool
	Comment      string
}

// SQLQuerier is the part of *sql.DB the database/sql introspectors use.
type SQLQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Load introspects the database behind h. schemaName is the postgres
// schema or the mysql database; it is ignored for sqlite.
func Load(ctx context.Context, h *database.Handle, schemaName string) ([]schema.Table, error) {
	switch h.Source {
	case database.Postgres:
		if schemaName == "" {
			schemaName = "public"
		}
		return Postgres(ctx, h.Pool, schemaName)
	case database.MySQL:
		return MySQL(ctx, h.DB, schemaName)
	case database.SQLite:
		return SQLite(ctx, h.DB)
	}
	return nil, fmt.Errorf("unsupported database source %q", h.Source)
}

// ToTables converts catalog tables to schema tables. Text columns that are
// not the primary key become searchable. With a composite primary key only
// its first column is kept as the key.
func ToTables(existing []ExistingTable) ([]schema.Table, error) {
	tables := make([]schema.Table, 0, len(existing))
	for _, et := range existing {
		table := schema.Table{
			Name:        et.TableName,
			Description: et.Comment,
		}

		hasKey := false
		for i, col := range et.Columns {
			f := schema.Field{
				Name:    col.ColumnName,
				Caption: col.Comment,
				Type:    schema.TypeCodeFromSQL(col.DataType),
				SQLType: col.DataType,
				Ordinal: i + 1,
			}
			if col.IsPrimaryKey && !hasKey {
				f.PrimaryKey = true
				hasKey = true
			}
			f.Searchable = !f.PrimaryKey && f.Type.Category() == schema.CategoryText
			table.Fields = append(table.Fields, f)
		}

		tables = append(tables, table)
	}

	return schema.Normalize(tables)
}
