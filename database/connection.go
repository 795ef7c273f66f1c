package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/mattn/go-sqlite3"
)

// Database sources understood by Open.
const (
	Postgres = "postgres"
	MySQL    = "mysql"
	SQLite   = "sqlite"
)

// Handle is an open connection to one of the supported databases. Postgres
// uses a pgx pool; MySQL and SQLite go through database/sql.
type Handle struct {
	Source string
	Pool   *pgxpool.Pool
	DB     *sql.DB
}

// Open connects to dsn and pings it.
func Open(ctx context.Context, source, dsn string) (*Handle, error) {
	if dsn == "" {
		return nil, fmt.Errorf("no DSN configured for %s (set schema.dsn or DATABASE_URL)", source)
	}

	h := &Handle{Source: source}
	switch source {
	case Postgres:
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("unable to create connection pool: %v", err)
		}
		h.Pool = pool
	case MySQL:
		db, err := sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("unable to open mysql: %v", err)
		}
		h.DB = db
	case SQLite:
		db, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("unable to open sqlite: %v", err)
		}
		h.DB = db
	default:
		return nil, fmt.Errorf("unsupported database source %q", source)
	}

	if err := h.Ping(ctx); err != nil {
		h.Close()
		return nil, fmt.Errorf("unable to ping database: %v", err)
	}
	return h, nil
}

func (h *Handle) Ping(ctx context.Context) error {
	if h.Pool != nil {
		return h.Pool.Ping(ctx)
	}
	return h.DB.PingContext(ctx)
}

// Close releases the pool or handle.
func (h *Handle) Close() {
	if h.Pool != nil {
		h.Pool.Close()
	}
	if h.DB != nil {
		h.DB.Close()
	}
}

// MySQLDatabase returns the database name embedded in a MySQL DSN.
func MySQLDatabase(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parsing mysql dsn: %w", err)
	}
	return cfg.DBName, nil
}
