package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Config selects and locates the database
type Config struct {
	Driver string
	// DSN is a file path for sqlite3 and a connection URL for postgres
	DSN string
}

// DB wraps the database connection
type DB struct {
	queries
	conn *sql.DB
	log  zerolog.Logger
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds every statement; it runs against the pool or a transaction
type queries struct {
	q       querier
	dialect string
}

// Open connects to the database and applies pending migrations
func Open(ctx context.Context, cfg Config, log zerolog.Logger) (*DB, error) {
	log = log.With().Str("component", "db").Logger()

	driver, dialect, dsn, err := resolve(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{queries: queries{q: conn, dialect: dialect}, conn: conn, log: log}
	if err := db.migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Debug().Str("driver", driver).Msg("database ready")
	return db, nil
}

func resolve(cfg Config) (driver, dialect, dsn string, err error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite", DriverSQLite:
		if cfg.DSN == "" {
			return "", "", "", fmt.Errorf("sqlite3 requires a database path")
		}
		path := cfg.DSN
		if i := strings.Index(path, "?"); i >= 0 {
			path = path[:i]
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return "", "", "", fmt.Errorf("failed to create db directory: %w", err)
		}
		dsn = cfg.DSN
		if !strings.Contains(dsn, "?") {
			dsn += "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"
		}
		return "sqlite3", DriverSQLite, dsn, nil
	case DriverPostgres, "postgresql", "pgx":
		if cfg.DSN == "" {
			return "", "", "", fmt.Errorf("postgres requires a connection url")
		}
		return "pgx", DriverPostgres, cfg.DSN, nil
	}
	return "", "", "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the connection
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Dialect returns the sql dialect in use
func (db *DB) Dialect() string {
	return db.dialect
}

// rebind rewrites ? placeholders into the dialect's form
func (q queries) rebind(query string) string {
	if q.dialect != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (q queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.q.ExecContext(ctx, q.rebind(query), args...)
}

func (q queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.q.QueryContext(ctx, q.rebind(query), args...)
}

func (q queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.q.QueryRowContext(ctx, q.rebind(query), args...)
}
