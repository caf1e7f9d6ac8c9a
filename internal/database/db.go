package database

import (
	"database/sql"
	"embed"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var embedMigrations embed.FS

const (
	DialectSQLite   = "sqlite3"
	DialectPostgres = "postgres"
)

// DB wraps the database connection and provides access to the watchlist table.
type DB struct {
	conn      *sql.DB
	dialect   string
	Watchlist *WatchlistTable
}

// Config holds database configuration. When URL is set the connection goes to
// Postgres; otherwise DatabasePath names a local SQLite file.
type Config struct {
	DatabasePath string
	URL          string
}

// NewDB opens the configured database and runs migrations.
func NewDB(config Config) (*DB, error) {
	var (
		conn    *sql.DB
		dialect string
		err     error
	)

	if config.URL != "" {
		dialect = DialectPostgres
		conn, err = openPostgres(config.URL)
	} else {
		dialect = DialectSQLite
		conn, err = openSQLite(config.DatabasePath)
	}
	if err != nil {
		return nil, err
	}

	if err := runMigrations(conn, dialect); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DB{
		conn:      conn,
		dialect:   dialect,
		Watchlist: NewWatchlistTable(conn, dialect),
	}, nil
}

func openSQLite(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Ensure the parent directory exists
	dbDir := filepath.Dir(path)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	connString := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=10000&_foreign_keys=on", path)
	conn, err := sql.Open("sqlite3", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxIdleTime(15 * time.Minute)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return conn, nil
}

func openPostgres(url string) (*sql.DB, error) {
	conn, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Supabase poolers cap client connections; stay well under the free-tier limit.
	conn.SetMaxOpenConns(5)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return conn, nil
}

// runMigrations runs database migrations using Goose
func runMigrations(db *sql.DB, dialect string) error {
	log.Printf("[database] running %s migrations", dialect)

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	dir := "migrations/sqlite"
	if dialect == DialectPostgres {
		dir = "migrations/postgres"
	}

	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("failed to run watchlist migrations: %w", err)
	}

	version, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("failed to verify migration version: %w", err)
	}
	log.Printf("[database] schema at version %d", version)
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Connection returns the underlying database connection
func (db *DB) Connection() *sql.DB {
	return db.conn
}

// Dialect reports which SQL dialect the connection speaks.
func (db *DB) Dialect() string {
	return db.dialect
}

// Version returns the applied schema version.
func (db *DB) Version() (int64, error) {
	return goose.GetDBVersion(db.conn)
}
