package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/opensource-finance/fraudguard/internal/domain"
)

const (
	driverSQLite   = "sqlite"
	driverPostgres = "postgres"
)

// sqliteDSN builds a modernc.org/sqlite DSN (pure Go, no CGO) with pragmas
// suited to a single writer and concurrent readers.
func sqliteDSN(path string) (string, error) {
	if path == "" {
		path = "./fraudguard.db"
	}
	if path == ":memory:" {
		return "file::memory:?cache=shared&_pragma=foreign_keys(ON)", nil
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	pragmas := []string{
		"journal_mode(WAL)",
		"synchronous(NORMAL)",
		"busy_timeout(5000)",
		"foreign_keys(ON)",
	}
	return "file:" + path + "?_pragma=" + strings.Join(pragmas, "&_pragma="), nil
}

// postgresDSN builds a lib/pq key/value DSN.
func postgresDSN(cfg domain.RepositoryConfig) string {
	host := cfg.PostgresHost
	if host == "" {
		host = "localhost"
	}
	port := cfg.PostgresPort
	if port == 0 {
		port = 5432
	}
	dbname := cfg.PostgresDB
	if dbname == "" {
		dbname = "fraudguard"
	}
	sslmode := cfg.PostgresSSLMode
	if sslmode == "" {
		sslmode = "disable"
	}

	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port, cfg.PostgresUser, cfg.PostgresPassword, dbname, sslmode)
}

// openDB opens and verifies a connection for the configured driver.
func openDB(cfg domain.RepositoryConfig) (*sql.DB, error) {
	var dsn string
	switch cfg.Driver {
	case driverSQLite:
		var err error
		if dsn, err = sqliteDSN(cfg.SQLitePath); err != nil {
			return nil, err
		}
	case driverPostgres:
		dsn = postgresDSN(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", cfg.Driver, err)
	}

	// SQLite allows a single writer.
	if cfg.Driver == driverSQLite && cfg.MaxOpenConns == 0 {
		db.SetMaxOpenConns(1)
	}

	return db, nil
}
