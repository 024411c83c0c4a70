// Package migrations embeds the user_table schema for every supported
// dialect and applies it with golang-migrate.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed postgres/*.sql mysql/*.sql sqlite3/*.sql
var files embed.FS

// New returns a Migrate instance for dialect ("postgres", "mysql" or
// "sqlite3") pointed at the database named by dsn. The caller must Close it.
func New(dialect, dsn string, logger *slog.Logger) (*migrate.Migrate, error) {
	src, err := iofs.New(files, dialect)
	if err != nil {
		return nil, fmt.Errorf("migrations: no migration set for dialect %q: %w", dialect, err)
	}
	dbURL, err := URL(dialect, dsn)
	if err != nil {
		return nil, err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return nil, fmt.Errorf("migrations: init: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	m.Log = &Logger{L: logger}
	return m, nil
}

// Up applies every pending migration. Having nothing to apply is success.
func Up(dialect, dsn string, logger *slog.Logger) error {
	m, err := New(dialect, dsn, logger)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations: up: %w", err)
	}
	return nil
}

// URL turns a driver DSN into the URL form golang-migrate expects.
func URL(dialect, dsn string) (string, error) {
	switch dialect {
	case "postgres":
		if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
			return dsn, nil
		}
		return "", fmt.Errorf("migrations: postgres DSN must be a postgres:// URL")
	case "mysql":
		return "mysql://" + strings.TrimPrefix(dsn, "mysql://"), nil
	case "sqlite3":
		return "sqlite3://" + strings.TrimPrefix(dsn, "sqlite3://"), nil
	}
	return "", fmt.Errorf("migrations: unsupported dialect %q", dialect)
}

// Logger routes golang-migrate output into slog.
type Logger struct {
	L      *slog.Logger
	Chatty bool
}

func (l *Logger) Printf(format string, v ...any) {
	l.L.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *Logger) Verbose() bool { return l.Chatty }
