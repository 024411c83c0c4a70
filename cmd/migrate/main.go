// Command migrate manages the user_table schema with the migration sets
// embedded in the migrations package. The target database comes from the
// same environment as the server.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"

	"github.com/Skryldev/userstore/config"
	"github.com/Skryldev/userstore/migrations"
)

const helpText = `userstore schema tool

usage: migrate [-v] up | down [steps] | version | force <version>

  up               bring user_table to the latest schema
  down [steps]     revert the newest steps (default 1)
  version          show the applied schema version and dirty flag
  force <version>  record <version> as applied without running it

The database is taken from DB_DRIVER plus DATABASE_URL, or from
DB_HOST/DB_PORT/DB_USER/DB_PASSWORD/DB_NAME. A .env file is read first.`

type command func(m *migrate.Migrate, args []string) error

var commands = map[string]command{
	"up":      up,
	"down":    down,
	"version": version,
	"force":   force,
}

func main() {
	verbose := flag.Bool("v", false, "log every migration step")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, helpText) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		flag.Usage()
		os.Exit(2)
	}

	if err := run(cmd, args[1:], *verbose); err != nil {
		slog.Error("migrate "+args[0], "err", err)
		os.Exit(1)
	}
}

func run(cmd command, args []string, verbose bool) error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}
	dsn, err := cfg.Database.DSN()
	if err != nil {
		return fmt.Errorf("database DSN: %w", err)
	}

	m, err := migrations.New(cfg.Database.Dialect(), dsn, slog.Default())
	if err != nil {
		return err
	}
	defer m.Close()
	m.Log.(*migrations.Logger).Chatty = verbose

	return cmd(m, args)
}

func up(m *migrate.Migrate, _ []string) error {
	err := m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		slog.Info("schema already current")
		return nil
	}
	if err != nil {
		return err
	}
	slog.Info("schema upgraded")
	return nil
}

func down(m *migrate.Migrate, args []string) error {
	steps := 1
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("steps must be a positive integer, got %q", args[0])
		}
		steps = n
	}
	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	slog.Info("schema reverted", "steps", steps)
	return nil
}

func version(m *migrate.Migrate, _ []string) error {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		fmt.Println("no migrations applied")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("schema version %d (dirty=%t)\n", v, dirty)
	return nil
}

func force(m *migrate.Migrate, args []string) error {
	if len(args) == 0 {
		return errors.New("force needs a version")
	}
	v, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("version must be an integer, got %q", args[0])
	}
	if err := m.Force(v); err != nil {
		return err
	}
	slog.Info("schema version recorded", "version", v)
	return nil
}
