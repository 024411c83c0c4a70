package db

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" with database/sql
	_ "github.com/lib/pq"              // registers "postgres"
	_ "github.com/mattn/go-sqlite3"    // registers "sqlite3"
)

// ─────────────────────────────────────────────────────────────────────────────
// Driver interface
// ─────────────────────────────────────────────────────────────────────────────

// Driver encapsulates database-specific behaviour:
//   - building a DSN from structured options
//   - rewriting $N placeholders into the driver's native style
//   - the clause that locks selected rows for the rest of a transaction
type Driver interface {
	// Name returns the name registered with database/sql.
	Name() string

	// Dialect groups drivers that speak the same SQL ("postgres" for both
	// lib/pq and pgx).
	Dialect() string

	// DSN converts structured options into a driver DSN string.
	DSN(opts DriverOptions) (string, error)

	// Rebind rewrites a query written with $1..$N placeholders. Placeholders
	// must appear in argument order and must not repeat.
	Rebind(query string) string

	// LockClause is appended to a SELECT to lock its rows inside a
	// transaction. Empty when the dialect locks at a coarser grain.
	LockClause() string
}

// DriverOptions carries the common connection parameters in a driver-agnostic
// form.
type DriverOptions struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // "disable", "require", "verify-full", etc.
	// Extra holds driver-specific key/value parameters.
	Extra map[string]string
}

// ─────────────────────────────────────────────────────────────────────────────
// Driver registry
// ─────────────────────────────────────────────────────────────────────────────

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// RegisterDriver adds a Driver to the registry. Panics on a duplicate name.
func RegisterDriver(d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if _, ok := drivers[d.Name()]; ok {
		panic(fmt.Sprintf("userstore/db: driver %q already registered", d.Name()))
	}
	drivers[d.Name()] = d
}

// LookupDriver returns the registered Driver by name or an error.
func LookupDriver(name string) (Driver, error) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	d, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("userstore/db: driver %q not registered", name)
	}
	return d, nil
}

// OpenWithDriver opens a DB using a registered Driver and structured options.
//
//	d, err := db.OpenWithDriver("pgx", db.DriverOptions{
//	    Host: "localhost", Port: 5432,
//	    User: "app", Password: "secret", Database: "appdb",
//	}, db.Config{MaxOpenConns: 25})
func OpenWithDriver(driverName string, driverOpts DriverOptions, cfg Config) (*DB, error) {
	drv, err := LookupDriver(driverName)
	if err != nil {
		return nil, err
	}

	dsn, err := drv.DSN(driverOpts)
	if err != nil {
		return nil, fmt.Errorf("userstore/db: DSN construction failed: %w", err)
	}

	cfg.DriverName = drv.Name()
	cfg.DSN = dsn
	return Open(cfg)
}

func init() {
	RegisterDriver(PostgresDriver{})
	RegisterDriver(PostgresDriver{name: "pgx"})
	RegisterDriver(MySQLDriver{})
	RegisterDriver(SQLiteDriver{})
}

// ─────────────────────────────────────────────────────────────────────────────
// PostgreSQL (lib/pq as "postgres", jackc/pgx as "pgx")
// ─────────────────────────────────────────────────────────────────────────────

// PostgresDriver serves both Postgres drivers; they accept the same URL DSN.
type PostgresDriver struct {
	name string
}

func (p PostgresDriver) Name() string {
	if p.name == "" {
		return "postgres"
	}
	return p.name
}

func (PostgresDriver) Dialect() string { return "postgres" }

// DSN returns a postgres:// URL, which both drivers and golang-migrate accept.
func (PostgresDriver) DSN(o DriverOptions) (string, error) {
	if o.Host == "" || o.Database == "" {
		return "", fmt.Errorf("postgres driver: Host and Database are required")
	}
	port := o.Port
	if port == 0 {
		port = 5432
	}
	sslMode := o.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	for k, v := range o.Extra {
		q.Set(k, v)
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(o.Host, strconv.Itoa(port)),
		Path:     "/" + o.Database,
		RawQuery: q.Encode(),
	}
	if o.User != "" {
		u.User = url.UserPassword(o.User, o.Password)
	}
	return u.String(), nil
}

func (PostgresDriver) Rebind(query string) string { return query }
func (PostgresDriver) LockClause() string         { return " FOR UPDATE" }

// ─────────────────────────────────────────────────────────────────────────────
// MySQL
// ─────────────────────────────────────────────────────────────────────────────

// MySQLDriver is the go-sql-driver/mysql adapter.
type MySQLDriver struct{}

func (MySQLDriver) Name() string    { return "mysql" }
func (MySQLDriver) Dialect() string { return "mysql" }

func (MySQLDriver) DSN(o DriverOptions) (string, error) {
	if o.Host == "" || o.Database == "" {
		return "", fmt.Errorf("mysql driver: Host and Database are required")
	}
	port := o.Port
	if port == 0 {
		port = 3306
	}
	c := mysql.NewConfig()
	c.User = o.User
	c.Passwd = o.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(o.Host, strconv.Itoa(port))
	c.DBName = o.Database
	c.ParseTime = true
	if len(o.Extra) > 0 {
		c.Params = make(map[string]string, len(o.Extra))
		for k, v := range o.Extra {
			c.Params[k] = v
		}
	}
	return c.FormatDSN(), nil
}

func (MySQLDriver) Rebind(query string) string { return rebindQuestion(query) }
func (MySQLDriver) LockClause() string         { return " FOR UPDATE" }

// ─────────────────────────────────────────────────────────────────────────────
// SQLite
// ─────────────────────────────────────────────────────────────────────────────

// SQLiteDriver is the mattn/go-sqlite3 adapter. SQLite binds $N positionally
// and has no row locks, so every transaction opened through a DSN built here
// starts with BEGIN IMMEDIATE and takes the write lock up front. Deferred
// transactions that read first and then write fail the lock upgrade with
// SQLITE_BUSY, which busy_timeout does not retry.
type SQLiteDriver struct{}

// Defaults added to every SQLite DSN; DriverOptions.Extra overrides them.
var sqliteDefaults = map[string]string{
	"_busy_timeout": "5000",
	"_txlock":       "immediate",
}

func (SQLiteDriver) Name() string    { return "sqlite3" }
func (SQLiteDriver) Dialect() string { return "sqlite3" }

func (SQLiteDriver) DSN(o DriverOptions) (string, error) {
	if o.Database == "" {
		return "", fmt.Errorf("sqlite3 driver: Database (file path) is required")
	}
	q := url.Values{}
	for k, v := range sqliteDefaults {
		q.Set(k, v)
	}
	for k, v := range o.Extra {
		q.Set(k, v)
	}
	return o.Database + "?" + q.Encode(), nil
}

func (SQLiteDriver) Rebind(query string) string { return query }
func (SQLiteDriver) LockClause() string         { return "" }

// ─────────────────────────────────────────────────────────────────────────────
// genericDriver: fallback for names outside the registry
// ─────────────────────────────────────────────────────────────────────────────

type genericDriver struct{ name string }

func (g genericDriver) Name() string    { return g.name }
func (g genericDriver) Dialect() string { return g.name }
func (g genericDriver) DSN(DriverOptions) (string, error) {
	return "", fmt.Errorf("userstore/db: driver %q cannot build a DSN", g.name)
}
func (genericDriver) Rebind(query string) string { return query }
func (genericDriver) LockClause() string         { return "" }

// rebindQuestion replaces every $N placeholder with "?".
func rebindQuestion(query string) string {
	var b strings.Builder
	b.Grow(len(query))
	for i := 0; i < len(query); i++ {
		c := query[i]
		if c != '$' || i+1 >= len(query) || query[i+1] < '0' || query[i+1] > '9' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('?')
		for i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
			i++
		}
	}
	return b.String()
}
