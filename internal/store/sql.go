package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"optiguide/internal/config"
)

// DB is the SQL-backed Store. It speaks SQLite (modernc) and PostgreSQL (pgx);
// queries are written with ? placeholders and rebound for postgres.
type DB struct {
	db     *sql.DB
	driver string
}

// Open connects according to cfg and applies the schema. The memory driver is
// handled by New, not here.
func Open(cfg config.DatabaseConfig) (*DB, error) {
	switch cfg.Driver {
	case "sqlite":
		return openSQLite(cfg.SQLite.Path)
	case "postgres":
		return openPostgres(cfg.Postgres.URL)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// New returns the Store selected by cfg.
func New(cfg config.DatabaseConfig) (Store, error) {
	if cfg.Driver == "memory" || cfg.Driver == "" {
		return NewMemory(), nil
	}
	return Open(cfg)
}

func openSQLite(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	db := &DB{db: sqlDB, driver: "sqlite"}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return db, nil
}

func openPostgres(dsn string) (*DB, error) {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	db := &DB{db: sqlDB, driver: "postgres"}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return db, nil
}

func (d *DB) Driver() string { return d.driver }

func (d *DB) Ping(ctx context.Context) error { return d.db.PingContext(ctx) }

func (d *DB) Close() error { return d.db.Close() }

// q rewrites ? placeholders for PostgreSQL and passes through for SQLite.
func (d *DB) q(query string) string {
	if d.driver == "postgres" {
		return Rebind(query)
	}
	return query
}

func (d *DB) migrate() error {
	var schema string
	switch d.driver {
	case "sqlite":
		schema = schemaSQLite
	case "postgres":
		schema = schemaPostgres
	default:
		return fmt.Errorf("no schema for driver: %s", d.driver)
	}
	_, err := d.db.Exec(schema)
	return err
}

// Rebind rewrites ? placeholders to $1, $2, ... for PostgreSQL.
func Rebind(query string) string {
	n := 0
	var b strings.Builder
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteString(fmt.Sprintf("$%d", n))
		} else {
			b.WriteByte(query[i])
		}
	}
	return b.String()
}

// parseTime converts a scanned timestamp. SQLite hands back text, postgres time.Time.
func parseTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case []byte:
		return parseTime(string(t))
	case string:
		for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05-07:00"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed
			}
		}
	}
	return time.Time{}
}

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS warehouses (
    id        INTEGER PRIMARY KEY,
    name      TEXT NOT NULL,
    lat       REAL NOT NULL DEFAULT 0,
    lon       REAL NOT NULL DEFAULT 0,
    inventory REAL
);

CREATE TABLE IF NOT EXISTS retailers (
    id     INTEGER PRIMARY KEY,
    name   TEXT NOT NULL,
    demand REAL NOT NULL DEFAULT 0 CHECK (demand >= 0),
    lat    REAL NOT NULL DEFAULT 0,
    lon    REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS routes (
    id           INTEGER PRIMARY KEY,
    warehouse_id INTEGER NOT NULL REFERENCES warehouses(id) ON DELETE CASCADE,
    retailer_id  INTEGER NOT NULL REFERENCES retailers(id) ON DELETE CASCADE,
    cost         REAL NOT NULL CHECK (cost >= 0),
    UNIQUE (warehouse_id, retailer_id)
);

CREATE TABLE IF NOT EXISTS scenario (
    scenario_id INTEGER PRIMARY KEY AUTOINCREMENT,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    type        TEXT NOT NULL,
    created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS scenario_override (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    scenario_id    INTEGER NOT NULL REFERENCES scenario(scenario_id) ON DELETE CASCADE,
    table_name     TEXT NOT NULL,
    row_id         INTEGER NOT NULL,
    column_name    TEXT NOT NULL,
    override_value TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scenario_override_scenario ON scenario_override(scenario_id, id);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS warehouses (
    id        BIGINT PRIMARY KEY,
    name      TEXT NOT NULL,
    lat       DOUBLE PRECISION NOT NULL DEFAULT 0,
    lon       DOUBLE PRECISION NOT NULL DEFAULT 0,
    inventory DOUBLE PRECISION
);

CREATE TABLE IF NOT EXISTS retailers (
    id     BIGINT PRIMARY KEY,
    name   TEXT NOT NULL,
    demand DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (demand >= 0),
    lat    DOUBLE PRECISION NOT NULL DEFAULT 0,
    lon    DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS routes (
    id           BIGINT PRIMARY KEY,
    warehouse_id BIGINT NOT NULL REFERENCES warehouses(id) ON DELETE CASCADE,
    retailer_id  BIGINT NOT NULL REFERENCES retailers(id) ON DELETE CASCADE,
    cost         DOUBLE PRECISION NOT NULL CHECK (cost >= 0),
    UNIQUE (warehouse_id, retailer_id)
);

CREATE TABLE IF NOT EXISTS scenario (
    scenario_id BIGSERIAL PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    type        TEXT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS scenario_override (
    id             BIGSERIAL PRIMARY KEY,
    scenario_id    BIGINT NOT NULL REFERENCES scenario(scenario_id) ON DELETE CASCADE,
    table_name     TEXT NOT NULL,
    row_id         BIGINT NOT NULL,
    column_name    TEXT NOT NULL,
    override_value TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scenario_override_scenario ON scenario_override(scenario_id, id);
`
