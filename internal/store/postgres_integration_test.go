//go:build postgres_integration

package store

import (
    "os"
    "testing"

    "optiguide/internal/config"
)

func TestPostgresStore(t *testing.T) {
    dsn := os.Getenv("DATABASE_URL")
    if dsn == "" { t.Skip("DATABASE_URL not set; skipping integration test") }
    db, err := Open(config.DatabaseConfig{Driver: "postgres", Postgres: config.PostgresConfig{URL: dsn}})
    if err != nil { t.Fatalf("Open: %v", err) }
    defer db.Close()
    if err := db.Ping(t.Context()); err != nil { t.Fatalf("Ping: %v", err) }
    runStoreSuite(t, db)
}
