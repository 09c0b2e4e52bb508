// ==============================================================================
// DATABASE MIGRATION - cmd/migrate/main.go
// ==============================================================================
// Applies the audit-trail schema under ./migrations.
// Usage: migrate [up|down|version|force VERSION|steps N]
// ==============================================================================
package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"

	"portal/pkg/config"
	"portal/pkg/logger"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

func main() {
	cfg := config.Load()
	log := logger.NewWithLevel("portal-migrate", cfg.LogLevel)

	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL environment variable is required", nil)
	}
	if len(os.Args) < 2 {
		log.Fatal("Usage: migrate [up|down|version|force VERSION|steps N]", nil)
	}
	source := os.Getenv("MIGRATIONS_PATH")
	if source == "" {
		source = "file://migrations"
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatal("Failed to create migration driver", map[string]interface{}{"error": err.Error()})
	}

	m, err := migrate.NewWithDatabaseInstance(source, "postgres", driver)
	if err != nil {
		log.Fatal("Failed to create migrate instance", map[string]interface{}{"error": err.Error()})
	}

	switch command := os.Args[1]; command {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal("Migration failed", map[string]interface{}{"error": err.Error()})
		}
		log.Info("Migrations applied", nil)

	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal("Migration rollback failed", map[string]interface{}{"error": err.Error()})
		}
		log.Info("Migrations rolled back", nil)

	case "version":
		version, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			log.Fatal("Failed to get version", map[string]interface{}{"error": err.Error()})
		}
		fmt.Printf("Current version: %d (dirty: %t)\n", version, dirty)

	case "force", "steps":
		if len(os.Args) < 3 {
			log.Fatal("Usage: migrate "+command+" N", nil)
		}
		n, err := strconv.Atoi(os.Args[2])
		if err != nil {
			log.Fatal("Invalid number", map[string]interface{}{"value": os.Args[2]})
		}
		if command == "force" {
			err = m.Force(n)
		} else {
			err = m.Steps(n)
		}
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal("Migration "+command+" failed", map[string]interface{}{"error": err.Error()})
		}
		log.Info("Migration "+command+" complete", map[string]interface{}{"n": n})

	default:
		log.Fatal("Unknown command", map[string]interface{}{"command": command})
	}
}
