package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"storefront/internal/storage/migrations"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using existing environment variables")
	}

	driver := getEnv("STORAGE_DRIVER", "sqlite")

	var (
		db      *sql.DB
		dialect goose.Dialect
		err     error
	)
	switch driver {
	case "sqlite":
		db, err = sql.Open("sqlite", getEnv("DATABASE_PATH", "storefront.db"))
		dialect = goose.DialectSQLite3
	case "postgres":
		url := os.Getenv("DATABASE_URL")
		if url == "" {
			log.Fatal("DATABASE_URL is required when STORAGE_DRIVER is postgres")
		}
		db, err = sql.Open("pgx", url)
		dialect = goose.DialectPostgres
	default:
		log.Fatalf("Migrations are not supported for STORAGE_DRIVER=%s", driver)
	}
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// Test connection
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Printf("Connected to %s successfully", driver)

	// Get command from arguments (default to "up")
	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	// New migration files are written next to the embedded ones
	if command == "create" {
		if len(os.Args) < 3 {
			log.Fatal("Usage: migrate create <migration_name>")
		}
		dir := filepath.Join("internal", "storage", "migrations", driver)
		if err := goose.Create(db, dir, os.Args[2], "sql"); err != nil {
			log.Fatalf("Failed to create migration: %v", err)
		}
		log.Printf("Created migration: %s", os.Args[2])
		return
	}

	source := migrations.SQLite()
	if driver == "postgres" {
		source = migrations.Postgres()
	}
	provider, err := goose.NewProvider(dialect, db, source)
	if err != nil {
		log.Fatalf("Failed to create migration provider: %v", err)
	}

	ctx := context.Background()
	log.Printf("Running migrations: %s", command)
	switch command {
	case "up":
		results, err := provider.Up(ctx)
		if err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		for _, r := range results {
			log.Printf("Applied %s (%s)", r.Source.Path, r.Duration)
		}
		log.Println("Migrations completed successfully")
	case "down":
		result, err := provider.Down(ctx)
		if err != nil {
			log.Fatalf("Failed to rollback migration: %v", err)
		}
		log.Printf("Rolled back %s", result.Source.Path)
	case "status":
		statuses, err := provider.Status(ctx)
		if err != nil {
			log.Fatalf("Failed to get migration status: %v", err)
		}
		for _, s := range statuses {
			applied := "pending"
			if s.State == goose.StateApplied {
				applied = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
			log.Printf("%-30s %s", filepath.Base(s.Source.Path), applied)
		}
	case "version":
		version, err := provider.GetDBVersion(ctx)
		if err != nil {
			log.Fatalf("Failed to get version: %v", err)
		}
		log.Printf("Current migration version: %d", version)
	default:
		log.Fatalf("Unknown command: %s. Available commands: up, down, status, version, create", command)
	}
}

// getEnv retrieves environment variable or returns default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
