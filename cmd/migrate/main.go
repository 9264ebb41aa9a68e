package main

import (
	"context"
	"log"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"trialsim/adapters/db/postgres/migrations"
	"trialsim/internal/config"
)

func main() {
	_ = godotenv.Load()

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	if command != "up" && command != "status" {
		log.Fatal("Usage: migrate [up|status]  (reads DATABASE_URL)")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if !cfg.HasDatabase() {
		log.Fatal("DATABASE_URL is required")
	}

	// Connect to database
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	migrator := migrations.NewMigrator(db.DB, os.Stdout)

	if command == "status" {
		pending, err := migrator.Status(ctx)
		if err != nil {
			log.Fatalf("Failed to read migration status: %v", err)
		}
		if pending > 0 {
			os.Exit(1)
		}
		return
	}

	applied, err := migrator.Up(ctx)
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Printf("Migration completed: %d applied", len(applied))
}
