package main

import (
	"context"
	"flag"
	"log"

	"github.com/comanda-pos/api/internal/config"
	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/seed"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// CLI flags override SEED_* environment variables.
	email := flag.String("email", cfg.SeedEmail, "Manager email address")
	password := flag.String("password", cfg.SeedPassword, "Manager password")
	name := flag.String("name", cfg.SeedName, "Manager full name")
	tables := flag.Int("tables", cfg.SeedTables, "Number of tables on the floor")
	flag.Parse()

	if *password == "password123" {
		log.Println("WARNING: Using default password 'password123'. Change immediately in production!")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Unable to ping database: %v", err)
	}
	log.Println("Connected to database")

	// Seed in a transaction: all of it or none of it.
	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	res, err := seed.Run(ctx, database.New(tx), seed.Options{
		Email:    *email,
		Password: *password,
		Name:     *name,
		Tables:   *tables,
	})
	if err != nil {
		log.Fatalf("Failed to seed: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit: %v", err)
	}

	log.Println("Seed completed successfully")
	log.Printf("Manager ID: %s", res.ManagerID)
}
