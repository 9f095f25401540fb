package main

import (
	"fmt"
	"os"

	"github.com/pratik-mahalle/muscleai/internal/config"
	"github.com/pratik-mahalle/muscleai/internal/repository/postgres"
	"github.com/pratik-mahalle/muscleai/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	db, err := postgres.New(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Printf("Connected to %s database\n", cfg.Database.Driver)

	migrationFS, err := migrations.For(cfg.Database.Driver)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	ran, err := postgres.RunMigrations(db, cfg.Database.Driver, migrationFS)
	for _, name := range ran {
		fmt.Printf("Applied %s\n", name)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}

	if len(ran) == 0 {
		fmt.Println("Database is up to date")
		return
	}
	fmt.Printf("Applied %d migration(s)\n", len(ran))
}
