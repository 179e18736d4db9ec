// Command migrate applies the database schema for the backend.
//
// The server only auto-migrates outside production; production deploys run
// this command explicitly as a release step.
package main

import (
	"flag"
	"fmt"
	"log"

	"warbler/internal/config"
	"warbler/internal/database"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dryRun := flag.Bool("dry-run", false, "List the tables that would be migrated without touching the database")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if *dryRun {
		for _, model := range database.PersistentModels() {
			log.Printf("would migrate: %T", model)
		}
		return nil
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	if err := db.AutoMigrate(database.PersistentModels()...); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Println("schema migrated")
	return nil
}
