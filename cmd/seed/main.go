// Command main runs the database seeder for Warbler.
package main

import (
	"flag"
	"log"

	"warbler/internal/config"
	"warbler/internal/database"
	"warbler/internal/seed"
)

func main() {
	// Parse command line flags
	numUsers := flag.Int("users", 50, "Number of users to create")
	numMessages := flag.Int("messages", 400, "Number of messages to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	preset := flag.String("preset", "", "Apply a specific seeder preset (e.g., MegaPopulated)")
	flag.Parse()

	log.Println("Database Seeder")
	log.Println("===============")

	if *preset != "" {
		log.Printf("Applying preset: %s (ignoring other flags)", *preset)
	} else {
		log.Printf("Target: %d users, %d messages, clean=%v", *numUsers, *numMessages, *shouldClean)
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s := seed.NewSeeder(db)

	if *shouldClean {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	// Well-known demo accounts always exist.
	if _, err := seed.Demo(db); err != nil {
		log.Fatalf("Demo account seeding failed: %v", err)
	}

	if *preset != "" {
		if err := s.ApplyPreset(*preset); err != nil {
			log.Fatalf("Preset seeding failed: %v", err)
		}
	} else {
		users, err := s.SeedSocialMesh(*numUsers)
		if err != nil {
			log.Fatalf("User seeding failed: %v", err)
		}
		if _, err := s.SeedEngagement(users, *numMessages); err != nil {
			log.Fatalf("Engagement seeding failed: %v", err)
		}
	}

	log.Println("All done! The database is populated with demo data.")
	log.Printf("All seeded users have the password: %s", seed.DemoPassword)
}
