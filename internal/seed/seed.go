// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"warbler/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Seeder populates the database with generated demo data.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
}

// NewSeeder creates a Seeder with default options.
func NewSeeder(db *gorm.DB) *Seeder {
	return NewSeederWithOptions(db, SeedOptions{})
}

// NewSeederWithOptions creates a Seeder with explicit options.
func NewSeederWithOptions(db *gorm.DB, opts SeedOptions) *Seeder {
	return &Seeder{db: db, factory: NewFactory(db, opts)}
}

// ClearAll removes all seeded rows. Deletion order follows the foreign keys.
func (s *Seeder) ClearAll() error {
	log.Println("Clearing existing data...")
	for _, stmt := range []string{
		"DELETE FROM likes",
		"DELETE FROM follows",
		"DELETE FROM messages",
		"DELETE FROM users",
	} {
		if err := s.db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("clear failed on %q: %w", stmt, err)
		}
	}
	return nil
}

// DemoAccount is a permanent well-known account created on every seed run.
type DemoAccount struct {
	Username string
	Email    string
	Bio      string
}

// DemoAccounts are stable logins for manual testing. All use DemoPassword.
var DemoAccounts = []DemoAccount{
	{Username: "warbler", Email: "warbler@warbler.dev", Bio: "The first bird in the tree."},
	{Username: "tuckerdiane", Email: "tuckerdiane@warbler.dev", Bio: "Birdwatcher. Coffee enthusiast."},
	{Username: "test", Email: "test@warbler.dev", Bio: "One of the OGs."},
}

// Demo upserts the well-known demo accounts.
func Demo(db *gorm.DB) ([]models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	users := make([]models.User, 0, len(DemoAccounts))
	for _, acct := range DemoAccounts {
		user := models.User{
			Username: acct.Username,
			Email:    acct.Email,
			Password: string(hashedPassword),
			Bio:      acct.Bio,
			ImageURL: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", acct.Username),
		}
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "username"}},
			DoUpdates: clause.AssignmentColumns([]string{"bio", "updated_at"}),
		}).Create(&user).Error
		if err != nil {
			return nil, err
		}
		if user.ID == 0 {
			if err := db.Where("username = ?", acct.Username).First(&user).Error; err != nil {
				return nil, err
			}
		}
		users = append(users, user)
	}
	return users, nil
}

// SeedSocialMesh creates users and a follow graph between them. Each user
// follows a random subset of the others, so feeds have something to show.
func (s *Seeder) SeedSocialMesh(numUsers int) ([]*models.User, error) {
	log.Printf("Seeding %d users...", numUsers)

	users := make([]*models.User, 0, numUsers)
	for i := 0; i < numUsers; i++ {
		user, err := s.factory.CreateUser()
		if err != nil {
			log.Printf("skipping user %d: %v", i, err)
			continue
		}
		users = append(users, user)

		if i > 0 && i%100 == 0 {
			log.Printf("Created %d users...", i)
		}
	}

	// #nosec G404: acceptable for seeding
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	edges := 0
	for _, follower := range users {
		// Follow between 0 and a third of the mesh.
		n := r.Intn(len(users)/3 + 1)
		for j := 0; j < n; j++ {
			followed := users[r.Intn(len(users))]
			if err := s.factory.CreateFollow(follower, followed); err != nil {
				return nil, err
			}
			edges++
		}
	}
	log.Printf("Created %d users and %d follow edges", len(users), edges)

	return users, nil
}

// SeedEngagement creates messages for the given users plus likes on them.
func (s *Seeder) SeedEngagement(users []*models.User, numMessages int) ([]*models.Message, error) {
	if len(users) == 0 {
		return nil, fmt.Errorf("no users to seed messages for")
	}
	log.Printf("Seeding %d messages...", numMessages)

	// #nosec G404: acceptable for seeding
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	messages := make([]*models.Message, 0, numMessages)
	const batchSize = 200
	batch := make([]*models.Message, 0, batchSize)
	for i := 0; i < numMessages; i++ {
		author := users[r.Intn(len(users))]
		batch = append(batch, s.factory.BuildMessage(author))

		if len(batch) == batchSize || i == numMessages-1 {
			if err := s.factory.CreateMessagesBatch(batch); err != nil {
				return nil, err
			}
			messages = append(messages, batch...)
			batch = batch[:0]
		}
	}

	likes := 0
	for _, message := range messages {
		// Skewed engagement: most messages get a few likes, some get none.
		n := r.Intn(4)
		for j := 0; j < n; j++ {
			fan := users[r.Intn(len(users))]
			if err := s.factory.CreateLike(fan, message); err != nil {
				return nil, err
			}
			likes++
		}
	}
	log.Printf("Created %d messages and %d likes", len(messages), likes)

	return messages, nil
}

// Preset is a named seeding profile.
type Preset struct {
	Name        string
	Description string
	NumUsers    int
	NumMessages int
}

// Presets are the built-in seeding profiles selectable from the CLI.
var Presets = []Preset{
	{Name: "Cozy", Description: "A handful of users for quick local testing", NumUsers: 8, NumMessages: 40},
	{Name: "Standard", Description: "A realistic small community", NumUsers: 50, NumMessages: 400},
	{Name: "MegaPopulated", Description: "Stress-test sized data set", NumUsers: 500, NumMessages: 10000},
}

// ApplyPreset runs the named preset, or errors if it does not exist.
func (s *Seeder) ApplyPreset(name string) error {
	for _, p := range Presets {
		if p.Name != name {
			continue
		}
		log.Printf("Applying preset %s: %s", p.Name, p.Description)
		users, err := s.SeedSocialMesh(p.NumUsers)
		if err != nil {
			return err
		}
		_, err = s.SeedEngagement(users, p.NumMessages)
		return err
	}
	return fmt.Errorf("unknown preset %q", name)
}
