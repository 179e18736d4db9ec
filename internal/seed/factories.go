// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"warbler/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeedOptions tunes how the factory and seeder behave.
type SeedOptions struct {
	// DryRun logs what would be created without writing to the database.
	DryRun bool
	// SkipBcrypt stores the plaintext demo password, skipping the hash cost.
	// Only useful for large local seeds; such users cannot log in.
	SkipBcrypt bool
	// MaxDays spreads generated created_at timestamps over this many days.
	MaxDays int
}

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by seed presets and tests.
type Factory struct {
	db   *gorm.DB
	opts SeedOptions
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts SeedOptions) *Factory {
	// seed gofakeit for richer content
	gofakeit.Seed(time.Now().UnixNano())
	return &Factory{db: db, opts: opts, nextID: 1000}
}

// DemoPassword is the password every generated account gets.
const DemoPassword = "password123"

// CreateUser constructs and persists a sample `models.User`.
// Optional override functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	username := fmt.Sprintf("%s%d", gofakeit.Username(), gofakeit.Number(100, 999))
	user := &models.User{
		Username: username,
		Email:    gofakeit.Email(),
		Bio:      gofakeit.Sentence(10),
		Location: fmt.Sprintf("%s, %s", gofakeit.City(), gofakeit.StateAbr()),
		ImageURL: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID()),
	}

	if f.opts.SkipBcrypt {
		user.Password = DemoPassword
	} else {
		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
		user.Password = string(hashedPassword)
	}

	for _, override := range overrides {
		override(user)
	}

	if f.opts.DryRun {
		f.nextID++
		user.ID = f.nextID
		log.Printf("[dry-run] CreateUser: %s <%s>", user.Username, user.Email)
		return user, nil
	}

	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildMessage constructs a message struct without persisting it. Useful for
// batching. Text is clipped to the 140 character limit.
func (f *Factory) BuildMessage(user *models.User, overrides ...func(*models.Message)) *models.Message {
	message := &models.Message{
		Text:   clipText(gofakeit.Sentence(gofakeit.Number(3, 18))),
		UserID: user.ID,
	}

	// realistic created_at spread
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	// #nosec G404: acceptable for seeding
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	daysBack := r.Intn(maxDays)
	hoursBack := r.Intn(24)
	minsBack := r.Intn(60)
	message.CreatedAt = time.Now().Add(-time.Duration(daysBack)*24*time.Hour - time.Duration(hoursBack)*time.Hour - time.Duration(minsBack)*time.Minute)

	for _, override := range overrides {
		override(message)
	}
	return message
}

// CreateMessage constructs and persists a sample `models.Message` for the given user.
func (f *Factory) CreateMessage(user *models.User, overrides ...func(*models.Message)) (*models.Message, error) {
	message := f.BuildMessage(user, overrides...)

	if f.opts.DryRun {
		f.nextID++
		message.ID = f.nextID
		log.Printf("[dry-run] CreateMessage: user=%d text=%q", message.UserID, message.Text)
		return message, nil
	}

	if err := f.db.Create(message).Error; err != nil {
		return nil, err
	}
	return message, nil
}

// CreateMessagesBatch persists multiple messages in a single DB call when possible.
func (f *Factory) CreateMessagesBatch(messages []*models.Message) error {
	if f.opts.DryRun {
		for _, m := range messages {
			f.nextID++
			m.ID = f.nextID
		}
		log.Printf("[dry-run] CreateMessagesBatch: %d messages (no DB write)", len(messages))
		return nil
	}
	return f.db.Create(&messages).Error
}

// CreateFollow persists a follow edge. Duplicate edges are ignored.
func (f *Factory) CreateFollow(follower, followed *models.User) error {
	if follower.ID == followed.ID {
		return nil
	}
	follow := &models.Follow{
		FollowerID: follower.ID,
		FollowedID: followed.ID,
	}
	if f.opts.DryRun {
		return nil
	}
	return f.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "follower_id"}, {Name: "followed_id"}},
		DoNothing: true,
	}).Create(follow).Error
}

// CreateLike persists a like from `user` on `message`. Duplicates are ignored.
func (f *Factory) CreateLike(user *models.User, message *models.Message) error {
	if user.ID == message.UserID {
		return nil
	}
	like := &models.Like{
		UserID:    user.ID,
		MessageID: message.ID,
	}
	if f.opts.DryRun {
		return nil
	}
	return f.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "message_id"}},
		DoNothing: true,
	}).Create(like).Error
}

// clipText trims generated text to the 140 character message limit.
func clipText(s string) string {
	runes := []rune(s)
	if len(runes) <= 140 {
		return s
	}
	return string(runes[:140])
}
