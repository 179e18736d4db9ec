package seed

import (
	"testing"

	"warbler/internal/database"
	"warbler/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupSeedDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

func TestFactory_CreateUser(t *testing.T) {
	db := setupSeedDB(t)
	f := NewFactory(db, SeedOptions{})

	user, err := f.CreateUser()
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.NotEmpty(t, user.Username)
	assert.NotEmpty(t, user.Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(DemoPassword)))

	t.Run("Overrides apply", func(t *testing.T) {
		user, err := f.CreateUser(func(u *models.User) {
			u.Username = "fixedname"
		})
		require.NoError(t, err)
		assert.Equal(t, "fixedname", user.Username)
	})
}

func TestFactory_MessageLength(t *testing.T) {
	db := setupSeedDB(t)
	f := NewFactory(db, SeedOptions{})

	user, err := f.CreateUser()
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		msg, err := f.CreateMessage(user)
		require.NoError(t, err)
		assert.LessOrEqual(t, len([]rune(msg.Text)), 140)
	}
}

func TestFactory_DedupesEdges(t *testing.T) {
	db := setupSeedDB(t)
	f := NewFactory(db, SeedOptions{})

	a, err := f.CreateUser()
	require.NoError(t, err)
	b, err := f.CreateUser()
	require.NoError(t, err)

	require.NoError(t, f.CreateFollow(a, b))
	require.NoError(t, f.CreateFollow(a, b))
	require.NoError(t, f.CreateFollow(a, a))

	var n int64
	require.NoError(t, db.Model(&models.Follow{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)

	msg, err := f.CreateMessage(b)
	require.NoError(t, err)
	require.NoError(t, f.CreateLike(a, msg))
	require.NoError(t, f.CreateLike(a, msg))
	require.NoError(t, f.CreateLike(b, msg)) // own message, skipped

	require.NoError(t, db.Model(&models.Like{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestSeeder_SocialMeshAndEngagement(t *testing.T) {
	db := setupSeedDB(t)
	s := NewSeeder(db)

	users, err := s.SeedSocialMesh(6)
	require.NoError(t, err)
	require.Len(t, users, 6)

	messages, err := s.SeedEngagement(users, 30)
	require.NoError(t, err)
	assert.Len(t, messages, 30)

	var n int64
	require.NoError(t, db.Model(&models.Message{}).Count(&n).Error)
	assert.EqualValues(t, 30, n)
}

func TestSeeder_ClearAll(t *testing.T) {
	db := setupSeedDB(t)
	s := NewSeeder(db)

	users, err := s.SeedSocialMesh(3)
	require.NoError(t, err)
	_, err = s.SeedEngagement(users, 10)
	require.NoError(t, err)

	require.NoError(t, s.ClearAll())

	for _, model := range database.PersistentModels() {
		var n int64
		require.NoError(t, db.Unscoped().Model(model).Count(&n).Error)
		assert.Zero(t, n)
	}
}

func TestDemoAccounts_Upsert(t *testing.T) {
	db := setupSeedDB(t)

	users, err := Demo(db)
	require.NoError(t, err)
	require.Len(t, users, len(DemoAccounts))

	// Idempotent: a second run does not duplicate accounts.
	_, err = Demo(db)
	require.NoError(t, err)

	var n int64
	require.NoError(t, db.Model(&models.User{}).Count(&n).Error)
	assert.EqualValues(t, len(DemoAccounts), n)
}

func TestSeeder_ApplyPreset(t *testing.T) {
	db := setupSeedDB(t)
	s := NewSeeder(db)

	require.NoError(t, s.ApplyPreset("Cozy"))

	var n int64
	require.NoError(t, db.Model(&models.User{}).Count(&n).Error)
	assert.EqualValues(t, 8, n)

	assert.Error(t, s.ApplyPreset("NoSuchPreset"))
}
