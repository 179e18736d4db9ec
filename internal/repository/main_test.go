package repository

import (
	"fmt"
	"testing"
	"time"

	"warbler/internal/cache"
	"warbler/internal/database"
	"warbler/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB opens a fresh in-memory SQLite database with the full schema.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

// setupTestCache points the cache package at a throwaway miniredis so tests
// exercise real cache hits instead of the nil-client passthrough.
func setupTestCache(t *testing.T) *miniredis.Miniredis {
	t.Helper()

	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.SetClient(nil) })
	return mr
}

// createTestUser inserts a user with unique username/email.
func createTestUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()

	ts := time.Now().UnixNano()
	user := &models.User{
		Username: fmt.Sprintf("%s_%d", name, ts),
		Email:    fmt.Sprintf("%s_%d@example.com", name, ts),
		Password: "hashed_pw",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}
