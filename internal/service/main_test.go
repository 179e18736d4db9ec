package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"warbler/internal/database"
	"warbler/internal/models"
	"warbler/internal/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testEnv struct {
	db         *gorm.DB
	users      repository.UserRepository
	messages   repository.MessageRepository
	follows    repository.FollowRepository
	authSvc    *AuthService
	userSvc    *UserService
	messageSvc *MessageService
	followSvc  *FollowService
}

func setupServices(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))

	users := repository.NewUserRepository(db)
	messages := repository.NewMessageRepository(db)
	follows := repository.NewFollowRepository(db)

	return &testEnv{
		db:         db,
		users:      users,
		messages:   messages,
		follows:    follows,
		authSvc:    NewAuthService(users),
		userSvc:    NewUserService(users, follows),
		messageSvc: NewMessageService(messages, follows),
		followSvc:  NewFollowService(follows, users),
	}
}

func (e *testEnv) signup(t *testing.T, name string) *models.User {
	t.Helper()

	ts := time.Now().UnixNano()
	user, err := e.authSvc.Signup(context.Background(), SignupInput{
		Username: fmt.Sprintf("%s%d", name, ts%1_000_000),
		Email:    fmt.Sprintf("%s_%d@test.com", name, ts),
		Password: "testuser",
	})
	require.NoError(t, err)
	return user
}
