package service

import (
	"context"
	"testing"

	"warbler/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestAuthService_Signup(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		user, err := env.authSvc.Signup(ctx, SignupInput{
			Username: "testuser",
			Email:    "test@test.com",
			Password: "testuser",
		})
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.NotZero(t, user.ID)
		assert.Equal(t, models.DefaultImageURL, user.ImageURL)

		// Password is stored hashed, never plaintext.
		assert.NotEqual(t, "testuser", user.Password)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("testuser")))
	})

	t.Run("Duplicate username", func(t *testing.T) {
		_, err := env.authSvc.Signup(ctx, SignupInput{
			Username: "testuser",
			Email:    "other@test.com",
			Password: "testuser",
		})
		require.Error(t, err)

		var appErr *models.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "CONFLICT", appErr.Code)
	})

	t.Run("Invalid input", func(t *testing.T) {
		cases := []SignupInput{
			{Username: "ab", Email: "a@b.com", Password: "testuser"},      // username too short
			{Username: "validname", Email: "nope", Password: "testuser"},  // bad email
			{Username: "validname", Email: "a@b.com", Password: "short"},  // password too short
		}
		for _, in := range cases {
			_, err := env.authSvc.Signup(ctx, in)
			require.Error(t, err)

			var appErr *models.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
		}
	})
}

func TestAuthService_Authenticate(t *testing.T) {
	env := setupServices(t)
	ctx := context.Background()

	_, err := env.authSvc.Signup(ctx, SignupInput{
		Username: "testuser",
		Email:    "test@test.com",
		Password: "testuser",
	})
	require.NoError(t, err)

	t.Run("Valid credentials", func(t *testing.T) {
		user, err := env.authSvc.Authenticate(ctx, "testuser", "testuser")
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, "testuser", user.Username)
	})

	t.Run("Wrong password", func(t *testing.T) {
		user, err := env.authSvc.Authenticate(ctx, "testuser", "wrongpass")
		require.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("Unknown user", func(t *testing.T) {
		user, err := env.authSvc.Authenticate(ctx, "ghost", "testuser")
		require.NoError(t, err)
		assert.Nil(t, user)
	})
}
