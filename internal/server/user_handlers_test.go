package server

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"net/url"
	"testing"

	"warbler/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListUsers_Search(t *testing.T) {
	ts := setupServer(t)
	ts.signup(t, "ShadowFax")
	ts.signup(t, "Brightwing")
	ts.signup(t, "Nightjar")

	list := func(t *testing.T, target string) []models.User {
		resp := ts.do(t, httptest.NewRequest("GET", target, nil))
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var body struct {
			Users []models.User `json:"users"`
		}
		require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &body))
		return body.Users
	}

	t.Run("Substring match", func(t *testing.T) {
		users := list(t, "/users?q=Shadow")
		require.Len(t, users, 1)
		assert.Equal(t, "ShadowFax", users[0].Username)
	})

	t.Run("No query returns everyone", func(t *testing.T) {
		assert.Len(t, list(t, "/users"), 3)
	})

	t.Run("No match returns empty", func(t *testing.T) {
		assert.Empty(t, list(t, "/users?q=nobody"))
	})
}

func TestGetUserProfile(t *testing.T) {
	ts := setupServer(t)
	user, cookie := ts.signup(t, "profiled")
	_, viewerCookie := ts.signup(t, "viewer")

	form := url.Values{}
	form.Set("text", "profile warble")
	ts.do(t, withCookie(formRequest("POST", "/messages/new", form), cookie))

	resp := ts.do(t, withCookie(
		httptest.NewRequest("POST", fmt.Sprintf("/users/follow/%d", user.ID), nil), viewerCookie))
	require.Equal(t, fiber.StatusFound, resp.StatusCode)

	t.Run("Viewer sees counts, relationship, and messages", func(t *testing.T) {
		resp := ts.do(t, withCookie(
			httptest.NewRequest("GET", fmt.Sprintf("/users/%d", user.ID), nil), viewerCookie))
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var body struct {
			Profile struct {
				User           models.User `json:"user"`
				FollowersCount int64       `json:"followers_count"`
				IsFollowing    bool        `json:"is_following"`
			} `json:"profile"`
			Messages []*models.Message `json:"messages"`
		}
		require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &body))
		assert.Equal(t, "profiled", body.Profile.User.Username)
		assert.EqualValues(t, 1, body.Profile.FollowersCount)
		assert.True(t, body.Profile.IsFollowing)
		require.Len(t, body.Messages, 1)
		assert.Equal(t, "profile warble", body.Messages[0].Text)
	})

	t.Run("Anonymous access works", func(t *testing.T) {
		resp := ts.do(t, httptest.NewRequest("GET", fmt.Sprintf("/users/%d", user.ID), nil))
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("Missing user is 404", func(t *testing.T) {
		resp := ts.do(t, httptest.NewRequest("GET", "/users/99999", nil))
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})
}

func TestUpdateProfile(t *testing.T) {
	ts := setupServer(t)
	user, cookie := ts.signup(t, "editable")

	form := url.Values{}
	form.Set("bio", "I sing at dawn")
	form.Set("location", "the hedge")

	resp := ts.do(t, withCookie(formRequest("POST", "/users/profile", form), cookie))
	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, fmt.Sprintf("/users/%d", user.ID), resp.Header.Get("Location"))

	var updated models.User
	require.NoError(t, ts.db.First(&updated, user.ID).Error)
	assert.Equal(t, "I sing at dawn", updated.Bio)
	assert.Equal(t, "the hedge", updated.Location)
}

func TestFollowRoutes(t *testing.T) {
	ts := setupServer(t)
	follower, followerCookie := ts.signup(t, "follower")
	followed, _ := ts.signup(t, "followed")

	t.Run("Follow redirects to own following list", func(t *testing.T) {
		resp := ts.do(t, withCookie(
			httptest.NewRequest("POST", fmt.Sprintf("/users/follow/%d", followed.ID), nil), followerCookie))
		require.Equal(t, fiber.StatusFound, resp.StatusCode)
		assert.Equal(t, fmt.Sprintf("/users/%d/following", follower.ID), resp.Header.Get("Location"))
	})

	t.Run("Following list reflects the edge", func(t *testing.T) {
		resp := ts.do(t, withCookie(
			httptest.NewRequest("GET", fmt.Sprintf("/users/%d/following", follower.ID), nil), followerCookie))
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var body struct {
			Following []models.User `json:"following"`
		}
		require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &body))
		require.Len(t, body.Following, 1)
		assert.Equal(t, "followed", body.Following[0].Username)
	})

	t.Run("Duplicate follow is a quiet no-op", func(t *testing.T) {
		resp := ts.do(t, withCookie(
			httptest.NewRequest("POST", fmt.Sprintf("/users/follow/%d", followed.ID), nil), followerCookie))
		assert.Equal(t, fiber.StatusFound, resp.StatusCode)
		assert.EqualValues(t, 1, ts.countRows(t, &models.Follow{}))
	})

	t.Run("Self follow is 400", func(t *testing.T) {
		resp := ts.do(t, withCookie(
			httptest.NewRequest("POST", fmt.Sprintf("/users/follow/%d", follower.ID), nil), followerCookie))
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Following a missing user is 404", func(t *testing.T) {
		resp := ts.do(t, withCookie(
			httptest.NewRequest("POST", "/users/follow/99999", nil), followerCookie))
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})

	t.Run("Unfollow removes the edge", func(t *testing.T) {
		resp := ts.do(t, withCookie(
			httptest.NewRequest("POST", fmt.Sprintf("/users/stop-following/%d", followed.ID), nil), followerCookie))
		require.Equal(t, fiber.StatusFound, resp.StatusCode)
		assert.Zero(t, ts.countRows(t, &models.Follow{}))
	})

	t.Run("Unauthenticated follow redirects without an edge", func(t *testing.T) {
		resp := ts.do(t, httptest.NewRequest("POST", fmt.Sprintf("/users/follow/%d", followed.ID), nil))
		require.Equal(t, fiber.StatusFound, resp.StatusCode)
		assert.Equal(t, "/login", resp.Header.Get("Location"))
		assert.Zero(t, ts.countRows(t, &models.Follow{}))
	})
}

func TestAddLike(t *testing.T) {
	ts := setupServer(t)
	author, authorCookie := ts.signup(t, "author")
	fan, fanCookie := ts.signup(t, "fan")

	form := url.Values{}
	form.Set("text", "likeable")
	ts.do(t, withCookie(formRequest("POST", "/messages/new", form), authorCookie))

	var msg models.Message
	require.NoError(t, ts.db.Where("user_id = ?", author.ID).First(&msg).Error)

	t.Run("Toggle on", func(t *testing.T) {
		resp := ts.do(t, withCookie(
			httptest.NewRequest("POST", fmt.Sprintf("/users/add_like/%d", msg.ID), nil), fanCookie))
		require.Equal(t, fiber.StatusFound, resp.StatusCode)
		assert.EqualValues(t, 1, ts.countRows(t, &models.Like{}))
	})

	t.Run("Toggle off", func(t *testing.T) {
		resp := ts.do(t, withCookie(
			httptest.NewRequest("POST", fmt.Sprintf("/users/add_like/%d", msg.ID), nil), fanCookie))
		require.Equal(t, fiber.StatusFound, resp.StatusCode)
		assert.Zero(t, ts.countRows(t, &models.Like{}))
	})

	t.Run("Own message is 403", func(t *testing.T) {
		resp := ts.do(t, withCookie(
			httptest.NewRequest("POST", fmt.Sprintf("/users/add_like/%d", msg.ID), nil), authorCookie))
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
		assert.Zero(t, ts.countRows(t, &models.Like{}))
	})

	t.Run("Liked messages listing", func(t *testing.T) {
		resp := ts.do(t, withCookie(
			httptest.NewRequest("POST", fmt.Sprintf("/users/add_like/%d", msg.ID), nil), fanCookie))
		require.Equal(t, fiber.StatusFound, resp.StatusCode)

		resp = ts.do(t, withCookie(
			httptest.NewRequest("GET", fmt.Sprintf("/users/%d/likes", fan.ID), nil), fanCookie))
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		var body struct {
			Messages []*models.Message `json:"messages"`
		}
		require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &body))
		require.Len(t, body.Messages, 1)
		assert.Equal(t, msg.ID, body.Messages[0].ID)
	})
}

func TestDeleteAccount(t *testing.T) {
	ts := setupServer(t)
	doomed, doomedCookie := ts.signup(t, "doomed")
	survivor, survivorCookie := ts.signup(t, "survivor")

	// Build content and graph edges in both directions.
	form := url.Values{}
	form.Set("text", "soon gone")
	ts.do(t, withCookie(formRequest("POST", "/messages/new", form), doomedCookie))

	form = url.Values{}
	form.Set("text", "staying")
	ts.do(t, withCookie(formRequest("POST", "/messages/new", form), survivorCookie))

	var doomedMsg models.Message
	require.NoError(t, ts.db.Where("user_id = ?", doomed.ID).First(&doomedMsg).Error)
	var survivorMsg models.Message
	require.NoError(t, ts.db.Where("user_id = ?", survivor.ID).First(&survivorMsg).Error)

	ts.do(t, withCookie(httptest.NewRequest("POST",
		fmt.Sprintf("/users/follow/%d", survivor.ID), nil), doomedCookie))
	ts.do(t, withCookie(httptest.NewRequest("POST",
		fmt.Sprintf("/users/follow/%d", doomed.ID), nil), survivorCookie))
	ts.do(t, withCookie(httptest.NewRequest("POST",
		fmt.Sprintf("/users/add_like/%d", survivorMsg.ID), nil), doomedCookie))
	ts.do(t, withCookie(httptest.NewRequest("POST",
		fmt.Sprintf("/users/add_like/%d", doomedMsg.ID), nil), survivorCookie))

	resp := ts.do(t, withCookie(httptest.NewRequest("POST", "/users/delete", nil), doomedCookie))
	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/signup", resp.Header.Get("Location"))

	// Everything attached to the account is gone.
	var n int64
	require.NoError(t, ts.db.Model(&models.User{}).Where("id = ?", doomed.ID).Count(&n).Error)
	assert.Zero(t, n, "user row")
	require.NoError(t, ts.db.Model(&models.Message{}).Where("user_id = ?", doomed.ID).Count(&n).Error)
	assert.Zero(t, n, "messages")
	require.NoError(t, ts.db.Model(&models.Follow{}).
		Where("follower_id = ? OR followed_id = ?", doomed.ID, doomed.ID).Count(&n).Error)
	assert.Zero(t, n, "follow edges")
	assert.Zero(t, ts.countRows(t, &models.Like{}), "likes in both directions")

	// The survivor and their content are untouched.
	require.NoError(t, ts.db.Model(&models.User{}).Where("id = ?", survivor.ID).Count(&n).Error)
	assert.EqualValues(t, 1, n)
	require.NoError(t, ts.db.Model(&models.Message{}).Where("user_id = ?", survivor.ID).Count(&n).Error)
	assert.EqualValues(t, 1, n)

	// The destroyed session no longer works.
	resp = ts.do(t, withCookie(httptest.NewRequest("GET", "/users/profile", nil), doomedCookie))
	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}
