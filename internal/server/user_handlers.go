package server

import (
	"fmt"

	"warbler/internal/models"
	"warbler/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListUsers handles GET /users. An optional ?q= filters by username substring.
func (s *Server) ListUsers(c *fiber.Ctx) error {
	p := parsePagination(c, 50)
	query := c.Query("q")

	users, err := s.userService.ListUsers(c.UserContext(), query, p.Limit, p.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"users": users,
	})
}

// GetUserProfile handles GET /users/:id. It returns the profile with graph
// counts, the viewer's relationship to it, and the user's recent messages.
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	viewerID, _ := s.optionalUserID(c)

	profile, err := s.userService.GetProfile(c.UserContext(), id, viewerID)
	if err != nil {
		return respondServiceError(c, err)
	}

	p := parsePagination(c, 100)
	messages, err := s.messageService.GetUserMessages(c.UserContext(), id, p.Limit, p.Offset, viewerID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"profile":  profile,
		"messages": messages,
	})
}

// GetOwnProfile handles GET /users/profile.
func (s *Server) GetOwnProfile(c *fiber.Ctx) error {
	userID := s.currentUserID(c)

	profile, err := s.userService.GetProfile(c.UserContext(), userID, userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(profile)
}

// UpdateProfile handles POST /users/profile. On success the user is redirected
// back to their own profile page.
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	userID := s.currentUserID(c)

	var req struct {
		Username       string  `json:"username" form:"username"`
		Email          string  `json:"email" form:"email"`
		ImageURL       string  `json:"image_url" form:"image_url"`
		HeaderImageURL string  `json:"header_image_url" form:"header_image_url"`
		Bio            *string `json:"bio" form:"bio"`
		Location       *string `json:"location" form:"location"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if _, err := s.userService.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID:         userID,
		Username:       req.Username,
		Email:          req.Email,
		ImageURL:       req.ImageURL,
		HeaderImageURL: req.HeaderImageURL,
		Bio:            req.Bio,
		Location:       req.Location,
	}); err != nil {
		return respondServiceError(c, err)
	}

	return c.Redirect(fmt.Sprintf("/users/%d", userID), fiber.StatusFound)
}

// DeleteAccount handles POST /users/delete. The account and everything hanging
// off it go away, the session is destroyed, and the client lands on /signup.
func (s *Server) DeleteAccount(c *fiber.Ctx) error {
	userID := s.currentUserID(c)

	if err := s.userService.DeleteAccount(c.UserContext(), userID); err != nil {
		return respondServiceError(c, err)
	}

	s.logoutSession(c)
	return c.Redirect("/signup", fiber.StatusFound)
}

// StartFollowing handles POST /users/follow/:id.
func (s *Server) StartFollowing(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID := s.currentUserID(c)

	if err := s.followService.Follow(c.UserContext(), userID, id); err != nil {
		return respondServiceError(c, err)
	}

	return c.Redirect(fmt.Sprintf("/users/%d/following", userID), fiber.StatusFound)
}

// StopFollowing handles POST /users/stop-following/:id.
func (s *Server) StopFollowing(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID := s.currentUserID(c)

	if err := s.followService.Unfollow(c.UserContext(), userID, id); err != nil {
		return respondServiceError(c, err)
	}

	return c.Redirect(fmt.Sprintf("/users/%d/following", userID), fiber.StatusFound)
}

// AddLike handles POST /users/add_like/:id. It toggles the viewer's like on
// the message, then sends them back where they came from.
func (s *Server) AddLike(c *fiber.Ctx) error {
	messageID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID := s.currentUserID(c)

	if _, err := s.messageService.ToggleLike(c.UserContext(), messageID, userID); err != nil {
		return respondServiceError(c, err)
	}

	target := c.Get("Referer")
	if target == "" {
		target = "/"
	}
	return c.Redirect(target, fiber.StatusFound)
}

// GetFollowing handles GET /users/:id/following.
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	users, err := s.followService.Following(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"following": users,
	})
}

// GetFollowers handles GET /users/:id/followers.
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	users, err := s.followService.Followers(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"followers": users,
	})
}

// GetLikes handles GET /users/:id/likes, the messages that user has liked.
func (s *Server) GetLikes(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	// Confirm the user exists so a bad ID is a 404, not an empty list.
	if _, err := s.userService.GetUserByID(c.UserContext(), id); err != nil {
		return respondServiceError(c, err)
	}

	p := parsePagination(c, 100)
	messages, err := s.messageService.LikedMessages(c.UserContext(), id, p.Limit, p.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"messages": messages,
	})
}
