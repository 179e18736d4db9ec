package server

import (
	"fmt"

	"warbler/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Home handles GET /. Logged-in visitors get their personal feed; anonymous
// visitors get the newest messages site-wide.
func (s *Server) Home(c *fiber.Ctx) error {
	p := parsePagination(c, 100)

	if userID, ok := s.optionalUserID(c); ok {
		messages, err := s.messageService.Feed(c.UserContext(), userID, p.Limit)
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(fiber.Map{
			"feed":     "following",
			"messages": messages,
		})
	}

	messages, err := s.messageService.Recent(c.UserContext(), p.Limit, 0)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"feed":     "public",
		"messages": messages,
	})
}

// CreateMessage handles POST /messages/new and redirects to the author's
// profile on success.
func (s *Server) CreateMessage(c *fiber.Ctx) error {
	userID := s.currentUserID(c)

	var req struct {
		Text string `json:"text" form:"text"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if _, err := s.messageService.CreateMessage(c.UserContext(), userID, req.Text); err != nil {
		return respondServiceError(c, err)
	}

	return c.Redirect(fmt.Sprintf("/users/%d", userID), fiber.StatusFound)
}

// ShowMessage handles GET /messages/:id.
func (s *Server) ShowMessage(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	viewerID, _ := s.optionalUserID(c)

	message, err := s.messageService.GetMessage(c.UserContext(), id, viewerID)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(message)
}

// DeleteMessage handles POST /messages/:id/delete. Only the author may delete.
func (s *Server) DeleteMessage(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID := s.currentUserID(c)

	if err := s.messageService.DeleteMessage(c.UserContext(), id, userID); err != nil {
		return respondServiceError(c, err)
	}

	return c.Redirect(fmt.Sprintf("/users/%d", userID), fiber.StatusFound)
}
