package service

import (
	"context"

	"warbler/internal/models"
	"warbler/internal/observability"
	"warbler/internal/repository"
	"warbler/internal/validation"
)

type MessageService struct {
	messageRepo repository.MessageRepository
	followRepo  repository.FollowRepository
}

func NewMessageService(messageRepo repository.MessageRepository, followRepo repository.FollowRepository) *MessageService {
	return &MessageService{messageRepo: messageRepo, followRepo: followRepo}
}

// CreateMessage posts a new warble for the author.
func (s *MessageService) CreateMessage(ctx context.Context, authorID uint, text string) (*models.Message, error) {
	if err := validation.ValidateMessageText(text); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	message := &models.Message{Text: text, UserID: authorID}
	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, err
	}
	observability.MessagesCreated.Inc()

	return s.messageRepo.GetByID(ctx, message.ID, authorID)
}

func (s *MessageService) GetMessage(ctx context.Context, id, viewerID uint) (*models.Message, error) {
	return s.messageRepo.GetByID(ctx, id, viewerID)
}

func (s *MessageService) GetUserMessages(ctx context.Context, userID uint, limit, offset int, viewerID uint) ([]*models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return s.messageRepo.GetByUserID(ctx, userID, limit, offset, viewerID)
}

// Feed returns the newest messages from the user and everyone they follow,
// capped at limit (100 by default).
func (s *MessageService) Feed(ctx context.Context, userID uint, limit int) ([]*models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	ids, err := s.followRepo.FollowingIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids = append(ids, userID)

	return s.messageRepo.Feed(ctx, ids, limit, userID)
}

// Recent returns the newest messages site-wide, for anonymous visitors.
func (s *MessageService) Recent(ctx context.Context, limit int, viewerID uint) ([]*models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return s.messageRepo.Recent(ctx, limit, viewerID)
}

// DeleteMessage removes a message. Only the author may delete it.
func (s *MessageService) DeleteMessage(ctx context.Context, messageID, userID uint) error {
	message, err := s.messageRepo.GetByID(ctx, messageID, 0)
	if err != nil {
		return err
	}
	if message.UserID != userID {
		return models.NewUnauthorizedError("You can only delete your own messages")
	}
	return s.messageRepo.Delete(ctx, messageID)
}

// ToggleLike flips the viewer's like on a message and reports the new state.
// Users cannot like their own messages.
func (s *MessageService) ToggleLike(ctx context.Context, messageID, userID uint) (liked bool, err error) {
	message, err := s.messageRepo.GetByID(ctx, messageID, 0)
	if err != nil {
		return false, err
	}
	if message.UserID == userID {
		return false, models.NewUnauthorizedError("You cannot like your own message")
	}

	isLiked, err := s.messageRepo.IsLiked(ctx, userID, messageID)
	if err != nil {
		return false, err
	}

	if isLiked {
		if err := s.messageRepo.Unlike(ctx, userID, messageID); err != nil {
			return false, err
		}
		observability.LikeToggles.WithLabelValues("unlike").Inc()
		return false, nil
	}

	if err := s.messageRepo.Like(ctx, userID, messageID); err != nil {
		return false, err
	}
	observability.LikeToggles.WithLabelValues("like").Inc()
	return true, nil
}

// LikedMessages returns the messages the user has liked.
func (s *MessageService) LikedMessages(ctx context.Context, userID uint, limit, offset int) ([]*models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return s.messageRepo.LikedMessages(ctx, userID, limit, offset)
}
