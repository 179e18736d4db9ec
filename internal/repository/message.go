package repository

import (
	"context"
	"errors"

	"warbler/internal/cache"
	"warbler/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageRepository defines the interface for message data operations.
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id uint, currentUserID uint) (*models.Message, error)
	GetByUserID(ctx context.Context, userID uint, limit, offset int, currentUserID uint) ([]*models.Message, error)
	Feed(ctx context.Context, userIDs []uint, limit int, currentUserID uint) ([]*models.Message, error)
	Recent(ctx context.Context, limit int, currentUserID uint) ([]*models.Message, error)
	Delete(ctx context.Context, id uint) error
	Like(ctx context.Context, userID, messageID uint) error
	Unlike(ctx context.Context, userID, messageID uint) error
	IsLiked(ctx context.Context, userID, messageID uint) (bool, error)
	LikedMessages(ctx context.Context, userID uint, limit, offset int) ([]*models.Message, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new message repository.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, id uint, currentUserID uint) (*models.Message, error) {
	var message models.Message
	key := cache.MessageKey(id)

	var err error
	if currentUserID == 0 {
		err = cache.Aside(ctx, key, &message, cache.MessageTTL, func() error {
			return r.applyMessageDetails(r.db.WithContext(ctx), 0).
				Preload("User").
				First(&message, id).Error
		})
	} else {
		err = r.applyMessageDetails(r.db.WithContext(ctx), currentUserID).
			Preload("User").
			First(&message, id).Error
	}

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Message", id)
		}
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, models.NewInternalError(err)
	}
	return &message, nil
}

func (r *messageRepository) GetByUserID(ctx context.Context, userID uint, limit, offset int, currentUserID uint) ([]*models.Message, error) {
	var messages []*models.Message
	err := r.applyMessageDetails(r.db.WithContext(ctx), currentUserID).
		Preload("User").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return messages, nil
}

// Feed returns the newest messages authored by any of the given users.
func (r *messageRepository) Feed(ctx context.Context, userIDs []uint, limit int, currentUserID uint) ([]*models.Message, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var messages []*models.Message
	err := r.applyMessageDetails(r.db.WithContext(ctx), currentUserID).
		Preload("User").
		Where("user_id IN ?", userIDs).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return messages, nil
}

// Recent returns the newest messages across all users.
func (r *messageRepository) Recent(ctx context.Context, limit int, currentUserID uint) ([]*models.Message, error) {
	var messages []*models.Message
	err := r.applyMessageDetails(r.db.WithContext(ctx), currentUserID).
		Preload("User").
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return messages, nil
}

// applyMessageDetails adds subqueries to fetch like counts and liked status in a single query.
func (r *messageRepository) applyMessageDetails(db *gorm.DB, currentUserID uint) *gorm.DB {
	selectQuery := "messages.*, " +
		"(SELECT COUNT(*) FROM likes WHERE likes.message_id = messages.id) as likes_count"

	if currentUserID != 0 {
		return db.Select(selectQuery+", EXISTS(SELECT 1 FROM likes WHERE likes.message_id = messages.id AND likes.user_id = ?) as liked", currentUserID)
	}

	return db.Select(selectQuery + ", false as liked")
}

// Delete removes the message and its likes for good.
func (r *messageRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().
			Where("message_id = ?", id).
			Delete(&models.Like{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&models.Message{}, id).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateMessage(ctx, id)
	return nil
}

func (r *messageRepository) Like(ctx context.Context, userID, messageID uint) error {
	// ON CONFLICT DO NOTHING makes a repeated like a no-op instead of a
	// duplicate key error, and is atomic under races.
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "message_id"}},
			DoNothing: true,
		}).
		Create(&models.Like{UserID: userID, MessageID: messageID}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateMessage(ctx, messageID)
	return nil
}

func (r *messageRepository) Unlike(ctx context.Context, userID, messageID uint) error {
	err := r.db.WithContext(ctx).Unscoped().
		Where("user_id = ? AND message_id = ?", userID, messageID).
		Delete(&models.Like{}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateMessage(ctx, messageID)
	return nil
}

func (r *messageRepository) IsLiked(ctx context.Context, userID, messageID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND message_id = ?", userID, messageID).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// LikedMessages returns the messages the user has liked, newest like first.
func (r *messageRepository) LikedMessages(ctx context.Context, userID uint, limit, offset int) ([]*models.Message, error) {
	var messages []*models.Message
	err := r.applyMessageDetails(r.db.WithContext(ctx), userID).
		Preload("User").
		Joins("JOIN likes ON likes.message_id = messages.id").
		Where("likes.user_id = ?", userID).
		Order("likes.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return messages, nil
}
