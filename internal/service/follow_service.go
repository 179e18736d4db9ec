package service

import (
	"context"

	"warbler/internal/models"
	"warbler/internal/observability"
	"warbler/internal/repository"
)

type FollowService struct {
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
}

func NewFollowService(followRepo repository.FollowRepository, userRepo repository.UserRepository) *FollowService {
	return &FollowService{followRepo: followRepo, userRepo: userRepo}
}

// Follow makes followerID follow followedID. Following yourself is refused;
// following someone twice is a no-op.
func (s *FollowService) Follow(ctx context.Context, followerID, followedID uint) error {
	if followerID == followedID {
		return models.NewValidationError("You cannot follow yourself")
	}
	if _, err := s.userRepo.GetByID(ctx, followedID); err != nil {
		return err
	}
	if err := s.followRepo.Follow(ctx, followerID, followedID); err != nil {
		return err
	}
	observability.FollowChanges.WithLabelValues("follow").Inc()
	return nil
}

func (s *FollowService) Unfollow(ctx context.Context, followerID, followedID uint) error {
	if _, err := s.userRepo.GetByID(ctx, followedID); err != nil {
		return err
	}
	if err := s.followRepo.Unfollow(ctx, followerID, followedID); err != nil {
		return err
	}
	observability.FollowChanges.WithLabelValues("unfollow").Inc()
	return nil
}

// Following lists the users that userID follows.
func (s *FollowService) Following(ctx context.Context, userID uint) ([]models.User, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.followRepo.Following(ctx, userID)
}

// Followers lists the users that follow userID.
func (s *FollowService) Followers(ctx context.Context, userID uint) ([]models.User, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.followRepo.Followers(ctx, userID)
}

func (s *FollowService) IsFollowing(ctx context.Context, followerID, followedID uint) (bool, error) {
	return s.followRepo.IsFollowing(ctx, followerID, followedID)
}

func (s *FollowService) IsFollowedBy(ctx context.Context, userID, otherID uint) (bool, error) {
	return s.followRepo.IsFollowedBy(ctx, userID, otherID)
}
