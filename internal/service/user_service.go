package service

import (
	"context"

	"warbler/internal/models"
	"warbler/internal/repository"
	"warbler/internal/validation"
)

type UserService struct {
	userRepo   repository.UserRepository
	followRepo repository.FollowRepository
}

// UpdateProfileInput carries the editable profile fields. Empty strings leave
// the current value alone, except Bio and Location which may be cleared.
type UpdateProfileInput struct {
	UserID         uint
	Username       string
	Email          string
	ImageURL       string
	HeaderImageURL string
	Bio            *string
	Location       *string
}

// UserProfile is a user plus the graph counts shown on the profile page.
type UserProfile struct {
	User           *models.User `json:"user"`
	FollowersCount int64        `json:"followers_count"`
	FollowingCount int64        `json:"following_count"`
	IsFollowing    bool         `json:"is_following"`
	IsFollowedBy   bool         `json:"is_followed_by"`
}

func NewUserService(userRepo repository.UserRepository, followRepo repository.FollowRepository) *UserService {
	return &UserService{userRepo: userRepo, followRepo: followRepo}
}

// ListUsers returns users, filtered by a username substring when query is set.
func (s *UserService) ListUsers(ctx context.Context, query string, limit, offset int) ([]models.User, error) {
	return s.userRepo.List(ctx, query, limit, offset)
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *UserService) GetUserWithMessages(ctx context.Context, id uint, limit int) (*models.User, error) {
	return s.userRepo.GetByIDWithMessages(ctx, id, limit)
}

// GetProfile returns the user together with follower/following counts and the
// relationship to the viewer (zero viewerID means anonymous).
func (s *UserService) GetProfile(ctx context.Context, id, viewerID uint) (*UserProfile, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	followers, following, err := s.followRepo.Counts(ctx, id)
	if err != nil {
		return nil, err
	}

	profile := &UserProfile{
		User:           user,
		FollowersCount: followers,
		FollowingCount: following,
	}

	if viewerID != 0 && viewerID != id {
		if profile.IsFollowing, err = s.followRepo.IsFollowing(ctx, viewerID, id); err != nil {
			return nil, err
		}
		if profile.IsFollowedBy, err = s.followRepo.IsFollowing(ctx, id, viewerID); err != nil {
			return nil, err
		}
	}

	return profile, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	const maxBioLen = 500
	const maxLocationLen = 100

	if in.Username != "" {
		if err := validation.ValidateUsername(in.Username); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.Username = in.Username
	}
	if in.Email != "" {
		if err := validation.ValidateEmail(in.Email); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.Email = in.Email
	}
	if in.ImageURL != "" {
		user.ImageURL = in.ImageURL
	}
	if in.HeaderImageURL != "" {
		user.HeaderImageURL = in.HeaderImageURL
	}
	if in.Bio != nil {
		if len(*in.Bio) > maxBioLen {
			return nil, models.NewValidationError("Bio too long (max 500 characters)")
		}
		user.Bio = *in.Bio
	}
	if in.Location != nil {
		if len(*in.Location) > maxLocationLen {
			return nil, models.NewValidationError("Location too long (max 100 characters)")
		}
		user.Location = *in.Location
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// DeleteAccount removes the user and all their content and graph edges.
func (s *UserService) DeleteAccount(ctx context.Context, userID uint) error {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return err
	}
	return s.userRepo.Delete(ctx, userID)
}
