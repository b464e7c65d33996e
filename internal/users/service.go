package users

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/minglehq/mingle/internal/models"
)

var (
	ErrUserExists         = errors.New("username or email already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrValidation         = errors.New("validation failed")
)

// RegisterInput carries the fields required to create an account.
type RegisterInput struct {
	Username string
	Email    string
	FullName string
	Password string
	Bio      string
}

// Service encapsulates user-related business logic
type Service struct {
	repo UserRepository
}

func NewService(r UserRepository) *Service {
	return &Service{repo: r}
}

// Register validates the input, hashes the password and creates the user.
// Usernames are stored lowercase.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Username = strings.ToLower(strings.TrimSpace(in.Username))
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)
	if in.Username == "" || in.Email == "" || in.FullName == "" {
		return nil, ErrValidation
	}
	if len(in.Password) < 8 {
		return nil, ErrValidation
	}
	if !strings.Contains(in.Email, "@") {
		return nil, ErrValidation
	}

	if existing, err := s.repo.GetByLogin(ctx, in.Username); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrUserExists
	}
	if existing, err := s.repo.GetByLogin(ctx, in.Email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrUserExists
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		FullName:     in.FullName,
		Bio:          in.Bio,
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate resolves a user by username or email and checks the password.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*models.User, error) {
	u, err := s.repo.GetByLogin(ctx, strings.ToLower(strings.TrimSpace(login)))
	if err != nil {
		return nil, err
	}
	if u == nil || !CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) SetAvatar(ctx context.Context, id, url, key string) error {
	return s.repo.UpdateAvatar(ctx, id, url, key)
}

func (s *Service) Follow(ctx context.Context, followerID, followeeID string) error {
	if followerID == followeeID {
		return ErrValidation
	}
	return s.repo.Follow(ctx, followerID, followeeID)
}

func (s *Service) Unfollow(ctx context.Context, followerID, followeeID string) error {
	return s.repo.Unfollow(ctx, followerID, followeeID)
}
