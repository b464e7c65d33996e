package sessions

import (
	"context"
	"fmt"

	"github.com/minglehq/mingle/internal/models"
	"github.com/minglehq/mingle/internal/tokens"
)

// UserSource supplies the identity claims embedded in freshly issued access
// tokens. Identity persistence itself lives outside this package.
type UserSource interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Service implements the refresh-token lifecycle: seed at login, rotate on
// refresh, revoke on logout.
type Service struct {
	tokens *tokens.Service
	repo   Repository
	users  UserSource
}

func NewService(t *tokens.Service, repo Repository, users UserSource) *Service {
	return &Service{tokens: t, repo: repo, users: users}
}

// Bind issues a fresh access/refresh pair for a just-authenticated user and
// seeds the single refresh slot, superseding any previous session.
func (s *Service) Bind(ctx context.Context, u *models.User) (string, string, error) {
	access, err := s.tokens.IssueAccess(u)
	if err != nil {
		return "", "", err
	}
	refresh, err := s.tokens.IssueRefresh(u.ID)
	if err != nil {
		return "", "", err
	}
	if err := s.repo.Bind(ctx, u.ID, refresh, s.tokens.RefreshTTL()); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// Rotate exchanges a valid, current refresh token for a new access/refresh
// pair, overwriting the stored slot. The overwrite is a compare-and-swap:
// concurrent rotations against the same presented token cannot both succeed.
//
// Errors: tokens.ErrTokenInvalid / tokens.ErrTokenExpired when the presented
// token fails verification, ErrIdentityNotFound when no slot exists,
// ErrRefreshStale when the presented token was superseded.
func (s *Service) Rotate(ctx context.Context, presented string) (string, string, error) {
	claims, err := s.tokens.VerifyRefresh(presented)
	if err != nil {
		return "", "", err
	}
	sub := claims.Subject

	stored, err := s.repo.Get(ctx, sub)
	if err != nil {
		return "", "", err
	}
	if stored != presented {
		return "", "", ErrRefreshStale
	}

	u, err := s.users.GetByID(ctx, sub)
	if err != nil {
		return "", "", fmt.Errorf("load identity %s: %w", sub, err)
	}
	if u == nil {
		return "", "", ErrIdentityNotFound
	}

	access, err := s.tokens.IssueAccess(u)
	if err != nil {
		return "", "", err
	}
	refresh, err := s.tokens.IssueRefresh(sub)
	if err != nil {
		return "", "", err
	}
	// authoritative compare-and-swap; a concurrent rotation surfaces as stale
	if err := s.repo.Replace(ctx, sub, presented, refresh, s.tokens.RefreshTTL()); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// Revoke clears the identity's refresh slot.
func (s *Service) Revoke(ctx context.Context, sub string) error {
	return s.repo.Delete(ctx, sub)
}
