package posts

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/minglehq/mingle/internal/models"
)

var (
	ErrPostNotFound = errors.New("post not found")
	ErrForbidden    = errors.New("not the owner")
	ErrValidation   = errors.New("validation failed")
)

// Service wraps the repository with ownership and validation rules.
type Service struct {
	repo Repository
}

func NewService(r Repository) *Service {
	return &Service{repo: r}
}

func (s *Service) Create(ctx context.Context, authorID, caption, imageURL, imageKey string) (*models.Post, error) {
	caption = strings.TrimSpace(caption)
	if caption == "" && imageURL == "" {
		return nil, ErrValidation
	}
	p := &models.Post{
		ID:       uuid.NewString(),
		AuthorID: authorID,
		Caption:  caption,
		ImageURL: imageURL,
		ImageKey: imageKey,
	}
	if err := s.repo.CreatePost(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Post, error) {
	p, err := s.repo.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPostNotFound
	}
	return p, nil
}

func (s *Service) Feed(ctx context.Context, limit int64) ([]*models.Post, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListRecent(ctx, limit)
}

func (s *Service) ByAuthor(ctx context.Context, authorID string, limit int64) ([]*models.Post, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListByAuthor(ctx, authorID, limit)
}

// Delete removes a post and its comments. Only the author (or an admin) may
// delete; the caller's image cleanup uses the returned post's ImageKey.
func (s *Service) Delete(ctx context.Context, id, callerID string, callerAdmin bool) (*models.Post, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.AuthorID != callerID && !callerAdmin {
		return nil, ErrForbidden
	}
	if err := s.repo.DeleteCommentsByPost(ctx, id); err != nil {
		return nil, err
	}
	if err := s.repo.DeletePost(ctx, id); err != nil {
		return nil, err
	}
	return p, nil
}

// ToggleLike likes the post when the user has not liked it yet and unlikes
// it otherwise. Returns whether the post is liked after the call.
func (s *Service) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	p, err := s.Get(ctx, postID)
	if err != nil {
		return false, err
	}
	for _, id := range p.Likes {
		if id == userID {
			return false, s.repo.Unlike(ctx, postID, userID)
		}
	}
	return true, s.repo.Like(ctx, postID, userID)
}

func (s *Service) Comment(ctx context.Context, postID, authorID, body string) (*models.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrValidation
	}
	if _, err := s.Get(ctx, postID); err != nil {
		return nil, err
	}
	c := &models.Comment{
		ID:       uuid.NewString(),
		PostID:   postID,
		AuthorID: authorID,
		Body:     body,
	}
	if err := s.repo.AddComment(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Comments(ctx context.Context, postID string) ([]*models.Comment, error) {
	return s.repo.ListComments(ctx, postID)
}

func (s *Service) DeleteComment(ctx context.Context, id, callerID string, callerAdmin bool) error {
	c, err := s.repo.GetComment(ctx, id)
	if err != nil {
		return err
	}
	if c == nil {
		return ErrPostNotFound
	}
	if c.AuthorID != callerID && !callerAdmin {
		return ErrForbidden
	}
	return s.repo.DeleteComment(ctx, id)
}

// Dashboard assembles the per-user activity counters.
func (s *Service) Dashboard(ctx context.Context, u *models.User) (*models.Dashboard, error) {
	postCount, likes, comments, err := s.repo.AuthorStats(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return &models.Dashboard{
		UserID:        u.ID,
		PostCount:     postCount,
		LikesReceived: likes,
		CommentCount:  comments,
		Followers:     len(u.Followers),
		Following:     len(u.Following),
	}, nil
}
