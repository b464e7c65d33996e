package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minglehq/mingle/internal/config"
	"github.com/minglehq/mingle/internal/models"
	"github.com/minglehq/mingle/internal/posts"
	"github.com/minglehq/mingle/internal/tokens"
	"github.com/minglehq/mingle/pkg/middleware"
)

// memPostRepo is an in-memory posts.Repository for handler tests.
type memPostRepo struct {
	mu       sync.Mutex
	posts    map[string]*models.Post
	comments map[string]*models.Comment
}

func newMemPostRepo() *memPostRepo {
	return &memPostRepo{
		posts:    make(map[string]*models.Post),
		comments: make(map[string]*models.Comment),
	}
}

func (r *memPostRepo) CreatePost(_ context.Context, p *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.CreatedAt = time.Now().UTC()
	cp := *p
	r.posts[p.ID] = &cp
	return nil
}

func (r *memPostRepo) GetPost(_ context.Context, id string) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.posts[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (r *memPostRepo) ListRecent(_ context.Context, limit int64) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Post, 0, len(r.posts))
	for _, p := range r.posts {
		cp := *p
		out = append(out, &cp)
		if int64(len(out)) == limit {
			break
		}
	}
	return out, nil
}

func (r *memPostRepo) ListByAuthor(_ context.Context, authorID string, limit int64) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Post
	for _, p := range r.posts {
		if p.AuthorID == authorID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memPostRepo) DeletePost(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.posts, id)
	return nil
}

func (r *memPostRepo) Like(_ context.Context, postID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.posts[postID]; ok {
		p.Likes = append(p.Likes, userID)
	}
	return nil
}

func (r *memPostRepo) Unlike(_ context.Context, postID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.posts[postID]; ok {
		out := p.Likes[:0]
		for _, id := range p.Likes {
			if id != userID {
				out = append(out, id)
			}
		}
		p.Likes = out
	}
	return nil
}

func (r *memPostRepo) AddComment(_ context.Context, c *models.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.CreatedAt = time.Now().UTC()
	cp := *c
	r.comments[c.ID] = &cp
	return nil
}

func (r *memPostRepo) GetComment(_ context.Context, id string) (*models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.comments[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (r *memPostRepo) ListComments(_ context.Context, postID string) ([]*models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Comment
	for _, c := range r.comments {
		if c.PostID == postID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memPostRepo) DeleteComment(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.comments, id)
	return nil
}

func (r *memPostRepo) DeleteCommentsByPost(_ context.Context, postID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.comments {
		if c.PostID == postID {
			delete(r.comments, id)
		}
	}
	return nil
}

func (r *memPostRepo) AuthorStats(_ context.Context, authorID string) (int64, int64, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var postCount, likes, commentCount int64
	for _, p := range r.posts {
		if p.AuthorID == authorID {
			postCount++
			likes += int64(len(p.Likes))
			for _, c := range r.comments {
				if c.PostID == p.ID {
					commentCount++
				}
			}
		}
	}
	return postCount, likes, commentCount, nil
}

type postTestEnv struct {
	router *gin.Engine
	tks    *tokens.Service
}

func newPostTestEnv(t *testing.T) *postTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tks := tokens.NewService(config.JWTConfig{
		AccessSecret:    "access-secret",
		RefreshSecret:   "refresh-secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	})
	postsSvc := posts.NewService(newMemPostRepo())

	r := gin.New()
	api := r.Group("/api")
	NewPostHandler(postsSvc, nil).Register(api, middleware.RequireAuth(tks))
	return &postTestEnv{router: r, tks: tks}
}

func (e *postTestEnv) token(t *testing.T, id, username string, admin bool) string {
	t.Helper()
	tok, err := e.tks.IssueAccess(&models.User{ID: id, Username: username, Admin: admin})
	require.NoError(t, err)
	return tok
}

func (e *postTestEnv) do(t *testing.T, method, path, bearer string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	out := map[string]any{}
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func TestPostsRequireAuth(t *testing.T) {
	e := newPostTestEnv(t)

	w, _ := e.do(t, "GET", "/api/posts", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateAndFetchPost(t *testing.T) {
	e := newPostTestEnv(t)
	tok := e.token(t, "u1", "alice", false)

	w, body := e.do(t, "POST", "/api/posts", tok, gin.H{"caption": "hello world"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := body["id"].(string)
	assert.Equal(t, "u1", body["authorId"])

	w, body = e.do(t, "GET", "/api/posts/"+id, tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello world", body["caption"])

	w, _ = e.do(t, "POST", "/api/posts", tok, gin.H{"caption": "   "})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLikeToggle(t *testing.T) {
	e := newPostTestEnv(t)
	alice := e.token(t, "u1", "alice", false)
	bob := e.token(t, "u2", "bob", false)

	_, body := e.do(t, "POST", "/api/posts", alice, gin.H{"caption": "likeable"})
	id := body["id"].(string)

	w, body := e.do(t, "POST", "/api/posts/"+id+"/like", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["liked"])

	w, body = e.do(t, "POST", "/api/posts/"+id+"/like", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["liked"])
}

func TestCommentFlow(t *testing.T) {
	e := newPostTestEnv(t)
	alice := e.token(t, "u1", "alice", false)
	bob := e.token(t, "u2", "bob", false)

	_, body := e.do(t, "POST", "/api/posts", alice, gin.H{"caption": "discuss"})
	postID := body["id"].(string)

	w, body := e.do(t, "POST", "/api/posts/"+postID+"/comments", bob, gin.H{"body": "nice one"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	commentID := body["id"].(string)

	w, _ = e.do(t, "GET", "/api/posts/"+postID+"/comments", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "nice one")

	// only the comment author (or an admin) may delete it
	w, _ = e.do(t, "DELETE", "/api/comments/"+commentID, alice, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w, _ = e.do(t, "DELETE", "/api/comments/"+commentID, bob, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w, _ = e.do(t, "POST", "/api/posts/unknown/comments", bob, gin.H{"body": "ghost"})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeletePostOwnership(t *testing.T) {
	e := newPostTestEnv(t)
	alice := e.token(t, "u1", "alice", false)
	bob := e.token(t, "u2", "bob", false)
	admin := e.token(t, "u3", "root", true)

	_, body := e.do(t, "POST", "/api/posts", alice, gin.H{"caption": "mine"})
	id := body["id"].(string)

	w, _ := e.do(t, "DELETE", "/api/posts/"+id, bob, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w, _ = e.do(t, "DELETE", "/api/posts/"+id, admin, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w, _ = e.do(t, "GET", "/api/posts/"+id, alice, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}
