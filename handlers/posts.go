package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/minglehq/mingle/internal/posts"
	"github.com/minglehq/mingle/internal/storage"
	"github.com/minglehq/mingle/pkg/logger"
	"github.com/minglehq/mingle/pkg/middleware"
)

const maxPostImageSize = 10 << 20 // 10 MiB

// PostHandler serves the post feed, likes and comments.
type PostHandler struct {
	postsSvc *posts.Service
	media    *storage.MediaStore
}

func NewPostHandler(p *posts.Service, media *storage.MediaStore) *PostHandler {
	return &PostHandler{postsSvc: p, media: media}
}

func (h *PostHandler) Register(rg *gin.RouterGroup, auth gin.HandlerFunc) {
	p := rg.Group("/posts", auth)
	p.POST("", h.Create)
	p.GET("", h.Feed)
	p.GET("/:id", h.Get)
	p.DELETE("/:id", h.Delete)
	p.POST("/:id/like", h.ToggleLike)
	p.GET("/:id/comments", h.ListComments)
	p.POST("/:id/comments", h.AddComment)
	rg.DELETE("/comments/:id", auth, h.DeleteComment)
}

// Create accepts either a JSON body with a caption or a multipart form with
// an optional image file.
func (h *PostHandler) Create(c *gin.Context) {
	authorID := middleware.CurrentUserID(c)

	var caption, imageURL, imageKey string
	if strings.HasPrefix(c.ContentType(), "application/json") {
		var req struct {
			Caption string `json:"caption"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		caption = req.Caption
	} else {
		caption = c.PostForm("caption")
		if fh, err := c.FormFile("image"); err == nil {
			if h.media == nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "media storage not configured"})
				return
			}
			if fh.Size > maxPostImageSize {
				c.JSON(http.StatusBadRequest, gin.H{"error": "image too large"})
				return
			}
			f, err := fh.Open()
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable upload"})
				return
			}
			defer f.Close()
			key, err := h.media.Upload(c.Request.Context(), "posts", fh.Filename, f, fh.Size, fh.Header.Get("Content-Type"))
			if err != nil {
				logger.Errorf("post image upload: %v", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
				return
			}
			imageKey = key
			imageURL = h.media.PublicURL(key)
		}
	}

	p, err := h.postsSvc.Create(c.Request.Context(), authorID, caption, imageURL, imageKey)
	if errors.Is(err, posts.ErrValidation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "caption or image required"})
		return
	}
	if err != nil {
		logger.Errorf("create post: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *PostHandler) Feed(c *gin.Context) {
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	list, err := h.postsSvc.Feed(c.Request.Context(), limit)
	if err != nil {
		logger.Errorf("feed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *PostHandler) Get(c *gin.Context) {
	p, err := h.postsSvc.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, posts.ErrPostNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}
	if err != nil {
		logger.Errorf("get post %s: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *PostHandler) Delete(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	p, err := h.postsSvc.Delete(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c), claims != nil && claims.Admin)
	switch {
	case errors.Is(err, posts.ErrPostNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	case errors.Is(err, posts.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "not the author"})
		return
	case err != nil:
		logger.Errorf("delete post %s: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if h.media != nil && p.ImageKey != "" {
		if err := h.media.Delete(c.Request.Context(), p.ImageKey); err != nil {
			logger.Warnf("post image cleanup %s: %v", p.ImageKey, err)
		}
	}
	c.Status(http.StatusNoContent)
}

func (h *PostHandler) ToggleLike(c *gin.Context) {
	liked, err := h.postsSvc.ToggleLike(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c))
	if errors.Is(err, posts.ErrPostNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}
	if err != nil {
		logger.Errorf("like post %s: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "like failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": liked})
}

func (h *PostHandler) ListComments(c *gin.Context) {
	list, err := h.postsSvc.Comments(c.Request.Context(), c.Param("id"))
	if err != nil {
		logger.Errorf("comments %s: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *PostHandler) AddComment(c *gin.Context) {
	var req struct {
		Body string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body required"})
		return
	}
	cm, err := h.postsSvc.Comment(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c), req.Body)
	switch {
	case errors.Is(err, posts.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "body required"})
		return
	case errors.Is(err, posts.ErrPostNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	case err != nil:
		logger.Errorf("comment on %s: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "comment failed"})
		return
	}
	c.JSON(http.StatusCreated, cm)
}

func (h *PostHandler) DeleteComment(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	err := h.postsSvc.DeleteComment(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c), claims != nil && claims.Admin)
	switch {
	case errors.Is(err, posts.ErrPostNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "comment not found"})
		return
	case errors.Is(err, posts.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "not the author"})
		return
	case err != nil:
		logger.Errorf("delete comment %s: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}
